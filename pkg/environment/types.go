package environment

// ResourceStatus is the lifecycle status of a persisted cluster, command, or
// application.
type ResourceStatus string

const (
	StatusActive     ResourceStatus = "active"
	StatusInactive   ResourceStatus = "inactive"
	StatusDeprecated ResourceStatus = "deprecated"
)

// Resource holds the fields shared by clusters, commands and applications.
type Resource struct {
	ID      string         `json:"id"`
	Name    string         `json:"name,omitempty"`
	Tags    []string       `json:"tags,omitempty"`
	Status  ResourceStatus `json:"status,omitempty"`
	Configs []string       `json:"configs,omitempty"`
}

// Cluster is an execution cluster a job can be submitted to.
type Cluster struct {
	Resource
}

// Command is a runnable command. It may depend on zero or more applications
// and be runnable on multiple clusters.
type Command struct {
	Resource

	Executable     string   `json:"executable,omitempty"`
	ApplicationIDs []string `json:"application_ids,omitempty"`
}

// Application is a dependency a command needs installed in the job directory.
type Application struct {
	Resource

	Dependencies []string `json:"dependencies,omitempty"`
	SetupFile    string   `json:"setup_file,omitempty"`
}
