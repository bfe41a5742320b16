// Package environment models the execution environment of a job: the job
// request together with the cluster, command and applications resolved for it
// and the directory the job runs in.
//
// An Environment is assembled once, before the job starts, and is read-only
// afterwards. It is only ever obtained from Builder.Build, which validates all
// inputs first, so a partially populated Environment is never observable.
package environment

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/3leaps/gogenie/pkg/jobregistry"
)

// Environment is an immutable snapshot of everything a job needs to run.
type Environment struct {
	request      jobregistry.JobRequest
	cluster      Cluster
	command      Command
	applications []Application
	workingDir   string
}

// JobRequest returns a copy of the request the job was created from.
func (e *Environment) JobRequest() jobregistry.JobRequest {
	r := e.request
	r.ClusterCriteria = cloneCriteria(r.ClusterCriteria)
	r.CommandCriteria = slices.Clone(r.CommandCriteria)
	return r
}

// Cluster returns the cluster the job runs on.
func (e *Environment) Cluster() Cluster {
	return Cluster{Resource: cloneResource(e.cluster.Resource)}
}

// Command returns the command the job runs.
func (e *Environment) Command() Command {
	c := e.command
	c.Resource = cloneResource(c.Resource)
	c.ApplicationIDs = slices.Clone(c.ApplicationIDs)
	return c
}

// Applications returns the applications in resolution order.
//
// The result is a fresh copy; modifying it does not affect the environment.
// It is never nil.
func (e *Environment) Applications() []Application {
	out := make([]Application, len(e.applications))
	for i, app := range e.applications {
		out[i] = cloneApplication(app)
	}
	return out
}

// WorkingDir returns the absolute path of the job's working directory.
func (e *Environment) WorkingDir() string {
	return e.workingDir
}

// Builder collects the inputs of an Environment.
//
// A Builder is not safe for concurrent use.
type Builder struct {
	request      *jobregistry.JobRequest
	cluster      *Cluster
	command      *Command
	workingDir   string
	applications []Application
}

// NewBuilder starts an Environment from its required parts. Validation is
// deferred to Build.
func NewBuilder(request *jobregistry.JobRequest, cluster *Cluster, command *Command, workingDir string) *Builder {
	return &Builder{
		request:    request,
		cluster:    cluster,
		command:    command,
		workingDir: workingDir,
	}
}

// WithApplications appends a batch of applications. It may be called any
// number of times; batches keep their order.
func (b *Builder) WithApplications(apps ...Application) *Builder {
	for _, app := range apps {
		b.applications = append(b.applications, cloneApplication(app))
	}
	return b
}

// Build validates the collected inputs and returns the Environment.
//
// All missing inputs are reported together as ValidationErrors.
func (b *Builder) Build() (*Environment, error) {
	var errs ValidationErrors
	if b.request == nil {
		errs = append(errs, ValidationError{Field: "job_request", Message: "job request cannot be nil"})
	}
	if b.cluster == nil {
		errs = append(errs, ValidationError{Field: "cluster", Message: "cluster cannot be nil"})
	}
	if b.command == nil {
		errs = append(errs, ValidationError{Field: "command", Message: "command cannot be nil"})
	}
	dir := strings.TrimSpace(b.workingDir)
	if dir == "" {
		errs = append(errs, ValidationError{Field: "working_dir", Message: "job working directory cannot be empty"})
	}
	if len(errs) > 0 {
		return nil, errs
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, ValidationErrors{{Field: "working_dir", Message: err.Error()}}
	}

	env := &Environment{
		request:      *b.request,
		cluster:      *b.cluster,
		command:      *b.command,
		applications: make([]Application, 0, len(b.applications)),
		workingDir:   abs,
	}
	env.request.ClusterCriteria = cloneCriteria(env.request.ClusterCriteria)
	env.request.CommandCriteria = slices.Clone(env.request.CommandCriteria)
	env.cluster.Resource = cloneResource(env.cluster.Resource)
	env.command.Resource = cloneResource(env.command.Resource)
	env.command.ApplicationIDs = slices.Clone(env.command.ApplicationIDs)
	for _, app := range b.applications {
		env.applications = append(env.applications, cloneApplication(app))
	}
	return env, nil
}

func cloneResource(r Resource) Resource {
	r.Tags = slices.Clone(r.Tags)
	r.Configs = slices.Clone(r.Configs)
	return r
}

func cloneApplication(a Application) Application {
	a.Resource = cloneResource(a.Resource)
	a.Dependencies = slices.Clone(a.Dependencies)
	return a
}

func cloneCriteria(in []jobregistry.Criterion) []jobregistry.Criterion {
	if in == nil {
		return nil
	}
	out := make([]jobregistry.Criterion, len(in))
	for i, c := range in {
		out[i] = jobregistry.Criterion{Tags: slices.Clone(c.Tags)}
	}
	return out
}
