package jobregistry

import "time"

// JobStatus is the lifecycle status of a job.
//
// NOTE: These values are persisted in job.json and are part of the stable
// on-disk contract.
type JobStatus string

const (
	JobStatusAccepted  JobStatus = "accepted"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusKilled    JobStatus = "killed"
)

// IsTerminal reports whether the status will never change again.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusKilled:
		return true
	}
	return false
}

// String returns the string representation of the status.
func (s JobStatus) String() string {
	return string(s)
}

// StatusForExitCode maps a process exit code to a terminal status.
//
// Zero is success; every other value is failure. Signal-terminated processes
// are not distinguished from ordinary failures.
func StatusForExitCode(exitCode int) JobStatus {
	if exitCode == 0 {
		return JobStatusSucceeded
	}
	return JobStatusFailed
}

// JobRecord is the persistent record written to job.json.
//
// The schema is designed for backward-compatible extension (additive fields).
type JobRecord struct {
	JobID           string    `json:"job_id"`
	Name            string    `json:"name,omitempty"`
	Status          JobStatus `json:"status"`
	StatusMessage   string    `json:"status_message,omitempty"`
	ExitCode        *int      `json:"exit_code,omitempty"`
	ArchiveLocation string    `json:"archive_location,omitempty"`
	ClusterID       string    `json:"cluster_id,omitempty"`
	CommandID       string    `json:"command_id,omitempty"`
	PID             int       `json:"pid,omitempty"`
	CreatedAt       time.Time `json:"created_at"`

	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// Criterion is a set of tags a resource must carry to be selected.
type Criterion struct {
	Tags []string `json:"tags"`
}

// JobRequest is the submitter's original request, written to request.json.
//
// It is never mutated once accepted.
type JobRequest struct {
	JobID           string      `json:"job_id"`
	User            string      `json:"user"`
	CommandArgs     string      `json:"command_args"`
	ClusterCriteria []Criterion `json:"cluster_criteria,omitempty"`
	CommandCriteria []string    `json:"command_criteria,omitempty"`
	Email           string      `json:"email,omitempty"`
	DisableArchive  bool        `json:"disable_archive,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}
