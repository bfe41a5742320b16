// Package completion finalizes jobs after their process has exited.
//
// For every job-finished signal the Orchestrator runs four stages in a fixed
// order:
//
//	status resolution -> process-group cleanup -> archival -> notification
//
// Each stage is isolated: a failing stage is logged and counted, and the next
// stage still runs. Nothing below the Orchestrator is ever returned to the
// caller as an error.
package completion

import (
	"context"
	"time"

	"github.com/3leaps/gogenie/pkg/jobregistry"
)

// Persistence writes job status.
//
// Both methods must be idempotent: repeating a call with the same arguments
// leaves the stored job unchanged.
type Persistence interface {
	SetExitCode(ctx context.Context, jobID string, exitCode int) error
	UpdateJobStatus(ctx context.Context, jobID string, status jobregistry.JobStatus, reason string) error
}

// Search reads job state.
type Search interface {
	GetJob(ctx context.Context, jobID string) (*jobregistry.JobRecord, error)
	GetJobRequest(ctx context.Context, jobID string) (*jobregistry.JobRequest, error)
}

// FileTransfer uploads a local file to a remote URI, choosing the backend by
// URI scheme.
type FileTransfer interface {
	PutFile(ctx context.Context, localPath, remoteURI string) error
}

// Mailer sends a notification email.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Metrics records completion outcomes. Implementations must be safe for
// concurrent use and must not block.
type Metrics interface {
	EmailFailure()
	ArchivalFailure()
	DoneFileProcessingFailure()
	FinalStatusUpdateFailure()

	// ProcessGroupCleanupFailure counts jobs whose process group was still
	// alive at completion and had to be terminated. It does not count failed
	// signal attempts.
	ProcessGroupCleanupFailure()

	StageDuration(stage Stage, d time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) EmailFailure()                              {}
func (nopMetrics) ArchivalFailure()                           {}
func (nopMetrics) DoneFileProcessingFailure()                 {}
func (nopMetrics) FinalStatusUpdateFailure()                  {}
func (nopMetrics) ProcessGroupCleanupFailure()                {}
func (nopMetrics) StageDuration(stage Stage, d time.Duration) {}

// FinishedEvent signals that a job's process has exited.
//
// Delivery is at-least-once; handlers must tolerate duplicates.
type FinishedEvent struct {
	// ID identifies this delivery. Redeliveries carry a new ID.
	ID string

	JobID string
	PID   int

	ReceivedAt time.Time
}
