package completion

import (
	"context"

	"go.uber.org/zap"

	"github.com/3leaps/gogenie/pkg/donefile"
	"github.com/3leaps/gogenie/pkg/jobregistry"
)

// DoneFileFailureReason is the status message stored when a job finished
// without a readable done file.
const DoneFileFailureReason = "Genie could not load done file."

// StatusResolver turns the done file of a finished job into its terminal
// status.
type StatusResolver struct {
	baseDir     string
	persistence Persistence
	metrics     Metrics
	logger      *zap.Logger
}

// NewStatusResolver returns a resolver reading done files under baseDir.
func NewStatusResolver(baseDir string, persistence Persistence, metrics Metrics, logger *zap.Logger) *StatusResolver {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusResolver{baseDir: baseDir, persistence: persistence, metrics: metrics, logger: logger}
}

// Resolve reads the done file and persists the job's exit code and status.
//
// A missing or malformed done file is not an error: the job is marked failed
// and the done-file counter is incremented. A persistence failure increments
// the final-status counter. Resolve never returns an error.
func (r *StatusResolver) Resolve(ctx context.Context, jobID string) Outcome {
	log := r.logger.With(zap.String("job_id", jobID))
	log.Debug("Updating the status of the job")

	path := donefile.Path(r.baseDir, jobID)
	df, err := donefile.Read(path)
	if err != nil {
		r.metrics.DoneFileProcessingFailure()
		log.Error("Could not load the done file; marking job failed",
			zap.String("path", path), zap.Error(err))

		if err := r.persistence.UpdateJobStatus(ctx, jobID, jobregistry.JobStatusFailed, DoneFileFailureReason); err != nil {
			r.metrics.FinalStatusUpdateFailure()
			log.Error("Could not update the status of the job", zap.Error(err))
			return OutcomeFailed
		}
		return OutcomeFallback
	}

	if err := r.persistence.SetExitCode(ctx, jobID, df.ExitCode); err != nil {
		r.metrics.FinalStatusUpdateFailure()
		log.Error("Could not update the exit code and status of the job",
			zap.Int("exit_code", df.ExitCode), zap.Error(err))
		return OutcomeFailed
	}

	log.Debug("Job status resolved",
		zap.Int("exit_code", df.ExitCode),
		zap.String("status", jobregistry.StatusForExitCode(df.ExitCode).String()))
	return OutcomeOK
}
