package completion

import (
	"context"

	"go.uber.org/zap"
)

// SignalOutcome is the result of signalling a job's process group.
type SignalOutcome int

const (
	// SignalAlreadyAbsent means no process group existed. This is the
	// expected case: the run script cleans up after itself.
	SignalAlreadyAbsent SignalOutcome = iota

	// SignalTerminated means the process group was still alive and was
	// signalled.
	SignalTerminated

	// SignalError means the signal could not be delivered for another reason.
	SignalError
)

// String returns a short name for the outcome.
func (o SignalOutcome) String() string {
	switch o {
	case SignalAlreadyAbsent:
		return "already_absent"
	case SignalTerminated:
		return "terminated"
	default:
		return "signal_error"
	}
}

// GroupSignaler terminates the process group led by pid.
type GroupSignaler interface {
	KillGroup(pid int) (SignalOutcome, error)
}

// ProcessReaper terminates process groups left behind by a job's run script.
type ProcessReaper struct {
	signaler GroupSignaler
	metrics  Metrics
	logger   *zap.Logger
}

// NewProcessReaper returns a reaper using signaler.
func NewProcessReaper(signaler GroupSignaler, metrics Metrics, logger *zap.Logger) *ProcessReaper {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcessReaper{signaler: signaler, metrics: metrics, logger: logger}
}

// Reap signals the job's process group.
//
// Only SignalTerminated is recorded, as a cleanup intervention; the other
// outcomes are logged at debug level. Reap never fails.
func (r *ProcessReaper) Reap(ctx context.Context, jobID string, pid int) SignalOutcome {
	_ = ctx
	log := r.logger.With(zap.String("job_id", jobID), zap.Int("pid", pid))

	if pid <= 1 {
		log.Debug("No process group to clean up")
		return SignalError
	}

	outcome, err := r.signaler.KillGroup(pid)
	switch outcome {
	case SignalTerminated:
		r.metrics.ProcessGroupCleanupFailure()
		log.Warn("Process group was still running after job completion and had to be killed")
	case SignalAlreadyAbsent:
		log.Debug("Process group already gone")
	default:
		log.Debug("Could not signal process group", zap.Error(err))
	}
	return outcome
}
