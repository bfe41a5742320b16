package completion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Stage names one step of the pipeline.
type Stage string

const (
	StageStatus  Stage = "status"
	StageCleanup Stage = "cleanup"
	StageArchive Stage = "archive"
	StageNotify  Stage = "notify"
)

// Stages lists the pipeline stages in execution order.
var Stages = []Stage{StageStatus, StageCleanup, StageArchive, StageNotify}

// Outcome is the result of one stage.
type Outcome string

const (
	// OutcomeOK means the stage did its work.
	OutcomeOK Outcome = "ok"

	// OutcomeFallback means status resolution could not read the done file
	// and the job was marked failed instead.
	OutcomeFallback Outcome = "fallback"

	// OutcomeSkipped means the stage had nothing to do.
	OutcomeSkipped Outcome = "skipped"

	// OutcomeFailed means the stage failed. The failure has been counted and
	// logged.
	OutcomeFailed Outcome = "failed"
)

// State is the position of one run in the pipeline.
type State int

const (
	StateStarted State = iota
	StateStatusResolved
	StateCleaned
	StateArchived
	StateNotified
	StateDone
)

func (s State) String() string {
	switch s {
	case StateStarted:
		return "started"
	case StateStatusResolved:
		return "statusResolved"
	case StateCleaned:
		return "cleaned"
	case StateArchived:
		return "archived"
	case StateNotified:
		return "notified"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Summary describes one completed run.
type Summary struct {
	JobID    string
	State    State
	Outcomes map[Stage]Outcome
	Duration time.Duration
}

// Deps holds the collaborators of an Orchestrator.
type Deps struct {
	Persistence Persistence
	Search      Search
	Transfer    FileTransfer
	Mailer      Mailer
	Signaler    GroupSignaler
	Metrics     Metrics
	Logger      *zap.Logger
}

// Config configures an Orchestrator.
type Config struct {
	// BaseWorkingDir is the directory holding one working directory per job.
	BaseWorkingDir string

	// ArchiveExcludes are extra doublestar patterns left out of archives.
	ArchiveExcludes []string
}

// Orchestrator runs the completion pipeline for finished jobs.
//
// It is safe for concurrent use; runs for distinct jobs share nothing but the
// metrics sink.
type Orchestrator struct {
	resolver *StatusResolver
	reaper   *ProcessReaper
	archiver *Archiver
	notifier *Notifier
	metrics  Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// New builds an Orchestrator. The base working directory is made absolute and
// symlinks in it are resolved.
func New(deps Deps, cfg Config) (*Orchestrator, error) {
	switch {
	case deps.Persistence == nil:
		return nil, errors.New("completion: persistence is required")
	case deps.Search == nil:
		return nil, errors.New("completion: search is required")
	case deps.Transfer == nil:
		return nil, errors.New("completion: file transfer is required")
	case deps.Mailer == nil:
		return nil, errors.New("completion: mailer is required")
	}

	baseDir, err := canonicalDir(cfg.BaseWorkingDir)
	if err != nil {
		return nil, err
	}

	metrics := deps.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	signaler := deps.Signaler
	if signaler == nil {
		signaler = UnixSignaler{}
	}

	archiver, err := NewArchiver(baseDir, deps.Search, deps.Transfer, cfg.ArchiveExcludes, metrics, logger)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		resolver: NewStatusResolver(baseDir, deps.Persistence, metrics, logger),
		reaper:   NewProcessReaper(signaler, metrics, logger),
		archiver: archiver,
		notifier: NewNotifier(deps.Search, deps.Mailer, metrics, logger),
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}, nil
}

func canonicalDir(dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", errors.New("completion: base working directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("completion: resolve base working directory: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return abs, nil
		}
		return "", fmt.Errorf("completion: resolve base working directory: %w", err)
	}
	return resolved, nil
}

// Handle runs every stage for the job named in ev, in order. A failing or
// panicking stage does not stop the stages after it. Handle never fails; the
// returned Summary reports what each stage did.
func (o *Orchestrator) Handle(ctx context.Context, ev FinishedEvent) Summary {
	start := o.now()
	log := o.logger.With(zap.String("job_id", ev.JobID), zap.Int("pid", ev.PID))
	if ev.ID != "" {
		log = log.With(zap.String("event_id", ev.ID))
	}
	log.Info("Job finished; starting completion")

	sum := Summary{
		JobID:    ev.JobID,
		State:    StateStarted,
		Outcomes: make(map[Stage]Outcome, len(Stages)),
	}

	if strings.TrimSpace(ev.JobID) == "" {
		log.Error("Completion signal has no job id; ignoring")
		sum.Duration = o.now().Sub(start)
		return sum
	}

	sum.Outcomes[StageStatus] = o.run(log, StageStatus, func() Outcome {
		return o.resolver.Resolve(ctx, ev.JobID)
	})
	sum.State = StateStatusResolved

	sum.Outcomes[StageCleanup] = o.run(log, StageCleanup, func() Outcome {
		if o.reaper.Reap(ctx, ev.JobID, ev.PID) == SignalTerminated {
			return OutcomeOK
		}
		return OutcomeSkipped
	})
	sum.State = StateCleaned

	sum.Outcomes[StageArchive] = o.run(log, StageArchive, func() Outcome {
		return o.archiver.Archive(ctx, ev.JobID)
	})
	sum.State = StateArchived

	sum.Outcomes[StageNotify] = o.run(log, StageNotify, func() Outcome {
		return o.notifier.Notify(ctx, ev.JobID)
	})
	sum.State = StateNotified

	sum.State = StateDone
	sum.Duration = o.now().Sub(start)
	log.Info("Job completion finished",
		zap.String("status", string(sum.Outcomes[StageStatus])),
		zap.String("archive", string(sum.Outcomes[StageArchive])),
		zap.String("notify", string(sum.Outcomes[StageNotify])),
		zap.Duration("duration", sum.Duration))
	return sum
}

// run executes one stage, converting a panic into OutcomeFailed.
func (o *Orchestrator) run(log *zap.Logger, stage Stage, fn func() Outcome) (outcome Outcome) {
	start := o.now()
	defer func() {
		if r := recover(); r != nil {
			log.Error("Completion stage panicked",
				zap.String("stage", string(stage)),
				zap.Any("panic", r),
				zap.Stack("stack"))
			o.countPanic(stage)
			outcome = OutcomeFailed
		}
		o.metrics.StageDuration(stage, o.now().Sub(start))
	}()
	return fn()
}

// countPanic records a panicking stage on the counter owned by that stage.
func (o *Orchestrator) countPanic(stage Stage) {
	switch stage {
	case StageStatus:
		o.metrics.FinalStatusUpdateFailure()
	case StageArchive:
		o.metrics.ArchivalFailure()
	case StageNotify:
		o.metrics.EmailFailure()
	}
}
