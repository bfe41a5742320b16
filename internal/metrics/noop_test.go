package metrics

import (
	"testing"
	"time"

	"github.com/3leaps/gogenie/pkg/completion"
)

func TestNoopSink_AllMethods(t *testing.T) {
	// Verify that calling all methods on NoopSink does not panic.
	s := NewNoopSink()

	s.EmailFailure()
	s.ArchivalFailure()
	s.DoneFileProcessingFailure()
	s.FinalStatusUpdateFailure()
	s.ProcessGroupCleanupFailure()
	for _, stage := range completion.Stages {
		s.StageDuration(stage, time.Millisecond)
	}

	s.EventsInFlightIncr()
	s.EventsInFlightDecr()

	s.BufferSizeUpdate(10)
	s.EmitError()
}

func TestStageLabel(t *testing.T) {
	if got := stageLabel(""); got != "unknown" {
		t.Errorf("stageLabel(\"\") = %q, want unknown", got)
	}
	if got := stageLabel(completion.StageCleanup); got != "cleanup" {
		t.Errorf("stageLabel(cleanup) = %q", got)
	}
}
