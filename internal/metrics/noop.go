package metrics

import (
	"time"

	"github.com/3leaps/gogenie/pkg/completion"
)

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) EmailFailure()                                         {}
func (n *NoopSink) ArchivalFailure()                                      {}
func (n *NoopSink) DoneFileProcessingFailure()                            {}
func (n *NoopSink) FinalStatusUpdateFailure()                             {}
func (n *NoopSink) ProcessGroupCleanupFailure()                           {}
func (n *NoopSink) StageDuration(stage completion.Stage, d time.Duration) {}
func (n *NoopSink) EventsInFlightIncr()                                   {}
func (n *NoopSink) EventsInFlightDecr()                                   {}
func (n *NoopSink) BufferSizeUpdate(size int)                             {}
func (n *NoopSink) EmitError()                                            {}
