// Package metrics exports job completion counters.
package metrics

import (
	"time"

	"github.com/3leaps/gogenie/pkg/completion"
)

// Sink records completion, dispatcher and event bus metrics.
// All methods are fire-and-forget: implementations MUST NOT block or propagate errors.
type Sink interface {
	completion.Metrics
	completion.DispatcherMetrics

	// Event bus
	BufferSizeUpdate(size int)
	EmitError()
}

var (
	_ Sink = (*PrometheusSink)(nil)
	_ Sink = (*NoopSink)(nil)
)

// stageLabel is the label value used for a completion stage.
func stageLabel(stage completion.Stage) string {
	if stage == "" {
		return "unknown"
	}
	return string(stage)
}

func seconds(d time.Duration) float64 {
	if d < 0 {
		return 0
	}
	return d.Seconds()
}
