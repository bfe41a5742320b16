package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/3leaps/gogenie/pkg/completion"
)

// Metric names. The counters are process-wide and never reset.
const (
	NameEmailFailure               = "genie_jobs_email_failure_total"
	NameArchivalFailure            = "genie_jobs_archival_failure_total"
	NameDoneFileProcessingFailure  = "genie_jobs_done_file_processing_failure_total"
	NameFinalStatusUpdateFailure   = "genie_jobs_final_status_update_failure_total"
	NameProcessGroupCleanupFailure = "genie_jobs_process_group_cleanup_failure_total"
	NameStageDuration              = "genie_jobs_completion_stage_duration_seconds"
	NameEventsInFlight             = "genie_jobs_completion_events_in_flight"
	NameBufferSize                 = "genie_jobs_eventbus_buffer_size"
	NameEmitErrors                 = "genie_jobs_eventbus_emit_errors_total"
)

// PrometheusSink implements Sink using Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	logger *zap.Logger

	// Completion metrics
	emailFailure               prometheus.Counter
	archivalFailure            prometheus.Counter
	doneFileProcessingFailure  prometheus.Counter
	finalStatusUpdateFailure   prometheus.Counter
	processGroupCleanupFailure prometheus.Counter
	stageDuration              *prometheus.HistogramVec

	// Dispatcher metrics
	eventsInFlight prometheus.Gauge

	// EventBus metrics
	bufferSize      prometheus.Gauge
	emitErrorsTotal prometheus.Counter
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// If registration fails, it logs a warning and returns a functional sink.
func NewPrometheusSink(reg prometheus.Registerer, logger *zap.Logger) *PrometheusSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &PrometheusSink{logger: logger}
	s.initCompletionMetrics(reg)
	s.initDispatcherMetrics(reg)
	s.initEventBusMetrics(reg)
	return s
}

func (s *PrometheusSink) initCompletionMetrics(reg prometheus.Registerer) {
	s.emailFailure = prometheus.NewCounter(prometheus.CounterOpts{
		Name: NameEmailFailure,
		Help: "Total number of completion notifications that could not be sent.",
	})
	s.archivalFailure = prometheus.NewCounter(prometheus.CounterOpts{
		Name: NameArchivalFailure,
		Help: "Total number of job directories that could not be archived or uploaded.",
	})
	s.doneFileProcessingFailure = prometheus.NewCounter(prometheus.CounterOpts{
		Name: NameDoneFileProcessingFailure,
		Help: "Total number of finished jobs whose done file was missing or malformed.",
	})
	s.finalStatusUpdateFailure = prometheus.NewCounter(prometheus.CounterOpts{
		Name: NameFinalStatusUpdateFailure,
		Help: "Total number of finished jobs whose terminal status could not be persisted.",
	})
	s.processGroupCleanupFailure = prometheus.NewCounter(prometheus.CounterOpts{
		Name: NameProcessGroupCleanupFailure,
		Help: "Total number of finished jobs whose process group was still alive and had to be killed.",
	})
	s.stageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    NameStageDuration,
		Help:    "Duration of each completion stage in seconds.",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
	}, []string{"stage"})

	s.register(reg, s.emailFailure, NameEmailFailure)
	s.register(reg, s.archivalFailure, NameArchivalFailure)
	s.register(reg, s.doneFileProcessingFailure, NameDoneFileProcessingFailure)
	s.register(reg, s.finalStatusUpdateFailure, NameFinalStatusUpdateFailure)
	s.register(reg, s.processGroupCleanupFailure, NameProcessGroupCleanupFailure)
	s.register(reg, s.stageDuration, NameStageDuration)
}

func (s *PrometheusSink) initDispatcherMetrics(reg prometheus.Registerer) {
	s.eventsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: NameEventsInFlight,
		Help: "Number of completion signals currently being processed.",
	})
	s.register(reg, s.eventsInFlight, NameEventsInFlight)
}

func (s *PrometheusSink) initEventBusMetrics(reg prometheus.Registerer) {
	s.bufferSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: NameBufferSize,
		Help: "Current number of completion signals in the event bus buffer.",
	})
	s.emitErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: NameEmitErrors,
		Help: "Total number of completion signals rejected by the event bus.",
	})

	s.register(reg, s.bufferSize, NameBufferSize)
	s.register(reg, s.emitErrorsTotal, NameEmitErrors)
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if reg == nil {
		return
	}
	if err := reg.Register(c); err != nil {
		s.logger.Warn("Failed to register metric", zap.String("metric", name), zap.Error(err))
	}
}

// Completion metrics implementation

func (s *PrometheusSink) EmailFailure() {
	s.emailFailure.Inc()
}

func (s *PrometheusSink) ArchivalFailure() {
	s.archivalFailure.Inc()
}

func (s *PrometheusSink) DoneFileProcessingFailure() {
	s.doneFileProcessingFailure.Inc()
}

func (s *PrometheusSink) FinalStatusUpdateFailure() {
	s.finalStatusUpdateFailure.Inc()
}

func (s *PrometheusSink) ProcessGroupCleanupFailure() {
	s.processGroupCleanupFailure.Inc()
}

func (s *PrometheusSink) StageDuration(stage completion.Stage, d time.Duration) {
	s.stageDuration.WithLabelValues(stageLabel(stage)).Observe(seconds(d))
}

// Dispatcher metrics implementation

func (s *PrometheusSink) EventsInFlightIncr() {
	s.eventsInFlight.Inc()
}

func (s *PrometheusSink) EventsInFlightDecr() {
	s.eventsInFlight.Dec()
}

// EventBus metrics implementation

func (s *PrometheusSink) BufferSizeUpdate(size int) {
	s.bufferSize.Set(float64(size))
}

func (s *PrometheusSink) EmitError() {
	s.emitErrorsTotal.Inc()
}
