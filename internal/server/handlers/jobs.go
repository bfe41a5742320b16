package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/3leaps/gogenie/internal/errors"
	"github.com/3leaps/gogenie/internal/transport/channel"
	"github.com/3leaps/gogenie/pkg/completion"
)

const maxFinishedBody = 64 << 10

// Emitter queues finished events without blocking.
type Emitter interface {
	TryEmit(event completion.FinishedEvent) error
}

// FinishedRequest is the body of POST /v1/jobs/{jobID}/finished.
type FinishedRequest struct {
	PID int `json:"pid"`
}

// FinishedResponse acknowledges a queued event.
type FinishedResponse struct {
	EventID string `json:"event_id"`
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
}

// JobsHandler accepts job-finished notifications and queues them for the
// completion pipeline.
type JobsHandler struct {
	emitter Emitter
	logger  *zap.Logger
}

// NewJobsHandler returns a handler queueing onto emitter.
func NewJobsHandler(emitter Emitter, logger *zap.Logger) *JobsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobsHandler{emitter: emitter, logger: logger}
}

// Finished handles POST /v1/jobs/{jobID}/finished.
func (h *JobsHandler) Finished(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimSpace(chi.URLParam(r, "jobID"))
	if jobID == "" {
		respondWithError(w, r, apperrors.NewValidationError("job id is required"))
		return
	}

	var req FinishedRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxFinishedBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respondWithError(w, r, apperrors.NewValidationError("invalid request body").
			WithDetails(map[string]any{"reason": err.Error()}))
		return
	}
	if req.PID <= 0 {
		respondWithError(w, r, apperrors.NewValidationError("pid must be a positive integer").
			WithDetails(map[string]any{"field": "pid"}))
		return
	}

	ev := completion.FinishedEvent{ID: uuid.NewString(), JobID: jobID, PID: req.PID}
	if err := h.emitter.TryEmit(ev); err != nil {
		h.logger.Warn("Rejected finished event",
			zap.String("job_id", jobID),
			zap.Int("pid", req.PID),
			zap.Error(err))
		if errors.Is(err, channel.ErrBufferFull) || errors.Is(err, channel.ErrClosed) {
			respondWithError(w, r, apperrors.NewServiceUnavailableError("completion queue unavailable", err))
			return
		}
		respondWithError(w, r, apperrors.WrapInternal(err, "failed to queue event"))
		return
	}

	h.logger.Info("Queued finished event",
		zap.String("event_id", ev.ID),
		zap.String("job_id", jobID),
		zap.Int("pid", req.PID))
	apperrors.WriteJSON(w, http.StatusAccepted, FinishedResponse{EventID: ev.ID, JobID: jobID, Status: "accepted"})
}
