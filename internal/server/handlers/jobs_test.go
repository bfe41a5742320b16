package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/3leaps/gogenie/internal/errors"
	"github.com/3leaps/gogenie/internal/transport/channel"
	"github.com/3leaps/gogenie/pkg/completion"
)

type recordingEmitter struct {
	events []completion.FinishedEvent
	err    error
}

func (e *recordingEmitter) TryEmit(ev completion.FinishedEvent) error {
	if e.err != nil {
		return e.err
	}
	e.events = append(e.events, ev)
	return nil
}

func serveFinished(h *JobsHandler, jobID, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Post("/v1/jobs/{jobID}/finished", h.Finished)
	req := httptest.NewRequest(http.MethodPost, "/v1/jobs/"+jobID+"/finished", strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestFinished_Accepted(t *testing.T) {
	em := &recordingEmitter{}
	rec := serveFinished(NewJobsHandler(em, nil), "job-1", `{"pid":4242}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp FinishedResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "job-1", resp.JobID)
	assert.Equal(t, "accepted", resp.Status)
	assert.NotEmpty(t, resp.EventID)

	require.Len(t, em.events, 1)
	assert.Equal(t, completion.FinishedEvent{ID: resp.EventID, JobID: "job-1", PID: 4242}, em.events[0])
}

func TestFinished_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		jobID string
		body  string
	}{
		{"blank job id", "%20", `{"pid":1}`},
		{"malformed body", "job-1", `{"pid":`},
		{"unknown field", "job-1", `{"pid":1,"x":2}`},
		{"zero pid", "job-1", `{"pid":0}`},
		{"negative pid", "job-1", `{"pid":-5}`},
		{"missing pid", "job-1", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			em := &recordingEmitter{}
			rec := serveFinished(NewJobsHandler(em, nil), tt.jobID, tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var body apperrors.HTTPErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
			assert.Empty(t, em.events)
		})
	}
}

func TestFinished_QueueUnavailable(t *testing.T) {
	for _, err := range []error{channel.ErrBufferFull, channel.ErrClosed} {
		rec := serveFinished(NewJobsHandler(&recordingEmitter{err: err}, nil), "job-1", `{"pid":7}`)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var body apperrors.HTTPErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "SERVICE_UNAVAILABLE", body.Error.Code)
	}
}

func TestFinished_UnexpectedEmitError(t *testing.T) {
	rec := serveFinished(NewJobsHandler(&recordingEmitter{err: assert.AnError}, nil), "job-1", `{"pid":7}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestFinished_WithEventBus(t *testing.T) {
	bus := channel.NewEventBus(1)
	defer bus.Close()
	h := NewJobsHandler(bus, nil)

	first := serveFinished(h, "job-1", `{"pid":10}`)
	second := serveFinished(h, "job-2", `{"pid":11}`)

	assert.Equal(t, http.StatusAccepted, first.Code)
	assert.Equal(t, http.StatusServiceUnavailable, second.Code)

	ev := <-bus.Channel()
	assert.Equal(t, "job-1", ev.JobID)
	assert.Equal(t, 10, ev.PID)
	assert.False(t, ev.ReceivedAt.IsZero())
}
