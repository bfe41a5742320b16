package completion

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Message returns the completion message for a job. It is used as both the
// subject and the body of the notification.
func Message(jobID, status string) string {
	return fmt.Sprintf("Job with id [%s] finished with status %s", jobID, status)
}

// Notifier emails the submitter of a job once it has finished.
type Notifier struct {
	search  Search
	mailer  Mailer
	metrics Metrics
	logger  *zap.Logger
}

// NewNotifier returns a notifier sending through mailer.
func NewNotifier(search Search, mailer Mailer, metrics Metrics, logger *zap.Logger) *Notifier {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{search: search, mailer: mailer, metrics: metrics, logger: logger}
}

// Notify sends the completion message if the job request carries an email
// address. There is no retry and no deduplication; a redelivered signal sends
// the message again.
func (n *Notifier) Notify(ctx context.Context, jobID string) Outcome {
	log := n.logger.With(zap.String("job_id", jobID))
	log.Debug("Sending email notification if requested")

	req, err := n.search.GetJobRequest(ctx, jobID)
	if err != nil {
		n.metrics.EmailFailure()
		log.Error("Could not load job request for notification", zap.Error(err))
		return OutcomeFailed
	}
	to := strings.TrimSpace(req.Email)
	if to == "" {
		log.Debug("No email address on job request; skipping notification")
		return OutcomeSkipped
	}

	job, err := n.search.GetJob(ctx, jobID)
	if err != nil {
		n.metrics.EmailFailure()
		log.Error("Could not load job for notification", zap.Error(err))
		return OutcomeFailed
	}

	msg := Message(jobID, job.Status.String())
	if err := n.mailer.SendEmail(ctx, to, msg, msg); err != nil {
		n.metrics.EmailFailure()
		log.Error("Error sending email notification", zap.String("to", to), zap.Error(err))
		return OutcomeFailed
	}

	log.Info("Email notification sent", zap.String("to", to))
	return OutcomeOK
}
