package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/elvnski/actserv/libs/components/submission"
	"github.com/elvnski/actserv/libs/shared/mail"
	"github.com/elvnski/actserv/libs/shared/mq"
	"github.com/elvnski/actserv/libs/shared/observability"
)

// Store is the subset of the submission repository the notifier needs.
type Store interface {
	FindByID(ctx context.Context, id uint) (*submission.Submission, error)
	MarkNotified(ctx context.Context, id uint) error
}

// Notifier emails administrators about new submissions.
type Notifier struct {
	store     Store
	sender    mail.Sender
	formatter Formatter
}

// NewNotifier constructs a notifier.
func NewNotifier(store Store, sender mail.Sender, formatter Formatter) *Notifier {
	return &Notifier{store: store, sender: sender, formatter: formatter}
}

// Notify sends the notification for one submission. Missing submissions and
// send failures are logged and swallowed; neither is retried. Only a
// successful send marks the submission notified.
func (n *Notifier) Notify(ctx context.Context, submissionID uint) error {
	if n == nil || n.store == nil || n.sender == nil {
		return fmt.Errorf("notifier not initialised")
	}

	sub, err := n.store.FindByID(ctx, submissionID)
	if err != nil {
		if submission.IsNotFound(err) {
			observability.Notifications.WithLabelValues("missing").Inc()
			slog.Warn("notification skipped, submission not found", "submission_id", submissionID)
			return nil
		}
		return err
	}

	if sub.IsNotified {
		slog.Info("submission already notified", "submission_id", submissionID)
		return nil
	}

	msg := n.formatter.Render(sub)
	if err := n.sender.Send(ctx, msg); err != nil {
		observability.Notifications.WithLabelValues("send_failed").Inc()
		slog.Error("failed to send notification", "submission_id", submissionID, "err", err)
		return nil
	}

	if err := n.store.MarkNotified(ctx, submissionID); err != nil {
		slog.Error("notification sent but flag not saved", "submission_id", submissionID, "err", err)
		return err
	}

	observability.Notifications.WithLabelValues("sent").Inc()
	slog.Info("notification sent", "submission_id", submissionID, "recipients", len(msg.To))
	return nil
}

// HandleMessage consumes a notification request from Kafka. Malformed
// messages are logged and dropped.
func (n *Notifier) HandleMessage(ctx context.Context, msg mq.Message) error {
	id, err := submission.DecodeNotifyPayload(msg.Value)
	if err != nil {
		slog.Warn("dropping malformed notification message", "key", string(msg.Key), "err", err)
		return nil
	}
	return n.Notify(ctx, id)
}

// HandleTask processes a submission:notify asynq task.
func (n *Notifier) HandleTask(ctx context.Context, task *asynq.Task) error {
	id, err := submission.DecodeNotifyPayload(task.Payload())
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return n.Notify(ctx, id)
}

// RegisterTasks binds the notifier to an asynq mux.
func (n *Notifier) RegisterTasks(mux *asynq.ServeMux) {
	mux.HandleFunc(submission.TaskNotify, n.HandleTask)
}
