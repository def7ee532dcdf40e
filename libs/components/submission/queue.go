package submission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/hibiken/asynq"

	"github.com/elvnski/actserv/libs/shared/mq"
)

// TaskNotify is the asynq task type carrying a submission notification.
const TaskNotify = "submission:notify"

// Scheduler hands a committed submission to the notification worker.
type Scheduler interface {
	Schedule(ctx context.Context, submissionID uint) error
}

// NotifyPayload is the queued message body.
type NotifyPayload struct {
	SubmissionID uint `json:"submissionId"`
}

// DecodeNotifyPayload parses and checks a queued message body.
func DecodeNotifyPayload(raw []byte) (uint, error) {
	var payload NotifyPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return 0, fmt.Errorf("decode notify payload: %w", err)
	}
	if payload.SubmissionID == 0 {
		return 0, errors.New("submission id missing from payload")
	}
	return payload.SubmissionID, nil
}

// KafkaScheduler publishes notification requests to a Kafka topic.
type KafkaScheduler struct {
	producer *mq.Producer
}

// NewKafkaScheduler wraps a producer bound to the notification topic.
func NewKafkaScheduler(producer *mq.Producer) *KafkaScheduler {
	return &KafkaScheduler{producer: producer}
}

// Schedule publishes {"submissionId": id} keyed by the id.
func (s *KafkaScheduler) Schedule(ctx context.Context, submissionID uint) error {
	if s == nil || s.producer == nil {
		return errors.New("queue producer not configured")
	}
	key := strconv.FormatUint(uint64(submissionID), 10)
	return s.producer.PublishJSON(ctx, key, NotifyPayload{SubmissionID: submissionID}, map[string]string{
		"scheduled_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// Enqueuer is the subset of *asynq.Client used for scheduling.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqScheduler enqueues notification tasks on a Redis-backed asynq queue.
type AsynqScheduler struct {
	client Enqueuer
}

// NewAsynqScheduler wraps an asynq client.
func NewAsynqScheduler(client Enqueuer) *AsynqScheduler {
	return &AsynqScheduler{client: client}
}

// NewNotifyTask builds the asynq task for a submission.
func NewNotifyTask(submissionID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(NotifyPayload{SubmissionID: submissionID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotify, payload), nil
}

// Schedule enqueues one notify task per submission. Tasks are not retried.
func (s *AsynqScheduler) Schedule(ctx context.Context, submissionID uint) error {
	if s == nil || s.client == nil {
		return errors.New("asynq client not configured")
	}
	task, err := NewNotifyTask(submissionID)
	if err != nil {
		return err
	}
	_, err = s.client.EnqueueContext(ctx, task,
		asynq.TaskID(fmt.Sprintf("notify-submission-%d", submissionID)),
		asynq.MaxRetry(0),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// NopScheduler drops notifications; used when no queue is configured.
type NopScheduler struct{}

// Schedule logs and returns nil.
func (NopScheduler) Schedule(_ context.Context, submissionID uint) error {
	slog.Info("notification queue disabled, skipping", "submission_id", submissionID)
	return nil
}
