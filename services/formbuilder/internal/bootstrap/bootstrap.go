// Package bootstrap builds the infrastructure shared by the API and the
// notification worker from configuration.
package bootstrap

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"github.com/elvnski/actserv/libs/components/form"
	"github.com/elvnski/actserv/libs/components/submission"
	"github.com/elvnski/actserv/libs/shared/config"
	"github.com/elvnski/actserv/libs/shared/database"
	"github.com/elvnski/actserv/libs/shared/mq"
	"github.com/elvnski/actserv/libs/shared/storage"
)

// Models returns every persisted model in migration order.
func Models() []any {
	return append(form.Models(), submission.Models()...)
}

// OpenDatabase connects and migrates the schema.
func OpenDatabase(cfg *config.AppConfig, service string) (*gorm.DB, error) {
	db := database.ConnectWithDSN(service, cfg.DatabaseDSN)
	if err := database.Migrate(db, Models()...); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

// OpenStore selects the attachment store named by STORAGE_DRIVER.
func OpenStore(cfg *config.AppConfig) (storage.Store, error) {
	switch cfg.StorageDriver {
	case config.StorageOSS:
		return storage.NewOSSStore(storage.OSSConfig{
			Endpoint:   cfg.OSSEndpoint,
			AccessKey:  cfg.OSSAccessKey,
			SecretKey:  cfg.OSSSecretKey,
			Bucket:     cfg.OSSBucket,
			PublicBase: cfg.OSSPublicBase,
		})
	case config.StorageLocal, "":
		return storage.NewLocalStore(cfg.MediaRoot, cfg.MediaURL)
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}

// NewScheduler selects the notification queue named by QUEUE_DRIVER. The
// returned closer releases the queue client.
func NewScheduler(cfg *config.AppConfig) (submission.Scheduler, io.Closer, error) {
	switch cfg.QueueDriver {
	case config.QueueKafka:
		brokers := cfg.KafkaBrokerList()
		if len(brokers) == 0 || strings.TrimSpace(cfg.NotifyTopic) == "" {
			return nil, nil, fmt.Errorf("kafka brokers/topic must be configured (brokers=%v topic=%s)", brokers, cfg.NotifyTopic)
		}
		producer, err := mq.NewProducer(mq.ProducerConfig{
			Brokers:  brokers,
			Topic:    cfg.NotifyTopic,
			ClientID: cfg.ServiceName,
		})
		if err != nil {
			return nil, nil, err
		}
		return submission.NewKafkaScheduler(producer), producer, nil
	case config.QueueAsynq:
		client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		return submission.NewAsynqScheduler(client), client, nil
	case config.QueueNone:
		slog.Warn("notification queue disabled")
		return submission.NopScheduler{}, nopCloser{}, nil
	}
	return nil, nil, fmt.Errorf("unknown queue driver %q", cfg.QueueDriver)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
