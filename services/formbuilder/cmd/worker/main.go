package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	notificationcmp "github.com/elvnski/actserv/libs/components/notification"
	submissioncmp "github.com/elvnski/actserv/libs/components/submission"

	"github.com/elvnski/actserv/libs/shared/config"
	"github.com/elvnski/actserv/libs/shared/logging"
	"github.com/elvnski/actserv/libs/shared/mail"
	"github.com/elvnski/actserv/libs/shared/mq"
	"github.com/elvnski/actserv/services/formbuilder/internal/bootstrap"
)

func main() {
	cfg := config.Load()
	logging.Init("formbuilder-worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := bootstrap.OpenDatabase(cfg, "formbuilder-worker")
	if err != nil {
		fatal("notification worker: database", err)
	}

	sender, err := mail.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass)
	if err != nil {
		fatal("notification worker: mail", err)
	}

	formatter := notificationcmp.NewFormatter(cfg.FromEmail, cfg.AdminEmails)
	if store, err := bootstrap.OpenStore(cfg); err == nil {
		formatter.Link = store.URL
	} else {
		slog.Warn("notification worker: attachment links disabled", "err", err)
	}

	notifier := notificationcmp.NewNotifier(submissioncmp.NewGormRepository(db), sender, formatter)

	switch cfg.QueueDriver {
	case config.QueueKafka:
		err = runKafka(ctx, cfg, notifier)
	case config.QueueAsynq:
		err = runAsynq(ctx, cfg, notifier)
	default:
		err = fmt.Errorf("queue driver %q has no worker", cfg.QueueDriver)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		fatal("notification worker stopped", err)
	}

	slog.Info("notification worker stopped")
}

func runKafka(ctx context.Context, cfg *config.AppConfig, notifier *notificationcmp.Notifier) error {
	consumer, err := mq.NewConsumer(mq.ConsumerConfig{
		Brokers:  cfg.KafkaBrokerList(),
		Topic:    cfg.NotifyTopic,
		GroupID:  cfg.NotifyGroup,
		ClientID: fmt.Sprintf("%s-notifier", cfg.ServiceName),
	}, notifier.HandleMessage)
	if err != nil {
		return err
	}
	defer consumer.Close()

	slog.Info("notification worker consuming", "topic", cfg.NotifyTopic, "group", cfg.NotifyGroup)
	return consumer.Run(ctx)
}

func runAsynq(ctx context.Context, cfg *config.AppConfig, notifier *notificationcmp.Notifier) error {
	srv := asynq.NewServer(asynq.RedisClientOpt{Addr: cfg.RedisAddr}, asynq.Config{
		Concurrency: 5,
		Queues:      map[string]int{"default": 1},
	})

	mux := asynq.NewServeMux()
	notifier.RegisterTasks(mux)

	if err := srv.Start(mux); err != nil {
		return err
	}
	slog.Info("notification worker processing asynq tasks", "redis", cfg.RedisAddr)

	<-ctx.Done()
	srv.Shutdown()
	return nil
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}
