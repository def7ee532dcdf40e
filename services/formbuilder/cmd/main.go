package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	formcmp "github.com/elvnski/actserv/libs/components/form"
	submissioncmp "github.com/elvnski/actserv/libs/components/submission"

	"github.com/elvnski/actserv/libs/shared/config"
	"github.com/elvnski/actserv/libs/shared/httpx"
	"github.com/elvnski/actserv/libs/shared/logging"
	"github.com/elvnski/actserv/libs/shared/observability"
	"github.com/elvnski/actserv/services/formbuilder/internal/bootstrap"
)

func main() {
	cfg := config.Load()
	logging.Init("formbuilder")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := bootstrap.OpenDatabase(cfg, "formbuilder")
	if err != nil {
		fatal("formbuilder: database", err)
	}

	store, err := bootstrap.OpenStore(cfg)
	if err != nil {
		fatal("formbuilder: storage", err)
	}

	scheduler, queue, err := bootstrap.NewScheduler(cfg)
	if err != nil {
		fatal("formbuilder: queue", err)
	}
	defer queue.Close()

	formRepo := formcmp.NewGormRepository(db)
	formHandler := formcmp.NewHandler(formcmp.NewEditor(formRepo))

	service := submissioncmp.NewService(formRepo, submissioncmp.NewGormRepository(db), store, scheduler,
		submissioncmp.WithScheduleTimeout(cfg.NotifyTimeout))
	submissionHandler := submissioncmp.NewHandler(service)

	server := httpx.New()
	formHandler.MountAdmin(server.Router, "")
	formHandler.MountClient(server.Router, "")
	submissionHandler.MountAdmin(server.Router, "")
	submissionHandler.MountClient(server.Router, "")
	observability.RegisterMetricsEndpoint(server.Router)

	if cfg.StorageDriver == config.StorageLocal {
		prefix := "/" + strings.Trim(cfg.MediaURL, "/") + "/"
		server.Router.Handle(prefix+"*", http.StripPrefix(prefix, http.FileServer(http.Dir(cfg.MediaRoot))))
	}

	addr := fmt.Sprintf(":%s", cfg.ResolveHTTPPort("8080"))
	go func() {
		<-ctx.Done()
		if err := server.Shutdown(context.Background()); err != nil {
			slog.Error("formbuilder: shutdown", "err", err)
		}
	}()

	slog.Info("formbuilder listening", "addr", addr, "queue", cfg.QueueDriver, "storage", cfg.StorageDriver)
	if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fatal("formbuilder: server stopped", err)
	}

	service.Wait()
	slog.Info("formbuilder stopped")
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}
