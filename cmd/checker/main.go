// Checker is the remote proof worker: it consumes verification commands,
// scans platform content for challenge tokens, and publishes results.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"tunelink/internal/checker"
	"tunelink/internal/checker/credentials"
	"tunelink/internal/checker/platformapi"
	"tunelink/internal/linkedaccount/messages"
	"tunelink/internal/platform/config"
	"tunelink/internal/platform/httpserver"
	"tunelink/internal/platform/kafka/consumer"
	"tunelink/internal/platform/kafka/producer"
	"tunelink/internal/platform/logger"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()
	log := logger.New("tunelink-checker")

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("checker exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := platformapi.New(cfg.Checker.APIBaseURL, cfg.Checker.AuthURL)
	pool, err := credentials.New(cfg.Checker.Credentials, api)
	if err != nil {
		return fmt.Errorf("build credential pool: %w", err)
	}

	if err := producer.EnsureTopics(ctx, cfg.Kafka, messages.TopicVerifyCommand, messages.TopicVerifyResult); err != nil {
		return fmt.Errorf("ensure topics: %w", err)
	}
	publisher, err := producer.New(cfg.Kafka, log)
	if err != nil {
		return fmt.Errorf("create producer: %w", err)
	}
	defer publisher.Close()

	commands, err := consumer.New(cfg.Kafka, cfg.Kafka.ConsumerGroup+"-checker",
		[]string{messages.TopicVerifyCommand},
		checker.New(pool, api, publisher, log), log)
	if err != nil {
		return fmt.Errorf("create command consumer: %w", err)
	}

	// Small ops surface so the worker can be probed and scraped.
	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.Handler())
	srv := httpserver.New(cfg.Server.Addr, router)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("command consumer started", "topic", messages.TopicVerifyCommand, "pool_size", pool.Size())
		return commands.Run(ctx)
	})
	group.Go(func() error {
		log.Info("ops server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("checker stopped")
	return nil
}
