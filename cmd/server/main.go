// Server is the coordinator-facing process: it serves the linked-account HTTP
// API and runs the result consumer that folds verification outcomes back into
// the event log.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	resultconsumer "tunelink/internal/linkedaccount/consumer"
	"tunelink/internal/linkedaccount/handler"
	"tunelink/internal/linkedaccount/messages"
	"tunelink/internal/linkedaccount/metrics"
	"tunelink/internal/linkedaccount/service"
	eventstore "tunelink/internal/linkedaccount/store/event"
	lockstore "tunelink/internal/linkedaccount/store/lock"
	tokenstore "tunelink/internal/linkedaccount/store/token"
	"tunelink/internal/platform/config"
	"tunelink/internal/platform/httpserver"
	"tunelink/internal/platform/kafka/consumer"
	"tunelink/internal/platform/kafka/producer"
	"tunelink/internal/platform/logger"
	platformredis "tunelink/internal/platform/redis"
	userstore "tunelink/internal/user/store"
	"tunelink/pkg/platform/middleware"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()
	log := logger.New("tunelink-server")

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		events service.EventStore
		users  service.UserStore
	)
	if cfg.Postgres.URL != "" {
		db, err := sql.Open("postgres", cfg.Postgres.URL)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		events = eventstore.NewPostgres(db)
		users = userstore.NewPostgres(db)
	} else {
		log.Warn("postgres url not configured, using in-memory stores")
		events = eventstore.NewMemory()
		users = userstore.NewMemory()
	}

	var (
		tokens service.TokenStore
		locks  service.LockStore
	)
	if cfg.Redis.URL != "" {
		redisClient, err := platformredis.New(cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisClient.Close()
		tokens = tokenstore.NewRedis(redisClient.Client)
		locks = lockstore.NewRedis(redisClient.Client)
	} else {
		log.Warn("redis url not configured, using in-memory token and lock stores")
		tokens = tokenstore.NewMemory()
		locks = lockstore.NewMemory()
	}

	if err := producer.EnsureTopics(ctx, cfg.Kafka, messages.TopicVerifyCommand, messages.TopicVerifyResult); err != nil {
		return fmt.Errorf("ensure topics: %w", err)
	}
	publisher, err := producer.New(cfg.Kafka, log)
	if err != nil {
		return fmt.Errorf("create producer: %w", err)
	}
	defer publisher.Close()

	m := metrics.New()
	svc := service.New(service.Deps{
		Events:    events,
		Users:     users,
		Tokens:    tokens,
		Locks:     locks,
		Publisher: publisher,
		Metrics:   m,
		Logger:    log,
	})

	results, err := consumer.New(cfg.Kafka, cfg.Kafka.ConsumerGroup+"-results",
		[]string{messages.TopicVerifyResult},
		resultconsumer.NewResultHandler(events, users, m, log), log)
	if err != nil {
		return fmt.Errorf("create result consumer: %w", err)
	}

	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.Handler())
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequestMetadata, middleware.RequireUser)
		handler.New(svc, log).Register(r)
	})

	srv := httpserver.New(cfg.Server.Addr, router)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("http server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		log.Info("result consumer started", "topic", messages.TopicVerifyResult)
		return results.Run(ctx)
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
	log.Info("server stopped")
	return nil
}
