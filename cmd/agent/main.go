package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/classpad-app/classpad-sync/internal/agent"
	"github.com/classpad-app/classpad-sync/internal/api"
	"github.com/classpad-app/classpad-sync/internal/auth"
	"github.com/classpad-app/classpad-sync/internal/cache"
	"github.com/classpad-app/classpad-sync/internal/config"
	"github.com/classpad-app/classpad-sync/internal/poll"
	"github.com/classpad-app/classpad-sync/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	tokens := auth.NewSource(cfg.APIToken)
	identity, err := tokens.Identity()
	if err != nil {
		log.Fatalf("failed to read credential: %v", err)
	}

	client := api.NewClient(cfg.APIBaseURL, tokens, logger)
	validate := validator.New(validator.WithRequiredStructEnabled())

	opts := store.Options{WordLimit: cfg.WordLimit}

	var snapshots *cache.Snapshot
	if cfg.RedisURL != "" {
		redisClient, err := cache.Connect(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()

		snapshots = cache.NewSnapshot(redisClient, "classpad:tasks:"+identity.UserID, cfg.SnapshotTTL, logger)
		opts.Snapshots = snapshots
	}

	if cfg.NATSURL != "" {
		conn, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer conn.Close()

		opts.NATS = conn
		opts.NATSSubject = cfg.NATSSubject
	}

	taskStore := store.New(client, tokens, validate, logger, opts)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if snapshots != nil {
		if tasks, ok, err := snapshots.Load(ctx); err != nil {
			logger.Warn().Err(err).Msg("failed to load task snapshot")
		} else if ok {
			taskStore.Warm(tasks)
			logger.Info().Int("count", len(tasks)).Msg("warmed task cache from snapshot")
		}
	}

	poller := poll.New(logger)
	poller.Add(poll.Job{
		Name:     "task_list",
		Interval: cfg.TaskPollInterval,
		Run: func(ctx context.Context) error {
			return taskStore.LoadTasks(ctx, cfg.ClassroomID)
		},
	})
	poller.Add(poll.Job{
		Name:     "my_submission",
		Interval: cfg.SubmissionInterval,
		Run: func(ctx context.Context) error {
			return refreshSubmissions(ctx, taskStore)
		},
	})
	poller.Add(poll.Job{
		Name:     "group_thread",
		Interval: cfg.GroupPollInterval,
		Run: func(ctx context.Context) error {
			return refreshGroupThreads(ctx, taskStore)
		},
	})
	poller.Start(ctx)

	statusHandler := agent.NewStatusHandler(taskStore, tokens, cfg.DueSoonLookahead, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})
	agent.Register(app, cfg, logger, agent.Dependencies{StatusHandler: statusHandler})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("agent stopped")
}

func refreshSubmissions(ctx context.Context, taskStore *store.TaskStore) error {
	var firstErr error
	for _, task := range taskStore.Tasks() {
		if err := taskStore.LoadMySubmission(ctx, task.ID); err != nil {
			if errors.Is(err, store.ErrTaskNotFound) {
				continue
			}
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func refreshGroupThreads(ctx context.Context, taskStore *store.TaskStore) error {
	var firstErr error
	for _, task := range taskStore.Tasks() {
		if err := taskStore.RefreshGroupThread(ctx, task.ID); err != nil {
			// Not every task is open to the caller yet; skip those.
			if errors.Is(err, store.ErrInteractionDisabled) || errors.Is(err, store.ErrTaskNotFound) {
				continue
			}
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
