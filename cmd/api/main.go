package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"cleanflow/appointment"
	"cleanflow/auth"
	"cleanflow/config"
	"cleanflow/db"
	"cleanflow/dispute"
	"cleanflow/outbox"
	"cleanflow/pii"
	"cleanflow/sweep"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(*configPath, logger); err != nil {
		logger.Error("api exited", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{MaxConns: cfg.MaxDBConns})
	if err != nil {
		return fmt.Errorf("bootstrap database pool: %w", err)
	}
	defer pool.Close()

	codec, err := pii.NewAEADCodec([]byte(cfg.PIISecret))
	if err != nil {
		return fmt.Errorf("bootstrap pii codec: %w", err)
	}
	tokens, err := auth.NewService(cfg.JWTSecret)
	if err != nil {
		return fmt.Errorf("bootstrap auth: %w", err)
	}

	disputes := dispute.NewService(
		dispute.NewRepository(pool),
		appointment.NewRepository(pool),
		codec,
		logger,
	).WithWindow(cfg.DisputeWindow).WithPolicy(cfg.Pricing)

	sweeper := sweep.New(logger, disputes, cfg.SweepInterval)
	if cfg.RedisURL != "" {
		rdb, err := sweep.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		sweeper.WithLocker(sweep.NewRedisLocker(rdb, sweep.DefaultLockKey))
	}

	var publisher outbox.Publisher = outbox.NewLogPublisher(logger)
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := outbox.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaPrefix)
		if err != nil {
			return err
		}
		defer kp.Close()
		publisher = kp
	}
	relay := outbox.NewRelay(logger, outbox.NewPGQueue(pool), publisher, cfg.OutboxInterval, cfg.OutboxBatch)

	server := NewServer(disputes, tokens, logger).
		WithCreateLimit(cfg.CreateRatePerMinute).
		WithReadiness(pool.Ping)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return ignoreCancel(sweeper.Run(gctx)) })
	g.Go(func() error { return ignoreCancel(relay.Run(gctx)) })

	return g.Wait()
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
