package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Harshitk-cp/swarm/internal/api"
	"github.com/Harshitk-cp/swarm/internal/buildconfig"
	"github.com/Harshitk-cp/swarm/internal/config"
	"github.com/Harshitk-cp/swarm/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := config.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(config.LogLevel())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, logger)
	stop()
	_ = logger.Sync()
	if err != nil {
		logger.Error("coordinator failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *zap.Logger) error {
	dbURL := config.DatabaseURL()
	if dbURL == "" {
		return errors.New("DATABASE_URL is required")
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	if err := store.Migrate(ctx, pool, config.MigrationsPath()); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	logger.Info("database ready")

	app := api.NewApp(pool, logger)
	app.Ticker.Start()
	defer app.Ticker.Stop()
	app.Expirer.Start()
	defer app.Expirer.Stop()

	srv := &http.Server{
		Addr:              config.ServerAddr(),
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("coordinator listening",
			zap.String("addr", srv.Addr),
			zap.String("version", buildconfig.Version()),
			zap.Duration("stage_duration", config.StageDuration()))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down coordinator")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
