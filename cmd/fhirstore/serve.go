package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/careset/fhirstore/internal/config"
	"github.com/careset/fhirstore/internal/dbconn"
	"github.com/careset/fhirstore/internal/events"
	"github.com/careset/fhirstore/internal/logging"
	"github.com/careset/fhirstore/internal/resource"
	"github.com/careset/fhirstore/internal/server"
	"github.com/careset/fhirstore/internal/txn"
)

var serveEnv string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the fhirstore HTTP server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveEnv, "env", "development", "logging environment (development|production)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(logging.Environment(serveEnv))
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	metrics, err := dbconn.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	pool, err := dbconn.NewPool(ctx, dbconn.Config{
		DSN:             cfg.Database.URL,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		Logger:          logger,
		Metrics:         metrics,
	})
	if err != nil {
		return fmt.Errorf("open connection pool: %w", err)
	}
	defer pool.Close()

	manager := txn.NewManager(pool, logger).WithObserver(metrics)
	repo := resource.NewRepository(manager, resource.Registry{})

	hub := events.NewHub(logger)

	publisher := events.Publisher(events.HubPublisher{Hub: hub})
	if cfg.Events.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Events.RedisAddr})
		defer rdb.Close() //nolint:errcheck

		broadcaster := events.NewBroadcaster(rdb, cfg.Events.RedisChannel, hub, logger)
		publisher = broadcaster

		go func() {
			if listenErr := broadcaster.Listen(ctx); listenErr != nil && listenErr != context.Canceled {
				logger.Error("event broadcaster stopped", zap.Error(listenErr))
			}
		}()
	}

	var auth *server.AuthService
	if cfg.Auth.JWTSecret != "" {
		auth = server.NewAuthService(cfg.Auth.JWTSecret, 24*time.Hour)
	}

	router := server.NewRouter(server.Config{
		Repo:      repo,
		Hub:       hub,
		Publisher: publisher,
		Auth:      auth,
		Logger:    logger,
		APIPrefix: cfg.Server.APIPrefix,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("graceful shutdown failed", zap.Error(shutdownErr))
		}
	}()

	logger.Info("starting fhirstore server", zap.String("addr", addr))
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
