package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/JonMunkholm/collabimport/internal/config"
	"github.com/JonMunkholm/collabimport/internal/core"
	"github.com/JonMunkholm/collabimport/internal/logging"
	"github.com/JonMunkholm/collabimport/internal/metrics"
	"github.com/JonMunkholm/collabimport/internal/restapi"
	"github.com/JonMunkholm/collabimport/internal/store"
	"github.com/JonMunkholm/collabimport/internal/web"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"backend", cfg.Backend.Mode,
		"import_max_concurrent", cfg.Import.MaxConcurrent,
		"import_max_file_size", cfg.Import.MaxFileSize.String(),
		"dry_run", cfg.Import.DryRun,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()

	var pool *pgxpool.Pool
	if cfg.UsesDatabase() {
		pool, err = connectDatabase(ctx, cfg.Database)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if cfg.Database.AutoMigrate {
			if err := store.Migrate(ctx, pool); err != nil {
				slog.Error("failed to migrate database", "error", err)
				os.Exit(1)
			}
			slog.Info("database schema up to date")
		}
	}

	var (
		lookup    core.ReferenceLookup
		submitter core.RecordSubmitter
	)
	switch cfg.Backend.Mode {
	case config.BackendHTTP:
		client, err := restapi.New(cfg.Backend.URL,
			restapi.WithToken(cfg.Backend.Token),
			restapi.WithTimeout(cfg.Backend.Timeout),
		)
		if err != nil {
			slog.Error("failed to create backend client", "error", err)
			os.Exit(1)
		}
		lookup, submitter = client, client
		slog.Info("using HTTP backend", "url", cfg.Backend.URL)
	default:
		lookup = store.NewReferenceRepository(pool)
		submitter = store.NewCollaboratorRepository(pool)
		slog.Info("using database backend")
	}

	pipeline := core.NewPipeline(lookup, submitter,
		core.WithDryRun(cfg.Import.DryRun),
		core.WithLogger(logger),
	)

	var (
		serviceOpts []core.ServiceOption
		serverOpts  []web.Option
	)
	if pool != nil {
		audit := store.NewAuditRepository(pool)
		serviceOpts = append(serviceOpts, core.WithAuditSink(audit))
		serverOpts = append(serverOpts, web.WithAuditLog(audit))
	}

	if cfg.Metrics.Enabled {
		serviceOpts = append(serviceOpts, core.WithAuditSink(metrics.NewRecorder(prometheus.DefaultRegisterer)))
		serverOpts = append(serverOpts, web.WithMetrics(metrics.Handler(prometheus.DefaultGatherer)))
	}

	service := core.NewService(pipeline, core.ServiceConfig{
		MaxConcurrent: cfg.Import.MaxConcurrent,
		MaxWaitTime:   cfg.Import.MaxWaitTime,
		Timeout:       cfg.Import.Timeout,
		SessionTTL:    cfg.Import.SessionTTL,
	}, serviceOpts...)

	if cfg.Metrics.Enabled {
		metrics.RegisterService(prometheus.DefaultRegisterer, service)
		slog.Info("metrics enabled", "path", cfg.Metrics.Path)
	}

	server := web.NewServer(service, cfg, serverOpts...)

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())

	go func() {
		if err := service.StartSessionReaper(jobCtx, cfg.Import.ReapInterval); err != nil {
			slog.Error("session reaper failed", "error", err)
		}
	}()

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for running imports to complete (with timeout)
		status := service.LimiterStatus()
		if status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
			if err := service.WaitForImports(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			} else {
				slog.Info("all imports completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// connectDatabase opens and verifies the connection pool.
func connectDatabase(ctx context.Context, dc config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dc.URL)
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = int32(dc.MaxConns)
	poolConfig.MinConns = int32(dc.MinConns)
	poolConfig.MaxConnLifetime = dc.MaxConnLifetime
	poolConfig.MaxConnIdleTime = dc.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	// Log which database we connected to
	if u, err := url.Parse(dc.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}
