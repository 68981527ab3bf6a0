// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/dayroll/internal/api"
	"github.com/starford/dayroll/internal/calendar"
	"github.com/starford/dayroll/internal/check"
	"github.com/starford/dayroll/internal/ledger"
	"github.com/starford/dayroll/internal/mcpserver"
	"github.com/starford/dayroll/internal/notion"
	"github.com/starford/dayroll/internal/scheduler"
	"github.com/starford/dayroll/internal/sse"
	"github.com/starford/dayroll/internal/summarize"
	"github.com/starford/dayroll/internal/workflow"
	pkgconfig "github.com/starford/dayroll/pkg/config"
)

// Version is reported by the MCP server.
const Version = "0.1.0"

// runtime holds the wired components shared by every command.
type runtime struct {
	cfg       *Config
	logger    *slog.Logger
	clock     calendar.Clock
	ledger    *ledger.DB
	broker    *sse.Broker
	runner    *workflow.Runner
	inspector *workflow.Inspector
}

func (rt *runtime) Close() {
	rt.broker.Close()
	if err := rt.ledger.Close(); err != nil {
		rt.logger.Warn("ledger close failed", slog.String("error", err.Error()))
	}
}

func (rt *runtime) today() calendar.Date {
	return calendar.Today(rt.clock)
}

func setup(ctx context.Context, opts []Option) (*application, *runtime, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("task_database", cfg.Notion.TaskDatabaseID),
		slog.String("daily_review_database", cfg.Notion.DailyReviewDatabaseID),
		slog.String("cycle_review_database", cfg.Notion.CycleReviewDatabaseID),
		slog.String("timezone", cfg.Schedule.Timezone),
		slog.String("ledger_path", cfg.Ledger.Path),
		slog.Bool("summarizer", cfg.Summarizer.APIKey != ""),
		slog.String("log_level", cfg.App.LogLevel.String()))

	clock, err := calendar.NewSystemClock(cfg.Schedule.Timezone)
	if err != nil {
		return nil, nil, fmt.Errorf("load timezone: %w", err)
	}

	db, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init ledger: %w", err)
	}

	gw := notion.NewGateway(notion.NewClient(ctx, cfg.Notion.Options()))
	broker := sse.NewBroker(30 * time.Second)

	runner, err := workflow.New(gw, db, summarize.New(ctx, cfg.Summarizer.Options()), broker, workflow.Options{
		Databases: check.Databases{
			Task:        cfg.Notion.TaskDatabaseID,
			DailyReview: cfg.Notion.DailyReviewDatabaseID,
			CycleReview: cfg.Notion.CycleReviewDatabaseID,
		},
		Rules:              cfg.Tasks,
		Layout:             cfg.Review.Layout,
		EnsureReviewSchema: cfg.Review.EnsureSchema,
		Keywords:           cfg.Review.Keywords(),
	}, logger)
	if err != nil {
		broker.Close()
		db.Close()
		return nil, nil, fmt.Errorf("init workflow: %w", err)
	}

	return app, &runtime{
		cfg:       cfg,
		logger:    logger,
		clock:     clock,
		ledger:    db,
		broker:    broker,
		runner:    runner,
		inspector: workflow.NewInspector(runner, db, clock),
	}, nil
}

// Run starts the daemon: an optional pass on start, then the scheduler, the
// ops HTTP server and the config watcher until SIGINT or SIGTERM.
func Run(ctx context.Context, opts ...Option) error {
	app, rt, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg := rt.cfg
	logger := rt.logger

	if cfg.Schedule.RunOnStart {
		startup := func(ctx context.Context, today calendar.Date) error {
			return rt.runner.ReviewPass(ctx, workflow.JobStartup, today)
		}
		if err := scheduler.Invoke(ctx, logger, workflow.JobStartup, cfg.Schedule.HandlerTimeout, startup, rt.today()); err != nil {
			logger.Warn("startup pass failed", slog.String("error", err.Error()))
		}
	}
	if !cfg.Schedule.Enabled {
		logger.Info("Scheduler disabled, exiting after startup pass")
		return nil
	}

	rolloverAt, reviewAt, err := cfg.Schedule.Times()
	if err != nil {
		return err
	}
	sched := scheduler.New(scheduler.Options{
		Clock:          rt.clock,
		Poll:           cfg.Schedule.PollInterval,
		HandlerTimeout: cfg.Schedule.HandlerTimeout,
		History:        rt.ledger,
		Logger:         logger,
	},
		scheduler.Job{
			Name: workflow.JobRollover,
			At:   rolloverAt,
			Handler: func(ctx context.Context, today calendar.Date) error {
				return rt.runner.RolloverPass(ctx, workflow.JobRollover, today)
			},
		},
		scheduler.Job{
			Name: workflow.JobReview,
			At:   reviewAt,
			Handler: func(ctx context.Context, today calendar.Date) error {
				return rt.runner.ReviewPass(ctx, workflow.JobReview, today)
			},
		},
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sched.Run(gCtx)
	})

	if app.configPath != "" {
		g.Go(func() error {
			return pkgconfig.Watch(gCtx, app.configPath, logger, NewDefaultConfig, func(next *Config) {
				r, v, err := next.Schedule.Times()
				if err != nil {
					logger.Warn("config: bad trigger times", slog.String("error", err.Error()))
					return
				}
				if err := sched.Reschedule(gCtx, map[string]scheduler.TimeOfDay{
					workflow.JobRollover: r,
					workflow.JobReview:   v,
				}); err != nil {
					logger.Warn("config: reschedule failed", slog.String("error", err.Error()))
				}
			})
		})
	}

	var httpServer *http.Server
	if cfg.App.HTTP.Enabled {
		httpServer = &http.Server{
			Addr:    cfg.App.HTTP.Address(),
			Handler: newHTTPHandler(rt),
		}
		g.Go(func() error {
			logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("HTTP server error: %w", err)
			}
			return nil
		})
	}

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}
		cancel()

		if httpServer != nil {
			shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
			defer stop()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Daemon stopped successfully")
	return nil
}

func newHTTPHandler(rt *runtime) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := rt.ledger.ListRuns(1); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"ledger unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", api.NewRouter(rt.inspector, rt.cfg.Auth.AuthEnabled(), rt.cfg.Auth.Token, rt.broker))
	return r
}

// Once runs a consistency check and the full pass immediately.
func Once(ctx context.Context, opts ...Option) error {
	_, rt, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer rt.Close()
	return rt.runner.ReviewPass(ctx, workflow.JobManual, rt.today())
}

// Rollover runs a consistency check and the rollover immediately.
func Rollover(ctx context.Context, opts ...Option) error {
	_, rt, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer rt.Close()
	return rt.runner.RolloverPass(ctx, workflow.JobManual, rt.today())
}

// Check writes today's consistency report to out as JSON.
func Check(ctx context.Context, out io.Writer, opts ...Option) error {
	_, rt, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer rt.Close()
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(rt.inspector.CheckNow(ctx))
}

// ServeMCP serves the read-only MCP tools over stdio.
func ServeMCP(ctx context.Context, opts ...Option) error {
	_, rt, err := setup(ctx, append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	defer rt.Close()
	rt.logger.Info("MCP server starting on stdio")
	return mcpserver.New(rt.inspector, Version).ServeStdio()
}
