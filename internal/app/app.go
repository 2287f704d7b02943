package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"jobkit/internal/adapter/httpapi"
	"jobkit/internal/config"
	"jobkit/internal/jobs"
	"jobkit/internal/metrics"
	"jobkit/internal/platform/logger"
)

// App wires application components.
type App struct {
	cfg config.Config
	log *slog.Logger
}

// New creates a new App instance and loads configuration.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New(logger.Options{
		Env:          cfg.Env,
		ConsoleLevel: cfg.Log.ConsoleLevel,
		FileLevel:    cfg.Log.FileLevel,
		File:         cfg.Log.File,
		App:          "jobsd",
		ContextAttrs: jobs.LogAttrs,
	})
	return &App{cfg: cfg, log: log}, nil
}

// Run starts the job manager and the admin API and blocks until SIGINT/SIGTERM.
func (a *App) Run() error {
	defer func() { _ = logger.Close(a.log) }()
	a.log.Info("starting", slog.Int("workers", a.cfg.Jobs.Workers))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := jobs.NewManager(
		jobs.WithWorkers(a.cfg.Jobs.Workers),
		jobs.WithWorkerPrefix(a.cfg.Jobs.WorkerPrefix),
		jobs.WithLogger(a.log),
	)
	defer m.Shutdown()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m.Listeners().Add(metrics.New(reg, m))

	if spec := a.cfg.Jobs.HeartbeatSchedule; spec != "" {
		if _, err := jobs.ScheduleCron(m, heartbeat(m, a.log), spec, heartbeatInput()); err != nil {
			return err
		}
	}

	if a.cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{Addr: a.cfg.Admin.Addr, Handler: httpapi.NewRouter(m, reg, a.log)}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("admin server", slog.Any("err", err))
			stop()
		}
	}()

	<-ctx.Done()
	a.log.Info("stopping")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func heartbeatInput() *jobs.JobInput {
	return jobs.EmptyInput().
		WithName("heartbeat").
		WithSubject(&jobs.Subject{Name: "system"}).
		WithExecutionHint("internal")
}

// heartbeat logs the number of futures tracked by m.
func heartbeat(m *jobs.Manager, log *slog.Logger) jobs.Action {
	return func(ctx context.Context) error {
		tracked := 0
		m.Visit(func(jobs.Handle) bool {
			tracked++
			return true
		})
		log.InfoContext(ctx, "heartbeat", slog.Int("tracked", tracked), slog.String("worker", jobs.WorkerName(ctx)))
		return nil
	}
}
