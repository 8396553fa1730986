package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/orbitrc/orbit/internal/api"
	"github.com/orbitrc/orbit/internal/board"
	"github.com/orbitrc/orbit/internal/config"
	"github.com/orbitrc/orbit/internal/dashboard"
	"github.com/orbitrc/orbit/internal/endpoint"
	"github.com/orbitrc/orbit/internal/gateway"
	"github.com/orbitrc/orbit/internal/health"
	"github.com/orbitrc/orbit/internal/logging"
	"github.com/orbitrc/orbit/internal/netwatch"
	"github.com/orbitrc/orbit/internal/prefs"
	"github.com/orbitrc/orbit/internal/schedule"
	"github.com/orbitrc/orbit/internal/ui"
)

// Options configure an orbit runtime.
type Options struct {
	ConfigPath string
	// SessionPath overrides the configured session file.
	SessionPath string
	// AssumeOnline skips interface polling and treats the host as connected.
	AssumeOnline bool
	// Console receives human-readable logs (CLI commands). When nil, logs go
	// to the configured log file only, which keeps the TUI screen clean.
	Console io.Writer
	// Clock drives every timer. Nil uses the wall clock.
	Clock schedule.Clock
}

// Runtime holds every long-lived component.
type Runtime struct {
	Config    config.Config
	Session   *prefs.Store
	Logger    *zap.Logger
	Resolver  *endpoint.Resolver
	Local     netwatch.Source
	Monitor   *health.Monitor
	Executor  *gateway.Executor
	Board     *board.Synchronizer
	Dashboard *dashboard.Service
	Scheduler *schedule.Scheduler
	Registry  *prometheus.Registry

	closeLog  func() error
	cancel    context.CancelFunc
	closeOnce sync.Once
	closeErr  error
	wg        errgroup.Group
}

// New loads configuration and builds every component. Nothing runs until
// Start.
func New(opts Options) (_ *Runtime, err error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.SessionPath != "" {
		cfg.SessionPath = opts.SessionPath
	}

	logOpts := logging.Options{Level: cfg.LogLevel, Console: opts.Console}
	if opts.Console == nil {
		logOpts.File = cfg.LogFile
	}
	logger, closeLog, err := logging.New(logOpts)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		if err != nil {
			_ = closeLog()
		}
	}()

	session, err := prefs.Open(cfg.SessionPath)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	clock := opts.Clock
	if clock == nil {
		clock = schedule.Real()
	}

	rt := &Runtime{
		Config:   cfg,
		Session:  session,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
		closeLog: closeLog,
	}
	rt.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	client := api.NewClient(api.ClientOptions{Token: cfg.APIToken})
	rt.Resolver = endpoint.NewResolver(cfg.PrimaryURL, cfg.FallbackURL, session, logger.Named("endpoint"))
	rt.Scheduler = schedule.New(clock, logger.Named("schedule"))

	if opts.AssumeOnline {
		rt.Local = netwatch.NewStatic(true)
	} else {
		iface := netwatch.NewInterfaceSource(logger.Named("netwatch"))
		rt.Local = iface
		if err := rt.Scheduler.Every(netwatchJob, netwatchInterval, iface.Poll); err != nil {
			return nil, err
		}
	}

	rt.Monitor = health.NewMonitor(health.Options{
		Prober:            client,
		Addresses:         rt.Resolver,
		Local:             rt.Local,
		Clock:             clock,
		Logger:            logger.Named("health"),
		ProbeInterval:     cfg.ProbeInterval,
		ProbeTimeout:      cfg.ProbeTimeout,
		RecoveryThreshold: cfg.RecoveryThreshold,
		WakeDelay:         cfg.WakeDelay,
	})
	if err := rt.Monitor.Attach(rt.Scheduler); err != nil {
		return nil, err
	}

	rt.Executor = gateway.NewExecutor(gateway.Options{
		Transport:     client,
		Endpoints:     rt.Resolver,
		Connectivity:  rt.Monitor,
		DeveloperMode: rt.DeveloperMode,
		Timeout:       cfg.RequestTimeout,
		Metrics:       gateway.NewMetrics(rt.Registry),
		Logger:        logger.Named("gateway"),
	})

	rt.Board = board.New(board.Options{
		Executor:          rt.Executor,
		DeveloperMode:     rt.DeveloperMode,
		RollbackOnFailure: cfg.RollbackOnFailure,
		AfterConfirm:      func() { rt.Scheduler.Trigger(boardRefreshJob) },
		Clock:             clock,
		Logger:            logger.Named("board"),
	})
	rt.Dashboard = dashboard.New(rt.Executor, logger.Named("dashboard"))

	if err := rt.Scheduler.Every(boardRefreshJob, cfg.RefreshInterval, rt.refreshBoard, schedule.RunImmediately()); err != nil {
		return nil, err
	}
	return rt, nil
}

// DeveloperMode reports whether remote calls are disabled, either by
// configuration or by the persisted session switch.
func (rt *Runtime) DeveloperMode() bool {
	return rt.Config.DeveloperMode || rt.Session.DevMode()
}

// Start launches background jobs: the health probe, board refresh, network
// polling and the reaction to connectivity changes.
func (rt *Runtime) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	rt.cancel = cancel

	events, unsubscribe := rt.Monitor.Subscribe()
	rt.wg.Go(func() error {
		defer unsubscribe()
		rt.followHealth(ctx, events)
		return nil
	})

	rt.Monitor.Start(ctx)
	rt.Scheduler.Start(ctx)
	rt.Logger.Info("orbit started",
		zap.String("primary", rt.Resolver.Primary()),
		zap.String("fallback", rt.Resolver.Fallback()),
		zap.String("active", rt.Resolver.Current()),
		zap.Bool("developer_mode", rt.DeveloperMode()),
	)
}

// Close stops background work and flushes logs. It is safe to call more
// than once.
func (rt *Runtime) Close() error {
	rt.closeOnce.Do(func() {
		if rt.cancel != nil {
			rt.cancel()
		}
		rt.Scheduler.Stop()
		rt.Monitor.Stop()
		_ = rt.wg.Wait()
		rt.closeErr = rt.closeLog()
	})
	return rt.closeErr
}

// MetricsHandler exposes the runtime's Prometheus registry.
func (rt *Runtime) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(rt.Registry, promhttp.HandlerOpts{})
}

// ServeMetrics serves /metrics on the configured address until ctx ends.
func (rt *Runtime) ServeMetrics(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", rt.MetricsHandler())
	srv := &http.Server{
		Addr:              rt.Config.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	rt.Logger.Info("serving metrics", zap.String("addr", rt.Config.MetricsAddr))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Run boots the board TUI until the user quits or ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	rt, err := New(opts)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	rt.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	if rt.Config.MetricsAddr != "" {
		g.Go(func() error { return rt.ServeMetrics(gctx) })
	}
	g.Go(func() error {
		defer cancel()
		return ui.Run(ui.Options{
			Context:       gctx,
			Board:         rt.Board,
			Health:        rt.Monitor,
			ActiveAddress: rt.Resolver.Current,
			DeveloperMode: rt.DeveloperMode,
			ThemeName:     rt.Session.Snapshot().Theme,
			SaveTheme:     rt.Session.SetTheme,
			Logger:        rt.Logger.Named("ui"),
		})
	})
	return g.Wait()
}
