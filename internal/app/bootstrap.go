package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"time"

	"slot_watch/internal/domain"
	"slot_watch/internal/engine"
	"slot_watch/internal/event"
	"slot_watch/internal/infra"
	"slot_watch/internal/infra/bridge"
	"slot_watch/internal/infra/storage"
	"slot_watch/internal/notify"
	"slot_watch/internal/service"
	"slot_watch/internal/strategy"
	"slot_watch/internal/summary"
	"slot_watch/internal/tracker"

	"github.com/go-telegram/bot"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config     *infra.Config
	Metrics    *infra.Metrics
	Journal    *storage.Journal // nil when storage.path is empty
	Bridge     *bridge.Client
	Dispatcher *notify.Dispatcher
	Board      *service.Board
	Controller *engine.Controller

	slots     int
	registry  *prometheus.Registry
	logCloser io.Closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{logCloser: nopCloser{}}
}

// Initialize performs core system initialization (config, logger, DB, ports).
func (b *Bootstrap) Initialize() error {
	// 1. Load Config
	cfg, err := infra.LoadConfig(infra.ConfigPath())
	if err != nil {
		return err // Let main handle the error
	}

	// 2. Setup Logger
	logger, closer := infra.NewLogger(cfg)
	slog.SetDefault(logger)
	b.logCloser = closer
	slog.Info("Bootstrapping slot watch", slog.String("name", cfg.App.Name), slog.String("version", cfg.App.Version))

	return b.Wire(cfg)
}

// Wire builds every component from cfg without touching the global logger.
func (b *Bootstrap) Wire(cfg *infra.Config) error {
	b.Config = cfg
	b.Metrics = &infra.Metrics{}

	table, err := cfg.SlotTable()
	if err != nil {
		return err
	}
	b.slots = table.Len()

	// Audit journal (DB)
	if cfg.Storage.Path != "" {
		journal, err := storage.Open(cfg.Storage.Path)
		if err != nil {
			return err
		}
		b.Journal = journal
		slog.Info("Journal initialized", slog.String("path", cfg.Storage.Path))
	}

	// Perception and action ports
	b.Bridge = bridge.New(cfg.Bridge.URL, cfg.Bridge.CallTimeout, bridge.WithMetrics(b.Metrics))

	// Notification port
	ch, err := NewChannel(cfg)
	if err != nil {
		return err
	}
	b.Dispatcher = notify.NewDispatcher(ch, notify.Options{
		QueueSize: cfg.Notify.QueueSize,
		Rate:      rate.Limit(cfg.Notify.Rate),
		Burst:     cfg.Notify.Burst,
		Expire:    cfg.Notify.Expire,
		Images:    cfg.Notify.Images,
		Counters:  b.Metrics,
	})

	b.Board = service.NewBoard(table)

	sinks := event.Fanout{event.NewLogSink(nil), b.Metrics, b.Board}
	if b.Journal != nil {
		sinks = append(sinks, b.Journal)
	}

	sched := summary.New(cfg.Summary.Interval, time.Now(), b.Dispatcher, summary.Options{
		AfterFirstPass:    cfg.Summary.AfterFirstPass,
		ReportOnFirstPass: cfg.Summary.ReportOnFirstPass,
	})

	b.Controller = engine.NewController(cfg.EngineConfig(), table,
		engine.Ports{Perception: b.Bridge, Actuator: b.Bridge, Notifier: b.Dispatcher},
		engine.WithTracker(tracker.New(tracker.Policy{NotifyOnChange: cfg.Engine.NotifyOnChange})),
		engine.WithStrategy(strategy.NewThresholdStrategy(cfg.Engine.Commit)),
		engine.WithSummary(sched),
		engine.WithSink(sinks),
	)

	b.registry = prometheus.NewRegistry()
	b.registry.MustRegister(
		infra.NewCollector(b.Metrics),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return nil
}

// NewChannel selects the notification backend named in the config.
func NewChannel(cfg *infra.Config) (notify.Channel, error) {
	switch cfg.Notify.Backend {
	case "telegram":
		return notify.NewTelegram(cfg.Notify.Telegram.Token, cfg.Notify.Telegram.ChatID, bot.WithSkipGetMe())
	case "pushover":
		return notify.NewPushover(cfg.Notify.Pushover.Token, cfg.Notify.Pushover.User, cfg.Notify.Pushover.URL)
	case "log":
		return notify.NewLogChannel(slog.Default(), cfg.Notify.LogDir), nil
	default:
		return nil, &domain.ConfigError{Field: "notify.backend", Err: fmt.Errorf("unknown backend %q", cfg.Notify.Backend)}
	}
}

// Run brackets one monitoring session: journal session, notifier session,
// controller loop. It returns the controller error, if any.
func (b *Bootstrap) Run(ctx context.Context) (status error) {
	if b.Journal != nil {
		id, err := b.Journal.Begin(b.Config.App.Name, b.slots)
		if err != nil {
			return fmt.Errorf("could not open journal session: %w", err)
		}
		b.Board.SetSession(id)
		slog.SetDefault(slog.Default().With(slog.String("session", id)))
		defer func() {
			if err := b.Journal.End(endReason(ctx, status)); err != nil {
				slog.Warn("could not close journal session (ignored)", slog.Any("error", err))
			}
		}()
	}

	boardCtx, cancelBoard := context.WithCancel(ctx)
	defer cancelBoard()
	b.Board.StartEventProcessor(boardCtx)

	var session domain.Session = b.Dispatcher
	if err := session.Start(ctx); err != nil {
		return fmt.Errorf("could not start notifier: %w", err)
	}
	defer session.Stop()
	defer b.Bridge.Close()

	return b.Controller.Run(ctx)
}

// Exit codes for cmd/app. ExitRetry (EX_TEMPFAIL) tells a process supervisor
// that restarting may help, e.g. when the agent was unreachable.
const (
	ExitOK    = 0
	ExitFatal = 1
	ExitRetry = 75
)

// ExitCode maps the error returned by Run to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case domain.IsRetriable(err):
		return ExitRetry
	default:
		return ExitFatal
	}
}

func endReason(ctx context.Context, err error) string {
	switch {
	case err != nil && domain.IsRetriable(err):
		return "retriable error: " + err.Error()
	case err != nil:
		return "error: " + err.Error()
	case ctx.Err() != nil:
		return "signal"
	default:
		return "stopped"
	}
}

// SupervisorHandler serves the supervisor API, the journal history,
// prometheus metrics and pprof.
func (b *Bootstrap) SupervisorHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", service.NewHandler(b.Board, b.Controller))
	if b.Journal != nil {
		history := service.NewHistoryHandler(b.Journal)
		mux.Handle("/sessions", history)
		mux.Handle("/sessions/", history)
	}
	mux.Handle("/metrics", promhttp.HandlerFor(b.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

// Close releases the journal and the log file.
func (b *Bootstrap) Close() {
	if b.Journal != nil {
		if err := b.Journal.Close(); err != nil {
			slog.Warn("could not close journal (ignored)", slog.Any("error", err))
		}
	}
	b.logCloser.Close()
}
