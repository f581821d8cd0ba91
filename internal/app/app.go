// Package app wires hwbot together: config, logging, the status client, the
// notification sink, the poll loop and the operator surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"hwbot/internal/config"
	"hwbot/internal/homework"
	"hwbot/internal/notifier"
	"hwbot/internal/ops"
	"hwbot/internal/poll"
	"hwbot/internal/runtime/supervisor"
	"hwbot/internal/storage"
	kit "hwbot/internal/transport"
	telegram "hwbot/internal/transport/telegram/adapter"
	logx "hwbot/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	store   storage.Store
	sink    *notifier.Sink
	loop    *poll.Loop
	ops     *ops.Server
	metrics *prometheus.Registry
	sd      sdNotifier

	startedAt time.Time
}

// New builds every component from creds and the loaded config. Nothing runs
// until Start.
func New(creds config.Credentials, cfgm *config.Manager) (*App, error) {
	cfg := cfgm.Get()
	if cfg == nil {
		var err error
		if cfg, err = cfgm.Load(); err != nil {
			return nil, err
		}
	}

	logs, log := logx.New(mapLogging(cfg))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	log = log.With(logx.String("comp", "app"))

	a := &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logs,
		metrics: prometheus.NewRegistry(),
		sd:      sdNotifier{log: log.With(logx.String("comp", "systemd"))},
	}
	a.metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if err := a.build(creds, cfg); err != nil {
		if a.store != nil {
			_ = a.store.Close()
		}
		_ = logs.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(creds config.Credentials, cfg *config.Config) error {
	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return err
	}
	a.store, err = storage.Open(sc, a.log.With(logx.String("comp", "storage")))
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	if a.store != nil {
		a.log.Info("delivery journal enabled", logx.String("driver", sc.Driver), logx.String("path", sc.Path))
	}

	tcfg, err := mapTelegramConfig(cfg, creds.TelegramToken)
	if err != nil {
		return err
	}
	ad, err := telegram.New(tcfg, a.log.With(logx.String("comp", "telegram")))
	if err != nil {
		return err
	}

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return err
	}
	target := kit.ChatTarget{ChatID: creds.TelegramChatID, ThreadID: cfg.Telegram.ThreadID}
	a.sink, err = notifier.New(ncfg, ad, target, a.store, a.log.With(logx.String("comp", "notifier")))
	if err != nil {
		return err
	}

	ccfg, err := mapClientConfig(cfg, creds.PracticumToken)
	if err != nil {
		return err
	}
	client, err := homework.NewClient(ccfg, &http.Client{Timeout: ccfg.Timeout}, a.log.With(logx.String("comp", "status_api")))
	if err != nil {
		return err
	}

	settings, err := mapPollSettings(cfg)
	if err != nil {
		return err
	}
	start, err := initialCursor(cfg, time.Now())
	if err != nil {
		return err
	}
	a.loop, err = poll.New(poll.Config{
		Settings: settings,
		Start:    start,
		Metrics:  poll.NewMetrics(a.metrics),
		OnTick:   a.onTick,
	}, client, a.sink, a.log.With(logx.String("comp", "poll")))
	if err != nil {
		return err
	}

	if cfg.Ops.Enabled {
		a.ops = ops.New(ops.Config{Addr: cfg.Ops.Addr, Pprof: cfg.Ops.Pprof}, a.metrics, a.health,
			a.log.With(logx.String("comp", "ops")))
	}
	return nil
}

// Done is closed when the app context is canceled.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first task failure observed by the supervisor, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	if a.sup != nil {
		return errors.New("app already started")
	}
	a.startedAt = time.Now()
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))))

	a.sup.GoRestart("poll.loop", a.loop.Run, supervisor.WithPublishFirstError(true))

	if a.ops != nil {
		a.sup.GoRestart("ops.http", a.ops.Serve,
			supervisor.WithRestartBackoff(time.Second, 30*time.Second),
			supervisor.WithMaxRestarts(5),
			supervisor.WithPublishFirstError(true),
		)
	}

	sub := a.cfgm.Subscribe(4)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		applied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return nil
			case next, ok := <-sub:
				if !ok {
					return nil
				}
				a.applyConfig(applied, next)
				applied = next
			}
		}
	})
	a.sup.GoRestart("config.watch", a.cfgm.Watch)
	a.sup.Go("systemd.watchdog", a.sd.watchdog)

	a.sd.ready()
	a.log.Info("app started")
	return nil
}

// applyConfig applies the hot-reloadable parts of next. Sections that need a
// restart are only reported.
func (a *App) applyConfig(prev, next *config.Config) {
	sections := config.ChangedSections(prev, next)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}

	if err := a.logs.Apply(mapLogging(next)); err != nil {
		a.log.Warn("log file unavailable, using console", logx.Err(err))
	}

	settings, err := mapPollSettings(next)
	if err != nil {
		a.log.Warn("invalid poll config; keeping previous", logx.Err(err))
	} else {
		a.loop.ApplySettings(settings)
	}

	if rr := config.RestartRequired(sections); len(rr) > 0 {
		a.log.Warn("config change needs a restart to take effect", logx.Strs("sections", rr))
	}
	a.log.Info("config applied", logx.Strs("changed", sections))
}

func (a *App) onTick(r poll.TickReport) {
	status := fmt.Sprintf("last tick %s: %s (cursor %s)", r.At.Format(time.RFC3339), r.Result, r.Cursor)
	a.sd.status(status)
}

type healthBody struct {
	Status     string                 `json:"status"`
	Uptime     string                 `json:"uptime"`
	LastTick   poll.TickReport        `json:"last_tick"`
	Deliveries []notifier.HistoryItem `json:"deliveries"`
	Supervisor supervisor.Snapshot    `json:"supervisor"`
}

func (a *App) health() (any, bool) {
	ok := a.sup == nil || a.sup.Err() == nil
	body := healthBody{
		Status:     "ok",
		LastTick:   a.loop.Last(),
		Deliveries: a.sink.Snapshot(),
		Supervisor: a.sup.Snapshot(),
	}
	if !a.startedAt.IsZero() {
		body.Uptime = time.Since(a.startedAt).Truncate(time.Second).String()
	}
	if !ok {
		body.Status = "degraded"
	}
	return body, ok
}

// Stop cancels every task and releases resources, bounded by ctx.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sd.stopping(string(reason))
	a.sup.Cancel()

	// Each step gets an upper bound so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("step", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("step", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("step", name), logx.Err(stepCtx.Err()))
		}
	}

	step("supervisor", 3*time.Second, a.sup.Wait)
	step("storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped")
	return a.logs.Close()
}
