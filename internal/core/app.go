// Package core wires the services together and owns their lifecycle.
package core

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/daemon"

	"alertbot/internal/adapters/telegram"
	"alertbot/internal/alert"
	"alertbot/internal/config"
	"alertbot/internal/fixedschedule"
	"alertbot/internal/notifier"
	"alertbot/internal/router"
	"alertbot/internal/storage"
	logx "alertbot/pkg/logx"
)

type App struct {
	cfgPath string
	cfg     *config.Config

	logs *logx.Service
	log  logx.Logger

	audit   storage.Store
	adapter *telegram.Adapter
	notif   *notifier.Service
	sched   *alert.Scheduler
	alerts  *alert.Service
	fixed   *fixedschedule.Engine
	router  *router.Router
}

// NewApp loads the config and constructs every service in dependency order.
// Any error here is startup-fatal.
func NewApp(cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	logs, err := logx.NewService(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File != "", Path: cfg.Logging.File},
	})
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	log := logs.Logger()

	audit, err := storage.Open(storage.Config{Driver: cfg.Storage.Driver, Path: cfg.Storage.Path}, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: cfg.Telegram.PollTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	fixedChannel, err := cfg.FixedChannelID()
	if err != nil {
		return nil, err
	}

	notif := notifier.New(notifier.Config{
		Workers:    cfg.Notifier.Workers,
		QueueSize:  cfg.Notifier.QueueSize,
		RatePerSec: cfg.Notifier.RatePerSec,
	}, adapter, log.With(logx.String("comp", "notifier")))

	store := alert.NewStore()
	reg := alert.NewRegistry(log.With(logx.String("comp", "registry")))
	sched := alert.NewScheduler(store, reg, notif, loc, log.With(logx.String("comp", "scheduler")))
	alerts := alert.NewService(alert.Config{
		MaxPerUser:       cfg.Alerts.MaxPerUser,
		MaxOffsetMinutes: cfg.Alerts.MaxOffsetMinutes,
	}, store, sched, log.With(logx.String("comp", "alerts")))

	fixed := fixedschedule.New(fixedschedule.Config{
		ChannelID: fixedChannel,
		Mention:   cfg.Fixed.Mention,
		Messages:  cfg.Fixed.Messages,
	}, notif, loc, log.With(logx.String("comp", "fixed")))

	rt := router.New(adapter, alerts, audit, log.With(logx.String("comp", "router")))

	return &App{
		cfgPath: cfgPath,
		cfg:     cfg,
		logs:    logs,
		log:     log,
		audit:   audit,
		adapter: adapter,
		notif:   notif,
		sched:   sched,
		alerts:  alerts,
		fixed:   fixed,
		router:  rt,
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	a.notif.Start(ctx)
	a.sched.Start()
	if err := a.fixed.Start(); err != nil {
		return err
	}
	if err := a.router.Run(ctx); err != nil {
		return err
	}
	if err := a.adapter.RegisterCommands(ctx, router.Commands()); err != nil {
		a.log.Warn("command registration failed", logx.Err(err))
	}

	// Hot reload covers only the subset that is safe to swap at runtime.
	if err := config.Watch(ctx, a.cfgPath, a.log.With(logx.String("comp", "config")), func(cfg *config.Config) {
		a.logs.SetLevel(cfg.Logging.Level)
		a.fixed.Apply(cfg.Fixed.Messages, cfg.Fixed.Mention)
	}); err != nil {
		a.log.Warn("config watch disabled", logx.Err(err))
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	a.log.Info("alertbot started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	_ = a.adapter.Stop(ctx)
	a.fixed.Stop(ctx)
	a.sched.Stop(ctx)
	a.notif.Stop(ctx)
	if a.audit != nil {
		_ = a.audit.Close()
	}
	a.log.Info("alertbot stopped")
	return a.logs.Close()
}
