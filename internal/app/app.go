// Package app wires configuration, logging, the session, the job store,
// the scheduler and the HTTP boundary into one process lifecycle.
package app

import (
	"context"
	"fmt"
	"sync"

	"groupcast/internal/config"
	"groupcast/internal/delivery"
	"groupcast/internal/httpapi"
	"groupcast/internal/jobstore"
	"groupcast/internal/notify"
	"groupcast/internal/scheduler"
	"groupcast/internal/session"
	"groupcast/pkg/logx"
)

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	sess  session.Session
	store jobstore.Store
	exec  *delivery.Executor
	sched *scheduler.Service
	http  *httpapi.Server

	watchCancel context.CancelFunc
	watchWG     sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	boot := logx.NewConsole(cfg.Logging.Level)

	// Alerts are optional: misconfiguration degrades to local logging only.
	var sender logx.AlertSender
	if cfg.Alerts != nil && cfg.Alerts.Telegram.Token != "" {
		tg, err := notify.NewTelegram(notify.Config{
			Token:  cfg.Alerts.Telegram.Token,
			ChatID: cfg.Alerts.Telegram.ChatID,
		}, boot)
		if err != nil {
			boot.Warn("telegram alerts disabled", logx.Err(err))
		} else {
			sender = tg
		}
	}

	logSvc, log := logx.New(logxConfig(cfg.Logging), sender)
	mgr.SetLogger(log)
	mgr.SetValidator(func(ctx context.Context, cfg *config.Config) error {
		return validate(cfg)
	})

	sessCfg, err := sessionConfig(cfg.Session)
	if err != nil {
		return nil, err
	}
	sess, err := session.Open(sessCfg, log.With(logx.String("comp", "session")))
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	stCfg, err := storeConfig(cfg.Store)
	if err != nil {
		return nil, err
	}
	store, err := jobstore.Open(stCfg, log.With(logx.String("comp", "jobstore")))
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}

	dlCfg, err := deliveryConfig(cfg.Delivery)
	if err != nil {
		return nil, err
	}
	exec := delivery.New(dlCfg, sess, log.With(logx.String("comp", "delivery")))

	schCfg, err := schedulerConfig(cfg.Scheduler)
	if err != nil {
		return nil, err
	}
	sched := scheduler.New(schCfg, store, exec, log.With(logx.String("comp", "scheduler")))

	htCfg, err := httpConfig(cfg.HTTP, cfg.Uploads)
	if err != nil {
		return nil, err
	}
	srv := httpapi.New(htCfg, sched, sess, log.With(logx.String("comp", "http")))

	a := &App{
		cfgMgr: mgr,
		logSvc: logSvc,
		log:    log,
		sess:   sess,
		store:  store,
		exec:   exec,
		sched:  sched,
		http:   srv,
	}
	a.observeSession()
	return a, nil
}

// observeSession logs every session transition. A drop out of Ready is
// operator-relevant (armed jobs will fail at fire time), so it logs at warn,
// which also feeds the alert sink.
func (a *App) observeSession() {
	var mu sync.Mutex
	prev := a.sess.State()
	a.sess.OnStateChange(func(st session.State) {
		mu.Lock()
		from := prev
		prev = st
		mu.Unlock()
		if from == session.StateReady && st == session.StateDisconnected {
			a.log.Warn("session disconnected", logx.String("from", from.String()))
			return
		}
		a.log.Info("session state changed",
			logx.String("from", from.String()),
			logx.String("to", st.String()))
	})
}

func (a *App) Start(ctx context.Context) error {
	if err := a.sess.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	if err := a.sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	if err := a.http.Start(ctx); err != nil {
		return fmt.Errorf("start http: %w", err)
	}

	wctx, cancel := context.WithCancel(ctx)
	a.watchCancel = cancel
	sub := a.cfgMgr.Subscribe(1)
	a.watchWG.Add(2)
	go func() {
		defer a.watchWG.Done()
		_ = a.cfgMgr.Watch(wctx)
	}()
	go func() {
		defer a.watchWG.Done()
		defer a.cfgMgr.Unsubscribe(sub)
		for {
			select {
			case <-wctx.Done():
				return
			case cfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyReload(cfg)
			}
		}
	}()

	a.log.Info("groupcast started")
	return nil
}

// applyReload applies the hot-reloadable subset: log sinks/levels and
// delivery pacing. Session driver, store driver and HTTP address changes
// need a restart.
func (a *App) applyReload(cfg *config.Config) {
	if cfg == nil {
		return
	}
	a.logSvc.Apply(logxConfig(cfg.Logging))
	if dlCfg, err := deliveryConfig(cfg.Delivery); err == nil {
		a.exec.Apply(dlCfg)
	}
	a.log.Info("config applied")
}

func (a *App) Stop(ctx context.Context) error {
	if a.watchCancel != nil {
		a.watchCancel()
		a.watchWG.Wait()
		a.watchCancel = nil
	}

	if err := a.http.Stop(ctx); err != nil {
		a.log.Warn("http stop", logx.Err(err))
	}
	a.sched.Stop(ctx)
	if err := a.sess.Stop(ctx); err != nil {
		a.log.Warn("session stop", logx.Err(err))
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("store close", logx.Err(err))
	}
	a.log.Info("groupcast stopped")
	return a.logSvc.Close()
}

// validate rejects a reloaded config whose typed translation would fail, so
// a bad edit never reaches the running services.
func validate(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if _, err := sessionConfig(cfg.Session); err != nil {
		return err
	}
	if _, err := storeConfig(cfg.Store); err != nil {
		return err
	}
	if _, err := schedulerConfig(cfg.Scheduler); err != nil {
		return err
	}
	if _, err := deliveryConfig(cfg.Delivery); err != nil {
		return err
	}
	if _, err := httpConfig(cfg.HTTP, cfg.Uploads); err != nil {
		return err
	}
	return nil
}
