package app

import (
	"time"

	"groupcast/internal/config"
	"groupcast/internal/delivery"
	"groupcast/internal/httpapi"
	"groupcast/internal/jobstore"
	"groupcast/internal/scheduler"
	"groupcast/internal/session"
	"groupcast/pkg/logx"
)

// Translation from the on-disk config (duration strings, json tags) into
// each package's typed config. All duration parse errors surface here, which
// is also what the reload validator runs.

func logxConfig(c config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		File:    logx.FileConfig{Enabled: c.File.Enabled, Path: c.File.Path},
		Alerts: logx.AlertConfig{
			Enabled:    c.Alerts.Enabled,
			MinLevel:   c.Alerts.MinLevel,
			RatePerSec: c.Alerts.RatePerSec,
		},
	}
}

func sessionConfig(c config.SessionConfig) (session.Config, error) {
	scanDelay, err := config.ParseDurationField("session.demo.scan_delay", c.Demo.ScanDelay)
	if err != nil {
		return session.Config{}, err
	}
	groups := make([]session.Group, 0, len(c.Demo.Groups))
	for _, g := range c.Demo.Groups {
		groups = append(groups, session.Group{Name: g.Name, ID: g.ID})
	}
	return session.Config{
		Driver: c.Driver,
		Demo:   session.DemoConfig{ScanDelay: scanDelay, Groups: groups},
	}, nil
}

func storeConfig(c config.StoreConfig) (jobstore.Config, error) {
	busy, err := config.ParseDurationField("store.busy_timeout", c.BusyTimeout)
	if err != nil {
		return jobstore.Config{}, err
	}
	path := c.Path
	if path == "" {
		path = "./scheduled-messages.json"
	}
	return jobstore.Config{Driver: c.Driver, Path: path, BusyTimeout: busy}, nil
}

func schedulerConfig(c config.SchedulerConfig) (scheduler.Config, error) {
	sweep, err := config.ParseDurationOrDefault("scheduler.sweep_every", c.SweepEvery, time.Minute)
	if err != nil {
		return scheduler.Config{}, err
	}
	return scheduler.Config{SweepEvery: sweep}, nil
}

func deliveryConfig(c config.DeliveryConfig) (delivery.Config, error) {
	timeout, err := config.ParseDurationField("delivery.timeout", c.Timeout)
	if err != nil {
		return delivery.Config{}, err
	}
	return delivery.Config{RatePerSec: c.RatePerSec, Timeout: timeout}, nil
}

func httpConfig(c config.HTTPConfig, uploads config.UploadsConfig) (httpapi.Config, error) {
	rt, err := config.ParseDurationField("http.read_timeout", c.ReadTimeout)
	if err != nil {
		return httpapi.Config{}, err
	}
	wt, err := config.ParseDurationField("http.write_timeout", c.WriteTimeout)
	if err != nil {
		return httpapi.Config{}, err
	}
	it, err := config.ParseDurationField("http.idle_timeout", c.IdleTimeout)
	if err != nil {
		return httpapi.Config{}, err
	}
	return httpapi.Config{
		Addr:         c.Addr,
		StaticDir:    c.StaticDir,
		UploadDir:    uploads.Dir,
		ReadTimeout:  rt,
		WriteTimeout: wt,
		IdleTimeout:  it,
	}, nil
}
