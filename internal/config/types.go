package config

// Config is the full groupcast configuration.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	HTTP      HTTPConfig      `json:"http"`
	Session   SessionConfig   `json:"session"`
	Store     StoreConfig     `json:"store"`
	Scheduler SchedulerConfig `json:"scheduler,omitempty"`
	Delivery  DeliveryConfig  `json:"delivery,omitempty"`
	Uploads   UploadsConfig   `json:"uploads,omitempty"`
	Logging   LoggingConfig   `json:"logging"`
	Alerts    *AlertsConfig   `json:"alerts,omitempty"`
}

type HTTPConfig struct {
	// Addr defaults to ":3000".
	Addr string `json:"addr,omitempty"`
	// StaticDir, when set, is served at "/" (the bundled front end).
	StaticDir string `json:"static_dir,omitempty"`

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}

// SessionConfig selects the session driver. The "demo" driver simulates the
// scan -> ready lifecycle; real deployments plug in an external session.
type SessionConfig struct {
	Driver string            `json:"driver"`
	Demo   SessionDemoConfig `json:"demo,omitempty"`
}

type SessionDemoConfig struct {
	ScanDelay string             `json:"scan_delay,omitempty"`
	Groups    []SessionDemoGroup `json:"groups,omitempty"`
}

type SessionDemoGroup struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// StoreConfig controls pending-job persistence.
//
// Example:
//
//	"store": { "driver": "file", "path": "./scheduled-messages.json" }
type StoreConfig struct {
	Driver      string `json:"driver,omitempty"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

type SchedulerConfig struct {
	// SweepEvery is the due-job safety sweep interval. Default "1m".
	SweepEvery string `json:"sweep_every,omitempty"`
}

type DeliveryConfig struct {
	RatePerSec int    `json:"rate_per_sec,omitempty"`
	Timeout    string `json:"timeout,omitempty"`
}

type UploadsConfig struct {
	// Dir defaults to "./uploads". Uploaded attachments are kept for the
	// lifetime of their job and are not cleaned up automatically.
	Dir string `json:"dir,omitempty"`
}

type LoggingConfig struct {
	Level   string        `json:"level"`
	Console bool          `json:"console"`
	File    LoggingFile   `json:"file"`
	Alerts  LoggingAlerts `json:"alerts,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingAlerts forwards log records at or above MinLevel to the operator
// alert channel (see AlertsConfig), rate limited.
type LoggingAlerts struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// AlertsConfig configures the operator alert channel. Alerts stay disabled
// unless a token is present.
type AlertsConfig struct {
	Telegram TelegramAlerts `json:"telegram,omitempty"`
}

type TelegramAlerts struct {
	Token  string `json:"token"`
	ChatID int64  `json:"chat_id"`
}
