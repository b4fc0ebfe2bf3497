package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

const sampleYAML = `
http:
  addr: ":8080"
  read_timeout: "10s"
session:
  driver: demo
  demo:
    scan_delay: "500ms"
    groups:
      - name: "Team A"
        id: "team-a@g.us"
store:
  driver: file
  path: "./jobs.json"
scheduler:
  sweep_every: "30s"
delivery:
  rate_per_sec: 3
  timeout: "20s"
logging:
  level: debug
  console: true
`

func TestParseYAML(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.yaml", sampleYAML))
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("http.addr = %q", cfg.HTTP.Addr)
	}
	if cfg.Session.Driver != "demo" || len(cfg.Session.Demo.Groups) != 1 {
		t.Fatalf("session section mangled: %+v", cfg.Session)
	}
	if cfg.Session.Demo.Groups[0].ID != "team-a@g.us" {
		t.Fatalf("demo group mangled: %+v", cfg.Session.Demo.Groups[0])
	}
	if cfg.Store.Path != "./jobs.json" {
		t.Fatalf("store.path = %q", cfg.Store.Path)
	}
	if cfg.Scheduler.SweepEvery != "30s" || cfg.Delivery.RatePerSec != 3 {
		t.Fatalf("scheduler/delivery mangled: %+v %+v", cfg.Scheduler, cfg.Delivery)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Fatalf("logging mangled: %+v", cfg.Logging)
	}
}

func TestParseJSON(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.json", `{
		"http": {"addr": ":9000"},
		"session": {"driver": "demo"},
		"store": {"path": "./jobs.json"},
		"logging": {"level": "info", "console": true}
	}`))
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.HTTP.Addr != ":9000" {
		t.Fatalf("http.addr = %q", cfg.HTTP.Addr)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.yaml", `
session:
  driver: demo
store:
  path: "./jobs.json"
logging:
  level: info
bogus_section:
  x: 1
`))
	if _, err := m.Parse(); err == nil || !strings.Contains(err.Error(), "bogus_section") {
		t.Fatalf("expected unknown-field error, got %v", err)
	}
}

func TestParseRejectsTrailingJSON(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.json", `{"session":{"driver":"demo"},"store":{"path":"x"},"logging":{}}{"extra":true}`))
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestLoadCommitsAndGet(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.yaml", sampleYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get must return the committed config")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	cases := []struct {
		raw  string
		want time.Duration
		ok   bool
	}{
		{"", 0, true},
		{"  ", 0, true},
		{"10s", 10 * time.Second, true},
		{"1m30s", 90 * time.Second, true},
		{"-5s", 0, false},
		{"ten seconds", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDurationField("test.field", tc.raw)
		if tc.ok != (err == nil) {
			t.Fatalf("%q: err = %v, want ok=%v", tc.raw, err, tc.ok)
		}
		if tc.ok && got != tc.want {
			t.Fatalf("%q: got %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationOrDefault("f", "", time.Minute); err != nil || d != time.Minute {
		t.Fatalf("blank: got %v, %v", d, err)
	}
	if d, err := ParseDurationOrDefault("f", "5s", time.Minute); err != nil || d != 5*time.Second {
		t.Fatalf("explicit: got %v, %v", d, err)
	}
	if _, err := ParseDurationOrDefault("f", "junk", time.Minute); err == nil {
		t.Fatal("expected error for junk duration")
	}
}

func TestHashConfigDetectsChange(t *testing.T) {
	t.Parallel()
	a := &Config{HTTP: HTTPConfig{Addr: ":3000"}}
	b := &Config{HTTP: HTTPConfig{Addr: ":3001"}}
	if hashConfig(a) == hashConfig(b) {
		t.Fatal("different configs must hash differently")
	}
	if hashConfig(a) != hashConfig(&Config{HTTP: HTTPConfig{Addr: ":3000"}}) {
		t.Fatal("identical configs must hash identically")
	}
}
