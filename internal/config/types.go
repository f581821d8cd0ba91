package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"hwbot/internal/schedule"
)

// Config holds every tunable that is not a credential. Credentials come from
// the environment (see LoadCredentials) and never appear in this struct.
type Config struct {
	StatusAPI StatusAPIConfig `json:"status_api"`
	Telegram  TelegramConfig  `json:"telegram"`
	Poll      PollConfig      `json:"poll"`
	Notifier  NotifierConfig  `json:"notifier"`

	// Verdicts extends or overrides the built-in status → text table.
	// An empty text removes a built-in code.
	Verdicts map[string]string `json:"verdicts,omitempty"`

	Logging LoggingConfig `json:"logging"`
	Ops     OpsConfig     `json:"ops"`
	Storage StorageConfig `json:"storage"`
}

type StatusAPIConfig struct {
	Endpoint string `json:"endpoint"`
	// Timeout is a Go duration string bounding one status query.
	Timeout string `json:"timeout"`
}

type TelegramConfig struct {
	// APIURL overrides https://api.telegram.org (self-hosted Bot API server).
	APIURL   string `json:"api_url,omitempty"`
	ThreadID int    `json:"thread_id,omitempty"`
	Timeout  string `json:"timeout"`
}

// PollConfig controls the poll loop.
//
// Defaults (when fields are omitted/zero):
//   - interval: "10m"
//   - lookback: "0s" (first query starts at process start time)
//   - backoff_max: "0s" (fixed interval on every failure)
//   - tick_timeout: "2m"
type PollConfig struct {
	// Interval accepts a duration ("10m"), HH:MM ("00:10") or cron ("*/10 * * * *").
	Interval string `json:"interval"`
	Lookback string `json:"lookback,omitempty"`
	// BackoffMax stretches the sleep after consecutive API failures up to this value.
	BackoffMax  string `json:"backoff_max,omitempty"`
	TickTimeout string `json:"tick_timeout,omitempty"`
	// ReportFailures also sends API/validation failures to the chat.
	ReportFailures bool `json:"report_failures,omitempty"`
}

// NotifierConfig controls delivery to the chat.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type NotifierConfig struct {
	RatePerSec    int    `json:"rate_per_sec"`
	RetryMax      int    `json:"retry_max"`
	RetryBase     string `json:"retry_base"`
	RetryMaxDelay string `json:"retry_max_delay"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// OpsConfig controls the operator HTTP listener (/metrics, /healthz, pprof).
//
// Prefer binding to localhost; the endpoints are unauthenticated.
type OpsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default: "127.0.0.1:9090"
	Pprof   bool   `json:"pprof,omitempty"`
}

// StorageConfig controls the delivery journal.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/hwbot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// Defaults returns the configuration used when no settings file is given.
func Defaults() *Config {
	return &Config{
		StatusAPI: StatusAPIConfig{
			Endpoint: "https://practicum.yandex.ru/api/user_api/homework_statuses/",
			Timeout:  "30s",
		},
		Telegram: TelegramConfig{Timeout: "10s"},
		Poll: PollConfig{
			Interval:    "10m",
			TickTimeout: "2m",
		},
		Notifier: NotifierConfig{
			RatePerSec:    1,
			RetryBase:     "500ms",
			RetryMaxDelay: "10s",
		},
		Logging: LoggingConfig{Level: "info", Console: true},
		Ops:     OpsConfig{Addr: "127.0.0.1:9090"},
	}
}

// Decode overlays JSON onto Defaults(). Unknown fields are rejected.
func Decode(jb []byte) (*Config, error) {
	cfg := Defaults()
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("invalid config: trailing data")
		}
		return nil, err
	}
	return cfg, nil
}

// Validate checks every duration/schedule string so a bad reload is
// rejected before it is committed.
func (c *Config) Validate() error {
	if _, err := schedule.Parse(c.Poll.Interval); err != nil {
		return fmt.Errorf("poll.interval: %w", err)
	}
	durations := map[string]string{
		"status_api.timeout":       c.StatusAPI.Timeout,
		"telegram.timeout":         c.Telegram.Timeout,
		"poll.lookback":            c.Poll.Lookback,
		"poll.backoff_max":         c.Poll.BackoffMax,
		"poll.tick_timeout":        c.Poll.TickTimeout,
		"notifier.retry_base":      c.Notifier.RetryBase,
		"notifier.retry_max_delay": c.Notifier.RetryMaxDelay,
		"storage.busy_timeout":     c.Storage.BusyTimeout,
	}
	for path, raw := range durations {
		if _, err := ParseDuration(path, raw, 0); err != nil {
			return err
		}
	}
	if c.Notifier.RetryMax < 0 {
		return fmt.Errorf("notifier.retry_max must be >= 0")
	}
	if c.Ops.Enabled && strings.TrimSpace(c.Ops.Addr) == "" {
		return fmt.Errorf("ops.addr is required when ops is enabled")
	}
	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case "", "none":
	case "file", "sqlite", "sqlite3":
		if strings.TrimSpace(c.Storage.Path) == "" {
			return fmt.Errorf("storage.path is required for driver %q", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver)
	}
	return nil
}
