package app

import (
	"strings"
	"time"

	"hwbot/internal/config"
	"hwbot/internal/homework"
	"hwbot/internal/notifier"
	"hwbot/internal/poll"
	"hwbot/internal/schedule"
	"hwbot/internal/storage"
	telegram "hwbot/internal/transport/telegram/adapter"
	logx "hwbot/pkg/logx"
)

// The map* helpers turn the file-facing Config (strings) into component
// configs (typed). Config.Validate has already run, but each helper still
// returns the parse error so a bad hot reload is reported, not ignored.

func mapLogging(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapPollSettings(cfg *config.Config) (poll.Settings, error) {
	spec, err := schedule.Parse(cfg.Poll.Interval)
	if err != nil {
		return poll.Settings{}, err
	}
	backoff, err := config.ParseDuration("poll.backoff_max", cfg.Poll.BackoffMax, 0)
	if err != nil {
		return poll.Settings{}, err
	}
	tick, err := config.ParseDuration("poll.tick_timeout", cfg.Poll.TickTimeout, 2*time.Minute)
	if err != nil {
		return poll.Settings{}, err
	}
	return poll.Settings{
		Schedule:       spec,
		Interpreter:    homework.NewInterpreter(cfg.Verdicts),
		ReportFailures: cfg.Poll.ReportFailures,
		BackoffMax:     backoff,
		TickTimeout:    tick,
	}, nil
}

func mapClientConfig(cfg *config.Config, token string) (homework.ClientConfig, error) {
	timeout, err := config.ParseDuration("status_api.timeout", cfg.StatusAPI.Timeout, homework.DefaultTimeout)
	if err != nil {
		return homework.ClientConfig{}, err
	}
	endpoint := strings.TrimSpace(cfg.StatusAPI.Endpoint)
	if endpoint == "" {
		endpoint = homework.DefaultEndpoint
	}
	return homework.ClientConfig{Endpoint: endpoint, Token: token, Timeout: timeout}, nil
}

func mapTelegramConfig(cfg *config.Config, token string) (telegram.Config, error) {
	timeout, err := config.ParseDuration("telegram.timeout", cfg.Telegram.Timeout, 10*time.Second)
	if err != nil {
		return telegram.Config{}, err
	}
	return telegram.Config{Token: token, APIURL: cfg.Telegram.APIURL, Timeout: timeout}, nil
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	n := cfg.Notifier
	base, err := config.ParseDuration("notifier.retry_base", n.RetryBase, 500*time.Millisecond)
	if err != nil {
		return notifier.Config{}, err
	}
	maxDelay, err := config.ParseDuration("notifier.retry_max_delay", n.RetryMaxDelay, 10*time.Second)
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{
		RatePerSec:    n.RatePerSec,
		RetryMax:      n.RetryMax,
		RetryBase:     base,
		RetryMaxDelay: maxDelay,
	}, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	busy, err := config.ParseDuration("storage.busy_timeout", sc.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      strings.ToLower(strings.TrimSpace(sc.Driver)),
		Path:        strings.TrimSpace(sc.Path),
		BusyTimeout: busy,
	}, nil
}

// initialCursor is "now" minus poll.lookback.
func initialCursor(cfg *config.Config, now time.Time) (homework.Cursor, error) {
	lookback, err := config.ParseDuration("poll.lookback", cfg.Poll.Lookback, 0)
	if err != nil {
		return 0, err
	}
	return homework.Cursor(now.Add(-lookback).Unix()), nil
}
