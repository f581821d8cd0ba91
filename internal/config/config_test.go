package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	logx "hwbot/pkg/logx"
)

func TestLoadCredentialsReportsAllMissing(t *testing.T) {
	t.Parallel()
	env := map[string]string{EnvTelegramToken: "tg"}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	_, err := LoadCredentials(lookup)
	if !errors.Is(err, ErrEnvVariableMissing) {
		t.Fatalf("err = %v, want ErrEnvVariableMissing", err)
	}
	var me *EnvVariableMissingError
	if !errors.As(err, &me) {
		t.Fatalf("err type = %T", err)
	}
	want := []string{EnvPracticumToken, EnvTelegramChatID}
	if strings.Join(me.Names, ",") != strings.Join(want, ",") {
		t.Fatalf("Names = %v, want %v", me.Names, want)
	}
}

func TestLoadCredentialsBlankIsMissing(t *testing.T) {
	t.Parallel()
	env := map[string]string{
		EnvPracticumToken: "p",
		EnvTelegramToken:  "  ",
		EnvTelegramChatID: "42",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }
	if _, err := LoadCredentials(lookup); !errors.Is(err, ErrEnvVariableMissing) {
		t.Fatalf("err = %v, want ErrEnvVariableMissing", err)
	}

	env[EnvTelegramToken] = "t"
	c, err := LoadCredentials(lookup)
	if err != nil {
		t.Fatalf("LoadCredentials: %v", err)
	}
	if c.PracticumToken != "p" || c.TelegramToken != "t" || c.TelegramChatID != "42" {
		t.Fatalf("unexpected credentials: %+v", c)
	}
}

func TestLoadDotEnvMissingFileIsFine(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	p := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(p, []byte("HWBOT_TEST_A=file\nHWBOT_TEST_B=file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HWBOT_TEST_A", "env")
	t.Setenv("HWBOT_TEST_B", "")
	os.Unsetenv("HWBOT_TEST_B")

	if err := LoadDotEnv(p); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("HWBOT_TEST_A"); got != "env" {
		t.Fatalf("HWBOT_TEST_A = %q, want env", got)
	}
	if got := os.Getenv("HWBOT_TEST_B"); got != "file" {
		t.Fatalf("HWBOT_TEST_B = %q, want file", got)
	}
}

func TestDecodeOverlaysDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := Decode([]byte(`{"poll":{"interval":"5m"},"verdicts":{"on_hold":"wait"}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.Poll.Interval != "5m" {
		t.Fatalf("interval = %q", cfg.Poll.Interval)
	}
	if cfg.Poll.TickTimeout != "2m" || cfg.Notifier.RatePerSec != 1 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	if cfg.Verdicts["on_hold"] != "wait" {
		t.Fatalf("verdicts = %v", cfg.Verdicts)
	}
}

func TestDecodeRejects(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"unknown field": `{"poll":{"intervall":"5m"}}`,
		"trailing data": `{} {}`,
		"bad json":      `{`,
	}
	for name, in := range cases {
		if _, err := Decode([]byte(in)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "bad interval", mutate: func(c *Config) { c.Poll.Interval = "soon" }, wantErr: "poll.interval"},
		{name: "negative duration", mutate: func(c *Config) { c.Notifier.RetryBase = "-1s" }, wantErr: "notifier.retry_base"},
		{name: "negative retries", mutate: func(c *Config) { c.Notifier.RetryMax = -1 }, wantErr: "retry_max"},
		{name: "ops without addr", mutate: func(c *Config) { c.Ops.Enabled = true; c.Ops.Addr = "" }, wantErr: "ops.addr"},
		{name: "storage without path", mutate: func(c *Config) { c.Storage.Driver = "sqlite" }, wantErr: "storage.path"},
		{name: "unknown storage", mutate: func(c *Config) { c.Storage.Driver = "redis"; c.Storage.Path = "x" }, wantErr: "unknown driver"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			c := Defaults()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestManagerLoadYAML(t *testing.T) {
	t.Parallel()
	p := filepath.Join(t.TempDir(), "hwbot.yaml")
	doc := "poll:\n  interval: \"*/10 * * * *\"\n  report_failures: true\nverdicts:\n  on_hold: paused\n"
	if err := os.WriteFile(p, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	m := NewManager(p, logx.Nop())
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Poll.Interval != "*/10 * * * *" || !cfg.Poll.ReportFailures {
		t.Fatalf("poll = %+v", cfg.Poll)
	}
	if m.Get() != cfg {
		t.Fatal("Get should return the committed config")
	}
}

func TestExampleConfigLoads(t *testing.T) {
	t.Parallel()
	cfg, err := NewManager(filepath.Join("..", "..", "hwbot.example.yaml"), logx.Nop()).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := ChangedSections(Defaults(), cfg); len(diff) != 0 {
		t.Fatalf("example differs from defaults in %v", diff)
	}
}

func TestManagerEmptyPathUsesDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := NewManager("", logx.Nop()).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Poll.Interval != "10m" {
		t.Fatalf("interval = %q, want 10m", cfg.Poll.Interval)
	}
}

func TestManagerEmptyYAMLKeepsDefaults(t *testing.T) {
	t.Parallel()
	p := filepath.Join(t.TempDir(), "empty.yml")
	if err := os.WriteFile(p, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := NewManager(p, logx.Nop()).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StatusAPI.Timeout != "30s" {
		t.Fatalf("timeout = %q", cfg.StatusAPI.Timeout)
	}
}

func TestManagerRejectsInvalidFile(t *testing.T) {
	t.Parallel()
	p := filepath.Join(t.TempDir(), "hwbot.json")
	if err := os.WriteFile(p, []byte(`{"poll":{"interval":"0s"}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewManager(p, logx.Nop()).Load(); err == nil {
		t.Fatal("expected error")
	}
}

func TestManagerWatchPublishesChange(t *testing.T) {
	t.Parallel()
	p := filepath.Join(t.TempDir(), "hwbot.json")
	if err := os.WriteFile(p, []byte(`{"poll":{"interval":"10m"}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	m := NewManager(p, logx.Nop())
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ch := m.Subscribe(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = m.Watch(ctx)
		close(done)
	}()

	// Give the watcher a moment to register the directory.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(300 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case cfg := <-ch:
			if cfg.Poll.Interval != "5m" {
				t.Fatalf("interval = %q, want 5m", cfg.Poll.Interval)
			}
			cancel()
			<-done
			return
		case <-tick.C:
			_ = os.WriteFile(p, []byte(`{"poll":{"interval":"5m"}}`), 0o600)
		case <-deadline:
			t.Fatal("no reload published")
		}
	}
}

func TestChangedSections(t *testing.T) {
	t.Parallel()
	a := Defaults()
	b := Defaults()
	if got := ChangedSections(a, b); len(got) != 0 {
		t.Fatalf("identical configs: %v", got)
	}
	b.Poll.Interval = "5m"
	b.Verdicts = map[string]string{"on_hold": "paused"}
	b.Storage.Driver = "file"
	got := ChangedSections(a, b)
	if strings.Join(got, ",") != "poll,verdicts,storage" {
		t.Fatalf("ChangedSections = %v", got)
	}
	if rr := RestartRequired(got); strings.Join(rr, ",") != "storage" {
		t.Fatalf("RestartRequired = %v", rr)
	}
}

func TestParseDuration(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		def     time.Duration
		want    time.Duration
		wantErr bool
	}{
		{raw: "", def: time.Minute, want: time.Minute},
		{raw: "0s", def: time.Minute, want: time.Minute},
		{raw: "90s", want: 90 * time.Second},
		{raw: " 600 ", want: 10 * time.Minute},
		{raw: "-5s", wantErr: true},
		{raw: "-1", wantErr: true},
		{raw: "soon", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseDuration("poll.lookback", tt.raw, tt.def)
		if tt.wantErr {
			if err == nil || !strings.Contains(err.Error(), "poll.lookback") {
				t.Fatalf("ParseDuration(%q) err = %v, want error naming the field", tt.raw, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("ParseDuration(%q) = %v, %v; want %v", tt.raw, got, err, tt.want)
		}
	}
}

func TestDecodeFileRejectsAmbiguousYAML(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"two documents":   "poll:\n  interval: 5m\n---\npoll:\n  interval: 1m\n",
		"non-string key":  "verdicts:\n  1: first\n",
		"unknown section": "polling:\n  interval: 5m\n",
	}
	for name, doc := range cases {
		if _, err := decodeFile("hwbot.yaml", []byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	cfg, err := decodeFile("hwbot.yml", []byte("verdicts:\n  on_hold: paused\n"))
	if err != nil || cfg.Verdicts["on_hold"] != "paused" {
		t.Fatalf("decodeFile = %+v, %v", cfg, err)
	}
}
