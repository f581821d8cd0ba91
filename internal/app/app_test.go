package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"hwbot/internal/config"
	"hwbot/internal/poll"
	logx "hwbot/pkg/logx"
)

type botAPI struct {
	mu    sync.Mutex
	texts []string
}

func (b *botAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	b.mu.Lock()
	b.texts = append(b.texts, req.Text)
	b.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`))
}

func (b *botAPI) sent() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.texts...)
}

func writeConfig(t *testing.T, cfg map[string]any) *config.Manager {
	t.Helper()
	p := filepath.Join(t.TempDir(), "hwbot.json")
	b, err := json.Marshal(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, b, 0o600); err != nil {
		t.Fatal(err)
	}
	m := config.NewManager(p, logx.Nop())
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return m
}

func TestAppDeliversStatusChange(t *testing.T) {
	var (
		mu               sync.Mutex
		gotAuth, gotFrom string
	)
	statusAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotAuth = r.Header.Get("Authorization")
		gotFrom = r.URL.Query().Get("from_date")
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"homeworks":[{"homework_name":"X","status":"approved"}],"current_date":1000}`))
	}))
	defer statusAPI.Close()
	bot := &botAPI{}
	botSrv := httptest.NewServer(bot)
	defer botSrv.Close()

	cfgm := writeConfig(t, map[string]any{
		"status_api": map[string]any{"endpoint": statusAPI.URL},
		"telegram":   map[string]any{"api_url": botSrv.URL},
		"poll":       map[string]any{"interval": "1h", "lookback": "24h"},
		"logging":    map[string]any{"level": "error", "console": false},
	})
	a, err := New(config.Credentials{PracticumToken: "pt", TelegramToken: "123:abc", TelegramChatID: "42"}, cfgm)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for a.loop.Last().Result == "" {
		if time.Now().After(deadline) {
			t.Fatal("no tick completed")
		}
		time.Sleep(20 * time.Millisecond)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := a.Stop(stopCtx, StopSignal); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if rep := a.loop.Last(); rep.Result != poll.ResultDelivered {
		t.Fatalf("last tick = %+v", rep)
	}
	want := `Changed status for "X": Работа проверена: ревьюеру всё понравилось. Ура!`
	if got := bot.sent(); len(got) != 1 || got[0] != want {
		t.Fatalf("sent = %q, want %q", got, want)
	}
	mu.Lock()
	defer mu.Unlock()
	if gotAuth != "OAuth pt" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotFrom == "" || gotFrom == "0" {
		t.Fatalf("from_date = %q", gotFrom)
	}
}

func TestApplyConfigSwapsPollSettings(t *testing.T) {
	cfgm := writeConfig(t, map[string]any{
		"logging": map[string]any{"level": "error", "console": false},
	})
	a, err := New(config.Credentials{PracticumToken: "pt", TelegramToken: "123:abc", TelegramChatID: "42"}, cfgm)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.logs.Close()

	prev := cfgm.Get()
	next := *prev
	next.Poll.Interval = "5m"
	next.Poll.ReportFailures = true
	next.Verdicts = map[string]string{"on_hold": "paused"}
	a.applyConfig(prev, &next)

	set := a.loop.Settings()
	if set.Schedule.Every != 5*time.Minute || !set.ReportFailures {
		t.Fatalf("settings not applied: %+v", set)
	}
	codes := set.Interpreter.Codes()
	if len(codes) != 4 {
		t.Fatalf("codes = %v, want defaults plus on_hold", codes)
	}
}

func TestInitialCursorUsesLookback(t *testing.T) {
	t.Parallel()
	now := time.Unix(10_000, 0)
	cfg := config.Defaults()
	if c, err := initialCursor(cfg, now); err != nil || c != 10_000 {
		t.Fatalf("cursor = %d, %v; want 10000", c, err)
	}
	cfg.Poll.Lookback = "1h"
	if c, err := initialCursor(cfg, now); err != nil || c != 10_000-3600 {
		t.Fatalf("cursor = %d, %v; want 6400", c, err)
	}
}
