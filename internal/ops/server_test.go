package ops

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	logx "hwbot/pkg/logx"
)

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	b, _ := io.ReadAll(rec.Body)
	return rec.Code, string(b)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "hwbot_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Add(3)

	code, body := get(t, New(Config{}, reg, nil, logx.Nop()).Handler(), "/metrics")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if !strings.Contains(body, "hwbot_test_total 3") {
		t.Fatalf("metrics body missing counter:\n%s", body)
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	healthy := true
	h := New(Config{}, prometheus.NewRegistry(), func() (any, bool) {
		return map[string]any{"last": "no_change"}, healthy
	}, logx.Nop()).Handler()

	code, body := get(t, h, "/healthz")
	if code != http.StatusOK || !strings.Contains(body, `"last": "no_change"`) {
		t.Fatalf("healthy: %d %s", code, body)
	}
	healthy = false
	if code, _ := get(t, h, "/healthz"); code != http.StatusServiceUnavailable {
		t.Fatalf("unhealthy status = %d, want 503", code)
	}
}

func TestPprofOnlyWhenEnabled(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	if code, _ := get(t, New(Config{}, reg, nil, logx.Nop()).Handler(), "/debug/pprof/"); code != http.StatusNotFound {
		t.Fatalf("pprof disabled: status = %d, want 404", code)
	}
	if code, _ := get(t, New(Config{Pprof: true}, reg, nil, logx.Nop()).Handler(), "/debug/pprof/"); code != http.StatusOK {
		t.Fatalf("pprof enabled: status = %d, want 200", code)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	t.Parallel()
	s := New(Config{Addr: "127.0.0.1:0"}, prometheus.NewRegistry(), nil, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for s.Addr() == "" {
		if time.Now().After(deadline) {
			t.Fatal("listener did not start")
		}
		time.Sleep(10 * time.Millisecond)
	}
	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return")
	}
}
