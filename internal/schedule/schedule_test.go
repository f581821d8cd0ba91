package schedule

import (
	"testing"
	"time"
)

func TestParseVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		raw   string
		kind  Kind
		every time.Duration
	}{
		{name: "duration", raw: "10m", kind: KindInterval, every: 10 * time.Minute},
		{name: "seconds", raw: "600s", kind: KindInterval, every: 10 * time.Minute},
		{name: "prefixed interval", raw: "every:45s", kind: KindInterval, every: 45 * time.Second},
		{name: "hhmm", raw: "01:30", kind: KindInterval, every: 90 * time.Minute},
		{name: "cron", raw: "*/5 * * * *", kind: KindCron},
		{name: "descriptor", raw: "@every 10m", kind: KindCron},
		{name: "prefixed cron", raw: "cron:0 0 * * *", kind: KindCron},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.raw, err)
			}
			if got.Kind != tt.kind {
				t.Fatalf("Kind = %v, want %v", got.Kind, tt.kind)
			}
			if tt.kind == KindInterval && got.Every != tt.every {
				t.Fatalf("Every = %v, want %v", got.Every, tt.every)
			}
			if got.Schedule == nil {
				t.Fatal("Schedule is nil")
			}
		})
	}
}

func TestParseInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "not-a-schedule", "00:75", "500ms", "cron:", "cron:61 * * * *"} {
		if _, err := Parse(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestDelay(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 1, 1, 12, 0, 30, 0, time.UTC)

	if d := Every(10 * time.Minute).Delay(now); d != 10*time.Minute {
		t.Fatalf("interval delay = %v, want 10m", d)
	}

	spec, err := Parse("*/5 * * * *")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d := spec.Delay(now); d != 4*time.Minute+30*time.Second {
		t.Fatalf("cron delay = %v, want 4m30s", d)
	}
}
