package config

import (
	"bytes"
	"encoding/json"
)

// ChangedSections lists the top-level sections that differ between a and b,
// in a fixed order. It never includes values, so it is safe to log.
func ChangedSections(a, b *Config) []string {
	if a == nil || b == nil {
		return nil
	}
	pairs := []struct {
		name string
		x, y any
	}{
		{"status_api", a.StatusAPI, b.StatusAPI},
		{"telegram", a.Telegram, b.Telegram},
		{"poll", a.Poll, b.Poll},
		{"notifier", a.Notifier, b.Notifier},
		{"verdicts", a.Verdicts, b.Verdicts},
		{"logging", a.Logging, b.Logging},
		{"ops", a.Ops, b.Ops},
		{"storage", a.Storage, b.Storage},
	}
	var out []string
	for _, p := range pairs {
		if !sameJSON(p.x, p.y) {
			out = append(out, p.name)
		}
	}
	return out
}

func sameJSON(x, y any) bool {
	bx, err1 := json.Marshal(x)
	by, err2 := json.Marshal(y)
	if err1 != nil || err2 != nil {
		return false
	}
	return bytes.Equal(bx, by)
}

// RestartRequired reports which of the changed sections only take effect
// after a restart.
func RestartRequired(sections []string) []string {
	var out []string
	for _, s := range sections {
		switch s {
		case "status_api", "telegram", "notifier", "ops", "storage":
			out = append(out, s)
		}
	}
	return out
}
