package notifier

import (
	"errors"
	"fmt"
	"time"
)

var ErrDelivery = errors.New("notification delivery failed")

// Config controls delivery pacing and per-call retry.
type Config struct {
	RatePerSec    int
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	ParseMode     string
}

type HistoryItem struct {
	At    time.Time `json:"at"`
	Text  string    `json:"text"`
	OK    bool      `json:"ok"`
	Error string    `json:"error,omitempty"`
}

// DeliveryError wraps the last send error after all attempts failed.
type DeliveryError struct {
	ChatID   string
	Attempts int
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to %s failed after %d attempt(s): %v", e.ChatID, e.Attempts, e.Err)
}

func (e *DeliveryError) Unwrap() []error { return []error{ErrDelivery, e.Err} }
