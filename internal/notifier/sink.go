package notifier

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"hwbot/internal/storage"
	kit "hwbot/internal/transport"
	logx "hwbot/pkg/logx"
)

const historySize = 50

// Sink sends text to one fixed chat.
//
// It is safe for concurrent use, although the poll loop only ever calls it
// from a single goroutine.
type Sink struct {
	sender  kit.Sender
	target  kit.ChatTarget
	journal storage.Store
	log     logx.Logger

	cfg     Config
	limiter *rate.Limiter

	hmu     sync.Mutex
	history []HistoryItem
}

// New builds a sink. journal may be nil.
func New(cfg Config, sender kit.Sender, target kit.ChatTarget, journal storage.Store, log logx.Logger) (*Sink, error) {
	if sender == nil {
		return nil, errors.New("notifier: sender is nil")
	}
	if strings.TrimSpace(target.ChatID) == "" {
		return nil, errors.New("notifier: chat id is empty")
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Sink{
		sender:  sender,
		target:  target,
		journal: journal,
		log:     log,
		cfg:     cfg,
		// Token bucket: burst = rate per sec, so short spikes don't block too hard.
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
	}, nil
}

// Deliver sends text to the configured chat. A nil error is the Ack.
func (s *Sink) Deliver(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return &DeliveryError{ChatID: s.target.ChatID, Err: errors.New("empty text")}
	}
	start := time.Now()
	attempts, err := s.sendWithRetry(ctx, text)
	s.record(ctx, text, attempts, time.Since(start), err)
	if err != nil {
		s.log.Warn("notification send failed",
			logx.String("chat_id", s.target.ChatID),
			logx.Int("attempts", attempts),
			logx.Err(err),
		)
		return &DeliveryError{ChatID: s.target.ChatID, Attempts: attempts, Err: err}
	}
	s.log.Debug("notification sent", logx.String("chat_id", s.target.ChatID), logx.Int("attempts", attempts))
	return nil
}

func (s *Sink) sendWithRetry(ctx context.Context, text string) (int, error) {
	maxAttempts := 1 + s.cfg.RetryMax
	opt := &kit.SendOptions{ParseMode: s.cfg.ParseMode, DisablePreview: true}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			return attempt - 1, lastErr
		}

		// A single attempt is bounded by the sender's own client timeout.
		_, err := s.sender.SendText(ctx, s.target, text, opt)
		if err == nil {
			return attempt, nil
		}
		lastErr = err
		s.log.Debug("notify send attempt failed", logx.Err(err), logx.Int("attempt", attempt), logx.Int("max", maxAttempts))

		if attempt >= maxAttempts {
			return attempt, lastErr
		}
		t := time.NewTimer(retryDelay(s.cfg, attempt))
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return attempt, lastErr
		}
	}
	return maxAttempts, lastErr
}

func (s *Sink) record(ctx context.Context, text string, attempts int, took time.Duration, err error) {
	item := HistoryItem{At: time.Now(), Text: text, OK: err == nil}
	if err != nil {
		item.Error = err.Error()
	}
	s.hmu.Lock()
	s.history = append(s.history, item)
	if len(s.history) > historySize {
		s.history = s.history[len(s.history)-historySize:]
	}
	s.hmu.Unlock()

	if s.journal == nil {
		return
	}
	// The journal write must not be skipped just because the tick ctx expired.
	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	rec := storage.DeliveryRecord{
		At:       item.At,
		ChatID:   s.target.ChatID,
		Text:     text,
		OK:       item.OK,
		Attempts: attempts,
		Error:    item.Error,
		TookMS:   took.Milliseconds(),
	}
	if jerr := s.journal.AppendDelivery(jctx, rec); jerr != nil {
		s.log.Warn("delivery journal append failed", logx.Err(jerr))
	}
}

// Snapshot returns recent deliveries, oldest first.
func (s *Sink) Snapshot() []HistoryItem {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	return append([]HistoryItem(nil), s.history...)
}

func retryDelay(cfg Config, attempt int) time.Duration {
	// attempt starts at 1 (first attempt), delay is for the NEXT attempt.
	d := cfg.RetryBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= cfg.RetryMaxDelay {
			d = cfg.RetryMaxDelay
			break
		}
	}
	// Jitter 0.7..1.3
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	d = time.Duration(float64(d) * (0.7 + rng.Float64()*0.6))
	if d > cfg.RetryMaxDelay {
		d = cfg.RetryMaxDelay
	}
	if d < 0 {
		return 0
	}
	return d
}
