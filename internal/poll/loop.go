// Package poll owns the status loop: query, validate, interpret, notify and
// sleep, forever.
//
// The cursor and the de-duplication state belong to the loop goroutine and
// are never shared. Only Settings can be swapped from outside (hot reload).
package poll

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime/debug"
	"sync"
	"time"

	"hwbot/internal/homework"
	"hwbot/internal/schedule"
	logx "hwbot/pkg/logx"
)

// Fetcher is the status API. *homework.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, cursor homework.Cursor) (any, error)
}

// Deliverer is the notification sink. *notifier.Sink implements it.
type Deliverer interface {
	Deliver(ctx context.Context, text string) error
}

// Settings are the hot-reloadable knobs.
type Settings struct {
	Schedule    schedule.Spec
	Interpreter *homework.Interpreter
	// ReportFailures also turns API and validation failures into a chat notice.
	ReportFailures bool
	// BackoffMax > 0 stretches the sleep after consecutive API failures.
	BackoffMax  time.Duration
	TickTimeout time.Duration
}

type Config struct {
	Settings Settings
	// Start is the initial cursor.
	Start   homework.Cursor
	Metrics *Metrics
	// OnTick, if set, is called after every tick from the loop goroutine.
	OnTick func(TickReport)
}

// Result classifies one tick.
type Result string

const (
	ResultNoChange       Result = "no_change"
	ResultDelivered      Result = "delivered"
	ResultDuplicate      Result = "duplicate"
	ResultDeliveryFailed Result = "delivery_failed"
	ResultTransport      Result = "transport_failure"
	ResultUnavailable    Result = "service_unavailable"
	ResultInvalid        Result = "validation_failure"
	ResultMissingField   Result = "missing_field"
	ResultMalfunction    Result = "malfunction"
)

// TickReport describes what one tick did.
type TickReport struct {
	At       time.Time       `json:"at"`
	Took     time.Duration   `json:"took"`
	Result   Result          `json:"result"`
	Outcome  string          `json:"outcome,omitempty"`
	Cursor   homework.Cursor `json:"cursor"`
	Advanced bool            `json:"advanced"`
	Sent     string          `json:"sent,omitempty"`
	Error    string          `json:"error,omitempty"`
}

type Loop struct {
	client  Fetcher
	sink    Deliverer
	metrics *Metrics
	onTick  func(TickReport)
	log     logx.Logger

	// Owned by the loop goroutine.
	cursor   homework.Cursor
	lastSent string
	pending  string
	failures int
	rng      *rand.Rand

	smu      sync.RWMutex
	settings Settings

	rmu  sync.RWMutex
	last TickReport
}

func New(cfg Config, client Fetcher, sink Deliverer, log logx.Logger) (*Loop, error) {
	if client == nil {
		return nil, errors.New("poll: client is nil")
	}
	if sink == nil {
		return nil, errors.New("poll: sink is nil")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	l := &Loop{
		client:  client,
		sink:    sink,
		metrics: cfg.Metrics,
		onTick:  cfg.OnTick,
		log:     log,
		cursor:  cfg.Start,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	l.ApplySettings(cfg.Settings)
	return l, nil
}

// ApplySettings swaps the reloadable settings. The running tick keeps the
// settings it started with.
func (l *Loop) ApplySettings(s Settings) {
	if s.Interpreter == nil {
		s.Interpreter = homework.NewInterpreter(nil)
	}
	if s.Schedule.Schedule == nil && s.Schedule.Every <= 0 {
		s.Schedule = schedule.Every(10 * time.Minute)
	}
	l.smu.Lock()
	l.settings = s
	l.smu.Unlock()
}

func (l *Loop) Settings() Settings {
	l.smu.RLock()
	defer l.smu.RUnlock()
	return l.settings
}

// Last returns the report of the most recent tick.
func (l *Loop) Last() TickReport {
	l.rmu.RLock()
	defer l.rmu.RUnlock()
	return l.last
}

// Run ticks immediately, then once per schedule fire, until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	set := l.Settings()
	l.log.Info("poll loop started",
		logx.Int64("cursor", int64(l.cursor)),
		logx.String("schedule", set.Schedule.String()),
		logx.Strs("verdicts", set.Interpreter.Codes()),
	)
	for {
		l.Tick(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		wait := l.nextDelay(time.Now())
		l.log.Debug("sleeping", logx.Duration("for", wait))
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Tick runs one iteration. It never panics and never returns an error: every
// failure is classified into the report.
func (l *Loop) Tick(ctx context.Context) (rep TickReport) {
	set := l.Settings()
	rep = TickReport{At: time.Now(), Cursor: l.cursor}

	// The timeout is registered first so its cancel runs after the recover
	// handler below, which still needs a live ctx to send the notice.
	if set.TickTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, set.TickTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			l.log.Error("tick panicked", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			l.malfunction(ctx, fmt.Errorf("panic: %v", r), &rep)
		}
		// Only consecutive transport or service failures stretch the sleep.
		if rep.Result != ResultTransport && rep.Result != ResultUnavailable {
			l.failures = 0
		}
		rep.Took = time.Since(rep.At)
		rep.Cursor = l.cursor
		l.finish(rep)
	}()

	raw, err := l.client.Fetch(ctx, l.cursor)
	if err != nil {
		l.failed(ctx, set, err, &rep)
		return rep
	}
	resp, err := homework.Validate(raw)
	if err != nil {
		l.failed(ctx, set, err, &rep)
		return rep
	}

	out := set.Interpreter.Interpret(resp.Homeworks)
	rep.Outcome = out.Kind.String()

	var text string
	switch out.Kind {
	case homework.NoChange:
		// A notice whose delivery failed earlier is retried here.
		text = l.pending
	case homework.Changed:
		text = out.Text
	case homework.UnknownVerdict:
		l.log.Warn("unknown homework status",
			logx.String("homework", out.Item.Name), logx.String("status", out.Code))
		text = homework.RenderUnknown(out.Item.Name, out.Code)
	case homework.MissingField:
		rep.Result = ResultMissingField
		rep.Error = fmt.Sprintf("homework is missing %q", out.Field)
		l.log.Error("homework entry rejected", logx.String("field", out.Field), logx.String("homework", out.Item.Name))
		return rep
	default:
		l.malfunction(ctx, fmt.Errorf("unhandled outcome %s", out.Kind), &rep)
		return rep
	}

	l.advance(resp.CurrentDate, &rep)
	if text == "" {
		rep.Result = ResultNoChange
		l.log.Debug("no status change", logx.Int64("cursor", int64(l.cursor)))
		return rep
	}
	rep.Result = l.notify(ctx, text, true)
	if rep.Result == ResultDelivered {
		rep.Sent = text
	}
	return rep
}

func (l *Loop) advance(to homework.Cursor, rep *TickReport) {
	l.cursor = to
	rep.Advanced = true
}

// failed handles an error from the client or the validator. The cursor is kept.
func (l *Loop) failed(ctx context.Context, set Settings, err error, rep *TickReport) {
	rep.Error = err.Error()

	var (
		te *homework.TransportError
		se *homework.ServiceUnavailableError
		ve *homework.ValidationError
	)
	switch {
	case errors.As(err, &te):
		rep.Result = ResultTransport
		l.failures++
	case errors.As(err, &se):
		rep.Result = ResultUnavailable
		l.failures++
	case errors.As(err, &ve):
		rep.Result = ResultInvalid
	default:
		l.log.Error("unexpected tick failure", logx.Err(err))
		l.malfunction(ctx, err, rep)
		return
	}

	l.log.Error("status query failed",
		logx.String("result", string(rep.Result)),
		logx.Int64("cursor", int64(l.cursor)),
		logx.Int("consecutive", l.failures),
		logx.Err(err),
	)
	if set.ReportFailures && ctx.Err() == nil {
		l.notify(ctx, MalfunctionText(err), false)
	}
}

// malfunction reports an unclassified failure to the chat, best effort.
func (l *Loop) malfunction(ctx context.Context, err error, rep *TickReport) {
	rep.Result = ResultMalfunction
	rep.Error = err.Error()
	if ctx.Err() != nil {
		return
	}
	func() {
		defer func() {
			if r := recover(); r != nil {
				l.log.Error("malfunction notice panicked", logx.Any("panic", r))
			}
		}()
		l.notify(ctx, MalfunctionText(err), false)
	}()
}

// notify delivers text unless it equals the last delivered text. With
// retryable set, a failed delivery is kept as pending for the next tick.
// Malfunction notices are not retryable and never touch pending.
func (l *Loop) notify(ctx context.Context, text string, retryable bool) Result {
	if text == l.lastSent {
		if retryable {
			l.pending = ""
		}
		l.metrics.observeDelivery("duplicate")
		l.log.Debug("notification suppressed (duplicate)")
		return ResultDuplicate
	}
	if err := l.sink.Deliver(ctx, text); err != nil {
		if retryable {
			l.pending = text
		}
		l.metrics.observeDelivery("failed")
		l.log.Error("notification not delivered", logx.Bool("will_retry", retryable), logx.Err(err))
		return ResultDeliveryFailed
	}
	l.lastSent = text
	if retryable {
		l.pending = ""
	}
	l.metrics.observeDelivery("ok")
	l.log.Info("notification delivered", logx.String("text", text))
	return ResultDelivered
}

func (l *Loop) finish(rep TickReport) {
	l.rmu.Lock()
	l.last = rep
	l.rmu.Unlock()
	l.metrics.observeTick(rep)
	if l.onTick != nil {
		l.onTick(rep)
	}
}

// nextDelay is the schedule delay, stretched exponentially (20% jitter,
// capped at BackoffMax) after consecutive API failures.
func (l *Loop) nextDelay(now time.Time) time.Duration {
	set := l.Settings()
	base := set.Schedule.Delay(now)
	if set.BackoffMax <= 0 || l.failures <= 1 || base >= set.BackoffMax {
		return base
	}
	d := base
	for i := 1; i < l.failures && d < set.BackoffMax; i++ {
		d *= 2
	}
	if j := int64(d) / 5; j > 0 {
		d += time.Duration(l.rng.Int63n(j + 1))
	}
	if d > set.BackoffMax {
		d = set.BackoffMax
	}
	return d
}

// MalfunctionText is the chat notice for a failure the loop could not handle.
func MalfunctionText(err error) string {
	return fmt.Sprintf("Program malfunction: %v", err)
}
