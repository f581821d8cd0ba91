package logx

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

type Level = zerolog.Level

const (
	LevelDebug = zerolog.DebugLevel
	LevelInfo  = zerolog.InfoLevel
	LevelWarn  = zerolog.WarnLevel
	LevelError = zerolog.ErrorLevel
	// LevelCritical prints as "fatal" but never exits.
	LevelCritical = zerolog.FatalLevel
)

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// callerSkip is relative to emit: one frame for Info/Warn/..., one more for
// their caller.
const callerSkip = 2

var setupOnce sync.Once

func setup() {
	setupOnce.Do(func() {
		zerolog.ErrorFieldName = "err"
		zerolog.TimeFieldFormat = timeFormat
		zerolog.CallerMarshalFunc = func(_ uintptr, file string, line int) string {
			return filepath.Base(file) + ":" + strconv.Itoa(line)
		}
	})
}

// rootSource yields the zerolog logger to write through. Service implements
// it so derived loggers follow hot reloads.
type rootSource interface {
	current() zerolog.Logger
}

type fixedRoot zerolog.Logger

func (r fixedRoot) current() zerolog.Logger { return zerolog.Logger(r) }

// Logger is the handle every component logs through. The zero value
// discards everything.
type Logger struct {
	src    rootSource
	fields []Field
}

func Nop() Logger { return Logger{src: fixedRoot(zerolog.Nop())} }

// NewConsole is a standalone console logger for the time before config is
// loaded.
func NewConsole(level string) Logger {
	setup()
	return Logger{src: fixedRoot(consoleRoot(parseLevel(level, LevelInfo)))}
}

// NewWriter logs JSON lines to w.
func NewWriter(w io.Writer, level string) Logger {
	setup()
	zl := zerolog.New(w).Level(parseLevel(level, LevelDebug)).With().Timestamp().Logger()
	return Logger{src: fixedRoot(zl)}
}

func (l Logger) IsZero() bool { return l.src == nil && len(l.fields) == 0 }

// With returns a child logger carrying fields on every line.
func (l Logger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	l.fields = append(append(make([]Field, 0, len(l.fields)+len(fields)), l.fields...), fields...)
	return l
}

func (l Logger) Debug(msg string, fields ...Field)    { l.emit(LevelDebug, msg, fields) }
func (l Logger) Info(msg string, fields ...Field)     { l.emit(LevelInfo, msg, fields) }
func (l Logger) Warn(msg string, fields ...Field)     { l.emit(LevelWarn, msg, fields) }
func (l Logger) Error(msg string, fields ...Field)    { l.emit(LevelError, msg, fields) }
func (l Logger) Critical(msg string, fields ...Field) { l.emit(LevelCritical, msg, fields) }

func (l Logger) emit(level Level, msg string, fields []Field) {
	if l.src == nil {
		return
	}
	zl := l.src.current()
	// WithLevel skips the os.Exit that zl.Fatal() would do.
	e := zl.WithLevel(level)
	if e == nil {
		return
	}
	e = e.Caller(callerSkip)
	for _, set := range [][]Field{l.fields, fields} {
		for _, f := range set {
			if f != nil {
				f(e)
			}
		}
	}
	e.Msg(msg)
}

// parseLevel accepts zerolog names plus "warning" and "critical".
func parseLevel(s string, def Level) Level {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "":
		return def
	case "warning":
		return LevelWarn
	case "critical":
		return LevelCritical
	default:
		lvl, err := zerolog.ParseLevel(v)
		if err != nil || lvl == zerolog.NoLevel || lvl == zerolog.Disabled {
			return def
		}
		return lvl
	}
}

func consoleRoot(lvl Level) zerolog.Logger {
	return zerolog.New(consoleWriter(os.Stdout)).Level(lvl).With().Timestamp().Logger()
}

func consoleWriter(w io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{Out: w, TimeFormat: timeFormat}
}
