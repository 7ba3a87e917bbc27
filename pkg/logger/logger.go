package logger

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a leveled structured logger. Child loggers made with With share
// the parent's error collector.
type Logger struct {
	zl   zerolog.Logger
	slot *collectorSlot
}

type collectorSlot struct {
	p atomic.Pointer[LogCollector]
}

type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json or console
	Output     string // stdout, stderr, or file path
	TimeFormat string // defaults to RFC3339Nano
}

func New(cfg *Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	var output io.Writer
	switch cfg.Output {
	case "", "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		file, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("could not open log file: %w", err)
		}
		output = file
	}

	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = timeFormat

	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: timeFormat}
	}

	zl := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		CallerWithSkipFrameCount(4).
		Logger()
	return &Logger{zl: zl, slot: &collectorSlot{}}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop(), slot: &collectorSlot{}}
}

// With returns a child logger carrying fields on every entry.
func (l *Logger) With(fields ...Field) *Logger {
	ctx := l.zl.With()
	for _, f := range fields {
		if f.Value != nil {
			ctx = ctx.Interface(f.Key, f.value())
		}
	}
	return &Logger{zl: ctx.Logger(), slot: l.slot}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.write(l.zl.Debug(), msg, fields) }

func (l *Logger) Info(msg string, fields ...Field) { l.write(l.zl.Info(), msg, fields) }

func (l *Logger) Warn(msg string, fields ...Field) { l.write(l.zl.Warn(), msg, fields) }

// Error logs at error level and feeds the collector when one is attached.
func (l *Logger) Error(msg string, fields ...Field) {
	l.write(l.zl.Error(), msg, fields)
	if c := l.slot.p.Load(); c != nil {
		c.AddLog("error", msg, fieldMap(fields), caller(1))
	}
}

func (l *Logger) write(e *zerolog.Event, msg string, fields []Field) {
	if e == nil {
		return
	}
	for _, f := range fields {
		f.AddTo(e)
	}
	e.Msg(msg)
}

// AddCollector starts aggregating error logs, replacing any previous collector.
func (l *Logger) AddCollector(config *CollectionConfig) {
	if old := l.slot.p.Swap(NewLogCollector(config)); old != nil {
		old.Close()
	}
}

// RemoveCollector detaches the collector and flushes what it holds.
func (l *Logger) RemoveCollector() {
	if old := l.slot.p.Swap(nil); old != nil {
		old.Close()
	}
}

// caller returns file:line relative to the module root.
func caller(skip int) string {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return "unknown"
	}
	if i := strings.LastIndex(file, "Stooorage/"); i >= 0 {
		file = file[i+len("Stooorage/"):]
	}
	return fmt.Sprintf("%s:%d", file, line)
}

func fieldMap(fields []Field) map[string]interface{} {
	m := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		k, v := f.GetKeyValue()
		m[k] = v
	}
	return m
}

// Field is one structured key/value pair.
type Field struct {
	Key   string
	Value interface{}
}

// AddTo writes the field onto a zerolog event using its typed encoder.
func (f Field) AddTo(e *zerolog.Event) {
	switch v := f.Value.(type) {
	case string:
		e.Str(f.Key, v)
	case int:
		e.Int(f.Key, v)
	case int64:
		e.Int64(f.Key, v)
	case bool:
		e.Bool(f.Key, v)
	case float64:
		e.Float64(f.Key, v)
	case time.Duration:
		e.Dur(f.Key, v)
	case []string:
		e.Strs(f.Key, v)
	case error:
		e.AnErr(f.Key, v)
	case nil:
	default:
		e.Interface(f.Key, v)
	}
}

// GetKeyValue returns the key and a JSON-friendly value.
func (f Field) GetKeyValue() (string, interface{}) {
	return f.Key, f.value()
}

func (f Field) value() interface{} {
	switch v := f.Value.(type) {
	case error:
		return v.Error()
	case time.Duration:
		return v.Milliseconds()
	default:
		return v
	}
}

func String(key, value string) Field { return Field{Key: key, Value: value} }

func Int(key string, value int) Field { return Field{Key: key, Value: value} }

func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }

func Float64(key string, value float64) Field { return Field{Key: key, Value: value} }

func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

func Strings(key string, value []string) Field { return Field{Key: key, Value: value} }

func Any(key string, value interface{}) Field { return Field{Key: key, Value: value} }

// Duration is logged in milliseconds.
func Duration(key string, value time.Duration) Field { return Field{Key: key, Value: value} }

// Error uses the "error" key. A nil error is omitted from the entry.
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error"}
	}
	return Field{Key: "error", Value: err}
}
