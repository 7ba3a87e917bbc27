package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	applogger "Stooorage/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// ConsumerHook wraps message handling. BeforeHandle may replace the context,
// message or payload; an error from it skips the handler and sends the
// message down the failure path (OnError, DLQ, commit).
type ConsumerHook interface {
	BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error)
	AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error)
	OnError(ctx context.Context, topic string, km kafka.Message, data []byte, err error)
}

// HookError marks a message as permanently unprocessable. The consumer does
// not retry it.
type HookError struct {
	Code string // ERR_DECODE, ERR_VALIDATION, ERR_PANIC
	Err  error
}

func (e *HookError) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return e.Code + ": " + e.Err.Error()
}

func (e *HookError) Unwrap() error { return e.Err }

type (
	BeforeFunc func(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error)
	AfterFunc  func(ctx context.Context, topic string, km kafka.Message, data []byte, err error)
)

// HookFuncs builds a ConsumerHook from optional funcs.
type HookFuncs struct {
	Before BeforeFunc
	After  AfterFunc
	Err    AfterFunc
}

func (h HookFuncs) BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	if h.Before == nil {
		return ctx, km, data, nil
	}
	return h.Before(ctx, topic, km, data)
}

func (h HookFuncs) AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
	if h.After != nil {
		h.After(ctx, topic, km, data, err)
	}
}

func (h HookFuncs) OnError(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
	if h.Err != nil {
		h.Err(ctx, topic, km, data, err)
	}
}

// HookChain runs hooks as a stack: Before in order, After in reverse. A
// panicking hook is contained; in Before it becomes an ERR_PANIC HookError.
type HookChain []ConsumerHook

// NewHookChain drops nil hooks.
func NewHookChain(hooks ...ConsumerHook) HookChain {
	chain := make(HookChain, 0, len(hooks))
	for _, h := range hooks {
		if h != nil {
			chain = append(chain, h)
		}
	}
	return chain
}

func (hc HookChain) BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	for _, h := range hc {
		nctx, nkm, ndata, err := callBefore(h, ctx, topic, km, data)
		if err != nil {
			hc.OnError(ctx, topic, km, data, err)
			return ctx, km, data, err
		}
		ctx, km, data = nctx, nkm, ndata
	}
	return ctx, km, data, nil
}

func (hc HookChain) AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
	for i := len(hc) - 1; i >= 0; i-- {
		h := hc[i]
		contain(func() { h.AfterHandle(ctx, topic, km, data, err) })
	}
}

func (hc HookChain) OnError(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
	for _, h := range hc {
		contain(func() { h.OnError(ctx, topic, km, data, err) })
	}
}

func callBefore(h ConsumerHook, ctx context.Context, topic string, km kafka.Message, data []byte) (rctx context.Context, rkm kafka.Message, rdata []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &HookError{Code: "ERR_PANIC", Err: fmt.Errorf("hook panic: %v", r)}
		}
	}()
	return h.BeforeHandle(ctx, topic, km, data)
}

func contain(fn func()) {
	defer func() { _ = recover() }()
	fn()
}

type ctxKey int

const (
	// CtxStartTime holds the time.Time handling began.
	CtxStartTime ctxKey = iota
	ctxTraceID
)

// TraceHeader is the message header carrying the correlation id. Sale
// events use their event id.
const TraceHeader = "trace_id"

// ExtractTraceID returns the TraceHeader value, or "".
func ExtractTraceID(msg kafka.Message) string {
	for _, h := range msg.Headers {
		if h.Key == TraceHeader {
			return string(h.Value)
		}
	}
	return ""
}

// TraceIDFrom returns the trace id NewTraceHook put on ctx.
func TraceIDFrom(ctx context.Context) string {
	s, _ := ctx.Value(ctxTraceID).(string)
	return s
}

// NewTraceHook puts the start time and trace id on the context, warns about
// messages slower than slow, and logs failures. Rejections (HookError) log at
// warn, everything else at error.
func NewTraceHook(l *applogger.Logger, slow time.Duration) ConsumerHook {
	if l == nil {
		l = applogger.Nop()
	}
	where := func(topic string, km kafka.Message, trace string) []applogger.Field {
		return []applogger.Field{
			applogger.String("topic", topic),
			applogger.Int("partition", km.Partition),
			applogger.Int64("offset", km.Offset),
			applogger.String("trace_id", trace),
		}
	}
	return HookFuncs{
		Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			ctx = context.WithValue(ctx, CtxStartTime, time.Now())
			if id := ExtractTraceID(km); id != "" {
				ctx = context.WithValue(ctx, ctxTraceID, id)
			}
			return ctx, km, data, nil
		},
		After: func(ctx context.Context, topic string, km kafka.Message, _ []byte, err error) {
			start, ok := ctx.Value(CtxStartTime).(time.Time)
			if !ok || err != nil || slow <= 0 {
				return
			}
			if d := time.Since(start); d >= slow {
				l.Warn("kafka message slow", append(where(topic, km, TraceIDFrom(ctx)), applogger.Duration("duration_ms", d))...)
			}
		},
		Err: func(_ context.Context, topic string, km kafka.Message, _ []byte, err error) {
			fields := append(where(topic, km, ExtractTraceID(km)), applogger.Error(err))
			var he *HookError
			if errors.As(err, &he) {
				l.Warn("kafka message rejected", append(fields, applogger.String("code", he.Code))...)
				return
			}
			l.Error("kafka message failed", fields...)
		},
	}
}

// NewJSONHook rejects non-JSON payloads before the handler runs.
func NewJSONHook() ConsumerHook {
	return HookFuncs{
		Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			if !json.Valid(data) {
				return ctx, km, data, &HookError{Code: "ERR_DECODE", Err: fmt.Errorf("offset %d: payload is not JSON", km.Offset)}
			}
			return ctx, km, data, nil
		},
	}
}
