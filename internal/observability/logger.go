// Package observability provides structured logging and metrics for the analysis pipeline.
package observability

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

// Field names shared by every pipeline log line.
const (
	FieldService          = "service"
	FieldTraceID          = "trace_id"
	FieldInquiryID        = "inquiry_id"
	FieldBrandChannel     = "brand_channel"
	FieldStage            = "stage"
	FieldRetrievalOutcome = "retrieval_outcome"
	FieldEscalateReason   = "escalate_reason"
)

// Logger is a zerolog logger that knows the pipeline's field vocabulary.
// The zero value is not usable; build one with NewLogger or NopLogger.
type Logger struct {
	zl zerolog.Logger
}

// LogConfig selects level, encoding and sink. Format is "json" or "console".
type LogConfig struct {
	Level       string
	Format      string
	Output      io.Writer
	ServiceName string
}

func NewLogger(cfg LogConfig) *Logger {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	var w io.Writer = os.Stderr
	if cfg.Output != nil {
		w = cfg.Output
	}
	if strings.EqualFold(cfg.Format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	zctx := zerolog.New(w).Level(parseLevel(cfg.Level)).With().Timestamp()
	if cfg.ServiceName != "" {
		zctx = zctx.Str(FieldService, cfg.ServiceName)
	}
	return &Logger{zl: zctx.Logger()}
}

// NopLogger discards everything.
func NopLogger() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

func (l *Logger) Debug() *LogEvent { return l.at(zerolog.DebugLevel) }
func (l *Logger) Info() *LogEvent  { return l.at(zerolog.InfoLevel) }
func (l *Logger) Warn() *LogEvent  { return l.at(zerolog.WarnLevel) }
func (l *Logger) Error() *LogEvent { return l.at(zerolog.ErrorLevel) }

func (l *Logger) at(level zerolog.Level) *LogEvent {
	return &LogEvent{evt: l.zl.WithLevel(level)}
}

// WithContext attaches the trace ID carried by ctx. Without one it returns l.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	id := TraceID(ctx)
	if id == "" {
		return l
	}
	return &Logger{zl: l.zl.With().Str(FieldTraceID, id).Logger()}
}

// WithInquiry scopes every following line to one inquiry.
func (l *Logger) WithInquiry(inquiryID, brandChannel string) *Logger {
	zctx := l.zl.With().Str(FieldInquiryID, inquiryID)
	if brandChannel != "" {
		zctx = zctx.Str(FieldBrandChannel, brandChannel)
	}
	return &Logger{zl: zctx.Logger()}
}

// LogEvent is a log line under construction. A nil underlying event (level
// filtered out) makes every method a no-op.
type LogEvent struct {
	evt *zerolog.Event
}

func (e *LogEvent) Str(key, val string) *LogEvent               { e.evt.Str(key, val); return e }
func (e *LogEvent) Int(key string, val int) *LogEvent           { e.evt.Int(key, val); return e }
func (e *LogEvent) Float64(key string, val float64) *LogEvent   { e.evt.Float64(key, val); return e }
func (e *LogEvent) Bool(key string, val bool) *LogEvent         { e.evt.Bool(key, val); return e }
func (e *LogEvent) Dur(key string, val time.Duration) *LogEvent { e.evt.Dur(key, val); return e }
func (e *LogEvent) Err(err error) *LogEvent                     { e.evt.Err(err); return e }

// Stage tags the pipeline stage the line belongs to.
func (e *LogEvent) Stage(stage string) *LogEvent {
	return e.Str(FieldStage, stage)
}

// Outcome tags the retrieval outcome.
func (e *LogEvent) Outcome(outcome string) *LogEvent {
	return e.Str(FieldRetrievalOutcome, outcome)
}

// Reason records an escalation reason when one is set.
func (e *LogEvent) Reason(reason *string) *LogEvent {
	if reason == nil {
		return e
	}
	return e.Str(FieldEscalateReason, *reason)
}

func (e *LogEvent) Msg(msg string) { e.evt.Msg(msg) }

// parseLevel accepts zerolog level names plus "warning" and "off". Anything
// unrecognised logs at info.
func parseLevel(name string) zerolog.Level {
	switch name = strings.ToLower(strings.TrimSpace(name)); name {
	case "warning":
		return zerolog.WarnLevel
	case "off":
		return zerolog.Disabled
	}
	if lvl, err := zerolog.ParseLevel(name); err == nil && lvl != zerolog.NoLevel {
		return lvl
	}
	return zerolog.InfoLevel
}

type traceKey struct{}

// WithTraceID stores a trace ID for WithContext to pick up.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

// TraceID returns the trace ID stored in ctx, or "".
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}
