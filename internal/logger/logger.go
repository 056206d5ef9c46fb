package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"autotrader/internal/trace"
)

var (
	globalLogger    = slog.New(slog.NewTextHandler(io.Discard, nil))
	detailedLogging bool
)

// LogConfig holds logging configuration
type LogConfig struct {
	Level           string // DEBUG, INFO, WARN, ERROR
	Format          string // json or text
	DetailedLogging bool
}

// Init initializes the global logger from LOG_* environment variables.
// Tracing is owned by the trace package and must be initialized separately.
func Init() error {
	return InitWithConfig(LoadConfigFromEnv())
}

func LoadConfigFromEnv() LogConfig {
	return LogConfig{
		Level:           getEnvOrDefault("LOG_LEVEL", "INFO"),
		Format:          getEnvOrDefault("LOG_FORMAT", "json"),
		DetailedLogging: getEnvOrDefault("LOG_DETAILED", "false") == "true",
	}
}

func InitWithConfig(config LogConfig) error {
	return InitWithWriter(config, os.Stdout)
}

// InitWithWriter is InitWithConfig with an explicit sink.
func InitWithWriter(config LogConfig, w io.Writer) error {
	detailedLogging = config.DetailedLogging
	level := parseLogLevel(config.Level)
	if detailedLogging {
		level = slog.LevelDebug
	}

	// source is added by logWithTrace so the caller frame is the right one
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(config.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	globalLogger = slog.New(handler).With("service", trace.ServiceName)
	slog.SetDefault(globalLogger)
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func Debug(ctx context.Context, msg string, args ...any) {
	if !detailedLogging {
		return
	}
	logWithTrace(ctx, slog.LevelDebug, msg, 3, args...)
}

func Info(ctx context.Context, msg string, args ...any) {
	logWithTrace(ctx, slog.LevelInfo, msg, 3, args...)
}

func Warn(ctx context.Context, msg string, args ...any) {
	logWithTrace(ctx, slog.LevelWarn, msg, 3, args...)
}

func Error(ctx context.Context, msg string, args ...any) {
	logWithTrace(ctx, slog.LevelError, msg, 3, args...)
}

// ErrorWithErr logs err and records it on the active span.
func ErrorWithErr(ctx context.Context, msg string, err error, args ...any) {
	recordSpanError(ctx, err)
	logWithTrace(ctx, slog.LevelError, msg, 3, append([]any{"error", err}, args...)...)
}

// The Skip variants are for decorators that log on behalf of their caller;
// skip is the number of extra frames between the decorator and the code
// the record should point at.

func DebugSkip(ctx context.Context, skip int, msg string, args ...any) {
	if !detailedLogging {
		return
	}
	logWithTrace(ctx, slog.LevelDebug, msg, 3+skip, args...)
}

func InfoSkip(ctx context.Context, skip int, msg string, args ...any) {
	logWithTrace(ctx, slog.LevelInfo, msg, 3+skip, args...)
}

func WarnSkip(ctx context.Context, skip int, msg string, args ...any) {
	logWithTrace(ctx, slog.LevelWarn, msg, 3+skip, args...)
}

func ErrorWithErrSkip(ctx context.Context, skip int, msg string, err error, args ...any) {
	recordSpanError(ctx, err)
	logWithTrace(ctx, slog.LevelError, msg, 3+skip, append([]any{"error", err}, args...)...)
}

func recordSpanError(ctx context.Context, err error) {
	if err == nil || !trace.Enabled() {
		return
	}
	span := oteltrace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// logWithTrace attaches trace/span ids and, in detailed mode, the caller
// located skip frames up.
func logWithTrace(ctx context.Context, level slog.Level, msg string, skip int, args ...any) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !globalLogger.Enabled(ctx, level) {
		return
	}
	if traceID, spanID, ok := trace.GetTraceFields(ctx); ok {
		args = append([]any{"trace_id", traceID, "span_id", spanID}, args...)
	}

	if detailedLogging {
		if pc, file, line, ok := runtime.Caller(skip - 1); ok {
			if fn := runtime.FuncForPC(pc); fn != nil {
				args = append(args, "source", slog.GroupValue(
					slog.String("function", fn.Name()),
					slog.String("file", file),
					slog.Int("line", line),
				))
			}
		}
	}

	globalLogger.Log(ctx, level, msg, args...)
}

// OperationTimer measures an operation and closes its span.
type OperationTimer struct {
	ctx    context.Context
	span   oteltrace.Span
	start  time.Time
	fields []any
}

func StartOperation(ctx context.Context, operation string, fields ...any) *OperationTimer {
	ctx, span := trace.StartSpan(ctx, operation)
	span.SetAttributes(toAttributes(fields)...)
	Debug(ctx, "Operation started", append([]any{"operation", operation}, fields...)...)
	return &OperationTimer{ctx: ctx, span: span, start: time.Now(), fields: fields}
}

func (ot *OperationTimer) Context() context.Context {
	return ot.ctx
}

func (ot *OperationTimer) End(additionalFields ...any) {
	d := time.Since(ot.start)
	ot.span.SetAttributes(attribute.Int64("duration_ms", d.Milliseconds()))
	ot.span.SetAttributes(toAttributes(additionalFields)...)
	ot.span.SetStatus(codes.Ok, "completed")
	ot.span.End()

	fields := append(append([]any{}, ot.fields...), "duration_ms", d.Milliseconds())
	Debug(ot.ctx, "Operation completed", append(fields, additionalFields...)...)
}

func (ot *OperationTimer) EndWithError(err error, additionalFields ...any) {
	d := time.Since(ot.start)
	ot.span.SetAttributes(attribute.Int64("duration_ms", d.Milliseconds()))
	ot.span.RecordError(err)
	ot.span.SetStatus(codes.Error, err.Error())
	ot.span.End()

	fields := append(append([]any{}, ot.fields...), "duration_ms", d.Milliseconds(), "error", err)
	Error(ot.ctx, "Operation failed", append(fields, additionalFields...)...)
}

func toAttributes(fields []any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		switch v := fields[i+1].(type) {
		case string:
			attrs = append(attrs, attribute.String(key, v))
		case int:
			attrs = append(attrs, attribute.Int(key, v))
		case int64:
			attrs = append(attrs, attribute.Int64(key, v))
		case float64:
			attrs = append(attrs, attribute.Float64(key, v))
		case bool:
			attrs = append(attrs, attribute.Bool(key, v))
		}
	}
	return attrs
}

func addSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	if !trace.Enabled() {
		return
	}
	span := oteltrace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		span.AddEvent(name, oteltrace.WithAttributes(attrs...))
	}
}

// Decision logs a scored trading decision. Always at info level.
func Decision(ctx context.Context, symbol, action string, confidence float64, reason string, fields ...any) {
	addSpanEvent(ctx, "trading_decision",
		attribute.String("symbol", symbol),
		attribute.String("action", action),
		attribute.Float64("confidence", confidence),
	)
	allFields := append([]any{
		"type", "DECISION",
		"symbol", symbol,
		"action", action,
		"confidence", confidence,
		"reason", reason,
	}, fields...)
	logWithTrace(ctx, slog.LevelInfo, "Trading decision made", 3, allFields...)
}

func Trade(ctx context.Context, symbol, side string, qty int, price float64, orderID string, fields ...any) {
	addSpanEvent(ctx, "trade_executed",
		attribute.String("symbol", symbol),
		attribute.String("side", side),
		attribute.Int("quantity", qty),
		attribute.Float64("price", price),
		attribute.String("order_id", orderID),
	)
	allFields := append([]any{
		"type", "TRADE",
		"symbol", symbol,
		"side", side,
		"quantity", qty,
		"price", price,
		"order_id", orderID,
	}, fields...)
	logWithTrace(ctx, slog.LevelInfo, "Trade executed", 3, allFields...)
}

// Risk logs a gate rejection or protective event at warn level.
func Risk(ctx context.Context, symbol, eventType string, fields ...any) {
	addSpanEvent(ctx, "risk_event",
		attribute.String("symbol", symbol),
		attribute.String("event_type", eventType),
	)
	allFields := append([]any{
		"type", "RISK",
		"symbol", symbol,
		"event_type", eventType,
	}, fields...)
	logWithTrace(ctx, slog.LevelWarn, "Risk event", 3, allFields...)
}
