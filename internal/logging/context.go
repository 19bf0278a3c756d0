// internal/logging/context.go
package logging

import (
	"context"
	"fmt"
	"regexp"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}

	if switchID := SwitchIDFromContext(ctx); switchID != "" {
		fields = append(fields, zap.String("switch.id", switchID))
	}
	if projectID := ProjectIDFromContext(ctx); projectID != "" {
		fields = append(fields, zap.String("project.id", projectID))
	}
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request.id", requestID))
	}

	return fields
}

type switchCtxKey struct{}
type projectCtxKey struct{}
type requestCtxKey struct{}

const maxIDLen = 128

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// validateID rejects ids that would corrupt log lines or blow up cardinality.
func validateID(id, name string) error {
	if id == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	if !utf8.ValidString(id) {
		return fmt.Errorf("%s contains invalid UTF-8", name)
	}
	if len(id) > maxIDLen {
		return fmt.Errorf("%s exceeds max length %d", name, maxIDLen)
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%s contains invalid characters (must be alphanumeric, hyphen, underscore)", name)
	}
	return nil
}

func stringFromContext(ctx context.Context, key interface{}) string {
	if s, ok := ctx.Value(key).(string); ok {
		return s
	}
	return ""
}

// SwitchIDFromContext extracts the workspace switch ID from context.
func SwitchIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, switchCtxKey{})
}

// WithSwitchID tags ctx with the id of the switch in progress.
// Panics if switchID is empty or contains invalid characters.
func WithSwitchID(ctx context.Context, switchID string) context.Context {
	if err := validateID(switchID, "switchID"); err != nil {
		panic(fmt.Sprintf("logging: %v", err))
	}
	return context.WithValue(ctx, switchCtxKey{}, switchID)
}

// ProjectIDFromContext extracts the project ID from context.
func ProjectIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, projectCtxKey{})
}

// WithProjectID tags ctx with a project ID.
// Panics if projectID is empty or contains invalid characters.
func WithProjectID(ctx context.Context, projectID string) context.Context {
	if err := validateID(projectID, "projectID"); err != nil {
		panic(fmt.Sprintf("logging: %v", err))
	}
	return context.WithValue(ctx, projectCtxKey{}, projectID)
}

// RequestIDFromContext extracts request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, requestCtxKey{})
}

// WithRequestID adds request ID to context.
// Panics if requestID is empty or contains invalid characters.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if err := validateID(requestID, "requestID"); err != nil {
		panic(fmt.Sprintf("logging: %v", err))
	}
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

type loggerCtxKey struct{}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context, or a nop logger if absent.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}
