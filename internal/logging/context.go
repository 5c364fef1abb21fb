package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldInvocationID identifies one batch evaluation invocation.
	FieldInvocationID = "invocation_id"
	// FieldRoundID is the standardized key for round identifiers.
	FieldRoundID = "round_id"
	// FieldRunID is the standardized key for run variant identifiers.
	FieldRunID = "run_id"
	// FieldPart is the standardized key for part display names.
	FieldPart = "part"
	// FieldEventType classifies warnings and errors for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step an operator should take.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
)

type contextKey int

const (
	invocationIDKey contextKey = iota
	roundIDKey
	runIDKey
	partKey
)

// WithInvocationID tags ctx with a batch invocation identifier.
func WithInvocationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, invocationIDKey, id)
}

// WithRoundID tags ctx with a round identifier.
func WithRoundID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, roundIDKey, id)
}

// WithRunID tags ctx with a run variant identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// WithPart tags ctx with a part display name.
func WithPart(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, partKey, name)
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	for _, entry := range []struct {
		key   contextKey
		field string
	}{
		{invocationIDKey, FieldInvocationID},
		{roundIDKey, FieldRoundID},
		{runIDKey, FieldRunID},
		{partKey, FieldPart},
	} {
		if value, ok := ctx.Value(entry.key).(string); ok && value != "" {
			fields = append(fields, slog.String(entry.field, value))
		}
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
