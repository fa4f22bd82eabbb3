package logging

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	runIDKey ctxKey = iota
	organizationKey
	categoryKey
)

// WithRunID returns a context with the compilation run ID set.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// WithOrganization returns a context with the organization set.
func WithOrganization(ctx context.Context, org string) context.Context {
	return context.WithValue(ctx, organizationKey, org)
}

// WithCategory returns a context with the callout category set.
func WithCategory(ctx context.Context, category string) context.Context {
	return context.WithValue(ctx, categoryKey, category)
}

// RunID extracts the compilation run ID from the context, or "" if absent.
func RunID(ctx context.Context) string {
	v, _ := ctx.Value(runIDKey).(string)
	return v
}

// Organization extracts the organization from the context, or "" if absent.
func Organization(ctx context.Context) string {
	v, _ := ctx.Value(organizationKey).(string)
	return v
}

// Category extracts the callout category from the context, or "" if absent.
func Category(ctx context.Context) string {
	v, _ := ctx.Value(categoryKey).(string)
	return v
}

// WithIDs sets all three correlation values on the context at once.
func WithIDs(ctx context.Context, runID, organization, category string) context.Context {
	ctx = WithRunID(ctx, runID)
	ctx = WithOrganization(ctx, organization)
	ctx = WithCategory(ctx, category)
	return ctx
}

// LogWith returns a logger enriched with correlation values from the
// context. Only non-empty values are added as attributes.
func LogWith(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if id := RunID(ctx); id != "" {
		logger = logger.With(slog.String("run_id", id))
	}
	if org := Organization(ctx); org != "" {
		logger = logger.With(slog.String("organization", org))
	}
	if cat := Category(ctx); cat != "" {
		logger = logger.With(slog.String("category", cat))
	}
	return logger
}

// CorrelationHandler wraps an slog.Handler, automatically injecting
// correlation values from the context into every log record.
// Use with slog.New(NewCorrelationHandler(inner)) so callers can use
// logger.InfoContext(ctx, ...) and the values appear automatically.
type CorrelationHandler struct {
	inner slog.Handler
}

// NewCorrelationHandler wraps the given handler with automatic correlation injection.
func NewCorrelationHandler(inner slog.Handler) *CorrelationHandler {
	return &CorrelationHandler{inner: inner}
}

func (h *CorrelationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *CorrelationHandler) Handle(ctx context.Context, r slog.Record) error {
	if v := RunID(ctx); v != "" {
		r.AddAttrs(slog.String("run_id", v))
	}
	if v := Organization(ctx); v != "" {
		r.AddAttrs(slog.String("organization", v))
	}
	if v := Category(ctx); v != "" {
		r.AddAttrs(slog.String("category", v))
	}
	return h.inner.Handle(ctx, r)
}

func (h *CorrelationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *CorrelationHandler) WithGroup(name string) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithGroup(name)}
}
