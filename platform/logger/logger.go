// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// ContactIDKey is the context key for the contact being operated on
	ContactIDKey contextKey = "contact_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
// Supports request_id and contact_id from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("request_id", requestID))}
	}

	if contactID, ok := ctx.Value(ContactIDKey).(string); ok && contactID != "" {
		newLogger = newLogger.WithContactID(contactID)
	}

	return newLogger
}

// WithContactID returns a logger scoped to a contact
func (l *Logger) WithContactID(contactID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("contact_id", contactID)),
	}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// HTTPError logs an HTTP error
func (l *Logger) HTTPError(method, path string, status int, err error, clientIP string) {
	l.Error("http_error",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
		slog.String("client_ip", clientIP),
	)
}

// TaskAnomaly logs a drift-repair event, e.g. a completion request for a
// task that was never generated. Warning level, never a user-facing failure.
func (l *Logger) TaskAnomaly(contactID string, day int, taskType, detail string) {
	l.Warn("task_anomaly",
		slog.String("contact_id", contactID),
		slog.Int("sequence_day", day),
		slog.String("task_type", taskType),
		slog.String("detail", detail),
	)
}

// SweepSummary logs the outcome of an automation reconciliation pass.
func (l *Logger) SweepSummary(scanned, advanced, completed, stuck int) {
	l.Info("sequence_sweep",
		slog.Int("contacts_scanned", scanned),
		slog.Int("contacts_advanced", advanced),
		slog.Int("sequences_completed", completed),
		slog.Int("contacts_stuck", stuck),
	)
}

// StoreError logs persistence-port errors
func (l *Logger) StoreError(operation, collection string, err error) {
	l.Error("store_error",
		slog.String("operation", operation),
		slog.String("collection", collection),
		slog.String("error", err.Error()),
	)
}
