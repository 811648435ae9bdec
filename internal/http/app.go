package http

import (
	"context"

	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/events"
	"github.com/grobenmarketing/7th-level-dialer-sub000/platform/config"
	"github.com/grobenmarketing/7th-level-dialer-sub000/platform/logger"
)

// HealthChecker exposes minimal functionality for readiness checks.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App holds the fully initialized application dependencies.
// This is populated by main.go (the composition root) and passed to the router.
type App struct {
	// Config holds the HTTP router configuration.
	Config config.HTTPConfig
	// Logger is the structured logger.
	Logger *logger.Logger
	// Health is used for readiness checks (e.g., DB ping); nil skips the check.
	Health HealthChecker
	// EventBus is the domain event bus for cross-module communication.
	EventBus events.Bus
	// Modules contains all HTTP-facing domain modules.
	Modules []Module
}
