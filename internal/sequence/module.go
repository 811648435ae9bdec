// Package sequence provides the outreach sequence domain module: the touch
// calendar, due-date arithmetic, task store, lifecycle state machine and
// automation engine, wired together behind one HTTP surface.
package sequence

import (
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/events"
	apphttp "github.com/grobenmarketing/7th-level-dialer-sub000/internal/http"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/kvstore"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/automation"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/calendar"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/dates"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/handler"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/lifecycle"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/repository"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/taskstore"
	"github.com/grobenmarketing/7th-level-dialer-sub000/platform/config"
	"github.com/grobenmarketing/7th-level-dialer-sub000/platform/logger"
	"github.com/grobenmarketing/7th-level-dialer-sub000/platform/validator"
)

// Module represents the sequence domain module.
type Module struct {
	handler *handler.Handler
	machine *lifecycle.Machine
	engine  *automation.Engine
	tasks   *taskstore.Store
	repo    *repository.Repository
}

// NewModule creates the sequence module with all dependencies wired.
func NewModule(store kvstore.Store, cal *calendar.Definition, clock dates.Clock, bus events.Bus, cfg config.AutomationConfig, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(store)
	tasks := taskstore.New(repo, cal, clock, log)
	machine := lifecycle.New(repo, tasks, cal, clock, bus, log)
	engine := automation.New(machine, tasks, repo, clock, bus, log,
		cfg.GetSweepParallelism(), cfg.GetSweepRatePerSecond())
	h := handler.New(repo, machine, tasks, engine, val, log)

	return &Module{
		handler: h,
		machine: machine,
		engine:  engine,
		tasks:   tasks,
		repo:    repo,
	}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "sequence"
}

// RegisterRoutes registers the module's routes under /api/v1.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.V1.Group("/contacts"))
	m.handler.RegisterAdminRoutes(ctx.Admin.Group("/sequence"))
}

// Engine exposes the automation engine for background workers.
func (m *Module) Engine() *automation.Engine {
	return m.engine
}

// Machine exposes the lifecycle state machine.
func (m *Module) Machine() *lifecycle.Machine {
	return m.machine
}

// Repository exposes the sequence repository.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
