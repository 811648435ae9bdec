// Package automation reconciles the calendar's passage of time against
// contact state: it advances contacts whose obligations are resolved and
// surfaces the ones stuck on overdue work. It never force-advances past
// incomplete work, and re-running with nothing changed is a no-op, so the
// sweep is safe on any timer.
package automation

import (
	"context"
	"sync"

	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/events"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/dates"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/domain"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/lifecycle"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/repository"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/taskstore"
	"github.com/grobenmarketing/7th-level-dialer-sub000/platform/logger"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Outcome describes what the sweep decided for one contact.
type Outcome string

const (
	// OutcomeNotDue means the contact's current day is not yet due.
	OutcomeNotDue Outcome = "not_due"
	// OutcomeAdvanced means the current-day pointer moved forward.
	OutcomeAdvanced Outcome = "advanced"
	// OutcomeCompleted means the contact finished the sequence this pass.
	OutcomeCompleted Outcome = "completed"
	// OutcomeStuck means overdue work blocks the contact; an operator
	// must resolve or skip it.
	OutcomeStuck Outcome = "stuck"
	// OutcomeHeld means the gate passed but no later day was ready yet.
	OutcomeHeld Outcome = "held"
)

// Report summarizes one full reconciliation pass.
type Report struct {
	Scanned   int `json:"scanned"`
	Advanced  int `json:"advanced"`
	Completed int `json:"completed"`
	Stuck     int `json:"stuck"`
}

// Engine runs the reconciliation pass over all active contacts.
type Engine struct {
	machine *lifecycle.Machine
	tasks   *taskstore.Store
	repo    *repository.Repository
	clock   dates.Clock
	bus     events.Bus
	log     *logger.Logger

	parallelism int
	limiter     *rate.Limiter
}

// New creates an automation engine. parallelism bounds how many contacts
// reconcile concurrently; ratePerSecond paces writes against the
// persistence port.
func New(machine *lifecycle.Machine, tasks *taskstore.Store, repo *repository.Repository, clock dates.Clock, bus events.Bus, log *logger.Logger, parallelism int, ratePerSecond float64) *Engine {
	if parallelism < 1 {
		parallelism = 1
	}
	if ratePerSecond <= 0 {
		ratePerSecond = 50
	}
	return &Engine{
		machine:     machine,
		tasks:       tasks,
		repo:        repo,
		clock:       clock,
		bus:         bus,
		log:         log,
		parallelism: parallelism,
		limiter:     rate.NewLimiter(rate.Limit(ratePerSecond), 1),
	}
}

// Sweep reconciles every active contact. Contacts are independent, so the
// pass fans out with bounded parallelism; per-contact errors are logged
// and counted but do not abort the rest of the sweep.
func (e *Engine) Sweep(ctx context.Context) (Report, error) {
	contacts, err := e.repo.ListContacts(ctx)
	if err != nil {
		return Report{}, err
	}

	var (
		mu     sync.Mutex
		report Report
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)

	for _, contact := range contacts {
		if contact.SequenceStatus != domain.StatusActive {
			continue
		}
		contact := contact
		g.Go(func() error {
			if err := e.limiter.Wait(gctx); err != nil {
				return err
			}
			outcome, err := e.ReconcileContact(gctx, contact)
			mu.Lock()
			defer mu.Unlock()
			report.Scanned++
			if err != nil {
				e.log.WithContactID(contact.ID.String()).Error("reconcile failed", "error", err)
				return nil
			}
			switch outcome {
			case OutcomeAdvanced:
				report.Advanced++
			case OutcomeCompleted:
				report.Completed++
			case OutcomeStuck:
				report.Stuck++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report, err
	}

	e.log.SweepSummary(report.Scanned, report.Advanced, report.Completed, report.Stuck)
	return report, nil
}

// ReconcileContact decides whether one active contact should advance.
func (e *Engine) ReconcileContact(ctx context.Context, contact domain.Contact) (Outcome, error) {
	if contact.SequenceStartDate == nil {
		return OutcomeHeld, nil
	}

	today := e.clock.Now()
	due := dates.DueDate(*contact.SequenceStartDate, contact.SequenceCurrentDay)
	if dates.Compare(dates.Midnight(today), due) < 0 {
		// Not yet time to act on the current day.
		return OutcomeNotDue, nil
	}

	ok, err := e.machine.CheckAdvance(ctx, contact.ID)
	if err != nil {
		return OutcomeHeld, err
	}
	if !ok {
		return e.reportStuck(ctx, contact)
	}

	updated, moved, err := e.machine.Advance(ctx, contact.ID)
	if err != nil {
		return OutcomeHeld, err
	}
	switch {
	case updated.SequenceStatus == domain.StatusCompleted:
		return OutcomeCompleted, nil
	case moved:
		return OutcomeAdvanced, nil
	default:
		return OutcomeHeld, nil
	}
}

// reportStuck publishes a ContactStuck event describing the overdue
// backlog. The engine leaves the contact where it is; only an operator can
// resolve or skip the blocking work.
func (e *Engine) reportStuck(ctx context.Context, contact domain.Contact) (Outcome, error) {
	overdue, err := e.tasks.OverdueTasks(ctx, contact.ID)
	if err != nil {
		return OutcomeStuck, err
	}
	if len(overdue) == 0 {
		// Blocked on unresolved current-day work that is not overdue yet.
		return OutcomeHeld, nil
	}

	e.bus.Publish(ctx, events.ContactStuck{
		BaseEvent:    events.NewBaseEvent(),
		ContactID:    contact.ID,
		ContactName:  contact.FullName(),
		CurrentDay:   contact.SequenceCurrentDay,
		OverdueCount: len(overdue),
		OldestDue:    overdue[0].DueDate,
	})
	return OutcomeStuck, nil
}
