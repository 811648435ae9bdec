// Package lifecycle owns the contact's sequence state machine: entry,
// touch recording with counter updates, the advancement gate, pause and
// resume, and the absorbing dead/converted transitions.
package lifecycle

import (
	"context"
	"fmt"

	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/events"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/calendar"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/dates"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/domain"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/repository"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/taskstore"
	"github.com/grobenmarketing/7th-level-dialer-sub000/platform/apperr"
	"github.com/grobenmarketing/7th-level-dialer-sub000/platform/logger"

	"github.com/google/uuid"
)

// Machine applies sequence-lifecycle transitions for contacts. All
// transitions are monotonic: the current day only moves forward, task
// statuses only move pending → resolved, and dead/converted absorb.
type Machine struct {
	repo  *repository.Repository
	tasks *taskstore.Store
	cal   *calendar.Definition
	clock dates.Clock
	bus   events.Bus
	log   *logger.Logger
}

// New creates a sequence state machine.
func New(repo *repository.Repository, tasks *taskstore.Store, cal *calendar.Definition, clock dates.Clock, bus events.Bus, log *logger.Logger) *Machine {
	return &Machine{repo: repo, tasks: tasks, cal: cal, clock: clock, bus: bus, log: log}
}

// Enter puts a never-contacted contact into the sequence: the cold call
// that just happened counts as day 1's call, so the contact starts active
// at day 1 with one call on the counter, and every remaining touch is
// generated with its due date.
func (m *Machine) Enter(ctx context.Context, contactID uuid.UUID) (domain.Contact, error) {
	contact, err := m.repo.GetContact(ctx, contactID)
	if err != nil {
		return domain.Contact{}, err
	}
	if contact.SequenceStatus != domain.StatusNeverContacted {
		return domain.Contact{}, apperr.Conflict(fmt.Sprintf("contact is %s, only never_contacted contacts can enter the sequence", contact.SequenceStatus))
	}

	start := dates.Midnight(m.clock.Now())
	contact.SequenceStatus = domain.StatusActive
	contact.SequenceCurrentDay = 1
	contact.SequenceStartDate = &start
	contact.CallsMade = 1

	// Tasks go in before the status flips. A failure anywhere leaves the
	// contact never_contacted, so Enter can simply be retried; Generate
	// skips tasks that already exist.
	created, err := m.tasks.Generate(ctx, contact)
	if err != nil {
		return domain.Contact{}, err
	}

	if err := m.repo.SaveContact(ctx, contact); err != nil {
		return domain.Contact{}, apperr.NotSaved("lifecycle.Enter", err)
	}

	m.bus.Publish(ctx, events.ContactEnteredSequence{
		BaseEvent:      events.NewBaseEvent(),
		ContactID:      contact.ID,
		ContactName:    contact.FullName(),
		StartDate:      start,
		TasksGenerated: len(created),
	})

	return contact, nil
}

// RecordTouch marks a touch completed and applies the matching counter
// increment. The two updates always travel together: counters move only
// when the task actually transitioned in this call, so a double-submitted
// completion cannot double-charge a counter.
func (m *Machine) RecordTouch(ctx context.Context, contactID uuid.UUID, day int, taskType domain.TaskType, notes string, leftVoicemail bool) (domain.Contact, error) {
	contact, err := m.inSequenceContact(ctx, contactID)
	if err != nil {
		return domain.Contact{}, err
	}

	task, transitioned, err := m.tasks.Complete(ctx, contactID, day, taskType, notes)
	if err != nil {
		return domain.Contact{}, err
	}

	if transitioned {
		contact.ApplyTouch(taskType, leftVoicemail)
		if err := m.repo.SaveContact(ctx, contact); err != nil {
			return domain.Contact{}, apperr.NotSaved("lifecycle.RecordTouch", err)
		}
		m.bus.Publish(ctx, events.TouchCompleted{
			BaseEvent:   events.NewBaseEvent(),
			ContactID:   contactID,
			SequenceDay: day,
			TaskType:    string(taskType),
			Synthesized: task.Synthesized,
		})
	}

	return contact, nil
}

// SkipTouch marks a touch skipped with the reason in its notes. Skips do
// not move counters: a skipped touch never reached the prospect.
func (m *Machine) SkipTouch(ctx context.Context, contactID uuid.UUID, day int, taskType domain.TaskType, reason string) (domain.Contact, error) {
	contact, err := m.inSequenceContact(ctx, contactID)
	if err != nil {
		return domain.Contact{}, err
	}

	_, transitioned, err := m.tasks.Skip(ctx, contactID, day, taskType, reason)
	if err != nil {
		return domain.Contact{}, err
	}

	if transitioned {
		m.bus.Publish(ctx, events.TouchSkipped{
			BaseEvent:   events.NewBaseEvent(),
			ContactID:   contactID,
			SequenceDay: day,
			TaskType:    string(taskType),
			Reason:      reason,
		})
	}

	return contact, nil
}

// CheckAdvance is the gate for day advancement: true iff no pending task
// anywhere in the contact's history is overdue, and every task on the
// current day is resolved (or the day has none). Overdue tasks from any
// past day block advancement; a contact cannot skip past unresolved history.
func (m *Machine) CheckAdvance(ctx context.Context, contactID uuid.UUID) (bool, error) {
	contact, err := m.repo.GetContact(ctx, contactID)
	if err != nil {
		return false, err
	}
	if contact.SequenceStatus != domain.StatusActive {
		return false, nil
	}
	return m.checkAdvance(ctx, contact)
}

func (m *Machine) checkAdvance(ctx context.Context, contact domain.Contact) (bool, error) {
	tasks, err := m.tasks.ContactTasks(ctx, contact.ID)
	if err != nil {
		return false, err
	}

	today := m.clock.Now()
	for _, t := range tasks {
		if t.IsPending() && dates.IsOverdue(t.DueDate, today) {
			return false, nil
		}
		if t.SequenceDay == contact.SequenceCurrentDay && t.IsPending() {
			return false, nil
		}
	}
	return true, nil
}

// Advance moves the current-day pointer forward once the gate allows it.
// It walks over days the contact has no open obligations on (all resolved,
// or nothing applicable was ever generated) while their due dates are
// already in the past, and stops at the first day with open work or whose
// due date has not yet arrived. When no day remains the sequence is
// completed at the terminal day. Returns whether the pointer moved.
func (m *Machine) Advance(ctx context.Context, contactID uuid.UUID) (domain.Contact, bool, error) {
	contact, err := m.repo.GetContact(ctx, contactID)
	if err != nil {
		return domain.Contact{}, false, err
	}
	if contact.SequenceStatus != domain.StatusActive {
		return contact, false, apperr.Conflict(fmt.Sprintf("cannot advance a %s contact", contact.SequenceStatus))
	}

	ok, err := m.checkAdvance(ctx, contact)
	if err != nil {
		return domain.Contact{}, false, err
	}
	if !ok {
		return contact, false, nil
	}

	tasks, err := m.tasks.ContactTasks(ctx, contactID)
	if err != nil {
		return domain.Contact{}, false, err
	}
	pendingDays := make(map[int]bool)
	for _, t := range tasks {
		if t.IsPending() {
			pendingDays[t.SequenceDay] = true
		}
	}

	today := m.clock.Now()
	fromDay := contact.SequenceCurrentDay
	day := fromDay
	completed := false

	// Bounded by the calendar length; the pointer never moves backward.
	for i := 0; i < m.cal.Length(); i++ {
		next, ok := m.cal.NextDayWithTasks(day)
		if !ok {
			completed = true
			break
		}
		day = next
		if pendingDays[day] {
			break
		}
		if contact.SequenceStartDate != nil {
			due := dates.DueDate(*contact.SequenceStartDate, day)
			if !dates.IsOverdue(due, today) {
				break
			}
		}
	}

	if completed {
		contact.SequenceStatus = domain.StatusCompleted
		contact.SequenceCurrentDay = m.cal.Length()
	} else {
		if day <= fromDay {
			return contact, false, nil
		}
		contact.SequenceCurrentDay = day
	}

	if err := m.repo.SaveContact(ctx, contact); err != nil {
		return domain.Contact{}, false, apperr.NotSaved("lifecycle.Advance", err)
	}

	if completed {
		m.bus.Publish(ctx, events.SequenceCompleted{
			BaseEvent:    events.NewBaseEvent(),
			ContactID:    contact.ID,
			ContactName:  contact.FullName(),
			TotalTouches: contact.TotalImpressions(),
		})
	} else {
		m.bus.Publish(ctx, events.ContactAdvanced{
			BaseEvent: events.NewBaseEvent(),
			ContactID: contact.ID,
			FromDay:   fromDay,
			ToDay:     contact.SequenceCurrentDay,
		})
	}

	return contact, true, nil
}

// Pause suspends the salesperson's obligation to act without touching the
// current day, start date or tasks. Due dates stay frozen, so a paused
// contact accumulates overdue tasks; resuming surfaces that backlog for
// the operator to work through, typically by skipping stale items.
func (m *Machine) Pause(ctx context.Context, contactID uuid.UUID) (domain.Contact, error) {
	return m.setStatus(ctx, contactID, domain.StatusActive, domain.StatusPaused, "only active contacts can be paused")
}

// Resume reactivates a paused contact.
func (m *Machine) Resume(ctx context.Context, contactID uuid.UUID) (domain.Contact, error) {
	return m.setStatus(ctx, contactID, domain.StatusPaused, domain.StatusActive, "only paused contacts can be resumed")
}

func (m *Machine) setStatus(ctx context.Context, contactID uuid.UUID, from, to domain.SequenceStatus, msg string) (domain.Contact, error) {
	contact, err := m.repo.GetContact(ctx, contactID)
	if err != nil {
		return domain.Contact{}, err
	}
	if contact.SequenceStatus != from {
		return domain.Contact{}, apperr.Conflict(msg)
	}
	contact.SequenceStatus = to
	if err := m.repo.SaveContact(ctx, contact); err != nil {
		return domain.Contact{}, apperr.NotSaved("lifecycle.setStatus", err)
	}
	return contact, nil
}

// MarkDead moves a contact to the absorbing dead state, records the
// reason, and purges all tasks so no stale pending work lingers.
func (m *Machine) MarkDead(ctx context.Context, contactID uuid.UUID, reason string) (domain.Contact, error) {
	contact, err := m.inSequenceContact(ctx, contactID)
	if err != nil {
		return domain.Contact{}, err
	}

	contact.SequenceStatus = domain.StatusDead
	contact.DeadReason = reason
	if err := m.repo.SaveContact(ctx, contact); err != nil {
		return domain.Contact{}, apperr.NotSaved("lifecycle.MarkDead", err)
	}

	purged, err := m.tasks.Purge(ctx, contactID)
	if err != nil {
		return domain.Contact{}, err
	}

	m.bus.Publish(ctx, events.ContactMarkedDead{
		BaseEvent:   events.NewBaseEvent(),
		ContactID:   contactID,
		Reason:      reason,
		TasksPurged: purged,
	})

	return contact, nil
}

// ConvertToClient moves a contact to the absorbing converted state and
// purges all tasks.
func (m *Machine) ConvertToClient(ctx context.Context, contactID uuid.UUID) (domain.Contact, error) {
	contact, err := m.inSequenceContact(ctx, contactID)
	if err != nil {
		return domain.Contact{}, err
	}

	now := m.clock.Now().UTC()
	contact.SequenceStatus = domain.StatusConverted
	contact.ConvertedDate = &now
	if err := m.repo.SaveContact(ctx, contact); err != nil {
		return domain.Contact{}, apperr.NotSaved("lifecycle.ConvertToClient", err)
	}

	purged, err := m.tasks.Purge(ctx, contactID)
	if err != nil {
		return domain.Contact{}, err
	}

	m.bus.Publish(ctx, events.ContactConverted{
		BaseEvent:   events.NewBaseEvent(),
		ContactID:   contactID,
		ContactName: contact.FullName(),
		TasksPurged: purged,
	})

	return contact, nil
}

// inSequenceContact loads a contact and rejects operations on contacts
// that no longer hold a sequence slot.
func (m *Machine) inSequenceContact(ctx context.Context, contactID uuid.UUID) (domain.Contact, error) {
	contact, err := m.repo.GetContact(ctx, contactID)
	if err != nil {
		return domain.Contact{}, err
	}
	if contact.SequenceStatus.IsTerminal() {
		return domain.Contact{}, apperr.Conflict(fmt.Sprintf("contact is %s; no further sequence operations apply", contact.SequenceStatus))
	}
	if !contact.SequenceStatus.InSequence() {
		return domain.Contact{}, apperr.Conflict(fmt.Sprintf("contact is %s, not in the sequence", contact.SequenceStatus))
	}
	return contact, nil
}
