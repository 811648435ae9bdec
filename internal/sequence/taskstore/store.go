// Package taskstore owns the sequence-task collection: bulk generation at
// sequence entry, completion and skip recording, terminal purge, and the
// date-based task queries the dashboards consume.
package taskstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/calendar"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/dates"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/domain"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/repository"
	"github.com/grobenmarketing/7th-level-dialer-sub000/platform/apperr"
	"github.com/grobenmarketing/7th-level-dialer-sub000/platform/logger"

	"github.com/google/uuid"
)

// Mode selects which tasks a visibility query returns.
type Mode string

const (
	// ModeToday returns resolved tasks plus pending tasks that are due
	// today or overdue; future pending tasks stay hidden.
	ModeToday Mode = "today"
	// ModeAll returns the contact's full task list regardless of date.
	ModeAll Mode = "all"
)

// Store generates, resolves and queries sequence tasks.
type Store struct {
	repo  *repository.Repository
	cal   *calendar.Definition
	clock dates.Clock
	log   *logger.Logger
}

// New creates a task store.
func New(repo *repository.Repository, cal *calendar.Definition, clock dates.Clock, log *logger.Logger) *Store {
	return &Store{repo: repo, cal: cal, clock: clock, log: log}
}

// Generate seeds every touch of the plan for a contact that just entered
// the sequence. The day-1 call is omitted: the triggering cold call already
// satisfied it. Touches whose channel the contact lacks are not generated.
// Generation is idempotent with respect to the natural key: existing tasks
// are never duplicated, so re-running after a partial failure is safe.
func (s *Store) Generate(ctx context.Context, contact domain.Contact) ([]domain.Task, error) {
	if contact.SequenceStartDate == nil {
		return nil, apperr.Validation("contact has no sequence start date")
	}

	// The weekend shift is applied once here; every day offset is computed
	// from the same effective start so due dates cannot drift.
	effectiveStart := dates.NextBusinessDay(*contact.SequenceStartDate)
	now := s.clock.Now().UTC()

	var created []domain.Task
	err := s.repo.MutateTasks(ctx, func(tasks []domain.Task) ([]domain.Task, bool, error) {
		existing := make(map[domain.TaskKey]struct{}, len(tasks))
		for _, t := range tasks {
			if t.ContactID == contact.ID {
				existing[t.Key()] = struct{}{}
			}
		}

		for _, day := range s.cal.Days() {
			for _, taskType := range s.cal.TasksForDay(day) {
				if day == 1 && taskType == domain.TaskCall {
					continue
				}
				if !s.cal.IsApplicable(taskType, contact.ChannelFlags, contact.TouchCounters) {
					continue
				}
				key := domain.TaskKey{ContactID: contact.ID, SequenceDay: day, Type: taskType}
				if _, ok := existing[key]; ok {
					continue
				}
				task := domain.Task{
					ID:          uuid.New(),
					ContactID:   contact.ID,
					SequenceDay: day,
					Type:        taskType,
					Label:       s.cal.Describe(taskType, day),
					DueDate:     dates.DueDate(effectiveStart, day),
					Status:      domain.TaskPending,
					CreatedAt:   now,
				}
				tasks = append(tasks, task)
				created = append(created, task)
				existing[key] = struct{}{}
			}
		}
		return tasks, len(created) > 0, nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Complete marks the task identified by its natural key as completed. A
// request for a task that was never generated is honored by synthesizing
// the record already completed; see resolve.
func (s *Store) Complete(ctx context.Context, contactID uuid.UUID, day int, taskType domain.TaskType, notes string) (domain.Task, bool, error) {
	return s.resolve(ctx, contactID, day, taskType, domain.TaskCompleted, notes)
}

// Skip marks the task as skipped with the reason recorded in notes.
func (s *Store) Skip(ctx context.Context, contactID uuid.UUID, day int, taskType domain.TaskType, reason string) (domain.Task, bool, error) {
	return s.resolve(ctx, contactID, day, taskType, domain.TaskSkipped, reason)
}

// resolve applies the one-way pending → completed|skipped transition.
// Returns the task and whether it transitioned in this call; re-resolving
// an already-terminal task is a no-op, which is the idempotency defense
// against double-submitted UI actions.
func (s *Store) resolve(ctx context.Context, contactID uuid.UUID, day int, taskType domain.TaskType, status domain.TaskStatus, notes string) (domain.Task, bool, error) {
	if !domain.IsKnownTaskType(taskType) {
		return domain.Task{}, false, apperr.Validation(fmt.Sprintf("unknown task type %q", taskType))
	}
	if day < 1 || day > s.cal.Length() {
		return domain.Task{}, false, apperr.Validation(fmt.Sprintf("sequence day %d outside 1..%d", day, s.cal.Length()))
	}

	var (
		result       domain.Task
		transitioned bool
	)
	key := domain.TaskKey{ContactID: contactID, SequenceDay: day, Type: taskType}
	now := s.clock.Now().UTC()

	err := s.repo.MutateTasks(ctx, func(tasks []domain.Task) ([]domain.Task, bool, error) {
		for i := range tasks {
			if tasks[i].Key() != key {
				continue
			}
			if tasks[i].Status.IsTerminal() {
				// One-way transition: terminal tasks never revert, and a
				// repeated resolve changes nothing.
				result = tasks[i]
				return tasks, false, nil
			}
			tasks[i].Status = status
			tasks[i].CompletedAt = &now
			tasks[i].Notes = mergeNotes(tasks[i].Notes, notes)
			result = tasks[i]
			transitioned = true
			return tasks, true, nil
		}

		// Drift repair: the task was never generated (historical data bug
		// or plan change). The operator's intent still stands, so a record
		// is synthesized directly in the requested terminal state.
		result = s.synthesizeResolved(key, status, notes, now)
		transitioned = true
		return append(tasks, result), true, nil
	})
	if err != nil {
		return domain.Task{}, false, err
	}
	return result, transitioned, nil
}

// synthesizeResolved builds a task record already in a terminal state for
// the repair-on-write path. Kept as a named step so tests can tell the
// expected path from the drift repair path.
func (s *Store) synthesizeResolved(key domain.TaskKey, status domain.TaskStatus, notes string, now time.Time) domain.Task {
	s.log.TaskAnomaly(key.ContactID.String(), key.SequenceDay, string(key.Type), "task missing from store, synthesizing resolved record")
	return domain.Task{
		ID:          uuid.New(),
		ContactID:   key.ContactID,
		SequenceDay: key.SequenceDay,
		Type:        key.Type,
		Label:       s.cal.Describe(key.Type, key.SequenceDay),
		DueDate:     dates.Midnight(now),
		Status:      status,
		CompletedAt: &now,
		Notes:       notes,
		Synthesized: true,
		CreatedAt:   now,
	}
}

// Purge deletes every task for a contact. Used on dead/converted
// transitions so no stale pending tasks linger. Returns how many tasks
// were removed.
func (s *Store) Purge(ctx context.Context, contactID uuid.UUID) (int, error) {
	removed := 0
	err := s.repo.MutateTasks(ctx, func(tasks []domain.Task) ([]domain.Task, bool, error) {
		kept := tasks[:0]
		for _, t := range tasks {
			if t.ContactID == contactID {
				removed++
				continue
			}
			kept = append(kept, t)
		}
		return kept, removed > 0, nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// VisibleTasks returns the tasks a checklist should show for a contact.
func (s *Store) VisibleTasks(ctx context.Context, contactID uuid.UUID, mode Mode) ([]domain.Task, error) {
	tasks, err := s.repo.ListContactTasks(ctx, contactID)
	if err != nil {
		return nil, err
	}
	sortTasks(tasks)

	if mode == ModeAll {
		return tasks, nil
	}

	today := s.clock.Now()
	visible := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Status.IsTerminal() {
			visible = append(visible, t)
			continue
		}
		if dates.IsDueToday(t.DueDate, today) || dates.IsOverdue(t.DueDate, today) {
			visible = append(visible, t)
		}
	}
	return visible, nil
}

// OverdueTasks returns the contact's pending tasks whose due date is
// strictly before today, oldest first.
func (s *Store) OverdueTasks(ctx context.Context, contactID uuid.UUID) ([]domain.Task, error) {
	tasks, err := s.repo.ListContactTasks(ctx, contactID)
	if err != nil {
		return nil, err
	}
	today := s.clock.Now()
	overdue := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.IsPending() && dates.IsOverdue(t.DueDate, today) {
			overdue = append(overdue, t)
		}
	}
	sortTasks(overdue)
	return overdue, nil
}

// HasOverdueTasks reports whether any pending task for the contact is past due.
func (s *Store) HasOverdueTasks(ctx context.Context, contactID uuid.UUID) (bool, error) {
	overdue, err := s.OverdueTasks(ctx, contactID)
	if err != nil {
		return false, err
	}
	return len(overdue) > 0, nil
}

// ContactTasks returns the contact's tasks unfiltered.
func (s *Store) ContactTasks(ctx context.Context, contactID uuid.UUID) ([]domain.Task, error) {
	tasks, err := s.repo.ListContactTasks(ctx, contactID)
	if err != nil {
		return nil, err
	}
	sortTasks(tasks)
	return tasks, nil
}

func sortTasks(tasks []domain.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].SequenceDay != tasks[j].SequenceDay {
			return tasks[i].SequenceDay < tasks[j].SequenceDay
		}
		return tasks[i].Type < tasks[j].Type
	})
}

func mergeNotes(existing, extra string) string {
	switch {
	case extra == "":
		return existing
	case existing == "":
		return extra
	default:
		return existing + "\n" + extra
	}
}
