package taskstore

import (
	"context"

	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/dates"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/domain"

	"github.com/google/uuid"
)

// Administrative repair operations. These run out-of-band, never on the
// hot path: normal operation prevents drift structurally, these clean up
// after historical bugs and touch-plan changes.

// Deduplicate collapses tasks sharing a natural key down to exactly one
// record per key. Priority: a completed or skipped record beats a pending
// one, the most recently resolved record wins among terminals, and the
// earliest due date wins among pendings. Returns how many records were
// removed.
func (s *Store) Deduplicate(ctx context.Context) (int, error) {
	removed := 0
	err := s.repo.MutateTasks(ctx, func(tasks []domain.Task) ([]domain.Task, bool, error) {
		best := make(map[domain.TaskKey]domain.Task, len(tasks))
		order := make([]domain.TaskKey, 0, len(tasks))

		for _, t := range tasks {
			key := t.Key()
			current, seen := best[key]
			if !seen {
				best[key] = t
				order = append(order, key)
				continue
			}
			removed++
			if preferTask(t, current) {
				best[key] = t
			}
		}

		if removed == 0 {
			return tasks, false, nil
		}

		kept := make([]domain.Task, 0, len(order))
		for _, key := range order {
			kept = append(kept, best[key])
		}
		return kept, true, nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// preferTask reports whether candidate should replace current when both
// share a natural key.
func preferTask(candidate, current domain.Task) bool {
	candTerminal := candidate.Status.IsTerminal()
	currTerminal := current.Status.IsTerminal()

	if candTerminal != currTerminal {
		return candTerminal
	}
	if candTerminal {
		// Most recently resolved wins.
		if candidate.CompletedAt == nil {
			return false
		}
		if current.CompletedAt == nil {
			return true
		}
		return candidate.CompletedAt.After(*current.CompletedAt)
	}
	// Both pending: earliest due date wins.
	return dates.Compare(candidate.DueDate, current.DueDate) < 0
}

// Backfill inserts the tasks the current touch plan requires but the store
// lacks, for every contact still in the sequence. Existing task statuses
// are preserved untouched. Used after the plan definition changes while
// contacts are mid-sequence. Returns how many tasks were added.
func (s *Store) Backfill(ctx context.Context, contacts []domain.Contact) (int, error) {
	added := 0
	now := s.clock.Now().UTC()

	err := s.repo.MutateTasks(ctx, func(tasks []domain.Task) ([]domain.Task, bool, error) {
		existing := make(map[domain.TaskKey]struct{}, len(tasks))
		for _, t := range tasks {
			existing[t.Key()] = struct{}{}
		}

		for _, contact := range contacts {
			if !contact.SequenceStatus.InSequence() || contact.SequenceStartDate == nil {
				continue
			}
			effectiveStart := dates.NextBusinessDay(*contact.SequenceStartDate)

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
					tasks = append(tasks, domain.Task{
						ID:          uuid.New(),
						ContactID:   contact.ID,
						SequenceDay: day,
						Type:        taskType,
						Label:       s.cal.Describe(taskType, day),
						DueDate:     dates.DueDate(effectiveStart, day),
						Status:      domain.TaskPending,
						CreatedAt:   now,
					})
					existing[key] = struct{}{}
					added++
				}
			}
		}
		return tasks, added > 0, nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}
