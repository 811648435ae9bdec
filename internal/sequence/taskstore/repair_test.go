package taskstore

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/domain"
)

func seedTasks(t *testing.T, store *Store, tasks ...domain.Task) {
	t.Helper()
	err := store.repo.MutateTasks(context.Background(), func(existing []domain.Task) ([]domain.Task, bool, error) {
		return append(existing, tasks...), true, nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestDeduplicateNoDuplicatesIsNoOp(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, monday)
	contact := enteredContact(monday)
	if _, err := store.Generate(ctx, contact); err != nil {
		t.Fatalf("generate: %v", err)
	}

	removed, err := store.Deduplicate(ctx)
	if err != nil {
		t.Fatalf("deduplicate: %v", err)
	}
	if removed != 0 {
		t.Fatalf("removed %d from a clean store", removed)
	}
}

func TestDeduplicateTerminalBeatsPending(t *testing.T) {
	ctx := context.Background()
	store, repo := newTestStore(t, monday)
	contactID := uuid.New()
	done := monday.Add(10 * time.Hour)

	seedTasks(t, store,
		domain.Task{ID: uuid.New(), ContactID: contactID, SequenceDay: 2, Type: domain.TaskEmail, Status: domain.TaskPending, DueDate: monday},
		domain.Task{ID: uuid.New(), ContactID: contactID, SequenceDay: 2, Type: domain.TaskEmail, Status: domain.TaskCompleted, CompletedAt: &done, DueDate: monday},
	)

	removed, err := store.Deduplicate(ctx)
	if err != nil {
		t.Fatalf("deduplicate: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed %d, want 1", removed)
	}

	tasks, err := repo.ListContactTasks(ctx, contactID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Status != domain.TaskCompleted {
		t.Fatalf("survivor = %+v, want the completed record", tasks)
	}
}

func TestDeduplicateMostRecentTerminalWins(t *testing.T) {
	ctx := context.Background()
	store, repo := newTestStore(t, monday)
	contactID := uuid.New()
	earlier := monday.Add(1 * time.Hour)
	later := monday.Add(5 * time.Hour)

	seedTasks(t, store,
		domain.Task{ID: uuid.New(), ContactID: contactID, SequenceDay: 3, Type: domain.TaskSocialEngage, Status: domain.TaskSkipped, CompletedAt: &earlier, Notes: "old"},
		domain.Task{ID: uuid.New(), ContactID: contactID, SequenceDay: 3, Type: domain.TaskSocialEngage, Status: domain.TaskCompleted, CompletedAt: &later, Notes: "new"},
	)

	if _, err := store.Deduplicate(ctx); err != nil {
		t.Fatalf("deduplicate: %v", err)
	}

	tasks, err := repo.ListContactTasks(ctx, contactID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Notes != "new" {
		t.Fatalf("survivor = %+v, want the most recently resolved record", tasks)
	}
}

func TestDeduplicateEarliestDuePendingWins(t *testing.T) {
	ctx := context.Background()
	store, repo := newTestStore(t, monday)
	contactID := uuid.New()

	seedTasks(t, store,
		domain.Task{ID: uuid.New(), ContactID: contactID, SequenceDay: 5, Type: domain.TaskCall, Status: domain.TaskPending, DueDate: monday.AddDate(0, 0, 7)},
		domain.Task{ID: uuid.New(), ContactID: contactID, SequenceDay: 5, Type: domain.TaskCall, Status: domain.TaskPending, DueDate: monday.AddDate(0, 0, 4)},
	)

	if _, err := store.Deduplicate(ctx); err != nil {
		t.Fatalf("deduplicate: %v", err)
	}

	tasks, err := repo.ListContactTasks(ctx, contactID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := monday.AddDate(0, 0, 4)
	if len(tasks) != 1 || !tasks[0].DueDate.Equal(want) {
		t.Fatalf("survivor = %+v, want due %v", tasks, want)
	}
}

func TestBackfillInsertsMissingTasks(t *testing.T) {
	ctx := context.Background()
	store, repo := newTestStore(t, monday)
	contact := enteredContact(monday)

	if _, err := store.Generate(ctx, contact); err != nil {
		t.Fatalf("generate: %v", err)
	}

	// Simulate historical data loss: drop every linkedin task.
	err := repo.MutateTasks(ctx, func(tasks []domain.Task) ([]domain.Task, bool, error) {
		kept := tasks[:0]
		for _, task := range tasks {
			if task.Type == domain.TaskLinkedInDM || task.Type == domain.TaskLinkedInComment {
				continue
			}
			kept = append(kept, task)
		}
		return kept, true, nil
	})
	if err != nil {
		t.Fatalf("drop: %v", err)
	}

	added, err := store.Backfill(ctx, []domain.Contact{contact})
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	// 4 linkedin_dm + 4 linkedin_comment in the plan.
	if added != 8 {
		t.Fatalf("backfilled %d, want 8", added)
	}

	tasks, err := repo.ListContactTasks(ctx, contact.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 26 {
		t.Fatalf("contact has %d tasks after backfill, want 26", len(tasks))
	}
}

func TestBackfillPreservesResolvedTasks(t *testing.T) {
	ctx := context.Background()
	store, repo := newTestStore(t, monday)
	contact := enteredContact(monday)
	if _, err := store.Generate(ctx, contact); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, _, err := store.Complete(ctx, contact.ID, 2, domain.TaskEmail, "already done"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	added, err := store.Backfill(ctx, []domain.Contact{contact})
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if added != 0 {
		t.Fatalf("backfilled %d into a complete store", added)
	}

	tasks, err := repo.ListContactTasks(ctx, contact.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, task := range tasks {
		if task.SequenceDay == 2 && task.Type == domain.TaskEmail && task.Status != domain.TaskCompleted {
			t.Fatal("backfill reverted a resolved task")
		}
	}
}

func TestBackfillIgnoresContactsOutsideSequence(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, monday)

	dead := enteredContact(monday)
	dead.SequenceStatus = domain.StatusDead
	never := enteredContact(monday)
	never.SequenceStatus = domain.StatusNeverContacted

	added, err := store.Backfill(ctx, []domain.Contact{dead, never})
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if added != 0 {
		t.Fatalf("backfilled %d tasks for out-of-sequence contacts", added)
	}
}
