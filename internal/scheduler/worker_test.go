package scheduler

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/kvstore"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/domain"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/repository"
	"github.com/grobenmarketing/7th-level-dialer-sub000/platform/logger"
)

// recordingScheduler captures enqueued work instead of talking to Redis.
type recordingScheduler struct {
	sweeps     int
	contactIDs []string
}

func (s *recordingScheduler) EnqueueSweep(context.Context) error {
	s.sweeps++
	return nil
}

func (s *recordingScheduler) EnqueueContactReconcile(_ context.Context, contactID string) error {
	s.contactIDs = append(s.contactIDs, contactID)
	return nil
}

func seedContact(t *testing.T, repo *repository.Repository, status domain.SequenceStatus) uuid.UUID {
	t.Helper()
	contact := domain.Contact{
		ID:             uuid.New(),
		FirstName:      "Grace",
		LastName:       "Hopper",
		SequenceStatus: status,
	}
	if err := repo.SaveContact(context.Background(), contact); err != nil {
		t.Fatalf("seed contact: %v", err)
	}
	return contact.ID
}

func TestSweepFanOutEnqueuesActiveContactsOnly(t *testing.T) {
	ctx := context.Background()
	repo := repository.New(kvstore.NewMemoryStore())

	activeID := seedContact(t, repo, domain.StatusActive)
	seedContact(t, repo, domain.StatusNeverContacted)
	seedContact(t, repo, domain.StatusPaused)
	seedContact(t, repo, domain.StatusCompleted)
	seedContact(t, repo, domain.StatusDead)

	sched := &recordingScheduler{}
	w := &Worker{repo: repo, sched: sched, log: logger.New("development")}

	if err := w.handleSequenceSweep(ctx, NewSequenceSweepTask()); err != nil {
		t.Fatalf("handle sweep: %v", err)
	}

	if len(sched.contactIDs) != 1 {
		t.Fatalf("enqueued %d reconciles, want 1", len(sched.contactIDs))
	}
	if sched.contactIDs[0] != activeID.String() {
		t.Fatalf("enqueued contact %s, want %s", sched.contactIDs[0], activeID)
	}
}

func TestContactReconcilePayloadRoundTrip(t *testing.T) {
	id := uuid.New().String()
	task, err := NewContactReconcileTask(ContactReconcilePayload{ContactID: id})
	if err != nil {
		t.Fatalf("new task: %v", err)
	}

	payload, err := ParseContactReconcilePayload(task)
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	if payload.ContactID != id {
		t.Fatalf("contact id = %s, want %s", payload.ContactID, id)
	}
}
