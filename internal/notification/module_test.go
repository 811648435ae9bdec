package notification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/email"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/events"
	"github.com/grobenmarketing/7th-level-dialer-sub000/platform/logger"
)

type fakeSender struct {
	mu        sync.Mutex
	digests   [][]email.StuckContact
	completed []string
}

func (f *fakeSender) SendStuckDigest(_ context.Context, _ string, contacts []email.StuckContact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.digests = append(f.digests, contacts)
	return nil
}

func (f *fakeSender) SendSequenceCompletedEmail(_ context.Context, _, contactName string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, contactName)
	return nil
}

func newTestModule(sender email.Sender) *Module {
	return &Module{
		sender:   sender,
		operator: "ops@example.com",
		log:      logger.New("development"),
		debounce: time.Hour, // tests flush manually
		pending:  map[string]email.StuckContact{},
	}
}

func stuckEvent(name string, day int) events.ContactStuck {
	return events.ContactStuck{
		BaseEvent:    events.NewBaseEvent(),
		ContactID:    uuid.New(),
		ContactName:  name,
		CurrentDay:   day,
		OverdueCount: 2,
		OldestDue:    time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC),
	}
}

func TestStuckEventsBatchIntoOneDigest(t *testing.T) {
	sender := &fakeSender{}
	m := newTestModule(sender)

	if err := m.handleContactStuck(context.Background(), stuckEvent("Ada Lovelace", 2)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if err := m.handleContactStuck(context.Background(), stuckEvent("Grace Hopper", 5)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	m.Flush()

	if len(sender.digests) != 1 {
		t.Fatalf("sent %d digests, want 1", len(sender.digests))
	}
	if len(sender.digests[0]) != 2 {
		t.Fatalf("digest has %d rows, want 2", len(sender.digests[0]))
	}
}

func TestRepeatedStuckEventForSameContactDedupes(t *testing.T) {
	sender := &fakeSender{}
	m := newTestModule(sender)

	e := stuckEvent("Ada Lovelace", 2)
	for i := 0; i < 3; i++ {
		if err := m.handleContactStuck(context.Background(), e); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}

	m.Flush()

	if len(sender.digests) != 1 || len(sender.digests[0]) != 1 {
		t.Fatalf("digests = %+v, want one digest with one row", sender.digests)
	}
}

func TestFlushWithNothingPendingSendsNothing(t *testing.T) {
	sender := &fakeSender{}
	m := newTestModule(sender)

	m.Flush()

	if len(sender.digests) != 0 {
		t.Fatalf("sent %d digests from an empty buffer", len(sender.digests))
	}
}

func TestSequenceCompletedSendsImmediately(t *testing.T) {
	sender := &fakeSender{}
	m := newTestModule(sender)

	e := events.SequenceCompleted{
		BaseEvent:    events.NewBaseEvent(),
		ContactID:    uuid.New(),
		ContactName:  "Ada Lovelace",
		TotalTouches: 27,
	}
	if err := m.handleSequenceCompleted(context.Background(), e); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(sender.completed) != 1 || sender.completed[0] != "Ada Lovelace" {
		t.Fatalf("completed emails = %v", sender.completed)
	}
}

func TestNoOperatorConfiguredSendsNothing(t *testing.T) {
	sender := &fakeSender{}
	m := newTestModule(sender)
	m.operator = ""

	if err := m.handleContactStuck(context.Background(), stuckEvent("Ada Lovelace", 2)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	m.Flush()

	e := events.SequenceCompleted{BaseEvent: events.NewBaseEvent(), ContactID: uuid.New(), ContactName: "X"}
	if err := m.handleSequenceCompleted(context.Background(), e); err != nil {
		t.Fatalf("handle completed: %v", err)
	}

	if len(sender.digests) != 0 || len(sender.completed) != 0 {
		t.Fatal("no email may go out without an operator address")
	}
}
