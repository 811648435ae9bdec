package automation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/events"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/kvstore"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/calendar"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/dates"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/domain"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/lifecycle"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/repository"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/taskstore"
	"github.com/grobenmarketing/7th-level-dialer-sub000/platform/logger"
)

var monday = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

type recordingBus struct {
	mu        sync.Mutex
	published []events.Event
}

func (b *recordingBus) Publish(_ context.Context, e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, e)
}

func (b *recordingBus) PublishSync(ctx context.Context, e events.Event) error {
	b.Publish(ctx, e)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) stuckEvents() []events.ContactStuck {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []events.ContactStuck
	for _, e := range b.published {
		if s, ok := e.(events.ContactStuck); ok {
			out = append(out, s)
		}
	}
	return out
}

type world struct {
	repo    *repository.Repository
	bus     *recordingBus
	machine *lifecycle.Machine
}

func newEngine(t *testing.T, w *world, now time.Time) *Engine {
	t.Helper()
	log := logger.New("development")
	clock := dates.Fixed(now)
	cal := calendar.Default()
	tasks := taskstore.New(w.repo, cal, clock, log)
	machine := lifecycle.New(w.repo, tasks, cal, clock, w.bus, log)
	w.machine = machine
	return New(machine, tasks, w.repo, clock, w.bus, log, 4, 1000)
}

func newWorld() *world {
	return &world{repo: repository.New(kvstore.NewMemoryStore()), bus: &recordingBus{}}
}

func enterContact(t *testing.T, w *world, now time.Time) domain.Contact {
	t.Helper()
	contact := domain.Contact{
		ID:             uuid.New(),
		FirstName:      "Lin",
		LastName:       "Chen",
		SequenceStatus: domain.StatusNeverContacted,
		ChannelFlags:   domain.ChannelFlags{HasEmail: true, HasLinkedIn: true, HasSocialMedia: true},
	}
	if err := w.repo.SaveContact(context.Background(), contact); err != nil {
		t.Fatalf("save: %v", err)
	}
	newEngine(t, w, now)
	entered, err := w.machine.Enter(context.Background(), contact.ID)
	if err != nil {
		t.Fatalf("enter: %v", err)
	}
	return entered
}

func TestReconcileNotDueBeforeCurrentDay(t *testing.T) {
	ctx := context.Background()
	w := newWorld()
	contact := enterContact(t, w, monday)

	engine := newEngine(t, w, monday)
	outcome, err := engine.ReconcileContact(ctx, contact)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	// Day 1 is due today and resolved, so reconcile advances rather than
	// waiting; re-entering on the same day moves to day 2 only when day 2
	// is reachable, which it is not until tomorrow.
	if outcome != OutcomeHeld && outcome != OutcomeAdvanced {
		t.Fatalf("outcome = %s", outcome)
	}
}

func TestReconcileAdvancesWhenDayResolvedAndPast(t *testing.T) {
	ctx := context.Background()
	w := newWorld()
	contact := enterContact(t, w, monday)

	// Tuesday: day 1 closed, day 2 work is pending and due.
	engine := newEngine(t, w, monday.AddDate(0, 0, 1))
	outcome, err := engine.ReconcileContact(ctx, contact)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if outcome != OutcomeAdvanced {
		t.Fatalf("outcome = %s, want advanced", outcome)
	}

	updated, err := w.repo.GetContact(ctx, contact.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if updated.SequenceCurrentDay != 2 {
		t.Fatalf("current day = %d, want 2", updated.SequenceCurrentDay)
	}
}

func TestReconcileReportsStuckOnOverdueWork(t *testing.T) {
	ctx := context.Background()
	w := newWorld()
	contact := enterContact(t, w, monday)

	// Advance to day 2 on Tuesday, then let the work rot until Friday.
	tue := newEngine(t, w, monday.AddDate(0, 0, 1))
	if _, err := tue.ReconcileContact(ctx, contact); err != nil {
		t.Fatalf("tuesday reconcile: %v", err)
	}
	contact, err := w.repo.GetContact(ctx, contact.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	fri := newEngine(t, w, monday.AddDate(0, 0, 4))
	outcome, err := fri.ReconcileContact(ctx, contact)
	if err != nil {
		t.Fatalf("friday reconcile: %v", err)
	}
	if outcome != OutcomeStuck {
		t.Fatalf("outcome = %s, want stuck", outcome)
	}

	stuck := w.bus.stuckEvents()
	if len(stuck) != 1 {
		t.Fatalf("got %d stuck events, want 1", len(stuck))
	}
	e := stuck[0]
	if e.ContactID != contact.ID || e.CurrentDay != 2 {
		t.Fatalf("stuck event = %+v", e)
	}
	if e.OverdueCount == 0 {
		t.Fatal("stuck event must carry the overdue count")
	}
	if !e.OldestDue.Equal(monday.AddDate(0, 0, 1)) {
		t.Fatalf("oldest due = %v, want %v", e.OldestDue, monday.AddDate(0, 0, 1))
	}

	// The contact does not move while stuck.
	after, err := w.repo.GetContact(ctx, contact.ID)
	if err != nil {
		t.Fatalf("get after: %v", err)
	}
	if after.SequenceCurrentDay != 2 {
		t.Fatalf("stuck contact moved to day %d", after.SequenceCurrentDay)
	}
}

func TestSweepCountsOutcomesAndSkipsInactive(t *testing.T) {
	ctx := context.Background()
	w := newWorld()

	active := enterContact(t, w, monday)
	_ = active

	paused := enterContact(t, w, monday)
	if _, err := w.machine.Pause(ctx, paused.ID); err != nil {
		t.Fatalf("pause: %v", err)
	}

	engine := newEngine(t, w, monday.AddDate(0, 0, 1))
	report, err := engine.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}

	if report.Scanned != 1 {
		t.Fatalf("scanned %d contacts, want 1 (paused skipped)", report.Scanned)
	}
	if report.Advanced != 1 {
		t.Fatalf("advanced %d, want 1", report.Advanced)
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	ctx := context.Background()
	w := newWorld()
	enterContact(t, w, monday)

	engine := newEngine(t, w, monday.AddDate(0, 0, 1))
	if _, err := engine.Sweep(ctx); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	report, err := engine.Sweep(ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if report.Advanced != 0 || report.Completed != 0 {
		t.Fatalf("second sweep changed state: %+v", report)
	}
}

func TestSweepManyContactsInParallel(t *testing.T) {
	ctx := context.Background()
	w := newWorld()

	const n = 12
	for i := 0; i < n; i++ {
		enterContact(t, w, monday)
	}

	engine := newEngine(t, w, monday.AddDate(0, 0, 1))
	report, err := engine.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.Scanned != n {
		t.Fatalf("scanned %d, want %d", report.Scanned, n)
	}
	if report.Advanced != n {
		t.Fatalf("advanced %d, want %d", report.Advanced, n)
	}

	contacts, err := w.repo.ListContacts(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, c := range contacts {
		if c.SequenceCurrentDay != 2 {
			t.Fatalf("contact %s on day %d, want 2", c.ID, c.SequenceCurrentDay)
		}
	}
}
