package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/events"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/kvstore"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/automation"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/calendar"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/dates"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/lifecycle"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/repository"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/taskstore"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/transport"
	"github.com/grobenmarketing/7th-level-dialer-sub000/platform/logger"
	"github.com/grobenmarketing/7th-level-dialer-sub000/platform/validator"
)

var monday = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

func newTestRouter(t *testing.T, now time.Time) *gin.Engine {
	t.Helper()
	return newTestRouterWithStore(t, now, kvstore.NewMemoryStore())
}

func newTestRouterWithStore(t *testing.T, now time.Time, store kvstore.Store) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.New("development")
	clock := dates.Fixed(now)
	cal := calendar.Default()
	repo := repository.New(store)
	bus := events.NewInMemoryBus(log)
	tasks := taskstore.New(repo, cal, clock, log)
	machine := lifecycle.New(repo, tasks, cal, clock, bus, log)
	engine := automation.New(machine, tasks, repo, clock, bus, log, 2, 1000)
	h := New(repo, machine, tasks, engine, validator.New(), log)

	r := gin.New()
	h.RegisterRoutes(r.Group("/contacts"))
	h.RegisterAdminRoutes(r.Group("/admin/sequence"))
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func createContact(t *testing.T, r *gin.Engine) transport.ContactResponse {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/contacts", map[string]any{
		"firstName":      "Ada",
		"lastName":       "Lovelace",
		"company":        "Analytical Engines",
		"phone":          "(212) 555-0175",
		"email":          "ada@example.com",
		"hasEmail":       true,
		"hasLinkedIn":    true,
		"hasSocialMedia": true,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create contact: %d %s", w.Code, w.Body.String())
	}
	return decode[transport.ContactResponse](t, w)
}

func TestCreateContactNormalizesAndDefaults(t *testing.T) {
	r := newTestRouter(t, monday)
	contact := createContact(t, r)

	if contact.SequenceStatus != "never_contacted" {
		t.Fatalf("status = %s", contact.SequenceStatus)
	}
	if contact.Phone != "+12125550175" {
		t.Fatalf("phone = %q, want E.164", contact.Phone)
	}
	if contact.Name != "Ada Lovelace" {
		t.Fatalf("name = %q", contact.Name)
	}
}

func TestCreateContactWithoutEmailDropsEmailChannel(t *testing.T) {
	r := newTestRouter(t, monday)
	w := doJSON(t, r, http.MethodPost, "/contacts", map[string]any{
		"firstName": "No",
		"lastName":  "Email",
		"hasEmail":  true,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	contact := decode[transport.ContactResponse](t, w)
	if contact.HasEmail {
		t.Fatal("hasEmail must be dropped when no address is present")
	}
}

func TestCreateContactValidation(t *testing.T) {
	r := newTestRouter(t, monday)

	w := doJSON(t, r, http.MethodPost, "/contacts", map[string]any{"firstName": "Only"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing last name: %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/contacts", map[string]any{
		"firstName": "Bad", "lastName": "Email", "email": "not-an-email",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad email: %d", w.Code)
	}
}

func TestEnterSequenceFlow(t *testing.T) {
	r := newTestRouter(t, monday)
	contact := createContact(t, r)

	w := doJSON(t, r, http.MethodPost, "/contacts/"+contact.ID.String()+"/enter", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("enter: %d %s", w.Code, w.Body.String())
	}
	entered := decode[transport.ContactResponse](t, w)
	if entered.SequenceStatus != "active" || entered.SequenceCurrentDay != 1 || entered.CallsMade != 1 {
		t.Fatalf("entered = %+v", entered)
	}

	// Re-entry is a state conflict.
	w = doJSON(t, r, http.MethodPost, "/contacts/"+contact.ID.String()+"/enter", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("re-enter: %d, want 409", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/contacts/"+contact.ID.String()+"/tasks?mode=all", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list tasks: %d", w.Code)
	}
	tasks := decode[[]transport.TaskResponse](t, w)
	if len(tasks) != 26 {
		t.Fatalf("got %d tasks, want 26", len(tasks))
	}
}

func TestContactIDValidation(t *testing.T) {
	r := newTestRouter(t, monday)

	w := doJSON(t, r, http.MethodGet, "/contacts/not-a-uuid", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad uuid: %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/contacts/00000000-0000-0000-0000-000000000001", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown contact: %d", w.Code)
	}
}

func TestActionTaskCompleteAndAdvance(t *testing.T) {
	r := newTestRouter(t, monday.AddDate(0, 0, 1))
	contact := createContact(t, r)
	if w := doJSON(t, r, http.MethodPost, "/contacts/"+contact.ID.String()+"/enter", nil); w.Code != http.StatusOK {
		t.Fatalf("enter: %d", w.Code)
	}

	w := doJSON(t, r, http.MethodPost, "/contacts/"+contact.ID.String()+"/tasks/action", map[string]any{
		"day": 2, "taskType": "email", "action": "complete", "notes": "sent",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("action: %d %s", w.Code, w.Body.String())
	}
	updated := decode[transport.ContactResponse](t, w)
	if updated.EmailsSent != 1 {
		t.Fatalf("emails sent = %d", updated.EmailsSent)
	}
	// The handler attempts advancement right after the touch.
	if updated.SequenceCurrentDay < 2 {
		t.Fatalf("current day = %d, want >= 2", updated.SequenceCurrentDay)
	}
}

// advanceFailStore lets a fixed number of contact-collection writes through
// and refuses the rest, leaving later saves in a request failing.
type advanceFailStore struct {
	kvstore.Store
	contactWrites int
	allow         int
}

func (s *advanceFailStore) Set(ctx context.Context, collection string, data []byte) error {
	if collection == kvstore.CollectionContacts {
		s.contactWrites++
		if s.contactWrites > s.allow {
			return errors.New("write refused")
		}
	}
	return s.Store.Set(ctx, collection, data)
}

func TestActionTaskSucceedsWhenAdvanceFails(t *testing.T) {
	// Create, enter and the touch itself each save the contact once; the
	// fourth save is the advance, which is allowed to fail.
	store := &advanceFailStore{Store: kvstore.NewMemoryStore(), allow: 3}
	r := newTestRouterWithStore(t, monday.AddDate(0, 0, 1), store)
	contact := createContact(t, r)
	if w := doJSON(t, r, http.MethodPost, "/contacts/"+contact.ID.String()+"/enter", nil); w.Code != http.StatusOK {
		t.Fatalf("enter: %d", w.Code)
	}

	w := doJSON(t, r, http.MethodPost, "/contacts/"+contact.ID.String()+"/tasks/action", map[string]any{
		"day": 2, "taskType": "email", "action": "complete", "notes": "sent",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("action: %d %s", w.Code, w.Body.String())
	}
	updated := decode[transport.ContactResponse](t, w)
	if updated.EmailsSent != 1 {
		t.Fatalf("emails sent = %d, want 1", updated.EmailsSent)
	}
	if updated.SequenceCurrentDay != 1 {
		t.Fatalf("current day = %d, want 1 when the advance save fails", updated.SequenceCurrentDay)
	}
}

func TestActionTaskSkip(t *testing.T) {
	r := newTestRouter(t, monday)
	contact := createContact(t, r)
	if w := doJSON(t, r, http.MethodPost, "/contacts/"+contact.ID.String()+"/enter", nil); w.Code != http.StatusOK {
		t.Fatalf("enter: %d", w.Code)
	}

	w := doJSON(t, r, http.MethodPost, "/contacts/"+contact.ID.String()+"/tasks/action", map[string]any{
		"day": 2, "taskType": "linkedin_dm", "action": "skip", "notes": "profile gone",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("skip: %d %s", w.Code, w.Body.String())
	}
	updated := decode[transport.ContactResponse](t, w)
	if updated.LinkedInDMsSent != 0 {
		t.Fatal("skip must not move counters")
	}
}

func TestActionTaskValidation(t *testing.T) {
	r := newTestRouter(t, monday)
	contact := createContact(t, r)
	if w := doJSON(t, r, http.MethodPost, "/contacts/"+contact.ID.String()+"/enter", nil); w.Code != http.StatusOK {
		t.Fatalf("enter: %d", w.Code)
	}

	cases := []map[string]any{
		{"day": 2, "taskType": "carrier_pigeon", "action": "complete"},
		{"day": 2, "taskType": "email", "action": "archive"},
		{"day": 31, "taskType": "email", "action": "complete"},
		{"taskType": "email", "action": "complete"},
	}
	for i, body := range cases {
		if w := doJSON(t, r, http.MethodPost, "/contacts/"+contact.ID.String()+"/tasks/action", body); w.Code != http.StatusBadRequest {
			t.Fatalf("case %d: %d, want 400", i, w.Code)
		}
	}
}

func TestOverdueEndpoint(t *testing.T) {
	r := newTestRouter(t, monday)
	contact := createContact(t, r)
	if w := doJSON(t, r, http.MethodPost, "/contacts/"+contact.ID.String()+"/enter", nil); w.Code != http.StatusOK {
		t.Fatalf("enter: %d", w.Code)
	}

	w := doJSON(t, r, http.MethodGet, "/contacts/"+contact.ID.String()+"/tasks/overdue", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("overdue: %d", w.Code)
	}
	tasks := decode[[]transport.TaskResponse](t, w)
	if len(tasks) != 0 {
		t.Fatalf("nothing is overdue on the entry day, got %d", len(tasks))
	}
}

func TestPauseResumeConvertEndpoints(t *testing.T) {
	r := newTestRouter(t, monday)
	contact := createContact(t, r)
	base := "/contacts/" + contact.ID.String()
	if w := doJSON(t, r, http.MethodPost, base+"/enter", nil); w.Code != http.StatusOK {
		t.Fatalf("enter: %d", w.Code)
	}

	w := doJSON(t, r, http.MethodPost, base+"/pause", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("pause: %d", w.Code)
	}
	if got := decode[transport.ContactResponse](t, w); got.SequenceStatus != "paused" {
		t.Fatalf("status = %s", got.SequenceStatus)
	}

	if w := doJSON(t, r, http.MethodPost, base+"/pause", nil); w.Code != http.StatusConflict {
		t.Fatalf("double pause: %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, base+"/resume", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("resume: %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, base+"/convert", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("convert: %d", w.Code)
	}
	converted := decode[transport.ContactResponse](t, w)
	if converted.SequenceStatus != "converted" || converted.ConvertedDate == nil {
		t.Fatalf("converted = %+v", converted)
	}

	// Absorbing state: nothing else applies.
	if w := doJSON(t, r, http.MethodPost, base+"/pause", nil); w.Code != http.StatusConflict {
		t.Fatalf("pause after convert: %d", w.Code)
	}
}

func TestMarkDeadRequiresReason(t *testing.T) {
	r := newTestRouter(t, monday)
	contact := createContact(t, r)
	base := "/contacts/" + contact.ID.String()
	if w := doJSON(t, r, http.MethodPost, base+"/enter", nil); w.Code != http.StatusOK {
		t.Fatalf("enter: %d", w.Code)
	}

	if w := doJSON(t, r, http.MethodPost, base+"/dead", map[string]any{}); w.Code != http.StatusBadRequest {
		t.Fatalf("missing reason: %d", w.Code)
	}

	w := doJSON(t, r, http.MethodPost, base+"/dead", map[string]any{"reason": "asked to stop"})
	if w.Code != http.StatusOK {
		t.Fatalf("dead: %d %s", w.Code, w.Body.String())
	}
	dead := decode[transport.ContactResponse](t, w)
	if dead.SequenceStatus != "dead" || dead.DeadReason != "asked to stop" {
		t.Fatalf("dead = %+v", dead)
	}

	// Tasks were purged.
	w = doJSON(t, r, http.MethodGet, base+"/tasks?mode=all", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("tasks: %d", w.Code)
	}
	if tasks := decode[[]transport.TaskResponse](t, w); len(tasks) != 0 {
		t.Fatalf("dead contact still has %d tasks", len(tasks))
	}
}

func TestAdminEndpoints(t *testing.T) {
	r := newTestRouter(t, monday)
	contact := createContact(t, r)
	if w := doJSON(t, r, http.MethodPost, "/contacts/"+contact.ID.String()+"/enter", nil); w.Code != http.StatusOK {
		t.Fatalf("enter: %d", w.Code)
	}

	w := doJSON(t, r, http.MethodPost, "/admin/sequence/deduplicate", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("deduplicate: %d", w.Code)
	}
	if got := decode[transport.RepairResponse](t, w); got.TasksRemoved != 0 {
		t.Fatalf("clean store removed %d", got.TasksRemoved)
	}

	w = doJSON(t, r, http.MethodPost, "/admin/sequence/backfill", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("backfill: %d", w.Code)
	}
	if got := decode[transport.RepairResponse](t, w); got.TasksAdded != 0 {
		t.Fatalf("complete store backfilled %d", got.TasksAdded)
	}

	w = doJSON(t, r, http.MethodPost, "/admin/sequence/sweep", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("sweep: %d", w.Code)
	}
	report := decode[automation.Report](t, w)
	if report.Scanned != 1 {
		t.Fatalf("sweep scanned %d, want 1", report.Scanned)
	}
}
