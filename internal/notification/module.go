// Package notification turns sequence events into operator emails.
// It subscribes to the event bus so the sequence module never needs to know
// about SMTP or templates.
package notification

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/email"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/events"
	"github.com/grobenmarketing/7th-level-dialer-sub000/platform/config"
	"github.com/grobenmarketing/7th-level-dialer-sub000/platform/logger"
)

// defaultDebounce batches the per-contact stuck events a single sweep emits
// into one digest instead of one email per contact.
const defaultDebounce = 30 * time.Second

// Module wires event subscriptions to the email sender.
type Module struct {
	sender   email.Sender
	operator string
	log      *logger.Logger
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]email.StuckContact
	timer   *time.Timer
}

// NewModule builds the notification module. When email is disabled the
// sender is a no-op but subscriptions stay active so behavior is uniform.
func NewModule(cfg config.EmailConfig, log *logger.Logger) *Module {
	var sender email.Sender = email.NoopSender{}
	if cfg.GetEmailEnabled() {
		sender = email.NewSMTPSender(cfg)
	}
	return &Module{
		sender:   sender,
		operator: cfg.GetOperatorEmail(),
		log:      log,
		debounce: defaultDebounce,
		pending:  map[string]email.StuckContact{},
	}
}

// Register subscribes the module's handlers on the bus.
func (m *Module) Register(bus events.Bus) {
	bus.Subscribe(events.ContactStuck{}.EventName(), events.HandlerFunc(m.handleContactStuck))
	bus.Subscribe(events.SequenceCompleted{}.EventName(), events.HandlerFunc(m.handleSequenceCompleted))
}

func (m *Module) handleContactStuck(_ context.Context, event events.Event) error {
	stuck, ok := event.(events.ContactStuck)
	if !ok {
		return fmt.Errorf("unexpected event payload for %s", event.EventName())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.pending[stuck.ContactID.String()] = email.StuckContact{
		ContactName:  stuck.ContactName,
		CurrentDay:   stuck.CurrentDay,
		OverdueCount: stuck.OverdueCount,
		OldestDue:    stuck.OldestDue.Format("2006-01-02"),
	}

	if m.timer == nil {
		m.timer = time.AfterFunc(m.debounce, m.flushDigest)
	}
	return nil
}

func (m *Module) handleSequenceCompleted(ctx context.Context, event events.Event) error {
	completed, ok := event.(events.SequenceCompleted)
	if !ok {
		return fmt.Errorf("unexpected event payload for %s", event.EventName())
	}
	if m.operator == "" {
		return nil
	}
	return m.sender.SendSequenceCompletedEmail(ctx, m.operator, completed.ContactName, completed.TotalTouches)
}

func (m *Module) flushDigest() {
	m.mu.Lock()
	contacts := make([]email.StuckContact, 0, len(m.pending))
	for _, c := range m.pending {
		contacts = append(contacts, c)
	}
	m.pending = map[string]email.StuckContact{}
	m.timer = nil
	m.mu.Unlock()

	if len(contacts) == 0 || m.operator == "" {
		return
	}

	sort.Slice(contacts, func(i, j int) bool {
		if contacts[i].OldestDue != contacts[j].OldestDue {
			return contacts[i].OldestDue < contacts[j].OldestDue
		}
		return contacts[i].ContactName < contacts[j].ContactName
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := m.sender.SendStuckDigest(ctx, m.operator, contacts); err != nil {
		m.log.Error("stuck digest email failed", "error", err, "contacts", len(contacts))
	}
}

// Flush sends any buffered digest immediately. Tests and shutdown paths use
// this instead of waiting out the debounce window.
func (m *Module) Flush() {
	m.mu.Lock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.mu.Unlock()
	m.flushDigest()
}
