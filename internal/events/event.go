// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"github.com/grobenmarketing/7th-level-dialer-sub000/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Sequence Domain Events
// =============================================================================

// ContactEnteredSequence is published when a cold call puts a contact into
// the outreach sequence.
type ContactEnteredSequence struct {
	BaseEvent
	ContactID      uuid.UUID `json:"contactId"`
	ContactName    string    `json:"contactName"`
	StartDate      time.Time `json:"startDate"`
	TasksGenerated int       `json:"tasksGenerated"`
}

func (e ContactEnteredSequence) EventName() string { return "sequence.contact.entered" }

// TouchCompleted is published when a scheduled touch is marked done.
type TouchCompleted struct {
	BaseEvent
	ContactID   uuid.UUID `json:"contactId"`
	SequenceDay int       `json:"sequenceDay"`
	TaskType    string    `json:"taskType"`
	Synthesized bool      `json:"synthesized"`
}

func (e TouchCompleted) EventName() string { return "sequence.touch.completed" }

// TouchSkipped is published when a scheduled touch is skipped.
type TouchSkipped struct {
	BaseEvent
	ContactID   uuid.UUID `json:"contactId"`
	SequenceDay int       `json:"sequenceDay"`
	TaskType    string    `json:"taskType"`
	Reason      string    `json:"reason,omitempty"`
}

func (e TouchSkipped) EventName() string { return "sequence.touch.skipped" }

// ContactAdvanced is published when the current-day pointer moves forward.
type ContactAdvanced struct {
	BaseEvent
	ContactID uuid.UUID `json:"contactId"`
	FromDay   int       `json:"fromDay"`
	ToDay     int       `json:"toDay"`
}

func (e ContactAdvanced) EventName() string { return "sequence.contact.advanced" }

// SequenceCompleted is published when a contact resolves the final day.
type SequenceCompleted struct {
	BaseEvent
	ContactID    uuid.UUID `json:"contactId"`
	ContactName  string    `json:"contactName"`
	TotalTouches int       `json:"totalTouches"`
}

func (e SequenceCompleted) EventName() string { return "sequence.completed" }

// ContactMarkedDead is published on the dead terminal transition.
type ContactMarkedDead struct {
	BaseEvent
	ContactID   uuid.UUID `json:"contactId"`
	Reason      string    `json:"reason"`
	TasksPurged int       `json:"tasksPurged"`
}

func (e ContactMarkedDead) EventName() string { return "sequence.contact.marked_dead" }

// ContactConverted is published when a contact becomes a client.
type ContactConverted struct {
	BaseEvent
	ContactID   uuid.UUID `json:"contactId"`
	ContactName string    `json:"contactName"`
	TasksPurged int       `json:"tasksPurged"`
}

func (e ContactConverted) EventName() string { return "sequence.contact.converted" }

// ContactStuck is published by the automation sweep for contacts blocked on
// overdue work; dashboards and the digest email surface these.
type ContactStuck struct {
	BaseEvent
	ContactID    uuid.UUID `json:"contactId"`
	ContactName  string    `json:"contactName"`
	CurrentDay   int       `json:"currentDay"`
	OverdueCount int       `json:"overdueCount"`
	OldestDue    time.Time `json:"oldestDue"`
}

func (e ContactStuck) EventName() string { return "sequence.contact.stuck" }
