// Package domain provides core business rules for the outreach sequence
// bounded context: contacts, touch tasks and their closed status enums.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskType identifies the outreach channel of a scheduled touch.
type TaskType string

const (
	TaskCall            TaskType = "call"
	TaskEmail           TaskType = "email"
	TaskLinkedInDM      TaskType = "linkedin_dm"
	TaskLinkedInComment TaskType = "linkedin_comment"
	TaskSocialEngage    TaskType = "social_engage"
	TaskPhysicalMail    TaskType = "physical_mail"
)

var knownTaskTypes = map[TaskType]struct{}{
	TaskCall:            {},
	TaskEmail:           {},
	TaskLinkedInDM:      {},
	TaskLinkedInComment: {},
	TaskSocialEngage:    {},
	TaskPhysicalMail:    {},
}

// IsKnownTaskType reports whether t is one of the closed set of task types.
func IsKnownTaskType(t TaskType) bool {
	_, ok := knownTaskTypes[t]
	return ok
}

// TaskStatus is the lifecycle state of a touch task. Transitions are one-way:
// pending may become completed or skipped, terminal statuses never revert.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
	TaskSkipped   TaskStatus = "skipped"
)

// IsTerminal reports whether the status is completed or skipped.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskSkipped
}

// TaskKey is the natural key of a touch task. No two tasks may ever share
// the same key; violating this double-counts touches.
type TaskKey struct {
	ContactID   uuid.UUID `json:"contactId"`
	SequenceDay int       `json:"sequenceDay"`
	Type        TaskType  `json:"taskType"`
}

// Task is one scheduled outreach action tied to a sequence-day.
type Task struct {
	ID          uuid.UUID  `json:"id"`
	ContactID   uuid.UUID  `json:"contactId"`
	SequenceDay int        `json:"sequenceDay"`
	Type        TaskType   `json:"taskType"`
	Label       string     `json:"label"`
	DueDate     time.Time  `json:"dueDate"`
	Status      TaskStatus `json:"status"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	// Synthesized marks records created by the drift-repair path rather
	// than normal generation.
	Synthesized bool      `json:"synthesized,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Key returns the task's natural key.
func (t Task) Key() TaskKey {
	return TaskKey{ContactID: t.ContactID, SequenceDay: t.SequenceDay, Type: t.Type}
}

// IsPending reports whether the task still carries an open obligation.
func (t Task) IsPending() bool {
	return t.Status == TaskPending
}
