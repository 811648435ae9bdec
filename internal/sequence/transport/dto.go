// Package transport defines the request and response shapes of the
// sequence module's HTTP surface.
package transport

import (
	"time"

	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/domain"

	"github.com/google/uuid"
)

// CreateContactRequest registers a contact before any outreach happens.
type CreateContactRequest struct {
	FirstName      string `json:"firstName" validate:"required,min=1,max=100"`
	LastName       string `json:"lastName" validate:"required,min=1,max=100"`
	Company        string `json:"company,omitempty" validate:"max=200"`
	Phone          string `json:"phone,omitempty" validate:"max=32"`
	Email          string `json:"email,omitempty" validate:"omitempty,email"`
	HasEmail       bool   `json:"hasEmail"`
	HasLinkedIn    bool   `json:"hasLinkedIn"`
	HasSocialMedia bool   `json:"hasSocialMedia"`
}

// TaskActionRequest resolves one touch from the checklist.
type TaskActionRequest struct {
	Day           int    `json:"day" validate:"required,min=1,max=30"`
	TaskType      string `json:"taskType" validate:"required,oneof=call email linkedin_dm linkedin_comment social_engage physical_mail"`
	Action        string `json:"action" validate:"required,oneof=complete skip"`
	Notes         string `json:"notes,omitempty" validate:"max=2000"`
	LeftVoicemail bool   `json:"leftVoicemail,omitempty"`
}

// MarkDeadRequest records why a contact left the sequence.
type MarkDeadRequest struct {
	Reason string `json:"reason" validate:"required,min=1,max=500"`
}

// ListTasksRequest selects the visibility mode for the task checklist.
type ListTasksRequest struct {
	Mode string `form:"mode" validate:"omitempty,oneof=today all"`
}

// ContactResponse is the sequence-relevant view of a contact.
type ContactResponse struct {
	ID                 uuid.UUID  `json:"id"`
	Name               string     `json:"name"`
	Company            string     `json:"company,omitempty"`
	Phone              string     `json:"phone,omitempty"`
	Email              string     `json:"email,omitempty"`
	SequenceStatus     string     `json:"sequenceStatus"`
	SequenceCurrentDay int        `json:"sequenceCurrentDay"`
	SequenceStartDate  *time.Time `json:"sequenceStartDate,omitempty"`
	HasEmail           bool       `json:"hasEmail"`
	HasLinkedIn        bool       `json:"hasLinkedIn"`
	HasSocialMedia     bool       `json:"hasSocialMedia"`

	CallsMade            int  `json:"callsMade"`
	VoicemailsLeft       int  `json:"voicemailsLeft"`
	EmailsSent           int  `json:"emailsSent"`
	LinkedInDMsSent      int  `json:"linkedinDmsSent"`
	LinkedInCommentsMade int  `json:"linkedinCommentsMade"`
	SocialReactions      int  `json:"socialReactions"`
	SocialComments       int  `json:"socialComments"`
	PhysicalMailSent     bool `json:"physicalMailSent"`
	TotalImpressions     int  `json:"totalImpressions"`

	DeadReason    string     `json:"deadReason,omitempty"`
	ConvertedDate *time.Time `json:"convertedDate,omitempty"`
}

// ToContactResponse maps a domain contact to its response shape.
func ToContactResponse(c domain.Contact) ContactResponse {
	return ContactResponse{
		ID:                 c.ID,
		Name:               c.FullName(),
		Company:            c.Company,
		Phone:              c.Phone,
		Email:              c.Email,
		SequenceStatus:     string(c.SequenceStatus),
		SequenceCurrentDay: c.SequenceCurrentDay,
		SequenceStartDate:  c.SequenceStartDate,
		HasEmail:           c.HasEmail,
		HasLinkedIn:        c.HasLinkedIn,
		HasSocialMedia:     c.HasSocialMedia,

		CallsMade:            c.CallsMade,
		VoicemailsLeft:       c.VoicemailsLeft,
		EmailsSent:           c.EmailsSent,
		LinkedInDMsSent:      c.LinkedInDMsSent,
		LinkedInCommentsMade: c.LinkedInCommentsMade,
		SocialReactions:      c.SocialReactions,
		SocialComments:       c.SocialComments,
		PhysicalMailSent:     c.PhysicalMailSent,
		TotalImpressions:     c.TotalImpressions(),

		DeadReason:    c.DeadReason,
		ConvertedDate: c.ConvertedDate,
	}
}

// TaskResponse is one checklist entry.
type TaskResponse struct {
	ID          uuid.UUID  `json:"id"`
	ContactID   uuid.UUID  `json:"contactId"`
	SequenceDay int        `json:"sequenceDay"`
	TaskType    string     `json:"taskType"`
	Label       string     `json:"label"`
	DueDate     string     `json:"dueDate"`
	Status      string     `json:"status"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

// ToTaskResponse maps a domain task to its response shape.
func ToTaskResponse(t domain.Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		ContactID:   t.ContactID,
		SequenceDay: t.SequenceDay,
		TaskType:    string(t.Type),
		Label:       t.Label,
		DueDate:     t.DueDate.Format("2006-01-02"),
		Status:      string(t.Status),
		CompletedAt: t.CompletedAt,
		Notes:       t.Notes,
	}
}

// ToTaskResponses maps a task slice.
func ToTaskResponses(tasks []domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, ToTaskResponse(t))
	}
	return out
}

// RepairResponse reports what an administrative repair changed so the
// operator can verify it.
type RepairResponse struct {
	TasksRemoved int `json:"tasksRemoved,omitempty"`
	TasksAdded   int `json:"tasksAdded,omitempty"`
}
