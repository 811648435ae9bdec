package domain

import (
	"time"

	"github.com/google/uuid"
)

// SequenceStatus is the contact's position in the outreach lifecycle.
type SequenceStatus string

const (
	StatusNeverContacted SequenceStatus = "never_contacted"
	StatusActive         SequenceStatus = "active"
	StatusPaused         SequenceStatus = "paused"
	StatusCompleted      SequenceStatus = "completed"
	StatusDead           SequenceStatus = "dead"
	StatusConverted      SequenceStatus = "converted"
)

// IsTerminal reports whether the status is absorbing: once dead or
// converted, all tasks are purged and no further generation occurs.
func (s SequenceStatus) IsTerminal() bool {
	return s == StatusDead || s == StatusConverted
}

// InSequence reports whether the contact currently holds a sequence slot.
func (s SequenceStatus) InSequence() bool {
	return s == StatusActive || s == StatusPaused
}

var knownSequenceStatuses = map[SequenceStatus]struct{}{
	StatusNeverContacted: {},
	StatusActive:         {},
	StatusPaused:         {},
	StatusCompleted:      {},
	StatusDead:           {},
	StatusConverted:      {},
}

// IsKnownSequenceStatus reports whether s is one of the closed status set.
func IsKnownSequenceStatus(s SequenceStatus) bool {
	_, ok := knownSequenceStatuses[s]
	return ok
}

// ChannelFlags control which touch types apply to a contact.
type ChannelFlags struct {
	HasEmail       bool `json:"hasEmail"`
	HasLinkedIn    bool `json:"hasLinkedIn"`
	HasSocialMedia bool `json:"hasSocialMedia"`
}

// TouchCounters track touches made per channel. They are incremented as a
// side effect of task completion, never computed by the scheduler directly.
type TouchCounters struct {
	CallsMade            int  `json:"callsMade"`
	VoicemailsLeft       int  `json:"voicemailsLeft"`
	EmailsSent           int  `json:"emailsSent"`
	LinkedInDMsSent      int  `json:"linkedinDmsSent"`
	LinkedInCommentsMade int  `json:"linkedinCommentsMade"`
	SocialReactions      int  `json:"socialReactions"`
	SocialComments       int  `json:"socialComments"`
	PhysicalMailSent     bool `json:"physicalMailSent"`
}

// ApplyTouch increments the counters associated with a completed touch.
// Social tasks count both a reaction and a comment; physical mail is a
// one-time flag. leftVoicemail only applies to call touches.
func (c *TouchCounters) ApplyTouch(t TaskType, leftVoicemail bool) {
	switch t {
	case TaskCall:
		c.CallsMade++
		if leftVoicemail {
			c.VoicemailsLeft++
		}
	case TaskEmail:
		c.EmailsSent++
	case TaskLinkedInDM:
		c.LinkedInDMsSent++
	case TaskLinkedInComment:
		c.LinkedInCommentsMade++
	case TaskSocialEngage:
		c.SocialReactions++
		c.SocialComments++
	case TaskPhysicalMail:
		c.PhysicalMailSent = true
	}
}

// TotalImpressions sums how many times the prospect has seen an outreach
// action. Voicemails ride along with their call and are not counted twice.
func (c TouchCounters) TotalImpressions() int {
	total := c.CallsMade + c.EmailsSent + c.LinkedInDMsSent +
		c.LinkedInCommentsMade + c.SocialReactions + c.SocialComments
	if c.PhysicalMailSent {
		total++
	}
	return total
}

// Contact is the subset of the CRM contact relevant to sequence scheduling.
type Contact struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Company   string    `json:"company,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`

	SequenceStatus     SequenceStatus `json:"sequenceStatus"`
	SequenceCurrentDay int            `json:"sequenceCurrentDay"`
	SequenceStartDate  *time.Time     `json:"sequenceStartDate,omitempty"`

	ChannelFlags
	TouchCounters

	DeadReason    string     `json:"deadReason,omitempty"`
	ConvertedDate *time.Time `json:"convertedDate,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FullName returns the contact's display name.
func (c Contact) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	default:
		return c.FirstName + " " + c.LastName
	}
}
