// Package email delivers operator notifications about running sequences.
package email

import "context"

// StuckContact is one row in the overdue digest.
type StuckContact struct {
	ContactName  string
	CurrentDay   int
	OverdueCount int
	OldestDue    string
}

// Sender delivers operator-facing notification emails.
type Sender interface {
	SendStuckDigest(ctx context.Context, toEmail string, contacts []StuckContact) error
	SendSequenceCompletedEmail(ctx context.Context, toEmail, contactName string, totalTouches int) error
}

// NoopSender discards all email. Used when EMAIL_ENABLED is false so the
// notification module can stay wired without SMTP credentials.
type NoopSender struct{}

func (NoopSender) SendStuckDigest(context.Context, string, []StuckContact) error {
	return nil
}

func (NoopSender) SendSequenceCompletedEmail(context.Context, string, string, int) error {
	return nil
}
