package email

import (
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"

	"github.com/grobenmarketing/7th-level-dialer-sub000/platform/config"
)

// SMTPSender implements the Sender interface using a direct SMTP connection
// via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender creates an SMTPSender from the email configuration.
func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
	}
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

func (s *SMTPSender) SendStuckDigest(ctx context.Context, toEmail string, contacts []StuckContact) error {
	subject := fmt.Sprintf(subjectStuckDigestFmt, len(contacts))
	content, err := renderEmailTemplate("stuck_digest.html", stuckDigestEmailData{
		baseEmailData: baseEmailData{
			Title:   "Contacts need attention",
			Heading: "Contacts need attention",
		},
		Contacts: contacts,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content)
}

func (s *SMTPSender) SendSequenceCompletedEmail(ctx context.Context, toEmail, contactName string, totalTouches int) error {
	subject := fmt.Sprintf(subjectSequenceCompletedFmt, contactName)
	content, err := renderEmailTemplate("sequence_completed.html", sequenceCompletedEmailData{
		baseEmailData: baseEmailData{
			Title:   "Sequence finished",
			Heading: "Sequence finished",
		},
		ContactName:  contactName,
		TotalTouches: totalTouches,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content)
}
