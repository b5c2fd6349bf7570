package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
)

// EmailSender delivers rendered notification emails. Delivery is
// best-effort: the ledger has already committed by the time Send runs.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPSender sends mail through a plain SMTP relay
type SMTPSender struct {
	Addr     string // host:port
	From     string
	FromName string
	Username string
	Password string
	Host     string
}

// Send delivers one message via SMTP
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	msg := fmt.Sprintf("From: %s <%s>\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s\r\n",
		s.FromName, s.From, to, subject, body)

	var auth smtp.Auth
	if s.Username != "" {
		auth = smtp.PlainAuth("", s.Username, s.Password, s.Host)
	}
	if err := smtp.SendMail(s.Addr, auth, s.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}

// LogSender is the dev-mode sender: it logs instead of delivering
type LogSender struct {
	Logger *slog.Logger
}

// Send records the message in the log
func (s *LogSender) Send(ctx context.Context, to, subject, body string) error {
	s.Logger.Info("email notification (log sender)", "to", to, "subject", subject)
	return nil
}
