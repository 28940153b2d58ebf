package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/formforge/formforge/internal/errs"
	"github.com/formforge/formforge/internal/logger"
)

// SMTPSender delivers through a plain SMTP relay.
type SMTPSender struct {
	Addr string // host:port
	Auth smtp.Auth
}

func (s *SMTPSender) Send(_ context.Context, msg Message) error {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", msg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(msg.Body)

	if err := smtp.SendMail(s.Addr, s.Auth, msg.From, msg.To, []byte(b.String())); err != nil {
		return errs.Wrap(errs.ErrKindConnectionFailed, "smtp delivery failed", err)
	}
	return nil
}

// LogSender writes messages to the log instead of delivering them. It
// backs development setups and tests.
type LogSender struct {
	Log *logger.Logger
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.Log.With().
		Str("to", strings.Join(msg.To, ",")).
		Str("subject", msg.Subject).
		Logger().
		Info("email (not delivered)")
	return nil
}
