// Package mailer composes and sends the two emails a submission can
// trigger: a response to the person who submitted, and a notification
// copy to the form's configured addresses.
package mailer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/formforge/formforge/internal/logger"
	"github.com/formforge/formforge/internal/schema"
)

// Message is one outbound email.
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// Sender delivers messages. Implementations must be safe for concurrent
// use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Item is one "label: value" line of a submission summary.
type Item struct {
	Label string
	Value string
}

// Config controls the mailer's behavior.
type Config struct {
	// From is the fallback sender address when a form has none configured.
	From string

	// FailSilently downgrades delivery errors to log warnings so a broken
	// mail server never loses a submission.
	FailSilently bool
}

// Mailer sends submission emails through a Sender.
type Mailer struct {
	sender Sender
	cfg    Config
	log    *logger.Logger
}

// New returns a Mailer delivering through sender.
func New(sender Sender, cfg Config, log *logger.Logger) *Mailer {
	return &Mailer{sender: sender, cfg: cfg, log: log}
}

// SendForEntry sends the emails configured on form for one submission:
// the response email to recipient (when the form collected an address)
// and the notification summary to the form's copy list. With
// FailSilently set, delivery errors are logged and swallowed.
func (m *Mailer) SendForEntry(ctx context.Context, form *schema.Form, recipient string, items []Item, entryTime time.Time) error {
	if !form.SendEmail {
		return nil
	}

	subject := form.EmailSubject
	if subject == "" {
		subject = fmt.Sprintf("%s - %s", form.Title, entryTime.Format("2006-01-02 15:04:05"))
	}
	from := form.EmailFrom
	if from == "" {
		from = m.cfg.From
	}

	if recipient != "" {
		msg := Message{
			From:    from,
			To:      []string{recipient},
			Subject: subject,
			Body:    responseBody(form),
		}
		if err := m.send(ctx, msg); err != nil {
			return err
		}
	}

	if copies := form.EmailCopyList(); len(copies) > 0 {
		msg := Message{
			From:    from,
			To:      copies,
			Subject: subject,
			Body:    summaryBody(form, items),
		}
		if err := m.send(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (m *Mailer) send(ctx context.Context, msg Message) error {
	err := m.sender.Send(ctx, msg)
	if err == nil {
		return nil
	}
	if m.cfg.FailSilently {
		m.log.ErrorWith("email delivery failed", err, map[string]any{"to": strings.Join(msg.To, ",")})
		return nil
	}
	return err
}

// responseBody is what the submitting user receives: the configured
// message, falling back to the form's response text.
func responseBody(form *schema.Form) string {
	if form.EmailMessage != "" {
		return form.EmailMessage
	}
	return form.Response
}

// summaryBody lists the submitted values one per line, prefixed with the
// configured message when there is one.
func summaryBody(form *schema.Form, items []Item) string {
	var b strings.Builder
	if form.EmailMessage != "" {
		b.WriteString(form.EmailMessage)
		b.WriteString("\n\n")
	}
	for _, it := range items {
		b.WriteString(it.Label)
		b.WriteString(": ")
		b.WriteString(it.Value)
		b.WriteString("\n")
	}
	return b.String()
}
