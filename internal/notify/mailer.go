package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"log/slog"

	"approval-ledger/internal/config"
	"approval-ledger/internal/ledger"
	"approval-ledger/internal/model"

	mail "github.com/go-mail/mail/v2"
)

// Sender delivers a composed message.
type Sender interface {
	DialAndSend(m ...*mail.Message) error
}

// Mailer emails the requester when their document reaches a decisive status.
type Mailer struct {
	sender Sender
	from   string
	send   func(func())
}

// NewMailer dials SMTP with mandatory STARTTLS.
func NewMailer(cfg config.SMTPConfig) *Mailer {
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{ServerName: cfg.Host}
	return NewMailerWithSender(d, cfg.From)
}

// NewMailerWithSender sends synchronously through s.
func NewMailerWithSender(s Sender, from string) *Mailer {
	return &Mailer{sender: s, from: from, send: func(fn func()) { fn() }}
}

// Async makes DocumentChanged return before the SMTP round trip.
func (m *Mailer) Async() *Mailer {
	m.send = func(fn func()) { go fn() }
	return m
}

var notifiedStatuses = map[model.Status]string{
	model.StatusApproved: "approved",
	model.StatusReceived: "received",
	model.StatusReject:   "rejected",
	model.StatusClose:    "closed",
}

// DocumentChanged implements ledger.Listener.
func (m *Mailer) DocumentChanged(_ context.Context, ev ledger.Event) {
	msg := m.Compose(ev)
	if msg == nil {
		return
	}
	id := ev.Document.ID
	m.send(func() {
		if err := m.sender.DialAndSend(msg); err != nil {
			slog.Error("failed to send status mail", "document", id, "error", err)
			return
		}
		slog.Info("status mail sent", "document", id, "to", ev.Document.RequesterEmail)
	})
}

// Compose builds the notification for ev, or nil when none is due.
func (m *Mailer) Compose(ev ledger.Event) *mail.Message {
	if ev.Kind != ledger.EventTransitioned || ev.Document.RequesterEmail == "" {
		return nil
	}
	verb, ok := notifiedStatuses[ev.Document.Status]
	if !ok {
		return nil
	}
	doc := ev.Document
	ref := doc.PurchaseRequestNo
	if ref == "" {
		ref = doc.ID
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", doc.RequesterEmail)
	msg.SetHeader("Subject", fmt.Sprintf("Request %s was %s", ref, verb))
	msg.SetBody("text/html", statusBody(doc, verb, ev.Actor))
	return msg
}

func statusBody(doc model.Document, verb, actor string) string {
	by := ""
	if actor != "" {
		by = " by " + html.EscapeString(actor)
	}
	return fmt.Sprintf(
		"<p>Hello %s,</p><p>Your request <b>%s</b> (%s) was %s%s.</p><p>Status: %s<br>Total: %s</p>",
		html.EscapeString(doc.RequesterName),
		html.EscapeString(doc.PurchaseRequestNo),
		html.EscapeString(doc.DepartmentName),
		verb, by,
		doc.Status,
		doc.Total().StringFixed(2),
	)
}
