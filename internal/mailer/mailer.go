// Package mailer sends order emails: invoices with a PDF attachment and
// status updates.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/bizconnect/marketplace/internal/orders"
)

// Recipient is who an email goes to. An empty Email skips the send.
type Recipient struct {
	Name  string
	Email string
}

type Mailer interface {
	SendInvoice(ctx context.Context, to Recipient, o orders.Order) error
	SendOrderUpdate(ctx context.Context, to Recipient, o orders.Order, st orders.Status) error
}

// Sender delivers composed messages; *gomail.Dialer satisfies it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

var ErrNoAddress = errors.New("recipient has no email address")

type SMTP struct {
	Sender  Sender
	From    string
	SiteURL string
	Log     *zap.SugaredLogger
}

func NewSMTP(host string, port int, user, password, from, siteURL string, log *zap.SugaredLogger) *SMTP {
	return &SMTP{
		Sender:  gomail.NewDialer(host, port, user, password),
		From:    from,
		SiteURL: siteURL,
		Log:     log,
	}
}

func (m *SMTP) SendInvoice(ctx context.Context, to Recipient, o orders.Order) error {
	if to.Email == "" {
		return ErrNoAddress
	}
	pdf, err := InvoicePDF(to, o)
	if err != nil {
		return err
	}
	msg := m.message(to, fmt.Sprintf("BizConnect Invoice — Order %s", o.Number))
	msg.SetBody("text/plain", fmt.Sprintf(
		"Hi %s,\n\nThank you for your order %s.\nTotal: %s\n\n— BizConnect Team", to.Name, o.Number, Peso(o.Total)))
	msg.Attach(InvoiceFilename(o), gomail.SetCopyFunc(func(w io.Writer) error {
		_, err := w.Write(pdf)
		return err
	}), gomail.SetHeader(map[string][]string{"Content-Type": {"application/pdf"}}))
	return m.send(ctx, msg)
}

func (m *SMTP) SendOrderUpdate(ctx context.Context, to Recipient, o orders.Order, st orders.Status) error {
	if to.Email == "" {
		return ErrNoAddress
	}
	text, html, err := renderUpdate(updateData{
		Name:     to.Name,
		Number:   o.Number,
		Status:   st.Label(),
		Total:    Peso(o.Total),
		TrackURL: fmt.Sprintf("%s/shop/order/%s/", m.SiteURL, o.ID),
	})
	if err != nil {
		return err
	}
	msg := m.message(to, UpdateSubject(o, st))
	msg.SetBody("text/plain", text)
	msg.AddAlternative("text/html", html)
	return m.send(ctx, msg)
}

func UpdateSubject(o orders.Order, st orders.Status) string {
	return fmt.Sprintf("BizConnect — Order %s is now %s", o.Number, st.Label())
}

func InvoiceFilename(o orders.Order) string {
	return fmt.Sprintf("invoice_%s.pdf", o.Number)
}

func (m *SMTP) message(to Recipient, subject string) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.From)
	msg.SetAddressHeader("To", to.Email, to.Name)
	msg.SetHeader("Subject", subject)
	return msg
}

func (m *SMTP) send(ctx context.Context, msg *gomail.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.Sender.DialAndSend(msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// Noop is used when SMTP is not configured.
type Noop struct {
	Log *zap.SugaredLogger
}

func (n Noop) SendInvoice(_ context.Context, to Recipient, o orders.Order) error {
	if n.Log != nil {
		n.Log.Debugw("mail disabled, invoice skipped", "order_id", o.ID, "to", to.Email)
	}
	return nil
}

func (n Noop) SendOrderUpdate(_ context.Context, to Recipient, o orders.Order, st orders.Status) error {
	if n.Log != nil {
		n.Log.Debugw("mail disabled, update skipped", "order_id", o.ID, "status", st, "to", to.Email)
	}
	return nil
}
