package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"html"

	"gopkg.in/gomail.v2"

	"github.com/vrrprepo/rprepo/pkg/rprepo/config"
)

// Message is an HTML email
type Message struct {
	To      []string
	Subject string
	HTML    string
}

// Mailer delivers email
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New returns an SMTP mailer, or a no-op mailer when no host is configured
func New(cfg config.MailConfig) Mailer {
	if cfg.Host == "" {
		return Nop{}
	}
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: cfg.Host}
	return &SMTP{dialer: d, from: cfg.From}
}

// SMTP sends mail through one SMTP server, dialing per message
type SMTP struct {
	dialer *gomail.Dialer
	from   string
}

func (s *SMTP) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send %q: %w", msg.Subject, err)
	}
	return nil
}

// Nop drops every message
type Nop struct{}

func (Nop) Send(context.Context, Message) error { return nil }

// OwnershipRequestMessage tells admins that userName asked to own a project
func OwnershipRequestMessage(to []string, projectID uint, projectName, userName string) Message {
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Ownership request for %s", projectName),
		HTML: fmt.Sprintf(`<p><b>%s</b> requested ownership of <b>%s</b> (project #%d).</p><p>Approve or reject the request from the admin panel.</p>`,
			html.EscapeString(userName), html.EscapeString(projectName), projectID),
	}
}
