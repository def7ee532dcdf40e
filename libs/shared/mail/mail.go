package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gomail "gopkg.in/gomail.v2"
)

// Message is a plain-text email.
type Message struct {
	Subject string
	Body    string
	From    string
	To      []string
}

// Sender delivers messages through an outbound mail transport.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender sends mail through an SMTP relay.
type SMTPSender struct {
	Host string
	Port int
	User string
	Pass string
}

// NewSMTPSender validates the relay settings.
func NewSMTPSender(host string, port int, user, pass string) (*SMTPSender, error) {
	missing := []string{}
	if strings.TrimSpace(host) == "" {
		missing = append(missing, "SMTP_HOST")
	}
	if port <= 0 {
		missing = append(missing, "SMTP_PORT")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing SMTP env: %s", strings.Join(missing, ", "))
	}
	return &SMTPSender{Host: host, Port: port, User: user, Pass: pass}, nil
}

// Send dials the relay and delivers msg. The context only guards the start of
// the call; gomail has no cancellation hook.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m, err := build(msg)
	if err != nil {
		return err
	}
	d := gomail.NewDialer(s.Host, s.Port, s.User, s.Pass)
	return d.DialAndSend(m)
}

func build(msg Message) (*gomail.Message, error) {
	if strings.TrimSpace(msg.From) == "" {
		return nil, errors.New("mail: from address is required")
	}
	if len(msg.To) == 0 {
		return nil, errors.New("mail: at least one recipient is required")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", msg.From)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)
	return m, nil
}
