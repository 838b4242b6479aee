package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

type Sender interface {
	Send(ctx context.Context, m Message) error
}

// SMTPSender sends email via unauthenticated SMTP (Mailpit-compatible).
type SMTPSender struct {
	addr string
	from string
}

func NewSMTPSender(host string, port string, from string) *SMTPSender {
	host = strings.TrimSpace(host)
	port = strings.TrimSpace(port)
	from = strings.TrimSpace(from)
	if from == "" {
		from = "no-reply@huddle.local"
	}
	return &SMTPSender{
		addr: fmt.Sprintf("%s:%s", host, port),
		from: from,
	}
}

func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := Build(s.from, m, time.Now())
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}
	return smtp.SendMail(s.addr, nil, s.from, []string{m.To}, raw)
}
