package notify

import (
	"fmt"
	"net"
	"net/smtp"
	"strings"
)

// SMTPSender delivers messages over a plain SMTP endpoint. One connection is
// dialed per send; there is no pooling because the job attempts at most one
// notification per run.
type SMTPSender struct {
	Addr string // host or host:port; port defaults to 25
}

func NewSMTPSender(addr string) *SMTPSender {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "25")
	}
	return &SMTPSender{Addr: addr}
}

// Send builds an RFC 5322 message with an HTML body and submits it.
func (s *SMTPSender) Send(msg Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("notify: no recipients")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", msg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTMLBody)

	if err := smtp.SendMail(s.Addr, nil, msg.From, msg.To, []byte(b.String())); err != nil {
		return fmt.Errorf("notify: send mail via %s: %w", s.Addr, err)
	}
	return nil
}
