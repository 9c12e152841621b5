package notify

import (
	"context"
	"net"
	"net/smtp"

	"github.com/samber/oops"
)

// SMTPMailer sends codes by plain-text email over SMTP with PLAIN auth.
type SMTPMailer struct {
	Host string
	Port string
	User string
	Pass string
	From string
}

// NewSMTPMailer returns a mailer for the given SMTP account.
func NewSMTPMailer(host, port, user, pass, from string) *SMTPMailer {
	return &SMTPMailer{Host: host, Port: port, User: user, Pass: pass, From: from}
}

// Send emails the code to toEmail. The context deadline is honored up to the
// point the SMTP dial starts; net/smtp itself does not take a context, so the
// caller's timeout also bounds the surrounding request.
func (m *SMTPMailer) Send(ctx context.Context, toEmail, subject, code string) error {
	if m.Host == "" {
		return oops.Code("NOTIFY_FAILED").Errorf("smtp host not configured")
	}
	if err := ctx.Err(); err != nil {
		return oops.Code("NOTIFY_FAILED").Wrap(err)
	}

	addr := net.JoinHostPort(m.Host, m.Port)
	msg := []byte("From: " + m.From + "\r\n" +
		"To: " + toEmail + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"Content-Type: text/plain; charset=\"utf-8\"\r\n" +
		"\r\n" +
		"Please use this code: " + code + "\r\n")

	auth := smtp.PlainAuth("", m.User, m.Pass, m.Host)
	if err := smtp.SendMail(addr, auth, m.From, []string{toEmail}, msg); err != nil {
		return oops.Code("NOTIFY_FAILED").With("to", toEmail).Wrap(err)
	}
	return nil
}
