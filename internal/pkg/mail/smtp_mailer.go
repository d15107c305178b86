package mail

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"github.com/RobertHaas/AdDesk/internal/pkg/config"
	"github.com/RobertHaas/AdDesk/internal/pkg/notify"
)

// Mailer delivers confirmation messages as HTML emails over SMTP. It
// satisfies the notification queue's Sender interface.
type Mailer struct {
	host     string
	port     string
	username string
	password string
	sender   string
}

func NewMailer(cfg config.Config) *Mailer {
	sender := cfg.SMTPSender
	if sender == "" {
		sender = fmt.Sprintf("no-reply@%s", "localhost")
		log.Printf("SMTP_SENDER not set, using default sender: %s", sender)
	}

	return &Mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		sender:   sender,
	}
}

func (m *Mailer) Send(_ context.Context, msg notify.Message) error {
	subject, body := m.buildMessage(msg)

	var auth smtp.Auth
	if m.username != "" && m.password != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	addr := fmt.Sprintf("%s:%s", m.host, m.port)

	raw := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", m.sender, msg.To, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			body,
	)

	err := smtp.SendMail(addr, auth, m.sender, []string{msg.To}, raw)
	if err != nil {
		log.Printf("SMTP send error: %v", err)
	} else {
		log.Printf("Email sent to %s via %s", msg.To, addr)
	}
	return err
}

// buildMessage renders the subject and HTML body for a confirmation kind.
// Unknown kinds get a generic account-update mail rather than failing.
func (m *Mailer) buildMessage(msg notify.Message) (string, string) {
	switch msg.Type {
	case "deposit_confirmed":
		subject := "Your deposit has been credited"
		body := fmt.Sprintf(
			"<p>Your payment was confirmed and <strong>%s %s</strong> has been credited to your advertising balance.</p>",
			msg.Data["amount"], strings.ToUpper(msg.Data["currency"]))
		return subject, body

	case "subscription_activated":
		subject := "Your subscription is active"
		body := fmt.Sprintf(
			"<p>Your <strong>%s</strong> subscription (billed %s) is now active.</p>",
			msg.Data["plan"], msg.Data["billing_cycle"])
		return subject, body
	}

	return "Account update", "<p>There is an update on your account.</p>"
}
