package mail

import (
	"strings"
	"testing"

	"github.com/RobertHaas/AdDesk/internal/pkg/config"
	"github.com/RobertHaas/AdDesk/internal/pkg/notify"
	"github.com/stretchr/testify/assert"
)

func TestBuildMessage(t *testing.T) {
	m := NewMailer(config.Config{SMTPHost: "mail.example.com", SMTPPort: "587", SMTPSender: "billing@example.com"})

	subject, body := m.buildMessage(notify.Message{
		To:   "alice@example.com",
		Type: "deposit_confirmed",
		Data: map[string]string{"amount": "80.00", "currency": "usd"},
	})
	assert.Equal(t, "Your deposit has been credited", subject)
	assert.Contains(t, body, "80.00 USD")

	subject, body = m.buildMessage(notify.Message{
		Type: "subscription_activated",
		Data: map[string]string{"plan": "pro", "billing_cycle": "yearly"},
	})
	assert.Equal(t, "Your subscription is active", subject)
	assert.Contains(t, body, "pro")
	assert.Contains(t, body, "yearly")

	subject, body = m.buildMessage(notify.Message{Type: "something_new"})
	assert.Equal(t, "Account update", subject)
	assert.True(t, strings.HasPrefix(body, "<p>"))
}

func TestNewMailerDefaultSender(t *testing.T) {
	m := NewMailer(config.Config{SMTPHost: "mail.example.com"})
	assert.Equal(t, "no-reply@localhost", m.sender)
}
