package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/RobertHaas/AdDesk/internal/pkg/env"
)

const (
	defaultCommissionRate  = 0.20
	defaultProviderAPIBase = "https://api.nowpayments.io/v1"
	defaultProviderTimeout = 10 * time.Second
	defaultNotifyTimeout   = 10 * time.Second
)

// Config carries the payment pipeline settings. It is built once at process
// start and handed to the verifier, reconciliation service and dispatcher so
// none of them reads the environment on their own.
type Config struct {
	// WebhookSecret is the shared IPN secret. An empty value means webhook
	// verification fails closed for every request.
	WebhookSecret string

	// CommissionRate is the fraction of a gross deposit retained as service
	// fee before the net amount is credited.
	CommissionRate float64

	ProviderAPIBase string
	ProviderAPIKey  string
	ProviderTimeout time.Duration

	// NotifyBaseURL is the base URL of the outbound confirmation channel.
	NotifyBaseURL string
	NotifyTimeout time.Duration

	// SMTP settings for confirmation emails. An empty host disables the
	// mailer and confirmations go out over the HTTP channel instead.
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPSender   string

	// DashboardAPIKey protects the billing read endpoints. Empty means the
	// endpoints reject every request.
	DashboardAPIKey string
}

// Load builds a Config from the process environment.
func Load() Config {
	return Config{
		WebhookSecret:   strings.TrimSpace(env.GetEnv("PAYMENT_WEBHOOK_SECRET", "")),
		CommissionRate:  parseRate(env.GetEnv("PAYMENT_COMMISSION_RATE", "")),
		ProviderAPIBase: strings.TrimRight(env.GetEnv("PAYMENT_API_BASE_URL", defaultProviderAPIBase), "/"),
		ProviderAPIKey:  strings.TrimSpace(env.GetEnv("PAYMENT_API_KEY", "")),
		ProviderTimeout: defaultProviderTimeout,
		NotifyBaseURL:   strings.TrimRight(env.GetEnv("NOTIFY_BASE_URL", ""), "/"),
		NotifyTimeout:   defaultNotifyTimeout,
		SMTPHost:        strings.TrimSpace(env.GetEnv("SMTP_HOST", "")),
		SMTPPort:        strings.TrimSpace(env.GetEnv("SMTP_PORT", "587")),
		SMTPUsername:    env.GetEnv("SMTP_USERNAME", ""),
		SMTPPassword:    env.GetEnv("SMTP_PASSWORD", ""),
		SMTPSender:      strings.TrimSpace(env.GetEnv("SMTP_SENDER", "")),
		DashboardAPIKey: strings.TrimSpace(env.GetEnv("DASHBOARD_API_KEY", "")),
	}
}

func parseRate(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultCommissionRate
	}
	rate, err := strconv.ParseFloat(raw, 64)
	if err != nil || rate < 0 || rate > 1 {
		return defaultCommissionRate
	}
	return rate
}
