package constants

// Static route constants
const (
	APIRoute = "/api"

	PaymentWebhookRoute      = "/payment/webhook"
	PaymentStatsRoute        = "/payment/stats"
	BillingTransactionsRoute = "/billing/transactions"
)
