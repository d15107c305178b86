package payment

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// IntentKind distinguishes the two kinds of order an inbound payment can settle.
type IntentKind string

const (
	IntentDeposit      IntentKind = "deposit"
	IntentSubscription IntentKind = "subscription"
)

// OrderIntent is the structured meaning extracted from an opaque order id.
type OrderIntent struct {
	Kind         IntentKind
	AccountEmail string
	Plan         string
	BillingCycle string
}

// FlexID accepts a JSON number or string; the provider has sent payment ids
// both ways over time.
type FlexID string

func (f *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexID(n.String())
	return nil
}

func (f FlexID) String() string { return string(f) }

// WebhookNotification is the provider IPN body. Amounts are decimal in the
// wire format and converted to minor units before any ledger math.
type WebhookNotification struct {
	PaymentID     FlexID  `json:"payment_id"`
	PaymentStatus string  `json:"payment_status"`
	OrderID       string  `json:"order_id"`
	PriceAmount   float64 `json:"price_amount"`
	PriceCurrency string  `json:"price_currency"`
	PayAmount     float64 `json:"pay_amount"`
	PayCurrency   string  `json:"pay_currency"`
	ActuallyPaid  float64 `json:"actually_paid"`
}

// ApplyResult reports whether a settled event changed the ledger.
// ResultNone accompanies a non-nil error and carries no meaning.
type ApplyResult int

const (
	ResultNone ApplyResult = iota
	ResultApplied
	ResultAlreadyApplied
)

// ToCents converts a decimal currency amount to minor units.
func ToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// FormatCents renders minor units as a decimal string for logs and messages.
func FormatCents(cents int64) string {
	return strconv.FormatFloat(float64(cents)/100, 'f', 2, 64)
}
