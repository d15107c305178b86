package payment

import "strings"

// Outcome is the internal classification of an upstream payment status.
type Outcome int

const (
	// OutcomePending covers statuses before the payment is final; no ledger effect.
	OutcomePending Outcome = iota
	// OutcomeSettled means the payment is final and the ledger effect applies.
	OutcomeSettled
	// OutcomePartial means the payer sent less than the invoiced amount.
	OutcomePartial
	// OutcomeTerminalFailed covers failed, expired and refunded payments.
	OutcomeTerminalFailed
	// OutcomeUnknown is any status string we do not recognize.
	OutcomeUnknown
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeSettled:
		return "settled"
	case OutcomePartial:
		return "partial"
	case OutcomeTerminalFailed:
		return "terminal_failed"
	default:
		return "unknown"
	}
}

// ClassifyStatus maps the provider lifecycle status to an internal outcome.
// It is stateless per call; repeated settled deliveries are made safe by the
// unique payment reference on the transaction table, not here.
func ClassifyStatus(status string) Outcome {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "waiting", "confirming", "sending":
		return OutcomePending
	case "finished", "confirmed":
		return OutcomeSettled
	case "partially_paid":
		return OutcomePartial
	case "failed", "expired", "refunded":
		return OutcomeTerminalFailed
	default:
		return OutcomeUnknown
	}
}
