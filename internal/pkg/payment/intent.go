package payment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
)

var (
	// ErrUnrecognizedOrderID marks order ids that match no known encoding.
	ErrUnrecognizedOrderID = errors.New("unrecognized order id format")
	// ErrNoAccountEmail marks orders whose account cannot be resolved at all.
	ErrNoAccountEmail = errors.New("order resolves to no account email")
)

const (
	defaultPlan  = "pro"
	defaultCycle = "monthly"
)

// ParseOrderIntent decodes an order id into a structured intent. Two
// generations of encoding are in the wild and must both resolve:
//
//	DEP-{suffix}                        current deposit, email out-of-band
//	DEPOSIT_{email}_{timestamp}         legacy deposit
//	SUB-{PLAN}-{CYCLE}-{suffix}         current subscription
//	SUB_{email}_{plan}_{cycle}_{ts}     legacy subscription
//
// providerEmail is the email attested by the payment provider's own record
// of the transaction. It outranks any email embedded in the order id; the
// embedded email is a fallback for when the provider lookup degraded.
func ParseOrderIntent(orderID, providerEmail string) (*OrderIntent, error) {
	id := strings.TrimSpace(orderID)
	providerEmail = strings.ToLower(strings.TrimSpace(providerEmail))

	switch {
	case strings.HasPrefix(id, "DEP-"):
		if providerEmail == "" {
			return nil, fmt.Errorf("%w: %s", ErrNoAccountEmail, id)
		}
		return &OrderIntent{Kind: IntentDeposit, AccountEmail: providerEmail}, nil

	case strings.HasPrefix(id, "DEPOSIT_"):
		parts := strings.Split(id, "_")
		if len(parts) < 3 {
			return nil, fmt.Errorf("%w: %s", ErrUnrecognizedOrderID, id)
		}
		// Email local parts historically contained underscores; everything
		// between the prefix and the trailing timestamp belongs to the email.
		embedded := strings.ToLower(strings.Join(parts[1:len(parts)-1], "_"))
		email := pickEmail(providerEmail, embedded, id)
		if email == "" {
			return nil, fmt.Errorf("%w: %s", ErrNoAccountEmail, id)
		}
		return &OrderIntent{Kind: IntentDeposit, AccountEmail: email}, nil

	case strings.HasPrefix(id, "SUB-"):
		parts := strings.Split(id, "-")
		plan, cycle := defaultPlan, defaultCycle
		if len(parts) > 1 && strings.TrimSpace(parts[1]) != "" {
			plan = strings.ToLower(strings.TrimSpace(parts[1]))
		}
		if len(parts) > 2 && strings.TrimSpace(parts[2]) != "" {
			cycle = normalizeCycle(parts[2])
		}
		if providerEmail == "" {
			return nil, fmt.Errorf("%w: %s", ErrNoAccountEmail, id)
		}
		return &OrderIntent{Kind: IntentSubscription, AccountEmail: providerEmail, Plan: plan, BillingCycle: cycle}, nil

	case strings.HasPrefix(id, "SUB_"):
		parts := strings.Split(id, "_")
		if len(parts) < 5 {
			return nil, fmt.Errorf("%w: %s", ErrUnrecognizedOrderID, id)
		}
		embedded := strings.ToLower(strings.Join(parts[1:len(parts)-3], "_"))
		email := pickEmail(providerEmail, embedded, id)
		if email == "" {
			return nil, fmt.Errorf("%w: %s", ErrNoAccountEmail, id)
		}
		plan := strings.ToLower(strings.TrimSpace(parts[len(parts)-3]))
		if plan == "" {
			plan = defaultPlan
		}
		return &OrderIntent{
			Kind:         IntentSubscription,
			AccountEmail: email,
			Plan:         plan,
			BillingCycle: normalizeCycle(parts[len(parts)-2]),
		}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnrecognizedOrderID, id)
}

// pickEmail applies the trust hierarchy: the provider-attested email wins
// over the one embedded at checkout time.
func pickEmail(providerEmail, embedded, orderID string) string {
	if providerEmail == "" {
		return embedded
	}
	if embedded != "" && embedded != providerEmail {
		log.Warnf("[Payment] order %s embeds email %s but provider attests %s, using provider", orderID, embedded, providerEmail)
	}
	return providerEmail
}

func normalizeCycle(cycle string) string {
	switch strings.ToLower(strings.TrimSpace(cycle)) {
	case "yearly", "year", "annual":
		return "yearly"
	default:
		return "monthly"
	}
}
