package payment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/RobertHaas/AdDesk/app/models"
	"github.com/RobertHaas/AdDesk/internal/pkg/config"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// ErrUnknownAccount means the settled payment references no local account.
// Callers acknowledge and drop the event; a provider retry cannot fix it.
var ErrUnknownAccount = errors.New("no account for email")

// Service is the ledger reconciliation engine. It applies settled payment
// events to account state exactly once per provider payment id.
type Service struct {
	repo           Repository
	commissionRate float64

	now func() time.Time
}

// NewService creates a reconciliation service from an injected repository.
func NewService(repo Repository, cfg config.Config) *Service {
	rate := cfg.CommissionRate
	if rate < 0 || rate > 1 {
		rate = 0
	}
	return &Service{repo: repo, commissionRate: rate, now: time.Now}
}

// NewServiceFromDB creates a reconciliation service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, cfg config.Config) *Service {
	return NewService(NewRepository(db), cfg)
}

// SplitCommission splits a gross amount into net and commission minor units.
// The two parts always sum to the gross amount exactly.
func (s *Service) SplitCommission(grossCents int64) (netCents, commissionCents int64) {
	commissionCents = int64(math.Round(float64(grossCents) * s.commissionRate))
	if commissionCents > grossCents {
		commissionCents = grossCents
	}
	return grossCents - commissionCents, commissionCents
}

// ApplySettled applies a settled payment's ledger effect. The transaction
// insert keyed on paymentID is the idempotency anchor: re-applying the same
// payment id returns ResultAlreadyApplied and changes nothing.
func (s *Service) ApplySettled(ctx context.Context, paymentID string, intent *OrderIntent, grossCents int64, currency, metadata string) (ApplyResult, *models.User, error) {
	_ = ctx
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" || intent == nil {
		return ResultNone, nil, errors.New("payment id and intent are required")
	}

	user, err := s.repo.GetUserByEmail(intent.AccountEmail)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ResultNone, nil, ErrUnknownAccount
		}
		return ResultNone, nil, err
	}

	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		currency = "usd"
	}

	switch intent.Kind {
	case IntentDeposit:
		net, commission := s.SplitCommission(grossCents)
		txn := &models.Transaction{
			UserID:           user.ID,
			Type:             models.TransactionTypeDeposit,
			GrossCents:       grossCents,
			NetCents:         net,
			CommissionCents:  commission,
			Currency:         currency,
			PaymentReference: paymentID,
			Status:           models.TransactionStatusCompleted,
			Metadata:         metadata,
		}
		created, err := s.repo.ApplyDeposit(txn)
		if err != nil {
			return ResultNone, user, err
		}
		if !created {
			// Expected outcome of provider retries, not an error.
			log.Infof("[Payment] deposit %s already applied for user %d", paymentID, user.ID)
			return ResultAlreadyApplied, user, nil
		}
		log.Infof("[Payment] credited %s (gross %s, commission %s) to user %d for payment %s",
			FormatCents(net), FormatCents(grossCents), FormatCents(commission), user.ID, paymentID)
		return ResultApplied, user, nil

	case IntentSubscription:
		start := s.now().UTC()
		end := AdvancePeriod(start, intent.BillingCycle)
		txn := &models.Transaction{
			UserID:           user.ID,
			Type:             models.TransactionTypeSubscription,
			GrossCents:       grossCents,
			NetCents:         grossCents,
			CommissionCents:  0,
			Currency:         currency,
			PaymentReference: paymentID,
			Status:           models.TransactionStatusCompleted,
			Metadata:         metadata,
		}
		sub := &models.Subscription{
			UserID:         user.ID,
			Plan:           intent.Plan,
			BillingCycle:   normalizeCycle(intent.BillingCycle),
			Status:         models.SubscriptionStatusActive,
			StartDate:      &start,
			EndDate:        &end,
			LastPaymentRef: paymentID,
		}
		created, err := s.repo.ApplySubscription(txn, sub)
		if err != nil {
			return ResultNone, user, err
		}
		if !created {
			log.Infof("[Payment] subscription payment %s already applied for user %d", paymentID, user.ID)
			return ResultAlreadyApplied, user, nil
		}
		log.Infof("[Payment] activated %s/%s until %s for user %d (payment %s)",
			sub.Plan, sub.BillingCycle, end.Format("2006-01-02"), user.ID, paymentID)
		return ResultApplied, user, nil
	}

	return ResultNone, user, errors.New("unsupported intent kind: " + string(intent.Kind))
}

// ListTransactions returns the newest ledger entries for an account.
func (s *Service) ListTransactions(ctx context.Context, email string, limit int) ([]models.Transaction, error) {
	_ = ctx
	user, err := s.repo.GetUserByEmail(strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownAccount
		}
		return nil, err
	}
	return s.repo.ListTransactionsByUser(user.ID, limit)
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}

// RecordWebhookEvent persists webhook deliveries idempotently. Providers
// without a delivery id are deduplicated on a payload hash.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.PaymentWebhookEvent, error) {
	_ = ctx
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.PaymentWebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}
