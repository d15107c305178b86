package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/RobertHaas/AdDesk/app/models"
	"github.com/RobertHaas/AdDesk/internal/pkg/config"
	"github.com/RobertHaas/AdDesk/internal/pkg/payment"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

const webhookSignatureHeader = "x-nowpayments-sig"

// PaymentProvider reads back the provider's own record of a payment.
type PaymentProvider interface {
	GetPayment(ctx context.Context, paymentID string) (*payment.PaymentDetail, error)
}

// NotificationEnqueuer queues outbound confirmation messages.
type NotificationEnqueuer interface {
	EnqueueNotification(to, kind string, data map[string]string) error
}

// WebhookStats counts processing outcomes. Counting is best effort and must
// never influence the response to the provider.
type WebhookStats interface {
	AddOutcome(outcome string) error
	Snapshot(ctx context.Context) (map[string]int64, error)
}

// PaymentController handles the provider webhook and billing history reads.
// All collaborators are injected so the fail-closed and arithmetic behavior
// is testable without touching the process environment.
type PaymentController struct {
	cfg      config.Config
	svc      *payment.Service
	provider PaymentProvider
	queue    NotificationEnqueuer
	stats    WebhookStats
}

func NewPaymentController(cfg config.Config, svc *payment.Service, provider PaymentProvider, queue NotificationEnqueuer, stats WebhookStats) *PaymentController {
	return &PaymentController{cfg: cfg, svc: svc, provider: provider, queue: queue, stats: stats}
}

// HandleWebhookHealth reports whether the pipeline can accept webhooks at
// all. A missing secret means every delivery is being rejected.
func (pc *PaymentController) HandleWebhookHealth(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ok":                true,
		"secret_configured": pc.cfg.WebhookSecret != "",
	})
}

// HandleWebhook processes one inbound payment notification. Responses steer
// the provider's retry policy: 200 for every outcome a retry cannot change
// (applied, duplicate, unparseable order, unknown account, non-settled
// statuses), non-200 only for bad signatures and transient storage failures.
func (pc *PaymentController) HandleWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get(webhookSignatureHeader))

	if !payment.VerifyWebhookSignature(rawBody, signature, pc.cfg.WebhookSecret) {
		// Always logged: a bad signature on this endpoint is an attack signal.
		log.Warnf("[Payment] rejected webhook with invalid signature (body %d bytes, signature present: %t, secret configured: %t)",
			len(rawBody), signature != "", pc.cfg.WebhookSecret != "")
		pc.recordOutcome("rejected_signature")
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	}

	var note payment.WebhookNotification
	if err := json.Unmarshal(rawBody, &note); err != nil {
		log.Errorf("[Payment] webhook body does not parse: %v", err)
		pc.recordOutcome("invalid_payload")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	created, stored, err := pc.svc.RecordWebhookEvent(ctx, payment.WebhookEventInput{
		Provider:       models.PaymentProviderNowPayments,
		EventType:      note.PaymentStatus,
		PayloadJSON:    string(rawBody),
		SignatureValid: true,
	})
	if err != nil {
		log.Errorf("[Payment] failed to persist webhook event: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}
	if !created {
		if stored.ProcessedAt != nil && stored.ProcessingError == "" {
			pc.recordOutcome("duplicate")
			return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
		}
		// The delivery was recorded but never processed to completion: a
		// crash mid-flight or an earlier transient failure. Run it again;
		// the transaction unique key still guards against double-apply.
		log.Infof("[Payment] reprocessing unfinished delivery %s", stored.ProviderEventID)
	}

	paymentID := note.PaymentID.String()
	outcome := payment.ClassifyStatus(note.PaymentStatus)

	switch outcome {
	case payment.OutcomePending:
		log.Infof("[Payment] payment %s is %s, waiting", paymentID, note.PaymentStatus)
		pc.recordOutcome("pending")
		_ = pc.svc.MarkWebhookProcessed(ctx, stored.ID, nil)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})

	case payment.OutcomePartial:
		log.Warnf("[Payment] payment %s partially paid: expected %.2f %s, actually paid %.2f %s; no ledger effect",
			paymentID, note.PriceAmount, note.PriceCurrency, note.ActuallyPaid, note.PayCurrency)
		pc.recordOutcome("partial")
		_ = pc.svc.MarkWebhookProcessed(ctx, stored.ID, nil)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})

	case payment.OutcomeTerminalFailed:
		// A refund arriving after settlement is deliberately not compensated;
		// reversing credits is a product decision, not a pipeline one.
		log.Infof("[Payment] payment %s ended as %s, no ledger effect", paymentID, note.PaymentStatus)
		pc.recordOutcome("terminal_failed")
		_ = pc.svc.MarkWebhookProcessed(ctx, stored.ID, nil)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})

	case payment.OutcomeUnknown:
		log.Warnf("[Payment] payment %s has unknown status %q, ignoring", paymentID, note.PaymentStatus)
		pc.recordOutcome("unknown_status")
		_ = pc.svc.MarkWebhookProcessed(ctx, stored.ID, nil)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	}

	// Settled: resolve the account and apply the ledger effect.
	payerEmail := pc.resolvePayerEmail(ctx, paymentID)

	intent, err := payment.ParseOrderIntent(note.OrderID, payerEmail)
	if err != nil {
		// Retrying cannot make an unrecognized order id parseable.
		log.Errorf("[Payment] dropping settled payment %s: %v", paymentID, err)
		pc.recordOutcome("unparseable_order")
		_ = pc.svc.MarkWebhookProcessed(ctx, stored.ID, err)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	}

	result, user, err := pc.svc.ApplySettled(ctx, paymentID, intent, payment.ToCents(note.PriceAmount), note.PriceCurrency, string(rawBody))
	if err != nil {
		if errors.Is(err, payment.ErrUnknownAccount) {
			log.Errorf("[Payment] settled payment %s references unknown account %s, dropping", paymentID, intent.AccountEmail)
			pc.recordOutcome("unknown_account")
			_ = pc.svc.MarkWebhookProcessed(ctx, stored.ID, err)
			return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
		}
		log.Errorf("[Payment] failed to apply settled payment %s: %v", paymentID, err)
		pc.recordOutcome("reconciliation_failed")
		_ = pc.svc.MarkWebhookProcessed(ctx, stored.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "reconciliation_failed"})
	}

	if result == payment.ResultApplied {
		pc.recordOutcome("applied")
		pc.enqueueConfirmation(user, intent, note)
	} else {
		pc.recordOutcome("already_applied")
	}

	_ = pc.svc.MarkWebhookProcessed(ctx, stored.ID, nil)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ok":      true,
		"applied": result == payment.ResultApplied,
	})
}

// HandleListTransactions returns the newest ledger entries for an account;
// the dashboard's billing history view reads from here.
func (pc *PaymentController) HandleListTransactions(c *fiber.Ctx) error {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "email_required"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	txns, err := pc.svc.ListTransactions(ctx, email, c.QueryInt("limit", 50))
	if err != nil {
		if errors.Is(err, payment.ErrUnknownAccount) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "account_not_found"})
		}
		log.Errorf("[Payment] failed to list transactions for %s: %v", email, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "transaction_list_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"transactions": txns})
}

// HandleWebhookStats reports accumulated processing outcome counts.
func (pc *PaymentController) HandleWebhookStats(c *fiber.Ctx) error {
	if pc.stats == nil {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"outcomes": map[string]int64{}})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	outcomes, err := pc.stats.Snapshot(ctx)
	if err != nil {
		log.Errorf("[Payment] failed to read webhook stats: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "stats_unavailable"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"outcomes": outcomes})
}

func (pc *PaymentController) recordOutcome(outcome string) {
	if pc.stats == nil {
		return
	}
	if err := pc.stats.AddOutcome(outcome); err != nil {
		log.Debugf("[Payment] failed to count %s outcome: %v", outcome, err)
	}
}

// resolvePayerEmail fetches the provider-attested payer email. Lookup
// failures degrade to the order-embedded fallback path rather than failing
// the delivery.
func (pc *PaymentController) resolvePayerEmail(ctx context.Context, paymentID string) string {
	if pc.provider == nil || paymentID == "" {
		return ""
	}
	timeout := pc.cfg.ProviderTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	lookupCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	detail, err := pc.provider.GetPayment(lookupCtx, paymentID)
	if err != nil {
		log.Warnf("[Payment] provider lookup for payment %s failed, falling back to embedded email: %v", paymentID, err)
		return ""
	}
	return detail.PayerEmail
}

func (pc *PaymentController) enqueueConfirmation(user *models.User, intent *payment.OrderIntent, note payment.WebhookNotification) {
	if pc.queue == nil || user == nil {
		return
	}

	kind := "deposit_confirmed"
	data := map[string]string{
		"amount":   payment.FormatCents(payment.ToCents(note.PriceAmount)),
		"currency": strings.ToLower(note.PriceCurrency),
	}
	if intent.Kind == payment.IntentSubscription {
		kind = "subscription_activated"
		data["plan"] = intent.Plan
		data["billing_cycle"] = intent.BillingCycle
	}

	if err := pc.queue.EnqueueNotification(user.Email, kind, data); err != nil {
		// Best effort only; the ledger outcome stands regardless.
		log.Errorf("[Payment] failed to enqueue %s notification for %s: %v", kind, user.Email, err)
	}
}
