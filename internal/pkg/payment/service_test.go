package payment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/RobertHaas/AdDesk/app/models"
	"github.com/RobertHaas/AdDesk/internal/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// memoryRepo is an in-memory Repository with the same atomicity contract as
// the GORM implementation: the transaction insert is the serialization point.
type memoryRepo struct {
	mu     sync.Mutex
	users  map[string]*models.User
	txns   map[string]*models.Transaction
	subs   map[uint]*models.Subscription
	events map[string]*models.PaymentWebhookEvent
	nextID uint
}

func newMemoryRepo(users ...*models.User) *memoryRepo {
	r := &memoryRepo{
		users:  make(map[string]*models.User),
		txns:   make(map[string]*models.Transaction),
		subs:   make(map[uint]*models.Subscription),
		events: make(map[string]*models.PaymentWebhookEvent),
	}
	for _, u := range users {
		r.users[u.Email] = u
	}
	return r
}

func (r *memoryRepo) GetUserByEmail(email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[email]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *memoryRepo) ApplyDeposit(txn *models.Transaction) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.txns[txn.PaymentReference]; exists {
		return false, nil
	}
	r.nextID++
	txn.ID = r.nextID
	r.txns[txn.PaymentReference] = txn
	for _, u := range r.users {
		if u.ID == txn.UserID {
			u.BalanceCents += txn.NetCents
		}
	}
	return true, nil
}

func (r *memoryRepo) ApplySubscription(txn *models.Transaction, sub *models.Subscription) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.txns[txn.PaymentReference]; exists {
		return false, nil
	}
	r.nextID++
	txn.ID = r.nextID
	r.txns[txn.PaymentReference] = txn
	r.subs[sub.UserID] = sub
	return true, nil
}

func (r *memoryRepo) ListTransactionsByUser(userID uint, limit int) ([]models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Transaction
	for _, txn := range r.txns {
		if txn.UserID == userID {
			out = append(out, *txn)
		}
	}
	return out, nil
}

func (r *memoryRepo) CreateWebhookEventIfNotExists(event *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := event.Provider + "/" + event.ProviderEventID
	if stored, exists := r.events[key]; exists {
		return false, stored, nil
	}
	r.nextID++
	event.ID = r.nextID
	r.events[key] = event
	return true, event, nil
}

func (r *memoryRepo) MarkWebhookProcessed(id uint, processingError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, ev := range r.events {
		if ev.ID == id {
			ev.ProcessedAt = &now
			ev.ProcessingError = processingError
		}
	}
	return nil
}

func testConfig() config.Config {
	return config.Config{WebhookSecret: "secret", CommissionRate: 0.20}
}

func TestSplitCommission_SumsExactly(t *testing.T) {
	for _, rate := range []float64{0, 0.05, 0.20, 0.333, 1} {
		svc := NewService(newMemoryRepo(), config.Config{CommissionRate: rate})
		for _, gross := range []int64{0, 1, 99, 100, 10000, 333333, 999999999} {
			net, commission := svc.SplitCommission(gross)
			require.Equal(t, gross, net+commission, "rate=%v gross=%d", rate, gross)
			require.GreaterOrEqual(t, net, int64(0))
			require.GreaterOrEqual(t, commission, int64(0))
		}
	}
}

func TestApplySettled_DepositCreditsNetOnce(t *testing.T) {
	user := &models.User{ID: 1, Email: "alice@example.com"}
	repo := newMemoryRepo(user)
	svc := NewService(repo, testConfig())

	intent := &OrderIntent{Kind: IntentDeposit, AccountEmail: "alice@example.com"}
	result, got, err := svc.ApplySettled(context.Background(), "555", intent, 10000, "usd", "{}")
	require.NoError(t, err)
	assert.Equal(t, ResultApplied, result)
	assert.Equal(t, "alice@example.com", got.Email)

	assert.Equal(t, int64(8000), user.BalanceCents)
	txn := repo.txns["555"]
	require.NotNil(t, txn)
	assert.Equal(t, int64(10000), txn.GrossCents)
	assert.Equal(t, int64(2000), txn.CommissionCents)
	assert.Equal(t, int64(8000), txn.NetCents)
	assert.Equal(t, models.TransactionTypeDeposit, txn.Type)

	// Redelivery of the same payment id is a no-op, not an error.
	result, _, err = svc.ApplySettled(context.Background(), "555", intent, 10000, "usd", "{}")
	require.NoError(t, err)
	assert.Equal(t, ResultAlreadyApplied, result)
	assert.Equal(t, int64(8000), user.BalanceCents)
	assert.Len(t, repo.txns, 1)
}

func TestApplySettled_ConcurrentDuplicatesCreditOnce(t *testing.T) {
	user := &models.User{ID: 1, Email: "alice@example.com"}
	repo := newMemoryRepo(user)
	svc := NewService(repo, testConfig())
	intent := &OrderIntent{Kind: IntentDeposit, AccountEmail: "alice@example.com"}

	const deliveries = 16
	applied := make(chan ApplyResult, deliveries)
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, _, err := svc.ApplySettled(context.Background(), "777", intent, 10000, "usd", "{}")
			assert.NoError(t, err)
			applied <- result
		}()
	}
	wg.Wait()
	close(applied)

	appliedCount := 0
	for result := range applied {
		if result == ResultApplied {
			appliedCount++
		}
	}
	assert.Equal(t, 1, appliedCount, "exactly one delivery may win")
	assert.Equal(t, int64(8000), user.BalanceCents)
	assert.Len(t, repo.txns, 1)
}

func TestApplySettled_UnknownAccount(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, testConfig())

	intent := &OrderIntent{Kind: IntentDeposit, AccountEmail: "ghost@example.com"}
	result, _, err := svc.ApplySettled(context.Background(), "555", intent, 10000, "usd", "{}")
	require.ErrorIs(t, err, ErrUnknownAccount)
	assert.Equal(t, ResultNone, result)
	assert.Empty(t, repo.txns)
}

func TestApplySettled_SubscriptionPeriod(t *testing.T) {
	user := &models.User{ID: 2, Email: "bob@example.com"}
	repo := newMemoryRepo(user)
	svc := NewService(repo, testConfig())
	svc.now = func() time.Time {
		return time.Date(2024, time.January, 31, 12, 0, 0, 0, time.UTC)
	}

	intent := &OrderIntent{Kind: IntentSubscription, AccountEmail: "bob@example.com", Plan: "pro", BillingCycle: "monthly"}
	result, _, err := svc.ApplySettled(context.Background(), "888", intent, 2900, "usd", "{}")
	require.NoError(t, err)
	assert.Equal(t, ResultApplied, result)

	sub := repo.subs[2]
	require.NotNil(t, sub)
	assert.Equal(t, "pro", sub.Plan)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, "888", sub.LastPaymentRef)
	require.NotNil(t, sub.EndDate)
	assert.Equal(t, time.Date(2024, time.February, 29, 12, 0, 0, 0, time.UTC), *sub.EndDate)

	// Subscription payments carry no commission and do not touch the balance.
	txn := repo.txns["888"]
	require.NotNil(t, txn)
	assert.Equal(t, int64(0), txn.CommissionCents)
	assert.Equal(t, txn.GrossCents, txn.NetCents)
	assert.Equal(t, int64(0), user.BalanceCents)

	// A duplicate settled delivery must not extend the period again.
	svc.now = func() time.Time {
		return time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
	}
	result, _, err = svc.ApplySettled(context.Background(), "888", intent, 2900, "usd", "{}")
	require.NoError(t, err)
	assert.Equal(t, ResultAlreadyApplied, result)
	assert.Equal(t, time.Date(2024, time.February, 29, 12, 0, 0, 0, time.UTC), *repo.subs[2].EndDate)
}

func TestRecordWebhookEvent_DeduplicatesOnPayloadHash(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, testConfig())

	in := WebhookEventInput{
		Provider:       models.PaymentProviderNowPayments,
		EventType:      "finished",
		PayloadJSON:    `{"payment_id":555}`,
		SignatureValid: true,
	}
	created, first, err := svc.RecordWebhookEvent(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, created)

	created, second, err := svc.RecordWebhookEvent(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	// A different payload is a different event.
	in.PayloadJSON = `{"payment_id":556}`
	created, _, err = svc.RecordWebhookEvent(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestListTransactions_UnknownAccount(t *testing.T) {
	svc := NewService(newMemoryRepo(), testConfig())
	_, err := svc.ListTransactions(context.Background(), "ghost@example.com", 10)
	require.ErrorIs(t, err, ErrUnknownAccount)
}
