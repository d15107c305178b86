package payment

import (
	"time"

	"github.com/RobertHaas/AdDesk/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides the storage primitives the reconciliation engine needs.
// The two Apply methods are the only writers of ledger state and must be
// atomic: either the transaction row and its side effect both land, or neither.
type Repository interface {
	GetUserByEmail(email string) (*models.User, error)
	ApplyDeposit(txn *models.Transaction) (bool, error)
	ApplySubscription(txn *models.Transaction, sub *models.Subscription) (bool, error)
	ListTransactionsByUser(userID uint, limit int) ([]models.Transaction, error)
	CreateWebhookEventIfNotExists(event *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a payment repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetUserByEmail(email string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ApplyDeposit inserts the ledger entry and credits the balance in one DB
// transaction. The unique index on payment_reference is the serialization
// point for concurrent duplicate deliveries: exactly one insert wins, the
// loser sees RowsAffected == 0 and leaves the balance untouched.
func (r *gormRepository) ApplyDeposit(txn *models.Transaction) (bool, error) {
	created := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "payment_reference"}},
			DoNothing: true,
		}).Create(txn)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		created = true
		// Atomic increment at the storage layer; a read-modify-write here
		// would lose updates under concurrent credits to the same account.
		return tx.Model(&models.User{}).
			Where("id = ?", txn.UserID).
			UpdateColumn("balance_cents", gorm.Expr("balance_cents + ?", txn.NetCents)).Error
	})
	return created, err
}

// ApplySubscription inserts the ledger entry and upserts the account's
// subscription row. The insert gates the upsert, so a redelivered settled
// event cannot extend the period twice.
func (r *gormRepository) ApplySubscription(txn *models.Transaction, sub *models.Subscription) (bool, error) {
	created := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "payment_reference"}},
			DoNothing: true,
		}).Create(txn)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		created = true
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"plan",
				"billing_cycle",
				"status",
				"start_date",
				"end_date",
				"last_payment_ref",
				"updated_at",
			}),
		}).Create(sub).Error
	})
	return created, err
}

func (r *gormRepository) ListTransactionsByUser(userID uint, limit int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var txns []models.Transaction
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&txns).Error
	return txns, err
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.PaymentWebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.PaymentWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
