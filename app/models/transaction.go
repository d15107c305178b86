package models

import "time"

const (
	TransactionTypeDeposit      = "deposit"
	TransactionTypeSubscription = "subscription"

	TransactionStatusCompleted = "completed"
)

// Transaction is the append-only ledger entry written once per settled
// payment. The unique index on PaymentReference is the idempotency anchor:
// a second insert for the same provider payment id is a no-op.
type Transaction struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UserID           uint      `gorm:"not null;index" json:"user_id"`
	Type             string    `gorm:"type:varchar(20);not null;index" json:"type"`
	GrossCents       int64     `gorm:"not null" json:"gross_cents"`
	NetCents         int64     `gorm:"not null" json:"net_cents"`
	CommissionCents  int64     `gorm:"not null" json:"commission_cents"`
	Currency         string    `gorm:"type:varchar(10);not null;default:'usd'" json:"currency"`
	PaymentReference string    `gorm:"type:varchar(191);not null;uniqueIndex:ux_transactions_payment_reference" json:"payment_reference"`
	Status           string    `gorm:"type:varchar(32);not null;default:'completed'" json:"status"`
	Metadata         string    `gorm:"type:text" json:"metadata"`
	CreatedAt        time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
