package models

import "time"

const (
	BillingCycleMonthly = "monthly"
	BillingCycleYearly  = "yearly"

	SubscriptionStatusActive = "active"

	PlanPro      = "pro"
	PlanBusiness = "business"
)

// Subscription mirrors the account's paid plan state. One row per user;
// settled subscription payments upsert it with a freshly derived period.
type Subscription struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UserID         uint       `gorm:"not null;uniqueIndex:ux_subscriptions_user" json:"user_id"`
	Plan           string     `gorm:"type:varchar(50);not null;default:'pro'" json:"plan"`
	BillingCycle   string     `gorm:"type:varchar(16);not null;default:'monthly'" json:"billing_cycle"`
	Status         string     `gorm:"type:varchar(32);not null;default:'active';index" json:"status"`
	StartDate      *time.Time `gorm:"type:timestamp;default:null" json:"start_date,omitempty"`
	EndDate        *time.Time `gorm:"type:timestamp;default:null" json:"end_date,omitempty"`
	LastPaymentRef string     `gorm:"type:varchar(191);not null;default:''" json:"last_payment_ref"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
