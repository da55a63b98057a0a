package models

import (
	"time"

	"github.com/fatflowers/lingobill/pkg/types"
)

// Subscription is the stored entitlement of a user. A user without a row is
// free/active. Rows are never hard-deleted; cancellation rewrites the tier.
// The tier stored here can be stale once ExpiresAt passes, read it through
// subscription.EffectiveTier.
type Subscription struct {
	ID     string                   `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID string                   `gorm:"column:user_id;type:varchar(64);not null;uniqueIndex" json:"user_id"`
	Tier   types.Tier               `gorm:"column:tier;type:varchar(32);not null;default:'free'" json:"tier"`
	Status types.SubscriptionStatus `gorm:"column:status;type:varchar(32);not null;default:'active'" json:"status"`
	// ExpiresAt is nil for open-ended grants (paid subscriptions, unlimited promos).
	ExpiresAt            *time.Time `gorm:"column:expires_at;default:null;index" json:"expires_at"`
	StripeCustomerID     *string    `gorm:"column:stripe_customer_id;type:varchar(128);default:null" json:"stripe_customer_id"`
	StripeSubscriptionID *string    `gorm:"column:stripe_subscription_id;type:varchar(128);default:null;index" json:"stripe_subscription_id"`
	PromoCode            *string    `gorm:"column:promo_code;type:varchar(64);default:null" json:"promo_code"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}

// DefaultSubscription is the implicit row of a user that never subscribed.
func DefaultSubscription(userID string) *Subscription {
	return &Subscription{
		UserID: userID,
		Tier:   types.TierFree,
		Status: types.SubscriptionStatusActive,
	}
}
