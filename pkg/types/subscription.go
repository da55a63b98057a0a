package types

import "time"

type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
	TierPromo   Tier = "promo"
)

func (t Tier) Valid() bool {
	return t == TierFree || t == TierPremium || t == TierPromo
}

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

func (s SubscriptionStatus) Valid() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusCancelled || s == SubscriptionStatusExpired
}

type SubscriptionChangeReason string

const (
	SubscriptionChangeReasonPromo        SubscriptionChangeReason = "promo"
	SubscriptionChangeReasonCheckout     SubscriptionChangeReason = "checkout"
	SubscriptionChangeReasonStripeCancel SubscriptionChangeReason = "stripe_cancel"
	SubscriptionChangeReasonStripeUpdate SubscriptionChangeReason = "stripe_update"
	SubscriptionChangeReasonAdmin        SubscriptionChangeReason = "admin"
	SubscriptionChangeReasonSweep        SubscriptionChangeReason = "sweep"
)

type PaymentProvider string

const (
	PaymentProviderStripe PaymentProvider = "stripe"
)

// UserSubscriptionInfo is the entitlement view handed to the UI: the stored
// row plus the tier/status after lazy expiry has been applied.
type UserSubscriptionInfo struct {
	Tier            Tier               `json:"tier"`
	Status          SubscriptionStatus `json:"status"`
	StoredTier      Tier               `json:"stored_tier"`
	StoredStatus    SubscriptionStatus `json:"stored_status"`
	IsPremium       bool               `json:"is_premium"`
	ExpiresAt       *time.Time         `json:"expires_at"`
	PromoCode       *string            `json:"promo_code"`
	HasBillingSetup bool               `json:"has_billing_setup"`
}
