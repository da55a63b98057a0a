package subscription

import (
	"time"

	models "github.com/fatflowers/lingobill/internal/models"
	types "github.com/fatflowers/lingobill/pkg/types"
)

// IsPremiumTier reports whether a tier unlocks premium limits.
func IsPremiumTier(tier types.Tier) bool {
	return tier == types.TierPremium || tier == types.TierPromo
}

// EffectiveTier is the only place lazy expiry is applied. A grant whose
// ExpiresAt has passed reads as free/expired even though the row still says
// otherwise; a cancelled or expired row always reads as free.
func EffectiveTier(sub *models.Subscription, now time.Time) (types.Tier, types.SubscriptionStatus) {
	if sub == nil {
		return types.TierFree, types.SubscriptionStatusActive
	}
	status := sub.Status
	if !status.Valid() {
		status = types.SubscriptionStatusActive
	}
	if !IsPremiumTier(sub.Tier) {
		return types.TierFree, status
	}
	if status != types.SubscriptionStatusActive {
		return types.TierFree, status
	}
	if sub.ExpiresAt != nil && !sub.ExpiresAt.After(now) {
		return types.TierFree, types.SubscriptionStatusExpired
	}
	return sub.Tier, status
}

// HasActivePremium is the promo eligibility gate: premium or promo and active
// after expiry is applied.
func HasActivePremium(sub *models.Subscription, now time.Time) bool {
	tier, status := EffectiveTier(sub, now)
	return IsPremiumTier(tier) && status == types.SubscriptionStatusActive
}

// Info builds the UI view of a stored row.
func Info(sub *models.Subscription, now time.Time) *types.UserSubscriptionInfo {
	tier, status := EffectiveTier(sub, now)
	return &types.UserSubscriptionInfo{
		Tier:            tier,
		Status:          status,
		StoredTier:      sub.Tier,
		StoredStatus:    sub.Status,
		IsPremium:       IsPremiumTier(tier),
		ExpiresAt:       sub.ExpiresAt,
		PromoCode:       sub.PromoCode,
		HasBillingSetup: sub.StripeCustomerID != nil && *sub.StripeCustomerID != "",
	}
}
