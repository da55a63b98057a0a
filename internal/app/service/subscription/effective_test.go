package subscription

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	models "github.com/fatflowers/lingobill/internal/models"
	types "github.com/fatflowers/lingobill/pkg/types"
)

func TestEffectiveTier(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.AddDate(0, 1, 0)

	tests := []struct {
		name       string
		sub        *models.Subscription
		wantTier   types.Tier
		wantStatus types.SubscriptionStatus
	}{
		{name: "no row", sub: nil, wantTier: types.TierFree, wantStatus: types.SubscriptionStatusActive},
		{name: "default row", sub: models.DefaultSubscription("u"), wantTier: types.TierFree, wantStatus: types.SubscriptionStatusActive},
		{name: "premium open ended", sub: &models.Subscription{Tier: types.TierPremium, Status: types.SubscriptionStatusActive}, wantTier: types.TierPremium, wantStatus: types.SubscriptionStatusActive},
		{name: "promo not yet expired", sub: &models.Subscription{Tier: types.TierPromo, Status: types.SubscriptionStatusActive, ExpiresAt: &future}, wantTier: types.TierPromo, wantStatus: types.SubscriptionStatusActive},
		{name: "promo expired", sub: &models.Subscription{Tier: types.TierPromo, Status: types.SubscriptionStatusActive, ExpiresAt: &past}, wantTier: types.TierFree, wantStatus: types.SubscriptionStatusExpired},
		{name: "promo expiring exactly now", sub: &models.Subscription{Tier: types.TierPromo, Status: types.SubscriptionStatusActive, ExpiresAt: lo.ToPtr(now)}, wantTier: types.TierFree, wantStatus: types.SubscriptionStatusExpired},
		{name: "premium billing cycle passed", sub: &models.Subscription{Tier: types.TierPremium, Status: types.SubscriptionStatusActive, ExpiresAt: &past}, wantTier: types.TierFree, wantStatus: types.SubscriptionStatusExpired},
		{name: "premium cancelled", sub: &models.Subscription{Tier: types.TierPremium, Status: types.SubscriptionStatusCancelled}, wantTier: types.TierFree, wantStatus: types.SubscriptionStatusCancelled},
		{name: "premium marked expired", sub: &models.Subscription{Tier: types.TierPremium, Status: types.SubscriptionStatusExpired, ExpiresAt: &future}, wantTier: types.TierFree, wantStatus: types.SubscriptionStatusExpired},
		{name: "unknown tier reads as free", sub: &models.Subscription{Tier: "gold", Status: types.SubscriptionStatusActive}, wantTier: types.TierFree, wantStatus: types.SubscriptionStatusActive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tier, status := EffectiveTier(tt.sub, now)
			require.Equal(t, tt.wantTier, tier)
			require.Equal(t, tt.wantStatus, status)
		})
	}
}

func TestIsPremiumTier(t *testing.T) {
	require.True(t, IsPremiumTier(types.TierPremium))
	require.True(t, IsPremiumTier(types.TierPromo))
	require.False(t, IsPremiumTier(types.TierFree))
}

func TestInfo_KeepsStoredValues(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	past := now.AddDate(0, -1, 0)
	sub := &models.Subscription{
		UserID:           "u1",
		Tier:             types.TierPromo,
		Status:           types.SubscriptionStatusActive,
		ExpiresAt:        &past,
		PromoCode:        lo.ToPtr("SPRING"),
		StripeCustomerID: lo.ToPtr("cus_1"),
	}

	info := Info(sub, now)
	require.Equal(t, types.TierFree, info.Tier)
	require.Equal(t, types.SubscriptionStatusExpired, info.Status)
	require.Equal(t, types.TierPromo, info.StoredTier)
	require.False(t, info.IsPremium)
	require.True(t, info.HasBillingSetup)
	require.Equal(t, "SPRING", *info.PromoCode)
}
