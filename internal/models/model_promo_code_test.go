package models

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func TestPromoCode_Exhausted(t *testing.T) {
	cases := []struct {
		name    string
		maxUses *int
		current int
		want    bool
	}{
		{"uncapped", nil, 1000, false},
		{"below cap", lo.ToPtr(3), 2, false},
		{"at cap", lo.ToPtr(3), 3, true},
		{"zero cap", lo.ToPtr(0), 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &PromoCode{MaxUses: tc.maxUses, CurrentUses: tc.current}
			require.Equal(t, tc.want, p.Exhausted())
		})
	}
}

func TestPromoCode_ExpiredAt(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	require.False(t, (&PromoCode{}).ExpiredAt(now))
	require.False(t, (&PromoCode{ExpiresAt: lo.ToPtr(now.Add(time.Second))}).ExpiredAt(now))
	require.True(t, (&PromoCode{ExpiresAt: lo.ToPtr(now)}).ExpiredAt(now))
	require.True(t, (&PromoCode{ExpiresAt: lo.ToPtr(now.Add(-time.Hour))}).ExpiredAt(now))
}

func TestTableNames(t *testing.T) {
	require.Equal(t, "subscriptions", Subscription{}.TableName())
	require.Equal(t, "promo_codes", PromoCode{}.TableName())
	require.Equal(t, "promo_redemptions", PromoRedemption{}.TableName())
	require.Equal(t, "usage_locks", UsageLock{}.TableName())
	require.Equal(t, "webhook_event_logs", WebhookEventLog{}.TableName())
}
