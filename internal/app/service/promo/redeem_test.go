package promo

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fatflowers/lingobill/internal/app/service/subscription"
	models "github.com/fatflowers/lingobill/internal/models"
	"github.com/fatflowers/lingobill/internal/platform/db/dbtest"
	"github.com/fatflowers/lingobill/pkg/clock"
	types "github.com/fatflowers/lingobill/pkg/types"
)

var testNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

type fixture struct {
	db   *gorm.DB
	subs *subscription.Service
	svc  *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	clk := clock.Fixed(testNow)
	subs := subscription.NewService(db, dbtest.Logger(), clk)
	return &fixture{db: db, subs: subs, svc: NewService(db, dbtest.Logger(), subs, clk)}
}

func (f *fixture) createCode(t *testing.T, req CreateCodeRequest) *models.PromoCode {
	t.Helper()
	code, err := f.svc.CreateCode(context.Background(), &req)
	require.NoError(t, err)
	return code
}

func (f *fixture) reload(t *testing.T, id string) *models.PromoCode {
	t.Helper()
	var code models.PromoCode
	require.NoError(t, f.db.Where("id = ?", id).First(&code).Error)
	return &code
}

func TestRedeem_DurationCodeScenario(t *testing.T) {
	f := newFixture(t)
	code := f.createCode(t, CreateCodeRequest{Code: "SUMMER25", Type: types.PromoCodeTypeDuration, DurationMonths: 3, MaxUses: lo.ToPtr(100)})

	res, err := f.svc.Redeem(context.Background(), "u1", "  summer25 ")
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Contains(t, res.Message, "3 months")
	require.NotNil(t, res.ExpiresAt)
	require.True(t, res.ExpiresAt.Equal(testNow.AddDate(0, 3, 0)))

	require.Equal(t, 1, f.reload(t, code.ID).CurrentUses)

	sub, err := f.subs.GetSubscription(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, types.TierPromo, sub.Tier)
	require.Equal(t, types.SubscriptionStatusActive, sub.Status)
	require.Equal(t, "SUMMER25", *sub.PromoCode)
	require.NotNil(t, sub.ExpiresAt)
	require.WithinDuration(t, testNow.AddDate(0, 3, 0), *sub.ExpiresAt, time.Second)

	redemptions, err := f.svc.ListRedemptions(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, redemptions, 1)
	require.Equal(t, code.ID, redemptions[0].PromoCodeID)
}

func TestRedeem_UnlimitedIsLifetime(t *testing.T) {
	f := newFixture(t)
	f.createCode(t, CreateCodeRequest{Code: "FOREVER", Type: types.PromoCodeTypeUnlimited})

	res, err := f.svc.Redeem(context.Background(), "u1", "forever")
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Contains(t, res.Message, "lifetime")
	require.Nil(t, res.ExpiresAt)

	sub, err := f.subs.GetSubscription(context.Background(), "u1")
	require.NoError(t, err)
	require.Nil(t, sub.ExpiresAt)
}

func TestRedeem_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createCode(t, CreateCodeRequest{Code: "OK", Type: types.PromoCodeTypeDuration, DurationMonths: 1})
	f.createCode(t, CreateCodeRequest{Code: "OFF", Type: types.PromoCodeTypeDuration, DurationMonths: 1, Active: lo.ToPtr(false)})
	f.createCode(t, CreateCodeRequest{Code: "FULL", Type: types.PromoCodeTypeDuration, DurationMonths: 1, MaxUses: lo.ToPtr(0)})
	f.createCode(t, CreateCodeRequest{Code: "OLD", Type: types.PromoCodeTypeDuration, DurationMonths: 1, ExpiresAt: lo.ToPtr(testNow.Add(-time.Hour))})

	premium := types.TierPremium
	_, err := f.subs.UpsertSubscription(ctx, "paying", subscription.Patch{Tier: &premium}, types.SubscriptionChangeReasonCheckout)
	require.NoError(t, err)

	tests := []struct {
		name   string
		user   string
		code   string
		reason RejectReason
	}{
		{"no user", "", "OK", RejectUnauthorized},
		{"blank code", "u1", "   ", RejectMissingCode},
		{"premium user", "paying", "OK", RejectAlreadySubscribed},
		{"unknown code", "u1", "NOPE", RejectInvalidCode},
		{"inactive code", "u1", "OFF", RejectInvalidCode},
		{"exhausted code", "u1", "FULL", RejectLimitReached},
		{"expired code", "u1", "OLD", RejectExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.svc.Redeem(ctx, tt.user, tt.code)
			require.NoError(t, err)
			require.False(t, res.Success)
			require.Equal(t, tt.reason, res.Reason)
			require.NotEmpty(t, res.Message)
		})
	}

	sub, err := f.subs.GetSubscription(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, types.TierFree, sub.Tier)
}

func TestRedeem_ActivePromoBlocksSecondCode(t *testing.T) {
	f := newFixture(t)
	f.createCode(t, CreateCodeRequest{Code: "A", Type: types.PromoCodeTypeDuration, DurationMonths: 1})
	f.createCode(t, CreateCodeRequest{Code: "B", Type: types.PromoCodeTypeDuration, DurationMonths: 1})

	res, err := f.svc.Redeem(context.Background(), "u1", "A")
	require.NoError(t, err)
	require.True(t, res.Success)

	res, err = f.svc.Redeem(context.Background(), "u1", "B")
	require.NoError(t, err)
	require.Equal(t, RejectAlreadySubscribed, res.Reason)
}

func TestRedeem_ExpiredPromoUserMayRedeemAgainButNotSameCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	code := f.createCode(t, CreateCodeRequest{Code: "AGAIN", Type: types.PromoCodeTypeDuration, DurationMonths: 1})
	f.createCode(t, CreateCodeRequest{Code: "NEXT", Type: types.PromoCodeTypeDuration, DurationMonths: 2})

	// A prior grant of AGAIN that has since lapsed.
	require.NoError(t, f.db.Create(&models.PromoRedemption{ID: "00000000-0000-7000-8000-000000000001", PromoCodeID: code.ID, UserID: "u1", Code: "AGAIN", RedeemedAt: testNow.AddDate(0, -2, 0)}).Error)
	promo := types.TierPromo
	past := testNow.AddDate(0, -1, 0)
	_, err := f.subs.UpsertSubscription(ctx, "u1", subscription.Patch{Tier: &promo, ExpiresAt: &past}, types.SubscriptionChangeReasonPromo)
	require.NoError(t, err)

	res, err := f.svc.Redeem(ctx, "u1", "AGAIN")
	require.NoError(t, err)
	require.Equal(t, RejectAlreadyRedeemed, res.Reason)
	require.Equal(t, 0, f.reload(t, code.ID).CurrentUses)

	res, err = f.svc.Redeem(ctx, "u1", "NEXT")
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Contains(t, res.Message, "2 months")
}

func TestRedeem_SequentialUntilLimit(t *testing.T) {
	f := newFixture(t)
	code := f.createCode(t, CreateCodeRequest{Code: "THREE", Type: types.PromoCodeTypeDuration, DurationMonths: 1, MaxUses: lo.ToPtr(3)})

	for i, uid := range []string{"u1", "u2", "u3"} {
		res, err := f.svc.Redeem(context.Background(), uid, "THREE")
		require.NoError(t, err)
		require.True(t, res.Success, "redemption %d", i+1)
	}
	res, err := f.svc.Redeem(context.Background(), "u4", "THREE")
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, RejectLimitReached, res.Reason)
	require.Equal(t, 3, f.reload(t, code.ID).CurrentUses)
}

func TestRedeem_ConcurrentNeverExceedsMaxUses(t *testing.T) {
	f := newFixture(t)
	code := f.createCode(t, CreateCodeRequest{Code: "RACE", Type: types.PromoCodeTypeUnlimited, MaxUses: lo.ToPtr(5)})

	const attempts = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.svc.Redeem(context.Background(), "user-"+string(rune('a'+i)), "RACE")
			if !assert.NoError(t, err) {
				return
			}
			if res.Success {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else {
				assert.Equal(t, RejectLimitReached, res.Reason)
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, 5, succeeded)
	require.Equal(t, 5, f.reload(t, code.ID).CurrentUses)

	var redemptions int64
	require.NoError(t, f.db.Model(&models.PromoRedemption{}).Where("promo_code_id = ?", code.ID).Count(&redemptions).Error)
	require.Equal(t, int64(5), redemptions)
}

func TestDurationDescription(t *testing.T) {
	require.Equal(t, "lifetime", DurationDescription(&models.PromoCode{Type: types.PromoCodeTypeUnlimited}))
	require.Equal(t, "1 month", DurationDescription(&models.PromoCode{Type: types.PromoCodeTypeDuration, DurationMonths: 1}))
	require.Equal(t, "6 months", DurationDescription(&models.PromoCode{Type: types.PromoCodeTypeDuration, DurationMonths: 6}))
}

func TestRedeem_ConcurrentCodesForOneUserGrantOnce(t *testing.T) {
	f := newFixture(t)
	a := f.createCode(t, CreateCodeRequest{Code: "ALPHA", Type: types.PromoCodeTypeDuration, DurationMonths: 1, MaxUses: lo.ToPtr(10)})
	b := f.createCode(t, CreateCodeRequest{Code: "BRAVO", Type: types.PromoCodeTypeUnlimited, MaxUses: lo.ToPtr(10)})

	var wg sync.WaitGroup
	results := make([]*RedeemResult, 2)
	for i, code := range []string{"ALPHA", "BRAVO"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.Redeem(context.Background(), "u1", code)
			if assert.NoError(t, err) {
				results[i] = res
			}
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, res := range results {
		require.NotNil(t, res)
		if res.Success {
			succeeded++
		} else {
			require.Equal(t, RejectAlreadySubscribed, res.Reason)
		}
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, f.reload(t, a.ID).CurrentUses+f.reload(t, b.ID).CurrentUses)

	var redemptions int64
	require.NoError(t, f.db.Model(&models.PromoRedemption{}).Where("user_id = ?", "u1").Count(&redemptions).Error)
	require.Equal(t, int64(1), redemptions)
}
