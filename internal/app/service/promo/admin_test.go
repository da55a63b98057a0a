package promo

import (
	"context"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	types "github.com/fatflowers/lingobill/pkg/types"
)

func TestCreateCode_ValidatesAndNormalizes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateCode(ctx, &CreateCodeRequest{Code: "x", Type: types.PromoCodeTypeDuration})
	require.Error(t, err)
	_, err = f.svc.CreateCode(ctx, &CreateCodeRequest{Code: " ", Type: types.PromoCodeTypeUnlimited})
	require.Error(t, err)
	_, err = f.svc.CreateCode(ctx, &CreateCodeRequest{Code: "x", Type: "forever"})
	require.Error(t, err)
	_, err = f.svc.CreateCode(ctx, &CreateCodeRequest{Code: "x", Type: types.PromoCodeTypeUnlimited, MaxUses: lo.ToPtr(-1)})
	require.Error(t, err)

	code, err := f.svc.CreateCode(ctx, &CreateCodeRequest{Code: " welcome ", Type: types.PromoCodeTypeUnlimited, DurationMonths: 4})
	require.NoError(t, err)
	require.Equal(t, "WELCOME", code.Code)
	require.True(t, code.Active)
	require.Zero(t, code.DurationMonths)

	_, err = f.svc.CreateCode(ctx, &CreateCodeRequest{Code: "Welcome", Type: types.PromoCodeTypeUnlimited})
	require.ErrorIs(t, err, ErrCodeExists)
}

func TestSetCodeActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createCode(t, CreateCodeRequest{Code: "TOGGLE", Type: types.PromoCodeTypeDuration, DurationMonths: 1})

	got, err := f.svc.SetCodeActive(ctx, "toggle", false)
	require.NoError(t, err)
	require.False(t, got.Active)

	res, err := f.svc.Redeem(ctx, "u1", "TOGGLE")
	require.NoError(t, err)
	require.Equal(t, RejectInvalidCode, res.Reason)

	_, err = f.svc.SetCodeActive(ctx, "missing", true)
	require.ErrorIs(t, err, ErrCodeNotFound)
}

func TestListCodes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createCode(t, CreateCodeRequest{Code: "SPRING1", Type: types.PromoCodeTypeDuration, DurationMonths: 1})
	f.createCode(t, CreateCodeRequest{Code: "SPRING2", Type: types.PromoCodeTypeDuration, DurationMonths: 1})
	f.createCode(t, CreateCodeRequest{Code: "LIFE", Type: types.PromoCodeTypeUnlimited})

	res, err := f.svc.ListCodes(ctx, &ListCodesRequest{
		Filters: []*types.CommonFilter{{Field: "code", Operator: types.CommonFilterOperatorHasPrefix, Values: []any{"spring"}}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(2), res.Total)
	require.Len(t, res.Items, 2)

	_, err = f.svc.ListCodes(ctx, &ListCodesRequest{Filters: []*types.CommonFilter{{Field: "id", Operator: types.CommonFilterOperatorEq, Values: []any{"x"}}}})
	require.Error(t, err)
}
