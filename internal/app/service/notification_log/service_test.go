package notification_log

import (
	"context"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"github.com/fatflowers/lingobill/internal/models"
	"github.com/fatflowers/lingobill/internal/platform/db/dbtest"
	"github.com/fatflowers/lingobill/pkg/types"
)

func TestSaveFlushList(t *testing.T) {
	svc := New(dbtest.Open(t), dbtest.Logger())
	ctx := context.Background()

	svc.Save(ctx, nil)
	svc.Save(ctx, &models.WebhookEventLog{ProviderID: types.PaymentProviderStripe, EventID: "evt_1", EventType: "checkout.session.completed", UserID: lo.ToPtr("u1"), Status: models.WebhookEventLogStatusReceived})
	svc.Save(ctx, &models.WebhookEventLog{ProviderID: types.PaymentProviderStripe, EventID: "evt_1", EventType: "checkout.session.completed", UserID: lo.ToPtr("u1"), Status: models.WebhookEventLogStatusHandled})
	svc.Save(ctx, &models.WebhookEventLog{ProviderID: types.PaymentProviderStripe, EventID: "evt_2", EventType: "charge.refunded", Status: models.WebhookEventLogStatusIgnored})

	flushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Flush(flushCtx))

	all, err := svc.List(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, int64(3), all.Total)

	byEvent, err := svc.List(ctx, &ListRequest{Filters: []*types.CommonFilter{{Field: "event_id", Operator: types.CommonFilterOperatorEq, Values: []any{"evt_1"}}}})
	require.NoError(t, err)
	require.Equal(t, int64(2), byEvent.Total)

	_, err = svc.List(ctx, &ListRequest{Filters: []*types.CommonFilter{{Field: "data", Operator: types.CommonFilterOperatorEq, Values: []any{"x"}}}})
	require.Error(t, err)
}
