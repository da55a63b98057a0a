package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/lingobill/internal/app/service/notification_log"
	"github.com/fatflowers/lingobill/internal/app/service/promo"
	"github.com/fatflowers/lingobill/internal/app/service/quota"
	"github.com/fatflowers/lingobill/internal/app/service/statistics"
	"github.com/fatflowers/lingobill/internal/app/service/subscription"
	"github.com/fatflowers/lingobill/internal/app/service/webhook"
	models "github.com/fatflowers/lingobill/internal/models"
	"github.com/fatflowers/lingobill/pkg/logctx"
	"github.com/fatflowers/lingobill/pkg/response"
	"github.com/fatflowers/lingobill/pkg/types"
)

// Handlers depend on these narrow views of the services so routes can be
// tested against stubs.

type SubscriptionReader interface {
	GetSubscription(ctx context.Context, userID string) (*models.Subscription, error)
	GetUserSubscription(ctx context.Context, userID string) (*types.UserSubscriptionInfo, error)
}

type QuotaService interface {
	CanUserUploadVideo(ctx context.Context, userID string, durationSeconds int) quota.UploadDecision
	CanUserDoVocalExercise(ctx context.Context, userID string) quota.VocalDecision
	GetUploadQuotaStatus(ctx context.Context, userID string) (*quota.UploadStatus, error)
	GetVocalQuotaStatus(ctx context.Context, userID string) (*quota.VocalStatus, error)
	RecordUpload(ctx context.Context, userID, videoID string, durationSeconds int) (quota.UploadDecision, error)
	RecordVocalExerciseCompletion(ctx context.Context, userID, videoID string) bool
}

type PromoRedeemer interface {
	Redeem(ctx context.Context, userID, code string) (*promo.RedeemResult, error)
}

type PromoAdmin interface {
	CreateCode(ctx context.Context, req *promo.CreateCodeRequest) (*models.PromoCode, error)
	ListCodes(ctx context.Context, req *promo.ListCodesRequest) (*promo.ListCodesResponse, error)
	SetCodeActive(ctx context.Context, code string, active bool) (*models.PromoCode, error)
	ListRedemptions(ctx context.Context, userID string) ([]*models.PromoRedemption, error)
}

type SubscriptionAdmin interface {
	ScanSubscriptions(ctx context.Context, req *subscription.ScanSubscriptionsRequest) (*subscription.ScanSubscriptionsResponse, error)
	SetSubscription(ctx context.Context, req *subscription.SetSubscriptionRequest) (*models.Subscription, error)
	SweepExpired(ctx context.Context) (int, error)
}

type StatisticsService interface {
	GetStatistic(ctx context.Context, req *statistics.StatisticRequest) (*statistics.StatisticResponse, error)
}

type WebhookEventLister interface {
	List(ctx context.Context, req *notification_log.ListRequest) (*notification_log.ListResponse, error)
}

type WebhookHandler interface {
	Handle(ctx context.Context, payload []byte, sigHeader string) (*webhook.Outcome, error)
}

// currentUser returns the authenticated user id, or writes 401 and returns "".
func currentUser(c *gin.Context) string {
	uid := c.GetString(logctx.KeyUserID)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, response.ErrorT[any](response.APIResponseCodeUnauthorized, nil))
	}
	return uid
}
