package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/lingobill/internal/app/service/notification_log"
	"github.com/fatflowers/lingobill/internal/app/service/promo"
	"github.com/fatflowers/lingobill/internal/app/service/statistics"
	"github.com/fatflowers/lingobill/internal/app/service/subscription"
	"github.com/fatflowers/lingobill/pkg/response"
)

type SetCodeActiveRequest struct {
	Code   string `json:"code" binding:"required"`
	Active *bool  `json:"active" binding:"required"`
}

type SweepResponse struct {
	Swept int `json:"swept"`
}

// @Summary      Scan Subscriptions (Admin)
// @Description  Paginated, filterable list of stored subscriptions.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     AdminToken
// @Param        request body subscription.ScanSubscriptionsRequest true "Filters, pagination and sorting"
// @Success      200  {object}  handlers.RespScanSubscriptions
// @Router       /api/v1/admin/scan_subscriptions [post]
func ApiScanSubscriptions(svc SubscriptionAdmin) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req subscription.ScanSubscriptionsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := svc.ScanSubscriptions(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Set Subscription (Admin)
// @Description  Overrides a user's tier, status and expiry.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     AdminToken
// @Param        request body subscription.SetSubscriptionRequest true "Override"
// @Success      200  {object}  handlers.RespSubscriptionRow
// @Router       /api/v1/admin/set_subscription [post]
func ApiSetSubscription(svc SubscriptionAdmin) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req subscription.SetSubscriptionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		sub, err := svc.SetSubscription(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(sub))
	}
}

// @Summary      Sweep Expired Subscriptions (Admin)
// @Description  Runs the expiry sweep now instead of waiting for the next tick.
// @Tags         Admin
// @Produce      json
// @Security     AdminToken
// @Success      200  {object}  handlers.RespSweep
// @Router       /api/v1/admin/sweep_expired [post]
func ApiSweepExpired(svc SubscriptionAdmin) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := svc.SweepExpired(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(SweepResponse{Swept: n}))
	}
}

// @Summary      Create Promo Code (Admin)
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     AdminToken
// @Param        request body promo.CreateCodeRequest true "Promo code"
// @Success      200  {object}  handlers.RespPromoCode
// @Router       /api/v1/admin/create_promo_code [post]
func ApiCreatePromoCode(svc PromoAdmin) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req promo.CreateCodeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		code, err := svc.CreateCode(c.Request.Context(), &req)
		if err != nil {
			if errors.Is(err, promo.ErrCodeExists) {
				c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
				return
			}
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(code))
	}
}

// @Summary      List Promo Codes (Admin)
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     AdminToken
// @Param        request body promo.ListCodesRequest true "Filters and pagination"
// @Success      200  {object}  handlers.RespListPromoCodes
// @Router       /api/v1/admin/list_promo_codes [post]
func ApiListPromoCodes(svc PromoAdmin) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req promo.ListCodesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := svc.ListCodes(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Enable or Disable Promo Code (Admin)
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     AdminToken
// @Param        request body SetCodeActiveRequest true "Code and flag"
// @Success      200  {object}  handlers.RespPromoCode
// @Router       /api/v1/admin/set_promo_code_active [post]
func ApiSetPromoCodeActive(svc PromoAdmin) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SetCodeActiveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		code, err := svc.SetCodeActive(c.Request.Context(), req.Code, *req.Active)
		if err != nil {
			if errors.Is(err, promo.ErrCodeNotFound) {
				c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
				return
			}
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(code))
	}
}

// @Summary      List Promo Redemptions of a User (Admin)
// @Tags         Admin
// @Produce      json
// @Security     AdminToken
// @Param        user_id query string true "User id"
// @Success      200  {object}  handlers.RespListRedemptions
// @Router       /api/v1/admin/list_promo_redemptions [get]
func ApiListPromoRedemptions(svc PromoAdmin) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Query("user_id")
		if userID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing user_id"))
			return
		}
		rows, err := svc.ListRedemptions(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(rows))
	}
}

// @Summary      Get Statistics (Admin)
// @Description  Tier distribution, usage and redemption series.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     AdminToken
// @Param        request body statistics.StatisticRequest true "Statistic request parameters"
// @Success      200  {object}  handlers.RespStatistic
// @Router       /api/v1/admin/get_statistic [post]
func ApiGetStatistic(svc StatisticsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statistics.StatisticRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := svc.GetStatistic(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      List Webhook Events (Admin)
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     AdminToken
// @Param        request body notification_log.ListRequest true "Filters and pagination"
// @Success      200  {object}  handlers.RespListWebhookEvents
// @Router       /api/v1/admin/list_webhook_events [post]
func ApiListWebhookEvents(svc WebhookEventLister) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req notification_log.ListRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := svc.List(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// AdminServices groups the admin dependencies so route registration stays
// readable.
type AdminServices struct {
	Subscriptions SubscriptionAdmin
	Promo         PromoAdmin
	Statistics    StatisticsService
	WebhookEvents WebhookEventLister
}

func RegisterAdminRoutes(r gin.IRouter, s AdminServices) {
	r.POST("/scan_subscriptions", ApiScanSubscriptions(s.Subscriptions))
	r.POST("/set_subscription", ApiSetSubscription(s.Subscriptions))
	r.POST("/sweep_expired", ApiSweepExpired(s.Subscriptions))
	r.POST("/create_promo_code", ApiCreatePromoCode(s.Promo))
	r.POST("/list_promo_codes", ApiListPromoCodes(s.Promo))
	r.POST("/set_promo_code_active", ApiSetPromoCodeActive(s.Promo))
	r.GET("/list_promo_redemptions", ApiListPromoRedemptions(s.Promo))
	r.POST("/get_statistic", ApiGetStatistic(s.Statistics))
	r.POST("/list_webhook_events", ApiListWebhookEvents(s.WebhookEvents))
}
