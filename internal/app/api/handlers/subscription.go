package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/fatflowers/lingobill/internal/app/service/quota"
	"github.com/fatflowers/lingobill/pkg/response"
	"github.com/fatflowers/lingobill/pkg/types"
)

// SubscriptionOverview is everything the account screen renders in one call.
type SubscriptionOverview struct {
	Subscription *types.UserSubscriptionInfo `json:"subscription"`
	Upload       *quota.UploadStatus         `json:"upload"`
	Vocal        *quota.VocalStatus          `json:"vocal"`
}

// @Summary      Get Subscription
// @Description  Returns the caller's effective tier and status. Users without a row are free/active.
// @Tags         Subscription
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/subscription [get]
func ApiGetSubscription(subs SubscriptionReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := currentUser(c)
		if uid == "" {
			return
		}
		info, err := subs.GetUserSubscription(c.Request.Context(), uid)
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(info))
	}
}

// @Summary      Get Subscription Overview
// @Description  Subscription plus upload and vocal quota status, fetched concurrently.
// @Tags         Subscription
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  handlers.RespSubscriptionOverview
// @Router       /api/v1/subscription/overview [get]
func ApiGetSubscriptionOverview(subs SubscriptionReader, q QuotaService) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := currentUser(c)
		if uid == "" {
			return
		}
		var out SubscriptionOverview
		g, ctx := errgroup.WithContext(c.Request.Context())
		g.Go(func() (err error) {
			out.Subscription, err = subs.GetUserSubscription(ctx, uid)
			return err
		})
		g.Go(func() (err error) {
			out.Upload, err = q.GetUploadQuotaStatus(ctx, uid)
			return err
		})
		g.Go(func() (err error) {
			out.Vocal, err = q.GetVocalQuotaStatus(ctx, uid)
			return err
		})
		if err := g.Wait(); err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(&out))
	}
}

func RegisterSubscriptionRoutes(r gin.IRouter, subs SubscriptionReader, q QuotaService) {
	r.GET("/subscription", ApiGetSubscription(subs))
	r.GET("/subscription/overview", ApiGetSubscriptionOverview(subs, q))
}
