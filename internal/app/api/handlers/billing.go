package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/fatflowers/lingobill/internal/app/service/subscription"
	stripeplatform "github.com/fatflowers/lingobill/internal/platform/stripe"
	"github.com/fatflowers/lingobill/pkg/response"
)

type SessionURL struct {
	URL string `json:"url"`
}

// @Summary      Start Checkout
// @Description  Creates a Stripe Checkout session for the premium plan.
// @Tags         Billing
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  handlers.RespSessionURL
// @Router       /api/v1/billing/checkout [post]
func ApiCreateCheckout(subs SubscriptionReader, billing stripeplatform.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := currentUser(c)
		if uid == "" {
			return
		}
		ctx := c.Request.Context()
		sub, err := subs.GetSubscription(ctx, uid)
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		if subscription.HasActivePremium(sub, time.Now()) {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "already subscribed"))
			return
		}
		url, err := billing.CreateCheckoutSession(ctx, stripeplatform.CheckoutInput{UserID: uid, CustomerID: lo.FromPtr(sub.StripeCustomerID)})
		if err != nil {
			writeBillingError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(SessionURL{URL: url}))
	}
}

// @Summary      Open Billing Portal
// @Description  Creates a Stripe customer portal session for a user with billing set up.
// @Tags         Billing
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  handlers.RespSessionURL
// @Router       /api/v1/billing/portal [post]
func ApiCreatePortal(subs SubscriptionReader, billing stripeplatform.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := currentUser(c)
		if uid == "" {
			return
		}
		sub, err := subs.GetSubscription(c.Request.Context(), uid)
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		customerID := lo.FromPtr(sub.StripeCustomerID)
		if customerID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "no billing account"))
			return
		}
		url, err := billing.CreatePortalSession(c.Request.Context(), customerID)
		if err != nil {
			writeBillingError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(SessionURL{URL: url}))
	}
}

func writeBillingError(c *gin.Context, err error) {
	_ = c.Error(err)
	if errors.Is(err, stripeplatform.ErrNotConfigured) {
		c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, "billing is not available"))
		return
	}
	c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, "billing provider error"))
}

func RegisterBillingRoutes(r gin.IRouter, subs SubscriptionReader, billing stripeplatform.Client) {
	r.POST("/billing/checkout", ApiCreateCheckout(subs, billing))
	r.POST("/billing/portal", ApiCreatePortal(subs, billing))
}
