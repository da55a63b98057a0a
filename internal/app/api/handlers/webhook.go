package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/lingobill/internal/app/service/webhook"
	"github.com/fatflowers/lingobill/pkg/logctx"
)

const (
	HeaderStripeSignature = "Stripe-Signature"
	maxWebhookBodyBytes   = 65536
)

type WebhookAck struct {
	Received bool   `json:"received"`
	Status   string `json:"status,omitempty"`
}

type WebhookError struct {
	Error string `json:"error"`
}

// @Summary      Stripe Webhook
// @Description  Verifies the Stripe-Signature header and reconciles the subscription store. Every parsed event is acknowledged with 200 so the provider does not retry.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Param        Stripe-Signature header string true "Stripe signature"
// @Param        payload body object true "Stripe event"
// @Success      200  {object}  handlers.WebhookAck
// @Failure      400  {object}  handlers.WebhookError
// @Failure      500  {object}  handlers.WebhookError
// @Router       /api/v2/payment/webhook/stripe [post]
func ApiStripeWebhook(h WebhookHandler, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		lg := logctx.FromGin(c, log)
		payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes))
		if err != nil {
			lg.Warnw("webhook_stripe_body_rejected", "err", err)
			c.JSON(http.StatusBadRequest, WebhookError{Error: "unreadable body"})
			return
		}

		out, err := h.Handle(c.Request.Context(), payload, c.GetHeader(HeaderStripeSignature))
		switch {
		case err == nil:
			c.JSON(http.StatusOK, WebhookAck{Received: true, Status: string(out.Status)})
		case errors.Is(err, webhook.ErrMissingSignature), errors.Is(err, webhook.ErrInvalidSignature):
			c.JSON(http.StatusBadRequest, WebhookError{Error: "invalid signature"})
		case errors.Is(err, webhook.ErrMalformedEvent):
			c.JSON(http.StatusBadRequest, WebhookError{Error: "malformed event"})
		case errors.Is(err, webhook.ErrNotConfigured):
			c.JSON(http.StatusInternalServerError, WebhookError{Error: "webhook not configured"})
		default:
			// the reconciler already reported this failure
			c.JSON(http.StatusInternalServerError, WebhookError{Error: "internal error"})
		}
	}
}

func RegisterPaymentV2Routes(r gin.IRouter, h WebhookHandler, log *zap.SugaredLogger) {
	r.POST("/webhook/stripe", ApiStripeWebhook(h, log))
}
