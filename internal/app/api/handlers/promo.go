package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/lingobill/internal/app/service/promo"
	"github.com/fatflowers/lingobill/pkg/logctx"
)

const redeemFailedMessage = "Something went wrong while redeeming your code. Please try again."

type RedeemRequest struct {
	Code string `json:"code"`
}

// @Summary      Redeem Promo Code
// @Description  Grants promo tier access. Responds 401 without a signed-in user, 400 for a rejected code, 500 on storage failure.
// @Tags         Promo
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body RedeemRequest true "Promo code"
// @Success      200  {object}  promo.RedeemResult
// @Failure      400  {object}  promo.RedeemResult
// @Failure      401  {object}  promo.RedeemResult
// @Failure      429  {object}  promo.RedeemResult
// @Failure      500  {object}  promo.RedeemResult
// @Router       /api/v1/promo/redeem [post]
func ApiRedeemPromo(svc PromoRedeemer, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RedeemRequest
		// a malformed body is treated as an empty code
		_ = c.ShouldBindJSON(&req)

		uid := c.GetString(logctx.KeyUserID)
		res, err := svc.Redeem(c.Request.Context(), uid, req.Code)
		if err != nil {
			_ = c.Error(err)
			logctx.FromGin(c, log).Errorw("promo_redeem_failed", "err", err)
			c.JSON(http.StatusInternalServerError, &promo.RedeemResult{Message: redeemFailedMessage})
			return
		}
		switch {
		case res.Success:
			c.JSON(http.StatusOK, res)
		case res.Reason == promo.RejectUnauthorized:
			c.JSON(http.StatusUnauthorized, res)
		default:
			c.JSON(http.StatusBadRequest, res)
		}
	}
}

// DenyRedeemRateLimited is the rate limit rejection for the redeem route,
// shaped like a redemption result.
func DenyRedeemRateLimited(c *gin.Context) {
	c.JSON(http.StatusTooManyRequests, &promo.RedeemResult{Message: "Too many attempts. Please wait a minute and try again."})
}

func RegisterPromoRoutes(r gin.IRouter, svc PromoRedeemer, log *zap.SugaredLogger) {
	r.POST("/promo/redeem", ApiRedeemPromo(svc, log))
}
