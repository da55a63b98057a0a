package promo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/lingobill/internal/app/service/subscription"
	models "github.com/fatflowers/lingobill/internal/models"
	"github.com/fatflowers/lingobill/pkg/clock"
	"github.com/fatflowers/lingobill/pkg/logctx"
	"github.com/fatflowers/lingobill/pkg/metrics"
	"github.com/fatflowers/lingobill/pkg/tool"
	types "github.com/fatflowers/lingobill/pkg/types"
)

type RejectReason string

const (
	RejectUnauthorized      RejectReason = "unauthorized"
	RejectMissingCode       RejectReason = "missing_code"
	RejectAlreadySubscribed RejectReason = "already_subscribed"
	RejectInvalidCode       RejectReason = "invalid_code"
	RejectLimitReached      RejectReason = "limit_reached"
	RejectExpired           RejectReason = "expired"
	RejectAlreadyRedeemed   RejectReason = "already_redeemed"
)

var rejectMessages = map[RejectReason]string{
	RejectUnauthorized:      "You must be signed in to redeem a promo code.",
	RejectMissingCode:       "Please enter a promo code.",
	RejectAlreadySubscribed: "You already have an active premium subscription.",
	RejectInvalidCode:       "Invalid promo code.",
	RejectLimitReached:      "This promo code has reached its usage limit.",
	RejectExpired:           "This promo code has expired.",
	RejectAlreadyRedeemed:   "You have already redeemed this promo code.",
}

// RedeemResult is the outcome of one redemption attempt. Business rejections
// are results with Success=false, never errors.
type RedeemResult struct {
	Success   bool         `json:"success"`
	Message   string       `json:"message"`
	ExpiresAt *time.Time   `json:"expiresAt,omitempty"`
	Reason    RejectReason `json:"reason,omitempty"`
}

func reject(reason RejectReason) *RedeemResult {
	return &RedeemResult{Message: rejectMessages[reason], Reason: reason}
}

// rejection aborts the redemption transaction with a business reason.
type rejection struct{ reason RejectReason }

func (r *rejection) Error() string { return "promo rejected: " + string(r.reason) }

type Service struct {
	db    *gorm.DB
	log   *zap.SugaredLogger
	subs  *subscription.Service
	clock clock.Clock
}

func NewService(db *gorm.DB, log *zap.SugaredLogger, subs *subscription.Service, clk clock.Clock) *Service {
	return &Service{db: db, log: log, subs: subs, clock: clk}
}

var Module = fx.Options(fx.Provide(NewService))

// Redeem validates code for userID and, when valid, grants the promo tier.
// The usage counter increment, the redemption record and the subscription
// upsert commit together; the increment is conditional so concurrent
// redemptions can never push current_uses past max_uses.
func (s *Service) Redeem(ctx context.Context, userID, rawCode string) (*RedeemResult, error) {
	res, err := s.redeem(ctx, userID, rawCode)
	switch {
	case err != nil:
		metrics.Inc(metrics.PromoRedemptions, "error")
	case res.Success:
		metrics.Inc(metrics.PromoRedemptions, "success")
	default:
		metrics.Inc(metrics.PromoRedemptions, string(res.Reason))
	}
	return res, err
}

func (s *Service) redeem(ctx context.Context, userID, rawCode string) (*RedeemResult, error) {
	lg := logctx.FromCtx(ctx, s.log)
	if userID == "" {
		return reject(RejectUnauthorized), nil
	}
	code := tool.NormalizePromoCode(rawCode)
	if code == "" {
		return reject(RejectMissingCode), nil
	}
	now := s.clock.Now()

	sub, err := s.subs.GetSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	if subscription.HasActivePremium(sub, now) {
		return reject(RejectAlreadySubscribed), nil
	}

	var promo models.PromoCode
	err = s.db.WithContext(ctx).Where("code = ? AND active = ?", code, true).First(&promo).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		lg.Infow("promo_rejected", "code", code, "reason", RejectInvalidCode)
		return reject(RejectInvalidCode), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get promo code: %w", err)
	}
	if promo.Exhausted() {
		return reject(RejectLimitReached), nil
	}
	if promo.ExpiredAt(now) {
		return reject(RejectExpired), nil
	}

	expiresAt := grantExpiry(&promo, now)
	var change *subscription.Change
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Serialise redemptions per user: two codes redeemed at once must not
		// both pass the eligibility check below.
		cur, err := s.subs.LockWithTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		if subscription.HasActivePremium(cur, now) {
			return &rejection{RejectAlreadySubscribed}
		}

		var redeemed int64
		if err := tx.Model(&models.PromoRedemption{}).
			Where("promo_code_id = ? AND user_id = ?", promo.ID, userID).
			Count(&redeemed).Error; err != nil {
			return fmt.Errorf("failed to check redemption: %w", err)
		}
		if redeemed > 0 {
			return &rejection{RejectAlreadyRedeemed}
		}

		upd := tx.Model(&models.PromoCode{}).
			Where("id = ? AND active = ? AND (max_uses IS NULL OR current_uses < max_uses) AND (expires_at IS NULL OR expires_at > ?)", promo.ID, true, now).
			UpdateColumn("current_uses", gorm.Expr("current_uses + 1"))
		if upd.Error != nil {
			return fmt.Errorf("failed to increment promo usage: %w", upd.Error)
		}
		if upd.RowsAffected == 0 {
			return &rejection{s.whyNotIncremented(ctx, tx, promo.ID, now)}
		}

		if err := tx.Create(&models.PromoRedemption{
			ID:          tool.GenerateUUIDV7(),
			PromoCodeID: promo.ID,
			UserID:      userID,
			Code:        promo.Code,
			RedeemedAt:  now,
			ExpiresAt:   expiresAt,
		}).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return &rejection{RejectAlreadyRedeemed}
			}
			return fmt.Errorf("failed to record redemption: %w", err)
		}

		tier, status := types.TierPromo, types.SubscriptionStatusActive
		change, err = s.subs.UpsertWithTx(ctx, tx, userID, subscription.Patch{
			Tier:           &tier,
			Status:         &status,
			PromoCode:      &promo.Code,
			ExpiresAt:      expiresAt,
			ClearExpiresAt: expiresAt == nil,
		})
		return err
	})

	var rej *rejection
	if errors.As(err, &rej) {
		lg.Infow("promo_rejected", "code", code, "reason", rej.reason)
		return reject(rej.reason), nil
	}
	if err != nil {
		lg.Errorw("promo_redeem_failed", "code", code, "err", err)
		return nil, err
	}

	s.subs.RecordChange(ctx, change, types.SubscriptionChangeReasonPromo, map[string]interface{}{"promo_code": promo.Code})
	lg.Infow("promo_redeemed", "code", promo.Code, "type", promo.Type, "expires_at", expiresAt)
	return &RedeemResult{
		Success:   true,
		Message:   successMessage(&promo),
		ExpiresAt: expiresAt,
	}, nil
}

// whyNotIncremented explains a conditional increment that matched no row.
func (s *Service) whyNotIncremented(ctx context.Context, tx *gorm.DB, id string, now time.Time) RejectReason {
	var cur models.PromoCode
	if err := tx.WithContext(ctx).Where("id = ?", id).First(&cur).Error; err != nil || !cur.Active {
		return RejectInvalidCode
	}
	if cur.ExpiredAt(now) {
		return RejectExpired
	}
	return RejectLimitReached
}

// grantExpiry is nil for lifetime grants.
func grantExpiry(p *models.PromoCode, now time.Time) *time.Time {
	if p.Type == types.PromoCodeTypeUnlimited {
		return nil
	}
	t := now.AddDate(0, p.DurationMonths, 0)
	return &t
}

// DurationDescription is "lifetime" or "N month(s)".
func DurationDescription(p *models.PromoCode) string {
	if p.Type == types.PromoCodeTypeUnlimited {
		return "lifetime"
	}
	if p.DurationMonths == 1 {
		return "1 month"
	}
	return fmt.Sprintf("%d months", p.DurationMonths)
}

func successMessage(p *models.PromoCode) string {
	if p.Type == types.PromoCodeTypeUnlimited {
		return "Promo code applied! You now have lifetime premium access."
	}
	return fmt.Sprintf("Promo code applied! You now have premium access for %s.", DurationDescription(p))
}
