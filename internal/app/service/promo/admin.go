package promo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	models "github.com/fatflowers/lingobill/internal/models"
	"github.com/fatflowers/lingobill/pkg/logctx"
	"github.com/fatflowers/lingobill/pkg/tool"
	types "github.com/fatflowers/lingobill/pkg/types"
)

var (
	ErrCodeExists   = errors.New("promo code already exists")
	ErrCodeNotFound = errors.New("promo code not found")
)

var listColumns = []string{"code", "active", "type", "max_uses", "current_uses", "expires_at", "created_at"}

type CreateCodeRequest struct {
	Code           string              `json:"code"`
	Type           types.PromoCodeType `json:"type"`
	DurationMonths int                 `json:"duration_months"`
	MaxUses        *int                `json:"max_uses"`
	ExpiresAt      *time.Time          `json:"expires_at"`
	// Active defaults to true.
	Active *bool `json:"active"`
}

func (r *CreateCodeRequest) Validate() error {
	if tool.NormalizePromoCode(r.Code) == "" {
		return fmt.Errorf("code is required")
	}
	if !r.Type.Valid() {
		return fmt.Errorf("invalid type %q", r.Type)
	}
	if r.Type == types.PromoCodeTypeDuration && r.DurationMonths <= 0 {
		return fmt.Errorf("duration_months must be positive for duration codes")
	}
	if r.MaxUses != nil && *r.MaxUses < 0 {
		return fmt.Errorf("max_uses must not be negative")
	}
	return nil
}

func (s *Service) CreateCode(ctx context.Context, req *CreateCodeRequest) (*models.PromoCode, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	code := &models.PromoCode{
		ID:        tool.GenerateUUIDV7(),
		Code:      tool.NormalizePromoCode(req.Code),
		Active:    req.Active == nil || *req.Active,
		MaxUses:   req.MaxUses,
		ExpiresAt: req.ExpiresAt,
		Type:      req.Type,
	}
	if req.Type == types.PromoCodeTypeDuration {
		code.DurationMonths = req.DurationMonths
	}
	if err := s.db.WithContext(ctx).Create(code).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrCodeExists
		}
		return nil, fmt.Errorf("failed to create promo code: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("promo_code_created", "code", code.Code, "type", code.Type, "max_uses", code.MaxUses)
	return code, nil
}

type ListCodesRequest struct {
	Filters []*types.CommonFilter `json:"filters"`
	From    int                   `json:"from"`
	Size    int                   `json:"size"`
}

type ListCodesResponse struct {
	Items []*models.PromoCode `json:"items"`
	Total int64               `json:"total"`
}

func (s *Service) ListCodes(ctx context.Context, req *ListCodesRequest) (*ListCodesResponse, error) {
	if req == nil {
		req = &ListCodesRequest{}
	}
	if err := types.Allowed(req.Filters, listColumns...); err != nil {
		return nil, err
	}
	if req.Size <= 0 {
		req.Size = 20
	}
	if req.From < 0 {
		req.From = 0
	}

	base := s.db.WithContext(ctx).Model(&models.PromoCode{})
	if len(req.Filters) > 0 {
		base = base.Where(clause.Where{Exprs: []clause.Expression{types.FiltersAnd(req.Filters)}})
	}
	base = base.Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count promo codes: %w", err)
	}
	var rows []*models.PromoCode
	if err := base.Order("created_at desc").Order("code").Offset(req.From).Limit(req.Size).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list promo codes: %w", err)
	}
	return &ListCodesResponse{Items: rows, Total: total}, nil
}

// SetCodeActive enables or disables a code. Past redemptions are unaffected.
func (s *Service) SetCodeActive(ctx context.Context, rawCode string, active bool) (*models.PromoCode, error) {
	code := tool.NormalizePromoCode(rawCode)
	res := s.db.WithContext(ctx).Model(&models.PromoCode{}).Where("code = ?", code).UpdateColumns(map[string]interface{}{
		"active":     active,
		"updated_at": s.clock.Now(),
	})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update promo code: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrCodeNotFound
	}
	var out models.PromoCode
	if err := s.db.WithContext(ctx).Where("code = ?", code).First(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to reload promo code: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("promo_code_updated", "code", code, "active", active)
	return &out, nil
}

// ListRedemptions returns the redemptions of one user, newest first.
func (s *Service) ListRedemptions(ctx context.Context, userID string) ([]*models.PromoRedemption, error) {
	var rows []*models.PromoRedemption
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("redeemed_at desc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list redemptions: %w", err)
	}
	return rows, nil
}
