package subscription

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	models "github.com/fatflowers/lingobill/internal/models"
	types "github.com/fatflowers/lingobill/pkg/types"
)

var scanColumns = []string{"user_id", "tier", "status", "expires_at", "stripe_customer_id", "stripe_subscription_id", "promo_code", "created_at", "updated_at"}

type ScanSubscriptionsRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ScanSubscriptionsResponse struct {
	Items []*models.Subscription `json:"items"`
	Total int64                  `json:"total"`
}

func (s *Service) ScanSubscriptions(ctx context.Context, req *ScanSubscriptionsRequest) (*ScanSubscriptionsResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	if err := types.Allowed(req.Filters, scanColumns...); err != nil {
		return nil, err
	}
	if req.SortBy != "" {
		if err := types.Allowed([]*types.CommonFilter{{Field: req.SortBy}}, scanColumns...); err != nil {
			return nil, fmt.Errorf("sort: %w", err)
		}
	}
	if req.Size <= 0 {
		req.Size = 10
	}
	if req.From < 0 {
		req.From = 0
	}

	base := s.db.WithContext(ctx).Model(&models.Subscription{})
	if len(req.Filters) > 0 {
		base = base.Where(clause.Where{Exprs: []clause.Expression{types.FiltersAnd(req.Filters)}})
	}
	base = base.Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count subscriptions: %w", err)
	}

	q := base.Limit(req.Size)
	if req.From > 0 {
		q = q.Offset(req.From)
	}
	if req.SortBy != "" {
		q = q.Order(clause.OrderBy{Columns: []clause.OrderByColumn{{Column: clause.Column{Name: req.SortBy}, Desc: req.SortOrder != "asc"}}})
	} else {
		q = q.Order("updated_at desc")
	}

	var rows []*models.Subscription
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return &ScanSubscriptionsResponse{Items: rows, Total: total}, nil
}

// SetSubscriptionRequest is an operator override of a user's tier.
type SetSubscriptionRequest struct {
	UserID     string                   `json:"user_id"`
	Tier       types.Tier               `json:"tier"`
	Status     types.SubscriptionStatus `json:"status"`
	ExpiresAt  *time.Time               `json:"expires_at"`
	OperatorID string                   `json:"operator_id"`
}

func (r *SetSubscriptionRequest) Validate() error {
	if r.UserID == "" || r.OperatorID == "" {
		return fmt.Errorf("missing user_id or operator_id")
	}
	if !r.Tier.Valid() {
		return fmt.Errorf("invalid tier %q", r.Tier)
	}
	if !r.Status.Valid() {
		return fmt.Errorf("invalid status %q", r.Status)
	}
	return nil
}

// SetSubscription overwrites tier, status and expiry. Billing ids and the
// promo code are kept.
func (s *Service) SetSubscription(ctx context.Context, req *SetSubscriptionRequest) (*models.Subscription, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	patch := Patch{
		Tier:           &req.Tier,
		Status:         &req.Status,
		ExpiresAt:      req.ExpiresAt,
		ClearExpiresAt: req.ExpiresAt == nil,
	}

	var change *Change
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		change, err = s.UpsertWithTx(ctx, tx, req.UserID, patch)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.RecordChange(ctx, change, types.SubscriptionChangeReasonAdmin, map[string]interface{}{"operator_id": req.OperatorID})
	return change.After, nil
}
