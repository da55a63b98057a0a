package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	models "github.com/fatflowers/lingobill/internal/models"
	"github.com/fatflowers/lingobill/pkg/clock"
	"github.com/fatflowers/lingobill/pkg/logctx"
	"github.com/fatflowers/lingobill/pkg/tool"
	types "github.com/fatflowers/lingobill/pkg/types"
)

type Service struct {
	db    *gorm.DB
	log   *zap.SugaredLogger
	clock clock.Clock
}

func NewService(db *gorm.DB, log *zap.SugaredLogger, clk clock.Clock) *Service {
	return &Service{db: db, log: log, clock: clk}
}

// Patch lists the columns an upsert writes. Nil fields are left untouched on
// an existing row and take the free/active default on a new one.
type Patch struct {
	Tier                 *types.Tier
	Status               *types.SubscriptionStatus
	ExpiresAt            *time.Time
	ClearExpiresAt       bool
	StripeCustomerID     *string
	StripeSubscriptionID *string
	PromoCode            *string
	ClearPromoCode       bool
}

func (p Patch) columns() []string {
	var cols []string
	if p.Tier != nil {
		cols = append(cols, "tier")
	}
	if p.Status != nil {
		cols = append(cols, "status")
	}
	if p.ExpiresAt != nil || p.ClearExpiresAt {
		cols = append(cols, "expires_at")
	}
	if p.StripeCustomerID != nil {
		cols = append(cols, "stripe_customer_id")
	}
	if p.StripeSubscriptionID != nil {
		cols = append(cols, "stripe_subscription_id")
	}
	if p.PromoCode != nil || p.ClearPromoCode {
		cols = append(cols, "promo_code")
	}
	return cols
}

func (p Patch) apply(m *models.Subscription) {
	if p.Tier != nil {
		m.Tier = *p.Tier
	}
	if p.Status != nil {
		m.Status = *p.Status
	}
	if p.ClearExpiresAt {
		m.ExpiresAt = nil
	} else if p.ExpiresAt != nil {
		m.ExpiresAt = p.ExpiresAt
	}
	if p.StripeCustomerID != nil {
		m.StripeCustomerID = p.StripeCustomerID
	}
	if p.StripeSubscriptionID != nil {
		m.StripeSubscriptionID = p.StripeSubscriptionID
	}
	if p.ClearPromoCode {
		m.PromoCode = nil
	} else if p.PromoCode != nil {
		m.PromoCode = p.PromoCode
	}
}

// Change is the before/after pair of one upsert. Before is nil when the row
// was created.
type Change struct {
	Before *models.Subscription
	After  *models.Subscription
}

// GetSubscription returns the stored row, or the free/active default when the
// user has none. It only fails on storage errors.
func (s *Service) GetSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	return s.getSubscription(ctx, s.db, userID)
}

// GetSubscriptionWithTx reads through an open transaction.
func (s *Service) GetSubscriptionWithTx(ctx context.Context, tx *gorm.DB, userID string) (*models.Subscription, error) {
	return s.getSubscription(ctx, tx, userID)
}

// LockWithTx locks the user's row FOR UPDATE for the rest of tx, creating the
// default free/active row first when the user has none. Writers that check
// the subscription before changing it take this lock so their checks
// serialise per user. A rolled-back tx leaves no row behind.
func (s *Service) LockWithTx(ctx context.Context, tx *gorm.DB, userID string) (*models.Subscription, error) {
	if userID == "" {
		return nil, fmt.Errorf("lock subscription: empty user id")
	}
	row := models.DefaultSubscription(userID)
	row.ID = tool.GenerateUUIDV7()
	if err := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to create subscription row: %w", err)
	}
	var sub models.Subscription
	if err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).First(&sub).Error; err != nil {
		return nil, fmt.Errorf("failed to lock subscription: %w", err)
	}
	return &sub, nil
}

func (s *Service) getSubscription(ctx context.Context, db *gorm.DB, userID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := db.WithContext(ctx).Where("user_id = ?", userID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.DefaultSubscription(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return &sub, nil
}

// FindByStripeSubscriptionID returns nil without error when no row matches.
func (s *Service) FindByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error) {
	if stripeSubscriptionID == "" {
		return nil, nil
	}
	var sub models.Subscription
	err := s.db.WithContext(ctx).Where("stripe_subscription_id = ?", stripeSubscriptionID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find subscription by stripe id: %w", err)
	}
	return &sub, nil
}

// GetUserSubscription returns the entitlement view with lazy expiry applied.
func (s *Service) GetUserSubscription(ctx context.Context, userID string) (*types.UserSubscriptionInfo, error) {
	sub, err := s.GetSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	return Info(sub, s.clock.Now()), nil
}

// UpsertSubscription writes only the patched columns of the user's row in one
// INSERT .. ON CONFLICT (user_id) statement. Concurrent writers are
// last-writer-wins per column.
func (s *Service) UpsertSubscription(ctx context.Context, userID string, patch Patch, reason types.SubscriptionChangeReason) (*models.Subscription, error) {
	var change *Change
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		change, err = s.UpsertWithTx(ctx, tx, userID, patch)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.RecordChange(ctx, change, reason, nil)
	return change.After, nil
}

// UpsertWithTx is UpsertSubscription inside the caller's transaction. The
// caller records the change once the transaction commits.
func (s *Service) UpsertWithTx(ctx context.Context, tx *gorm.DB, userID string, patch Patch) (*Change, error) {
	if userID == "" {
		return nil, fmt.Errorf("upsert subscription: empty user id")
	}

	var original models.Subscription
	err := tx.WithContext(ctx).Where("user_id = ?", userID).First(&original).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to get original subscription: %w", err)
	}
	var before *models.Subscription
	if original.ID != "" {
		cp := original
		before = &cp
	}

	row := models.DefaultSubscription(userID)
	row.ID = tool.GenerateUUIDV7()
	patch.apply(row)

	cols := append(patch.columns(), "updated_at")
	if err := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns(cols),
	}).Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to upsert subscription: %w", err)
	}

	var after models.Subscription
	if err := tx.WithContext(ctx).Where("user_id = ?", userID).First(&after).Error; err != nil {
		return nil, fmt.Errorf("failed to reload subscription: %w", err)
	}
	return &Change{Before: before, After: &after}, nil
}

// RecordChange asynchronously writes a subscription log; errors are logged
// but not returned.
func (s *Service) RecordChange(ctx context.Context, change *Change, reason types.SubscriptionChangeReason, extra map[string]interface{}) {
	if change == nil || change.After == nil {
		return
	}
	lg := logctx.FromCtx(ctx, s.log)
	lg.Infow("subscription_changed",
		"user_id", change.After.UserID,
		"reason", reason,
		"tier", change.After.Tier,
		"status", change.After.Status,
	)

	if extra == nil {
		extra = map[string]interface{}{}
	}
	if tid := logctx.TraceID(ctx); tid != "" {
		extra["trace_id"] = tid
	}
	go func(b, a *models.Subscription) {
		log := &models.SubscriptionLog{
			ID:     tool.GenerateUUIDV7(),
			UserID: a.UserID,
			Reason: reason,
			Before: datatypes.NewJSONType(b),
			After:  datatypes.NewJSONType(a),
			Extra:  datatypes.JSONMap(extra),
		}
		if err := s.db.Save(log).Error; err != nil {
			lg.Errorf("failed to save subscription log: %v", err)
		}
	}(change.Before, change.After)
}
