package statistics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/fatflowers/lingobill/internal/models"
	"github.com/fatflowers/lingobill/pkg/clock"
	"github.com/fatflowers/lingobill/pkg/types"
)

type StatisticType string

const (
	// Subscription state
	StatisticTypeTierDistribution   StatisticType = "tier_distribution"
	StatisticTypeActivePremiumCount StatisticType = "active_premium_count"

	// Usage
	StatisticTypeDailyUploadCount StatisticType = "daily_upload_count"
	StatisticTypeDailyVocalCount  StatisticType = "daily_vocal_count"

	// Promo codes
	StatisticTypeDailyRedemptionCount StatisticType = "daily_redemption_count"
	StatisticTypePromoCodeUsage       StatisticType = "promo_code_usage"
)

type StatisticDataItem struct {
	ID StatisticType `json:"id"`
}

// StatisticRequest asks for several series at once. From and To bound the
// daily series; zero values leave that side open.
type StatisticRequest struct {
	From      time.Time            `json:"from"`
	To        time.Time            `json:"to"`
	DataItems []*StatisticDataItem `json:"data_items"`
}

type StatisticResponseDataItem struct {
	Date   string `json:"date,omitempty"`
	Label  string `json:"label,omitempty"`
	Value  int64  `json:"value"`
	Value2 int64  `json:"value2,omitempty"`
}

type StatisticResponse struct {
	DataItems map[StatisticType][]StatisticResponseDataItem `json:"data_items"`
}

type Service struct {
	db    *gorm.DB
	clock clock.Clock
}

func New(db *gorm.DB, clk clock.Clock) *Service { return &Service{db: db, clock: clk} }

var Module = fx.Options(fx.Provide(New))

// dateExpr renders col as YYYY-MM-DD for the connected dialect.
func (s *Service) dateExpr(col string) string {
	if s.db.Dialector.Name() == "postgres" {
		return fmt.Sprintf("TO_CHAR(%s, 'YYYY-MM-DD')", col)
	}
	return fmt.Sprintf("substr(%s, 1, 10)", col)
}

func (s *Service) bounded(q *gorm.DB, col string, req *StatisticRequest) *gorm.DB {
	if !req.From.IsZero() {
		q = q.Where(col+" >= ?", req.From)
	}
	if !req.To.IsZero() {
		q = q.Where(col+" < ?", req.To)
	}
	return q
}

func (s *Service) getTierDistribution(ctx context.Context, _ *StatisticRequest) ([]StatisticResponseDataItem, error) {
	var results []StatisticResponseDataItem
	q := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Select("tier as label, count(*) as value").
		Where("status = ?", types.SubscriptionStatusActive).
		Group("tier").
		Order("tier")
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// getActivePremiumCount counts rows whose effective tier is premium right now.
func (s *Service) getActivePremiumCount(ctx context.Context, _ *StatisticRequest) ([]StatisticResponseDataItem, error) {
	var count int64
	q := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("status = ?", types.SubscriptionStatusActive).
		Where("tier IN ?", []types.Tier{types.TierPremium, types.TierPromo}).
		Where("expires_at IS NULL OR expires_at > ?", s.clock.Now())
	if err := q.Count(&count).Error; err != nil {
		return nil, err
	}
	return []StatisticResponseDataItem{{Value: count}}, nil
}

func (s *Service) getDailyUploadCount(ctx context.Context, req *StatisticRequest) ([]StatisticResponseDataItem, error) {
	var results []StatisticResponseDataItem
	day := s.dateExpr("uploaded_at")
	q := s.bounded(s.db.WithContext(ctx).Model(&models.UploadUsage{}), "uploaded_at", req).
		Select(day + " as date, count(*) as value, COALESCE(SUM(duration_seconds), 0) as value2").
		Group(day).
		Order("date desc")
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getDailyVocalCount(ctx context.Context, req *StatisticRequest) ([]StatisticResponseDataItem, error) {
	var results []StatisticResponseDataItem
	day := s.dateExpr("completed_at")
	q := s.bounded(s.db.WithContext(ctx).Model(&models.VocalExerciseCompletion{}), "completed_at", req).
		Select(day + " as date, count(*) as value").
		Group(day).
		Order("date desc")
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getDailyRedemptionCount(ctx context.Context, req *StatisticRequest) ([]StatisticResponseDataItem, error) {
	var results []StatisticResponseDataItem
	day := s.dateExpr("redeemed_at")
	q := s.bounded(s.db.WithContext(ctx).Model(&models.PromoRedemption{}), "redeemed_at", req).
		Select(day + " as date, code as label, count(*) as value").
		Group(day).
		Group("code").
		Order("date desc").
		Order("label")
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// getPromoCodeUsage reports current_uses against max_uses per code; Value2 is
// -1 for codes without a cap.
func (s *Service) getPromoCodeUsage(ctx context.Context, _ *StatisticRequest) ([]StatisticResponseDataItem, error) {
	var results []StatisticResponseDataItem
	q := s.db.WithContext(ctx).Model(&models.PromoCode{}).
		Select("code as label, current_uses as value, COALESCE(max_uses, -1) as value2").
		Order("code")
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getStatistic(ctx context.Context, req *StatisticRequest, item *StatisticDataItem) ([]StatisticResponseDataItem, error) {
	switch item.ID {
	case StatisticTypeTierDistribution:
		return s.getTierDistribution(ctx, req)
	case StatisticTypeActivePremiumCount:
		return s.getActivePremiumCount(ctx, req)
	case StatisticTypeDailyUploadCount:
		return s.getDailyUploadCount(ctx, req)
	case StatisticTypeDailyVocalCount:
		return s.getDailyVocalCount(ctx, req)
	case StatisticTypeDailyRedemptionCount:
		return s.getDailyRedemptionCount(ctx, req)
	case StatisticTypePromoCodeUsage:
		return s.getPromoCodeUsage(ctx, req)
	default:
		return nil, fmt.Errorf("invalid data item id: %s", item.ID)
	}
}

// GetStatistic computes every requested series concurrently. The first error
// aborts the whole request.
func (s *Service) GetStatistic(ctx context.Context, req *StatisticRequest) (*StatisticResponse, error) {
	results := make(map[StatisticType][]StatisticResponseDataItem)
	if req == nil {
		return &StatisticResponse{DataItems: results}, nil
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, item := range lo.Compact(req.DataItems) {
		g.Go(func() error {
			res, err := s.getStatistic(gctx, req, item)
			if err != nil {
				return err
			}
			mu.Lock()
			results[item.ID] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &StatisticResponse{DataItems: results}, nil
}
