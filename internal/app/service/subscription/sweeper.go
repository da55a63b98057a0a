package subscription

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	models "github.com/fatflowers/lingobill/internal/models"
	"github.com/fatflowers/lingobill/pkg/config"
	"github.com/fatflowers/lingobill/pkg/metrics"
	types "github.com/fatflowers/lingobill/pkg/types"
)

const sweepBatchSize = 200

// SweepExpired rewrites grants whose expiry has passed to free/expired so the
// stored rows match what EffectiveTier already reports. Reads never depend on
// it having run.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	now := s.clock.Now()
	var rows []*models.Subscription
	err := s.db.WithContext(ctx).
		Where("tier IN ? AND status = ? AND expires_at IS NOT NULL AND expires_at <= ?",
			[]types.Tier{types.TierPremium, types.TierPromo}, types.SubscriptionStatusActive, now).
		Limit(sweepBatchSize).
		Find(&rows).Error
	if err != nil {
		return 0, fmt.Errorf("failed to find expired subscriptions: %w", err)
	}

	swept := 0
	for _, row := range rows {
		var change *Change
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			// Recheck under the tx: a redemption or checkout may have extended it.
			var cur models.Subscription
			if err := tx.Where("id = ?", row.ID).First(&cur).Error; err != nil {
				return err
			}
			if HasActivePremium(&cur, now) || !IsPremiumTier(cur.Tier) {
				return nil
			}
			tier, status := types.TierFree, types.SubscriptionStatusExpired
			var err error
			change, err = s.UpsertWithTx(ctx, tx, cur.UserID, Patch{Tier: &tier, Status: &status})
			return err
		})
		if err != nil {
			return swept, fmt.Errorf("failed to sweep subscription %s: %w", row.UserID, err)
		}
		if change != nil {
			swept++
			s.RecordChange(ctx, change, types.SubscriptionChangeReasonSweep, nil)
		}
	}
	if swept > 0 {
		metrics.Add(metrics.SubscriptionsSwept, float64(swept))
	}
	return swept, nil
}

// Sweeper runs SweepExpired on a ticker for the lifetime of the app.
type Sweeper struct {
	svc      *Service
	log      *zap.SugaredLogger
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

func NewSweeper(svc *Service, log *zap.SugaredLogger, cfg *config.Config) *Sweeper {
	return &Sweeper{svc: svc, log: log, interval: cfg.Sweeper.Interval}
}

func (w *Sweeper) Start() {
	if w.interval <= 0 {
		w.log.Infow("subscription sweeper disabled")
		return
	}
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	go w.run()
}

func (w *Sweeper) run() {
	defer close(w.done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), w.interval)
			n, err := w.svc.SweepExpired(ctx)
			cancel()
			if err != nil {
				w.log.Errorw("subscription_sweep_failed", "err", err, "swept", n)
				continue
			}
			if n > 0 {
				w.log.Infow("subscription_sweep", "swept", n)
			}
		case <-w.stop:
			return
		}
	}
}

func (w *Sweeper) Stop(ctx context.Context) error {
	if w.stop == nil {
		return nil
	}
	close(w.stop)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func registerSweeper(lc fx.Lifecycle, w *Sweeper) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			w.Start()
			return nil
		},
		OnStop: w.Stop,
	})
}
