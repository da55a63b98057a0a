package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/lingobill/internal/app/service/subscription"
	models "github.com/fatflowers/lingobill/internal/models"
	"github.com/fatflowers/lingobill/pkg/clock"
	"github.com/fatflowers/lingobill/pkg/config"
	"github.com/fatflowers/lingobill/pkg/logctx"
	"github.com/fatflowers/lingobill/pkg/metrics"
	"github.com/fatflowers/lingobill/pkg/tool"
	types "github.com/fatflowers/lingobill/pkg/types"
)

// ErrLimitReached marks a completion refused because the monthly count is
// used up.
var ErrLimitReached = errors.New("quota limit reached")

type SubscriptionReader interface {
	GetSubscription(ctx context.Context, userID string) (*models.Subscription, error)
	GetSubscriptionWithTx(ctx context.Context, tx *gorm.DB, userID string) (*models.Subscription, error)
}

// Policies decide the answer when usage cannot be read.
type Policies struct {
	Upload types.FailurePolicy
	Vocal  types.FailurePolicy
}

type Service struct {
	db       *gorm.DB
	log      *zap.SugaredLogger
	subs     SubscriptionReader
	clock    clock.Clock
	policies Policies
}

func NewService(db *gorm.DB, log *zap.SugaredLogger, subs SubscriptionReader, clk clock.Clock, policies Policies) *Service {
	if policies.Upload == "" {
		policies.Upload = types.FailClosed
	}
	if policies.Vocal == "" {
		policies.Vocal = types.FailClosed
	}
	return &Service{db: db, log: log, subs: subs, clock: clk, policies: policies}
}

func newFromConfig(db *gorm.DB, log *zap.SugaredLogger, subs *subscription.Service, clk clock.Clock, cfg *config.Config) *Service {
	return NewService(db, log, subs, clk, Policies{Upload: cfg.Quota.UploadOnError, Vocal: cfg.Quota.VocalOnError})
}

var Module = fx.Options(fx.Provide(newFromConfig))

func (s *Service) effectiveTier(sub *models.Subscription, now time.Time) types.Tier {
	tier, _ := subscription.EffectiveTier(sub, now)
	return tier
}

// CanUserUploadVideo decides whether an upload of durationSeconds fits the
// user's monthly allowance. It never returns an error: storage failures are
// folded into the decision according to the upload failure policy.
func (s *Service) CanUserUploadVideo(ctx context.Context, userID string, durationSeconds int) UploadDecision {
	d := s.canUpload(ctx, userID, durationSeconds)
	metrics.Inc(metrics.QuotaDecisions, string(types.QuotaActionUpload), metrics.Bool(d.Allowed))
	return d
}

func (s *Service) canUpload(ctx context.Context, userID string, durationSeconds int) UploadDecision {
	now := s.clock.Now()
	periodStart := clock.MonthStart(now)

	sub, err := s.subs.GetSubscription(ctx, userID)
	if err != nil {
		return s.uploadFailure(ctx, userID, newUploadStatus(types.TierFree, freeLimits, periodStart), err)
	}
	tier := s.effectiveTier(sub, now)
	status := newUploadStatus(tier, LimitsFor(tier), periodStart)

	if d, ok := checkVideoLength(status, durationSeconds); !ok {
		return d
	}

	count, total, err := s.aggregateUploads(ctx, s.db, userID, periodStart)
	if err != nil {
		return s.uploadFailure(ctx, userID, status, err)
	}
	status.UploadsUsed, status.DurationSecondsUsed = count, total
	return evaluateUpload(status, durationSeconds)
}

func (s *Service) uploadFailure(ctx context.Context, userID string, status UploadStatus, err error) UploadDecision {
	logctx.FromCtx(ctx, s.log).Errorw("quota_check_failed", "action", types.QuotaActionUpload, "user_id", userID, "policy", s.policies.Upload, "err", err)
	if s.policies.Upload == types.FailOpen {
		return UploadDecision{Allowed: true, Usage: status}
	}
	return UploadDecision{Code: CodeUnavailable, Reason: retryReason, Usage: status}
}

// CanUserDoVocalExercise allows premium users unconditionally and free users
// while this month's completions are under the limit.
func (s *Service) CanUserDoVocalExercise(ctx context.Context, userID string) VocalDecision {
	d := s.canVocal(ctx, userID)
	metrics.Inc(metrics.QuotaDecisions, string(types.QuotaActionVocalExercise), metrics.Bool(d.Allowed))
	return d
}

func (s *Service) canVocal(ctx context.Context, userID string) VocalDecision {
	now := s.clock.Now()
	sub, err := s.subs.GetSubscription(ctx, userID)
	if err != nil {
		return s.vocalFailure(ctx, userID, freeLimits.VocalExercisesPerMonth, err)
	}
	lim := LimitsFor(s.effectiveTier(sub, now))
	if lim.VocalExercisesPerMonth == types.Unlimited {
		return evaluateVocal(VocalStatus{Limit: types.Unlimited})
	}
	count, err := s.countVocal(ctx, s.db, userID, clock.MonthStart(now))
	if err != nil {
		return s.vocalFailure(ctx, userID, lim.VocalExercisesPerMonth, err)
	}
	return evaluateVocal(VocalStatus{Count: count, Limit: lim.VocalExercisesPerMonth})
}

func (s *Service) vocalFailure(ctx context.Context, userID string, limit int, err error) VocalDecision {
	logctx.FromCtx(ctx, s.log).Errorw("quota_check_failed", "action", types.QuotaActionVocalExercise, "user_id", userID, "policy", s.policies.Vocal, "err", err)
	if s.policies.Vocal == types.FailOpen {
		return VocalDecision{Allowed: true, Limit: limit}
	}
	return VocalDecision{Code: CodeUnavailable, Reason: retryReason, Limit: limit}
}

// GetUploadQuotaStatus returns this month's upload usage for display.
func (s *Service) GetUploadQuotaStatus(ctx context.Context, userID string) (*UploadStatus, error) {
	now := s.clock.Now()
	sub, err := s.subs.GetSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	tier := s.effectiveTier(sub, now)
	status := newUploadStatus(tier, LimitsFor(tier), clock.MonthStart(now))
	status.UploadsUsed, status.DurationSecondsUsed, err = s.aggregateUploads(ctx, s.db, userID, status.PeriodStart)
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// GetVocalQuotaStatus returns this month's vocal exercise usage for display.
// Premium users see their real count against an unlimited limit.
func (s *Service) GetVocalQuotaStatus(ctx context.Context, userID string) (*VocalStatus, error) {
	now := s.clock.Now()
	sub, err := s.subs.GetSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	tier := s.effectiveTier(sub, now)
	status := &VocalStatus{Tier: tier, Limit: LimitsFor(tier).VocalExercisesPerMonth, PeriodStart: clock.MonthStart(now)}
	if status.Count, err = s.countVocal(ctx, s.db, userID, status.PeriodStart); err != nil {
		return nil, err
	}
	return status, nil
}

// RecordUpload re-runs the upload check and inserts the usage row in one
// transaction holding the user's usage lock, so concurrent uploads cannot
// overrun the monthly caps. A denied decision writes nothing; err is only set
// on storage failure.
func (s *Service) RecordUpload(ctx context.Context, userID, videoID string, durationSeconds int) (UploadDecision, error) {
	var decision UploadDecision
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()
		periodStart := clock.MonthStart(now)

		if err := s.lockUsage(ctx, tx, userID, now); err != nil {
			return err
		}
		sub, err := s.subs.GetSubscriptionWithTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		tier := s.effectiveTier(sub, now)
		status := newUploadStatus(tier, LimitsFor(tier), periodStart)
		if d, ok := checkVideoLength(status, durationSeconds); !ok {
			decision = d
			return nil
		}
		status.UploadsUsed, status.DurationSecondsUsed, err = s.aggregateUploads(ctx, tx, userID, periodStart)
		if err != nil {
			return err
		}
		decision = evaluateUpload(status, durationSeconds)
		if !decision.Allowed {
			return nil
		}

		row := &models.UploadUsage{
			ID:              tool.GenerateUUIDV7(),
			UserID:          userID,
			DurationSeconds: durationSeconds,
			UploadedAt:      now,
		}
		if videoID != "" {
			row.VideoID = &videoID
		}
		if err := tx.WithContext(ctx).Create(row).Error; err != nil {
			return fmt.Errorf("failed to insert upload usage: %w", err)
		}
		decision.Usage.UploadsUsed++
		decision.Usage.DurationSecondsUsed += durationSeconds
		return nil
	})
	metrics.Inc(metrics.QuotaDecisions, string(types.QuotaActionUpload), metrics.Bool(err == nil && decision.Allowed))
	if err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("record_upload_failed", "user_id", userID, "err", err)
		return UploadDecision{Code: CodeUnavailable, Reason: retryReason}, err
	}
	if decision.Allowed {
		logctx.FromCtx(ctx, s.log).Infow("upload_recorded", "user_id", userID, "video_id", videoID, "duration_seconds", durationSeconds)
	}
	return decision, nil
}

// RecordVocalExerciseCompletion appends a completion row. Free users are
// gated by the same lock as uploads so the monthly count cannot overrun.
// It reports whether the row was written; callers may ignore a false.
func (s *Service) RecordVocalExerciseCompletion(ctx context.Context, userID, videoID string) bool {
	err := s.recordVocal(ctx, userID, videoID)
	if err != nil {
		lg := logctx.FromCtx(ctx, s.log)
		if errors.Is(err, ErrLimitReached) {
			lg.Infow("vocal_completion_rejected", "user_id", userID, "video_id", videoID)
		} else {
			lg.Errorw("record_vocal_completion_failed", "user_id", userID, "video_id", videoID, "err", err)
		}
		return false
	}
	return true
}

func (s *Service) recordVocal(ctx context.Context, userID, videoID string) error {
	if userID == "" || videoID == "" {
		return fmt.Errorf("record vocal completion: missing user or video id")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()
		if err := s.lockUsage(ctx, tx, userID, now); err != nil {
			return err
		}
		sub, err := s.subs.GetSubscriptionWithTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		lim := LimitsFor(s.effectiveTier(sub, now))
		if lim.VocalExercisesPerMonth != types.Unlimited {
			count, err := s.countVocal(ctx, tx, userID, clock.MonthStart(now))
			if err != nil {
				return err
			}
			if count >= lim.VocalExercisesPerMonth {
				return ErrLimitReached
			}
		}
		row := &models.VocalExerciseCompletion{
			ID:          tool.GenerateUUIDV7(),
			UserID:      userID,
			VideoID:     videoID,
			CompletedAt: now,
		}
		if err := tx.WithContext(ctx).Create(row).Error; err != nil {
			return fmt.Errorf("failed to insert vocal completion: %w", err)
		}
		return nil
	})
}

// lockUsage takes the per-user row lock that serialises quota-gated inserts.
func (s *Service) lockUsage(ctx context.Context, tx *gorm.DB, userID string, now time.Time) error {
	lock := &models.UsageLock{UserID: userID, CreatedAt: now}
	if err := tx.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(lock).Error; err != nil {
		return fmt.Errorf("failed to create usage lock: %w", err)
	}
	if err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).First(lock).Error; err != nil {
		return fmt.Errorf("failed to lock usage: %w", err)
	}
	return nil
}

type uploadAggregate struct {
	Count int
	Total int
}

func (s *Service) aggregateUploads(ctx context.Context, db *gorm.DB, userID string, since time.Time) (int, int, error) {
	var agg uploadAggregate
	err := db.WithContext(ctx).Model(&models.UploadUsage{}).
		Select("COUNT(*) AS count, COALESCE(SUM(duration_seconds), 0) AS total").
		Where("user_id = ? AND uploaded_at >= ?", userID, since).
		Scan(&agg).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to aggregate uploads: %w", err)
	}
	return agg.Count, agg.Total, nil
}

func (s *Service) countVocal(ctx context.Context, db *gorm.DB, userID string, since time.Time) (int, error) {
	var count int64
	err := db.WithContext(ctx).Model(&models.VocalExerciseCompletion{}).
		Where("user_id = ? AND completed_at >= ?", userID, since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count vocal completions: %w", err)
	}
	return int(count), nil
}
