package quota

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fatflowers/lingobill/internal/app/service/subscription"
	models "github.com/fatflowers/lingobill/internal/models"
	"github.com/fatflowers/lingobill/internal/platform/db/dbtest"
	"github.com/fatflowers/lingobill/pkg/clock"
	"github.com/fatflowers/lingobill/pkg/tool"
	types "github.com/fatflowers/lingobill/pkg/types"
)

var (
	testNow        = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	testMonthStart = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
)

type fixture struct {
	db   *gorm.DB
	subs *subscription.Service
	svc  *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	clk := clock.Fixed(testNow)
	subs := subscription.NewService(db, dbtest.Logger(), clk)
	return &fixture{db: db, subs: subs, svc: NewService(db, dbtest.Logger(), subs, clk, Policies{})}
}

func (f *fixture) setTier(t *testing.T, userID string, tier types.Tier, expiresAt *time.Time) {
	t.Helper()
	_, err := f.subs.UpsertSubscription(context.Background(), userID, subscription.Patch{Tier: &tier, ExpiresAt: expiresAt}, types.SubscriptionChangeReasonAdmin)
	require.NoError(t, err)
}

func (f *fixture) seedUpload(t *testing.T, userID string, seconds int, at time.Time) {
	t.Helper()
	require.NoError(t, f.db.Create(&models.UploadUsage{ID: tool.GenerateUUIDV7(), UserID: userID, DurationSeconds: seconds, UploadedAt: at}).Error)
}

func (f *fixture) seedVocal(t *testing.T, userID string, n int, at time.Time) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, f.db.Create(&models.VocalExerciseCompletion{ID: tool.GenerateUUIDV7(), UserID: userID, VideoID: "v", CompletedAt: at}).Error)
	}
}

func TestCanUserUploadVideo_FreeVideoTooLongRegardlessOfUsage(t *testing.T) {
	f := newFixture(t)

	d := f.svc.CanUserUploadVideo(context.Background(), "u1", 601)
	require.False(t, d.Allowed)
	require.Equal(t, CodeVideoTooLong, d.Code)
	require.Equal(t, 600, d.Usage.MaxVideoSeconds)
	require.Equal(t, 2, d.Usage.UploadsLimit)
}

func TestCanUserUploadVideo_ThirdFreeUploadDenied(t *testing.T) {
	f := newFixture(t)
	f.seedUpload(t, "u1", 60, testMonthStart.Add(time.Hour))
	f.seedUpload(t, "u1", 60, testNow.Add(-time.Hour))

	d := f.svc.CanUserUploadVideo(context.Background(), "u1", 60)
	require.False(t, d.Allowed)
	require.Equal(t, CodeUploadLimit, d.Code)
	require.Equal(t, 2, d.Usage.UploadsUsed)
	require.Equal(t, 2, d.Usage.UploadsLimit)
	require.Equal(t, 120, d.Usage.DurationSecondsUsed)
}

func TestCanUserUploadVideo_PreviousMonthIgnored(t *testing.T) {
	f := newFixture(t)
	f.seedUpload(t, "u1", 600, testMonthStart.Add(-time.Second))
	f.seedUpload(t, "u1", 600, testMonthStart.AddDate(0, -1, 0))

	d := f.svc.CanUserUploadVideo(context.Background(), "u1", 600)
	require.True(t, d.Allowed)
	require.Equal(t, 0, d.Usage.UploadsUsed)
	require.Equal(t, testMonthStart, d.Usage.PeriodStart)
}

func TestCanUserUploadVideo_PremiumDurationCap(t *testing.T) {
	f := newFixture(t)
	f.setTier(t, "u1", types.TierPremium, nil)
	f.seedUpload(t, "u1", 8800, testNow.Add(-time.Hour))

	d := f.svc.CanUserUploadVideo(context.Background(), "u1", 300)
	require.False(t, d.Allowed)
	require.Equal(t, CodeDurationLimit, d.Code)
	require.Equal(t, 9000, d.Usage.DurationSecondsLimit)

	d = f.svc.CanUserUploadVideo(context.Background(), "u1", 200)
	require.True(t, d.Allowed)
	require.Equal(t, 900, d.Usage.MaxVideoSeconds)
}

func TestCanUserUploadVideo_ExpiredPromoUsesFreeLimits(t *testing.T) {
	f := newFixture(t)
	past := testNow.AddDate(0, 0, -1)
	f.setTier(t, "u1", types.TierPromo, &past)

	d := f.svc.CanUserUploadVideo(context.Background(), "u1", 700)
	require.False(t, d.Allowed)
	require.Equal(t, types.TierFree, d.Usage.Tier)
}

func TestCanUserDoVocalExercise_PremiumUnlimited(t *testing.T) {
	f := newFixture(t)
	f.setTier(t, "u1", types.TierPremium, nil)
	f.seedVocal(t, "u1", 12, testNow.Add(-time.Hour))

	d := f.svc.CanUserDoVocalExercise(context.Background(), "u1")
	require.Equal(t, VocalDecision{Allowed: true, Count: 0, Limit: -1}, d)
}

func TestCanUserDoVocalExercise_FreeLimit(t *testing.T) {
	f := newFixture(t)
	f.seedVocal(t, "u1", 4, testNow.Add(-time.Hour))

	d := f.svc.CanUserDoVocalExercise(context.Background(), "u1")
	require.True(t, d.Allowed)
	require.Equal(t, 4, d.Count)
	require.Equal(t, 5, d.Limit)

	f.seedVocal(t, "u1", 1, testNow.Add(-time.Minute))
	d = f.svc.CanUserDoVocalExercise(context.Background(), "u1")
	require.False(t, d.Allowed)
	require.Equal(t, 5, d.Count)
}

func TestGetQuotaStatus(t *testing.T) {
	f := newFixture(t)
	f.setTier(t, "u1", types.TierPromo, nil)
	f.seedUpload(t, "u1", 100, testNow.Add(-time.Hour))
	f.seedVocal(t, "u1", 3, testNow.Add(-time.Hour))

	up, err := f.svc.GetUploadQuotaStatus(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, types.TierPromo, up.Tier)
	require.Equal(t, 1, up.UploadsUsed)
	require.Equal(t, 10, up.UploadsLimit)
	require.Equal(t, 100, up.DurationSecondsUsed)

	vs, err := f.svc.GetVocalQuotaStatus(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, 3, vs.Count)
	require.Equal(t, types.Unlimited, vs.Limit)
}

func TestRecordUpload_ConcurrentRequestsNeverOverrun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := f.svc.RecordUpload(ctx, "u1", "video", 300)
			assert.NoError(t, err)
			if d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 2, allowed)
	var count int64
	require.NoError(t, f.db.Model(&models.UploadUsage{}).Where("user_id = ?", "u1").Count(&count).Error)
	require.Equal(t, int64(2), count)
}

func TestRecordUpload_DeniedWritesNothing(t *testing.T) {
	f := newFixture(t)

	d, err := f.svc.RecordUpload(context.Background(), "u1", "", 900)
	require.NoError(t, err)
	require.False(t, d.Allowed)

	var count int64
	require.NoError(t, f.db.Model(&models.UploadUsage{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestRecordUpload_ReturnsUpdatedUsage(t *testing.T) {
	f := newFixture(t)

	d, err := f.svc.RecordUpload(context.Background(), "u1", "vid-1", 120)
	require.NoError(t, err)
	require.True(t, d.Allowed)
	require.Equal(t, 1, d.Usage.UploadsUsed)
	require.Equal(t, 120, d.Usage.DurationSecondsUsed)

	var row models.UploadUsage
	require.NoError(t, f.db.Where("user_id = ?", "u1").First(&row).Error)
	require.Equal(t, "vid-1", *row.VideoID)
}

func TestRecordVocalExerciseCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.True(t, f.svc.RecordVocalExerciseCompletion(ctx, "u1", "v1"))
	}
	require.False(t, f.svc.RecordVocalExerciseCompletion(ctx, "u1", "v1"))
	require.False(t, f.svc.RecordVocalExerciseCompletion(ctx, "u1", ""))

	f.setTier(t, "u2", types.TierPremium, nil)
	for i := 0; i < 7; i++ {
		require.True(t, f.svc.RecordVocalExerciseCompletion(ctx, "u2", "v1"))
	}
}

type failingReader struct{}

func (failingReader) GetSubscription(context.Context, string) (*models.Subscription, error) {
	return nil, errors.New("connection refused")
}

func (failingReader) GetSubscriptionWithTx(context.Context, *gorm.DB, string) (*models.Subscription, error) {
	return nil, errors.New("connection refused")
}

func TestFailurePolicy(t *testing.T) {
	db := dbtest.Open(t)
	clk := clock.Fixed(testNow)

	closed := NewService(db, dbtest.Logger(), failingReader{}, clk, Policies{})
	up := closed.CanUserUploadVideo(context.Background(), "u1", 60)
	require.False(t, up.Allowed)
	require.Equal(t, CodeUnavailable, up.Code)
	require.Contains(t, up.Reason, "try again")

	vo := closed.CanUserDoVocalExercise(context.Background(), "u1")
	require.False(t, vo.Allowed)
	require.Equal(t, CodeUnavailable, vo.Code)

	open := NewService(db, dbtest.Logger(), failingReader{}, clk, Policies{Upload: types.FailOpen, Vocal: types.FailOpen})
	require.True(t, open.CanUserUploadVideo(context.Background(), "u1", 60).Allowed)
	require.True(t, open.CanUserDoVocalExercise(context.Background(), "u1").Allowed)

	_, err := closed.RecordUpload(context.Background(), "u1", "v", 60)
	require.Error(t, err)
}
