package quota

import (
	"github.com/fatflowers/lingobill/internal/app/service/subscription"
	types "github.com/fatflowers/lingobill/pkg/types"
)

// Limits are the monthly allowances of a tier. types.Unlimited disables a
// dimension.
type Limits struct {
	UploadsPerMonth         int `json:"uploads_per_month"`
	MaxVideoSeconds         int `json:"max_video_seconds"`
	DurationSecondsPerMonth int `json:"duration_seconds_per_month"`
	VocalExercisesPerMonth  int `json:"vocal_exercises_per_month"`
}

var (
	freeLimits = Limits{
		UploadsPerMonth:         2,
		MaxVideoSeconds:         600,
		DurationSecondsPerMonth: 1200,
		VocalExercisesPerMonth:  5,
	}
	premiumLimits = Limits{
		UploadsPerMonth:         10,
		MaxVideoSeconds:         900,
		DurationSecondsPerMonth: 9000,
		VocalExercisesPerMonth:  types.Unlimited,
	}
)

// LimitsFor returns the allowances of an effective tier. Promo grants premium
// limits.
func LimitsFor(tier types.Tier) Limits {
	if subscription.IsPremiumTier(tier) {
		return premiumLimits
	}
	return freeLimits
}
