package quota

import (
	"fmt"
	"time"

	types "github.com/fatflowers/lingobill/pkg/types"
)

// Denial codes, stable for clients.
const (
	CodeInvalidDuration = "invalid_duration"
	CodeVideoTooLong    = "video_too_long"
	CodeUploadLimit     = "upload_limit_reached"
	CodeDurationLimit   = "duration_limit_reached"
	CodeVocalLimit      = "vocal_limit_reached"
	CodeUnavailable     = "quota_unavailable"
)

const retryReason = "we could not verify your quota right now, please try again in a moment"

// UploadStatus is the usage snapshot returned with every upload decision.
type UploadStatus struct {
	Tier                 types.Tier `json:"tier"`
	UploadsUsed          int        `json:"uploads_used"`
	UploadsLimit         int        `json:"uploads_limit"`
	DurationSecondsUsed  int        `json:"duration_seconds_used"`
	DurationSecondsLimit int        `json:"duration_seconds_limit"`
	MaxVideoSeconds      int        `json:"max_video_seconds"`
	PeriodStart          time.Time  `json:"period_start"`
}

type UploadDecision struct {
	Allowed bool   `json:"allowed"`
	Code    string `json:"code,omitempty"`
	Reason  string `json:"reason,omitempty"`
	// Usage holds limits only when the per-video cap rejected the request
	// before usage was aggregated.
	Usage UploadStatus `json:"usage"`
}

type VocalStatus struct {
	Tier        types.Tier `json:"tier"`
	Count       int        `json:"count"`
	Limit       int        `json:"limit"`
	PeriodStart time.Time  `json:"period_start"`
}

type VocalDecision struct {
	Allowed bool   `json:"allowed"`
	Code    string `json:"code,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Count   int    `json:"count"`
	Limit   int    `json:"limit"`
}

func newUploadStatus(tier types.Tier, lim Limits, periodStart time.Time) UploadStatus {
	return UploadStatus{
		Tier:                 tier,
		UploadsLimit:         lim.UploadsPerMonth,
		DurationSecondsLimit: lim.DurationSecondsPerMonth,
		MaxVideoSeconds:      lim.MaxVideoSeconds,
		PeriodStart:          periodStart,
	}
}

// checkVideoLength is the fail-fast step run before any aggregation.
func checkVideoLength(status UploadStatus, durationSeconds int) (UploadDecision, bool) {
	if durationSeconds <= 0 {
		return UploadDecision{
			Code:   CodeInvalidDuration,
			Reason: "video duration must be positive",
			Usage:  status,
		}, false
	}
	if status.MaxVideoSeconds != types.Unlimited && durationSeconds > status.MaxVideoSeconds {
		return UploadDecision{
			Code: CodeVideoTooLong,
			Reason: fmt.Sprintf("video is %s long, your %s plan allows videos up to %s",
				formatSeconds(durationSeconds), status.Tier, formatSeconds(status.MaxVideoSeconds)),
			Usage: status,
		}, false
	}
	return UploadDecision{}, true
}

// evaluateUpload applies the monthly count and duration caps to a snapshot
// whose used fields are filled in.
func evaluateUpload(status UploadStatus, durationSeconds int) UploadDecision {
	if status.UploadsLimit != types.Unlimited && status.UploadsUsed >= status.UploadsLimit {
		return UploadDecision{
			Code:   CodeUploadLimit,
			Reason: fmt.Sprintf("monthly upload limit reached (%d/%d)", status.UploadsUsed, status.UploadsLimit),
			Usage:  status,
		}
	}
	if status.DurationSecondsLimit != types.Unlimited && status.DurationSecondsUsed+durationSeconds > status.DurationSecondsLimit {
		return UploadDecision{
			Code: CodeDurationLimit,
			Reason: fmt.Sprintf("this upload would exceed your monthly video time: %s used of %s, %s requested",
				formatSeconds(status.DurationSecondsUsed), formatSeconds(status.DurationSecondsLimit), formatSeconds(durationSeconds)),
			Usage: status,
		}
	}
	return UploadDecision{Allowed: true, Usage: status}
}

func evaluateVocal(status VocalStatus) VocalDecision {
	if status.Limit == types.Unlimited {
		return VocalDecision{Allowed: true, Count: 0, Limit: types.Unlimited}
	}
	if status.Count >= status.Limit {
		return VocalDecision{
			Code:   CodeVocalLimit,
			Reason: fmt.Sprintf("monthly vocal exercise limit reached (%d/%d)", status.Count, status.Limit),
			Count:  status.Count,
			Limit:  status.Limit,
		}
	}
	return VocalDecision{Allowed: true, Count: status.Count, Limit: status.Limit}
}

func formatSeconds(sec int) string {
	if sec%60 == 0 {
		return fmt.Sprintf("%d min", sec/60)
	}
	return fmt.Sprintf("%dm%02ds", sec/60, sec%60)
}
