package models

import "time"

// UploadUsage is one upload counted against the monthly quota. Append-only.
type UploadUsage struct {
	ID              string    `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID          string    `gorm:"column:user_id;type:varchar(64);not null;index:idx_upload_user_time,priority:1" json:"user_id"`
	VideoID         *string   `gorm:"column:video_id;type:varchar(128);default:null" json:"video_id"`
	DurationSeconds int       `gorm:"column:duration_seconds;not null" json:"duration_seconds"`
	UploadedAt      time.Time `gorm:"column:uploaded_at;not null;index:idx_upload_user_time,priority:2" json:"uploaded_at"`
}

func (UploadUsage) TableName() string {
	return "upload_usages"
}

// VocalExerciseCompletion is one finished vocal exercise. Append-only.
type VocalExerciseCompletion struct {
	ID          string    `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID      string    `gorm:"column:user_id;type:varchar(64);not null;index:idx_vocal_user_time,priority:1" json:"user_id"`
	VideoID     string    `gorm:"column:video_id;type:varchar(128);not null" json:"video_id"`
	CompletedAt time.Time `gorm:"column:completed_at;not null;index:idx_vocal_user_time,priority:2" json:"completed_at"`
}

func (VocalExerciseCompletion) TableName() string {
	return "vocal_exercise_completions"
}

// UsageLock is a per-user row locked FOR UPDATE while a quota-gated usage
// record is checked and inserted.
type UsageLock struct {
	UserID    string    `gorm:"column:user_id;type:varchar(64);primary_key"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (UsageLock) TableName() string {
	return "usage_locks"
}
