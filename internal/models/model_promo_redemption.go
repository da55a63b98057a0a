package models

import "time"

// PromoRedemption is the audit row of one successful redemption. A user can
// redeem a given code only once.
type PromoRedemption struct {
	ID          string     `gorm:"column:id;type:uuid;primary_key" json:"id"`
	PromoCodeID string     `gorm:"column:promo_code_id;type:uuid;not null;uniqueIndex:uniq_promo_code_user,priority:1" json:"promo_code_id"`
	UserID      string     `gorm:"column:user_id;type:varchar(64);not null;uniqueIndex:uniq_promo_code_user,priority:2;index" json:"user_id"`
	Code        string     `gorm:"column:code;type:varchar(64);not null" json:"code"`
	RedeemedAt  time.Time  `gorm:"column:redeemed_at;not null" json:"redeemed_at"`
	ExpiresAt   *time.Time `gorm:"column:expires_at;default:null" json:"expires_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (PromoRedemption) TableName() string {
	return "promo_redemptions"
}
