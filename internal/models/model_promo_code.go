package models

import (
	"time"

	"github.com/fatflowers/lingobill/pkg/types"
)

// PromoCode grants promo tier access. CurrentUses only ever grows and never
// exceeds MaxUses; the promo service increments it with a conditional update.
type PromoCode struct {
	ID     string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Code   string `gorm:"column:code;type:varchar(64);not null;uniqueIndex" json:"code"`
	Active bool   `gorm:"column:active;not null" json:"active"`
	// MaxUses nil means no usage cap.
	MaxUses     *int                `gorm:"column:max_uses;default:null" json:"max_uses"`
	CurrentUses int                 `gorm:"column:current_uses;not null;default:0" json:"current_uses"`
	ExpiresAt   *time.Time          `gorm:"column:expires_at;default:null" json:"expires_at"`
	Type        types.PromoCodeType `gorm:"column:type;type:varchar(32);not null" json:"type"`
	// DurationMonths is only meaningful for duration codes.
	DurationMonths int       `gorm:"column:duration_months;not null;default:0" json:"duration_months"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (PromoCode) TableName() string {
	return "promo_codes"
}

// Exhausted reports whether the cap has been reached.
func (p *PromoCode) Exhausted() bool {
	return p.MaxUses != nil && p.CurrentUses >= *p.MaxUses
}

// ExpiredAt reports whether the code can no longer be redeemed at now.
func (p *PromoCode) ExpiredAt(now time.Time) bool {
	return p.ExpiresAt != nil && !p.ExpiresAt.After(now)
}
