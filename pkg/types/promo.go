package types

type PromoCodeType string

const (
	PromoCodeTypeDuration  PromoCodeType = "duration"
	PromoCodeTypeUnlimited PromoCodeType = "unlimited"
)

func (t PromoCodeType) Valid() bool {
	return t == PromoCodeTypeDuration || t == PromoCodeTypeUnlimited
}
