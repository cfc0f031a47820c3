package model

import "time"

type ProductType string

const (
	ProductTypeProduct      ProductType = "product"
	ProductTypeSubscription ProductType = "subscription"
)

type ProductSubtype string

const (
	SubtypeStandard        ProductSubtype = "standard"
	SubtypeDigitalFile     ProductSubtype = "digital_file"
	SubtypeActivationCodes ProductSubtype = "activation_codes"
)

// Product is a sellable item in a tenant's catalog. For the activation_codes
// subtype, stock is always derived from len(ActivationCodes); codes move to
// ActivationCodesUsed exactly once, atomically with the sale approval.
type Product struct {
	ID       string
	TenantID string
	Name     string
	// Price in the smallest currency unit (centavos) to avoid float errors.
	Price          int64
	DiscountPrice  int64
	OfferExpiresAt *time.Time

	Type    ProductType
	Subtype ProductSubtype

	Description         string
	ActivationCodes     []string
	ActivationCodesUsed []string

	IsTelegramGroupAccess bool
	TelegramGroupID       int64
	DurationDays          int // 0 means lifetime for subscriptions

	CreatedAt time.Time
	UpdatedAt time.Time
}

// EffectivePrice applies the discount while the offer window is open.
func (p *Product) EffectivePrice(ref time.Time) int64 {
	if p.DiscountPrice > 0 && p.OfferExpiresAt != nil && p.OfferExpiresAt.After(ref) {
		return p.DiscountPrice
	}
	return p.Price
}

// Stock reports units available for sale. Only the activation_codes subtype
// has finite stock in this core.
func (p *Product) Stock() int {
	if p.Subtype == SubtypeActivationCodes {
		return len(p.ActivationCodes)
	}
	return -1
}

// Available reports whether the product can currently be sold.
func (p *Product) Available() bool {
	if p.Subtype == SubtypeActivationCodes {
		return len(p.ActivationCodes) > 0
	}
	return true
}
