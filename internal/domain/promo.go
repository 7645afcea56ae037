package domain

import "github.com/shopspring/decimal"

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Valid reports whether t is a known discount type.
func (t DiscountType) Valid() bool {
	return t == DiscountPercentage || t == DiscountFixed
}

// DiscountDescriptor is what the promo validator returns for a valid code.
type DiscountDescriptor struct {
	Type  DiscountType    `json:"type"`
	Value decimal.Decimal `json:"value"`
}

// AmountFor computes the discount this descriptor grants on subtotal.
// The result is always within [0, subtotal].
func (d DiscountDescriptor) AmountFor(subtotal decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch d.Type {
	case DiscountPercentage:
		amount = Round2(subtotal.Mul(d.Value).Div(decimal.NewFromInt(100)))
	case DiscountFixed:
		amount = d.Value
	default:
		return decimal.Zero
	}
	return ClampDiscount(amount, subtotal)
}
