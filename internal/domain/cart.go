package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CartLine is one product entry in a store cart. Quantity is always > 0 while the line exists.
type CartLine struct {
	Product  ProductSnapshot `json:"product"`
	Quantity int             `json:"quantity"`
}

// LineTotal returns price x quantity for the line.
func (l CartLine) LineTotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// StoreCart holds the independent cart of one store.
type StoreCart struct {
	Lines          []CartLine          `json:"lines"`
	PromoCode      string              `json:"promoCode"`
	PromoApplied   bool                `json:"promoApplied"`
	DiscountAmount decimal.Decimal     `json:"discountAmount"`
	Discount       *DiscountDescriptor `json:"discount,omitempty"`
}

// NewStoreCart returns an empty cart with default promo state.
func NewStoreCart() *StoreCart {
	return &StoreCart{
		Lines:          []CartLine{},
		DiscountAmount: decimal.Zero,
	}
}

// Clone returns a deep copy of the cart.
func (c *StoreCart) Clone() *StoreCart {
	if c == nil {
		return NewStoreCart()
	}
	out := &StoreCart{
		Lines:          make([]CartLine, len(c.Lines)),
		PromoCode:      c.PromoCode,
		PromoApplied:   c.PromoApplied,
		DiscountAmount: c.DiscountAmount,
	}
	copy(out.Lines, c.Lines)
	if c.Discount != nil {
		d := *c.Discount
		out.Discount = &d
	}
	return out
}

// IsEmpty reports whether the cart has neither lines nor promo state.
func (c *StoreCart) IsEmpty() bool {
	return len(c.Lines) == 0 && !c.PromoApplied && c.PromoCode == ""
}

// LineIndex returns the index of the line for productID, or -1.
func (c *StoreCart) LineIndex(productID string) int {
	for i, l := range c.Lines {
		if l.Product.ID == productID {
			return i
		}
	}
	return -1
}

// RemoveAt drops the line at index i keeping the order of the others.
func (c *StoreCart) RemoveAt(i int) {
	c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
}

// ItemCount is the sum of all line quantities.
func (c *StoreCart) ItemCount() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// Subtotal is the sum of price x quantity over all lines.
func (c *StoreCart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range c.Lines {
		sum = sum.Add(l.LineTotal())
	}
	return sum
}

// ClearPromo resets promo fields and drops the held descriptor.
func (c *StoreCart) ClearPromo() {
	c.PromoCode = ""
	c.PromoApplied = false
	c.DiscountAmount = decimal.Zero
	c.Discount = nil
}

// Reconcile re-derives DiscountAmount from the current subtotal.
// An applied promo on an empty subtotal is removed so it has to be validated again.
func (c *StoreCart) Reconcile() {
	if !c.PromoApplied {
		c.DiscountAmount = decimal.Zero
		c.Discount = nil
		return
	}

	subtotal := c.Subtotal()
	if !subtotal.IsPositive() {
		c.ClearPromo()
		return
	}

	if c.Discount != nil {
		c.DiscountAmount = c.Discount.AmountFor(subtotal)
		return
	}
	c.DiscountAmount = ClampDiscount(c.DiscountAmount, subtotal)
}

// TotalAfterDiscount is round2(subtotal - discount), never below zero.
func (c *StoreCart) TotalAfterDiscount() decimal.Decimal {
	total := Round2(c.Subtotal().Sub(c.DiscountAmount))
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// NormalizeCode trims whitespace and upper-cases a promo code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Round2 rounds to currency precision.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ClampDiscount bounds amount to [0, subtotal].
func ClampDiscount(amount, subtotal decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() || !subtotal.IsPositive() {
		return decimal.Zero
	}
	return decimal.Min(amount, subtotal)
}
