package checkout

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vendlyapp/selfcheckout/internal/domain"
)

// BuildOrderDraft derives the order for storeID from a frozen cart snapshot.
// Lines with no product id, a non-positive quantity or a non-positive price are
// dropped. An order with no remaining items fails with ErrEmptyCart.
func BuildOrderDraft(storeID string, cart *domain.StoreCart) (domain.OrderDraft, error) {
	if cart == nil {
		return domain.OrderDraft{}, ErrEmptyCart
	}

	items := make([]domain.OrderItem, 0, len(cart.Lines))
	subtotal := decimal.Zero
	currency := ""
	for _, l := range cart.Lines {
		id := strings.TrimSpace(l.Product.ID)
		if id == "" || l.Quantity <= 0 || !l.Product.Price.IsPositive() {
			continue
		}
		items = append(items, domain.OrderItem{
			ProductID: id,
			Quantity:  l.Quantity,
			Price:     l.Product.Price,
		})
		subtotal = subtotal.Add(l.LineTotal())
		if currency == "" {
			currency = l.Product.Currency
		}
	}
	if len(items) == 0 {
		return domain.OrderDraft{}, ErrEmptyCart
	}

	discount := decimal.Zero
	promoCode := ""
	if cart.PromoApplied {
		promoCode = cart.PromoCode
		if cart.Discount != nil {
			discount = cart.Discount.AmountFor(subtotal)
		} else {
			discount = domain.ClampDiscount(cart.DiscountAmount, subtotal)
		}
	}

	subtotal = domain.Round2(subtotal)
	discount = domain.Round2(discount)
	total := subtotal.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return domain.OrderDraft{
		StoreID:        storeID,
		Items:          items,
		Subtotal:       subtotal,
		DiscountAmount: discount,
		Total:          total,
		PromoCode:      promoCode,
		Currency:       currency,
	}, nil
}
