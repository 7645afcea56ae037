package service

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/vendlyapp/selfcheckout/internal/cart"
	"github.com/vendlyapp/selfcheckout/internal/domain"
)

type LineView struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"lineTotal"`
	Currency  string          `json:"currency"`
}

// CartView is the active store's cart with every derived total.
type CartView struct {
	ActiveStoreID      string          `json:"activeStoreId"`
	Lines              []LineView      `json:"lines"`
	ItemCount          int             `json:"itemCount"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	PromoCode          string          `json:"promoCode,omitempty"`
	PromoApplied       bool            `json:"promoApplied"`
	DiscountAmount     decimal.Decimal `json:"discountAmount"`
	TotalAfterDiscount decimal.Decimal `json:"totalAfterDiscount"`
	VATRate            decimal.Decimal `json:"vatRate"`
	TotalWithTax       decimal.Decimal `json:"totalWithTax"`
	Stores             []string        `json:"stores"`
}

func buildView(st *cart.Store, vatRate decimal.Decimal) CartView {
	reg, totals := st.Snapshot(vatRate)
	c, ok := reg.Carts[reg.ActiveStoreID]
	if !ok {
		c = domain.NewStoreCart()
	}

	lines := make([]LineView, 0, len(c.Lines))
	for _, l := range c.Lines {
		lines = append(lines, LineView{
			ProductID: l.Product.ID,
			Name:      l.Product.Name,
			Price:     l.Product.Price,
			Quantity:  l.Quantity,
			LineTotal: domain.Round2(l.LineTotal()),
			Currency:  l.Product.Currency,
		})
	}

	stores := make([]string, 0, len(reg.Carts))
	for id := range reg.Carts {
		stores = append(stores, id)
	}
	sort.Strings(stores)

	return CartView{
		ActiveStoreID:      reg.ActiveStoreID,
		Lines:              lines,
		ItemCount:          totals.ItemCount,
		Subtotal:           domain.Round2(totals.Subtotal),
		PromoCode:          c.PromoCode,
		PromoApplied:       c.PromoApplied,
		DiscountAmount:     c.DiscountAmount,
		TotalAfterDiscount: totals.TotalAfterDiscount,
		VATRate:            vatRate,
		TotalWithTax:       totals.TotalWithTax,
		Stores:             stores,
	}
}
