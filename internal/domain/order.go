package domain

import "github.com/shopspring/decimal"

type OrderItem struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// OrderDraft is the normalized cart state at the moment of checkout.
// It is built fresh for every checkout attempt and never persisted.
type OrderDraft struct {
	StoreID        string
	Items          []OrderItem
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	Total          decimal.Decimal
	PromoCode      string
	Currency       string
}
