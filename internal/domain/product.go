package domain

import "github.com/shopspring/decimal"

// ProductSnapshot is the copy of catalog fields taken when a line is created.
type ProductSnapshot struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
	Currency string          `json:"currency"`
}
