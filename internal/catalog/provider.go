package catalog

import (
	"context"
	"errors"

	"github.com/vendlyapp/selfcheckout/internal/domain"
)

var ErrProductNotFound = errors.New("product not found")

// Provider supplies product records for one store. The bool result is isActive.
type Provider interface {
	Product(ctx context.Context, storeID, productID string) (domain.ProductSnapshot, bool, error)
}
