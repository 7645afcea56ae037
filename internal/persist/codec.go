package persist

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vendlyapp/selfcheckout/internal/domain"
)

// SchemaVersion marks the payload layout. Payloads with any other version are discarded.
const SchemaVersion = 1

var (
	ErrCorruptPayload      = errors.New("corrupt cart registry payload")
	ErrIncompatibleVersion = errors.New("incompatible cart registry schema version")
)

type envelope struct {
	Version       int                          `json:"version"`
	ActiveStoreID string                       `json:"activeStoreId"`
	Carts         map[string]*domain.StoreCart `json:"carts"`
}

// Encode serializes the complete registry inside a versioned envelope.
func Encode(reg *domain.Registry) ([]byte, error) {
	if reg == nil {
		reg = domain.NewRegistry()
	}
	env := envelope{
		Version:       SchemaVersion,
		ActiveStoreID: reg.ActiveStoreID,
		Carts:         reg.Carts,
	}
	if env.Carts == nil {
		env.Carts = map[string]*domain.StoreCart{}
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal cart registry failed: %w", err)
	}
	return data, nil
}

// Decode parses a payload produced by Encode. Missing fields take the defaults of a
// fresh entry and lines that break the quantity or id invariants are dropped.
func Decode(data []byte) (*domain.Registry, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPayload, err)
	}
	if env.Version != SchemaVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrIncompatibleVersion, env.Version, SchemaVersion)
	}

	reg := domain.NewRegistry()
	reg.ActiveStoreID = env.ActiveStoreID
	for storeID, c := range env.Carts {
		if storeID == "" {
			continue
		}
		reg.Carts[storeID] = sanitize(c)
	}
	return reg, nil
}

func sanitize(c *domain.StoreCart) *domain.StoreCart {
	out := domain.NewStoreCart()
	if c == nil {
		return out
	}
	seen := make(map[string]int, len(c.Lines))
	for _, l := range c.Lines {
		if l.Product.ID == "" || l.Quantity <= 0 {
			continue
		}
		// one line per product, the later entry wins
		if i, ok := seen[l.Product.ID]; ok {
			out.Lines[i] = l
			continue
		}
		seen[l.Product.ID] = len(out.Lines)
		out.Lines = append(out.Lines, l)
	}
	out.PromoCode = c.PromoCode
	out.PromoApplied = c.PromoApplied
	out.DiscountAmount = c.DiscountAmount
	if c.Discount != nil && c.Discount.Type.Valid() {
		d := *c.Discount
		out.Discount = &d
	}
	out.Reconcile()
	return out
}
