package domain

// Registry maps store ids to their carts for one shopper session.
// ActiveStoreID is empty when no store has been selected yet.
type Registry struct {
	ActiveStoreID string                `json:"activeStoreId"`
	Carts         map[string]*StoreCart `json:"carts"`
}

func NewRegistry() *Registry {
	return &Registry{Carts: make(map[string]*StoreCart)}
}

// Clone returns a deep copy of the registry.
func (r *Registry) Clone() *Registry {
	out := NewRegistry()
	if r == nil {
		return out
	}
	out.ActiveStoreID = r.ActiveStoreID
	for id, c := range r.Carts {
		out.Carts[id] = c.Clone()
	}
	return out
}
