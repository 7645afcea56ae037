package service

import "errors"

var (
	ErrSuperseded         = errors.New("a newer checkout attempt superseded this one")
	ErrProductUnavailable = errors.New("product is not available")
	ErrNoActiveStore      = errors.New("no store selected")
	ErrMissingSession     = errors.New("missing session id")
	ErrCartUnavailable    = errors.New("failed to load cart")
)
