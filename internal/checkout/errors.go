package checkout

import "errors"

var (
	ErrEmptyCart        = errors.New("cart is empty, nothing to checkout")
	ErrSubmissionFailed = errors.New("order could not be submitted, please try again")
)
