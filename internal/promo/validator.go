package promo

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vendlyapp/selfcheckout/internal/domain"
)

var (
	ErrCodeNotFound     = errors.New("promo code not found")
	ErrCodeInactive     = errors.New("promo code inactive or expired")
	ErrValidationFailed = errors.New("promo code validation failed")
)

// Validator checks a code for a store and returns the discount it grants.
// Implementations report failures wrapping one of the package errors.
type Validator interface {
	Validate(ctx context.Context, code, storeID string) (domain.DiscountDescriptor, error)
}

type Reason string

const (
	ReasonNone     Reason = ""
	ReasonNotFound Reason = "not_found"
	ReasonInactive Reason = "inactive"
	ReasonGeneric  Reason = "generic"
)

// Result is the outcome of a validation call. Exactly one of Descriptor (OK) or
// Reason is meaningful.
type Result struct {
	OK         bool
	Descriptor domain.DiscountDescriptor
	Reason     Reason
	Message    string
	Err        error
}

var hundred = decimal.NewFromInt(100)

// Check runs v and folds every outcome, including a panic inside v, into a Result.
func Check(ctx context.Context, v Validator, code, storeID string) (res Result) {
	code = domain.NormalizeCode(code)
	if code == "" {
		return failure(fmt.Errorf("%w: empty code", ErrCodeNotFound))
	}

	defer func() {
		if r := recover(); r != nil {
			res = failure(fmt.Errorf("%w: validator panic: %v", ErrValidationFailed, r))
		}
	}()

	d, err := v.Validate(ctx, code, storeID)
	if err != nil {
		return failure(err)
	}
	if err := checkDescriptor(d); err != nil {
		return failure(err)
	}
	return Result{OK: true, Descriptor: d}
}

// Classify maps an error from a Validator to a Reason.
func Classify(err error) Reason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, ErrCodeNotFound):
		return ReasonNotFound
	case errors.Is(err, ErrCodeInactive):
		return ReasonInactive
	default:
		return ReasonGeneric
	}
}

// Message is the user-facing text for a failure reason.
func Message(r Reason) string {
	switch r {
	case ReasonNone:
		return ""
	case ReasonNotFound:
		return "This promo code does not exist."
	case ReasonInactive:
		return "This promo code is no longer active."
	default:
		return "The promo code could not be validated. Please try again."
	}
}

func failure(err error) Result {
	r := Classify(err)
	if r == ReasonGeneric && !errors.Is(err, ErrValidationFailed) {
		err = fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}
	return Result{Reason: r, Message: Message(r), Err: err}
}

func checkDescriptor(d domain.DiscountDescriptor) error {
	if !d.Type.Valid() {
		return fmt.Errorf("%w: unknown discount type %q", ErrValidationFailed, d.Type)
	}
	if d.Value.IsNegative() {
		return fmt.Errorf("%w: negative discount value", ErrValidationFailed)
	}
	if d.Type == domain.DiscountPercentage && d.Value.GreaterThan(hundred) {
		return fmt.Errorf("%w: percentage above 100", ErrValidationFailed)
	}
	return nil
}
