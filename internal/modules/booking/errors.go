package booking

import "errors"

var (
	ErrValidation       = errors.New("validation error")
	ErrNotFound         = errors.New("booking not found")
	ErrOfferUnavailable = errors.New("offer no longer available")
	ErrRevalidation     = errors.New("price revalidation inconclusive")
	ErrNotPayable       = errors.New("booking is not payable")
)
