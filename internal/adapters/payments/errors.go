package payments

import "errors"

// Sentinel kinds for payment webhook errors.
var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedEvent   = errors.New("malformed webhook event")
)
