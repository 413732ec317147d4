package token

import "errors"

var (
	// ErrRateLimited is retriable: the client identity exceeded its sliding
	// window for the operation.
	ErrRateLimited = errors.New("rate limit exceeded")

	ErrMalformedToken   = errors.New("invalid token format")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrInvalidAudience  = errors.New("invalid audience")
	ErrInvalidScope     = errors.New("invalid scope")
	ErrExpired          = errors.New("token expired")
	ErrInactive         = errors.New("token inactive")
)
