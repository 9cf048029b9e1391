package entity

import "errors"

var (
	// ErrUnavailable marks a provider that could not be reached in time
	ErrUnavailable = errors.New("source unavailable")

	// ErrMalformed marks a provider response that could not be decoded
	ErrMalformed = errors.New("malformed response")

	// ErrNotSupported marks a currency code outside the accepted format or set
	ErrNotSupported = errors.New("not supported")

	// ErrEmpty marks a search that produced nothing usable
	ErrEmpty = errors.New("no result")
)
