package domain

import "errors"

var (
	// ErrInvalidInput is returned when the input is not an absolute URL.
	ErrInvalidInput = errors.New("invalid URL provided")

	// ErrUnrecognizedLink is returned when a flights link carries no decodable payload.
	ErrUnrecognizedLink = errors.New("unrecognized Google Flights link")
)
