package model

import "errors"

// Sentinel kinds for codec errors.
var (
	ErrUnsupportedValue = errors.New("unsupported datapoint value")
	ErrMalformedReading = errors.New("malformed reading")
)
