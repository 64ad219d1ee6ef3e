package models

import "errors"

var (
	// ErrInvalidState is returned when a DataPoint lifecycle transition is called out of order.
	// It signals an integration error, not bad statement data.
	ErrInvalidState = errors.New("invalid data point state")

	// ErrInvalidMovement is returned when a Movement fails validation on construction.
	ErrInvalidMovement = errors.New("invalid movement")

	// ErrNotFound is returned by storage when no DataPoint has the requested id.
	ErrNotFound = errors.New("data point not found")
)
