// Package common defines sentinel errors and small helpers shared by the
// provisioning layers of StackSync. Callers should use errors.Is to match
// these values; clients wrap the underlying library error around them.
package common

import "errors"

var (
	// Repository-level and lookup errors.
	ErrorNotFound = errors.New("not found")

	// Identity provider errors.
	ErrorAuthFailure     = errors.New("authentication failure")
	ErrorAmbiguousResult = errors.New("ambiguous result")

	// Raised by identity or storage when a generated name is already taken.
	ErrorConflict = errors.New("conflict")

	// Object storage errors (network, auth, unexpected status).
	ErrorStorage = errors.New("storage error")

	// Rejected input or configuration.
	ErrorInvalidArgument = errors.New("invalid argument")
)
