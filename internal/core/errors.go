package core

import (
	"errors"
	"fmt"
)

// Error kinds surfaced to callers. Use errors.Is to tell them apart.
var (
	ErrNotFound            = errors.New("not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

var (
	ErrInvalidAmount      = fmt.Errorf("%w: invalid amount", ErrInvalidArgument)
	ErrInvalidType        = fmt.Errorf("%w: invalid transaction type", ErrInvalidArgument)
	ErrInvalidRecurrence  = fmt.Errorf("%w: invalid recurrence duration", ErrInvalidArgument)
	ErrEmptyCategory      = fmt.Errorf("%w: empty category", ErrInvalidArgument)
	ErrDescriptionTooLong = fmt.Errorf("%w: description too long (max 200 characters)", ErrInvalidArgument)
	ErrInvalidProfileName = fmt.Errorf("%w: profile name must be 1-50 characters", ErrInvalidArgument)
	ErrInvalidCurrency    = fmt.Errorf("%w: invalid currency", ErrInvalidArgument)
	ErrInvalidWindow      = fmt.Errorf("%w: invalid trend window", ErrInvalidArgument)
)

// Kind returns a short machine-readable code for the error kind.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "upstream_unavailable"
	default:
		return "internal"
	}
}
