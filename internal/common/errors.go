// Package common defines the error taxonomy and shared constants used across
// the gophchat client. Callers should use errors.Is or KindOf to match these
// values; package-specific errors wrap one of the sentinels below.
package common

import (
	"context"
	"errors"
	"net"
)

var (
	// ErrNotReady means a backend handle is not available yet. Transient.
	ErrNotReady = errors.New("backend not ready")

	// ErrValidation is user-correctable input (bad file type, size, empty text).
	ErrValidation = errors.New("validation error")

	// Session and credential errors.
	ErrUnauthorized   = errors.New("unauthorized")
	ErrRequiresReauth = errors.New("requires reauthentication")

	// Backend-imposed limits.
	ErrQuotaExceeded   = errors.New("quota exceeded")
	ErrTooManyRequests = errors.New("too many requests")

	// ErrNetwork is a transient transport failure, safe to retry by hand.
	ErrNetwork = errors.New("network failure")

	// Repository-level errors.
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// Kind is the coarse class of an error as shown to the user.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotReady
	KindValidation
	KindUnauthorized
	KindRequiresReauth
	KindQuotaExceeded
	KindTooManyRequests
	KindNetwork
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindNotReady:
		return "not_ready"
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindRequiresReauth:
		return "requires_reauth"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindTooManyRequests:
		return "too_many_requests"
	case KindNetwork:
		return "network"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// KindOf classifies err. Reauth is checked before unauthorized so that an
// error wrapping both is treated as the more actionable one. Context deadline
// errors and net.Error timeouts count as network failures.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrNotReady):
		return KindNotReady
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrRequiresReauth):
		return KindRequiresReauth
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrQuotaExceeded):
		return KindQuotaExceeded
	case errors.Is(err, ErrTooManyRequests):
		return KindTooManyRequests
	case errors.Is(err, ErrNetwork), errors.Is(err, context.DeadlineExceeded):
		return KindNetwork
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return KindNetwork
	}
	return KindUnknown
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
