package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind is the closed failure taxonomy the core exposes. Everything a
// request can do wrong collapses into one of these three; callers never
// inspect ad hoc fields.
type Kind int

// Failure kinds.
const (
	// KindValidation: the server rejected the operation as illegal for
	// the entity's current state. Reported immediately, never queued.
	KindValidation Kind = iota + 1
	// KindNetwork: no response or a transport-level failure. Mutations
	// with this kind are candidates for the offline queue.
	KindNetwork
	// KindAuth: the bearer credential was rejected even after the
	// single refresh-and-retry.
	KindAuth
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	}
	return "unknown"
}

// Error wraps a request failure with its kind and, for mutations, a
// flag saying whether the request was captured by the offline queue.
type Error struct {
	Kind    Kind
	Op      string
	Status  int
	Message string
	Queued  bool
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Queued {
		return fmt.Sprintf("%s: %s failure: %s (queued for replay)", e.Op, e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s failure: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the failure kind from err, or 0 for non-core errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsQueued reports whether the failed mutation was persisted for
// offline replay.
func IsQueued(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Queued
}

// networkErr reports whether err looks like a transport problem rather
// than a server verdict.
func networkErr(err error) bool {
	if err == nil {
		return false
	}
	// url.Error implements net.Error even when it only wraps a local
	// cancellation, so rule that out first.
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	// url.Error wraps dial/read failures; anything that never produced
	// a response counts.
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// kindForStatus maps a response the server did produce onto the
// taxonomy. Gateway-class statuses behave like the network being gone.
func kindForStatus(code int) Kind {
	switch code {
	case http.StatusUnauthorized:
		return KindAuth
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return KindNetwork
	default:
		return KindValidation
	}
}
