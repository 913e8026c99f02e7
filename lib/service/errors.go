package service

import (
	"errors"
	"fmt"
)

// UpstreamUnavailableError means the Lightning node could not be reached or
// answered with an error during a reconciliation pass.
type UpstreamUnavailableError struct {
	Op  string
	Err error
}

func (e *UpstreamUnavailableError) Error() string {
	return fmt.Sprintf("lightning node unavailable during %s: %v", e.Op, e.Err)
}

func (e *UpstreamUnavailableError) Unwrap() error { return e.Err }

type InvalidInvoiceError struct {
	Reason string
	Err    error
}

func (e *InvalidInvoiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid invoice: %s: %v", e.Reason, e.Err)
	}
	return "invalid invoice: " + e.Reason
}

func (e *InvalidInvoiceError) Unwrap() error { return e.Err }

type NoRouteError struct {
	Destination string
	Err         error
}

func (e *NoRouteError) Error() string {
	return fmt.Sprintf("no route to %s: %v", e.Destination, e.Err)
}

func (e *NoRouteError) Unwrap() error { return e.Err }

type InsufficientBalanceError struct {
	Required int64
	Err      error
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for %d: %v", e.Required, e.Err)
}

func (e *InsufficientBalanceError) Unwrap() error { return e.Err }

type PaymentFailedError struct {
	Hash   string
	Reason string
}

func (e *PaymentFailedError) Error() string {
	return fmt.Sprintf("payment %s failed: %s", e.Hash, e.Reason)
}

// InternalReconciliationError means the ledger and the node may disagree and
// someone has to look. It is never a decline.
type InternalReconciliationError struct {
	Op   string
	Hash string
	Err  error
}

func (e *InternalReconciliationError) Error() string {
	return fmt.Sprintf("reconciliation failed during %s for %s: %v", e.Op, e.Hash, e.Err)
}

func (e *InternalReconciliationError) Unwrap() error { return e.Err }

// IsDecline reports whether err is an ordinary refusal of the request.
func IsDecline(err error) bool {
	var (
		invalid      *InvalidInvoiceError
		noRoute      *NoRouteError
		insufficient *InsufficientBalanceError
		failed       *PaymentFailedError
	)
	return errors.As(err, &invalid) || errors.As(err, &noRoute) ||
		errors.As(err, &insufficient) || errors.As(err, &failed)
}
