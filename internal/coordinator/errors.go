package coordinator

import (
	"errors"
	"fmt"
)

// Kind classifies why a transaction did not succeed.
type Kind string

const (
	KindUnsupportedRefund            Kind = "UNSUPPORTED_REFUND"
	KindTransactionAlreadyInProgress Kind = "TRANSACTION_ALREADY_IN_PROGRESS"
	KindGatewayRejected              Kind = "GATEWAY_REJECTED"
	KindTransportFault               Kind = "TRANSPORT_FAULT"
	KindNoActiveTransaction          Kind = "NO_ACTIVE_TRANSACTION"
	KindTimeout                      Kind = "TIMEOUT"
	KindCancelled                    Kind = "CANCELLED"
)

// Error is returned by the coordinator for every failed transaction.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// IsKind reports whether err is a coordinator error of the given kind.
func IsKind(err error, kind Kind) bool {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Kind == kind
	}
	return false
}

// KindOf returns the kind of a coordinator error, or "" for anything else.
func KindOf(err error) Kind {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Kind
	}
	return ""
}
