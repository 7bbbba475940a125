package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of business error kinds. Handlers map kinds to
// HTTP statuses; nothing above this package inspects error strings.
type ErrorKind string

const (
	KindInvalidPayload      ErrorKind = "InvalidPayload"
	KindInsufficientStock   ErrorKind = "InsufficientStock"
	KindPriceConfigError    ErrorKind = "PriceConfigError"
	KindIdempotencyConflict ErrorKind = "IdempotencyConflict"
	KindNotFound            ErrorKind = "NotFound"
	KindStateConflict       ErrorKind = "StateConflict"
	KindRateLimited         ErrorKind = "RateLimited"
	KindProviderError       ErrorKind = "ProviderError"
)

type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func E(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Ef(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf extracts the business kind, or "" for plumbing errors.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// Repository-level sentinels.
var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrAttemptNotFound  = errors.New("payment attempt not found")
	ErrProductNotFound  = errors.New("product not found")
	ErrShipmentNotFound = errors.New("shipment not found")
	ErrEventNotFound    = errors.New("provider event not found")
)
