// Package errs provides types and support for turning the errors raised by
// the node into HTTP responses.
package errs

import (
	"errors"
	"net/http"

	"github.com/ardanlabs/edublock/foundation/blockchain/database"
	"github.com/ardanlabs/edublock/foundation/blockchain/mempool"
	"github.com/ardanlabs/edublock/foundation/blockchain/state"
)

// Response is the form used for API responses from failures in the API.
type Response struct {
	Error  string            `json:"error"`
	Reason string            `json:"reason,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Trusted is used to pass an error during the request through the
// application with web specific context. The message of a trusted error
// is safe to return to the caller.
type Trusted struct {
	Err    error
	Status int
}

// NewTrusted wraps a provided error with an HTTP status code. This
// function should be used when handlers encounter expected errors.
func NewTrusted(err error, status int) error {
	return &Trusted{err, status}
}

// Error implements the error interface.
func (te *Trusted) Error() string {
	return te.Err.Error()
}

// Unwrap provides access to the wrapped error.
func (te *Trusted) Unwrap() error {
	return te.Err
}

// IsTrusted checks if an error of type Trusted exists.
func IsTrusted(err error) bool {
	var te *Trusted
	return errors.As(err, &te)
}

// GetTrusted returns a copy of the Trusted pointer.
func GetTrusted(err error) *Trusted {
	var te *Trusted
	if !errors.As(err, &te) {
		return nil
	}
	return te
}

// =============================================================================

// FromBlockchain classifies an error returned by the blockchain packages. If
// the error is an expected rejection it's wrapped as a trusted error with the
// matching status, otherwise the error is returned unchanged.
func FromBlockchain(err error) error {
	switch {
	case err == nil:
		return nil

	case errors.Is(err, state.ErrWrongMode):
		return NewTrusted(err, http.StatusNotImplemented)

	case errors.Is(err, state.ErrNoTransactions):
		return NewTrusted(err, http.StatusBadRequest)

	case errors.Is(err, mempool.ErrExists):
		return NewTrusted(err, http.StatusConflict)

	case errors.Is(err, database.ErrAuthorityUnavailable):
		return NewTrusted(err, http.StatusServiceUnavailable)

	case errors.Is(err, database.ErrStaleChain):
		return NewTrusted(err, http.StatusConflict)

	case database.IsValidation(err):
		return NewTrusted(err, http.StatusBadRequest)
	}

	return err
}
