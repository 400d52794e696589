package database

import "errors"

// Set of errors that classify why a transaction, block or chain was not
// accepted. Errors returned by this package wrap one of these values with the
// details of the check that failed.
var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrSignatureInvalid     = errors.New("signature invalid")
	ErrChainLinkMismatch    = errors.New("chain link mismatch")
	ErrHashMismatch         = errors.New("hash mismatch")
	ErrInsufficientWork     = errors.New("insufficient work")
	ErrAuthorityUnavailable = errors.New("authority unavailable")
	ErrStaleChain           = errors.New("stale chain")
)

// ErrGenesisCorrupted is returned when the genesis block fails its own
// self-check. A node must not continue running with this error.
var ErrGenesisCorrupted = errors.New("genesis block corrupted")

// Reason returns a short classification of the error for reporting
// rejected blocks and chains.
func Reason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrSignatureInvalid):
		return "signature_invalid"
	case errors.Is(err, ErrChainLinkMismatch):
		return "chain_link_mismatch"
	case errors.Is(err, ErrHashMismatch):
		return "hash_mismatch"
	case errors.Is(err, ErrInsufficientWork):
		return "insufficient_work"
	case errors.Is(err, ErrAuthorityUnavailable):
		return "authority_unavailable"
	case errors.Is(err, ErrStaleChain):
		return "stale_chain"
	case errors.Is(err, ErrGenesisCorrupted):
		return "genesis_corrupted"
	}

	return "unknown"
}

// IsValidation reports whether the error is the result of a failed
// validation check, as opposed to an operational failure.
func IsValidation(err error) bool {
	switch Reason(err) {
	case "none", "unknown", "authority_unavailable":
		return false
	}

	return true
}
