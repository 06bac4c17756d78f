package chain

import (
	"context"
	"errors"
	"net"
	"strings"
)

var (
	// ErrAccountNotInitialized means the on-chain account does not
	// exist yet. For vault/config reads callers treat this as "zero
	// available", not as a failure.
	ErrAccountNotInitialized = errors.New("account not initialized")

	// ErrInsufficientFunds means the fee payer lacks lamports. It is
	// retryable after funding and surfaced to the user as such.
	ErrInsufficientFunds = errors.New("insufficient funds for transaction")

	// ErrConfirmationTimeout means a submitted transaction was not
	// confirmed within the deadline. The transaction may still land;
	// callers retry observation, never re-submission, on this error.
	ErrConfirmationTimeout = errors.New("transaction confirmation timed out")
)

// IsTransient reports whether an RPC error is worth retrying with
// backoff. Context cancellation is not transient: the caller gave up.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, ErrAccountNotInitialized) || errors.Is(err, ErrInsufficientFunds) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"i/o timeout",
		"too many requests",
		"rate limit",
		"service unavailable",
		"node is behind",
		"blockhash not found",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func classifySendError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "insufficient funds") || strings.Contains(msg, "insufficient lamports") {
		return ErrInsufficientFunds
	}
	return err
}
