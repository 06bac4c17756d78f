package chain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeNetErr struct{}

func (fakeNetErr) Error() string   { return "dial tcp: something broke" }
func (fakeNetErr) Timeout() bool   { return true }
func (fakeNetErr) Temporary() bool { return true }

func TestIsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"context canceled", context.Canceled, false},
		{"wrapped cancel", fmt.Errorf("rpc: %w", context.Canceled), false},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"uninitialized account", ErrAccountNotInitialized, false},
		{"insufficient funds", ErrInsufficientFunds, false},
		{"net error", fakeNetErr{}, true},
		{"connection refused", errors.New("dial tcp 127.0.0.1:8899: connection refused"), true},
		{"rate limited", errors.New("429 Too Many Requests"), true},
		{"node behind", errors.New("RPC error: Node is behind by 150 slots"), true},
		{"stale blockhash", errors.New("Blockhash not found"), true},
		{"program error", errors.New("custom program error: 0x1771"), false},
		{"decode failure", errors.New("config account is 12 bytes, want 227"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestClassifySendError(t *testing.T) {
	t.Parallel()

	assert.NoError(t, classifySendError(nil))

	err := classifySendError(errors.New("Transaction simulation failed: Attempt to debit an account but found insufficient funds"))
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	err = classifySendError(errors.New("insufficient lamports 100, need 5000"))
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	other := errors.New("some rpc failure")
	assert.Equal(t, other, classifySendError(other))
}
