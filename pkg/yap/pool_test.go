package yap

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailablePool(t *testing.T) {
	t.Parallel()

	vault := func(s string) *big.Int {
		v, ok := new(big.Int).SetString(s, 10)
		require.True(t, ok)
		return v
	}

	tests := []struct {
		name    string
		elapsed int64
		vault   *big.Int
		want    string
	}{
		{"zero elapsed", 0, vault("1000000000000"), "0"},
		{"negative elapsed", -60, vault("1000000000000"), "0"},
		{"nil vault", 3600, nil, "0"},
		{"empty vault", 3600, vault("0"), "0"},
		{"full year unlocks vault", SecondsPerYear, vault("123456789000000000"), "123456789000000000"},
		{"half year", SecondsPerYear / 2, vault("1000000000000"), "500000000000"},
		{"one day", 86400, vault("31536000"), "86400"},
		{"floors fractional unlock", 1, vault("31535999"), "0"},
		{"huge vault no overflow", SecondsPerYear, vault("1000000000000000000000000000"), "1000000000000000000000000000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := AvailablePool(tt.elapsed, tt.vault)
			assert.Equal(t, tt.want, got.String())
		})
	}
}
