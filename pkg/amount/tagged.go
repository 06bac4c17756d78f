package amount

import (
	"fmt"
	"math/big"
)

// Cumulative is the total raw amount a wallet is entitled to as of a
// distribution, inclusive of all prior cycles. Delta is a single-cycle
// (or single-claim) increment. The two are distinct types so a delta
// can never be stored or compared where a running total is expected.

// Cumulative is a running total in raw units. The zero value is zero.
type Cumulative struct {
	raw *big.Int
}

// Delta is a single-cycle increment in raw units. The zero value is zero.
type Delta struct {
	raw *big.Int
}

// NewCumulative copies raw into a Cumulative. Nil means zero.
func NewCumulative(raw *big.Int) Cumulative {
	if raw == nil {
		return Cumulative{}
	}
	return Cumulative{raw: new(big.Int).Set(raw)}
}

// NewDelta copies raw into a Delta. Nil means zero.
func NewDelta(raw *big.Int) Delta {
	if raw == nil {
		return Delta{}
	}
	return Delta{raw: new(big.Int).Set(raw)}
}

// CumulativeFromString parses a decimal raw-unit string, the storage
// representation.
func CumulativeFromString(s string) (Cumulative, error) {
	v, err := rawFromString(s)
	if err != nil {
		return Cumulative{}, err
	}
	return Cumulative{raw: v}, nil
}

// DeltaFromString parses a decimal raw-unit string.
func DeltaFromString(s string) (Delta, error) {
	v, err := rawFromString(s)
	if err != nil {
		return Delta{}, err
	}
	return Delta{raw: v}, nil
}

func rawFromString(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: raw amount %q", ErrInvalidAmount, s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative raw amount %q", ErrInvalidAmount, s)
	}
	return v, nil
}

// Raw returns a copy of the underlying raw-unit value.
func (c Cumulative) Raw() *big.Int {
	if c.raw == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(c.raw)
}

// String is the decimal raw-unit form used at storage and wire boundaries.
func (c Cumulative) String() string {
	if c.raw == nil {
		return "0"
	}
	return c.raw.String()
}

// Formatted renders the cumulative amount for display.
func (c Cumulative) Formatted() string { return Format(c.Raw()) }

// Cmp compares two cumulative totals.
func (c Cumulative) Cmp(o Cumulative) int { return c.Raw().Cmp(o.Raw()) }

// Sign reports the sign of the total.
func (c Cumulative) Sign() int {
	if c.raw == nil {
		return 0
	}
	return c.raw.Sign()
}

// Uint64 converts to the fixed-width amount used in merkle leaves and
// instruction payloads. Amounts beyond 64 bits cannot be represented
// on-chain and fail loudly here rather than wrapping.
func (c Cumulative) Uint64() (uint64, error) {
	r := c.Raw()
	if !r.IsUint64() {
		return 0, fmt.Errorf("%w: cumulative amount %s overflows u64", ErrInvalidAmount, r.String())
	}
	return r.Uint64(), nil
}

// Sub returns the delta between this total and an earlier one. A
// negative result means the caller's inputs violate the monotonic
// cumulative invariant; the delta's Sign exposes that.
func (c Cumulative) Sub(prev Cumulative) Delta {
	return Delta{raw: new(big.Int).Sub(c.Raw(), prev.Raw())}
}

// Raw returns a copy of the underlying raw-unit value.
func (d Delta) Raw() *big.Int {
	if d.raw == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(d.raw)
}

// String is the decimal raw-unit form used at storage and wire boundaries.
func (d Delta) String() string {
	if d.raw == nil {
		return "0"
	}
	return d.raw.String()
}

// Sign reports the sign of the delta.
func (d Delta) Sign() int {
	if d.raw == nil {
		return 0
	}
	return d.raw.Sign()
}

// AddTo applies the delta to a running total, producing the next total.
func (d Delta) AddTo(c Cumulative) Cumulative {
	return Cumulative{raw: new(big.Int).Add(c.Raw(), d.Raw())}
}
