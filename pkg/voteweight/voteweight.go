// Package voteweight converts a wallet's effective YAP balance into a
// bounded upvote multiplier and runs the periodic wallet snapshot job.
package voteweight

import (
	"math"
	"math/big"
)

// Curve parameters: weight = 1 + 4*b/(b+1_000_000) with b in whole
// tokens. Zero balance gets the baseline 1.0 and the weight
// asymptotically approaches, but never reaches, 5.0.
const (
	baseline    = 1.0
	bonusRange  = 4.0
	halfSatYAP  = 1_000_000.0
	rawPerToken = 1_000_000_000.0
)

// maxPower is the largest weight the curve may return. Past ~2^53
// whole tokens the ratio b/(b+halfSat) rounds to exactly 1 in float64,
// which would land on the excluded upper bound.
var maxPower = math.Nextafter(baseline+bonusRange, baseline)

// Power computes the vote weight for a balance in whole tokens.
func Power(wholeTokens float64) float64 {
	if wholeTokens <= 0 {
		return baseline
	}
	w := baseline + bonusRange*wholeTokens/(wholeTokens+halfSatYAP)
	if w < baseline {
		return baseline
	}
	// Inverted comparison so Inf and NaN intermediates from extreme
	// inputs also land on the cap.
	if w < maxPower {
		return w
	}
	return maxPower
}

// PowerFromRaw computes the vote weight for a raw-unit balance. Raw
// amounts can exceed float64's integer precision; the loss is
// acceptable here because vote weight is itself a float and the curve
// is flat at the scales where precision degrades.
func PowerFromRaw(raw *big.Int) float64 {
	if raw == nil || raw.Sign() <= 0 {
		return baseline
	}
	f, _ := new(big.Float).SetInt(raw).Float64()
	return Power(f / rawPerToken)
}
