// Package distribution computes emission cycles: it converts each
// eligible user's undistributed points into a share of the currently
// available pool and produces the next cumulative entitlement per
// wallet. All amount math is integer big.Int; floating point never
// touches token amounts.
package distribution

import (
	"math/big"

	"github.com/google/uuid"

	"github.com/yapprotocol/yap-engine/pkg/amount"
)

// Eligible is one wallet-connected user with their current point
// balance and last submitted state.
type Eligible struct {
	UserID            uuid.UUID
	Wallet            string
	Points            int64
	PointsDistributed int64
	PriorCumulative   amount.Cumulative
}

// AllocatablePoints is the user's not-yet-converted point balance.
// Clamped to zero if the upstream points ledger shrank below what was
// already distributed.
func (e *Eligible) AllocatablePoints() int64 {
	p := e.Points - e.PointsDistributed
	if p < 0 {
		return 0
	}
	return p
}

// Entry is one user's computed outcome for a cycle.
type Entry struct {
	UserID          uuid.UUID
	Wallet          string
	PointsConverted int64
	Earned          amount.Delta
	Cumulative      amount.Cumulative
}

// Compute allocates the available pool proportionally to allocatable
// points: earned = pool * allocatable / total_pending, floored. Only
// wallet-connected users are passed in, so users without wallets
// neither dilute the pool nor receive rewards. A zero total pending
// yields zero for everyone; there is no division in that case.
func Compute(users []Eligible, pool *big.Int) ([]Entry, int64) {
	var totalPending int64
	for i := range users {
		totalPending += users[i].AllocatablePoints()
	}

	entries := make([]Entry, 0, len(users))
	for i := range users {
		u := &users[i]
		allocatable := u.AllocatablePoints()

		earned := amount.Delta{}
		if totalPending > 0 && allocatable > 0 && pool != nil && pool.Sign() > 0 {
			raw := new(big.Int).Mul(pool, big.NewInt(allocatable))
			raw.Quo(raw, big.NewInt(totalPending))
			earned = amount.NewDelta(raw)
		}

		entries = append(entries, Entry{
			UserID:          u.UserID,
			Wallet:          u.Wallet,
			PointsConverted: allocatable,
			Earned:          earned,
			Cumulative:      earned.AddTo(u.PriorCumulative),
		})
	}
	return entries, totalPending
}

// Estimate is the UI-facing projection of a user's next reward.
type Estimate struct {
	SharePercent    float64
	EstimatedReward *big.Int
}

// EstimateShare previews a user's slice of the pool without running a
// cycle. Zero total pending means a zero share and a zero reward.
func EstimateShare(allocatable, totalPending int64, pool *big.Int) Estimate {
	if totalPending <= 0 || allocatable <= 0 || pool == nil || pool.Sign() <= 0 {
		return Estimate{EstimatedReward: new(big.Int)}
	}
	raw := new(big.Int).Mul(pool, big.NewInt(allocatable))
	raw.Quo(raw, big.NewInt(totalPending))
	return Estimate{
		SharePercent:    float64(allocatable) * 100 / float64(totalPending),
		EstimatedReward: raw,
	}
}
