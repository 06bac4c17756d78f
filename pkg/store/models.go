package store

import (
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/yapprotocol/yap-engine/pkg/amount"
)

// User is the engine-side projection of a social-app user: identity,
// connected wallet, and accrued point balance. Points accrual itself
// happens upstream; the engine only reads it.
type User struct {
	ID        uuid.UUID
	Handle    string
	Wallet    *string
	Points    int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Distribution is one emission cycle. Immutable once created, except
// the submission fields which transition exactly once from unset to set.
type Distribution struct {
	ID               uuid.UUID
	MerkleRoot       [32]byte
	TotalAmount      amount.Delta // moved from vault to pending claims this cycle
	ParticipantCount int
	CreatedAt        time.Time
	SubmittedAt      *time.Time
	SubmittedTx      *string
}

// Submitted reports whether the distribution's root is live on-chain.
func (d *Distribution) Submitted() bool { return d.SubmittedAt != nil }

// UserReward is one row per (distribution, user). Amount is the
// cumulative total owed to the wallet as of this distribution;
// AmountEarned is this cycle's delta only.
type UserReward struct {
	ID              uuid.UUID
	DistributionID  uuid.UUID
	UserID          uuid.UUID
	Wallet          string
	Amount          amount.Cumulative
	AmountEarned    amount.Delta
	PointsConverted int64
	Proof           []byte // concatenated 32-byte merkle siblings
	CreatedAt       time.Time
}

// ClaimEvent is one observed on-chain claim transaction. Append-only:
// never mutated, never deleted.
type ClaimEvent struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	Wallet            string
	AmountClaimed     amount.Delta
	CumulativeClaimed amount.Cumulative
	UserRewardID      *uuid.UUID
	TxSignature       string
	ClaimedAt         time.Time
	CreatedAt         time.Time
}

// WalletSnapshot is a point-in-time record of a wallet's balances and
// derived vote weight. Superseded, not overwritten, by later snapshots.
type WalletSnapshot struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	Wallet           string
	Balance          *big.Int
	UnclaimedBalance *big.Int
	EffectiveBalance *big.Int
	VoteWeight       float64
	CreatedAt        time.Time
}

// RewardBaseline is a user's last submitted state: the cumulative
// amount owed and the points already converted. The next cycle is
// always computed relative to this, never to unsubmitted rows.
type RewardBaseline struct {
	UserID            uuid.UUID
	Wallet            string
	Amount            amount.Cumulative
	PointsDistributed int64
}
