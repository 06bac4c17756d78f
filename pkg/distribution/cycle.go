package distribution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/yapprotocol/yap-engine/pkg/amount"
	"github.com/yapprotocol/yap-engine/pkg/chain"
	"github.com/yapprotocol/yap-engine/pkg/metrics"
	"github.com/yapprotocol/yap-engine/pkg/store"
	"github.com/yapprotocol/yap-engine/pkg/yap"
)

// Chain is the subset of the chain client the cycle runner needs.
type Chain interface {
	ProgramConfig(ctx context.Context) (*yap.Config, error)
	VaultBalance(ctx context.Context) (*big.Int, error)
	SubmitDistribution(ctx context.Context, amount uint64, merkleRoot [32]byte) (solana.Signature, error)
}

type RunnerConfig struct {
	Logger *slog.Logger
	Clock  clockwork.Clock
	Store  *store.Store
	Chain  Chain

	// DryRun computes and persists nothing; used by the status
	// endpoint to preview the next cycle.
	DryRun bool
}

func (cfg *RunnerConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Store == nil {
		return errors.New("store is required")
	}
	if cfg.Chain == nil {
		return errors.New("chain client is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Runner executes one distribution cycle end to end. It is a
// single-writer batch process: the external scheduler invokes it at
// most once per period, and safety across partial failures comes from
// the submitted latch, not from locking. A cycle that persists but
// fails to submit is simply superseded by the next cycle, which is
// always computed from the last submitted state.
type Runner struct {
	log *slog.Logger
	cfg RunnerConfig
}

func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Runner{log: cfg.Logger, cfg: cfg}, nil
}

// Result describes what a cycle run did.
type Result struct {
	Skipped        bool       `json:"skipped"`
	Reason         string     `json:"reason,omitempty"`
	DistributionID *uuid.UUID `json:"distribution_id,omitempty"`
	Participants   int        `json:"participants,omitempty"`
	TotalAmount    string     `json:"total_amount,omitempty"`
	TxSignature    string     `json:"tx_signature,omitempty"`
}

// Run executes one cycle. Calling it when no new points exist is a
// safe no-op.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	started := r.cfg.Clock.Now()
	res, err := r.run(ctx)
	metrics.DistributionCycleDuration.Observe(r.cfg.Clock.Since(started).Seconds())
	switch {
	case err != nil:
		metrics.DistributionCyclesTotal.WithLabelValues("error").Inc()
	case res.Skipped:
		metrics.DistributionCyclesTotal.WithLabelValues("noop").Inc()
	default:
		metrics.DistributionCyclesTotal.WithLabelValues("submitted").Inc()
	}
	return res, err
}

func (r *Runner) run(ctx context.Context) (*Result, error) {
	programCfg, err := r.cfg.Chain.ProgramConfig(ctx)
	if errors.Is(err, chain.ErrAccountNotInitialized) {
		r.log.Info("cycle: program not initialized, nothing to distribute")
		return &Result{Skipped: true, Reason: "program not initialized"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load program config: %w", err)
	}

	vault, err := r.cfg.Chain.VaultBalance(ctx)
	if errors.Is(err, chain.ErrAccountNotInitialized) {
		vault = new(big.Int)
	} else if err != nil {
		return nil, fmt.Errorf("failed to read vault balance: %w", err)
	}

	elapsed := r.cfg.Clock.Now().Unix() - programCfg.LastDistributionTs
	pool := yap.AvailablePool(elapsed, vault)
	if pool.Cmp(vault) > 0 {
		pool.Set(vault)
	}
	if pool.Sign() == 0 {
		r.log.Info("cycle: emission pool empty", "elapsed_seconds", elapsed, "vault", vault.String())
		return &Result{Skipped: true, Reason: "no emission available"}, nil
	}

	eligible, baselines, err := r.loadState(ctx)
	if err != nil {
		return nil, err
	}

	entries, totalPending := Compute(eligible, pool)
	if totalPending == 0 {
		r.log.Info("cycle: no undistributed points")
		return &Result{Skipped: true, Reason: "no new points"}, nil
	}

	// Carry forward wallets from earlier submitted distributions that
	// earned nothing this cycle. Their entitlements must stay provable
	// under the new root, since it replaces the old one on-chain.
	final := entries
	inCycle := make(map[uuid.UUID]bool, len(entries))
	for i := range entries {
		inCycle[entries[i].UserID] = true
	}
	for i := range baselines {
		b := &baselines[i]
		if !inCycle[b.UserID] && b.Amount.Sign() > 0 {
			final = append(final, Entry{
				UserID:     b.UserID,
				Wallet:     b.Wallet,
				Cumulative: b.Amount,
			})
		}
	}

	totalEarned := new(big.Int)
	for i := range final {
		totalEarned.Add(totalEarned, final[i].Earned.Raw())
	}
	if totalEarned.Sign() == 0 {
		// Pool too small to assign a single raw unit this cycle.
		r.log.Info("cycle: computed rewards all round to zero", "pool", pool.String())
		return &Result{Skipped: true, Reason: "pool too small"}, nil
	}

	tree, rewards, err := buildTreeAndRewards(final)
	if err != nil {
		return nil, err
	}

	if r.cfg.DryRun {
		return &Result{Skipped: true, Reason: "dry run", Participants: tree.Len(), TotalAmount: totalEarned.String()}, nil
	}

	dist := &store.Distribution{
		ID:               uuid.New(),
		MerkleRoot:       tree.Root(),
		TotalAmount:      amount.NewDelta(totalEarned),
		ParticipantCount: tree.Len(),
	}
	for i := range rewards {
		rewards[i].DistributionID = dist.ID
	}
	if err := r.cfg.Store.CreateDistribution(ctx, dist, rewards); err != nil {
		return nil, fmt.Errorf("failed to persist distribution: %w", err)
	}

	if !totalEarned.IsUint64() {
		return nil, fmt.Errorf("cycle total %s overflows u64", totalEarned.String())
	}
	sig, err := r.cfg.Chain.SubmitDistribution(ctx, totalEarned.Uint64(), tree.Root())
	if err != nil {
		// The unsubmitted row is harmless: the next cycle recomputes
		// from the last submitted state.
		return nil, fmt.Errorf("failed to submit distribution %s on-chain: %w", dist.ID, err)
	}

	if err := r.cfg.Store.MarkSubmitted(ctx, dist.ID, sig.String()); err != nil {
		return nil, fmt.Errorf("distribution %s landed on-chain as %s but could not be recorded: %w", dist.ID, sig, err)
	}

	r.log.Info("cycle: distribution complete",
		"distribution", dist.ID, "participants", dist.ParticipantCount,
		"total", dist.TotalAmount.String(), "tx", sig.String())

	id := dist.ID
	return &Result{
		DistributionID: &id,
		Participants:   dist.ParticipantCount,
		TotalAmount:    dist.TotalAmount.String(),
		TxSignature:    sig.String(),
	}, nil
}

func (r *Runner) loadState(ctx context.Context) ([]Eligible, []store.RewardBaseline, error) {
	users, err := r.cfg.Store.EligibleUsers(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load eligible users: %w", err)
	}
	baselines, err := r.cfg.Store.SubmittedBaselines(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load submitted baselines: %w", err)
	}

	byUser := make(map[uuid.UUID]*store.RewardBaseline, len(baselines))
	for i := range baselines {
		byUser[baselines[i].UserID] = &baselines[i]
	}

	eligible := make([]Eligible, 0, len(users))
	for i := range users {
		u := &users[i]
		e := Eligible{UserID: u.ID, Wallet: *u.Wallet, Points: u.Points}
		if b, ok := byUser[u.ID]; ok {
			e.PointsDistributed = b.PointsDistributed
			e.PriorCumulative = b.Amount
		}
		eligible = append(eligible, e)
	}
	return eligible, baselines, nil
}

func buildTreeAndRewards(entries []Entry) (*yap.Tree, []store.UserReward, error) {
	leaves := make([]yap.Leaf, 0, len(entries))
	wallets := make(map[uuid.UUID]solana.PublicKey, len(entries))
	for i := range entries {
		e := &entries[i]
		pk, err := solana.PublicKeyFromBase58(e.Wallet)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid wallet %q for user %s: %w", e.Wallet, e.UserID, err)
		}
		amt, err := e.Cumulative.Uint64()
		if err != nil {
			return nil, nil, fmt.Errorf("cumulative for user %s: %w", e.UserID, err)
		}
		wallets[e.UserID] = pk
		leaves = append(leaves, yap.Leaf{Wallet: pk, Amount: amt})
	}

	tree, err := yap.NewTree(leaves)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build merkle tree: %w", err)
	}

	rewards := make([]store.UserReward, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		_, proof, err := tree.ProofFor(wallets[e.UserID])
		if err != nil {
			return nil, nil, fmt.Errorf("failed to derive proof for user %s: %w", e.UserID, err)
		}
		rewards = append(rewards, store.UserReward{
			ID:              uuid.New(),
			UserID:          e.UserID,
			Wallet:          e.Wallet,
			Amount:          e.Cumulative,
			AmountEarned:    e.Earned,
			PointsConverted: e.PointsConverted,
			Proof:           yap.EncodeProof(proof),
		})
	}
	return tree, rewards, nil
}
