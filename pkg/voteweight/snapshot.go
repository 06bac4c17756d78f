package voteweight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yapprotocol/yap-engine/pkg/store"
)

// Balances is the subset of the chain client the snapshot job needs.
type Balances interface {
	WalletTokenBalance(ctx context.Context, wallet solana.PublicKey) (*big.Int, error)
}

type EngineConfig struct {
	Logger *slog.Logger
	Store  *store.Store
	Chain  Balances

	// MaxConcurrency bounds parallel balance fetches.
	MaxConcurrency int
}

func (cfg *EngineConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Store == nil {
		return errors.New("store is required")
	}
	if cfg.Chain == nil {
		return errors.New("chain client is required")
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 16
	}
	return nil
}

// Engine snapshots every wallet-connected user's held balance,
// unclaimed balance, and derived vote weight. Each run writes one
// atomic batch; a failed run leaves no partial snapshots.
type Engine struct {
	log *slog.Logger
	cfg EngineConfig
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{log: cfg.Logger, cfg: cfg}, nil
}

// Run snapshots all wallet-connected users and returns how many rows
// were written.
func (e *Engine) Run(ctx context.Context) (int, error) {
	users, err := e.cfg.Store.UsersWithWallets(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list users: %w", err)
	}
	if len(users) == 0 {
		return 0, nil
	}

	ids := make([]uuid.UUID, len(users))
	for i := range users {
		ids[i] = users[i].ID
	}
	unclaimed, err := e.cfg.Store.GetBatchUnclaimed(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to compute unclaimed totals: %w", err)
	}

	snapshots := make([]store.WalletSnapshot, len(users))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxConcurrency)
	for i := range users {
		g.Go(func() error {
			u := &users[i]
			wallet, err := solana.PublicKeyFromBase58(*u.Wallet)
			if err != nil {
				return fmt.Errorf("invalid wallet %q for user %s: %w", *u.Wallet, u.ID, err)
			}
			balance, err := e.cfg.Chain.WalletTokenBalance(gctx, wallet)
			if err != nil {
				return fmt.Errorf("failed to fetch balance for %s: %w", wallet, err)
			}

			unclaimedBal := unclaimed[u.ID].Raw()
			effective := new(big.Int).Add(balance, unclaimedBal)

			mu.Lock()
			snapshots[i] = store.WalletSnapshot{
				ID:               uuid.New(),
				UserID:           u.ID,
				Wallet:           *u.Wallet,
				Balance:          balance,
				UnclaimedBalance: unclaimedBal,
				EffectiveBalance: effective,
				VoteWeight:       PowerFromRaw(effective),
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	if err := e.cfg.Store.InsertWalletSnapshots(ctx, snapshots); err != nil {
		return 0, err
	}
	e.log.Info("voteweight: snapshot run complete", "users", len(snapshots))
	return len(snapshots), nil
}
