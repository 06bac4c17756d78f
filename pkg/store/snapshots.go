package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yapprotocol/yap-engine/pkg/metrics"
)

// InsertWalletSnapshots persists a snapshot batch in one transaction.
// A failed batch leaves no partial snapshots behind.
func (s *Store) InsertWalletSnapshots(ctx context.Context, snapshots []WalletSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		metrics.SnapshotBatchesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i := range snapshots {
		snap := &snapshots[i]
		if _, err := tx.Exec(ctx, `
			INSERT INTO wallet_snapshots
				(id, user_id, wallet, balance, unclaimed_balance, effective_balance, vote_weight)
			VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7)
		`, snap.ID, snap.UserID, snap.Wallet,
			snap.Balance.String(), snap.UnclaimedBalance.String(), snap.EffectiveBalance.String(),
			snap.VoteWeight); err != nil {
			metrics.SnapshotBatchesTotal.WithLabelValues("error").Inc()
			return fmt.Errorf("failed to insert snapshot for %s: %w", snap.UserID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		metrics.SnapshotBatchesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to commit snapshot batch: %w", err)
	}

	metrics.SnapshotBatchesTotal.WithLabelValues("ok").Inc()
	s.log.Info("store: wallet snapshot batch written", "count", len(snapshots))
	return nil
}

// LatestSnapshot returns the most recent snapshot for a user, or nil.
// Only the latest snapshot is operationally relevant; older rows are
// kept as history.
func (s *Store) LatestSnapshot(ctx context.Context, userID uuid.UUID) (*WalletSnapshot, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, wallet, balance::text, unclaimed_balance::text,
		       effective_balance::text, vote_weight, created_at
		FROM wallet_snapshots
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, userID)

	var snap WalletSnapshot
	var balanceStr, unclaimedStr, effectiveStr string
	err := row.Scan(&snap.ID, &snap.UserID, &snap.Wallet,
		&balanceStr, &unclaimedStr, &effectiveStr, &snap.VoteWeight, &snap.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}
	snap.Balance = bigOrZero(balanceStr)
	snap.UnclaimedBalance = bigOrZero(unclaimedStr)
	snap.EffectiveBalance = bigOrZero(effectiveStr)
	return &snap, nil
}

// VoteWeight returns the user's latest snapshotted vote weight. A user
// with no snapshot gets the baseline 1.0; that is a legitimate state,
// not an error.
func (s *Store) VoteWeight(ctx context.Context, userID uuid.UUID) (float64, error) {
	snap, err := s.LatestSnapshot(ctx, userID)
	if err != nil {
		return 0, err
	}
	if snap == nil {
		return 1.0, nil
	}
	return snap.VoteWeight, nil
}
