package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yapprotocol/yap-engine/pkg/amount"
)

// CreateDistribution persists a distribution and all of its user
// reward rows in a single transaction. A database failure leaves
// nothing behind; no partial distribution can ever be marked submitted.
func (s *Store) CreateDistribution(ctx context.Context, d *Distribution, rewards []UserReward) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO distributions (id, merkle_root, total_amount, participant_count)
		VALUES ($1, $2, $3::numeric, $4)
	`, d.ID, d.MerkleRoot[:], d.TotalAmount.String(), d.ParticipantCount); err != nil {
		return fmt.Errorf("failed to insert distribution: %w", err)
	}

	for i := range rewards {
		r := &rewards[i]
		if _, err := tx.Exec(ctx, `
			INSERT INTO user_rewards
				(id, distribution_id, user_id, wallet, amount, amount_earned, points_converted, proof)
			VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7, $8)
		`, r.ID, d.ID, r.UserID, r.Wallet, r.Amount.String(), r.AmountEarned.String(), r.PointsConverted, r.Proof); err != nil {
			return fmt.Errorf("failed to insert user reward for %s: %w", r.UserID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit distribution: %w", err)
	}

	s.log.Info("store: distribution created",
		"distribution", d.ID, "participants", d.ParticipantCount, "total", d.TotalAmount.String())
	return nil
}

// MarkSubmitted records the on-chain submission of a distribution.
// One-way latch: a second call for the same distribution fails with
// ErrAlreadySubmitted.
func (s *Store) MarkSubmitted(ctx context.Context, id uuid.UUID, txSignature string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE distributions
		SET submitted_at = now(), submitted_tx = $2
		WHERE id = $1 AND submitted_at IS NULL
	`, id, txSignature)
	if err != nil {
		return fmt.Errorf("failed to mark distribution submitted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrAlreadySubmitted, id)
	}
	s.log.Info("store: distribution submitted", "distribution", id, "tx", txSignature)
	return nil
}

// GetDistribution fetches one distribution, or nil if unknown.
func (s *Store) GetDistribution(ctx context.Context, id uuid.UUID) (*Distribution, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, merkle_root, total_amount::text, participant_count, created_at, submitted_at, submitted_tx
		FROM distributions
		WHERE id = $1
	`, id)
	d, err := scanDistribution(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return d, err
}

// LatestSubmittedDistribution fetches the most recently created
// distribution whose root is live on-chain, or nil if none exists yet.
func (s *Store) LatestSubmittedDistribution(ctx context.Context) (*Distribution, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, merkle_root, total_amount::text, participant_count, created_at, submitted_at, submitted_tx
		FROM distributions
		WHERE submitted_at IS NOT NULL
		ORDER BY created_at DESC
		LIMIT 1
	`)
	d, err := scanDistribution(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return d, err
}

// SubmittedBaselines returns, per user, the cumulative amount and
// total converted points as of the last submitted distribution. Users
// who have never appeared in a submitted distribution are absent.
func (s *Store) SubmittedBaselines(ctx context.Context) ([]RewardBaseline, error) {
	rows, err := s.pool.Query(ctx, `
		WITH submitted AS (
			SELECT ur.user_id, ur.wallet, ur.amount, ur.points_converted, d.created_at
			FROM user_rewards ur
			JOIN distributions d ON d.id = ur.distribution_id
			WHERE d.submitted_at IS NOT NULL
		)
		SELECT DISTINCT ON (user_id)
			user_id,
			wallet,
			amount::text,
			SUM(points_converted) OVER (PARTITION BY user_id)
		FROM submitted
		ORDER BY user_id, created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query submitted baselines: %w", err)
	}
	defer rows.Close()

	var out []RewardBaseline
	for rows.Next() {
		var b RewardBaseline
		var amountStr string
		if err := rows.Scan(&b.UserID, &b.Wallet, &amountStr, &b.PointsDistributed); err != nil {
			return nil, fmt.Errorf("failed to scan baseline: %w", err)
		}
		if b.Amount, err = amount.CumulativeFromString(amountStr); err != nil {
			return nil, fmt.Errorf("corrupt cumulative amount for %s: %w", b.UserID, err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanDistribution(row pgx.Row) (*Distribution, error) {
	var d Distribution
	var root []byte
	var totalStr string
	if err := row.Scan(&d.ID, &root, &totalStr, &d.ParticipantCount, &d.CreatedAt, &d.SubmittedAt, &d.SubmittedTx); err != nil {
		return nil, err
	}
	copy(d.MerkleRoot[:], root)
	var err error
	if d.TotalAmount, err = amount.DeltaFromString(totalStr); err != nil {
		return nil, fmt.Errorf("corrupt total amount for %s: %w", d.ID, err)
	}
	return &d, nil
}
