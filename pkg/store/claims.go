package store

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yapprotocol/yap-engine/pkg/amount"
	"github.com/yapprotocol/yap-engine/pkg/metrics"
)

// RecordClaim appends a claim event. Observing the same transaction
// signature twice is a silent no-op so claim confirmation can be
// retried after a network error without double-counting.
func (s *Store) RecordClaim(ctx context.Context, e *ClaimEvent) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO claim_events
			(id, user_id, wallet, amount_claimed, cumulative_claimed, user_reward_id, tx_signature, claimed_at)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7, $8)
		ON CONFLICT (tx_signature) DO NOTHING
	`, e.ID, e.UserID, e.Wallet, e.AmountClaimed.String(), e.CumulativeClaimed.String(),
		e.UserRewardID, e.TxSignature, e.ClaimedAt)
	if err != nil {
		return fmt.Errorf("failed to insert claim event: %w", err)
	}

	if tag.RowsAffected() == 0 {
		s.log.Debug("store: duplicate claim transaction absorbed", "tx", e.TxSignature)
		metrics.ClaimEventsRecorded.WithLabelValues("duplicate").Inc()
		return nil
	}

	metrics.ClaimEventsRecorded.WithLabelValues("recorded").Inc()
	s.log.Info("store: claim recorded",
		"user", e.UserID, "tx", e.TxSignature,
		"claimed", e.AmountClaimed.String(), "cumulative", e.CumulativeClaimed.String())
	return nil
}

// ClaimedTotal is the user's running claimed total: the max
// cumulative_claimed over their claim events, or zero.
func (s *Store) ClaimedTotal(ctx context.Context, userID uuid.UUID) (amount.Cumulative, error) {
	var str string
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(cumulative_claimed), 0)::text
		FROM claim_events
		WHERE user_id = $1
	`, userID).Scan(&str)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return amount.Cumulative{}, fmt.Errorf("failed to query claimed total: %w", err)
	}
	if str == "" {
		return amount.Cumulative{}, nil
	}
	return amount.CumulativeFromString(str)
}

// UnclaimedTotal is max(submitted cumulative) - claimed_total, clamped
// to zero. The max spans every submitted reward, not just the latest
// one, so a non-monotonic ledger can only over-report what the user is
// owed, never shrink it. A negative intermediate means the ledger is
// inconsistent; it is clamped, logged, and counted rather than
// surfaced to a user.
func (s *Store) UnclaimedTotal(ctx context.Context, userID uuid.UUID) (amount.Cumulative, error) {
	var owedStr string
	var hasReward bool
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(ur.amount), 0)::text, COUNT(*) > 0
		FROM user_rewards ur
		JOIN distributions d ON d.id = ur.distribution_id
		WHERE d.submitted_at IS NOT NULL AND ur.user_id = $1
	`, userID).Scan(&owedStr, &hasReward)
	if err != nil {
		return amount.Cumulative{}, fmt.Errorf("failed to query submitted reward max: %w", err)
	}
	if !hasReward {
		return amount.Cumulative{}, nil
	}
	owed, err := amount.CumulativeFromString(owedStr)
	if err != nil {
		return amount.Cumulative{}, fmt.Errorf("corrupt submitted reward max for %s: %w", userID, err)
	}
	claimed, err := s.ClaimedTotal(ctx, userID)
	if err != nil {
		return amount.Cumulative{}, err
	}

	delta := owed.Sub(claimed)
	if delta.Sign() < 0 {
		s.log.Warn("store: negative unclaimed total clamped to zero",
			"user", userID, "owed", owed.String(), "claimed", claimed.String())
		metrics.IntegrityClampTotal.Inc()
		return amount.Cumulative{}, nil
	}
	return amount.NewCumulative(delta.Raw()), nil
}

// GetBatchUnclaimed computes unclaimed totals for many users in a
// single aggregate query, clamping negatives to zero in SQL. Users
// with no submitted rewards map to zero.
func (s *Store) GetBatchUnclaimed(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]amount.Cumulative, error) {
	out := make(map[uuid.UUID]amount.Cumulative, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT ids.user_id,
		       GREATEST(COALESCE(r.owed, 0) - COALESCE(c.claimed, 0), 0)::text,
		       (COALESCE(r.owed, 0) - COALESCE(c.claimed, 0) < 0)
		FROM unnest($1::uuid[]) AS ids(user_id)
		LEFT JOIN (
			SELECT ur.user_id, MAX(ur.amount) AS owed
			FROM user_rewards ur
			JOIN distributions d ON d.id = ur.distribution_id
			WHERE d.submitted_at IS NOT NULL
			GROUP BY ur.user_id
		) r ON r.user_id = ids.user_id
		LEFT JOIN (
			SELECT user_id, MAX(cumulative_claimed) AS claimed
			FROM claim_events
			GROUP BY user_id
		) c ON c.user_id = ids.user_id
	`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query batch unclaimed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var str string
		var clamped bool
		if err := rows.Scan(&id, &str, &clamped); err != nil {
			return nil, fmt.Errorf("failed to scan batch unclaimed: %w", err)
		}
		if clamped {
			s.log.Warn("store: negative unclaimed total clamped to zero", "user", id)
			metrics.IntegrityClampTotal.Inc()
		}
		c, err := amount.CumulativeFromString(str)
		if err != nil {
			return nil, fmt.Errorf("corrupt unclaimed total for %s: %w", id, err)
		}
		out[id] = c
	}
	return out, rows.Err()
}

// ClaimEvents lists a user's claim history, oldest first.
func (s *Store) ClaimEvents(ctx context.Context, userID uuid.UUID) ([]ClaimEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, wallet, amount_claimed::text, cumulative_claimed::text,
		       user_reward_id, tx_signature, claimed_at, created_at
		FROM claim_events
		WHERE user_id = $1
		ORDER BY claimed_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query claim events: %w", err)
	}
	defer rows.Close()

	var out []ClaimEvent
	for rows.Next() {
		var e ClaimEvent
		var claimedStr, cumulativeStr string
		if err := rows.Scan(&e.ID, &e.UserID, &e.Wallet, &claimedStr, &cumulativeStr,
			&e.UserRewardID, &e.TxSignature, &e.ClaimedAt, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan claim event: %w", err)
		}
		if e.AmountClaimed, err = amount.DeltaFromString(claimedStr); err != nil {
			return nil, fmt.Errorf("corrupt claim amount for %s: %w", e.ID, err)
		}
		if e.CumulativeClaimed, err = amount.CumulativeFromString(cumulativeStr); err != nil {
			return nil, fmt.Errorf("corrupt cumulative claimed for %s: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// bigOrZero is a scan helper for NUMERIC columns read as text.
func bigOrZero(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return new(big.Int)
	}
	return v
}
