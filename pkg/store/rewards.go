package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yapprotocol/yap-engine/pkg/amount"
)

// GetClaimable returns the user's reward row from the most recent
// submitted distribution, if and only if its cumulative amount exceeds
// what the user has already claimed. A nil result is the normal
// "nothing new to claim" outcome, not an error.
func (s *Store) GetClaimable(ctx context.Context, userID uuid.UUID) (*UserReward, error) {
	reward, err := s.latestSubmittedReward(ctx, `ur.user_id = $1`, userID)
	if err != nil || reward == nil {
		return nil, err
	}

	claimed, err := s.ClaimedTotal(ctx, userID)
	if err != nil {
		return nil, err
	}
	if reward.Amount.Cmp(claimed) <= 0 {
		return nil, nil
	}
	return reward, nil
}

// GetClaimableByWallet is GetClaimable keyed by wallet address, for
// the proof query interface the claim UI consumes.
func (s *Store) GetClaimableByWallet(ctx context.Context, wallet string) (*UserReward, error) {
	reward, err := s.latestSubmittedReward(ctx, `ur.wallet = $1`, wallet)
	if err != nil || reward == nil {
		return nil, err
	}

	claimed, err := s.ClaimedTotal(ctx, reward.UserID)
	if err != nil {
		return nil, err
	}
	if reward.Amount.Cmp(claimed) <= 0 {
		return nil, nil
	}
	return reward, nil
}

func (s *Store) latestSubmittedReward(ctx context.Context, where string, arg any) (*UserReward, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT ur.id, ur.distribution_id, ur.user_id, ur.wallet,
		       ur.amount::text, ur.amount_earned::text, ur.points_converted, ur.proof, ur.created_at
		FROM user_rewards ur
		JOIN distributions d ON d.id = ur.distribution_id
		WHERE d.submitted_at IS NOT NULL AND %s
		ORDER BY d.created_at DESC
		LIMIT 1
	`, where), arg)

	var r UserReward
	var amountStr, earnedStr string
	err := row.Scan(&r.ID, &r.DistributionID, &r.UserID, &r.Wallet,
		&amountStr, &earnedStr, &r.PointsConverted, &r.Proof, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user reward: %w", err)
	}
	if r.Amount, err = amount.CumulativeFromString(amountStr); err != nil {
		return nil, fmt.Errorf("corrupt reward amount for %s: %w", r.ID, err)
	}
	if r.AmountEarned, err = amount.DeltaFromString(earnedStr); err != nil {
		return nil, fmt.Errorf("corrupt earned amount for %s: %w", r.ID, err)
	}
	return &r, nil
}

// RewardsForDistribution lists all reward rows of one distribution.
func (s *Store) RewardsForDistribution(ctx context.Context, distributionID uuid.UUID) ([]UserReward, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, distribution_id, user_id, wallet,
		       amount::text, amount_earned::text, points_converted, proof, created_at
		FROM user_rewards
		WHERE distribution_id = $1
		ORDER BY wallet
	`, distributionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rewards: %w", err)
	}
	defer rows.Close()

	var out []UserReward
	for rows.Next() {
		var r UserReward
		var amountStr, earnedStr string
		if err := rows.Scan(&r.ID, &r.DistributionID, &r.UserID, &r.Wallet,
			&amountStr, &earnedStr, &r.PointsConverted, &r.Proof, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reward: %w", err)
		}
		if r.Amount, err = amount.CumulativeFromString(amountStr); err != nil {
			return nil, fmt.Errorf("corrupt reward amount for %s: %w", r.ID, err)
		}
		if r.AmountEarned, err = amount.DeltaFromString(earnedStr); err != nil {
			return nil, fmt.Errorf("corrupt earned amount for %s: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
