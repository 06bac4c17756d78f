package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UpsertUser writes the engine-side projection of an upstream user.
// Points and wallet are overwritten; the upstream app owns them.
func (s *Store) UpsertUser(ctx context.Context, u *User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, handle, wallet, points)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET handle = EXCLUDED.handle,
		    wallet = EXCLUDED.wallet,
		    points = EXCLUDED.points,
		    updated_at = now()
	`, u.ID, u.Handle, u.Wallet, u.Points)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// GetUser fetches one user, or nil if unknown.
func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, handle, wallet, points, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id)
	var u User
	err := row.Scan(&u.ID, &u.Handle, &u.Wallet, &u.Points, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &u, nil
}

// GetUserByWallet fetches the user owning a wallet, or nil.
func (s *Store) GetUserByWallet(ctx context.Context, wallet string) (*User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, handle, wallet, points, created_at, updated_at
		FROM users
		WHERE wallet = $1
	`, wallet)
	var u User
	err := row.Scan(&u.ID, &u.Handle, &u.Wallet, &u.Points, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user by wallet: %w", err)
	}
	return &u, nil
}

// EligibleUsers lists users who can receive rewards this cycle: a
// connected wallet and a positive point balance.
func (s *Store) EligibleUsers(ctx context.Context) ([]User, error) {
	return s.queryUsers(ctx, `
		SELECT id, handle, wallet, points, created_at, updated_at
		FROM users
		WHERE wallet IS NOT NULL AND points > 0
		ORDER BY id
	`)
}

// UsersWithWallets lists all wallet-connected users, for the snapshot
// batch job.
func (s *Store) UsersWithWallets(ctx context.Context) ([]User, error) {
	return s.queryUsers(ctx, `
		SELECT id, handle, wallet, points, created_at, updated_at
		FROM users
		WHERE wallet IS NOT NULL
		ORDER BY id
	`)
}

func (s *Store) queryUsers(ctx context.Context, query string) ([]User, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Handle, &u.Wallet, &u.Points, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
