package server_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yapprotocol/yap-engine/pkg/logger"
	"github.com/yapprotocol/yap-engine/pkg/pgtest"
	"github.com/yapprotocol/yap-engine/pkg/store"
)

var testDB *pgtest.DB

func TestMain(m *testing.M) {
	log := logger.NewWithWriter(io.Discard, slog.LevelError)

	db, err := pgtest.NewDB(context.Background(), log, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start test database: %v\n", err)
		os.Exit(1)
	}
	testDB = db

	code := m.Run()
	db.Close()
	os.Exit(code)
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	pool := pgtest.NewTestPool(t, testDB)
	_, err := pool.Exec(t.Context(), `
		TRUNCATE users, distributions, user_rewards, claim_events, wallet_snapshots CASCADE
	`)
	require.NoError(t, err)

	s, err := store.New(store.Config{
		Logger: logger.NewWithWriter(io.Discard, slog.LevelError),
		Pool:   pool,
	})
	require.NoError(t, err)
	return s
}
