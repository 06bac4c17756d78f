package server_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yapprotocol/yap-engine/pkg/amount"
	"github.com/yapprotocol/yap-engine/pkg/chain"
	"github.com/yapprotocol/yap-engine/pkg/distribution"
	"github.com/yapprotocol/yap-engine/pkg/server"
	"github.com/yapprotocol/yap-engine/pkg/store"
	"github.com/yapprotocol/yap-engine/pkg/yap"
)

const testCronSecret = "test-cron-secret"

// mockChain serves both the handler and runner chain interfaces.
type mockChain struct {
	cfg         *yap.Config
	cfgErr      error
	vault       *big.Int
	pending     *big.Int
	claimStatus *yap.UserClaimStatus
	claimErr    error
}

func (m *mockChain) ProgramConfig(ctx context.Context) (*yap.Config, error) {
	if m.cfgErr != nil {
		return nil, m.cfgErr
	}
	return m.cfg, nil
}

func (m *mockChain) VaultBalance(ctx context.Context) (*big.Int, error) {
	if m.vault == nil {
		return nil, chain.ErrAccountNotInitialized
	}
	return m.vault, nil
}

func (m *mockChain) PendingClaimsBalance(ctx context.Context) (*big.Int, error) {
	if m.pending == nil {
		return nil, chain.ErrAccountNotInitialized
	}
	return m.pending, nil
}

func (m *mockChain) UserClaimStatus(ctx context.Context, wallet solana.PublicKey) (*yap.UserClaimStatus, error) {
	if m.claimErr != nil {
		return nil, m.claimErr
	}
	if m.claimStatus != nil {
		return m.claimStatus, nil
	}
	return &yap.UserClaimStatus{}, nil
}

func (m *mockChain) SubmitDistribution(ctx context.Context, amount uint64, merkleRoot [32]byte) (solana.Signature, error) {
	return solana.Signature{1}, nil
}

func newTestServer(t *testing.T, s *store.Store, ch *mockChain) http.Handler {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	runner, err := distribution.NewRunner(distribution.RunnerConfig{
		Logger: log,
		Store:  s,
		Chain:  ch,
	})
	require.NoError(t, err)

	srv, err := server.New(server.Config{
		Logger:     log,
		Store:      s,
		Chain:      ch,
		Runner:     runner,
		CronSecret: testCronSecret,
	})
	require.NoError(t, err)
	return srv.Handler()
}

func doRequest(t *testing.T, h http.Handler, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.RemoteAddr = "10.0.0.1:1234"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func newWallet(t *testing.T) string {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return key.PublicKey().String()
}

func cum(t *testing.T, s string) amount.Cumulative {
	t.Helper()
	c, err := amount.CumulativeFromString(s)
	require.NoError(t, err)
	return c
}

func seedSubmittedReward(t *testing.T, s *store.Store, userID uuid.UUID, wallet, cumulative string, proof []byte) uuid.UUID {
	t.Helper()
	d := &store.Distribution{
		ID:               uuid.New(),
		MerkleRoot:       [32]byte{0xcc},
		ParticipantCount: 1,
	}
	require.NoError(t, s.CreateDistribution(t.Context(), d, []store.UserReward{{
		ID:     uuid.New(),
		UserID: userID,
		Wallet: wallet,
		Amount: cum(t, cumulative),
		Proof:  proof,
	}}))
	require.NoError(t, s.MarkSubmitted(t.Context(), d.ID, "seed-"+d.ID.String()[:8]))
	return d.ID
}

func TestHandleClaimProof(t *testing.T) {
	s := newTestStore(t)
	h := newTestServer(t, s, &mockChain{})

	t.Run("invalid wallet", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/api/claim/not-a-wallet", nil, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("nothing claimable", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/api/claim/"+newWallet(t), nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeBody[server.ClaimProofResponse](t, rec)
		assert.False(t, resp.Claimable)
		assert.Empty(t, resp.Proof)
	})

	t.Run("claimable with proof", func(t *testing.T) {
		wallet := newWallet(t)
		userID := uuid.New()
		u := &store.User{ID: userID, Handle: "alice", Wallet: &wallet}
		require.NoError(t, s.UpsertUser(t.Context(), u))

		proof := make([]byte, 64)
		proof[0] = 0xab
		proof[32] = 0xcd
		distID := seedSubmittedReward(t, s, userID, wallet, "3160000000000", proof)

		rec := doRequest(t, h, http.MethodGet, "/api/claim/"+wallet, nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeBody[server.ClaimProofResponse](t, rec)
		assert.True(t, resp.Claimable)
		assert.Equal(t, "3160000000000", resp.Amount)
		assert.Equal(t, "3,160", resp.AmountFormatted)
		assert.Equal(t, distID.String(), resp.DistributionID)
		require.Len(t, resp.Proof, 2)
		assert.Equal(t, hex.EncodeToString(proof[:32]), resp.Proof[0])
		assert.Equal(t, hex.EncodeToString(proof[32:]), resp.Proof[1])
	})
}

func TestHandleRecordClaim(t *testing.T) {
	s := newTestStore(t)
	h := newTestServer(t, s, &mockChain{
		claimStatus: &yap.UserClaimStatus{ClaimedAmount: 1000},
	})

	wallet := newWallet(t)
	userID := uuid.New()

	valid := server.RecordClaimRequest{
		UserID:            userID,
		Wallet:            wallet,
		AmountClaimed:     "1000",
		CumulativeClaimed: "1000",
		TxSignature:       "tx-sig-1",
	}

	t.Run("records claim", func(t *testing.T) {
		u := &store.User{ID: userID, Handle: "alice", Wallet: &wallet}
		require.NoError(t, s.UpsertUser(t.Context(), u))

		body, err := json.Marshal(valid)
		require.NoError(t, err)
		rec := doRequest(t, h, http.MethodPost, "/api/claim/record", body, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		events, err := s.ClaimEvents(t.Context(), userID)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "tx-sig-1", events[0].TxSignature)
		assert.Equal(t, "1000", events[0].CumulativeClaimed.String())
	})

	t.Run("replay is accepted without double count", func(t *testing.T) {
		body, err := json.Marshal(valid)
		require.NoError(t, err)
		rec := doRequest(t, h, http.MethodPost, "/api/claim/record", body, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		events, err := s.ClaimEvents(t.Context(), userID)
		require.NoError(t, err)
		assert.Len(t, events, 1)
	})

	t.Run("invalid body", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodPost, "/api/claim/record", []byte("{"), nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		req := valid
		req.TxSignature = ""
		body, err := json.Marshal(req)
		require.NoError(t, err)
		rec := doRequest(t, h, http.MethodPost, "/api/claim/record", body, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("negative amount", func(t *testing.T) {
		req := valid
		req.TxSignature = "tx-sig-2"
		req.AmountClaimed = "-5"
		body, err := json.Marshal(req)
		require.NoError(t, err)
		rec := doRequest(t, h, http.MethodPost, "/api/claim/record", body, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects cumulative above on-chain claimed", func(t *testing.T) {
		req := valid
		req.TxSignature = "tx-sig-3"
		req.AmountClaimed = "1"
		req.CumulativeClaimed = "1001"
		body, err := json.Marshal(req)
		require.NoError(t, err)
		rec := doRequest(t, h, http.MethodPost, "/api/claim/record", body, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)

		events, err := s.ClaimEvents(t.Context(), userID)
		require.NoError(t, err)
		assert.Len(t, events, 1)
	})

	t.Run("chain lookup failure", func(t *testing.T) {
		hDown := newTestServer(t, s, &mockChain{claimErr: errors.New("rpc unavailable")})
		req := valid
		req.TxSignature = "tx-sig-4"
		body, err := json.Marshal(req)
		require.NoError(t, err)
		rec := doRequest(t, hDown, http.MethodPost, "/api/claim/record", body, nil)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestHandleRewards(t *testing.T) {
	s := newTestStore(t)
	h := newTestServer(t, s, &mockChain{})

	t.Run("invalid user id", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/api/rewards/not-a-uuid", nil, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("summarizes claim state", func(t *testing.T) {
		wallet := newWallet(t)
		userID := uuid.New()
		u := &store.User{ID: userID, Handle: "alice", Wallet: &wallet}
		require.NoError(t, s.UpsertUser(t.Context(), u))

		seedSubmittedReward(t, s, userID, wallet, "5000", nil)
		require.NoError(t, s.RecordClaim(t.Context(), &store.ClaimEvent{
			ID:                uuid.New(),
			UserID:            userID,
			Wallet:            wallet,
			AmountClaimed:     mustDelta(t, "2000"),
			CumulativeClaimed: cum(t, "2000"),
			TxSignature:       "rewards-tx-1",
			ClaimedAt:         time.Now().UTC(),
		}))

		rec := doRequest(t, h, http.MethodGet, "/api/rewards/"+userID.String(), nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeBody[server.RewardsResponse](t, rec)
		assert.Equal(t, "2000", resp.ClaimedTotal)
		assert.Equal(t, "3000", resp.UnclaimedTotal)
		assert.Equal(t, 1.0, resp.VoteWeight)
	})
}

func mustDelta(t *testing.T, s string) amount.Delta {
	t.Helper()
	d, err := amount.DeltaFromString(s)
	require.NoError(t, err)
	return d
}

func TestHandleStatus(t *testing.T) {
	s := newTestStore(t)

	t.Run("uninitialized program", func(t *testing.T) {
		h := newTestServer(t, s, &mockChain{cfgErr: chain.ErrAccountNotInitialized})
		rec := doRequest(t, h, http.MethodGet, "/api/status", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeBody[server.StatusResponse](t, rec)
		assert.False(t, resp.Initialized)
	})

	t.Run("initialized program", func(t *testing.T) {
		cfg := &yap.Config{
			CurrentSupply:      1_000_000_000_000,
			LastDistributionTs: 1_756_600_000,
		}
		cfg.MerkleRoot[0] = 0xee
		h := newTestServer(t, s, &mockChain{
			cfg:     cfg,
			vault:   big.NewInt(700),
			pending: big.NewInt(42),
		})

		rec := doRequest(t, h, http.MethodGet, "/api/status", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeBody[server.StatusResponse](t, rec)
		assert.True(t, resp.Initialized)
		assert.Equal(t, hex.EncodeToString(cfg.MerkleRoot[:]), resp.MerkleRoot)
		assert.Equal(t, uint64(1_000_000_000_000), resp.CurrentSupply)
		assert.Equal(t, "700", resp.VaultBalance)
		assert.Equal(t, "42", resp.PendingClaims)
	})

	t.Run("uninitialized balances read as zero", func(t *testing.T) {
		h := newTestServer(t, s, &mockChain{cfg: &yap.Config{}})
		rec := doRequest(t, h, http.MethodGet, "/api/status", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeBody[server.StatusResponse](t, rec)
		assert.True(t, resp.Initialized)
		assert.Equal(t, "0", resp.VaultBalance)
		assert.Equal(t, "0", resp.PendingClaims)
	})
}

func TestHandleDistributeAuth(t *testing.T) {
	s := newTestStore(t)
	h := newTestServer(t, s, &mockChain{cfgErr: chain.ErrAccountNotInitialized})

	t.Run("missing token", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodPost, "/api/cron/distribute", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong token", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodPost, "/api/cron/distribute", nil, map[string]string{
			"Authorization": "Bearer nope",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token runs the cycle", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodPost, "/api/cron/distribute", nil, map[string]string{
			"Authorization": "Bearer " + testCronSecret,
		})
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeBody[distribution.Result](t, rec)
		assert.True(t, resp.Skipped)
		assert.Equal(t, "program not initialized", resp.Reason)
	})
}
