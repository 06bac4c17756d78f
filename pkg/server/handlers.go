package server

import (
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/yapprotocol/yap-engine/pkg/amount"
	"github.com/yapprotocol/yap-engine/pkg/chain"
	"github.com/yapprotocol/yap-engine/pkg/store"
	"github.com/yapprotocol/yap-engine/pkg/yap"
)

// ClaimProofResponse is the proof query result the claim UI consumes.
type ClaimProofResponse struct {
	Claimable       bool     `json:"claimable"`
	Amount          string   `json:"amount,omitempty"`
	AmountFormatted string   `json:"amount_formatted,omitempty"`
	Proof           []string `json:"proof,omitempty"`
	DistributionID  string   `json:"distribution_id,omitempty"`
}

func (s *Server) handleClaimProof(w http.ResponseWriter, r *http.Request) {
	walletRaw := chi.URLParam(r, "wallet")
	if _, err := parseWallet(walletRaw); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reward, err := s.cfg.Store.GetClaimableByWallet(r.Context(), walletRaw)
	if err != nil {
		s.log.Error("server: claim proof lookup failed", "wallet", walletRaw, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to look up claim")
		return
	}
	if reward == nil {
		writeJSON(w, http.StatusOK, ClaimProofResponse{Claimable: false})
		return
	}

	proof, err := yap.DecodeProof(reward.Proof)
	if err != nil {
		s.log.Error("server: stored proof is corrupt", "reward", reward.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "stored proof is corrupt")
		return
	}
	elems := make([]string, len(proof))
	for i := range proof {
		elems[i] = hex.EncodeToString(proof[i][:])
	}

	writeJSON(w, http.StatusOK, ClaimProofResponse{
		Claimable:       true,
		Amount:          reward.Amount.String(),
		AmountFormatted: reward.Amount.Formatted(),
		Proof:           elems,
		DistributionID:  reward.DistributionID.String(),
	})
}

// RecordClaimRequest reports an observed on-chain claim transaction.
type RecordClaimRequest struct {
	UserID            uuid.UUID  `json:"user_id"`
	Wallet            string     `json:"wallet"`
	AmountClaimed     string     `json:"amount_claimed"`
	CumulativeClaimed string     `json:"cumulative_claimed"`
	UserRewardID      *uuid.UUID `json:"user_reward_id,omitempty"`
	TxSignature       string     `json:"tx_signature"`
	ClaimedAt         *time.Time `json:"claimed_at,omitempty"`
}

func (s *Server) handleRecordClaim(w http.ResponseWriter, r *http.Request) {
	var req RecordClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == uuid.Nil || req.TxSignature == "" {
		writeError(w, http.StatusBadRequest, "user_id and tx_signature are required")
		return
	}
	wallet, err := parseWallet(req.Wallet)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	claimed, err := amount.DeltaFromString(req.AmountClaimed)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount_claimed")
		return
	}
	cumulative, err := amount.CumulativeFromString(req.CumulativeClaimed)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid cumulative_claimed")
		return
	}

	// The reported cumulative must be backed by the wallet's on-chain
	// claim account; the endpoint is unauthenticated and a forged
	// cumulative would suppress the user's claimability.
	status, err := s.cfg.Chain.UserClaimStatus(r.Context(), wallet)
	if err != nil {
		s.log.Error("server: failed to fetch on-chain claim status", "wallet", req.Wallet, "error", err)
		writeError(w, http.StatusBadGateway, "failed to verify claim against chain")
		return
	}
	if cumulative.Raw().Cmp(new(big.Int).SetUint64(status.ClaimedAmount)) > 0 {
		s.log.Warn("server: reported cumulative exceeds on-chain claimed amount",
			"wallet", req.Wallet, "reported", cumulative.String(), "on_chain", status.ClaimedAmount)
		writeError(w, http.StatusConflict, "cumulative_claimed exceeds on-chain claimed amount")
		return
	}

	claimedAt := time.Now().UTC()
	if req.ClaimedAt != nil {
		claimedAt = req.ClaimedAt.UTC()
	}

	event := &store.ClaimEvent{
		ID:                uuid.New(),
		UserID:            req.UserID,
		Wallet:            req.Wallet,
		AmountClaimed:     claimed,
		CumulativeClaimed: cumulative,
		UserRewardID:      req.UserRewardID,
		TxSignature:       req.TxSignature,
		ClaimedAt:         claimedAt,
	}
	if err := s.cfg.Store.RecordClaim(r.Context(), event); err != nil {
		s.log.Error("server: failed to record claim", "tx", req.TxSignature, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to record claim")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"recorded": true})
}

// RewardsResponse summarizes a user's reward state.
type RewardsResponse struct {
	ClaimedTotal   string  `json:"claimed_total"`
	UnclaimedTotal string  `json:"unclaimed_total"`
	VoteWeight     float64 `json:"vote_weight"`
}

func (s *Server) handleRewards(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	claimed, err := s.cfg.Store.ClaimedTotal(r.Context(), userID)
	if err != nil {
		s.log.Error("server: failed to load claimed total", "user", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load rewards")
		return
	}
	unclaimed, err := s.cfg.Store.UnclaimedTotal(r.Context(), userID)
	if err != nil {
		s.log.Error("server: failed to load unclaimed total", "user", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load rewards")
		return
	}
	weight, err := s.cfg.Store.VoteWeight(r.Context(), userID)
	if err != nil {
		s.log.Error("server: failed to load vote weight", "user", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load rewards")
		return
	}

	writeJSON(w, http.StatusOK, RewardsResponse{
		ClaimedTotal:   claimed.String(),
		UnclaimedTotal: unclaimed.String(),
		VoteWeight:     weight,
	})
}

// StatusResponse is the operator-facing program snapshot.
type StatusResponse struct {
	Initialized      bool   `json:"initialized"`
	MerkleRoot       string `json:"merkle_root,omitempty"`
	CurrentSupply    uint64 `json:"current_supply,omitempty"`
	LastDistribution int64  `json:"last_distribution_ts,omitempty"`
	VaultBalance     string `json:"vault_balance,omitempty"`
	PendingClaims    string `json:"pending_claims_balance,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.cfg.Chain.ProgramConfig(r.Context())
	if errors.Is(err, chain.ErrAccountNotInitialized) {
		writeJSON(w, http.StatusOK, StatusResponse{Initialized: false})
		return
	}
	if err != nil {
		s.log.Error("server: failed to load program config", "error", err)
		writeError(w, http.StatusBadGateway, "chain unavailable, retry shortly")
		return
	}

	vault := zeroIfUninitialized(s.vaultBalance(r))
	pending := zeroIfUninitialized(s.pendingBalance(r))

	writeJSON(w, http.StatusOK, StatusResponse{
		Initialized:      true,
		MerkleRoot:       hex.EncodeToString(cfg.MerkleRoot[:]),
		CurrentSupply:    cfg.CurrentSupply,
		LastDistribution: cfg.LastDistributionTs,
		VaultBalance:     vault.String(),
		PendingClaims:    pending.String(),
	})
}

func (s *Server) vaultBalance(r *http.Request) (*big.Int, error) {
	return s.cfg.Chain.VaultBalance(r.Context())
}

func (s *Server) pendingBalance(r *http.Request) (*big.Int, error) {
	return s.cfg.Chain.PendingClaimsBalance(r.Context())
}

func zeroIfUninitialized(v *big.Int, err error) *big.Int {
	if err != nil || v == nil {
		return new(big.Int)
	}
	return v
}

func (s *Server) handleDistribute(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.CronSecret)) != 1 {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	result, err := s.cfg.Runner.Run(r.Context())
	if err != nil {
		s.log.Error("server: distribution cycle failed", "error", err)
		writeError(w, http.StatusInternalServerError, "distribution cycle failed; see logs")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
