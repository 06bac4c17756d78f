// Package chain wraps the Solana JSON-RPC client for the YAP program.
// Every call is bounded by a timeout, transient failures are retried
// with capped exponential backoff, and a missing on-chain account is
// mapped to ErrAccountNotInitialized rather than propagated raw.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/jonboulle/clockwork"

	"github.com/yapprotocol/yap-engine/pkg/metrics"
	"github.com/yapprotocol/yap-engine/pkg/yap"
)

// RPC is the subset of the solana-go RPC client the engine uses.
type RPC interface {
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*solanarpc.GetAccountInfoResult, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment solanarpc.CommitmentType) (*solanarpc.GetTokenAccountBalanceResult, error)
	GetBalance(ctx context.Context, account solana.PublicKey, commitment solanarpc.CommitmentType) (*solanarpc.GetBalanceResult, error)
	GetLatestBlockhash(ctx context.Context, commitment solanarpc.CommitmentType) (*solanarpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts solanarpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...solana.Signature) (*solanarpc.GetSignatureStatusesResult, error)
}

type ClientConfig struct {
	Logger    *slog.Logger
	Clock     clockwork.Clock
	RPC       RPC
	ProgramID solana.PublicKey

	// UpdaterKey signs Distribute transactions. Optional for
	// read-only deployments.
	UpdaterKey solana.PrivateKey

	// RequestTimeout bounds each individual RPC call.
	RequestTimeout time.Duration

	// MaxAttempts caps retries for transient failures.
	MaxAttempts int

	// ConfirmTimeout bounds how long a submitted transaction is
	// polled before ErrConfirmationTimeout.
	ConfirmTimeout time.Duration
}

func (cfg *ClientConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.RPC == nil {
		return errors.New("rpc client is required")
	}
	if cfg.ProgramID.IsZero() {
		return errors.New("program id is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 4
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 90 * time.Second
	}
	return nil
}

// Client is the YAP program's view of the chain. Construct once at
// process start and inject; it holds no hidden global state.
type Client struct {
	log  *slog.Logger
	cfg  ClientConfig
	pdas yap.PDAs
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pdas, err := yap.DerivePDAs(cfg.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive program addresses: %w", err)
	}
	return &Client{log: cfg.Logger, cfg: cfg, pdas: pdas}, nil
}

// PDAs returns the program's derived singleton addresses.
func (c *Client) PDAs() yap.PDAs { return c.pdas }

// ProgramID returns the YAP program id.
func (c *Client) ProgramID() solana.PublicKey { return c.cfg.ProgramID }

// ProgramConfig fetches and decodes the 227-byte config account.
// Returns ErrAccountNotInitialized before the program is initialized.
func (c *Client) ProgramConfig(ctx context.Context) (*yap.Config, error) {
	var out *yap.Config
	err := c.withRetry(ctx, "getAccountInfo(config)", func(ctx context.Context) error {
		res, err := c.cfg.RPC.GetAccountInfo(ctx, c.pdas.Config)
		if err != nil {
			if errors.Is(err, solanarpc.ErrNotFound) {
				return ErrAccountNotInitialized
			}
			return err
		}
		if res == nil || res.Value == nil || res.Value.Data == nil {
			return ErrAccountNotInitialized
		}
		cfg, err := yap.DecodeConfig(res.Value.Data.GetBinary())
		if err != nil {
			return fmt.Errorf("failed to decode config account: %w", err)
		}
		out = cfg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// VaultBalance reads the undistributed token balance, in raw units.
// An uninitialized vault is ErrAccountNotInitialized; the distribution
// cycle maps that to a zero pool.
func (c *Client) VaultBalance(ctx context.Context) (*big.Int, error) {
	return c.tokenBalance(ctx, c.pdas.Vault)
}

// PendingClaimsBalance reads the distributed-but-unclaimed balance.
func (c *Client) PendingClaimsBalance(ctx context.Context) (*big.Int, error) {
	return c.tokenBalance(ctx, c.pdas.PendingClaims)
}

// WalletTokenBalance reads a wallet's YAP balance via its associated
// token account. A wallet with no token account holds zero.
func (c *Client) WalletTokenBalance(ctx context.Context, wallet solana.PublicKey) (*big.Int, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(wallet, c.pdas.Mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive token account for %s: %w", wallet, err)
	}
	balance, err := c.tokenBalance(ctx, ata)
	if errors.Is(err, ErrAccountNotInitialized) {
		return new(big.Int), nil
	}
	return balance, err
}

func (c *Client) tokenBalance(ctx context.Context, account solana.PublicKey) (*big.Int, error) {
	var out *big.Int
	err := c.withRetry(ctx, "getTokenAccountBalance", func(ctx context.Context) error {
		res, err := c.cfg.RPC.GetTokenAccountBalance(ctx, account, solanarpc.CommitmentConfirmed)
		if err != nil {
			if errors.Is(err, solanarpc.ErrNotFound) || isMissingAccountErr(err) {
				return ErrAccountNotInitialized
			}
			return err
		}
		if res == nil || res.Value == nil {
			return ErrAccountNotInitialized
		}
		v, ok := new(big.Int).SetString(res.Value.Amount, 10)
		if !ok {
			return fmt.Errorf("rpc returned non-numeric token balance %q", res.Value.Amount)
		}
		out = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UserClaimStatus fetches a wallet's on-chain cumulative claimed
// amount. A wallet that never claimed has no account; that is reported
// as a zero-valued status, not an error.
func (c *Client) UserClaimStatus(ctx context.Context, wallet solana.PublicKey) (*yap.UserClaimStatus, error) {
	addr, _, err := yap.DeriveUserClaim(c.cfg.ProgramID, wallet)
	if err != nil {
		return nil, fmt.Errorf("failed to derive user claim address: %w", err)
	}
	var out *yap.UserClaimStatus
	err = c.withRetry(ctx, "getAccountInfo(userClaim)", func(ctx context.Context) error {
		res, err := c.cfg.RPC.GetAccountInfo(ctx, addr)
		if err != nil {
			if errors.Is(err, solanarpc.ErrNotFound) {
				out = &yap.UserClaimStatus{}
				return nil
			}
			return err
		}
		if res == nil || res.Value == nil || res.Value.Data == nil {
			out = &yap.UserClaimStatus{}
			return nil
		}
		status, err := yap.DecodeUserClaimStatus(res.Value.Data.GetBinary())
		if err != nil {
			return fmt.Errorf("failed to decode user claim account: %w", err)
		}
		out = status
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Lamports reads a wallet's SOL balance, for fee-funding checks.
func (c *Client) Lamports(ctx context.Context, wallet solana.PublicKey) (uint64, error) {
	var out uint64
	err := c.withRetry(ctx, "getBalance", func(ctx context.Context) error {
		res, err := c.cfg.RPC.GetBalance(ctx, wallet, solanarpc.CommitmentConfirmed)
		if err != nil {
			return err
		}
		out = res.Value
		return nil
	})
	return out, err
}

// SubmitDistribution signs and sends a Distribute transaction with the
// updater key and waits for confirmation.
func (c *Client) SubmitDistribution(ctx context.Context, amount uint64, merkleRoot [32]byte) (solana.Signature, error) {
	if c.cfg.UpdaterKey == nil {
		return solana.Signature{}, errors.New("no updater key configured")
	}
	updater := c.cfg.UpdaterKey.PublicKey()

	ix, err := yap.NewDistributeInstruction(c.cfg.ProgramID, c.pdas, updater, amount, merkleRoot[:])
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to build distribute instruction: %w", err)
	}

	var sig solana.Signature
	err = c.withRetry(ctx, "sendTransaction(distribute)", func(ctx context.Context) error {
		blockhash, err := c.cfg.RPC.GetLatestBlockhash(ctx, solanarpc.CommitmentFinalized)
		if err != nil {
			return fmt.Errorf("failed to fetch blockhash: %w", err)
		}

		tx, err := solana.NewTransaction(
			[]solana.Instruction{ix},
			blockhash.Value.Blockhash,
			solana.TransactionPayer(updater),
		)
		if err != nil {
			return fmt.Errorf("failed to build transaction: %w", err)
		}
		if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
			if key.Equals(updater) {
				return &c.cfg.UpdaterKey
			}
			return nil
		}); err != nil {
			return fmt.Errorf("failed to sign transaction: %w", err)
		}

		sig, err = c.cfg.RPC.SendTransactionWithOpts(ctx, tx, solanarpc.TransactionOpts{
			PreflightCommitment: solanarpc.CommitmentConfirmed,
		})
		if err != nil {
			return classifySendError(err)
		}
		return nil
	})
	if err != nil {
		return solana.Signature{}, err
	}

	c.log.Info("chain: distribute transaction sent", "signature", sig.String(), "amount", amount)
	if err := c.ConfirmSignature(ctx, sig); err != nil {
		return sig, err
	}
	return sig, nil
}

// ConfirmSignature polls until the signature reaches confirmed
// commitment or the confirm timeout elapses. Safe to call repeatedly
// for the same signature.
func (c *Client) ConfirmSignature(ctx context.Context, sig solana.Signature) error {
	deadline := c.cfg.Clock.Now().Add(c.cfg.ConfirmTimeout)
	interval := time.Second

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if c.cfg.Clock.Now().After(deadline) {
			return fmt.Errorf("%w: %s", ErrConfirmationTimeout, sig)
		}

		var status *solanarpc.SignatureStatusesResult
		err := c.withRetry(ctx, "getSignatureStatuses", func(ctx context.Context) error {
			res, err := c.cfg.RPC.GetSignatureStatuses(ctx, true, sig)
			if err != nil {
				return err
			}
			if res != nil && len(res.Value) > 0 {
				status = res.Value[0]
			}
			return nil
		})
		if err != nil {
			return err
		}

		if status != nil {
			if status.Err != nil {
				return fmt.Errorf("transaction %s failed on-chain: %v", sig, status.Err)
			}
			switch status.ConfirmationStatus {
			case solanarpc.ConfirmationStatusConfirmed, solanarpc.ConfirmationStatusFinalized:
				return nil
			}
		}
		c.cfg.Clock.Sleep(interval)
	}
}

// withRetry runs op with a per-attempt timeout and capped exponential
// backoff on transient errors.
func (c *Client) withRetry(ctx context.Context, name string, op func(ctx context.Context) error) error {
	backoff := 500 * time.Millisecond
	const maxBackoff = 8 * time.Second

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
		err := op(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !IsTransient(err) || attempt == c.cfg.MaxAttempts {
			break
		}

		c.log.Warn("chain: transient rpc failure, retrying",
			"op", name, "attempt", attempt, "backoff", backoff, "error", err)
		metrics.RPCRetriesTotal.Inc()
		c.cfg.Clock.Sleep(backoff)
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	return lastErr
}

func isMissingAccountErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "could not find account") ||
		strings.Contains(msg, "account not found") ||
		strings.Contains(msg, "invalid param")
}
