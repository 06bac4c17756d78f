// Package server exposes the engine's HTTP surface: the claim-proof
// query the claim UI consumes, the claim-record callback, reward
// totals, and the authenticated cron trigger for the distribution
// cycle.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/yapprotocol/yap-engine/pkg/distribution"
	"github.com/yapprotocol/yap-engine/pkg/store"
	"github.com/yapprotocol/yap-engine/pkg/yap"
)

// Chain is the subset of the chain client the handlers need.
type Chain interface {
	ProgramConfig(ctx context.Context) (*yap.Config, error)
	VaultBalance(ctx context.Context) (*big.Int, error)
	PendingClaimsBalance(ctx context.Context) (*big.Int, error)
	UserClaimStatus(ctx context.Context, wallet solana.PublicKey) (*yap.UserClaimStatus, error)
}

type Config struct {
	Logger *slog.Logger
	Store  *store.Store
	Chain  Chain
	Runner *distribution.Runner

	// CronSecret authenticates the distribution trigger endpoint.
	CronSecret string

	Bind           string
	AllowedOrigins []string
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Store == nil {
		return errors.New("store is required")
	}
	if cfg.Chain == nil {
		return errors.New("chain client is required")
	}
	if cfg.Runner == nil {
		return errors.New("cycle runner is required")
	}
	if cfg.CronSecret == "" {
		return errors.New("cron secret is required")
	}
	if cfg.Bind == "" {
		cfg.Bind = ":8080"
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	return nil
}

type Server struct {
	log    *slog.Logger
	cfg    Config
	router *chi.Mux
	srv    *http.Server
}

func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Server{
		log:    cfg.Logger,
		cfg:    cfg,
		router: chi.NewRouter(),
	}
	s.setupRoutes()
	s.srv = &http.Server{
		Addr:         cfg.Bind,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// 120 requests/minute per IP with a small burst on the public
	// claim endpoints.
	claimLimiter := newIPRateLimiter(rate.Every(time.Minute/120), 10)

	s.router.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(claimLimiter.middleware)
			r.Get("/claim/{wallet}", s.handleClaimProof)
			r.Post("/claim/record", s.handleRecordClaim)
		})
		r.Get("/rewards/{userID}", s.handleRewards)
		r.Get("/status", s.handleStatus)
		r.Post("/cron/distribute", s.handleDistribute)
	})
	s.router.Handle("/metrics", promhttp.Handler())
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server: listening", "addr", s.cfg.Bind)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func parseWallet(raw string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid wallet address %q: %w", raw, err)
	}
	return pk, nil
}
