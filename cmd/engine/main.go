package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/yapprotocol/yap-engine/pkg/chain"
	"github.com/yapprotocol/yap-engine/pkg/distribution"
	"github.com/yapprotocol/yap-engine/pkg/logger"
	"github.com/yapprotocol/yap-engine/pkg/server"
	"github.com/yapprotocol/yap-engine/pkg/store"
	"github.com/yapprotocol/yap-engine/pkg/voteweight"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")

	// Database configuration
	databaseURLFlag := flag.String("database-url", "", "PostgreSQL connection string (or set DATABASE_URL env var)")

	// Solana configuration
	rpcURLFlag := flag.String("rpc-url", solanarpc.MainNetBeta_RPC, "Solana RPC endpoint (or set SOLANA_RPC_URL env var)")
	programIDFlag := flag.String("program-id", "", "token program ID, base58 (or set YAP_PROGRAM_ID env var)")
	updaterKeyFileFlag := flag.String("updater-key-file", "", "path to merkle updater keypair file (or set UPDATER_KEY_FILE env var; UPDATER_KEY env var takes a base58 private key directly)")

	// Server configuration
	bindFlag := flag.String("bind", ":8080", "HTTP listen address (or set BIND env var)")
	cronSecretFlag := flag.String("cron-secret", "", "bearer token for the distribution trigger endpoint (or set CRON_SECRET env var)")
	allowedOriginsFlag := flag.StringSlice("allowed-origins", []string{"*"}, "CORS allowed origins (or set ALLOWED_ORIGINS env var, comma-separated)")

	// Commands
	migrateFlag := flag.Bool("migrate", false, "Run database migrations using goose and exit")
	migrateStatusFlag := flag.Bool("migrate-status", false, "Show database migration status and exit")
	distributeFlag := flag.Bool("distribute", false, "Run one distribution cycle and exit")
	snapshotFlag := flag.Bool("snapshot", false, "Snapshot vote weights for all wallet-connected users and exit")
	dryRunFlag := flag.Bool("dry-run", false, "With --distribute, compute the cycle without persisting or submitting")

	// Options
	maxConcurrencyFlag := flag.Int("max-concurrency", 16, "Maximum concurrent RPC requests during vote weight snapshots")

	flag.Parse()

	// .env is optional; flags and real env vars win.
	_ = godotenv.Load()

	log := logger.New(*verboseFlag)

	if envDatabaseURL := os.Getenv("DATABASE_URL"); envDatabaseURL != "" {
		*databaseURLFlag = envDatabaseURL
	}
	if envRPCURL := os.Getenv("SOLANA_RPC_URL"); envRPCURL != "" {
		*rpcURLFlag = envRPCURL
	}
	if envProgramID := os.Getenv("YAP_PROGRAM_ID"); envProgramID != "" {
		*programIDFlag = envProgramID
	}
	if envUpdaterKeyFile := os.Getenv("UPDATER_KEY_FILE"); envUpdaterKeyFile != "" {
		*updaterKeyFileFlag = envUpdaterKeyFile
	}
	if envBind := os.Getenv("BIND"); envBind != "" {
		*bindFlag = envBind
	}
	if envCronSecret := os.Getenv("CRON_SECRET"); envCronSecret != "" {
		*cronSecretFlag = envCronSecret
	}

	if *databaseURLFlag == "" {
		return fmt.Errorf("--database-url is required")
	}

	if *migrateFlag {
		return store.RunMigrations(log, *databaseURLFlag)
	}
	if *migrateStatusFlag {
		return store.MigrationStatus(log, *databaseURLFlag)
	}

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         dsn,
			Environment: os.Getenv("SENTRY_ENVIRONMENT"),
		}); err != nil {
			return fmt.Errorf("failed to initialize sentry: %w", err)
		}
		defer sentry.Flush(5 * time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := store.NewPool(ctx, *databaseURLFlag)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	db, err := store.New(store.Config{Logger: log, Pool: pool})
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}

	if *programIDFlag == "" {
		return fmt.Errorf("--program-id is required")
	}
	programID, err := solana.PublicKeyFromBase58(*programIDFlag)
	if err != nil {
		return fmt.Errorf("invalid program ID: %w", err)
	}

	updaterKey, err := loadUpdaterKey(*updaterKeyFileFlag)
	if err != nil {
		return err
	}

	chainClient, err := chain.NewClient(chain.ClientConfig{
		Logger:     log,
		RPC:        solanarpc.New(*rpcURLFlag),
		ProgramID:  programID,
		UpdaterKey: updaterKey,
	})
	if err != nil {
		return fmt.Errorf("failed to create chain client: %w", err)
	}

	runner, err := distribution.NewRunner(distribution.RunnerConfig{
		Logger: log,
		Store:  db,
		Chain:  chainClient,
		DryRun: *dryRunFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to create distribution runner: %w", err)
	}

	if *distributeFlag {
		result, err := runner.Run(ctx)
		if err != nil {
			sentry.CaptureException(err)
			return fmt.Errorf("distribution cycle failed: %w", err)
		}
		if result.Skipped {
			log.Info("distribution cycle skipped", "reason", result.Reason)
			return nil
		}
		log.Info("distribution cycle complete",
			"distribution_id", result.DistributionID,
			"participants", result.Participants,
			"total_amount", result.TotalAmount,
			"tx", result.TxSignature,
		)
		return nil
	}

	if *snapshotFlag {
		engine, err := voteweight.NewEngine(voteweight.EngineConfig{
			Logger:         log,
			Store:          db,
			Chain:          chainClient,
			MaxConcurrency: *maxConcurrencyFlag,
		})
		if err != nil {
			return fmt.Errorf("failed to create vote weight engine: %w", err)
		}
		n, err := engine.Run(ctx)
		if err != nil {
			sentry.CaptureException(err)
			return fmt.Errorf("vote weight snapshot failed: %w", err)
		}
		log.Info("vote weight snapshot complete", "wallets", n)
		return nil
	}

	if *cronSecretFlag == "" {
		return fmt.Errorf("--cron-secret is required")
	}

	srv, err := server.New(server.Config{
		Logger:         log,
		Store:          db,
		Chain:          chainClient,
		Runner:         runner,
		CronSecret:     *cronSecretFlag,
		Bind:           *bindFlag,
		AllowedOrigins: *allowedOriginsFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if err := srv.Start(ctx); err != nil {
		sentry.CaptureException(err)
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// loadUpdaterKey reads the merkle updater private key from UPDATER_KEY
// (base58) or from a solana keygen file.
func loadUpdaterKey(keyFile string) (solana.PrivateKey, error) {
	if raw := os.Getenv("UPDATER_KEY"); raw != "" {
		key, err := solana.PrivateKeyFromBase58(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid UPDATER_KEY: %w", err)
		}
		return key, nil
	}
	if keyFile == "" {
		return nil, fmt.Errorf("--updater-key-file or UPDATER_KEY is required")
	}
	key, err := solana.PrivateKeyFromSolanaKeygenFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read updater key file %s: %w", keyFile, err)
	}
	return key, nil
}
