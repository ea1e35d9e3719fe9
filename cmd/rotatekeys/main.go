// Command rotatekeys re-encrypts stored connection credentials from an old
// vault secret to a new one. The run is idempotent and safe to repeat; rows
// touched by a concurrent refresh are deferred to the next run.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/sellerhub/backend/internal/infrastructure/config"
	"github.com/sellerhub/backend/internal/infrastructure/logger"
	"github.com/sellerhub/backend/internal/infrastructure/persistence"
	"github.com/sellerhub/backend/internal/infrastructure/vault"
)

func main() {
	var (
		oldSecret string
		newSecret string
		batchSize int
		dryRun    bool
		logLevel  string
	)

	flag.StringVar(&oldSecret, "old-secret", "", "Current vault secret (falls back to SELLERHUB_VAULT_SECRET)")
	flag.StringVar(&newSecret, "new-secret", "", "New vault secret to migrate credentials onto (required)")
	flag.IntVar(&batchSize, "batch-size", 100, "Connections scanned per page")
	flag.BoolVar(&dryRun, "dry-run", false, "Report what would change without writing")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	log, err := logger.New(&logger.Config{
		Level:  logLevel,
		Format: "console",
		Output: "stdout",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	if oldSecret == "" {
		oldSecret = cfg.Vault.Secret
	}
	if oldSecret == "" {
		log.Fatal("Old vault secret is required (-old-secret or SELLERHUB_VAULT_SECRET)")
	}
	if newSecret == "" {
		log.Fatal("New vault secret is required (-new-secret)")
	}
	if oldSecret == newSecret {
		log.Fatal("Old and new vault secrets are identical, nothing to rotate")
	}

	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	connectionRepo := persistence.NewGormConnectionRepository(db.DB)

	rotator, err := vault.NewRotator(oldSecret, newSecret, connectionRepo, log,
		vault.WithBatchSize(batchSize),
		vault.WithDryRun(dryRun),
	)
	if err != nil {
		log.Fatal("Failed to build rotator", zap.Error(err))
	}

	// A signal aborts between rows; completed rows stay migrated.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	summary, err := rotator.Run(ctx)
	log.Info("Key rotation finished",
		zap.Bool("dry_run", dryRun),
		zap.Int("scanned", summary.Scanned),
		zap.Int("migrated", summary.Migrated),
		zap.Int("already_current", summary.AlreadyCurrent),
		zap.Int("conflicted", summary.Conflicted),
		zap.Int("failed", summary.Failed),
	)
	if err != nil {
		log.Fatal("Key rotation aborted", zap.Error(err))
	}
	if summary.Failed > 0 {
		log.Fatal("Some credentials could not be migrated, rerun after investigating")
	}
}
