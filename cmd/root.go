package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/example/laundry-storefront/internal/config"
	"github.com/example/laundry-storefront/internal/db"
	"github.com/example/laundry-storefront/internal/logging"
	"github.com/example/laundry-storefront/internal/migrate"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "storefront",
		Short:        "Laundromat storefront API: reservation estimates, reviews and notices",
		SilenceUsage: true,
	}

	root.AddCommand(newVersionCmd())
	root.AddCommand(newKeysCmd())
	root.AddCommand(newServerCmd())
	root.AddCommand(newAdminCmd())
	root.AddCommand(newSubmissionCmd())
	root.AddCommand(newCatalogCmd())
	root.AddCommand(newEstimateCmd())

	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, *zap.Logger, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Config{}, nil, err
	}
	log, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, log, nil
}

// loadClientConfig is loadConfig for commands that only call the backend and
// so need no cookie keys.
func loadClientConfig() (config.Config, error) {
	return config.ClientFromEnv()
}

// openDB connects and, when migrateUp is set, applies pending migrations.
func openDB(ctx context.Context, cfg config.Config, log *zap.Logger, migrateUp bool) (*db.DB, error) {
	d, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := d.Ping(ctx); err != nil {
		d.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if migrateUp {
		if err := migrate.Up(ctx, d, log); err != nil {
			d.Close()
			return nil, err
		}
	}
	return d, nil
}
