package cmd

import (
	"context"
	"fmt"
	"strings"

	"asset-sync/core/config"
	"asset-sync/core/database"
	"asset-sync/core/logger"
	"asset-sync/core/storage"
	"asset-sync/feature/assetstore"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	checkFix     bool
	checkStorage bool
)

// checkCmd verifies the asset database schema and the report bucket.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the asset database schema and the report bucket",
	Long: `Checks that the asset database has every table and column the synchronization
needs and, with --storage, that the report bucket exists. --fix migrates the
schema and creates the bucket.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configDir)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logg, err := logger.New(&cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}

		db, err := database.Connect(cfg.Database)
		if err != nil {
			return fmt.Errorf("database connection required: %w", err)
		}
		if err := checkSchema(assetstore.NewStore(db, logg), logg, checkFix); err != nil {
			return err
		}

		if checkStorage {
			client, err := storage.NewClient(cfg.Storage)
			if err != nil {
				return fmt.Errorf("failed to create storage client: %w", err)
			}
			if err := checkBucket(cmd.Context(), client, cfg.Storage, logg, checkFix); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().BoolVar(&checkFix, "fix", false, "Migrate the schema and create the report bucket")
	checkCmd.Flags().BoolVar(&checkStorage, "storage", false, "Also check the report bucket")
	RootCmd.AddCommand(checkCmd)
}

// checkSchema reports missing columns and migrates them when fix is set.
func checkSchema(store *assetstore.Store, l *zap.Logger, fix bool) error {
	missing, err := store.CheckSchema()
	if err != nil {
		return fmt.Errorf("schema check failed: %w", err)
	}
	if len(missing) == 0 {
		l.Info("Database schema OK")
		return nil
	}

	l.Warn("Missing columns detected", zap.Strings("missing", missing))
	if !fix {
		return fmt.Errorf("database schema incomplete: %s", strings.Join(missing, ", "))
	}

	l.Info("Migrating database schema")
	if err := store.AutoMigrate(); err != nil {
		return err
	}
	if missing, err = store.CheckSchema(); err != nil {
		return fmt.Errorf("schema check failed: %w", err)
	}
	if len(missing) > 0 {
		return fmt.Errorf("schema still incomplete after migration: %s", strings.Join(missing, ", "))
	}
	l.Info("Database schema migrated")
	return nil
}

// checkBucket verifies the report bucket and creates it when fix is set.
func checkBucket(ctx context.Context, client storage.Client, cfg storage.Config, l *zap.Logger, fix bool) error {
	if fix {
		if err := storage.EnsureBucket(ctx, client, cfg.Bucket, cfg.Region); err != nil {
			return err
		}
		l.Info("Report bucket ready", zap.String("bucket", cfg.Bucket))
		return nil
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		return fmt.Errorf("report bucket %s does not exist", cfg.Bucket)
	}
	l.Info("Report bucket OK", zap.String("bucket", cfg.Bucket))
	return nil
}
