package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/noah-isme/erp-status-api/pkg/config"
	"github.com/noah-isme/erp-status-api/pkg/database"
	"github.com/noah-isme/erp-status-api/pkg/logger"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "statusctl",
		Short: "Administer the ERP status workflow",
		Long: `statusctl manages the status change database and inspects the workflow.
Connection settings come from the same .env file and environment variables as the API server.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("json", root.PersistentFlags().Lookup("json"))

	root.AddCommand(migrateCmd())
	root.AddCommand(reasonsCmd())
	root.AddCommand(recordsCmd())
	root.AddCommand(tokenCmd())
	root.AddCommand(eventsCmd())
	return root
}

func main() {
	viper.SetEnvPrefix("STATUSCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// withDB loads configuration, opens PostgreSQL and hands both to fn.
func withDB(ctx context.Context, fn func(ctx context.Context, cfg *config.Config, db *sqlx.DB, logr *zap.Logger) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return err
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()
	return fn(ctx, cfg, db, logr)
}
