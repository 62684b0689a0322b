package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/erp-status-api/internal/models"
	"github.com/noah-isme/erp-status-api/internal/repository"
	"github.com/noah-isme/erp-status-api/internal/service"
	"github.com/noah-isme/erp-status-api/pkg/config"
	"github.com/noah-isme/erp-status-api/pkg/messaging"
	"github.com/noah-isme/erp-status-api/pkg/migrate"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply embedded schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(ctx context.Context, _ *config.Config, db *sqlx.DB, _ *zap.Logger) error {
				version, err := migrate.Up(ctx, db)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
				return nil
			})
		},
	}
}

func reasonsCmd() *cobra.Command {
	reasons := &cobra.Command{Use: "reasons", Short: "Manage status change reasons"}
	reasons.AddCommand(reasonsListCmd())
	reasons.AddCommand(reasonsSeedCmd())
	return reasons
}

func reasonsListCmd() *cobra.Command {
	var category string
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reasons",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat := models.ReasonCategory(strings.ToLower(category))
			if cat != "" && !cat.Valid() {
				return fmt.Errorf("unknown category %q", category)
			}
			return withDB(cmd.Context(), func(ctx context.Context, _ *config.Config, db *sqlx.DB, logr *zap.Logger) error {
				svc := service.NewStatusReasonService(repository.NewStatusReasonRepository(db), nil, 0, nil, logr)
				items, _, err := svc.List(ctx, cat, !all)
				if err != nil {
					return err
				}
				return printReasons(cmd.OutOrStdout(), items)
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "employee|stock|invoice|asset|general")
	cmd.Flags().BoolVar(&all, "all", false, "include inactive reasons")
	return cmd
}

func reasonsSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Install the default reason catalog",
		Long:  "Inserts the default reasons, including the codes used by the built-in workflow handlers. Existing codes are left untouched.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(ctx context.Context, _ *config.Config, db *sqlx.DB, logr *zap.Logger) error {
				svc := service.NewStatusReasonService(repository.NewStatusReasonRepository(db), nil, 0, nil, logr)
				inserted, err := svc.SeedDefaults(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "inserted %d of %d default reasons\n", inserted, len(service.DefaultStatusReasons()))
				return nil
			})
		},
	}
}

func recordsCmd() *cobra.Command {
	records := &cobra.Command{Use: "records", Short: "Inspect the status change log"}
	records.AddCommand(&cobra.Command{
		Use:   "history <entityType> <entityId>",
		Short: "Show every status change of one entity, oldest first",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(ctx context.Context, _ *config.Config, db *sqlx.DB, logr *zap.Logger) error {
				svc := service.NewStatusRecordService(repository.NewStatusRecordRepository(db), logr)
				items, err := svc.History(ctx, strings.ToLower(args[0]), args[1])
				if err != nil {
					return err
				}
				return printRecords(cmd.OutOrStdout(), items)
			})
		},
	})
	return records
}

func tokenCmd() *cobra.Command {
	token := &cobra.Command{Use: "token", Short: "Manage API bearer tokens"}
	var userID, role string
	var ttl time.Duration
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Sign a bearer token for the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			r := models.UserRole(strings.ToUpper(role))
			if !r.Valid() {
				return fmt.Errorf("unknown role %q", role)
			}
			auth := service.NewAuthService(zap.NewNop(), service.AuthConfig{
				AccessTokenSecret: cfg.JWT.Secret,
				AccessTokenExpiry: cfg.JWT.Expiration,
				Issuer:            cfg.JWT.Issuer,
			})
			signed, expiresAt, err := auth.IssueToken(userID, r, ttl)
			if err != nil {
				return err
			}
			return printToken(cmd.OutOrStdout(), issuedToken{Token: signed, UserID: userID, Role: r, ExpiresAt: expiresAt})
		},
	}
	issue.Flags().StringVar(&userID, "user", "", "user id carried in the token")
	issue.Flags().StringVar(&role, "role", string(models.RoleService), "role carried in the token")
	issue.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to JWT_EXPIRATION)")
	_ = issue.MarkFlagRequired("user")
	token.AddCommand(issue)
	return token
}

func eventsCmd() *cobra.Command {
	eventsRoot := &cobra.Command{Use: "events", Short: "Inspect forwarded domain events"}
	var group string
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Print domain events from the broker until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if len(cfg.Events.Brokers) == 0 {
				return errors.New("KAFKA_BROKERS is empty")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			consumer := messaging.NewConsumer(cfg.Events.Brokers, cfg.Events.Topic, group)
			defer consumer.Close()
			err = consumer.Consume(ctx, func(env messaging.Envelope) error {
				return printEnvelope(cmd.OutOrStdout(), env)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	tail.Flags().StringVar(&group, "group", "", "consumer group (empty reads from the latest offset without committing)")
	eventsRoot.AddCommand(tail)
	return eventsRoot
}
