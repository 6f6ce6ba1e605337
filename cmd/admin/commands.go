package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"milkrun/internal/app"
	"milkrun/internal/config"
	"milkrun/internal/database"
	"milkrun/internal/logger"
	"milkrun/internal/model"
	"milkrun/internal/service"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// adminActor runs commands as a platform admin without a user row.
var adminActor = service.Actor{Role: model.RoleAdmin}

func newRootCmd(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Administrative tasks for the milk delivery backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newMigrateCmd(cfg),
		newCleanupAreaCmd(cfg),
		newRegenerateInvoiceCmd(cfg),
		newCreateAdminCmd(cfg),
	)
	return root
}

// withApp connects to the database, wires the services and runs fn with a
// context cancelled on SIGINT or SIGTERM.
func withApp(cfg *config.Config, fn func(ctx context.Context, a *app.App) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(cfg)
	if err != nil {
		return err
	}
	defer closeDB(db)

	a, err := app.Build(ctx, cfg, db, false)
	if err != nil {
		return err
	}
	defer a.Shutdown(context.Background())
	return fn(ctx, a)
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func newMigrateCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.NewConnection(cfg)
			if err != nil {
				return err
			}
			defer closeDB(db)
			if err := database.Migrate(db); err != nil {
				return err
			}
			log := logger.WithComponent("admin")
			log.Info().Msg("migration complete")
			return nil
		},
	}
}

func newCleanupAreaCmd(cfg *config.Config) *cobra.Command {
	var confirm bool
	cmd := &cobra.Command{
		Use:   "cleanup-area [area-id]",
		Short: "Delete every attendance log of an area",
		Long: `Removes all attendance logs recorded for an area. Invoices already
generated from them are kept. This cannot be undone.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return fmt.Errorf("refusing to delete attendance of area %s without --yes", args[0])
			}
			return withApp(cfg, func(ctx context.Context, a *app.App) error {
				deleted, err := a.Attendance.CleanupArea(ctx, adminActor, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d attendance logs of area %s\n", deleted, args[0])
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&confirm, "yes", false, "Confirm the deletion")
	return cmd
}

func newRegenerateInvoiceCmd(cfg *config.Config) *cobra.Command {
	var generatedBy string
	cmd := &cobra.Command{
		Use:   "regenerate-invoice [invoice-id]",
		Short: "Rebuild an invoice for the same period from current attendance and prices",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cfg, func(ctx context.Context, a *app.App) error {
				summary, err := a.Invoices.Regenerate(ctx, adminActor, args[0], service.RegenerateInvoiceRequest{GeneratedBy: generatedBy})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "regenerated %s as %s (%s, total %s)\n", args[0], summary.BillNo, summary.Period, summary.GrandTotal.StringFixed(2))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&generatedBy, "generated-by", "admin-cli", "Recorded as the author of the new invoice")
	return cmd
}

func newCreateAdminCmd(cfg *config.Config) *cobra.Command {
	var req service.CreateUserRequest
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create a platform admin user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(req.Password) < 6 {
				return fmt.Errorf("password must be at least 6 characters")
			}
			req.Role = model.RoleAdmin
			return withApp(cfg, func(ctx context.Context, a *app.App) error {
				user, err := a.Users.CreateUser(ctx, adminActor, req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", user.Username, user.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.Username, "username", "", "Username")
	cmd.Flags().StringVar(&req.Email, "email", "", "Email")
	cmd.Flags().StringVar(&req.Phone, "phone", "", "Phone")
	cmd.Flags().StringVar(&req.Password, "password", "", "Password (min 6 characters)")
	for _, name := range []string{"username", "email", "password"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
