package handlers

import (
	"context"
	"fmt"

	"newslens/internal/config"
	"newslens/internal/logger"
	"newslens/internal/persistence"

	"github.com/spf13/cobra"
)

// NewMigrateCmd creates the migrate command for database migrations
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long: `Manage database schema migrations.

Subcommands:
  up       Apply all pending migrations
  status   Show migration status
  down     Revert the last applied migration

Examples:
  newslens migrate up
  newslens migrate status
  newslens migrate down --force`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(m *persistence.MigrationManager) error {
				if err := m.Migrate(cmd.Context()); err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Println("✅ All migrations applied successfully")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), runMigrateStatus)
		},
	})

	cmd.AddCommand(newMigrateDownCmd())

	return cmd
}

func newMigrateDownCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Revert the last applied migration",
		Long: `Revert the last applied migration by running its down script.

⚠️  WARNING: this drops the tables created by that migration, with their data.
Use --force to skip the confirmation prompt.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				fmt.Print("This drops data. Are you sure you want to proceed? (yes/no): ")
				var response string
				if _, err := fmt.Scanln(&response); err != nil {
					return fmt.Errorf("failed to read response: %w", err)
				}
				if response != "yes" {
					fmt.Println("Rollback cancelled")
					return nil
				}
			}

			return withMigrator(cmd.Context(), func(m *persistence.MigrationManager) error {
				if err := m.Rollback(cmd.Context()); err != nil {
					return fmt.Errorf("rollback failed: %w", err)
				}
				fmt.Println("⚠️  Last migration reverted")
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Skip confirmation prompt")
	return cmd
}

func withMigrator(ctx context.Context, fn func(m *persistence.MigrationManager) error) error {
	if memoryStore {
		return fmt.Errorf("migrations only apply to PostgreSQL; drop --memory")
	}
	cfg := config.GetDatabase()
	if cfg.URL == "" {
		return fmt.Errorf("database URL not configured: set database.url or DATABASE_URL")
	}

	logger.Info("Connecting to database")
	store, err := persistence.NewPostgresStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer store.Close()

	return fn(persistence.NewMigrationManager(store))
}

func runMigrateStatus(m *persistence.MigrationManager) error {
	status, err := m.Status(context.Background())
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}

	if len(status) == 0 {
		fmt.Println("No migrations found")
		return nil
	}

	fmt.Println("📊 Migration Status")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("%-10s %-10s %s\n", "Version", "Status", "Description")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	pending := 0
	for _, s := range status {
		state, icon := "applied", "✅"
		if !s.Applied {
			state, icon = "pending", "⏳"
			pending++
		}
		fmt.Printf("%-10d %s %-8s %s\n", s.Version, icon, state, s.Description)
	}

	fmt.Printf("\nApplied: %d | Pending: %d | Total: %d\n", len(status)-pending, pending, len(status))
	if pending > 0 {
		fmt.Println("\nRun 'newslens migrate up' to apply pending migrations")
	}
	return nil
}
