package cmd

import (
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kestrelsec/a11yaudit/api/schemas"
	"github.com/kestrelsec/a11yaudit/internal/config"
	"github.com/kestrelsec/a11yaudit/internal/observability"
	"github.com/kestrelsec/a11yaudit/internal/store"
)

// newDiffCmd creates the `diff` command: compare two persisted runs of the
// same origin by stable finding ID.
func newDiffCmd() *cobra.Command {
	var beforeID, afterID string

	diffCmd := &cobra.Command{
		Use:   "diff",
		Short: "Compare two persisted audit runs",
		Long:  "Lists findings that are new in the second run and findings from the first run that no longer appear. Finding IDs are stable across runs, so the comparison survives re-audits of an unchanged site.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return fmt.Errorf("database URL is not configured (A11YAUDIT_DATABASE_URL)")
			}

			pool, err := pgxpool.New(ctx, cfg.Database.URL)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer pool.Close()

			dbStore, err := store.New(ctx, pool, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize database store: %w", err)
			}

			diff, err := dbStore.Diff(ctx, beforeID, afterID)
			if err != nil {
				return err
			}

			printDiffSection("New findings", diff.New)
			printDiffSection("Resolved findings", diff.Resolved)
			return nil
		},
	}

	diffCmd.Flags().StringVar(&beforeID, "before", "", "Audit ID of the baseline run (required)")
	diffCmd.Flags().StringVar(&afterID, "after", "", "Audit ID of the comparison run (required)")
	_ = diffCmd.MarkFlagRequired("before")
	_ = diffCmd.MarkFlagRequired("after")

	return diffCmd
}

func printDiffSection(title string, items []schemas.NormalizedFinding) {
	fmt.Fprintf(os.Stdout, "%s: %d\n", title, len(items))
	for _, f := range items {
		fmt.Fprintf(os.Stdout, "  [%s] %s %s (%s)\n", f.Severity, f.ID, f.RuleID, f.PrimarySelector)
	}
	fmt.Fprintln(os.Stdout)
}
