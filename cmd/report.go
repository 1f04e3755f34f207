package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kestrelsec/a11yaudit/api/schemas"
	"github.com/kestrelsec/a11yaudit/internal/config"
	"github.com/kestrelsec/a11yaudit/internal/findings"
	"github.com/kestrelsec/a11yaudit/internal/observability"
	"github.com/kestrelsec/a11yaudit/internal/reporting"
	"github.com/kestrelsec/a11yaudit/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// newReportCmd creates and configures the `report` command. It re-renders a
// completed audit, either from a JSON payload file produced by `audit -f
// json` or from the database by audit ID.
func newReportCmd() *cobra.Command {
	var (
		auditID    string
		inputPath  string
		outputPath string
		format     string
	)

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Re-render a completed audit in another format",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}

			var payload *schemas.AuditPayload
			switch {
			case inputPath != "":
				payload, err = loadPayloadFile(inputPath)
			case auditID != "":
				payload, err = loadPayloadFromStore(ctx, cfg, auditID, logger)
			default:
				return fmt.Errorf("either --input or --audit-id is required")
			}
			if err != nil {
				return err
			}

			reporter, err := reporting.New(format, outputPath)
			if err != nil {
				return fmt.Errorf("failed to initialize reporter: %w", err)
			}
			writeErr := reporter.Write(payload)
			if closeErr := reporter.Close(); closeErr != nil {
				logger.Warn("Failed to close reporter cleanly", zap.Error(closeErr))
			}
			if writeErr != nil {
				return fmt.Errorf("failed to write report: %w", writeErr)
			}
			return nil
		},
	}

	reportCmd.Flags().StringVar(&auditID, "audit-id", "", "Audit ID of a persisted run to render.")
	reportCmd.Flags().StringVarP(&inputPath, "input", "i", "", "Path to a JSON audit payload produced by 'audit -f json'.")
	reportCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path. If unset, the report is printed to stdout.")
	reportCmd.Flags().StringVarP(&format, "format", "f", "markdown", "Report format: 'markdown' or 'json'.")

	return reportCmd
}

// loadPayloadFile reads a previously emitted JSON payload.
func loadPayloadFile(path string) (*schemas.AuditPayload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload file: %w", err)
	}
	var payload schemas.AuditPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse payload file %s: %w", path, err)
	}
	return &payload, nil
}

// loadPayloadFromStore rebuilds a renderable payload from persisted findings.
// The score is recomputed from the stored severity counts; route-level detail
// is not persisted and stays empty.
func loadPayloadFromStore(ctx context.Context, cfg *config.Config, auditID string, logger *zap.Logger) (*schemas.AuditPayload, error) {
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database URL is not configured (A11YAUDIT_DATABASE_URL)")
	}

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	dbStore, err := store.New(ctx, pool, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database store: %w", err)
	}

	stored, err := dbStore.GetFindingsByAuditID(ctx, auditID)
	if err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		logger.Warn("No findings stored for audit", zap.String("auditID", auditID))
	}

	scorer := findings.NewScorer(cfg.Scoring)
	return &schemas.AuditPayload{
		AuditID:     auditID,
		GeneratedAt: time.Now().UTC(),
		Findings:    stored,
		Score:       scorer.Score(stored),
		Summary:     schemas.CountBySeverity(stored),
	}, nil
}
