package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kestrelsec/a11yaudit/api/schemas"
	"github.com/kestrelsec/a11yaudit/internal/browser"
	"github.com/kestrelsec/a11yaudit/internal/config"
	"github.com/kestrelsec/a11yaudit/internal/discovery"
	"github.com/kestrelsec/a11yaudit/internal/findings"
	"github.com/kestrelsec/a11yaudit/internal/observability"
	"github.com/kestrelsec/a11yaudit/internal/orchestrator"
	"github.com/kestrelsec/a11yaudit/internal/reporting"
	"github.com/kestrelsec/a11yaudit/internal/rules"
	"github.com/kestrelsec/a11yaudit/internal/store"
)

// newAuditCmd creates and configures the `audit` command.
func newAuditCmd() *cobra.Command {
	auditCmd := &cobra.Command{
		Use:   "audit <origin>",
		Short: "Runs a full accessibility audit against an origin",
		Long: `Discovers routes from the origin (homepage crawl plus sitemap), scans each
route with a headless browser and the configured rule engine, and writes a
deduplicated, prioritized findings report with a compliance score.`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their viper keys so command-line values override the
			// config file and environment with the right precedence.
			if err := viper.BindPFlag("discovery.max_routes", cmd.Flags().Lookup("max-routes")); err != nil {
				return err
			}
			if err := viper.BindPFlag("discovery.crawl_depth", cmd.Flags().Lookup("depth")); err != nil {
				return err
			}
			if err := viper.BindPFlag("scan.concurrency", cmd.Flags().Lookup("concurrency")); err != nil {
				return err
			}
			if err := viper.BindPFlag("scan.timeout", cmd.Flags().Lookup("timeout")); err != nil {
				return err
			}
			if err := viper.BindPFlag("scan.wait_strategy", cmd.Flags().Lookup("wait")); err != nil {
				return err
			}
			if err := viper.BindPFlag("rules.script_path", cmd.Flags().Lookup("rules-script")); err != nil {
				return err
			}
			return viper.BindPFlag("gate.enabled", cmd.Flags().Lookup("gate"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}

			cfg.Audit.Origin = normalizeOrigin(args[0])
			cfg.Audit.Output, _ = cmd.Flags().GetString("output")
			cfg.Audit.Format, _ = cmd.Flags().GetString("format")
			cfg.Audit.Routes, _ = cmd.Flags().GetStringSlice("routes")

			return runAudit(ctx, cfg, logger)
		},
	}

	auditCmd.Flags().IntP("max-routes", "m", 0, "Maximum number of routes to scan. (Overrides config/env)")
	auditCmd.Flags().IntP("depth", "d", 0, "Crawl depth, 1-3. (Overrides config/env)")
	auditCmd.Flags().IntP("concurrency", "j", 0, "Number of parallel browser sessions. (Overrides config/env)")
	auditCmd.Flags().Duration("timeout", 0, "Per-route scan timeout. (Overrides config/env)")
	auditCmd.Flags().String("wait", "", "Page readiness strategy: load, networkidle, delay. (Overrides config/env)")
	auditCmd.Flags().String("rules-script", "", "Path to the accessibility checker bundle to inject. (Overrides config/env)")
	auditCmd.Flags().StringP("output", "o", "", "Output file path for the report. If unset, the report is printed to stdout.")
	auditCmd.Flags().StringP("format", "f", "markdown", "Report format: 'markdown' or 'json'.")
	auditCmd.Flags().StringSlice("routes", nil, "Explicit route paths to scan instead of discovering them.")
	auditCmd.Flags().Bool("gate", false, "Enable the severity gate: exit non-zero when budgets are exceeded.")

	return auditCmd
}

// normalizeOrigin defaults the scheme to https when the user omits one.
func normalizeOrigin(origin string) string {
	if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
		return "https://" + origin
	}
	return origin
}

// auditComponents holds initialized services for one audit run.
type auditComponents struct {
	BrowserManager *browser.Manager
	Store          *store.Store
	DBPool         *pgxpool.Pool
}

// Shutdown gracefully closes all components.
func (ac *auditComponents) Shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if ac.BrowserManager != nil {
		if err := ac.BrowserManager.Shutdown(shutdownCtx); err != nil {
			observability.GetLogger().Warn("Error during browser manager shutdown", zap.Error(err))
		}
	}
	if ac.DBPool != nil {
		ac.DBPool.Close()
	}
}

// runAudit is the full pipeline: discover, scan, normalize, score, report.
func runAudit(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	auditID := reporting.NewAuditID()
	logger.Info("Starting audit",
		zap.String("auditID", auditID),
		zap.String("origin", cfg.Audit.Origin),
		zap.Int("max_routes", cfg.Discovery.MaxRoutes),
		zap.Int("crawl_depth", cfg.Discovery.CrawlDepth),
		zap.Int("concurrency", cfg.Scan.Concurrency),
	)

	components, err := initializeAuditComponents(ctx, cfg, logger)
	if err != nil {
		if components != nil {
			components.Shutdown()
		}
		return fmt.Errorf("failed to initialize audit components: %w", err)
	}
	defer components.Shutdown()

	scope, err := discovery.NewScope(cfg.Audit.Origin, false)
	if err != nil {
		return fmt.Errorf("invalid origin: %w", err)
	}

	// 1. Route discovery (skipped when explicit routes were given).
	var routes []schemas.Route
	if len(cfg.Audit.Routes) > 0 {
		routes = discovery.RoutesFromOverride(scope, cfg.Audit.Routes, cfg.Discovery.PaginationParams)
		logger.Info("Using explicit route set", zap.Int("routes", len(routes)))
	} else {
		var seeder discovery.RouteSeeder
		if cfg.Discovery.SitemapEnabled == nil || *cfg.Discovery.SitemapEnabled {
			client := discovery.NewHTTPClient(cfg.Discovery.NavTimeout)
			seeder = discovery.NewSeeder(client, cfg.Discovery.SitemapRateLimit, logger)
		}
		discoverer := discovery.New(cfg.Discovery, scope, components.BrowserManager, seeder, logger)
		routes, err = discoverer.Discover(ctx)
		if err != nil {
			return fmt.Errorf("route discovery failed: %w", err)
		}
	}

	// 2. Parallel scan.
	engine, err := rules.NewRunner(cfg.Rules, logger)
	if err != nil {
		return err
	}
	collector := orchestrator.NewCollector(engine)
	orch, err := orchestrator.New(cfg.Scan, components.BrowserManager, collector, scope.Origin(), logger)
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}

	results, err := orch.Scan(ctx, routes)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("Audit aborted gracefully", zap.String("auditID", auditID))
		}
		return wrapScanErr(err)
	}

	// 3. Normalize, score, assemble.
	normalizer := findings.NewNormalizer(findings.DefaultNormalizerConfig(), logger)
	normalized, err := normalizer.Normalize(results)
	if err != nil {
		return fmt.Errorf("failed to normalize findings: %w", err)
	}

	scorer := findings.NewScorer(cfg.Scoring)
	score := scorer.Score(normalized)

	payload := reporting.BuildPayload(auditID, cfg.Audit.Origin, results, normalized, score)

	// 4. Optional persistence.
	if components.Store != nil {
		if err := components.Store.SaveRun(ctx, payload); err != nil {
			logger.Error("Failed to persist audit run", zap.Error(err), zap.String("auditID", auditID))
		} else {
			logger.Info("Audit run persisted", zap.String("auditID", auditID))
		}
	}

	// 5. Report.
	reporter, err := reporting.New(cfg.Audit.Format, cfg.Audit.Output)
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

	logger.Info("Audit complete",
		zap.String("auditID", auditID),
		zap.Int("routes", len(payload.Routes)),
		zap.Int("findings", len(payload.Findings)),
		zap.Int("score", payload.Score.Value),
		zap.String("grade", payload.Score.Grade),
	)

	// 6. Severity gate.
	return reporting.EvaluateGate(cfg.Gate, payload.Summary)
}

// wrapScanErr classifies a scan failure. Cancellation is wrapped so the
// sentinel survives to main, which maps it onto exit code 130.
func wrapScanErr(err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("audit aborted by user signal: %w", err)
	}
	return fmt.Errorf("scan failed: %w", err)
}

// initializeAuditComponents handles dependency injection. The database is
// optional: with no URL configured the run is simply not persisted.
func initializeAuditComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*auditComponents, error) {
	components := &auditComponents{}

	manager, err := browser.NewManager(ctx, cfg, logger)
	if err != nil {
		return components, fmt.Errorf("failed to initialize browser manager: %w", err)
	}
	components.BrowserManager = manager

	if cfg.Database.URL != "" {
		dbPool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			return components, fmt.Errorf("failed to connect to database: %w", err)
		}
		components.DBPool = dbPool

		dbStore, err := store.New(ctx, dbPool, logger)
		if err != nil {
			return components, fmt.Errorf("failed to initialize database store: %w", err)
		}
		components.Store = dbStore
	}

	return components, nil
}
