// Package store persists audit runs to PostgreSQL so consecutive runs of the
// same origin can be diffed for new and resolved findings.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/kestrelsec/a11yaudit/api/schemas"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Store provides a PostgreSQL implementation of audit persistence.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// SaveRun persists one completed audit: the run row plus its findings, in a
// single transaction.
func (s *Store) SaveRun(ctx context.Context, payload *schemas.AuditPayload) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	insertAudit := `
        INSERT INTO audits (id, origin, generated_at, score, grade, routes_scanned, routes_errored)
        VALUES ($1, $2, $3, $4, $5, $6, $7);
    `
	if _, err := tx.Exec(ctx, insertAudit,
		payload.AuditID, payload.Origin, payload.GeneratedAt.UTC(),
		payload.Score.Value, payload.Score.Grade,
		len(payload.Routes), len(payload.ErroredRoutes),
	); err != nil {
		return fmt.Errorf("failed to insert audit row: %w", err)
	}

	if len(payload.Findings) > 0 {
		if err := s.persistFindings(ctx, tx, payload.AuditID, payload.Findings); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) persistFindings(ctx context.Context, tx pgx.Tx, auditID string, findings []schemas.NormalizedFinding) error {
	rows := make([][]interface{}, len(findings))
	now := time.Now().UTC()
	for i, f := range findings {
		rows[i] = []interface{}{
			f.ID, auditID, f.RuleID,
			string(f.Severity), f.Message,
			f.PrimarySelector, f.FullSelector,
			f.TotalInstances, f.PagesAffected,
			strings.Join(f.AffectedURLs, "\n"),
			strings.Join(f.WCAG, ","),
			f.FixAvailable, f.PriorityScore,
			now,
		}
	}

	copyCount, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"findings"},
		[]string{"id", "audit_id", "rule_id", "severity", "message", "primary_selector", "full_selector", "total_instances", "pages_affected", "affected_urls", "wcag", "fix_available", "priority_score", "observed_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy findings: %w", err)
	}
	if int(copyCount) != len(findings) {
		return fmt.Errorf("mismatch in copied findings count: expected %d, got %d", len(findings), copyCount)
	}

	return nil
}

// GetFindingsByAuditID loads the persisted findings of one run, highest
// priority first.
func (s *Store) GetFindingsByAuditID(ctx context.Context, auditID string) ([]schemas.NormalizedFinding, error) {
	query := `
        SELECT id, rule_id, severity, message, primary_selector, full_selector, total_instances, pages_affected, affected_urls, wcag, fix_available, priority_score
        FROM findings
        WHERE audit_id = $1
        ORDER BY priority_score DESC, id ASC;
    `
	rows, err := s.pool.Query(ctx, query, auditID)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings: %w", err)
	}
	defer rows.Close()

	var findings []schemas.NormalizedFinding
	for rows.Next() {
		var f schemas.NormalizedFinding
		var severityStr, urls, wcag string

		err := rows.Scan(
			&f.ID, &f.RuleID, &severityStr, &f.Message,
			&f.PrimarySelector, &f.FullSelector,
			&f.TotalInstances, &f.PagesAffected,
			&urls, &wcag,
			&f.FixAvailable, &f.PriorityScore,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan finding row: %w", err)
		}

		f.Severity = schemas.Severity(severityStr)
		if urls != "" {
			f.AffectedURLs = strings.Split(urls, "\n")
		}
		if wcag != "" {
			f.WCAG = strings.Split(wcag, ",")
		}
		findings = append(findings, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return findings, nil
}

// RunDiff is the result of comparing two runs of the same origin by stable
// finding ID.
type RunDiff struct {
	New      []schemas.NormalizedFinding
	Resolved []schemas.NormalizedFinding
}

// Diff compares two persisted runs. Findings present only in the after run
// are new; findings present only in the before run are resolved.
func (s *Store) Diff(ctx context.Context, beforeAuditID, afterAuditID string) (*RunDiff, error) {
	before, err := s.GetFindingsByAuditID(ctx, beforeAuditID)
	if err != nil {
		return nil, fmt.Errorf("failed to load baseline run %s: %w", beforeAuditID, err)
	}
	after, err := s.GetFindingsByAuditID(ctx, afterAuditID)
	if err != nil {
		return nil, fmt.Errorf("failed to load comparison run %s: %w", afterAuditID, err)
	}

	beforeIDs := make(map[string]struct{}, len(before))
	for _, f := range before {
		beforeIDs[f.ID] = struct{}{}
	}
	afterIDs := make(map[string]struct{}, len(after))
	for _, f := range after {
		afterIDs[f.ID] = struct{}{}
	}

	diff := &RunDiff{}
	for _, f := range after {
		if _, ok := beforeIDs[f.ID]; !ok {
			diff.New = append(diff.New, f)
		}
	}
	for _, f := range before {
		if _, ok := afterIDs[f.ID]; !ok {
			diff.Resolved = append(diff.Resolved, f)
		}
	}
	return diff, nil
}
