package postgres

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/upb/secure-rag/models"
	"github.com/upb/secure-rag/repositories"
)

// QueryAuditRepository implements repositories.QueryAuditRepository
// on postgres.
type QueryAuditRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewQueryAuditRepository creates a new query audit repository
func NewQueryAuditRepository(db *DB, logger *zap.Logger) repositories.QueryAuditRepository {
	return &QueryAuditRepository{
		db:     db,
		logger: logger,
	}
}

// Insert inserts one audit trail entry
func (r *QueryAuditRepository) Insert(ctx context.Context, entry *models.QueryAudit) error {
	query := `
		INSERT INTO query_audits (
			id, tenant, role, query_hash, outcome, cache_hit,
			retrieved_count, allowed_count, restricted, guard_mode,
			latency_ms, error_message, timestamp
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.Tenant,
		entry.Role,
		entry.QueryHash,
		entry.Outcome,
		entry.CacheHit,
		entry.RetrievedCount,
		entry.AllowedCount,
		entry.Restricted,
		entry.GuardMode,
		entry.LatencyMs,
		entry.ErrorMessage,
		entry.Timestamp,
	)

	if err != nil {
		return fmt.Errorf("failed to insert query audit: %w", err)
	}

	r.logger.Debug("query audit inserted",
		zap.String("id", entry.ID.String()),
		zap.String("outcome", string(entry.Outcome)))
	return nil
}

// GetRecent returns the newest entries for a tenant, newest first
func (r *QueryAuditRepository) GetRecent(ctx context.Context, tenant string, limit int) ([]*models.QueryAudit, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, tenant, role, query_hash, outcome, cache_hit,
		       retrieved_count, allowed_count, restricted, guard_mode,
		       latency_ms, error_message, timestamp
		FROM query_audits
		WHERE tenant = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, tenant, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audits: %w", err)
	}
	defer rows.Close()

	var entries []*models.QueryAudit
	for rows.Next() {
		entry := &models.QueryAudit{}
		if err := rows.Scan(
			&entry.ID,
			&entry.Tenant,
			&entry.Role,
			&entry.QueryHash,
			&entry.Outcome,
			&entry.CacheHit,
			&entry.RetrievedCount,
			&entry.AllowedCount,
			&entry.Restricted,
			&entry.GuardMode,
			&entry.LatencyMs,
			&entry.ErrorMessage,
			&entry.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit rows iteration failed: %w", err)
	}
	return entries, nil
}

// CountByOutcome aggregates entries per outcome for a tenant
func (r *QueryAuditRepository) CountByOutcome(ctx context.Context, tenant string, since time.Time) (map[models.QueryOutcome]int, error) {
	query := `
		SELECT outcome, COUNT(*)
		FROM query_audits
		WHERE tenant = $1 AND timestamp >= $2
		GROUP BY outcome
	`

	rows, err := r.db.QueryContext(ctx, query, tenant, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count audits: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.QueryOutcome]int)
	for rows.Next() {
		var outcome models.QueryOutcome
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count row: %w", err)
		}
		counts[outcome] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count rows iteration failed: %w", err)
	}
	return counts, nil
}
