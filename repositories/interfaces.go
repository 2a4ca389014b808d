package repositories

import (
	"context"
	"time"

	"github.com/upb/secure-rag/models"
)

// QueryAuditRepository persists the per-query audit trail.
type QueryAuditRepository interface {
	// Insert stores one trail entry.
	Insert(ctx context.Context, entry *models.QueryAudit) error

	// GetRecent returns the newest entries for a tenant, newest first.
	GetRecent(ctx context.Context, tenant string, limit int) ([]*models.QueryAudit, error)

	// CountByOutcome aggregates entries per outcome for a tenant since
	// the given time.
	CountByOutcome(ctx context.Context, tenant string, since time.Time) (map[models.QueryOutcome]int, error)
}
