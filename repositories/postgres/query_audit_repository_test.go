package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/secure-rag/models"
)

func newMockRepo(t *testing.T) (*QueryAuditRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	wrapped := &DB{DB: db, logger: zap.NewNop()}
	return &QueryAuditRepository{db: wrapped, logger: zap.NewNop()}, mock
}

func sampleEntry() *models.QueryAudit {
	entry := models.NewQueryAudit("demo", models.RoleManager, "a1b2c3d4e5f60718")
	entry.Outcome = models.QueryOutcomeAnswered
	entry.RetrievedCount = 4
	entry.AllowedCount = 2
	entry.GuardMode = "base_only"
	entry.LatencyMs = 812
	return entry
}

func TestQueryAuditRepository_Insert(t *testing.T) {
	repo, mock := newMockRepo(t)
	entry := sampleEntry()

	mock.ExpectExec("INSERT INTO query_audits").
		WithArgs(
			entry.ID, entry.Tenant, entry.Role, entry.QueryHash, entry.Outcome,
			entry.CacheHit, entry.RetrievedCount, entry.AllowedCount,
			entry.Restricted, entry.GuardMode, entry.LatencyMs,
			entry.ErrorMessage, entry.Timestamp,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Insert(context.Background(), entry)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryAuditRepository_InsertError(t *testing.T) {
	repo, mock := newMockRepo(t)
	entry := sampleEntry()

	mock.ExpectExec("INSERT INTO query_audits").
		WillReturnError(assert.AnError)

	err := repo.Insert(context.Background(), entry)
	assert.Error(t, err)
}

func TestQueryAuditRepository_GetRecent(t *testing.T) {
	repo, mock := newMockRepo(t)
	entry := sampleEntry()

	rows := sqlmock.NewRows([]string{
		"id", "tenant", "role", "query_hash", "outcome", "cache_hit",
		"retrieved_count", "allowed_count", "restricted", "guard_mode",
		"latency_ms", "error_message", "timestamp",
	}).AddRow(
		entry.ID, entry.Tenant, entry.Role, entry.QueryHash, entry.Outcome,
		entry.CacheHit, entry.RetrievedCount, entry.AllowedCount,
		entry.Restricted, entry.GuardMode, entry.LatencyMs,
		nil, entry.Timestamp,
	)

	mock.ExpectQuery("SELECT (.+) FROM query_audits").
		WithArgs("demo", 10).
		WillReturnRows(rows)

	entries, err := repo.GetRecent(context.Background(), "demo", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entry.ID, entries[0].ID)
	assert.Equal(t, models.QueryOutcomeAnswered, entries[0].Outcome)
	assert.Nil(t, entries[0].ErrorMessage)
}

func TestQueryAuditRepository_GetRecentDefaultLimit(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM query_audits").
		WithArgs("demo", 50).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "tenant", "role", "query_hash", "outcome", "cache_hit",
			"retrieved_count", "allowed_count", "restricted", "guard_mode",
			"latency_ms", "error_message", "timestamp",
		}))

	entries, err := repo.GetRecent(context.Background(), "demo", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryAuditRepository_CountByOutcome(t *testing.T) {
	repo, mock := newMockRepo(t)
	since := time.Now().Add(-24 * time.Hour)

	mock.ExpectQuery("SELECT outcome, COUNT").
		WithArgs("demo", since).
		WillReturnRows(sqlmock.NewRows([]string{"outcome", "count"}).
			AddRow("answered", 12).
			AddRow("refused", 3))

	counts, err := repo.CountByOutcome(context.Background(), "demo", since)
	require.NoError(t, err)
	assert.Equal(t, 12, counts[models.QueryOutcomeAnswered])
	assert.Equal(t, 3, counts[models.QueryOutcomeRefused])
}
