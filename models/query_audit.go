package models

import (
	"time"

	"github.com/google/uuid"
)

// QueryOutcome categorizes how a query resolved.
type QueryOutcome string

const (
	QueryOutcomeAnswered   QueryOutcome = "answered"
	QueryOutcomeCacheHit   QueryOutcome = "cache_hit"
	QueryOutcomeRefused    QueryOutcome = "refused"
	QueryOutcomeRestricted QueryOutcome = "restricted"
	QueryOutcomeError      QueryOutcome = "error"
)

// QueryAudit is the durable trail entry written for every processed query.
// It records pipeline counters and degradation flags, never raw document text.
type QueryAudit struct {
	ID             uuid.UUID    `json:"id" db:"id"`
	Tenant         string       `json:"tenant" db:"tenant"`
	Role           Role         `json:"role" db:"role"`
	QueryHash      string       `json:"query_hash" db:"query_hash"`
	Outcome        QueryOutcome `json:"outcome" db:"outcome"`
	CacheHit       bool         `json:"cache_hit" db:"cache_hit"`
	RetrievedCount int          `json:"retrieved_count" db:"retrieved_count"`
	AllowedCount   int          `json:"allowed_count" db:"allowed_count"`
	Restricted     bool         `json:"restricted" db:"restricted"`
	GuardMode      string       `json:"guard_mode" db:"guard_mode"`
	LatencyMs      int          `json:"latency_ms" db:"latency_ms"`
	ErrorMessage   *string      `json:"error_message,omitempty" db:"error_message"`
	Timestamp      time.Time    `json:"timestamp" db:"timestamp"`
}

// TableName returns the table name for the QueryAudit model
func (QueryAudit) TableName() string {
	return "query_audits"
}

// NewQueryAudit creates a trail entry for one query.
func NewQueryAudit(tenant string, role Role, queryHash string) *QueryAudit {
	return &QueryAudit{
		ID:        uuid.New(),
		Tenant:    tenant,
		Role:      role,
		QueryHash: queryHash,
		Timestamp: time.Now(),
	}
}

// WithError records a failure message on the entry
func (a *QueryAudit) WithError(msg string) *QueryAudit {
	a.ErrorMessage = &msg
	return a
}
