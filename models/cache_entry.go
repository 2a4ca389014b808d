package models

import "time"

// CacheEntry is the persisted value behind a semantic-cache key. Keys are
// namespaced per (tenant, role, query hash), so two principals never observe
// each other's entries even for identical question text.
type CacheEntry struct {
	AnswerText string    `json:"answer_text"`
	SourceList []string  `json:"source_list"`
	CreatedAt  time.Time `json:"created_at"`
	TTLSeconds int       `json:"ttl_seconds"`
}
