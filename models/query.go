package models

// Role determines which sensitivity tiers a caller may read.
type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
)

// Valid returns true for the roles the base design defines.
// Any other role must be rejected explicitly, never defaulted.
func (r Role) Valid() bool {
	return r == RoleEmployee || r == RoleManager
}

// Profile selects the safety-guard behavior for a session.
type Profile string

const (
	ProfileBase       Profile = "base"
	ProfileGuardrails Profile = "guardrails"
	ProfileDemo       Profile = "demo"
)

// Valid returns true for the known profiles
func (p Profile) Valid() bool {
	return p == ProfileBase || p == ProfileGuardrails || p == ProfileDemo
}

// QueryContext identifies the principal for a query. It is constructed once
// per session (from configuration, or from request claims in gateway mode)
// and threaded through every pipeline stage; components never read ambient
// global state.
type QueryContext struct {
	Tenant  string
	Role    Role
	Profile Profile
}

// NormalizedQuery is the canonical form of a raw question. Hash is derived
// from the canonical text only, never from embeddings, so semantically
// distinct questions cannot collide through embedding similarity.
type NormalizedQuery struct {
	CanonicalText string
	Hash          string
}

// RetrievalCandidate is an ephemeral per-query fusion result.
// A rank of zero means the document was absent from that retriever.
type RetrievalCandidate struct {
	DocumentID  string
	DenseRank   int
	LexicalRank int
	FusedScore  float64
	Tenant      string
	Sensitivity Sensitivity
	SourceName  string
	Text        string
}

// AuthDecision records the policy engine's verdict for one candidate.
type AuthDecision struct {
	DocumentID string
	Allowed    bool
	Reason     string
}

// Answer is the pipeline's response to one question.
type Answer struct {
	Text    string   `json:"answer"`
	Sources []string `json:"sources"`
	// CacheHit indicates the answer was served from the semantic cache.
	CacheHit bool `json:"cache_hit"`
	// Restricted indicates the policy engine was unreachable and every
	// candidate was denied (fail-closed degraded mode).
	Restricted bool `json:"restricted,omitempty"`
	// Notice carries the one-time guard degraded-mode message, if any.
	Notice string `json:"notice,omitempty"`
}
