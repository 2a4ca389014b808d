package models

// Sensitivity labels gate document visibility by role.
type Sensitivity string

const (
	SensitivityPublic       Sensitivity = "public"
	SensitivityConfidential Sensitivity = "confidential"
)

// Valid returns true for the sensitivity labels the pipeline understands
func (s Sensitivity) Valid() bool {
	return s == SensitivityPublic || s == SensitivityConfidential
}

// Document represents an indexed corpus document.
// Documents are immutable once indexed; ingestion owns their lifecycle.
type Document struct {
	ID          string      `json:"id"`
	Text        string      `json:"text"`
	Tenant      string      `json:"tenant"`
	Sensitivity Sensitivity `json:"sensitivity"`
	SourceName  string      `json:"source_name"`
}
