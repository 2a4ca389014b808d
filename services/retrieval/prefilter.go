package retrieval

import (
	"github.com/upb/secure-rag/models"
	"github.com/upb/secure-rag/services"
)

// BuildPredicate translates the caller's (tenant, role) into the prefilter
// applied inside every retrieval call.
//
// Policy: tenant is always constrained; employees additionally see only
// public documents; managers see public and confidential. Any other role is
// rejected with a configuration error; an undefined role must never default
// to the most permissive filter.
func BuildPredicate(qc models.QueryContext) (Predicate, error) {
	if qc.Tenant == "" {
		return Predicate{}, services.ErrMissingTenant
	}

	must := []Condition{{Field: "tenant", Value: qc.Tenant}}

	switch qc.Role {
	case models.RoleEmployee:
		must = append(must, Condition{Field: "sensitivity", Value: string(models.SensitivityPublic)})
	case models.RoleManager:
		// Both sensitivity tiers are searchable; tenant constraint only.
	default:
		return Predicate{}, services.ErrUnknownRole.WithDetail("role", string(qc.Role))
	}

	return Predicate{Must: must}, nil
}
