package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/secure-rag/models"
)

const testSecret = "test-secret"

func signToken(t *testing.T, tenant, role string, expiry time.Duration) string {
	t.Helper()
	claims := Claims{
		Tenant: tenant,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiry)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func runRequest(t *testing.T, m *AuthMiddleware, authHeader string) (*httptest.ResponseRecorder, models.QueryContext, bool) {
	t.Helper()
	var gotQC models.QueryContext
	var gotOK bool
	handler := m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQC, gotOK = GetQueryContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, gotQC, gotOK
}

func TestRequireAuth_ValidTokenDerivesQueryContext(t *testing.T) {
	m := NewAuthMiddleware(testSecret, models.ProfileGuardrails, zap.NewNop())
	token := signToken(t, "acme", "manager", time.Hour)

	rec, qc, ok := runRequest(t, m, "Bearer "+token)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.True(t, ok)
	assert.Equal(t, "acme", qc.Tenant)
	assert.Equal(t, models.RoleManager, qc.Role)
	// Profile comes from deployment config, not the token.
	assert.Equal(t, models.ProfileGuardrails, qc.Profile)
}

func TestRequireAuth_MissingHeader(t *testing.T) {
	m := NewAuthMiddleware(testSecret, models.ProfileBase, zap.NewNop())

	rec, _, ok := runRequest(t, m, "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, ok)
}

func TestRequireAuth_WrongSecret(t *testing.T) {
	m := NewAuthMiddleware("other-secret", models.ProfileBase, zap.NewNop())
	token := signToken(t, "acme", "manager", time.Hour)

	rec, _, _ := runRequest(t, m, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuth_ExpiredToken(t *testing.T) {
	m := NewAuthMiddleware(testSecret, models.ProfileBase, zap.NewNop())
	token := signToken(t, "acme", "manager", -time.Hour)

	rec, _, _ := runRequest(t, m, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuth_UnknownRoleRejected(t *testing.T) {
	m := NewAuthMiddleware(testSecret, models.ProfileBase, zap.NewNop())
	token := signToken(t, "acme", "superuser", time.Hour)

	rec, _, ok := runRequest(t, m, "Bearer "+token)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, ok)
}

func TestRequireAuth_MissingTenantRejected(t *testing.T) {
	m := NewAuthMiddleware(testSecret, models.ProfileBase, zap.NewNop())
	token := signToken(t, "  ", "employee", time.Hour)

	rec, _, _ := runRequest(t, m, "Bearer "+token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestExtractToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, extractToken(req))

	req.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, extractToken(req))

	req.Header.Set("Authorization", "Bearer abc.def.ghi")
	assert.Equal(t, "abc.def.ghi", extractToken(req))
}
