package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/upb/secure-rag/models"
	"github.com/upb/secure-rag/utils"
)

// Claims are the JWT claims the gateway understands. Tenant and role
// drive the per-request query context; the profile stays a deployment
// setting, never a caller choice.
type Claims struct {
	Tenant string `json:"tenant"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates bearer tokens and derives the query context
// from their claims.
type AuthMiddleware struct {
	secret  []byte
	profile models.Profile
	logger  *zap.Logger
}

// NewAuthMiddleware creates an AuthMiddleware with an HS256 secret.
func NewAuthMiddleware(secret string, profile models.Profile, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		secret:  []byte(secret),
		profile: profile,
		logger:  logger,
	}
}

// RequireAuth validates the bearer token and stores the derived query
// context for downstream handlers.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		token := extractToken(r)
		if token == "" {
			m.logger.Warn("missing bearer token", zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, "Missing or invalid authorization")
			return
		}

		claims, err := m.parseToken(token)
		if err != nil {
			m.logger.Warn("token validation failed",
				zap.String("request_id", requestID),
				zap.Error(err))
			_ = utils.WriteUnauthorized(w, "Invalid or expired token")
			return
		}

		qc := models.QueryContext{
			Tenant:  strings.TrimSpace(claims.Tenant),
			Role:    models.Role(claims.Role),
			Profile: m.profile,
		}
		if qc.Tenant == "" {
			m.logger.Warn("token missing tenant claim", zap.String("request_id", requestID))
			_ = utils.WriteForbidden(w, "Token does not name a tenant")
			return
		}
		if !qc.Role.Valid() {
			// An unrecognized role is a configuration problem, never a
			// permissive default.
			m.logger.Warn("token carries unknown role",
				zap.String("request_id", requestID),
				zap.String("role", claims.Role))
			_ = utils.WriteForbidden(w, "Role is not defined by the access policy")
			return
		}

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("tenant", qc.Tenant),
			zap.String("role", string(qc.Role)))

		next.ServeHTTP(w, r.WithContext(WithQueryContext(ctx, qc)))
	})
}

func (m *AuthMiddleware) parseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is invalid")
	}
	return claims, nil
}

// extractToken pulls the bearer token from the Authorization header.
func extractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
