package middleware

import (
	"context"

	"github.com/upb/secure-rag/models"
)

// Context key type to avoid collisions
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"

	// QueryContextKey is the context key for the authenticated query context
	QueryContextKey contextKey = "query_context"
)

// GetRequestIDFromContext retrieves the request ID from context
func GetRequestIDFromContext(ctx context.Context) string {
	if val := ctx.Value(RequestIDKey); val != nil {
		if requestID, ok := val.(string); ok {
			return requestID
		}
	}
	return ""
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetQueryContext retrieves the authenticated query context, if any.
func GetQueryContext(ctx context.Context) (models.QueryContext, bool) {
	if val := ctx.Value(QueryContextKey); val != nil {
		if qc, ok := val.(models.QueryContext); ok {
			return qc, true
		}
	}
	return models.QueryContext{}, false
}

// WithQueryContext stores the authenticated query context.
func WithQueryContext(ctx context.Context, qc models.QueryContext) context.Context {
	return context.WithValue(ctx, QueryContextKey, qc)
}
