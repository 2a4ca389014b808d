package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/secure-rag/services"
	"github.com/upb/secure-rag/utils"
)

// HandleServiceError maps domain errors to HTTP responses
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	switch services.GetErrorType(err) {
	case services.ErrorTypeValidation:
		_ = utils.WriteBadRequest(w, err.Error(), nil)

	case services.ErrorTypeConfiguration:
		// Configuration problems are the operator's fault, not the
		// caller's. Hide the specifics.
		logger.Error("configuration error", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "Service misconfigured")

	case services.ErrorTypeCache,
		services.ErrorTypeRetrieval,
		services.ErrorTypePolicyEngine,
		services.ErrorTypeGuard,
		services.ErrorTypeGeneration:
		logger.Warn("upstream dependency failed", zap.Error(err))
		_ = utils.WriteServiceUnavailable(w, "A backend dependency is unavailable")

	default:
		logger.Error("internal server error", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "An internal error occurred")
	}
}
