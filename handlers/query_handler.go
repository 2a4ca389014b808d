package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/secure-rag/middleware"
	"github.com/upb/secure-rag/models"
	"github.com/upb/secure-rag/utils"
)

// QueryAnswerer runs the answer pipeline for one question.
type QueryAnswerer interface {
	Answer(ctx context.Context, qc models.QueryContext, raw string) (*models.Answer, error)
}

// QueryRequest is the POST /api/v1/query body.
type QueryRequest struct {
	Question string `json:"question" validate:"required,min=1,max=2000"`
}

// QueryHandler answers questions for the authenticated query context.
func QueryHandler(svc QueryAnswerer, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qc, ok := middleware.GetQueryContext(r.Context())
		if !ok {
			logger.Error("query handler reached without authenticated context")
			_ = utils.WriteUnauthorized(w, "")
			return
		}

		var req QueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "bad_request", "Request body must be valid JSON")
			return
		}
		if err := utils.ValidateStruct(req); err != nil {
			var verr *utils.ValidationError
			if errors.As(err, &verr) {
				_ = utils.WriteBadRequest(w, verr.Message, verr.Details())
				return
			}
			_ = utils.WriteBadRequest(w, err.Error(), nil)
			return
		}

		answer, err := svc.Answer(r.Context(), qc, req.Question)
		if err != nil {
			HandleServiceError(w, err, logger)
			return
		}

		respondJSON(w, http.StatusOK, answer)
	}
}
