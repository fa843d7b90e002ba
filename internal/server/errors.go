package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	chaindomain "github.com/smallbiznis/claimsync/internal/chain/domain"
	insurancedomain "github.com/smallbiznis/claimsync/internal/insurance/domain"
	obscontext "github.com/smallbiznis/claimsync/internal/observability/context"
	"github.com/smallbiznis/claimsync/pkg/db/pagination"
)

// APIError is the error body every handler responds with.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`

	RequestID string `json:"request_id,omitempty"`
}

func (e *APIError) Error() string { return e.Code }

var (
	ErrNotFound        = &APIError{Status: http.StatusNotFound, Code: "not_found", Message: "resource not found"}
	ErrUnauthorized    = &APIError{Status: http.StatusUnauthorized, Code: "unauthorized", Message: "missing or invalid operator token"}
	ErrTooManyRequests = &APIError{Status: http.StatusTooManyRequests, Code: "rate_limited", Message: "too many requests"}
	errInternal        = &APIError{Status: http.StatusInternalServerError, Code: "internal_error", Message: "internal error"}
)

func invalidRequestError() *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: "invalid_request", Message: "invalid request"}
}

func newValidationError(field, code, message string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: code, Message: message, Field: field}
}

// AbortWithError maps domain errors onto HTTP responses.
func AbortWithError(c *gin.Context, err error) {
	resp := *toAPIError(err)
	resp.RequestID = obscontext.RequestIDFromContext(c.Request.Context())
	if resp.Status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(resp.Status, gin.H{"error": resp})
}

func toAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, insurancedomain.ErrPayerNotFound):
		return &APIError{Status: http.StatusNotFound, Code: err.Error(), Message: "payer not found"}
	case errors.Is(err, insurancedomain.ErrClaimNotFound):
		return &APIError{Status: http.StatusNotFound, Code: err.Error(), Message: "claim not found"}
	case errors.Is(err, insurancedomain.ErrClaimClosed):
		return &APIError{Status: http.StatusConflict, Code: err.Error(), Message: "claim is already paid or cancelled"}
	case errors.Is(err, insurancedomain.ErrInvalidWallet):
		return newValidationError("wallet", err.Error(), "invalid wallet address")
	case errors.Is(err, insurancedomain.ErrInvalidDecision):
		return newValidationError("decision", err.Error(), "decision must be accept or reject")
	case errors.Is(err, insurancedomain.ErrInvalidClaimStatus):
		return newValidationError("status", err.Error(), "unknown claim status")
	case errors.Is(err, pagination.ErrInvalidPageToken):
		return newValidationError("page_token", err.Error(), "invalid page token")
	case errors.Is(err, chaindomain.ErrSourceUnavailable):
		return &APIError{Status: http.StatusServiceUnavailable, Code: "source_unavailable", Message: "chain node unavailable"}
	default:
		return errInternal
	}
}
