package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cardiocare-risk-server/internal/domain"
	"github.com/cardiocare-risk-server/internal/middleware"
)

var statusByCode = map[string]int{
	domain.ErrCodeValidation:           http.StatusBadRequest,
	domain.ErrCodeRecordNotFound:       http.StatusNotFound,
	domain.ErrCodeSessionNotFound:      http.StatusNotFound,
	domain.ErrCodeVerificationMismatch: http.StatusUnauthorized,
	domain.ErrCodeNoPendingAssessment:  http.StatusConflict,
	domain.ErrCodeNoActiveChallenge:    http.StatusConflict,
	domain.ErrCodeModelUnavailable:     http.StatusServiceUnavailable,
	domain.ErrCodeModelContract:        http.StatusBadGateway,
	domain.ErrCodePersistence:          http.StatusInternalServerError,
}

// HTTPStatus maps an error onto its response status.
func HTTPStatus(err error) int {
	if status, ok := statusByCode[domain.ErrorCode(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

var messages = map[string]string{
	domain.ErrCodeValidation:           "invalid request",
	domain.ErrCodeRecordNotFound:       "no record found for this patient ID",
	domain.ErrCodeSessionNotFound:      "session not found or expired",
	domain.ErrCodeVerificationMismatch: "invalid verification code",
	domain.ErrCodeNoPendingAssessment:  "run an assessment before saving a record",
	domain.ErrCodeNoActiveChallenge:    "request record access before verifying",
	domain.ErrCodeModelUnavailable:     "prediction unavailable: classifier not loaded",
	domain.ErrCodeModelContract:        "classifier returned an unexpected result",
	domain.ErrCodePersistence:          "record store failure",
	domain.ErrCodeInternal:             "internal server error",
}

// writeError renders err as an APIError. Internal causes are only exposed
// for validation errors.
func (s *Server) writeError(c *gin.Context, err error) {
	code := domain.ErrorCode(err)
	status := HTTPStatus(err)

	details := ""
	if code == domain.ErrCodeValidation {
		details = err.Error()
	}
	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).WithField("request_id", c.GetString(middleware.RequestIDKey)).Error("Request failed")
	}

	c.AbortWithStatusJSON(status, domain.NewAPIError(code, messages[code], details, c.GetString(middleware.RequestIDKey)))
}
