package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/merchant-intake/internal/backend"
	"github.com/joseph-ayodele/merchant-intake/internal/common"
	"github.com/joseph-ayodele/merchant-intake/internal/intake"
	"github.com/joseph-ayodele/merchant-intake/internal/resilience"
)

type errorBody struct {
	Error     string   `json:"error"`
	Code      string   `json:"code,omitempty"`
	Step      string   `json:"step,omitempty"`
	Missing   []string `json:"missing,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
}

// httpStatus maps application errors to a status and a short code.
func httpStatus(err error) (int, string) {
	var statusErr *backend.HTTPStatusError
	var actionErr *backend.ActionError
	switch {
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, common.ErrValidation):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR"
	case errors.Is(err, common.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_INPUT"
	case errors.Is(err, common.ErrBusy):
		return http.StatusConflict, "BUSY"
	case errors.Is(err, common.ErrUploadLocked):
		return http.StatusLocked, "UPLOAD_LOCKED"
	case errors.Is(err, common.ErrSubmitted):
		return http.StatusConflict, "SUBMITTED"
	case errors.Is(err, backend.ErrNotConfigured), resilience.IsCircuitOpen(err):
		return http.StatusServiceUnavailable, "BACKEND_UNAVAILABLE"
	case errors.As(err, &statusErr), errors.As(err, &actionErr), errors.Is(err, common.ErrUpstream):
		return http.StatusBadGateway, "BACKEND_ERROR"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

// abortWithError writes the error body and logs server-side failures.
func (h *handler) abortWithError(c *gin.Context, err error) {
	status, code := httpStatus(err)
	body := errorBody{
		Error:     err.Error(),
		Code:      code,
		RequestID: common.RequestIDFromContext(c.Request.Context()),
	}
	var stepErr *intake.StepValidationError
	if errors.As(err, &stepErr) {
		body.Step = stepErr.Step
		body.Missing = stepErr.Missing
	}
	log := common.LoggerFromContext(c.Request.Context(), h.logger)
	if status >= http.StatusInternalServerError {
		log.Error("http.request.failed", "path", c.FullPath(), "status", status, "error", err)
		if status == http.StatusInternalServerError {
			body.Error = "internal error"
		}
	} else {
		log.Warn("http.request.rejected", "path", c.FullPath(), "status", status, "error", err)
	}
	c.AbortWithStatusJSON(status, body)
}
