package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rentesla/mobile-backend/internal/services"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// RespondServiceError maps the service sentinel errors onto HTTP statuses
// so handlers do not repeat the switch.
func RespondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		RespondError(c, http.StatusNotFound, "user_not_found", err)
	case errors.Is(err, services.ErrDocumentNotFound):
		RespondError(c, http.StatusNotFound, "document_not_found", err)
	case errors.Is(err, services.ErrForbidden):
		RespondError(c, http.StatusForbidden, "forbidden", err)
	case errors.Is(err, services.ErrValidation):
		RespondError(c, http.StatusBadRequest, "validation_error", err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal_error", err)
	}
}
