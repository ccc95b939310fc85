package httputil

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/booking-api/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
	Error  *Error      `json:"error,omitempty"`
}

// Error represents API error
type Error struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// StatusCode maps an error to its HTTP status.
func StatusCode(err error) int {
	switch apperrors.CodeOf(err) {
	case apperrors.ErrValidation:
		return http.StatusBadRequest
	case apperrors.ErrNotFound:
		return http.StatusNotFound
	case apperrors.ErrExpired:
		return http.StatusGone
	case apperrors.ErrConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{
		Status: "success",
		Data:   data,
	})
}

// RespondWithError sends an error response. Internal details never reach the
// client.
func RespondWithError(c *gin.Context, err error) {
	status := StatusCode(err)
	code := apperrors.CodeOf(err)

	message := "Internal server error"
	var appErr *apperrors.AppError
	if code != apperrors.ErrInternal && errors.As(err, &appErr) {
		message = appErr.Message
	}

	c.AbortWithStatusJSON(status, Response{
		Status: "error",
		Error: &Error{
			Code:      code.String(),
			Message:   message,
			RequestID: c.GetString("request_id"),
		},
	})
}
