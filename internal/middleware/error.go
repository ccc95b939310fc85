package middleware

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/httputil"
)

// ErrorHandler writes the last error a handler attached with c.Error, unless
// a response has already been written.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only handle errors if they exist
		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr.IsType(gin.ErrorTypeBind) {
			httputil.RespondWithError(c, apperrors.NewValidation(lastErr.Error(), lastErr.Err))
			return
		}
		httputil.RespondWithError(c, lastErr.Err)
	}
}
