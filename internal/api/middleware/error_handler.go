// Package middleware provides HTTP middleware for the port allocation API.
//
// Import Path: bizportal.io/portal/internal/api/middleware
package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "bizportal.io/portal/internal/pkg/errors"
	"bizportal.io/portal/internal/pkg/logger"
)

// retryAfterSeconds is advertised on retryable failures such as LOCK_TIMEOUT.
const retryAfterSeconds = "1"

// ErrorHandler is a Gin middleware that provides centralized error handling.
// It captures errors added via c.Error() and returns a consistent JSON response.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		log := logger.ForRequest(GetRequestID(c.Request.Context()), GetActor(c.Request.Context()))

		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			log.Warn("Request error",
				zap.String("code", appErr.Code),
				zap.String("kind", appErr.Kind),
				zap.String("message", appErr.Message),
				zap.Int("status", appErr.HTTPStatus),
				zap.Error(appErr.Err),
			)
			if appErr.Retryable {
				c.Header("Retry-After", retryAfterSeconds)
			}
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		log.Error("Unhandled request error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "An internal error occurred",
		})
	}
}
