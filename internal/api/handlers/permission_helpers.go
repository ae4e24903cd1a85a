package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"bizportal.io/portal/internal/api/middleware"
	apperrors "bizportal.io/portal/internal/pkg/errors"
)

// requireActor enforces an authenticated caller holding permission and
// returns the request context and the caller's user id.
// Fail-closed policy:
// - unauthenticated => 401
// - missing/invalid permissions context => 403
// - missing required permission => 403
func requireActor(c *gin.Context, permission string) (context.Context, string, bool) {
	ctx := c.Request.Context()
	actor := strings.TrimSpace(middleware.GetActor(ctx))
	if actor == "" {
		_ = c.Error(apperrors.Unauthorized(apperrors.CodeUnauthorized, "authentication required"))
		c.Abort()
		return nil, "", false
	}
	if !middleware.HasPermission(middleware.GetPermissions(ctx), permission) {
		_ = c.Error(apperrors.Forbidden(apperrors.CodeForbidden, "insufficient permissions"))
		c.Abort()
		return nil, "", false
	}
	return ctx, actor, true
}
