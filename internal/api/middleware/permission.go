package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
)

const (
	// PermissionPortsAdmin gates the admin port and audit endpoints.
	PermissionPortsAdmin = "ports:admin"
	// PermissionPortsAllocate lets the purchase flow allocate and release ports.
	PermissionPortsAllocate = "ports:allocate"
	// PermissionPlatformAdmin passes every permission check.
	PermissionPlatformAdmin = "platform:admin"
)

// HasPermission reports whether perms grants permission.
func HasPermission(perms []string, permission string) bool {
	return slices.Contains(perms, PermissionPlatformAdmin) || slices.Contains(perms, permission)
}

// RequirePermission returns middleware that checks if the authenticated user
// has a specific permission. JWTAuth must run first.
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		perms, exists := c.Get(string(ctxKeyPermissions))
		if !exists {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code": "FORBIDDEN", "message": "no permissions in context",
			})
			return
		}
		permList, ok := perms.([]string)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code": "FORBIDDEN", "message": "invalid permissions type",
			})
			return
		}

		if HasPermission(permList, permission) {
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"code": "FORBIDDEN", "message": "insufficient permissions",
		})
	}
}
