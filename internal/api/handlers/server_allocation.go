package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bizportal.io/portal/internal/api/middleware"
	apperrors "bizportal.io/portal/internal/pkg/errors"
	"bizportal.io/portal/internal/pkg/logger"
)

// pendingAllocationMessage is shown to a customer whose purchase completed
// while the pool was empty.
const pendingAllocationMessage = "your subscription is pending port allocation"

type availabilityResponse struct {
	Available bool `json:"available"`
}

type pendingAllocationResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type reassignRequest struct {
	PortID string `json:"port_id" validate:"required,max=64"`
}

// GetPortAvailability handles GET /ports/availability. The answer is a
// hint for the storefront; it reserves nothing.
func (s *Server) GetPortAvailability(c *gin.Context) {
	ctx, _, ok := requireActor(c, middleware.PermissionPortsAllocate)
	if !ok {
		return
	}
	available, err := s.engine.HasAvailablePorts(ctx)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, availabilityResponse{Available: available})
}

// GetSubscriptionPort handles GET /subscriptions/{subscription_id}/port.
func (s *Server) GetSubscriptionPort(c *gin.Context) {
	ctx, _, ok := requireActor(c, middleware.PermissionPortsAllocate)
	if !ok {
		return
	}
	subscriptionID := c.Param("subscription_id")

	port, err := s.subs.CurrentPort(ctx, subscriptionID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if port == nil {
		_ = c.Error(apperrors.NotFound(apperrors.CodePortNotFound, "subscription holds no port").
			WithParams(map[string]interface{}{"subscription_id": subscriptionID}))
		return
	}
	c.JSON(http.StatusOK, port)
}

// AllocatePort handles POST /subscriptions/{subscription_id}/port. An empty
// pool is not an error for the purchase flow: the subscription stays ACTIVE
// without a port and the sweep job retries it.
func (s *Server) AllocatePort(c *gin.Context) {
	ctx, actor, ok := requireActor(c, middleware.PermissionPortsAllocate)
	if !ok {
		return
	}
	subscriptionID := c.Param("subscription_id")

	result, err := s.engine.AllocatePortToSubscription(ctx, subscriptionID, actor)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if result.Success {
		c.JSON(http.StatusOK, result)
		return
	}
	if result.Error.Code == apperrors.CodeNoAvailablePorts {
		logger.ForRequest(middleware.GetRequestID(ctx), actor).Warn("Subscription pending port allocation",
			zap.String("subscription_id", subscriptionID),
		)
		c.JSON(http.StatusAccepted, pendingAllocationResponse{
			Success: false,
			Error:   apperrors.CodeNoAvailablePorts,
			Message: pendingAllocationMessage,
		})
		return
	}
	_ = c.Error(result.Error)
}

// ReleasePort handles DELETE /subscriptions/{subscription_id}/port.
func (s *Server) ReleasePort(c *gin.Context) {
	ctx, actor, ok := requireActor(c, middleware.PermissionPortsAllocate)
	if !ok {
		return
	}
	if err := s.engine.ReleasePort(ctx, c.Param("subscription_id"), actor); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, successResponse{Success: true})
}

// ReassignPort handles PUT /admin/subscriptions/{subscription_id}/port.
func (s *Server) ReassignPort(c *gin.Context) {
	ctx, actor, ok := requireActor(c, middleware.PermissionPortsAdmin)
	if !ok {
		return
	}
	var req reassignRequest
	if !bindJSON(c, &req, false) {
		return
	}

	result, err := s.engine.ReassignPort(ctx, c.Param("subscription_id"), req.PortID, actor)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if !result.Success {
		_ = c.Error(result.Error)
		return
	}
	c.JSON(http.StatusOK, result)
}
