package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"bizportal.io/portal/internal/api/middleware"
	"bizportal.io/portal/internal/domain"
	apperrors "bizportal.io/portal/internal/pkg/errors"
	"bizportal.io/portal/internal/usecase"
)

const (
	transitionDisable       = "disable"
	transitionEnable        = "enable"
	transitionReserve       = "reserve"
	transitionMakeAvailable = "make-available"
)

var portTransitions = []string{transitionDisable, transitionEnable, transitionReserve, transitionMakeAvailable}

type createPortRequest struct {
	InstanceURL       string  `json:"instance_url" validate:"required,url,max=2048"`
	DBName            string  `json:"db_name" validate:"required,max=255"`
	DBHost            string  `json:"db_host" validate:"required,max=255"`
	ServerRegion      string  `json:"server_region" validate:"required,max=64"`
	Status            string  `json:"status" validate:"omitempty,oneof=AVAILABLE RESERVED"`
	SetupInstructions *string `json:"setup_instructions"`
	Notes             string  `json:"notes" validate:"max=2000"`
}

type updatePortRequest struct {
	InstanceURL       *string `json:"instance_url" validate:"omitempty,url,max=2048"`
	DBName            *string `json:"db_name" validate:"omitempty,min=1,max=255"`
	DBHost            *string `json:"db_host" validate:"omitempty,min=1,max=255"`
	ServerRegion      *string `json:"server_region" validate:"omitempty,min=1,max=64"`
	SetupInstructions *string `json:"setup_instructions"`
	Notes             *string `json:"notes" validate:"omitempty,max=2000"`
}

type transitionRequest struct {
	Notes string `json:"notes" validate:"max=1000"`
}

type statusChangeRequest struct {
	Status string `json:"status" validate:"required,oneof=AVAILABLE ASSIGNED RESERVED DISABLED"`
	Notes  string `json:"notes" validate:"max=1000"`
}

type portListResponse struct {
	Items    []*domain.Port              `json:"items"`
	Total    int64                       `json:"total"`
	Page     int                         `json:"page"`
	PerPage  int                         `json:"per_page"`
	ByStatus map[domain.PortStatus]int64 `json:"by_status"`
}

type portHistoryEntry struct {
	ID             string    `json:"id"`
	Action         string    `json:"action"`
	ActionLabel    string    `json:"action_label"`
	SubscriptionID *string   `json:"subscription_id,omitempty"`
	CustomerID     *string   `json:"customer_id,omitempty"`
	PerformedBy    *string   `json:"performed_by,omitempty"`
	Notes          string    `json:"notes"`
	CreatedAt      time.Time `json:"created_at"`
}

// ListPorts handles GET /admin/ports.
func (s *Server) ListPorts(c *gin.Context) {
	ctx, _, ok := requireActor(c, middleware.PermissionPortsAdmin)
	if !ok {
		return
	}
	status := domain.PortStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeValidationFailed, "unknown port status"))
		return
	}
	page, perPage := paginationFromQuery(c)

	result, err := s.ports.ListPorts(ctx, status, perPage, (page-1)*perPage)
	if err != nil {
		_ = c.Error(err)
		return
	}
	items := result.Ports
	if items == nil {
		items = []*domain.Port{}
	}
	c.JSON(http.StatusOK, portListResponse{
		Items:    items,
		Total:    result.Total,
		Page:     page,
		PerPage:  perPage,
		ByStatus: result.ByStatus,
	})
}

// CreatePort handles POST /admin/ports.
func (s *Server) CreatePort(c *gin.Context) {
	ctx, actor, ok := requireActor(c, middleware.PermissionPortsAdmin)
	if !ok {
		return
	}
	var req createPortRequest
	if !bindJSON(c, &req, false) {
		return
	}

	port, err := s.ports.CreatePort(ctx, usecase.CreatePortInput{
		InstanceURL:       req.InstanceURL,
		DBName:            req.DBName,
		DBHost:            req.DBHost,
		ServerRegion:      req.ServerRegion,
		Status:            domain.PortStatus(req.Status),
		SetupInstructions: req.SetupInstructions,
		Notes:             req.Notes,
	}, actor)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, port)
}

// GetPort handles GET /admin/ports/{port_id}.
func (s *Server) GetPort(c *gin.Context) {
	ctx, _, ok := requireActor(c, middleware.PermissionPortsAdmin)
	if !ok {
		return
	}
	port, err := s.ports.GetPort(ctx, c.Param("port_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, port)
}

// UpdatePort handles PATCH /admin/ports/{port_id}.
func (s *Server) UpdatePort(c *gin.Context) {
	ctx, _, ok := requireActor(c, middleware.PermissionPortsAdmin)
	if !ok {
		return
	}
	var req updatePortRequest
	if !bindJSON(c, &req, false) {
		return
	}

	port, err := s.ports.UpdatePort(ctx, c.Param("port_id"), usecase.UpdatePortInput{
		InstanceURL:       req.InstanceURL,
		DBName:            req.DBName,
		DBHost:            req.DBHost,
		ServerRegion:      req.ServerRegion,
		SetupInstructions: req.SetupInstructions,
		Notes:             req.Notes,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, port)
}

// DeletePort handles DELETE /admin/ports/{port_id}.
func (s *Server) DeletePort(c *gin.Context) {
	ctx, actor, ok := requireActor(c, middleware.PermissionPortsAdmin)
	if !ok {
		return
	}
	if err := s.ports.DeletePort(ctx, c.Param("port_id"), actor); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// TransitionPort returns the handler for POST /admin/ports/{port_id}/{transition}.
func (s *Server) TransitionPort(transition string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, actor, ok := requireActor(c, middleware.PermissionPortsAdmin)
		if !ok {
			return
		}
		var req transitionRequest
		if !bindJSON(c, &req, true) {
			return
		}

		id := c.Param("port_id")
		var (
			port *domain.Port
			err  error
		)
		switch transition {
		case transitionDisable:
			port, err = s.ports.DisablePort(ctx, id, actor, req.Notes)
		case transitionEnable:
			port, err = s.ports.EnablePort(ctx, id, actor, req.Notes)
		case transitionReserve:
			port, err = s.ports.ReservePort(ctx, id, actor, req.Notes)
		case transitionMakeAvailable:
			port, err = s.ports.MakeAvailable(ctx, id, actor, req.Notes)
		default:
			err = apperrors.NotFound(apperrors.CodeNotFound, "unknown port transition")
		}
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, port)
	}
}

// ChangePortStatus handles POST /admin/ports/{port_id}/status.
func (s *Server) ChangePortStatus(c *gin.Context) {
	ctx, actor, ok := requireActor(c, middleware.PermissionPortsAdmin)
	if !ok {
		return
	}
	var req statusChangeRequest
	if !bindJSON(c, &req, false) {
		return
	}

	port, err := s.ports.ChangeStatus(ctx, c.Param("port_id"), domain.PortStatus(req.Status), actor, req.Notes)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, port)
}

// GetPortHistory handles GET /admin/ports/{port_id}/history. Entries for a
// deleted port are still returned.
func (s *Server) GetPortHistory(c *gin.Context) {
	ctx, _, ok := requireActor(c, middleware.PermissionPortsAdmin)
	if !ok {
		return
	}
	rows, err := s.trail.PortHistory(ctx, c.Param("port_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	items := make([]portHistoryEntry, 0, len(rows))
	for _, row := range rows {
		entry := portHistoryEntry{
			ID:          row.ID,
			Action:      row.Action,
			ActionLabel: domain.AllocationAction(row.Action).Label(),
			Notes:       row.Notes,
			CreatedAt:   row.CreatedAt.Time,
		}
		if row.SubscriptionID.Valid {
			entry.SubscriptionID = &row.SubscriptionID.String
		}
		if row.CustomerID.Valid {
			entry.CustomerID = &row.CustomerID.String
		}
		if row.PerformedBy.Valid {
			entry.PerformedBy = &row.PerformedBy.String
		}
		items = append(items, entry)
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
