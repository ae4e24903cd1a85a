package handlers

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bizportal.io/portal/internal/api/middleware"
	"bizportal.io/portal/internal/governance/audit"
	"bizportal.io/portal/internal/pkg/logger"
)

type allocationLogResponse struct {
	audit.LogRecord
	ActionLabel string `json:"action_label"`
}

type allocationLogListResponse struct {
	Items   []allocationLogResponse `json:"items"`
	Total   int                     `json:"total"`
	Page    int                     `json:"page"`
	PerPage int                     `json:"per_page"`
}

// ListAllocationLogs handles GET /admin/port-allocation-logs.
func (s *Server) ListAllocationLogs(c *gin.Context) {
	ctx, _, ok := requireActor(c, middleware.PermissionPortsAdmin)
	if !ok {
		return
	}
	filter, err := logFilterFromQuery(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	page, perPage := paginationFromQuery(c)

	records, total, err := s.trail.FindAllWithRelations(ctx, filter, perPage, (page-1)*perPage)
	if err != nil {
		_ = c.Error(err)
		return
	}

	items := make([]allocationLogResponse, 0, len(records))
	for _, rec := range records {
		items = append(items, allocationLogResponse{LogRecord: rec, ActionLabel: rec.Action.Label()})
	}
	c.JSON(http.StatusOK, allocationLogListResponse{
		Items:   items,
		Total:   total,
		Page:    page,
		PerPage: perPage,
	})
}

// ExportAllocationLogs handles GET /admin/port-allocation-logs/export.
// The CSV is built in memory so a failing query still yields a JSON error
// rather than a truncated file.
func (s *Server) ExportAllocationLogs(c *gin.Context) {
	ctx, actor, ok := requireActor(c, middleware.PermissionPortsAdmin)
	if !ok {
		return
	}
	filter, err := logFilterFromQuery(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	var buf bytes.Buffer
	rows, err := s.exporter.Export(ctx, &buf, filter)
	if err != nil {
		_ = c.Error(err)
		return
	}

	logger.ForRequest(middleware.GetRequestID(ctx), actor).Info("Allocation logs exported",
		zap.Int("rows", rows),
		zap.String("action", string(filter.Action)),
		zap.String("port_id", filter.PortID),
	)

	filename := audit.ExportFilename(s.now())
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
