// Package handlers implements the HTTP API of the port allocation service.
//
// Handlers translate requests into use-case calls and render the results.
// Business failures are passed to middleware.ErrorHandler via c.Error.
//
// Import Path: bizportal.io/portal/internal/api/handlers
package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"bizportal.io/portal/internal/governance/audit"
	"bizportal.io/portal/internal/usecase"
)

// Pinger reports database reachability for the readiness check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the dependencies shared by all handlers.
type Server struct {
	db       Pinger
	engine   *usecase.AllocationEngine
	ports    *usecase.PortAdmin
	subs     usecase.SubscriptionGateway
	trail    *audit.Trail
	exporter *audit.Exporter
	now      func() time.Time
}

// ServerDeps holds all dependencies for creating a Server.
// Manual DI, no Wire/Dig.
type ServerDeps struct {
	DB            Pinger
	Engine        *usecase.AllocationEngine
	PortAdmin     *usecase.PortAdmin
	Subscriptions usecase.SubscriptionGateway
	Trail         *audit.Trail
	Exporter      *audit.Exporter
}

// NewServer creates a new Server with all dependencies.
func NewServer(deps ServerDeps) *Server {
	return &Server{
		db:       deps.DB,
		engine:   deps.Engine,
		ports:    deps.PortAdmin,
		subs:     deps.Subscriptions,
		trail:    deps.Trail,
		exporter: deps.Exporter,
		now:      time.Now,
	}
}

// RouteOptions carries the middleware the router applies per route group.
type RouteOptions struct {
	// Auth authenticates every non-health route.
	Auth gin.HandlerFunc
	// Admin guards /admin routes; handlers re-check permissions regardless.
	Admin gin.HandlerFunc
	// ExportLimit throttles the CSV export.
	ExportLimit gin.HandlerFunc
}

// RegisterRoutes mounts all endpoints on api, which is expected to be the
// /api/v1 group.
func (s *Server) RegisterRoutes(api gin.IRouter, opts RouteOptions) {
	api.GET("/health/live", s.GetLiveness)
	api.GET("/health/ready", s.GetReadiness)

	authed := api.Group("")
	if opts.Auth != nil {
		authed.Use(opts.Auth)
	}

	authed.GET("/ports/availability", s.GetPortAvailability)
	authed.GET("/subscriptions/:subscription_id/port", s.GetSubscriptionPort)
	authed.POST("/subscriptions/:subscription_id/port", s.AllocatePort)
	authed.DELETE("/subscriptions/:subscription_id/port", s.ReleasePort)

	admin := authed.Group("/admin")
	if opts.Admin != nil {
		admin.Use(opts.Admin)
	}

	admin.PUT("/subscriptions/:subscription_id/port", s.ReassignPort)

	admin.GET("/ports", s.ListPorts)
	admin.POST("/ports", s.CreatePort)
	admin.GET("/ports/:port_id", s.GetPort)
	admin.PATCH("/ports/:port_id", s.UpdatePort)
	admin.DELETE("/ports/:port_id", s.DeletePort)
	admin.GET("/ports/:port_id/history", s.GetPortHistory)
	admin.POST("/ports/:port_id/status", s.ChangePortStatus)
	for _, transition := range portTransitions {
		admin.POST("/ports/:port_id/"+transition, s.TransitionPort(transition))
	}

	admin.GET("/port-allocation-logs", s.ListAllocationLogs)
	export := []gin.HandlerFunc{s.ExportAllocationLogs}
	if opts.ExportLimit != nil {
		export = append([]gin.HandlerFunc{opts.ExportLimit}, export...)
	}
	admin.GET("/port-allocation-logs/export", export...)
}
