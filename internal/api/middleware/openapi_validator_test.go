package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeValidationPath(t *testing.T) {
	testCases := []struct {
		name     string
		basePath string
		path     string
		want     string
	}{
		{name: "strip prefix", basePath: "/api/v1", path: "/api/v1/admin/ports", want: "/admin/ports"},
		{name: "root path", basePath: "/api/v1", path: "/api/v1", want: "/"},
		{name: "no match", basePath: "/api/v1", path: "/metrics", want: "/metrics"},
		{name: "empty base", basePath: "", path: "/admin/ports", want: "/admin/ports"},
		{name: "trailing slash base", basePath: "/api/v1/", path: "/api/v1/ports/availability", want: "/ports/availability"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := normalizeValidationPath(normalizeBasePath(tc.basePath), tc.path)
			if got != tc.want {
				t.Fatalf("normalizeValidationPath mismatch: got %q want %q", got, tc.want)
			}
		})
	}
}

func newValidatedRouter() *gin.Engine {
	router := gin.New()
	router.Use(MustOpenAPIValidator("/api/v1"))
	ok := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) }
	router.POST("/api/v1/admin/ports", ok)
	router.PATCH("/api/v1/admin/ports/:port_id", ok)
	router.PUT("/api/v1/admin/subscriptions/:subscription_id/port", ok)
	router.POST("/api/v1/admin/ports/:port_id/status", ok)
	router.POST("/api/v1/admin/ports/:port_id/disable", ok)
	router.GET("/api/v1/admin/port-allocation-logs", ok)
	router.GET("/internal/debug", ok)
	return router
}

func TestOpenAPIValidatorRequests(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{
			name:   "create port missing required fields",
			method: http.MethodPost, path: "/api/v1/admin/ports",
			body: `{"instance_url":"https://p1.example.com"}`,
			want: http.StatusBadRequest,
		},
		{
			name:   "create port valid",
			method: http.MethodPost, path: "/api/v1/admin/ports",
			body: `{"instance_url":"https://p1.example.com","db_name":"p1","db_host":"db1","server_region":"eu-west"}`,
			want: http.StatusOK,
		},
		{
			name:   "create port cannot start assigned",
			method: http.MethodPost, path: "/api/v1/admin/ports",
			body: `{"instance_url":"https://p1.example.com","db_name":"p1","db_host":"db1","server_region":"eu-west","status":"ASSIGNED"}`,
			want: http.StatusBadRequest,
		},
		{
			name:   "update port empty body",
			method: http.MethodPatch, path: "/api/v1/admin/ports/port-1",
			body: `{}`,
			want: http.StatusBadRequest,
		},
		{
			name:   "update port notes",
			method: http.MethodPatch, path: "/api/v1/admin/ports/port-1",
			body: `{"notes":"moved rack"}`,
			want: http.StatusOK,
		},
		{
			name:   "reassign without port id",
			method: http.MethodPut, path: "/api/v1/admin/subscriptions/sub-1/port",
			body: `{}`,
			want: http.StatusBadRequest,
		},
		{
			name:   "status change unknown status",
			method: http.MethodPost, path: "/api/v1/admin/ports/port-1/status",
			body: `{"status":"BROKEN"}`,
			want: http.StatusBadRequest,
		},
		{
			name:   "disable without body",
			method: http.MethodPost, path: "/api/v1/admin/ports/port-1/disable",
			want: http.StatusOK,
		},
		{
			name:   "logs unknown action",
			method: http.MethodGet, path: "/api/v1/admin/port-allocation-logs?action=EXPLODED",
			want: http.StatusBadRequest,
		},
		{
			name:   "logs per_page too large",
			method: http.MethodGet, path: "/api/v1/admin/port-allocation-logs?per_page=5000",
			want: http.StatusBadRequest,
		},
		{
			name:   "logs valid filters",
			method: http.MethodGet, path: "/api/v1/admin/port-allocation-logs?action=ASSIGNED&page=2&per_page=20",
			want: http.StatusOK,
		},
		{
			name:   "path outside document passes through",
			method: http.MethodGet, path: "/internal/debug",
			want: http.StatusOK,
		},
	}

	router := newValidatedRouter()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var body *bytes.Buffer
			if tc.body != "" {
				body = bytes.NewBufferString(tc.body)
			} else {
				body = &bytes.Buffer{}
			}
			req := httptest.NewRequest(tc.method, tc.path, body)
			if tc.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)

			assert.Equal(t, tc.want, resp.Code, resp.Body.String())
		})
	}
}
