package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/erp-status-api/internal/models"
	"github.com/noah-isme/erp-status-api/internal/service"
	"github.com/noah-isme/erp-status-api/pkg/config"
)

func testRouter(t *testing.T) (*gin.Engine, *service.AuthService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	auth := service.NewAuthService(zap.NewNop(), service.AuthConfig{AccessTokenSecret: "test-secret", AccessTokenExpiry: time.Hour, Issuer: "erp-status-api"})
	cfg := &config.Config{Env: config.EnvProduction, APIPrefix: "/api", StatusManagement: config.StatusManagementConfig{Enabled: true}}
	return newRouter(cfg, zap.NewNop(), routeDeps{auth: auth, metrics: service.NewMetricsService()}), auth
}

func TestRouterPublicEndpoints(t *testing.T) {
	r, _ := testRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/docs/index.html", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouterRequiresAuthAndRoles(t *testing.T) {
	r, auth := testRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status-change-records", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, _, err := auth.IssueToken("staff-1", models.RoleStaff, time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/employees/emp-1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
