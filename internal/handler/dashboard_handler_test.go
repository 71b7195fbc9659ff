package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/attendance-api/internal/dto"
	"github.com/noah-isme/attendance-api/internal/middleware"
	"github.com/noah-isme/attendance-api/internal/models"
	"github.com/noah-isme/attendance-api/pkg/istdate"
)

type fakeDashboardSrv struct {
	resp       *dto.DashboardResponse
	err        error
	lastPreset istdate.Preset
	called     bool
}

func (f *fakeDashboardSrv) Summary(_ context.Context, _ *models.Principal, preset istdate.Preset) (*dto.DashboardResponse, error) {
	f.called = true
	f.lastPreset = preset
	return f.resp, f.err
}

func withPrincipal(c *gin.Context, role models.AdminRole) {
	c.Set(middleware.ContextPrincipalKey, &models.Principal{AdminID: "a1", Role: role})
}

func TestDashboardHandlerRequiresPrincipal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeDashboardSrv{}
	handler := NewDashboardHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard", nil)

	handler.Summary(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, srv.called)
}

func TestDashboardHandlerRejectsUnknownPreset(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeDashboardSrv{}
	handler := NewDashboardHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard?preset=lastYear", nil)
	withPrincipal(c, models.RoleSuperAdmin)

	handler.Summary(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, srv.called)
}

func TestDashboardHandlerSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeDashboardSrv{resp: &dto.DashboardResponse{Range: "2024-03-01 to 2024-03-31", Threshold: 75}}
	handler := NewDashboardHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard?preset=thisWeek", nil)
	withPrincipal(c, models.RoleGuest)

	handler.Summary(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, istdate.PresetThisWeek, srv.lastPreset)
	var envelope responseEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, "2024-03-01 to 2024-03-31", envelope.Data["range"])
	assert.Contains(t, envelope.Meta, "processing_time_ms")
}

type responseEnvelope struct {
	Data map[string]interface{} `json:"data"`
	Meta map[string]interface{} `json:"meta"`
}
