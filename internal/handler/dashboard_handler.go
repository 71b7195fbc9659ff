package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-api/internal/dto"
	"github.com/noah-isme/attendance-api/internal/models"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
	"github.com/noah-isme/attendance-api/pkg/istdate"
	"github.com/noah-isme/attendance-api/pkg/response"
)

type dashboardService interface {
	Summary(ctx context.Context, principal *models.Principal, preset istdate.Preset) (*dto.DashboardResponse, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Summary godoc
// @Summary Attendance dashboard summary
// @Tags Dashboard
// @Produce json
// @Param preset query string false "today, thisWeek, thisMonth or all. Defaults to thisMonth"
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	var preset istdate.Preset
	if raw := strings.TrimSpace(c.Query("preset")); raw != "" {
		parsed, err := istdate.ParsePreset(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "preset must be one of today, thisWeek, thisMonth, all"))
			return
		}
		preset = parsed
	}
	start := time.Now()
	summary, err := h.service.Summary(c.Request.Context(), principal, preset)
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := map[string]interface{}{"processing_time_ms": time.Since(start).Milliseconds()}
	response.JSON(c, http.StatusOK, summary, nil, meta)
}
