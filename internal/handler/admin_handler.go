package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-api/internal/middleware"
	"github.com/noah-isme/attendance-api/internal/models"
	"github.com/noah-isme/attendance-api/internal/service"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
	"github.com/noah-isme/attendance-api/pkg/response"
)

// AdminHandler handles account CRUD endpoints.
type AdminHandler struct {
	service *service.AdminService
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(svc *service.AdminService) *AdminHandler {
	return &AdminHandler{service: svc}
}

// List godoc
// @Summary List admins
// @Description List admin and guest accounts with pagination and filtering
// @Tags Admins
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param role query string false "SUPERADMIN, ADMIN or GUEST"
// @Param active query bool false "Active filter"
// @Param search query string false "Search term"
// @Param sort_by query string false "Sort by"
// @Param sort_order query string false "Sort order"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admins [get]
func (h *AdminHandler) List(c *gin.Context) {
	var filter models.AdminFilter
	filter.Page, filter.PageSize = pageParams(c)
	if role := strings.ToUpper(c.Query("role")); role != "" {
		r := models.AdminRole(role)
		if !r.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown role"))
			return
		}
		filter.Role = &r
	}
	filter.Active = boolQuery(c, "active")
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.SortBy = c.Query("sort_by")
	filter.SortOrder = c.Query("sort_order")

	admins, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, admins, pagination)
}

// Get godoc
// @Summary Get admin
// @Tags Admins
// @Produce json
// @Param id path string true "Admin ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admins/{id} [get]
func (h *AdminHandler) Get(c *gin.Context) {
	admin, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, admin, nil)
}

// Create godoc
// @Summary Create admin
// @Tags Admins
// @Accept json
// @Produce json
// @Param payload body service.CreateAdminRequest true "Admin payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admins [post]
func (h *AdminHandler) Create(c *gin.Context) {
	var req service.CreateAdminRequest
	if !bindJSON(c, &req, "invalid admin payload") {
		return
	}
	admin, err := h.service.Create(c.Request.Context(), req, actorID(c), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, admin)
}

// Update godoc
// @Summary Update admin
// @Tags Admins
// @Accept json
// @Produce json
// @Param id path string true "Admin ID"
// @Param payload body service.UpdateAdminRequest true "Admin payload"
// @Success 200 {object} response.Envelope
// @Router /admins/{id} [put]
func (h *AdminHandler) Update(c *gin.Context) {
	var req service.UpdateAdminRequest
	if !bindJSON(c, &req, "invalid admin payload") {
		return
	}
	admin, err := h.service.Update(c.Request.Context(), c.Param("id"), req, actorID(c), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, admin, nil)
}

// Delete godoc
// @Summary Deactivate admin
// @Description Disables the account, removes its batch assignments and revokes its sessions
// @Tags Admins
// @Param id path string true "Admin ID"
// @Success 204
// @Router /admins/{id} [delete]
func (h *AdminHandler) Delete(c *gin.Context) {
	if err := h.service.Deactivate(c.Request.Context(), c.Param("id"), actorID(c), requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func actorID(c *gin.Context) string {
	if claims := middleware.ClaimsFrom(c); claims != nil {
		return claims.AdminID
	}
	return ""
}
