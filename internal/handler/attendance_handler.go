package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-api/internal/models"
	"github.com/noah-isme/attendance-api/internal/service"
	"github.com/noah-isme/attendance-api/pkg/response"
)

type attendanceRecorder interface {
	Mark(ctx context.Context, principal *models.Principal, req service.MarkAttendanceRequest) (*models.AttendanceRecord, error)
	List(ctx context.Context, principal *models.Principal, req service.AttendanceListRequest) ([]models.AttendanceRecord, *models.Pagination, error)
	Get(ctx context.Context, principal *models.Principal, id string) (*models.AttendanceRecord, error)
	Delete(ctx context.Context, principal *models.Principal, id string) error
}

type attendanceStatsProvider interface {
	Stats(ctx context.Context, principal *models.Principal, q service.StatsQuery) ([]models.BatchAttendanceStats, error)
}

type attendanceExporter interface {
	Workbook(ctx context.Context, principal *models.Principal, q service.StatsQuery) (*service.ExportFile, error)
	Report(ctx context.Context, principal *models.Principal, q service.StatsQuery, format string) (*service.ExportFile, error)
}

// AttendanceHandler exposes marking, statistics and export endpoints.
type AttendanceHandler struct {
	records attendanceRecorder
	stats   attendanceStatsProvider
	exports attendanceExporter
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(records attendanceRecorder, stats attendanceStatsProvider, exports attendanceExporter) *AttendanceHandler {
	return &AttendanceHandler{records: records, stats: stats, exports: exports}
}

// Mark godoc
// @Summary Mark a session
// @Description Stores the attendance of one batch for one date and session, replacing an earlier marking
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.MarkAttendanceRequest true "Attendance payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /attendance [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	var req service.MarkAttendanceRequest
	if !bindJSON(c, &req, "invalid attendance payload") {
		return
	}
	record, err := h.records.Mark(c.Request.Context(), principal, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// List godoc
// @Summary List attendance records
// @Tags Attendance
// @Produce json
// @Param batchIds query string false "Comma separated batch ids"
// @Param startDate query string false "YYYY-MM-DD"
// @Param endDate query string false "YYYY-MM-DD"
// @Param session query string false "FN or AN"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	page, size := pageParams(c)
	req := service.AttendanceListRequest{
		BatchIDs:  listQuery(c, "batchId", "batchIds"),
		StartDate: c.Query("startDate"),
		EndDate:   c.Query("endDate"),
		Session:   c.Query("session"),
		Page:      page,
		PageSize:  size,
	}
	records, pagination, err := h.records.List(c.Request.Context(), principal, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Get godoc
// @Summary Get attendance record
// @Tags Attendance
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Router /attendance/{id} [get]
func (h *AttendanceHandler) Get(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	record, err := h.records.Get(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Delete godoc
// @Summary Delete attendance record
// @Tags Attendance
// @Param id path string true "Record ID"
// @Success 204
// @Router /attendance/{id} [delete]
func (h *AttendanceHandler) Delete(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	if err := h.records.Delete(c.Request.Context(), principal, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Stats godoc
// @Summary Attendance statistics
// @Description Per-student counters and percentage for each selected batch
// @Tags Attendance
// @Produce json
// @Param batchIds query string false "Comma separated batch ids"
// @Param deptIds query string false "Comma separated department ids or ALL"
// @Param batchYears query string false "Comma separated admission years"
// @Param startDate query string false "YYYY-MM-DD"
// @Param endDate query string false "YYYY-MM-DD"
// @Param allDates query bool false "Ignore the date range"
// @Param preset query string false "today, thisWeek, thisMonth or all"
// @Param sort query string false "regNo, name or percentage"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /attendance/stats [get]
func (h *AttendanceHandler) Stats(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	q, err := parseStatsQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.stats.Stats(c.Request.Context(), principal, q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil, map[string]interface{}{"range": q.Range.String()})
}

// Export godoc
// @Summary Export attendance workbook
// @Description One worksheet per batch with FN/AN columns for every recorded date
// @Tags Attendance
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param batchIds query string false "Comma separated batch ids"
// @Param deptIds query string false "Comma separated department ids or ALL"
// @Param batchYears query string false "Comma separated admission years"
// @Param startDate query string false "YYYY-MM-DD"
// @Param endDate query string false "YYYY-MM-DD"
// @Param allDates query bool false "Ignore the date range"
// @Param preset query string false "today, thisWeek, thisMonth or all"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /attendance/export [get]
func (h *AttendanceHandler) Export(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	q, err := parseStatsQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.exports.Workbook(c.Request.Context(), principal, q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.ContentType, file.Filename, file.Body)
}

// Report godoc
// @Summary Export attendance report
// @Description Flat summary table as CSV or PDF
// @Tags Attendance
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Param batchIds query string false "Comma separated batch ids"
// @Param startDate query string false "YYYY-MM-DD"
// @Param endDate query string false "YYYY-MM-DD"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /attendance/report [get]
func (h *AttendanceHandler) Report(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	q, err := parseStatsQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format := strings.ToLower(c.DefaultQuery("format", service.FormatCSV))
	file, err := h.exports.Report(c.Request.Context(), principal, q, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.ContentType, file.Filename, file.Body)
}
