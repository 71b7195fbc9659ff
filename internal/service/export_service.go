package service

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/models"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
	"github.com/noah-isme/attendance-api/pkg/export"
	"github.com/noah-isme/attendance-api/pkg/istdate"
)

// Report formats.
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
	FormatPDF  = "pdf"
)

var reportHeaders = []string{"Batch", "Department", "Reg No", "Name", "Total Classes", "Present", "Absent", "On-Duty", "Late", "Sick-Leave", "Attendance %"}

type statsAggregator interface {
	Aggregate(ctx context.Context, principal *models.Principal, q StatsQuery) ([]models.BatchAttendanceStats, error)
}

type workbookRenderer interface {
	Render(sheets []export.WorkbookSheet) ([]byte, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title, subtitle string) ([]byte, error)
}

// ExportFile is a rendered download. Nothing is persisted.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportService renders attendance aggregates into workbooks and reports.
type ExportService struct {
	stats   statsAggregator
	xlsx    workbookRenderer
	csv     csvRenderer
	pdf     pdfRenderer
	metrics *MetricsService
	logger  *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers default to the pkg/export implementations.
func NewExportService(stats statsAggregator, metrics *MetricsService, logger *zap.Logger, xlsx workbookRenderer, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if xlsx == nil {
		xlsx = export.NewXLSXExporter()
	}
	if csv == nil {
		csv = export.NewCSVExporter(true)
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{stats: stats, xlsx: xlsx, csv: csv, pdf: pdf, metrics: metrics, logger: logger}
}

// Workbook renders one worksheet per batch.
func (s *ExportService) Workbook(ctx context.Context, principal *models.Principal, q StatsQuery) (*ExportFile, error) {
	started := time.Now()
	result, err := s.stats.Aggregate(ctx, principal, q)
	if err != nil {
		return nil, err
	}

	body, err := s.xlsx.Render(BuildWorkbookSheets(result))
	s.metrics.ObserveExport(FormatXLSX, len(body), time.Since(started), err)
	if err != nil {
		s.logger.Error("failed to render workbook", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate workbook")
	}

	file := &ExportFile{
		Filename:    ExportFilename(principal, q, result, FormatXLSX),
		ContentType: export.XLSXContentType,
		Body:        body,
	}
	s.logger.Info("attendance workbook exported",
		zap.String("actor_id", principal.AdminID),
		zap.Int("batches", len(result)),
		zap.String("range", q.Range.String()),
		zap.Int("bytes", len(body)))
	return file, nil
}

// Report renders the summary columns as CSV or PDF.
func (s *ExportService) Report(ctx context.Context, principal *models.Principal, q StatsQuery, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatCSV
	}
	if format != FormatCSV && format != FormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported report format %q", format))
	}

	started := time.Now()
	result, err := s.stats.Aggregate(ctx, principal, q)
	if err != nil {
		return nil, err
	}
	dataset := BuildReportDataset(result)

	var (
		body        []byte
		contentType string
	)
	switch format {
	case FormatPDF:
		body, err = s.pdf.Render(dataset, "Attendance Report", reportSubtitle(q))
		contentType = export.PDFContentType
	default:
		body, err = s.csv.Render(dataset)
		contentType = export.CSVContentType
	}
	s.metrics.ObserveExport(format, len(body), time.Since(started), err)
	if err != nil {
		s.logger.Error("failed to render report", zap.String("format", format), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate report")
	}

	return &ExportFile{
		Filename:    ExportFilename(principal, q, result, format),
		ContentType: contentType,
		Body:        body,
	}, nil
}

// BuildWorkbookSheets converts aggregates into exporter input, one sheet per batch.
func BuildWorkbookSheets(result []models.BatchAttendanceStats) []export.WorkbookSheet {
	sheets := make([]export.WorkbookSheet, 0, len(result))
	for _, batch := range result {
		sheet := export.WorkbookSheet{
			Name:       batch.BatchName,
			Batch:      batch.BatchName,
			Department: batch.DepartmentName,
			Dates:      batch.Dates,
			Rows:       make([]export.WorkbookRow, 0, len(batch.Students)),
		}
		for _, stat := range batch.Students {
			row := export.WorkbookRow{
				RegNo:    stat.RegNo,
				Name:     stat.Name,
				Sessions: make(map[string]export.SessionCells, len(batch.Dates)),
				Summary: export.WorkbookSummary{
					TotalClasses: stat.TotalClasses,
					Present:      stat.Present,
					Absent:       stat.Absent,
					OnDuty:       stat.OnDuty,
					Late:         stat.Late,
					SickLeave:    stat.SickLeave,
					Percentage:   stat.PercentageLabel,
				},
			}
			for date, cells := range batch.Sessions[stat.RegNo] {
				row.Sessions[date] = export.SessionCells{FN: cells.FN, AN: cells.AN}
			}
			sheet.Rows = append(sheet.Rows, row)
		}
		sheets = append(sheets, sheet)
	}
	return sheets
}

// BuildReportDataset flattens aggregates into the summary report table.
func BuildReportDataset(result []models.BatchAttendanceStats) export.Dataset {
	data := export.Dataset{Headers: reportHeaders}
	for _, batch := range result {
		for _, stat := range batch.Students {
			data.Rows = append(data.Rows, map[string]string{
				"Batch":         batch.BatchName,
				"Department":    batch.DepartmentName,
				"Reg No":        stat.RegNo,
				"Name":          stat.Name,
				"Total Classes": strconv.Itoa(stat.TotalClasses),
				"Present":       strconv.Itoa(stat.Present),
				"Absent":        strconv.Itoa(stat.Absent),
				"On-Duty":       strconv.Itoa(stat.OnDuty),
				"Late":          strconv.Itoa(stat.Late),
				"Sick-Leave":    strconv.Itoa(stat.SickLeave),
				"Attendance %":  stat.PercentageLabel,
			})
		}
	}
	return data
}

func reportSubtitle(q StatsQuery) string {
	if q.Range.All {
		return "All dates"
	}
	if q.Range.Start.IsZero() {
		return ""
	}
	return istdate.FormatDisplay(q.Range.Start) + " - " + istdate.FormatDisplay(q.Range.End)
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func sanitizeFilename(raw string) string {
	cleaned := strings.Trim(unsafeFilenameChars.ReplaceAllString(raw, "-"), "-.")
	if cleaned == "" {
		return "na"
	}
	if len(cleaned) > 60 {
		cleaned = cleaned[:60]
	}
	return cleaned
}

// ExportFilename builds attendance_<role>_<actorId>[_batch-<name>][_year-<years>].<ext>.
// The batch part is added when the request named exactly one batch.
func ExportFilename(principal *models.Principal, q StatsQuery, result []models.BatchAttendanceStats, ext string) string {
	role, actor := "anonymous", "na"
	if principal != nil {
		role = strings.ToLower(string(principal.Role))
		actor = principal.AdminID
	}
	parts := []string{"attendance", sanitizeFilename(role), sanitizeFilename(actor)}
	if len(q.BatchIDs) == 1 && len(result) == 1 {
		parts = append(parts, "batch-"+sanitizeFilename(result[0].BatchName))
	}
	if len(q.Years) > 0 {
		years := make([]string, len(q.Years))
		for i, y := range q.Years {
			years[i] = strconv.Itoa(y)
		}
		parts = append(parts, "year-"+strings.Join(years, "-"))
	}
	return strings.Join(parts, "_") + "." + ext
}
