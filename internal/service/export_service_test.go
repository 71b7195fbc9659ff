package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/models"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
	"github.com/noah-isme/attendance-api/pkg/export"
)

type failingWorkbook struct{}

func (failingWorkbook) Render(sheets []export.WorkbookSheet) ([]byte, error) {
	return nil, errors.New("disk full")
}

func newExportFixture(t *testing.T) *ExportService {
	batches, roster, records := newStatsFixture(t)
	stats := NewAttendanceStatsService(batches, roster, records, nil, nil, nil, AttendanceStatsConfig{})
	return NewExportService(stats, NewMetricsService(), zap.NewNop(), nil, nil, nil)
}

func TestExportServiceWorkbook(t *testing.T) {
	svc := newExportFixture(t)
	admin := &models.Principal{AdminID: "root", Role: models.RoleSuperAdmin}

	file, err := svc.Workbook(context.Background(), admin, StatsQuery{BatchIDs: []string{"b1"}, Years: []int{2022}, Range: mustRange(t, "2024-03-01", "2024-03-02")})
	require.NoError(t, err)
	assert.Equal(t, export.XLSXContentType, file.ContentType)
	assert.Equal(t, "attendance_superadmin_root_batch-CSE-A_year-2022.xlsx", file.Filename)

	wb, err := excelize.OpenReader(bytes.NewReader(file.Body))
	require.NoError(t, err)
	defer wb.Close()

	assert.Equal(t, []string{"CSE-A"}, wb.GetSheetList())
	rows, err := wb.GetRows("CSE-A")
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Len(t, rows[0], export.ColumnCount(2))
	assert.Equal(t, "2024-03-01 FN", rows[0][4])
	assert.Equal(t, []string{"CSE-A", "Computer Science", "21CS002", "Bala", "On-Duty", "Sick-Leave", "holiday"}, rows[2][:7])
	assert.Equal(t, "50.00%", rows[2][len(rows[2])-1])
}

func TestExportServiceWorkbookRenderFailure(t *testing.T) {
	batches, roster, records := newStatsFixture(t)
	stats := NewAttendanceStatsService(batches, roster, records, nil, nil, nil, AttendanceStatsConfig{})
	svc := NewExportService(stats, nil, nil, failingWorkbook{}, nil, nil)

	_, err := svc.Workbook(context.Background(), superAdmin, StatsQuery{Range: mustRange(t, "2024-03-01", "2024-03-01")})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestExportServiceReportFormats(t *testing.T) {
	svc := newExportFixture(t)
	guest := &models.Principal{AdminID: "g1", Role: models.RoleGuest}
	q := StatsQuery{BatchIDs: []string{"b1", "b2"}, Range: mustRange(t, "2024-03-01", "2024-03-02")}

	csvFile, err := svc.Report(context.Background(), guest, q, "CSV")
	require.NoError(t, err)
	assert.Equal(t, export.CSVContentType, csvFile.ContentType)
	assert.Equal(t, "attendance_guest_g1.csv", csvFile.Filename)
	assert.Contains(t, string(csvFile.Body), "CSE-A,Computer Science,21CS001,Asha,3,1,1,0,1,0,66.67%")

	pdfFile, err := svc.Report(context.Background(), guest, q, "pdf")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdfFile.Body, []byte("%PDF-")))

	_, err = svc.Report(context.Background(), guest, q, "docx")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestBuildWorkbookSheetsLeavesMissingSessionsEmpty(t *testing.T) {
	sheets := BuildWorkbookSheets([]models.BatchAttendanceStats{{
		BatchName: "CSE-A",
		Dates:     []string{"2024-03-01"},
		Students:  []models.AttendanceStat{{RegNo: "21CS003", Name: "Chitra", PercentageLabel: "0.00%"}},
	}})
	require.Len(t, sheets, 1)
	assert.Equal(t, export.SessionCells{}, sheets[0].Rows[0].Sessions["2024-03-01"])
}

func TestExportFilenameSanitizes(t *testing.T) {
	name := ExportFilename(&models.Principal{AdminID: "a/1", Role: models.RoleAdmin},
		StatsQuery{BatchIDs: []string{"b1"}, Years: []int{2021, 2022}},
		[]models.BatchAttendanceStats{{BatchName: "CSE A: 2021"}}, FormatXLSX)
	assert.Equal(t, "attendance_admin_a-1_batch-CSE-A-2021_year-2021-2022.xlsx", name)
}
