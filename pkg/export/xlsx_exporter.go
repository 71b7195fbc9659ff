package export

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// XLSXContentType is the MIME type of generated workbooks.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	maxSheetNameLength = 31
	defaultSheetName   = "Attendance"
	invalidSheetChars  = `/?*:[]\`
)

// Fixed column groups of the attendance workbook. Two session columns per
// date sit between identity and summary.
var (
	IdentityHeaders = []string{"Batch", "Department", "Reg No", "Name"}
	SummaryHeaders  = []string{"Total Classes", "Present", "Absent", "On-Duty", "Late", "Sick-Leave", "Attendance %"}
)

// SessionCells holds the raw status strings recorded for one date.
type SessionCells struct {
	FN string
	AN string
}

// WorkbookSummary carries the computed counters of one student.
type WorkbookSummary struct {
	TotalClasses int
	Present      int
	Absent       int
	OnDuty       int
	Late         int
	SickLeave    int
	Percentage   string
}

// WorkbookRow is one student line.
type WorkbookRow struct {
	RegNo    string
	Name     string
	Sessions map[string]SessionCells
	Summary  WorkbookSummary
}

// WorkbookSheet is the content of one batch worksheet. Dates lists only the
// calendar days that have records for this batch, ascending.
type WorkbookSheet struct {
	Name       string
	Batch      string
	Department string
	Dates      []string
	Rows       []WorkbookRow
}

// ColumnCount returns the number of columns of a sheet with the given number of dates.
func ColumnCount(dates int) int {
	return len(IdentityHeaders) + 2*dates + len(SummaryHeaders)
}

// Headers returns the ordered header row for the provided dates.
func Headers(dates []string) []string {
	headers := make([]string, 0, ColumnCount(len(dates)))
	headers = append(headers, IdentityHeaders...)
	for _, date := range dates {
		headers = append(headers, date+" FN", date+" AN")
	}
	return append(headers, SummaryHeaders...)
}

// XLSXExporter renders attendance sheets into an OOXML workbook.
type XLSXExporter struct{}

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// Render builds the whole workbook in memory. Any cell error aborts the export.
func (e *XLSXExporter) Render(sheets []WorkbookSheet) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	defaultSheet := f.GetSheetName(0)
	if len(sheets) == 0 {
		if err := f.SetSheetName(defaultSheet, defaultSheetName); err != nil {
			return nil, fmt.Errorf("rename default sheet: %w", err)
		}
		if err := writeHeader(f, defaultSheetName, nil, headerStyle); err != nil {
			return nil, err
		}
		return write(f)
	}

	names := SheetNames(sheets)
	for i, sheet := range sheets {
		name := names[i]
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, name); err != nil {
				return nil, fmt.Errorf("rename sheet %q: %w", name, err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %q: %w", name, err)
		}
		if err := writeSheet(f, name, sheet, headerStyle); err != nil {
			return nil, err
		}
	}
	f.SetActiveSheet(0)

	return write(f)
}

func writeSheet(f *excelize.File, name string, sheet WorkbookSheet, headerStyle int) error {
	if err := writeHeader(f, name, sheet.Dates, headerStyle); err != nil {
		return err
	}

	for i, row := range sheet.Rows {
		values := make([]interface{}, 0, ColumnCount(len(sheet.Dates)))
		values = append(values, sheet.Batch, sheet.Department, row.RegNo, row.Name)
		for _, date := range sheet.Dates {
			cells := row.Sessions[date]
			values = append(values, cells.FN, cells.AN)
		}
		s := row.Summary
		percentage := s.Percentage
		if percentage == "" {
			percentage = "0.00%"
		}
		values = append(values, s.TotalClasses, s.Present, s.Absent, s.OnDuty, s.Late, s.SickLeave, percentage)

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("resolve row %d of %q: %w", i+2, name, err)
		}
		if err := f.SetSheetRow(name, cell, &values); err != nil {
			return fmt.Errorf("write row %d of %q: %w", i+2, name, err)
		}
	}

	return nil
}

func writeHeader(f *excelize.File, name string, dates []string, style int) error {
	headers := Headers(dates)
	values := make([]interface{}, len(headers))
	for i, h := range headers {
		values[i] = h
	}
	if err := f.SetSheetRow(name, "A1", &values); err != nil {
		return fmt.Errorf("write header of %q: %w", name, err)
	}

	lastCol, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return fmt.Errorf("resolve last column of %q: %w", name, err)
	}
	if err := f.SetCellStyle(name, "A1", lastCol+"1", style); err != nil {
		return fmt.Errorf("style header of %q: %w", name, err)
	}

	if err := f.SetColWidth(name, "A", "B", 18); err != nil {
		return fmt.Errorf("set width of %q: %w", name, err)
	}
	if err := f.SetColWidth(name, "C", "C", 16); err != nil {
		return fmt.Errorf("set width of %q: %w", name, err)
	}
	if err := f.SetColWidth(name, "D", "D", 28); err != nil {
		return fmt.Errorf("set width of %q: %w", name, err)
	}
	if len(dates) > 0 {
		first, _ := excelize.ColumnNumberToName(len(IdentityHeaders) + 1)
		last, _ := excelize.ColumnNumberToName(len(IdentityHeaders) + 2*len(dates))
		if err := f.SetColWidth(name, first, last, 14); err != nil {
			return fmt.Errorf("set width of %q: %w", name, err)
		}
	}

	return f.SetPanes(name, &excelize.Panes{
		Freeze:      true,
		XSplit:      len(IdentityHeaders),
		YSplit:      1,
		TopLeftCell: "E2",
		ActivePane:  "bottomRight",
	})
}

func write(f *excelize.File) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// SanitizeSheetName strips characters Excel rejects, truncates to 31 runes and
// falls back to "Batch <index+1>" when nothing printable is left.
func SanitizeSheetName(name string, index int) string {
	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune(invalidSheetChars, r) {
			return -1
		}
		return r
	}, name)
	cleaned = truncateRunes(strings.TrimSpace(cleaned), maxSheetNameLength)
	cleaned = strings.TrimSpace(strings.Trim(cleaned, "'"))
	if cleaned == "" {
		return "Batch " + strconv.Itoa(index+1)
	}
	return cleaned
}

// SheetNames sanitizes every sheet name and de-duplicates them case-insensitively.
func SheetNames(sheets []WorkbookSheet) []string {
	names := make([]string, len(sheets))
	seen := make(map[string]struct{}, len(sheets))
	for i, sheet := range sheets {
		base := SanitizeSheetName(sheet.Name, i)
		name := base
		for n := 2; ; n++ {
			if _, taken := seen[strings.ToLower(name)]; !taken {
				break
			}
			suffix := fmt.Sprintf(" (%d)", n)
			name = truncateRunes(base, maxSheetNameLength-utf8.RuneCountInString(suffix)) + suffix
		}
		seen[strings.ToLower(name)] = struct{}{}
		names[i] = name
	}
	return names
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
