package importer

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

const headerRows = 1

// Columns are matched by header name, so their order in the sheet is free.
const (
	colName          = "name"
	colURL           = "url"
	colType          = "type"
	colPriority      = "priority"
	colAutoCrawl     = "auto_crawl"
	colCrawlSchedule = "crawl_schedule"
	colStatus        = "status"
)

var errEmptyWorkbook = errors.New("workbook has no sheets")

// ParseExcel reads sources from the first sheet of an XLSX workbook. Row 1
// is the header and must name at least the name and url columns.
func ParseExcel(r io.Reader) ([]SourceRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errEmptyWorkbook
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %s has no header row", sheets[0])
	}

	columns := headerIndex(rows[0])
	for _, required := range []string{colName, colURL} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("missing %q column in header", required)
		}
	}

	out := make([]SourceRow, 0, len(rows)-headerRows)
	for i, cells := range rows[headerRows:] {
		if blankRow(cells) {
			continue
		}
		out = append(out, parseExcelRow(i+headerRows+1, cells, columns))
	}
	return out, nil
}

func headerIndex(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		key = strings.ReplaceAll(key, " ", "_")
		if _, dup := columns[key]; !dup && key != "" {
			columns[key] = i
		}
	}
	return columns
}

func parseExcelRow(rowNum int, cells []string, columns map[string]int) SourceRow {
	cell := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(cells) {
			return ""
		}
		return strings.TrimSpace(cells[idx])
	}

	row := SourceRow{
		Row:           rowNum,
		Name:          cell(colName),
		URL:           cell(colURL),
		Type:          cell(colType),
		CrawlSchedule: cell(colCrawlSchedule),
		Status:        cell(colStatus),
	}

	priority, err := parseInt(cell(colPriority))
	if err != nil {
		row.problem = "priority: " + err.Error()
		return row
	}
	row.Priority = priority

	autoCrawl, err := parseBool(cell(colAutoCrawl))
	if err != nil {
		row.problem = "auto_crawl: " + err.Error()
		return row
	}
	row.AutoCrawl = autoCrawl
	return row
}

func blankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
