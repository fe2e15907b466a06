package importer_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
	"github.com/jonesrussell/north-cloud/curator/internal/importer"
	"github.com/jonesrussell/north-cloud/curator/internal/logger"
)

type fakeUpserter struct {
	got []*domain.Source
	err error
}

func (f *fakeUpserter) UpsertByURL(_ context.Context, sources []*domain.Source) (int, int, error) {
	if f.err != nil {
		return 0, 0, f.err
	}
	f.got = append(f.got, sources...)
	return len(sources), 0, nil
}

// createTestExcel creates an in-memory workbook with the given header and rows.
func createTestExcel(t *testing.T, header []string, rows [][]string) *bytes.Reader {
	t.Helper()

	f := excelize.NewFile()
	sheetName := "Sheet1"

	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			t.Fatalf("failed to set header cell: %v", err)
		}
	}
	for rowIdx, row := range rows {
		for colIdx, val := range row {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err := f.SetCellValue(sheetName, cell, val); err != nil {
				t.Fatalf("failed to set cell: %v", err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("failed to write workbook: %v", err)
	}
	return bytes.NewReader(buf.Bytes())
}

func TestParseExcel(t *testing.T) {
	header := []string{"URL", "Name", "Priority", "Auto Crawl", "crawl_schedule"}
	reader := createTestExcel(t, header, [][]string{
		{"https://example.edu/biology", "Open Biology", "5", "yes", "0 3 * * *"},
		{"", "", "", "", ""},
		{"https://example.edu/maths", "Maths Notes", "x", "no", ""},
	})

	rows, err := importer.ParseExcel(reader)
	if err != nil {
		t.Fatalf("ParseExcel() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("ParseExcel() got %d rows, want 2", len(rows))
	}

	first := rows[0]
	if first.Row != 2 || first.Name != "Open Biology" || first.Priority != 5 || !first.AutoCrawl {
		t.Errorf("unexpected first row: %+v", first)
	}
	if rows[1].Row != 4 {
		t.Errorf("blank rows must keep sheet numbering, got row %d", rows[1].Row)
	}

	sources, errs := importer.Validate(rows)
	if len(sources) != 1 {
		t.Errorf("Validate() got %d sources, want 1", len(sources))
	}
	if len(errs) != 1 || errs[0].Row != 4 || !strings.Contains(errs[0].Error, "priority") {
		t.Errorf("Validate() errors = %+v", errs)
	}
}

func TestParseExcel_MissingColumn(t *testing.T) {
	reader := createTestExcel(t, []string{"name", "priority"}, nil)

	_, err := importer.ParseExcel(reader)
	if err == nil || !strings.Contains(err.Error(), `"url"`) {
		t.Errorf("ParseExcel() error = %v, want missing url column", err)
	}
}

func TestParseYAML(t *testing.T) {
	doc := `sources:
  - name: Open Biology
    url: https://example.edu/biology
    type: university
    auto_crawl: true
  - name: Broken
    url: https://example.edu/broken
    priority: high
`
	rows, err := importer.ParseYAML(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ParseYAML() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("ParseYAML() got %d rows, want 2", len(rows))
	}
	if rows[0].Row != 2 || rows[1].Row != 6 {
		t.Errorf("row numbers = %d, %d; want 2, 6", rows[0].Row, rows[1].Row)
	}

	sources, errs := importer.Validate(rows)
	if len(sources) != 1 || sources[0].Type != domain.SourceTypeUniversity {
		t.Errorf("Validate() sources = %+v", sources)
	}
	if len(errs) != 1 || errs[0].Row != 6 {
		t.Errorf("Validate() errors = %+v", errs)
	}
}

func TestParseYAML_Empty(t *testing.T) {
	rows, err := importer.ParseYAML(strings.NewReader(""))
	if err != nil {
		t.Fatalf("ParseYAML() error = %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("ParseYAML() got %d rows, want 0", len(rows))
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		row     importer.SourceRow
		wantErr string
	}{
		{"valid", importer.SourceRow{Name: "A", URL: "https://a.example"}, ""},
		{"missing name", importer.SourceRow{URL: "https://a.example"}, "name"},
		{"relative url", importer.SourceRow{Name: "A", URL: "/docs"}, "url"},
		{"ftp url", importer.SourceRow{Name: "A", URL: "ftp://a.example"}, "url"},
		{"unknown type", importer.SourceRow{Name: "A", URL: "https://a.example", Type: "blog"}, "type"},
		{"bad schedule", importer.SourceRow{Name: "A", URL: "https://a.example", CrawlSchedule: "often"}, "crawl_schedule"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.row.Row = 2
			_, errs := importer.Validate([]importer.SourceRow{tt.row})
			if tt.wantErr == "" {
				if len(errs) != 0 {
					t.Errorf("Validate() errors = %+v, want none", errs)
				}
				return
			}
			if len(errs) != 1 || !strings.Contains(errs[0].Error, tt.wantErr) {
				t.Errorf("Validate() errors = %+v, want one containing %q", errs, tt.wantErr)
			}
		})
	}
}

func TestValidate_DuplicateURL(t *testing.T) {
	rows := []importer.SourceRow{
		{Row: 2, Name: "First", URL: "https://a.example"},
		{Row: 3, Name: "Second", URL: "https://a.example"},
	}

	sources, errs := importer.Validate(rows)
	if len(sources) != 1 || sources[0].Name != "First" {
		t.Errorf("Validate() sources = %+v, want only the first", sources)
	}
	if len(errs) != 1 || !strings.Contains(errs[0].Error, "row 2") {
		t.Errorf("Validate() errors = %+v", errs)
	}
}

func TestImporter_Import(t *testing.T) {
	repo := &fakeUpserter{}
	imp := importer.New(repo, logger.NewNop())

	doc := "sources:\n  - name: A\n    url: https://a.example\n  - name: ''\n    url: https://b.example\n"
	result, err := imp.Import(context.Background(), "seeds.YML", strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if result.Created != 1 || len(result.Errors) != 1 {
		t.Errorf("Import() = %+v", result)
	}
	if len(repo.got) != 1 || repo.got[0].Status != domain.SourceStatusActive {
		t.Errorf("stored sources = %+v", repo.got)
	}
}

func TestImporter_ImportRejectsUnknownFormat(t *testing.T) {
	imp := importer.New(&fakeUpserter{}, logger.NewNop())

	_, err := imp.Import(context.Background(), "seeds.csv", strings.NewReader("name,url"))
	if !domain.IsValidation(err) {
		t.Errorf("Import() error = %v, want validation error", err)
	}
}

func TestImporter_ImportStoreError(t *testing.T) {
	imp := importer.New(&fakeUpserter{err: errors.New("db down")}, logger.NewNop())

	doc := "sources:\n  - name: A\n    url: https://a.example\n"
	_, err := imp.Import(context.Background(), "seeds.yaml", strings.NewReader(doc))
	if err == nil || !strings.Contains(err.Error(), "db down") {
		t.Errorf("Import() error = %v, want store error", err)
	}
}
