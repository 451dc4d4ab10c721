package dataset_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/headline-goat/trendline/internal/dataset"
)

const sample = `{
  "variations": [
    {"name": "Original"},
    {"id": 1, "name": "Variation A"}
  ],
  "days": [
    {"date": "2024-01-03", "visits": {"0": 100, "1": 90}, "conversions": {"0": 10, "1": 12}},
    {"date": "2024-01-04T00:00:00Z", "visits": {"0": 80}},
    {"date": "2024-01-05", "visits": {"0": 5, "1": 4}, "conversions": {"1": 9}}
  ]
}`

func TestParse(t *testing.T) {
	ds, err := dataset.Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}

	if len(ds.Variations) != 2 || len(ds.Days) != 3 {
		t.Fatalf("expected 2 variations and 3 days, got %d and %d", len(ds.Variations), len(ds.Days))
	}
	if got := ds.Variations[0].Key(); got != "0" {
		t.Errorf("baseline key = %q, want \"0\"", got)
	}
	if got := ds.Variations[1].Key(); got != "1" {
		t.Errorf("variation key = %q, want \"1\"", got)
	}

	if _, ok := ds.Days[1].VisitsFor("1"); ok {
		t.Error("expected variation 1 to be absent on day 2")
	}
	if ds.Days[1].Conversions == nil {
		t.Error("expected missing conversions to decode as an empty map")
	}
	if got := ds.Days[1].Date.Format(dataset.DateLayout); got != "2024-01-04" {
		t.Errorf("RFC3339 date parsed as %s", got)
	}
}

func TestParse_Anomalies(t *testing.T) {
	ds, err := dataset.Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}

	anomalies := ds.Anomalies()
	if len(anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(anomalies))
	}
	if anomalies[0].Variation != "Variation A" || anomalies[0].Conversions != 9 || anomalies[0].Visits != 4 {
		t.Errorf("unexpected anomaly: %+v", anomalies[0])
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		json string
		want error
	}{
		{
			name: "bad date",
			json: `{"variations":[{"name":"O"}],"days":[{"date":"yesterday","visits":{}}]}`,
			want: dataset.ErrInvalidDate,
		},
		{
			name: "empty name",
			json: `{"variations":[{"name":"  "}],"days":[]}`,
			want: dataset.ErrInvalidVariation,
		},
		{
			name: "duplicate name",
			json: `{"variations":[{"name":"O"},{"id":1,"name":"O"}],"days":[]}`,
			want: dataset.ErrDuplicateVariation,
		},
		{
			name: "duplicate key",
			json: `{"variations":[{"name":"O"},{"id":0,"name":"P"}],"days":[]}`,
			want: dataset.ErrDuplicateVariation,
		},
		{
			name: "duplicate date",
			json: `{"variations":[{"name":"O"}],"days":[{"date":"2024-01-03"},{"date":"2024-01-03"}]}`,
			want: dataset.ErrUnsortedDays,
		},
		{
			name: "descending dates",
			json: `{"variations":[{"name":"O"}],"days":[{"date":"2024-01-04"},{"date":"2024-01-03"}]}`,
			want: dataset.ErrUnsortedDays,
		},
		{
			name: "negative visits",
			json: `{"variations":[{"name":"O"}],"days":[{"date":"2024-01-03","visits":{"0":-1}}]}`,
			want: dataset.ErrNegativeCount,
		},
		{
			name: "no variations",
			json: `{"variations":[],"days":[]}`,
			want: dataset.ErrEmptyDataset,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dataset.Parse(strings.NewReader(tt.json))
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestParse_MalformedJSON(t *testing.T) {
	if _, err := dataset.Parse(strings.NewReader(`{"variations":`)); err == nil {
		t.Error("expected error for truncated JSON")
	}
}

func TestWorkbook_RoundTrip(t *testing.T) {
	ds, err := dataset.Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}

	var buf bytes.Buffer
	if err := ds.WriteWorkbook(&buf); err != nil {
		t.Fatalf("failed to write workbook: %v", err)
	}

	got, err := dataset.ParseWorkbook(&buf)
	if err != nil {
		t.Fatalf("failed to read workbook: %v", err)
	}

	if len(got.Variations) != 2 || got.Variations[0].ID != nil || *got.Variations[1].ID != 1 {
		t.Errorf("unexpected variations: %+v", got.Variations)
	}
	if len(got.Days) != 3 {
		t.Fatalf("expected 3 days, got %d", len(got.Days))
	}
	if _, ok := got.Days[1].VisitsFor("1"); ok {
		t.Error("expected absent variation to stay absent")
	}
	if got.Days[2].ConversionsFor("0") != 0 || got.Days[2].ConversionsFor("1") != 9 {
		t.Errorf("unexpected conversions on day 3: %v", got.Days[2].Conversions)
	}
	if v, _ := got.Days[0].VisitsFor("1"); v != 90 {
		t.Errorf("expected 90 visits, got %d", v)
	}
}

// workbook builds an xlsx with the given days rows under a header.
func workbook(t *testing.T, days [][]interface{}) *bytes.Buffer {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", dataset.VariationsSheet); err != nil {
		t.Fatalf("failed to name sheet: %v", err)
	}
	if _, err := f.NewSheet(dataset.DaysSheet); err != nil {
		t.Fatalf("failed to create sheet: %v", err)
	}
	f.SetSheetRow(dataset.VariationsSheet, "A1", &[]interface{}{"id", "name"})
	f.SetSheetRow(dataset.VariationsSheet, "A2", &[]interface{}{"", "Original"})
	f.SetSheetRow(dataset.DaysSheet, "A1", &[]interface{}{"date", "variation", "visits", "conversions"})
	for i, row := range days {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		f.SetSheetRow(dataset.DaysSheet, cell, &row)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("failed to write workbook: %v", err)
	}
	return &buf
}

func TestParseWorkbook_DuplicateRecord(t *testing.T) {
	tests := []struct {
		name string
		days [][]interface{}
	}{
		{"same key twice", [][]interface{}{
			{"2024-01-03", "0", 100, 10},
			{"2024-01-03", "0", 5, 5},
		}},
		{"blank key is the baseline", [][]interface{}{
			{"2024-01-03", "", 100, 10},
			{"2024-01-03", "0", 100},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dataset.ParseWorkbook(workbook(t, tt.days))
			if !errors.Is(err, dataset.ErrDuplicateRecord) {
				t.Errorf("expected %v, got %v", dataset.ErrDuplicateRecord, err)
			}
		})
	}
}

func TestParseWorkbook_OneRowPerVariation(t *testing.T) {
	ds, err := dataset.ParseWorkbook(workbook(t, [][]interface{}{
		{"2024-01-03", "0", 100, 10},
		{"2024-01-04", "0", 50},
	}))
	if err != nil {
		t.Fatalf("failed to read workbook: %v", err)
	}
	if len(ds.Days) != 2 {
		t.Fatalf("expected 2 days, got %d", len(ds.Days))
	}
	if v, _ := ds.Days[0].VisitsFor("0"); v != 100 || ds.Days[0].ConversionsFor("0") != 10 {
		t.Errorf("unexpected first day: %+v", ds.Days[0])
	}
	if ds.Days[1].ConversionsFor("0") != 0 {
		t.Errorf("expected empty conversions cell to read as zero, got %d", ds.Days[1].ConversionsFor("0"))
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "experiment.json")
	if err := os.WriteFile(jsonPath, []byte(sample), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	ds, err := dataset.LoadFile(jsonPath)
	if err != nil {
		t.Fatalf("failed to load json: %v", err)
	}

	xlsxPath := filepath.Join(dir, "experiment.xlsx")
	f, err := os.Create(xlsxPath)
	if err != nil {
		t.Fatalf("failed to create xlsx: %v", err)
	}
	if err := ds.WriteWorkbook(f); err != nil {
		t.Fatalf("failed to write xlsx: %v", err)
	}
	f.Close()

	fromXLSX, err := dataset.LoadFile(xlsxPath)
	if err != nil {
		t.Fatalf("failed to load xlsx: %v", err)
	}
	if len(fromXLSX.Days) != len(ds.Days) {
		t.Errorf("expected %d days from xlsx, got %d", len(ds.Days), len(fromXLSX.Days))
	}

	if _, err := dataset.LoadFile(filepath.Join(dir, "experiment.csv")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestMarshalJSON_RoundTrip(t *testing.T) {
	ds, err := dataset.Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}

	data, err := ds.MarshalJSON()
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	again, err := dataset.Parse(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to reparse: %v", err)
	}
	if again.Days[2].Date != ds.Days[2].Date {
		t.Errorf("date changed across round trip: %v vs %v", again.Days[2].Date, ds.Days[2].Date)
	}
}

func TestDatasetHelpers(t *testing.T) {
	ds, err := dataset.Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}

	if got := ds.IndexOf("Variation A"); got != 1 {
		t.Errorf("IndexOf = %d, want 1", got)
	}
	if got := ds.IndexOf("missing"); got != -1 {
		t.Errorf("IndexOf(missing) = %d, want -1", got)
	}
	first, last := ds.Span()
	if first.Format(dataset.DateLayout) != "2024-01-03" || last.Format(dataset.DateLayout) != "2024-01-05" {
		t.Errorf("unexpected span %v - %v", first, last)
	}
}

func TestLoadFile_Testdata(t *testing.T) {
	ds, err := dataset.LoadFile(filepath.Join("testdata", "experiment.json"))
	if err != nil {
		t.Fatalf("failed to load testdata: %v", err)
	}

	if got := ds.Names(); len(got) != 3 || got[2] != "Build Better" {
		t.Errorf("unexpected variations: %v", got)
	}
	if len(ds.Days) != 8 {
		t.Errorf("expected 8 days, got %d", len(ds.Days))
	}
	if _, ok := ds.Days[2].VisitsFor("2"); ok {
		t.Error("expected Build Better to be absent on 2024-01-05")
	}
	if len(ds.Anomalies()) != 0 {
		t.Errorf("expected no anomalies, got %v", ds.Anomalies())
	}
}
