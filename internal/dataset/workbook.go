package dataset

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Workbook sheet names.
const (
	VariationsSheet = "variations"
	DaysSheet       = "days"
)

// ParseWorkbook reads a spreadsheet export. The variations sheet has columns
// id,name (empty id = baseline). The days sheet is long form:
// date,variation,visits,conversions, one row per variation per day. A missing
// row means no exposure that day; an empty conversions cell means zero.
// Two rows for the same date and variation are rejected.
func ParseWorkbook(r io.Reader) (*Dataset, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	varRows, err := f.GetRows(VariationsSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s sheet: %w", VariationsSheet, err)
	}

	ds := &Dataset{}
	for i, row := range skipHeader(varRows) {
		if len(row) < 2 {
			return nil, fmt.Errorf("%s row %d: expected id,name", VariationsSheet, i+2)
		}
		v := Variation{Name: strings.TrimSpace(row[1])}
		if idStr := strings.TrimSpace(row[0]); idStr != "" {
			id, err := strconv.Atoi(idStr)
			if err != nil {
				return nil, fmt.Errorf("%s row %d: invalid id %q", VariationsSheet, i+2, idStr)
			}
			v.ID = &id
		}
		ds.Variations = append(ds.Variations, v)
	}

	dayRows, err := f.GetRows(DaysSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s sheet: %w", DaysSheet, err)
	}

	index := make(map[string]int)
	seen := make(map[[2]string]int)
	for i, row := range skipHeader(dayRows) {
		if len(row) < 3 {
			return nil, fmt.Errorf("%s row %d: expected date,variation,visits[,conversions]", DaysSheet, i+2)
		}
		date, err := workbookDate(row[0])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", DaysSheet, i+2, err)
		}
		key := strings.TrimSpace(row[1])
		if key == "" {
			key = BaselineKey
		}
		visits, err := strconv.Atoi(strings.TrimSpace(row[2]))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: invalid visits %q", DaysSheet, i+2, row[2])
		}

		dateKey := date.Format(DateLayout)
		if first, dup := seen[[2]string{dateKey, key}]; dup {
			return nil, fmt.Errorf("%s row %d: %w: %s variation %s already given on row %d",
				DaysSheet, i+2, ErrDuplicateRecord, dateKey, key, first)
		}
		seen[[2]string{dateKey, key}] = i + 2

		pos, ok := index[dateKey]
		if !ok {
			ds.Days = append(ds.Days, DailyRecord{
				Date:        date,
				Visits:      map[string]int{},
				Conversions: map[string]int{},
			})
			pos = len(ds.Days) - 1
			index[dateKey] = pos
		}
		ds.Days[pos].Visits[key] = visits

		if len(row) > 3 && strings.TrimSpace(row[3]) != "" {
			conv, err := strconv.Atoi(strings.TrimSpace(row[3]))
			if err != nil {
				return nil, fmt.Errorf("%s row %d: invalid conversions %q", DaysSheet, i+2, row[3])
			}
			ds.Days[pos].Conversions[key] = conv
		}
	}

	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

// WriteWorkbook writes the dataset in the layout ParseWorkbook reads.
func (d *Dataset) WriteWorkbook(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", VariationsSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if _, err := f.NewSheet(DaysSheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	if err := f.SetSheetRow(VariationsSheet, "A1", &[]interface{}{"id", "name"}); err != nil {
		return err
	}
	for i, v := range d.Variations {
		id := ""
		if v.ID != nil {
			id = strconv.Itoa(*v.ID)
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(VariationsSheet, cell, &[]interface{}{id, v.Name}); err != nil {
			return err
		}
	}

	if err := f.SetSheetRow(DaysSheet, "A1", &[]interface{}{"date", "variation", "visits", "conversions"}); err != nil {
		return err
	}
	row := 2
	for _, day := range d.Days {
		for _, v := range d.Variations {
			visits, ok := day.VisitsFor(v.Key())
			if !ok {
				continue
			}
			values := []interface{}{day.Date.Format(DateLayout), v.Key(), visits}
			if conv, ok := day.Conversions[v.Key()]; ok {
				values = append(values, conv)
			}
			cell, _ := excelize.CoordinatesToCellName(1, row)
			if err := f.SetSheetRow(DaysSheet, cell, &values); err != nil {
				return err
			}
			row++
		}
	}

	return f.Write(w)
}

// workbookDate accepts text dates and Excel serial dates.
func workbookDate(cell string) (date time.Time, err error) {
	if date, err = ParseDate(cell); err == nil {
		return date, nil
	}
	serial, convErr := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if convErr != nil {
		return time.Time{}, err
	}
	t, convErr := excelize.ExcelDateToTime(serial, false)
	if convErr != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

func skipHeader(rows [][]string) [][]string {
	if len(rows) == 0 {
		return nil
	}
	return rows[1:]
}
