package dataset

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type jsonDataset struct {
	Variations []Variation  `json:"variations"`
	Days       []jsonRecord `json:"days"`
}

type jsonRecord struct {
	Date        string         `json:"date"`
	Visits      map[string]int `json:"visits"`
	Conversions map[string]int `json:"conversions"`
}

// Parse decodes a JSON experiment export and validates it.
func Parse(r io.Reader) (*Dataset, error) {
	var raw jsonDataset
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode dataset: %w", err)
	}

	ds := &Dataset{
		Variations: raw.Variations,
		Days:       make([]DailyRecord, len(raw.Days)),
	}
	for i, rec := range raw.Days {
		date, err := ParseDate(rec.Date)
		if err != nil {
			return nil, fmt.Errorf("day %d: %w", i, err)
		}
		ds.Days[i] = DailyRecord{
			Date:        date,
			Visits:      nonNil(rec.Visits),
			Conversions: nonNil(rec.Conversions),
		}
	}

	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

// LoadFile reads a dataset from a .json or .xlsx file.
func LoadFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return Parse(f)
	case ".xlsx":
		return ParseWorkbook(f)
	default:
		return nil, fmt.Errorf("unsupported dataset format %q (use .json or .xlsx)", filepath.Ext(path))
	}
}

// MarshalJSON writes the dataset in the same shape Parse reads.
func (d *Dataset) MarshalJSON() ([]byte, error) {
	raw := jsonDataset{
		Variations: d.Variations,
		Days:       make([]jsonRecord, len(d.Days)),
	}
	for i, day := range d.Days {
		raw.Days[i] = jsonRecord{
			Date:        day.Date.Format(DateLayout),
			Visits:      day.Visits,
			Conversions: day.Conversions,
		}
	}
	return json.Marshal(raw)
}

func nonNil(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return m
}
