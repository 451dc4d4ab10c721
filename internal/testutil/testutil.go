package testutil

import (
	"testing"
	"time"

	"github.com/headline-goat/trendline/internal/dataset"
	"github.com/headline-goat/trendline/internal/store"
)

// SetupTestStore creates a test database and returns the store.
// Uses t.TempDir() for automatic cleanup on test completion.
func SetupTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := tmpDir + "/test.db"

	s, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})

	return s
}

// Counts is one variation's raw numbers for one day.
type Counts struct {
	Visits      int
	Conversions int
}

// C is shorthand for a present day entry.
func C(visits, conversions int) *Counts {
	return &Counts{Visits: visits, Conversions: conversions}
}

// ID returns a pointer for Variation.ID literals.
func ID(n int) *int {
	return &n
}

// Series builds a dataset of consecutive days starting at start (YYYY-MM-DD).
// counts is keyed by variation name; a nil entry leaves the variation absent
// from that day's visits. The number of days is the longest series.
func Series(t testing.TB, start string, variations []dataset.Variation, counts map[string][]*Counts) *dataset.Dataset {
	t.Helper()

	first, err := time.Parse(dataset.DateLayout, start)
	if err != nil {
		t.Fatalf("bad start date %q: %v", start, err)
	}

	n := 0
	for _, series := range counts {
		n = max(n, len(series))
	}

	ds := &dataset.Dataset{Variations: variations, Days: make([]dataset.DailyRecord, n)}
	for i := 0; i < n; i++ {
		rec := dataset.DailyRecord{
			Date:        first.AddDate(0, 0, i),
			Visits:      map[string]int{},
			Conversions: map[string]int{},
		}
		for _, v := range variations {
			series := counts[v.Name]
			if i >= len(series) || series[i] == nil {
				continue
			}
			rec.Visits[v.Key()] = series[i].Visits
			rec.Conversions[v.Key()] = series[i].Conversions
		}
		ds.Days[i] = rec
	}

	if err := ds.Validate(); err != nil {
		t.Fatalf("fixture dataset invalid: %v", err)
	}
	return ds
}

// TwoArm returns the variations of a baseline-vs-treatment experiment.
func TwoArm() []dataset.Variation {
	return []dataset.Variation{
		{Name: "Original"},
		{ID: ID(1), Name: "Variation A"},
	}
}
