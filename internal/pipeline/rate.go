package pipeline

import (
	"math"
	"time"

	"github.com/headline-goat/trendline/internal/dataset"
)

// RateDetail holds the counts behind one variation's point and the derived
// conversion percentage.
type RateDetail struct {
	Visits      int     `json:"visits" msgpack:"visits"`
	Conversions int     `json:"conversions" msgpack:"conversions"`
	Rate        float64 `json:"rate" msgpack:"rate"`
}

// Bucket is one x-axis point: a single day or an aggregated week.
// A nil entry in Rates means the variation has no data in the bucket.
type Bucket struct {
	Key   string                 `json:"key" msgpack:"key"`
	Start time.Time              `json:"start" msgpack:"start"`
	End   time.Time              `json:"end" msgpack:"end"`
	Days  int                    `json:"days" msgpack:"days"`
	Rates map[string]*RateDetail `json:"rates" msgpack:"rates"`
}

// RateOf returns the named variation's rate and whether it is present.
func (b Bucket) RateOf(name string) (float64, bool) {
	d := b.Rates[name]
	if d == nil {
		return 0, false
	}
	return d.Rate, true
}

// Rate returns conversions/visits as a percentage rounded to 2 decimals,
// half away from zero on integer hundredths (201/20000 is 1.01). Zero visits
// is a zero rate.
// Conversions above visits are not clamped.
func Rate(visits, conversions int) float64 {
	if visits == 0 {
		return 0
	}
	num, den := abs(conversions)*10000, abs(visits)
	q := (2*num + den) / (2 * den)
	if (conversions < 0) != (visits < 0) {
		q = -q
	}
	return float64(q) / 100
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// round2 rounds half away from zero.
func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// CalculateDay converts one record into a day bucket keyed by variation name.
func CalculateDay(rec dataset.DailyRecord, variations []dataset.Variation) Bucket {
	rates := make(map[string]*RateDetail, len(variations))
	for _, v := range variations {
		visits, ok := rec.VisitsFor(v.Key())
		if !ok {
			rates[v.Name] = nil
			continue
		}
		conv := rec.ConversionsFor(v.Key())
		rates[v.Name] = &RateDetail{
			Visits:      visits,
			Conversions: conv,
			Rate:        Rate(visits, conv),
		}
	}
	return Bucket{
		Key:   rec.Date.Format(dataset.DateLayout),
		Start: rec.Date,
		End:   rec.Date,
		Days:  1,
		Rates: rates,
	}
}

// CalculateDays maps every record of ds through CalculateDay.
func CalculateDays(ds *dataset.Dataset) []Bucket {
	points := make([]Bucket, len(ds.Days))
	for i, rec := range ds.Days {
		points[i] = CalculateDay(rec, ds.Variations)
	}
	return points
}
