package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/headline-goat/trendline/internal/dataset"
)

type ViewMode string

const (
	ViewDay  ViewMode = "day"
	ViewWeek ViewMode = "week"
)

var ErrInvalidViewMode = errors.New("invalid view mode")

// WeekLabelPrefix starts every week bucket key.
const WeekLabelPrefix = "Week of "

func ParseViewMode(s string) (ViewMode, error) {
	switch ViewMode(strings.ToLower(strings.TrimSpace(s))) {
	case ViewDay, "":
		return ViewDay, nil
	case ViewWeek:
		return ViewWeek, nil
	default:
		return "", fmt.Errorf("%w: %q (use day or week)", ErrInvalidViewMode, s)
	}
}

// Aggregate groups day buckets for display. Day mode returns points as-is.
// Week mode opens a bucket on every Monday and on the first record, so the
// leading partial week starts at the first date rather than the prior Monday.
// Weekly rates are sum-then-divide over days where the variation has visits.
func Aggregate(points []Bucket, variations []dataset.Variation, mode ViewMode) []Bucket {
	if mode != ViewWeek {
		return points
	}

	var (
		out     []Bucket
		current *weekAccumulator
	)
	for _, p := range points {
		if current == nil || p.Start.Weekday() == time.Monday {
			if current != nil {
				out = append(out, current.flush())
			}
			current = newWeekAccumulator(p.Start, variations)
		}
		current.add(p)
	}
	if current != nil {
		out = append(out, current.flush())
	}
	return out
}

type weekTotals struct {
	visits      int
	conversions int
}

type weekAccumulator struct {
	start      time.Time
	end        time.Time
	days       int
	variations []dataset.Variation
	totals     map[string]*weekTotals
}

func newWeekAccumulator(start time.Time, variations []dataset.Variation) *weekAccumulator {
	return &weekAccumulator{
		start:      start,
		variations: variations,
		totals:     make(map[string]*weekTotals, len(variations)),
	}
}

func (w *weekAccumulator) add(p Bucket) {
	w.end = p.End
	w.days += p.Days
	for _, v := range w.variations {
		d := p.Rates[v.Name]
		if d == nil {
			continue
		}
		t := w.totals[v.Name]
		if t == nil {
			t = &weekTotals{}
			w.totals[v.Name] = t
		}
		t.visits += d.Visits
		t.conversions += d.Conversions
	}
}

func (w *weekAccumulator) flush() Bucket {
	rates := make(map[string]*RateDetail, len(w.variations))
	for _, v := range w.variations {
		t := w.totals[v.Name]
		if t == nil || t.visits == 0 {
			rates[v.Name] = nil
			continue
		}
		rates[v.Name] = &RateDetail{
			Visits:      t.visits,
			Conversions: t.conversions,
			Rate:        Rate(t.visits, t.conversions),
		}
	}
	return Bucket{
		Key:   WeekLabelPrefix + w.start.Format(dataset.DateLayout),
		Start: w.start,
		End:   w.end,
		Days:  w.days,
		Rates: rates,
	}
}
