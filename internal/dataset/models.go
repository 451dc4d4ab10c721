package dataset

import (
	"strconv"
	"time"
)

// BaselineKey is the variation key used when a variation carries no id.
const BaselineKey = "0"

// DateLayout is the calendar-date format used for day records and bucket keys.
const DateLayout = "2006-01-02"

type Variation struct {
	ID   *int   `json:"id,omitempty"`
	Name string `json:"name"`
}

// Key returns the string form of the variation id used in visits/conversions maps.
func (v Variation) Key() string {
	if v.ID == nil {
		return BaselineKey
	}
	return strconv.Itoa(*v.ID)
}

type DailyRecord struct {
	Date        time.Time
	Visits      map[string]int // absent key: no exposure recorded that day
	Conversions map[string]int // absent key: zero conversions
}

// VisitsFor reports the visits for key and whether any were recorded.
func (r DailyRecord) VisitsFor(key string) (int, bool) {
	v, ok := r.Visits[key]
	return v, ok
}

func (r DailyRecord) ConversionsFor(key string) int {
	return r.Conversions[key]
}

// Dataset is an immutable experiment export: variations in display order and
// day records in ascending date order.
type Dataset struct {
	Variations []Variation
	Days       []DailyRecord
}

// Names returns the variation names in display order.
func (d *Dataset) Names() []string {
	names := make([]string, len(d.Variations))
	for i, v := range d.Variations {
		names[i] = v.Name
	}
	return names
}

// IndexOf returns the display index of the named variation, or -1.
func (d *Dataset) IndexOf(name string) int {
	for i, v := range d.Variations {
		if v.Name == name {
			return i
		}
	}
	return -1
}

// Span returns the first and last record dates. Both are zero for an empty dataset.
func (d *Dataset) Span() (first, last time.Time) {
	if len(d.Days) == 0 {
		return time.Time{}, time.Time{}
	}
	return d.Days[0].Date, d.Days[len(d.Days)-1].Date
}

// Anomaly describes a record that is accepted but suspicious.
type Anomaly struct {
	Date        time.Time
	Variation   string
	Visits      int
	Conversions int
}

// Anomalies lists records where conversions exceed visits. These produce
// rates above 100 and are kept as-is.
func (d *Dataset) Anomalies() []Anomaly {
	var out []Anomaly
	for _, day := range d.Days {
		for _, v := range d.Variations {
			visits, ok := day.VisitsFor(v.Key())
			if !ok {
				continue
			}
			if conv := day.ConversionsFor(v.Key()); conv > visits {
				out = append(out, Anomaly{Date: day.Date, Variation: v.Name, Visits: visits, Conversions: conv})
			}
		}
	}
	return out
}
