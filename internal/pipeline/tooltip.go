package pipeline

import (
	"sort"

	"github.com/headline-goat/trendline/internal/dataset"
)

// TooltipEntry is one row of a hover tooltip. ColorIndex is the variation's
// display position, which the renderer maps to a palette color.
type TooltipEntry struct {
	Name         string  `json:"name" msgpack:"name"`
	ColorIndex   int     `json:"color_index" msgpack:"color_index"`
	Rate         float64 `json:"rate" msgpack:"rate"`
	IsWinner     bool    `json:"is_winner" msgpack:"is_winner"`
	Interpolated bool    `json:"interpolated" msgpack:"interpolated"`
}

// IndexOf returns the position of the bucket with the given key, or -1.
func IndexOf(buckets []Bucket, key string) int {
	for i, b := range buckets {
		if b.Key == key {
			return i
		}
	}
	return -1
}

// ResolveTooltipEntries resolves a value per visible variation at the bucket
// identified by key. Gaps are filled by linear interpolation between the
// nearest non-nil neighbours; a gap without both neighbours is omitted.
// Entries are sorted by rate, highest first, and every entry equal to a
// positive maximum is a winner. An unknown key yields no entries.
func ResolveTooltipEntries(buckets []Bucket, variations []dataset.Variation, key string, visible VisibleSet) []TooltipEntry {
	target := IndexOf(buckets, key)
	if target < 0 {
		return []TooltipEntry{}
	}

	entries := make([]TooltipEntry, 0, len(visible))
	for i, v := range variations {
		if !visible.Has(v.Name) {
			continue
		}
		if rate, ok := buckets[target].RateOf(v.Name); ok {
			entries = append(entries, TooltipEntry{Name: v.Name, ColorIndex: i, Rate: rate})
			continue
		}
		if rate, ok := interpolate(buckets, v.Name, target); ok {
			entries = append(entries, TooltipEntry{Name: v.Name, ColorIndex: i, Rate: rate, Interpolated: true})
		}
	}

	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].Rate > entries[b].Rate
	})

	maxRate := 0.0
	if len(entries) > 0 {
		maxRate = entries[0].Rate
	}
	if maxRate > 0 {
		for i := range entries {
			entries[i].IsWinner = entries[i].Rate == maxRate
		}
	}
	return entries
}

func interpolate(buckets []Bucket, name string, target int) (float64, bool) {
	prev := -1
	for i := target - 1; i >= 0; i-- {
		if _, ok := buckets[i].RateOf(name); ok {
			prev = i
			break
		}
	}
	next := -1
	for i := target + 1; i < len(buckets); i++ {
		if _, ok := buckets[i].RateOf(name); ok {
			next = i
			break
		}
	}
	if prev < 0 || next < 0 {
		return 0, false
	}

	prevRate, _ := buckets[prev].RateOf(name)
	nextRate, _ := buckets[next].RateOf(name)
	frac := float64(target-prev) / float64(next-prev)
	return round2(prevRate + (nextRate-prevRate)*frac), true
}
