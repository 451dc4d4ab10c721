package pipeline

import (
	"sort"
	"strings"
)

// VisibleSet is the set of variation names currently shown.
type VisibleSet map[string]struct{}

func NewVisibleSet(names ...string) VisibleSet {
	s := make(VisibleSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// ParseVisibleSet splits a comma-separated list of names.
func ParseVisibleSet(csv string) VisibleSet {
	s := VisibleSet{}
	for _, n := range strings.Split(csv, ",") {
		if n = strings.TrimSpace(n); n != "" {
			s[n] = struct{}{}
		}
	}
	return s
}

func (s VisibleSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the members in sorted order.
func (s VisibleSet) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Key is a canonical form used to memoize filtered sequences.
func (s VisibleSet) Key() string {
	return strings.Join(s.Names(), "\x1f")
}

// FilterVisible keeps the buckets in which at least one visible variation has
// data. Buckets with no visible data are dropped, not kept as gaps.
func FilterVisible(buckets []Bucket, visible VisibleSet) []Bucket {
	out := make([]Bucket, 0, len(buckets))
	for _, b := range buckets {
		for name := range visible {
			if b.Rates[name] != nil {
				out = append(out, b)
				break
			}
		}
	}
	return out
}
