package state

import (
	"github.com/headline-goat/trendline/internal/dataset"
	"github.com/headline-goat/trendline/internal/pipeline"
	"github.com/headline-goat/trendline/internal/store"
)

// FromPreferences restores a saved profile against ds. Stored values that no
// longer validate fall back to the defaults, and the visible set is
// reconciled with the dataset's variations.
func FromPreferences(ds *dataset.Dataset, p *store.Preferences) *State {
	s := New(ds)
	if p == nil {
		return s
	}

	if mode, err := pipeline.ParseViewMode(p.ViewMode); err == nil {
		s.Mode = mode
	}
	if ValidZoom(p.Zoom) {
		s.Zoom = p.Zoom
	}
	if ls, err := ParseLineStyle(p.LineStyle); err == nil {
		s.LineStyle = ls
	}
	if th, err := ParseTheme(p.Theme); err == nil {
		s.Theme = th
	}
	if len(p.Visible) > 0 {
		s.Visible = pipeline.NewVisibleSet(p.Visible...)
		s.Reconcile()
	}
	return s
}

// ApplyTo copies the state into p, keeping p's profile id and timestamps.
func (s *State) ApplyTo(p *store.Preferences) {
	p.Theme = string(s.Theme)
	p.ViewMode = string(s.Mode)
	p.Zoom = s.Zoom
	p.LineStyle = string(s.LineStyle)
	p.Visible = s.visibleInOrder()
}

// Preferences returns the state as an unsaved preference record.
func (s *State) Preferences() store.Preferences {
	var p store.Preferences
	s.ApplyTo(&p)
	return p
}

// visibleInOrder lists visible names in display order.
func (s *State) visibleInOrder() []string {
	out := make([]string, 0, len(s.Visible))
	for _, n := range s.variations {
		if s.Visible.Has(n) {
			out = append(out, n)
		}
	}
	return out
}
