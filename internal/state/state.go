package state

import (
	"errors"
	"fmt"
	"strings"

	"github.com/headline-goat/trendline/internal/dataset"
	"github.com/headline-goat/trendline/internal/pipeline"
)

type LineStyle string

const (
	LineSolid  LineStyle = "solid"
	LineDashed LineStyle = "dashed"
	LineDotted LineStyle = "dotted"
)

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

var (
	ErrLastVisible      = errors.New("cannot hide the last visible variation")
	ErrUnknownVariation = errors.New("unknown variation")
	ErrZoomOutOfRange   = errors.New("zoom level out of range")
	ErrInvalidLineStyle = errors.New("invalid line style")
	ErrInvalidTheme     = errors.New("invalid theme")
)

// State is the viewer's chart configuration. It owns the invariant that at
// least one variation stays visible. Failed mutations leave it unchanged.
type State struct {
	Mode      pipeline.ViewMode
	Zoom      int
	Visible   pipeline.VisibleSet
	LineStyle LineStyle
	Theme     Theme

	variations []string
}

// New returns the default state for ds: every variation visible, day view,
// 100% zoom.
func New(ds *dataset.Dataset) *State {
	names := ds.Names()
	return &State{
		Mode:       pipeline.ViewDay,
		Zoom:       pipeline.DefaultZoom,
		Visible:    pipeline.NewVisibleSet(names...),
		LineStyle:  LineSolid,
		Theme:      ThemeLight,
		variations: names,
	}
}

// Variations returns all variation names in display order.
func (s *State) Variations() []string {
	return s.variations
}

func (s *State) known(name string) bool {
	for _, n := range s.variations {
		if n == name {
			return true
		}
	}
	return false
}

// Toggle flips the visibility of name.
func (s *State) Toggle(name string) error {
	if !s.known(name) {
		return fmt.Errorf("%w: %q", ErrUnknownVariation, name)
	}
	if s.Visible.Has(name) {
		if len(s.Visible) == 1 {
			return ErrLastVisible
		}
		delete(s.Visible, name)
		return nil
	}
	s.Visible[name] = struct{}{}
	return nil
}

// SetVisible replaces the visible set. Unknown names are rejected and an
// empty set is refused.
func (s *State) SetVisible(names []string) error {
	next := pipeline.VisibleSet{}
	for _, n := range names {
		if !s.known(n) {
			return fmt.Errorf("%w: %q", ErrUnknownVariation, n)
		}
		next[n] = struct{}{}
	}
	if len(next) == 0 {
		return ErrLastVisible
	}
	s.Visible = next
	return nil
}

func (s *State) SetMode(mode pipeline.ViewMode) error {
	if mode != pipeline.ViewDay && mode != pipeline.ViewWeek {
		return fmt.Errorf("%w: %q", pipeline.ErrInvalidViewMode, mode)
	}
	s.Mode = mode
	return nil
}

// ValidZoom reports whether zoom is on the UI scale.
func ValidZoom(zoom int) bool {
	return pipeline.OnScale(zoom)
}

func (s *State) SetZoom(zoom int) error {
	if !ValidZoom(zoom) {
		return fmt.Errorf("%w: %d (use %d-%d in steps of %d)", ErrZoomOutOfRange, zoom,
			pipeline.MinZoom, pipeline.MaxZoom, pipeline.ZoomStep)
	}
	s.Zoom = zoom
	return nil
}

// ZoomIn moves one step closer, stopping at MaxZoom.
func (s *State) ZoomIn() {
	s.Zoom = min(s.Zoom+pipeline.ZoomStep, pipeline.MaxZoom)
}

// ZoomOut moves one step back, stopping at MinZoom.
func (s *State) ZoomOut() {
	s.Zoom = max(s.Zoom-pipeline.ZoomStep, pipeline.MinZoom)
}

func ParseLineStyle(v string) (LineStyle, error) {
	switch ls := LineStyle(strings.ToLower(strings.TrimSpace(v))); ls {
	case LineSolid, LineDashed, LineDotted:
		return ls, nil
	default:
		return "", fmt.Errorf("%w: %q (use solid, dashed or dotted)", ErrInvalidLineStyle, v)
	}
}

func (s *State) SetLineStyle(v string) error {
	ls, err := ParseLineStyle(v)
	if err != nil {
		return err
	}
	s.LineStyle = ls
	return nil
}

func ParseTheme(v string) (Theme, error) {
	switch th := Theme(strings.ToLower(strings.TrimSpace(v))); th {
	case ThemeLight, ThemeDark:
		return th, nil
	default:
		return "", fmt.Errorf("%w: %q (use light or dark)", ErrInvalidTheme, v)
	}
}

func (s *State) SetTheme(v string) error {
	th, err := ParseTheme(v)
	if err != nil {
		return err
	}
	s.Theme = th
	return nil
}

// Reconcile drops visible names the dataset no longer has. If nothing is
// left, every variation becomes visible again.
func (s *State) Reconcile() {
	for name := range s.Visible {
		if !s.known(name) {
			delete(s.Visible, name)
		}
	}
	if len(s.Visible) == 0 {
		s.Visible = pipeline.NewVisibleSet(s.variations...)
	}
}

// Clone returns an independent copy.
func (s *State) Clone() *State {
	c := *s
	c.Visible = pipeline.NewVisibleSet(s.Visible.Names()...)
	return &c
}
