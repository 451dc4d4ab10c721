package pipeline

import (
	"errors"
	"sync"

	"github.com/headline-goat/trendline/internal/dataset"
	"github.com/rs/zerolog"
)

var ErrNoVisibleVariations = errors.New("at least one variation must be visible")

// DeriveDisplayWindow runs the full chain: day rates, view-mode buckets,
// visibility filter and zoom window.
func DeriveDisplayWindow(ds *dataset.Dataset, mode ViewMode, visible VisibleSet, zoom int) ([]Bucket, error) {
	if len(visible) == 0 {
		return nil, ErrNoVisibleVariations
	}
	buckets := Aggregate(CalculateDays(ds), ds.Variations, mode)
	return ApplyZoom(FilterVisible(buckets, visible), zoom)
}

// ResolveTooltip resolves the tooltip for key against the unfiltered,
// unzoomed bucket sequence of the view mode.
func ResolveTooltip(ds *dataset.Dataset, mode ViewMode, key string, visible VisibleSet) ([]TooltipEntry, error) {
	if len(visible) == 0 {
		return nil, ErrNoVisibleVariations
	}
	buckets := Aggregate(CalculateDays(ds), ds.Variations, mode)
	return ResolveTooltipEntries(buckets, ds.Variations, key, visible), nil
}

type filterKey struct {
	mode    ViewMode
	visible string
}

type windowKey struct {
	filterKey
	zoom int
}

// Pipeline memoizes each derivation stage for one dataset, keyed by the
// inputs of that stage. Returned slices are shared between callers and must
// not be modified.
type Pipeline struct {
	ds  *dataset.Dataset
	log zerolog.Logger

	mu       sync.Mutex
	points   []Bucket
	buckets  map[ViewMode][]Bucket
	filtered map[filterKey][]Bucket
	windows  map[windowKey][]Bucket
}

func New(ds *dataset.Dataset, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		ds:       ds,
		log:      log.With().Str("component", "pipeline").Logger(),
		buckets:  make(map[ViewMode][]Bucket),
		filtered: make(map[filterKey][]Bucket),
		windows:  make(map[windowKey][]Bucket),
	}
}

func (p *Pipeline) Dataset() *dataset.Dataset {
	return p.ds
}

// Buckets returns the full bucket sequence for a view mode.
func (p *Pipeline) Buckets(mode ViewMode) []Bucket {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bucketsLocked(mode)
}

func (p *Pipeline) bucketsLocked(mode ViewMode) []Bucket {
	if p.points == nil {
		p.points = CalculateDays(p.ds)
		p.log.Debug().Int("days", len(p.points)).Msg("calculated daily rates")
	}
	if b, ok := p.buckets[mode]; ok {
		return b
	}
	b := Aggregate(p.points, p.ds.Variations, mode)
	p.buckets[mode] = b
	p.log.Debug().Str("view", string(mode)).Int("buckets", len(b)).Msg("aggregated buckets")
	return b
}

// Window is the memoized DeriveDisplayWindow. Only zooms on the UI scale
// are cached; any other positive zoom is windowed on every call.
func (p *Pipeline) Window(mode ViewMode, visible VisibleSet, zoom int) ([]Bucket, error) {
	if len(visible) == 0 {
		return nil, ErrNoVisibleVariations
	}
	if zoom <= 0 {
		return ApplyZoom(nil, zoom)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	fk := filterKey{mode: mode, visible: visible.Key()}
	wk := windowKey{filterKey: fk, zoom: zoom}
	if w, ok := p.windows[wk]; ok {
		return w, nil
	}

	filtered, ok := p.filtered[fk]
	if !ok {
		filtered = FilterVisible(p.bucketsLocked(mode), visible)
		p.filtered[fk] = filtered
		p.log.Debug().Str("view", string(mode)).Strs("visible", visible.Names()).
			Int("buckets", len(filtered)).Msg("filtered buckets")
	}

	w, err := ApplyZoom(filtered, zoom)
	if err != nil {
		return nil, err
	}
	if !OnScale(zoom) {
		return w, nil
	}
	p.windows[wk] = w
	p.log.Debug().Int("zoom", zoom).Int("buckets", len(w)).Msg("windowed buckets")
	return w, nil
}

// Tooltip is ResolveTooltip over the memoized bucket sequence.
func (p *Pipeline) Tooltip(mode ViewMode, key string, visible VisibleSet) ([]TooltipEntry, error) {
	if len(visible) == 0 {
		return nil, ErrNoVisibleVariations
	}
	return ResolveTooltipEntries(p.Buckets(mode), p.ds.Variations, key, visible), nil
}
