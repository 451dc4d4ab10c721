package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/headline-goat/trendline/internal/dataset"
	"github.com/headline-goat/trendline/internal/pipeline"
	"github.com/headline-goat/trendline/internal/state"
	"github.com/headline-goat/trendline/internal/store"
)

var errNoDataset = errors.New("no dataset: pass --data or set TL_DATA_PATH")

// withStore opens the database, executes the function, and handles cleanup.
func withStore(fn func(*store.SQLiteStore) error) error {
	s, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer s.Close()

	return fn(s)
}

// loadPipeline reads the dataset named by --data and logs any rows with
// more conversions than visits.
func loadPipeline() (*pipeline.Pipeline, error) {
	if dataPath == "" {
		return nil, errNoDataset
	}

	ds, err := dataset.LoadFile(dataPath)
	if err != nil {
		return nil, err
	}

	for _, a := range ds.Anomalies() {
		appLogger.Warn().
			Str("date", a.Date.Format(dataset.DateLayout)).
			Str("variation", a.Variation).
			Int("visits", a.Visits).
			Int("conversions", a.Conversions).
			Msg("conversions exceed visits")
	}
	appLogger.Debug().Str("path", dataPath).Int("variations", len(ds.Variations)).
		Int("days", len(ds.Days)).Msg("loaded dataset")

	return pipeline.New(ds, appLogger), nil
}

// experimentTitle names the experiment after its data file.
func experimentTitle() string {
	base := filepath.Base(dataPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// loadState restores the CLI profile: --profile when given, otherwise the
// saved default. Without a saved profile the default state is returned with
// nil preferences.
func loadState(ctx context.Context, s store.Store, ds *dataset.Dataset) (*state.State, *store.Preferences, error) {
	id := profileID
	if id == "" {
		saved, err := s.GetSetting(ctx, store.SettingDefaultProfile)
		if err != nil && err != store.ErrNotFound {
			return nil, nil, err
		}
		id = saved
	}
	if id == "" {
		return state.New(ds), nil, nil
	}

	prefs, err := s.GetPreferences(ctx, id)
	if err == store.ErrNotFound {
		if profileID != "" {
			return nil, nil, fmt.Errorf("profile '%s' not found", id)
		}
		return state.New(ds), nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return state.FromPreferences(ds, prefs), prefs, nil
}

// saveState persists st. The first save creates a profile and remembers it
// as the CLI default.
func saveState(ctx context.Context, s store.Store, st *state.State, prefs *store.Preferences) (*store.Preferences, error) {
	if prefs == nil {
		created, err := s.CreateProfile(ctx, st.Preferences())
		if err != nil {
			return nil, err
		}
		if err := s.SetSetting(ctx, store.SettingDefaultProfile, created.Profile); err != nil {
			return nil, err
		}
		return created, nil
	}

	st.ApplyTo(prefs)
	if err := s.SavePreferences(ctx, prefs); err != nil {
		return nil, err
	}
	return prefs, nil
}

// viewFlags are one-off overrides layered on the saved state.
type viewFlags struct {
	view    string
	zoom    int
	visible string
}

func (f *viewFlags) register(cmd *cobra.Command, withZoom bool) {
	cmd.Flags().StringVar(&f.view, "view", "", "view mode: day or week (defaults to saved)")
	cmd.Flags().StringVar(&f.visible, "visible", "", "comma-separated variation names to show (defaults to saved)")
	if withZoom {
		cmd.Flags().IntVar(&f.zoom, "zoom", pipeline.DefaultZoom, "zoom level in percent (defaults to saved)")
	}
}

// resolve applies the flags that were set on cmd. Zoom is passed through
// unclamped; only positivity is checked downstream.
func (f *viewFlags) resolve(cmd *cobra.Command, st *state.State) (pipeline.ViewMode, pipeline.VisibleSet, int, error) {
	mode := st.Mode
	if f.view != "" {
		m, err := pipeline.ParseViewMode(f.view)
		if err != nil {
			return "", nil, 0, err
		}
		mode = m
	}

	visible := st.Visible
	if cmd.Flags().Changed("visible") {
		scratch := st.Clone()
		if err := scratch.SetVisible(pipeline.ParseVisibleSet(f.visible).Names()); err != nil {
			return "", nil, 0, err
		}
		visible = scratch.Visible
	}

	zoom := st.Zoom
	if cmd.Flags().Lookup("zoom") != nil && cmd.Flags().Changed("zoom") {
		zoom = f.zoom
	}

	return mode, visible, zoom, nil
}

// viewContext loads the dataset and the saved state for a read-only command.
func viewContext(ctx context.Context) (*pipeline.Pipeline, *state.State, error) {
	p, err := loadPipeline()
	if err != nil {
		return nil, nil, err
	}

	var st *state.State
	err = withStore(func(s *store.SQLiteStore) error {
		var err error
		st, _, err = loadState(ctx, s, p.Dataset())
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return p, st, nil
}
