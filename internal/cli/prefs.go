package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/headline-goat/trendline/internal/pipeline"
	"github.com/headline-goat/trendline/internal/state"
	"github.com/headline-goat/trendline/internal/store"
)

var (
	prefsToggle    []string
	prefsView      string
	prefsZoom      int
	prefsLineStyle string
	prefsTheme     string
	prefsList      bool
	prefsDelete    string
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show or change saved chart preferences",
	Long: `Show the saved profile, or change it with flags. Every change is
validated before anything is saved: hiding the last visible variation or
picking a zoom off the 50-200 scale fails and leaves the profile untouched.

Examples:
  trendline prefs
  trendline prefs --toggle "Variation A"
  trendline prefs --view week --zoom 150 --theme dark
  trendline prefs --list
  trendline prefs --delete 3f1c...`,
	Args: cobra.NoArgs,
	RunE: runPrefs,
}

func init() {
	prefsCmd.Flags().StringArrayVar(&prefsToggle, "toggle", nil, "toggle a variation's visibility (repeatable)")
	prefsCmd.Flags().StringVar(&prefsView, "view", "", "view mode: day or week")
	prefsCmd.Flags().IntVar(&prefsZoom, "zoom", 0, "zoom level (50-200 in steps of 25)")
	prefsCmd.Flags().StringVar(&prefsLineStyle, "line-style", "", "solid, dashed or dotted")
	prefsCmd.Flags().StringVar(&prefsTheme, "theme", "", "light or dark")
	prefsCmd.Flags().BoolVar(&prefsList, "list", false, "list saved profiles")
	prefsCmd.Flags().StringVar(&prefsDelete, "delete", "", "delete a saved profile")
	rootCmd.AddCommand(prefsCmd)
}

func runPrefs(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	out := cmd.OutOrStdout()

	if prefsList {
		return withStore(func(s *store.SQLiteStore) error {
			return listProfiles(ctx, out, s)
		})
	}
	if prefsDelete != "" {
		return withStore(func(s *store.SQLiteStore) error {
			return deleteProfile(ctx, out, s, prefsDelete)
		})
	}

	p, err := loadPipeline()
	if err != nil {
		return err
	}

	return withStore(func(s *store.SQLiteStore) error {
		st, prefs, err := loadState(ctx, s, p.Dataset())
		if err != nil {
			return err
		}

		changed, err := applyPrefsFlags(cmd, st)
		if err != nil {
			return err
		}
		if changed {
			if prefs, err = saveState(ctx, s, st, prefs); err != nil {
				return fmt.Errorf("failed to save preferences: %w", err)
			}
		}

		printPrefs(out, st, prefs)
		return nil
	})
}

// applyPrefsFlags mutates a scratch copy and only commits it to st when
// every flag validated.
func applyPrefsFlags(cmd *cobra.Command, st *state.State) (bool, error) {
	next := st.Clone()
	changed := false

	for _, name := range prefsToggle {
		if err := next.Toggle(name); err != nil {
			return false, err
		}
		changed = true
	}
	if prefsView != "" {
		mode, err := pipeline.ParseViewMode(prefsView)
		if err != nil {
			return false, err
		}
		if err := next.SetMode(mode); err != nil {
			return false, err
		}
		changed = true
	}
	if cmd.Flags().Changed("zoom") {
		if err := next.SetZoom(prefsZoom); err != nil {
			return false, err
		}
		changed = true
	}
	if prefsLineStyle != "" {
		if err := next.SetLineStyle(prefsLineStyle); err != nil {
			return false, err
		}
		changed = true
	}
	if prefsTheme != "" {
		if err := next.SetTheme(prefsTheme); err != nil {
			return false, err
		}
		changed = true
	}

	if changed {
		*st = *next
	}
	return changed, nil
}

func printPrefs(w io.Writer, st *state.State, prefs *store.Preferences) {
	if prefs == nil {
		fmt.Fprintln(w, "PROFILE: (defaults, not saved)")
	} else {
		fmt.Fprintf(w, "PROFILE: %s\n", prefs.Profile)
	}
	fmt.Fprintf(w, "VIEW: %s\n", st.Mode)
	fmt.Fprintf(w, "ZOOM: %d%%\n", st.Zoom)
	fmt.Fprintf(w, "LINE: %s\n", st.LineStyle)
	fmt.Fprintf(w, "THEME: %s\n", st.Theme)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "VARIATIONS")
	for _, name := range st.Variations() {
		mark := "[ ]"
		if st.Visible.Has(name) {
			mark = "[x]"
		}
		fmt.Fprintf(w, "  %s %s\n", mark, name)
	}
}

func listProfiles(ctx context.Context, w io.Writer, s store.Store) error {
	profiles, err := s.ListProfiles(ctx)
	if err != nil {
		return fmt.Errorf("failed to list profiles: %w", err)
	}

	if len(profiles) == 0 {
		fmt.Fprintln(w, "No saved profiles yet.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Change a setting to create one, e.g.: trendline prefs --view week")
		return nil
	}

	defaultID, _ := s.GetSetting(ctx, store.SettingDefaultProfile)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROFILE\tVIEW\tZOOM\tTHEME\tVISIBLE\tUPDATED")
	for _, p := range profiles {
		id := p.Profile
		if id == defaultID {
			id += " *"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d%%\t%s\t%s\t%s\n",
			id,
			strings.ToUpper(p.ViewMode),
			p.Zoom,
			p.Theme,
			strings.Join(p.Visible, ", "),
			p.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}
	return tw.Flush()
}

func deleteProfile(ctx context.Context, w io.Writer, s store.Store, id string) error {
	if err := s.DeletePreferences(ctx, id); err != nil {
		if err == store.ErrNotFound {
			return fmt.Errorf("profile '%s' not found", id)
		}
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	fmt.Fprintf(w, "Deleted profile %s\n", id)
	return nil
}
