package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/headline-goat/trendline/internal/pipeline"
	"github.com/headline-goat/trendline/internal/state"
	"github.com/headline-goat/trendline/internal/store"
)

const pickDone = "Done"

var pickCmd = &cobra.Command{
	Use:   "pick",
	Short: "Choose view mode, zoom and visible variations interactively",
	Long: `Walk through the chart settings with arrow-key menus and save the
result to the CLI profile.

Example:
  trendline pick --data experiment.json`,
	Args: cobra.NoArgs,
	RunE: runPick,
}

func init() {
	rootCmd.AddCommand(pickCmd)
}

func runPick(cmd *cobra.Command, args []string) error {
	p, err := loadPipeline()
	if err != nil {
		return err
	}

	ctx := context.Background()
	return withStore(func(s *store.SQLiteStore) error {
		st, prefs, err := loadState(ctx, s, p.Dataset())
		if err != nil {
			return err
		}

		if err := pickState(st); err != nil {
			if err == promptui.ErrInterrupt {
				os.Exit(0)
			}
			return err
		}

		if prefs, err = saveState(ctx, s, st, prefs); err != nil {
			return fmt.Errorf("failed to save preferences: %w", err)
		}

		fmt.Println()
		printPrefs(cmd.OutOrStdout(), st, prefs)
		return nil
	})
}

func pickState(st *state.State) error {
	mode, err := promptViewMode(st.Mode)
	if err != nil {
		return err
	}
	if err := st.SetMode(mode); err != nil {
		return err
	}

	zoom, err := promptZoom(st.Zoom)
	if err != nil {
		return err
	}
	if err := st.SetZoom(zoom); err != nil {
		return err
	}

	return promptVisibility(st)
}

func promptViewMode(current pipeline.ViewMode) (pipeline.ViewMode, error) {
	modes := []pipeline.ViewMode{pipeline.ViewDay, pipeline.ViewWeek}

	cursor := 0
	if current == pipeline.ViewWeek {
		cursor = 1
	}

	prompt := promptui.Select{
		Label:     "View mode",
		Items:     []string{"Day", "Week"},
		CursorPos: cursor,
	}

	idx, _, err := prompt.Run()
	if err != nil {
		return "", err
	}
	return modes[idx], nil
}

func zoomLevels() []int {
	var levels []int
	for z := pipeline.MinZoom; z <= pipeline.MaxZoom; z += pipeline.ZoomStep {
		levels = append(levels, z)
	}
	return levels
}

func promptZoom(current int) (int, error) {
	levels := zoomLevels()

	items := make([]string, len(levels))
	cursor := 0
	for i, z := range levels {
		items[i] = strconv.Itoa(z) + "%"
		if z == current {
			cursor = i
		}
	}

	prompt := promptui.Select{
		Label:     "Zoom",
		Items:     items,
		CursorPos: cursor,
		Size:      len(items),
	}

	idx, _, err := prompt.Run()
	if err != nil {
		return 0, err
	}
	return levels[idx], nil
}

// promptVisibility toggles one variation per selection until Done is picked.
func promptVisibility(st *state.State) error {
	names := st.Variations()
	cursor := 0

	for {
		items := make([]string, 0, len(names)+1)
		for _, name := range names {
			mark := "[ ]"
			if st.Visible.Has(name) {
				mark = "[x]"
			}
			items = append(items, mark+" "+name)
		}
		items = append(items, pickDone)

		prompt := promptui.Select{
			Label:     "Toggle variations",
			Items:     items,
			CursorPos: cursor,
			Size:      min(len(items), 10),
		}

		idx, _, err := prompt.Run()
		if err != nil {
			return err
		}
		if idx == len(names) {
			return nil
		}
		cursor = idx

		if err := st.Toggle(names[idx]); errors.Is(err, state.ErrLastVisible) {
			fmt.Println("At least one variation must stay visible.")
		} else if err != nil {
			return err
		}
	}
}
