package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/headline-goat/trendline/internal/pipeline"
)

var tooltipFlags viewFlags

var tooltipCmd = &cobra.Command{
	Use:   "tooltip <key>",
	Short: "Show the hover tooltip for one bucket",
	Long: `Show every visible variation's rate at a bucket, highest first. Missing
values are interpolated from the nearest neighbours when both exist.

Examples:
  trendline tooltip 2024-01-03
  trendline tooltip "Week of 2024-01-01" --view week`,
	Args: cobra.ExactArgs(1),
	RunE: runTooltip,
}

func init() {
	tooltipFlags.register(tooltipCmd, false)
	rootCmd.AddCommand(tooltipCmd)
}

func runTooltip(cmd *cobra.Command, args []string) error {
	key := args[0]

	p, st, err := viewContext(context.Background())
	if err != nil {
		return err
	}

	mode, visible, _, err := tooltipFlags.resolve(cmd, st)
	if err != nil {
		return err
	}

	entries, err := p.Tooltip(mode, key, visible)
	if err != nil {
		return err
	}

	printTooltip(cmd.OutOrStdout(), key, entries)
	return nil
}

func printTooltip(w io.Writer, key string, entries []pipeline.TooltipEntry) {
	if len(entries) == 0 {
		fmt.Fprintf(w, "No values at '%s'.\n", key)
		return
	}

	fmt.Fprintln(w, key)
	fmt.Fprintln(w, strings.Repeat("─", 40))
	for _, e := range entries {
		name := truncateName(e.Name, 20)

		suffix := ""
		if e.Interpolated {
			suffix += " (interpolated)"
		}
		if e.IsWinner {
			suffix += " ← WINNER"
		}
		fmt.Fprintf(w, "%-20s  %7.2f%%%s\n", name, e.Rate, suffix)
	}
}

// truncateName shortens name to at most width runes, ending in "...".
func truncateName(name string, width int) string {
	runes := []rune(name)
	if len(runes) <= width {
		return name
	}
	return string(runes[:width-3]) + "..."
}
