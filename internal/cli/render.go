package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/headline-goat/trendline/internal/render"
)

var (
	renderFlags     viewFlags
	renderOut       string
	renderFormat    string
	renderWidth     int
	renderHeight    int
	renderTheme     string
	renderLineStyle string
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the conversion chart to an image",
	Long: `Render the current display window as a PNG or SVG line chart.
The format follows the output extension unless --format is given.

Examples:
  trendline render --out chart.png
  trendline render --out chart.svg --view week --theme dark
  trendline render --out - --format svg > chart.svg`,
	Args: cobra.NoArgs,
	RunE: runRender,
}

func init() {
	renderFlags.register(renderCmd, true)
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "chart.png", "output file, or - for stdout")
	renderCmd.Flags().StringVarP(&renderFormat, "format", "f", "", "image format (png or svg)")
	renderCmd.Flags().IntVar(&renderWidth, "width", 960, "image width in pixels")
	renderCmd.Flags().IntVar(&renderHeight, "height", 400, "image height in pixels")
	renderCmd.Flags().StringVar(&renderTheme, "theme", "", "light or dark (defaults to saved)")
	renderCmd.Flags().StringVar(&renderLineStyle, "line-style", "", "solid, dashed or dotted (defaults to saved)")
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	format, err := imageFormat(renderOut, renderFormat)
	if err != nil {
		return err
	}

	p, st, err := viewContext(context.Background())
	if err != nil {
		return err
	}

	// Style overrides apply to this run only
	if renderTheme != "" {
		if err := st.SetTheme(renderTheme); err != nil {
			return err
		}
	}
	if renderLineStyle != "" {
		if err := st.SetLineStyle(renderLineStyle); err != nil {
			return err
		}
	}

	mode, visible, zoom, err := renderFlags.resolve(cmd, st)
	if err != nil {
		return err
	}

	window, err := p.Window(mode, visible, zoom)
	if err != nil {
		return err
	}

	opts := render.Options{
		Title:     experimentTitle(),
		Width:     renderWidth,
		Height:    renderHeight,
		Format:    format,
		Theme:     st.Theme,
		LineStyle: st.LineStyle,
	}

	if renderOut == "-" {
		return render.Chart(cmd.OutOrStdout(), window, p.Dataset().Variations, visible, opts)
	}

	f, err := os.Create(renderOut)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := writeChart(f, func(w io.Writer) error {
		return render.Chart(w, window, p.Dataset().Variations, visible, opts)
	}); err != nil {
		os.Remove(renderOut)
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d buckets, %s view, %d%% zoom, %s theme)\n",
		renderOut, len(window), mode, zoom, st.Theme)
	return nil
}

// writeChart runs fn against f and closes it, reporting the first error.
func writeChart(f *os.File, fn func(io.Writer) error) error {
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// imageFormat picks the explicit format, or infers it from the output name.
func imageFormat(out, explicit string) (render.Format, error) {
	if explicit != "" {
		return render.ParseFormat(strings.ToLower(explicit))
	}
	if strings.EqualFold(filepath.Ext(out), ".svg") {
		return render.FormatSVG, nil
	}
	return render.FormatPNG, nil
}
