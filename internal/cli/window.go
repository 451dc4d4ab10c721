package cli

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/headline-goat/trendline/internal/dataset"
	"github.com/headline-goat/trendline/internal/pipeline"
)

var (
	windowFlags  viewFlags
	windowFormat string
)

var windowCmd = &cobra.Command{
	Use:   "window",
	Short: "Print the display window of conversion rates",
	Long: `Print the buckets the chart would show for a view mode, visible set and
zoom level. Flags override the saved profile for this run only.

Examples:
  trendline window --data experiment.json
  trendline window --view week --zoom 200
  trendline window --visible "Original,Variation A" --format csv > window.csv
  trendline window --format msgpack > window.msgpack`,
	Args: cobra.NoArgs,
	RunE: runWindow,
}

func init() {
	windowFlags.register(windowCmd, true)
	windowCmd.Flags().StringVarP(&windowFormat, "format", "f", "table", "output format (table, json, csv or msgpack)")
	rootCmd.AddCommand(windowCmd)
}

// windowOutput is the machine-readable form of a display window.
type windowOutput struct {
	View       pipeline.ViewMode `json:"view" msgpack:"view"`
	Zoom       int               `json:"zoom" msgpack:"zoom"`
	Variations []string          `json:"variations" msgpack:"variations"`
	Total      int               `json:"total" msgpack:"total"`
	Buckets    []pipeline.Bucket `json:"buckets" msgpack:"buckets"`
}

func runWindow(cmd *cobra.Command, args []string) error {
	switch windowFormat {
	case "table", "json", "csv", "msgpack":
	default:
		return fmt.Errorf("invalid format: must be 'table', 'json', 'csv' or 'msgpack'")
	}

	p, st, err := viewContext(context.Background())
	if err != nil {
		return err
	}

	mode, visible, zoom, err := windowFlags.resolve(cmd, st)
	if err != nil {
		return err
	}

	window, err := p.Window(mode, visible, zoom)
	if err != nil {
		return err
	}

	out := windowOutput{
		View:       mode,
		Zoom:       zoom,
		Variations: visibleColumns(p.Dataset(), visible),
		Total:      len(p.Buckets(mode)),
		Buckets:    window,
	}
	return writeWindow(cmd.OutOrStdout(), windowFormat, out)
}

// visibleColumns lists visible variation names in display order.
func visibleColumns(ds *dataset.Dataset, visible pipeline.VisibleSet) []string {
	var names []string
	for _, v := range ds.Variations {
		if visible.Has(v.Name) {
			names = append(names, v.Name)
		}
	}
	return names
}

func writeWindow(w io.Writer, format string, out windowOutput) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(out)
	case "msgpack":
		return msgpack.NewEncoder(w).Encode(out)
	case "csv":
		return writeWindowCSV(w, out)
	default:
		return writeWindowTable(w, out)
	}
}

func writeWindowTable(w io.Writer, out windowOutput) error {
	if len(out.Buckets) == 0 {
		fmt.Fprintln(w, "No data for the visible variations.")
		return nil
	}

	fmt.Fprintf(w, "VIEW: %s  ZOOM: %d%%  SHOWING: %d of %d\n\n", out.View, out.Zoom, len(out.Buckets), out.Total)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := "BUCKET"
	for _, name := range out.Variations {
		header += "\t" + strings.ToUpper(name)
	}
	fmt.Fprintln(tw, header)

	for _, b := range out.Buckets {
		row := b.Key
		for _, name := range out.Variations {
			row += "\t" + formatCell(b.Rates[name])
		}
		fmt.Fprintln(tw, row)
	}
	return tw.Flush()
}

func formatCell(d *pipeline.RateDetail) string {
	if d == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f%% (%d/%d)", d.Rate, d.Conversions, d.Visits)
}

func writeWindowCSV(w io.Writer, out windowOutput) error {
	cw := csv.NewWriter(w)

	// Write header
	header := []string{"bucket", "start", "end", "days"}
	for _, name := range out.Variations {
		header = append(header, name+" visits", name+" conversions", name+" rate")
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	// Write rows; absent variations leave their cells empty
	for _, b := range out.Buckets {
		row := []string{
			b.Key,
			b.Start.Format(dataset.DateLayout),
			b.End.Format(dataset.DateLayout),
			strconv.Itoa(b.Days),
		}
		for _, name := range out.Variations {
			d := b.Rates[name]
			if d == nil {
				row = append(row, "", "", "")
				continue
			}
			row = append(row,
				strconv.Itoa(d.Visits),
				strconv.Itoa(d.Conversions),
				strconv.FormatFloat(d.Rate, 'f', 2, 64),
			)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
