package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/headline-goat/trendline/internal/dataset"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Convert the dataset between JSON and Excel",
	Long: `Validate the dataset named by --data and write it out as JSON or as an
Excel workbook with 'variations' and 'days' sheets. The format follows the
output extension.

Examples:
  trendline export --data experiment.json --out experiment.xlsx
  trendline export --data experiment.xlsx --out experiment.json
  trendline export --data experiment.xlsx --out - > experiment.json`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "-", "output file (.json or .xlsx), or - for JSON on stdout")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	if dataPath == "" {
		return errNoDataset
	}

	ds, err := dataset.LoadFile(dataPath)
	if err != nil {
		return err
	}

	if exportOut == "-" {
		return exportJSON(cmd.OutOrStdout(), ds)
	}

	var write func(io.Writer, *dataset.Dataset) error
	switch strings.ToLower(filepath.Ext(exportOut)) {
	case ".json":
		write = exportJSON
	case ".xlsx":
		write = exportWorkbook
	default:
		return fmt.Errorf("invalid output: must end in '.json' or '.xlsx'")
	}

	f, err := os.Create(exportOut)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := write(f, ds); err != nil {
		f.Close()
		os.Remove(exportOut)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d variations, %d days)\n", exportOut, len(ds.Variations), len(ds.Days))
	return nil
}

func exportJSON(w io.Writer, ds *dataset.Dataset) error {
	data, err := ds.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write dataset: %w", err)
	}
	return nil
}

func exportWorkbook(w io.Writer, ds *dataset.Dataset) error {
	if err := ds.WriteWorkbook(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
