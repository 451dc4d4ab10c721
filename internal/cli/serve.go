package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/headline-goat/trendline/internal/server"
	"github.com/headline-goat/trendline/internal/store"
)

var port int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the trendline HTTP server.

The server provides:
  - Dashboard with the conversion chart, legend toggles and zoom
  - JSON/msgpack API for display windows, tooltips and preferences
  - Health check endpoint

Example:
  trendline serve --data experiment.json --port 8080`,
	RunE: runServe,
}

func init() {
	defaultPort := 8080
	if p := os.Getenv("TL_PORT"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil {
			defaultPort = parsed
		}
	}

	serveCmd.Flags().IntVarP(&port, "port", "p", defaultPort, "port to listen on")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	p, err := loadPipeline()
	if err != nil {
		return err
	}

	// Open database
	s, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer s.Close()

	// Remember where the dashboard lives for 'trendline token'
	ctx := context.Background()
	if _, err := s.GetSetting(ctx, store.SettingServerURL); err == store.ErrNotFound {
		if err := s.SetSetting(ctx, store.SettingServerURL, fmt.Sprintf("http://localhost:%d", port)); err != nil {
			appLogger.Warn().Err(err).Msg("failed to save server url")
		}
	}

	srv := server.New(s, p, appLogger, port, getTokenFilePath())
	srv.SetTitle(experimentTitle())
	return srv.Start()
}

// getTokenFilePath returns the path to the token file
func getTokenFilePath() string {
	// Store token file alongside the database
	dir := filepath.Dir(dbPath)
	return filepath.Join(dir, ".trendline-token")
}
