package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/headline-goat/trendline/internal/store"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Show dashboard URL with access token",
	Long: `Show the dashboard URL with your access token.

Use this when you've scrolled past the startup message or need to
share the dashboard link.

Example:
  trendline token`,
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(getTokenFilePath())
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no server running. Start with: trendline serve")
		}
		return fmt.Errorf("failed to read token file: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return fmt.Errorf("token file is empty. Restart the server with: trendline serve")
	}

	// Try to get the server URL from settings, falling back to the default port
	serverURL := "http://localhost:8080"
	err = withStore(func(s *store.SQLiteStore) error {
		url, err := s.GetSetting(context.Background(), store.SettingServerURL)
		if err == nil && url != "" {
			serverURL = url
		}
		return nil
	})
	if err != nil {
		appLogger.Debug().Err(err).Str("db", dbPath).Msg("no stored server url, using default")
	}

	printDashboardURL(cmd.OutOrStdout(), serverURL, token)
	return nil
}

func printDashboardURL(w io.Writer, serverURL, token string) {
	fmt.Fprintf(w, "Dashboard: %s/dashboard?token=%s\n", strings.TrimRight(serverURL, "/"), token)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Tip: Bookmark this URL or run 'trendline token' anytime.")
}
