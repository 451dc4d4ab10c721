package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/headline-goat/trendline/internal/logger"
)

var (
	dbPath    string
	dataPath  string
	profileID string
	logLevel  string
	pretty    bool

	appLogger = zerolog.Nop()
)

// Flag defaults below read the environment, so .env has to be loaded before
// any init() runs.
var _ = loadDotEnv(".env")

var rootCmd = &cobra.Command{
	Use:   "trendline",
	Short: "trendline - conversion rate charts for A/B experiments",
	Long: `📈 trendline turns daily visit and conversion counts of an A/B experiment
into day or week conversion-rate time series, with a dashboard to explore them.
Single Go binary, embedded SQLite for viewer preferences.

Running without a subcommand starts the server (same as 'trendline serve').`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		appLogger = logger.New(logger.Config{Level: logLevel, Pretty: pretty})
		logger.SetGlobalLogger(appLogger)
	},
	RunE: runServe, // Default action is to start server
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", getEnvOrDefault("TL_DB_PATH", "./trendline.db"), "database path")
	rootCmd.PersistentFlags().StringVar(&dataPath, "data", getEnvOrDefault("TL_DATA_PATH", ""), "experiment dataset (.json or .xlsx)")
	rootCmd.PersistentFlags().StringVar(&profileID, "profile", getEnvOrDefault("TL_PROFILE", ""), "preference profile (defaults to the saved CLI profile)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", getEnvOrDefault("TL_LOG_LEVEL", "info"), "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", false, "human-readable log output")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// loadDotEnv loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
	}
	return err
}
