package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/himanishpuri/maidata/pkg/logger"
	"github.com/himanishpuri/maidata/pkg/maidata"
)

// Global flags
var (
	dbPath        string
	logLevel      string
	defaultOffset float64
)

var rootCmd = &cobra.Command{
	Use:   "maidata",
	Short: "simai chart toolkit",
	Long: `maidata parses simai charts (maidata.txt), materializes them into
absolutely timed notes and keeps imported charts in a SQLite library.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// .env values are loaded after flag defaults are computed
		if !cmd.Flags().Changed("db") {
			dbPath = getEnvOrDefault("MAIDATA_DB_PATH", dbPath)
		}
		if !cmd.Flags().Changed("log-level") {
			logLevel = getEnvOrDefault(logger.EnvLevel, logLevel)
		}
		if logLevel == "" {
			return
		}
		lvl, err := logger.ParseLevel(logLevel)
		if err != nil {
			fail("Invalid log level: %v", err)
		}
		logger.SetLevel(lvl)
	},
}

func init() {
	// Global flags that can be used with any command
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", getEnvOrDefault("MAIDATA_DB_PATH", "maidata.sqlite3"), "Path to the SQLite database file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", os.Getenv(logger.EnvLevel), "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Float64Var(&defaultOffset, "offset", 0, "Offset in seconds for charts that set none")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// createService creates a new maidata service with configured options
func createService() (maidata.Service, error) {
	return maidata.NewService(
		maidata.WithDBPath(dbPath),
		maidata.WithDefaultOffset(defaultOffset),
	)
}

// mustService creates the service or exits
func mustService() maidata.Service {
	fmt.Fprintln(os.Stderr, "\n🔧 Initializing library...")
	svc, err := createService()
	if err != nil {
		fail("Failed to create service: %v", err)
	}
	return svc
}

// fail prints an error for the user, logs it and exits
func fail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(os.Stderr, "❌ %s\n", msg)
	logger.GetLogger().Error(msg)
	os.Exit(1)
}

func printBanner() {
	banner := `
                 _     _       _
 _ __ ___   __ _(_) __| | __ _| |_ __ _
| '_ ` + "`" + ` _ \ / _` + "`" + ` | |/ _` + "`" + ` |/ _` + "`" + ` | __/ _` + "`" + ` |
| | | | | | (_| | | (_| | (_| | || (_| |
|_| |_| |_|\__,_|_|\__,_|\__,_|\__\__,_|

           simai Chart Toolkit
`
	fmt.Println(banner)
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printBanner()
	}
	cobra.CheckErr(rootCmd.Execute())
}
