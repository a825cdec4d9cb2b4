// Command discat downloads a Discogs collection incrementally and writes
// derived values back to custom fields and folders.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "discat",
	Short: "Incremental Discogs collection sync",
	Long: `discat keeps a local copy of a Discogs collection up to date and
writes values derived from release metadata back to custom fields and
folders. Every write is previewed before it runs.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file (default: discat.yaml or $DISCAT_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
