// Command specdeck drives agent chat streams from the terminal: tail a live
// feature conversation, or run the scriptable stub agent endpoint.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Global flags (persistent across all commands)
var (
	configPath string
	endpoint   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "specdeck",
	Short: "Agent stream orchestration for feature specs",
	Long: `specdeck multiplexes agent chat streams over independent features.

"tail" sends a prompt on a feature and follows the transcript live.
"serve" runs a scripted stand-in for the agent backend, useful for
development and demos without a live agent.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: specdeck.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "Agent backend base URL")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func setupLogging() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
