// Package cli holds the chatd command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dolsel/livetv/internal/app"
)

var build = app.Build{Version: "dev", Commit: "none", Date: "unknown"}

var rootCmd = &cobra.Command{
	Use:   "chatd",
	Short: "chatd stores and delivers channel and private chat messages",
	Long: `chatd is a polling-friendly chat message engine. It keeps channel
history, private threads with read receipts and channel presence in an
embedded pebble store and serves them over HTTP.`,
	SilenceUsage: true,
}

// Execute runs the command tree. main sets the build metadata first.
func Execute(b app.Build) {
	build = b
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", b.Version, b.Commit, b.Date)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path (YAML)")
}

func configPath(cmd *cobra.Command) string {
	p, _ := cmd.Flags().GetString("config")
	if p == "" {
		p = os.Getenv("CHATDB_CONFIG")
	}
	return p
}
