package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "0.1.0-dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "diskdash",
	Short: "Disk health dashboard settings and date-range service",
	Long: `diskdash serves the dashboard's user settings and the date-range picker
used to scope history charts and report views.

Settings are stored in a local YAML file, or mirrored from an upstream
dashboard backend when one is configured.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "/etc/diskdash/config.yaml", "Path to config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
