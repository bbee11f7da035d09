package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/platformsec/tagsentry/config"
)

var (
	version    = "0.1.0"
	configPath string

	rootCmd = &cobra.Command{
		Use:   "tagsentry",
		Short: "AWS tag compliance engine",
		Long: `Tagsentry - AWS tag compliance engine

Tagsentry watches resource creation events from CloudTrail, checks the
tags of newly created resources against organizational tagging rules,
and alerts the owning teams when resources are non-compliant.

Check single events, serve a queue of them continuously, or backfill
a time window from CloudTrail history.`,
		Version: version,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate(`Tagsentry {{.Version}} - AWS tag compliance engine
`)
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (YAML)")
}

// loadConfig loads the file named by --config, or defaults plus env.
func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}
