// Package cmd provides the CLI commands for ShiftGate.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shiftgate/shiftgate/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "shiftgate",
	Short: "ShiftGate - time-policy resolution and approval engine",
	Long: `ShiftGate resolves time-tracking policies and validates clock actions.

It evaluates clock restrictions and break policies through a three-level
cascade (user over team over organization), validates clock-in/out and
break actions against time windows, and runs the override approval
workflow for denied actions under flexible restrictions.

Quick start:
  1. Create a config file: shiftgate.yaml
  2. Run: shiftgate serve

Configuration:
  Config is loaded from shiftgate.yaml in the current directory,
  $HOME/.shiftgate/, or /etc/shiftgate/.

  Environment variables can override config values with the SHIFTGATE_ prefix.
  Example: SHIFTGATE_SERVER_HTTP_ADDR=:9090

Commands:
  serve       Start the HTTP server
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./shiftgate.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
