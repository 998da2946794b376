package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "rtexp",
	Short: "Tools for the temporal-predictability reaction-time experiment",
	Long:  `rtexp checks experiment protocols and runs headless simulated sessions against them.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("protocol", "config/protocol.yaml", "Path to the protocol YAML file")
}
