package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "skiff",
	Short: "Skiff - Lightweight distributed runtime orchestrator",
	Long: `Skiff coordinates workloads across remote nodes from a single
control plane. Nodes keep their own volumes and logs on local disk;
the control plane holds the metadata registry and retrieves node-local
data on demand over the node uplink.`,
	Version: Version,
}

var configPath string

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Skiff version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(controlPlaneCmd)
	rootCmd.AddCommand(agentCmd)
}
