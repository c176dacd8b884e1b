package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/manozcodes/mgpt/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "mgpt",
	Short: "mgpt - mock AI music generation backend",
	Long: `mgpt accepts song prompts, simulates their generation and streams
lifecycle events to connected clients.`,
	SilenceUsage: true,
	// No RunE - defaults to showing help when no subcommand is provided
}

var (
	apiAddr    string
	configPath string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", "", "API server address (default from config)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(submitCmd)
}

// loadConfig reads --config and applies --api over it.
func loadConfig() (config.Config, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if apiAddr != "" {
		cfg.APIURL = apiAddr
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
