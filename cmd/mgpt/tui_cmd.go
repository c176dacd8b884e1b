package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/manozcodes/mgpt/internal/client"
	"github.com/manozcodes/mgpt/internal/tui"
)

var tuiLogPath string

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive TUI",
	RunE:  runTUI,
}

func init() {
	tuiCmd.Flags().StringVar(&tuiLogPath, "log", "mgpt-tui.log", "log file (the terminal is owned by the TUI)")
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	f, err := tea.LogToFile(tuiLogPath, "mgpt")
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer cancel()

	apiClient := client.NewAPI(cfg.APIURL)
	wsURL, err := apiClient.WebSocketURL()
	if err != nil {
		return err
	}

	app := tui.New(tui.Options{
		API: apiClient,
		Receiver: client.ReceiverConfig{
			URL:      wsURL,
			Attempts: cfg.ReconnectAttempts,
			Backoff:  cfg.ReconnectBackoff,
		},
		TrackDuration: cfg.TrackDuration,
	})
	if err := app.Run(ctx); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
