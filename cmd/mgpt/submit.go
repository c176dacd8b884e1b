package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/manozcodes/mgpt/internal/client"
	"github.com/manozcodes/mgpt/internal/config"
	"github.com/manozcodes/mgpt/internal/models"
	"github.com/manozcodes/mgpt/internal/store"
)

var submitCmd = &cobra.Command{
	Use:   "submit [prompt]",
	Short: "Submit a prompt for generation",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSubmit,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List generations, newest first",
	RunE:  runList,
}

var watch bool

func init() {
	submitCmd.Flags().BoolVarP(&watch, "watch", "w", false, "follow progress until the generation finishes")
	rootCmd.AddCommand(listCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	prompt := strings.Join(args, " ")
	apiClient := client.NewAPI(cfg.APIURL)

	if !watch {
		ctx, cancel := context.WithTimeout(context.Background(), client.DefaultClientTimeout)
		defer cancel()
		id, err := apiClient.Submit(ctx, prompt)
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return watchSubmission(ctx, cfg, apiClient, prompt)
}

// watchSubmission connects the event channel first so no progress event is
// missed, then submits and prints every change until a terminal event.
func watchSubmission(ctx context.Context, cfg config.Config, apiClient *client.API, prompt string) error {
	wsURL, err := apiClient.WebSocketURL()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	connected := make(chan struct{}, 1)
	gens := store.NewGenerations()
	receiver := client.NewReceiver(gens, client.ReceiverConfig{
		URL:      wsURL,
		Attempts: cfg.ReconnectAttempts,
		Backoff:  cfg.ReconnectBackoff,
		Resync:   apiClient,
		OnState: func(s client.ConnState) {
			if s == client.StateConnected {
				select {
				case connected <- struct{}{}:
				default:
				}
			}
		},
	})

	errc := make(chan error, 1)
	go func() { errc <- receiver.Run(ctx) }()

	select {
	case <-connected:
	case err := <-errc:
		return err
	case <-ctx.Done():
		return nil
	}

	var (
		mu   sync.Mutex
		id   string
		last = -1
	)
	done := make(chan models.Generation, 1)
	unsub := gens.Subscribe(func(list []models.Generation) {
		mu.Lock()
		defer mu.Unlock()
		for _, g := range list {
			if g.ID != id {
				continue
			}
			if g.Progress != last && !g.Status.Terminal() {
				last = g.Progress
				fmt.Printf("%s  %-10s %3d%%\n", g.ID, g.Status, g.Progress)
			}
			if g.Status.Terminal() {
				select {
				case done <- g:
				default:
				}
			}
		}
	})
	defer unsub()

	submitCtx, submitCancel := context.WithTimeout(ctx, client.DefaultClientTimeout)
	newID, err := apiClient.Submit(submitCtx, prompt)
	submitCancel()
	if err != nil {
		return err
	}
	mu.Lock()
	id = newID
	mu.Unlock()
	gens.Add(models.Generation{ID: newID, Prompt: prompt, Status: models.StatusPending, CreatedAt: time.Now().UnixMilli()})

	// A fast failure can finish before the id is known.
	if g, ok := gens.Get(newID); ok && g.Status.Terminal() {
		select {
		case done <- g:
		default:
		}
	}

	select {
	case g := <-done:
		if g.Status == models.StatusFailed {
			return fmt.Errorf("%s: %s: %s", g.ID, g.Error, g.Message)
		}
		fmt.Printf("%s  completed  %q  %s%s\n", g.ID, g.Title, apiClient.BaseURL(), g.AudioURL)
		return nil
	case err := <-errc:
		if errors.Is(err, client.ErrReconnectExhausted) {
			return fmt.Errorf("lost connection to %s: %w", cfg.APIURL, err)
		}
		return err
	case <-ctx.Done():
		return nil
	}
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), client.DefaultClientTimeout)
	defer cancel()

	gens, err := client.NewAPI(cfg.APIURL).Generations(ctx)
	if err != nil {
		return err
	}
	if len(gens) == 0 {
		fmt.Println("No generations yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tPROGRESS\tTITLE\tPROMPT")
	for _, g := range gens {
		title := g.Title
		if g.Status == models.StatusFailed {
			title = g.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%d%%\t%s\t%s\n", g.ID, g.Status, g.Progress, title, truncate(g.Prompt, 40))
	}
	return w.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
