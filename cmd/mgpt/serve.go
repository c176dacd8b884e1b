package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/manozcodes/mgpt/internal/api"
	"github.com/manozcodes/mgpt/internal/audio"
	"github.com/manozcodes/mgpt/internal/cluster"
	"github.com/manozcodes/mgpt/internal/config"
	"github.com/manozcodes/mgpt/internal/events"
	"github.com/manozcodes/mgpt/internal/generation"
	"github.com/manozcodes/mgpt/internal/journal"
	"github.com/manozcodes/mgpt/internal/ollama"
	"github.com/manozcodes/mgpt/internal/stream"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the generation server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if servePort > 0 {
			cfg.Port = servePort
		}
		return serve(cfg)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (default from config)")
}

func serve(cfg config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Println("mgpt starting up...")

	jr, err := journal.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer jr.Close()

	// Event bus: connected clients plus the journal
	broadcaster := stream.NewBroadcaster()
	local := events.Sinks{broadcaster, jr}
	var bus events.Sink = local

	svcCfg := generation.ServiceConfig{
		Policy: generation.EveryNth(int64(cfg.FailEvery)),
		Sim: generation.SimulatorConfig{
			Timing: generation.Timing{
				Tick:          cfg.Tick,
				Steps:         cfg.Steps,
				PauseSteps:    cfg.PauseSteps,
				CompleteDelay: cfg.CompleteDelay,
				StartDelay:    cfg.StartDelay,
				FailDelay:     cfg.FailDelay,
			},
			Image: cfg.PlaceholderImage,
		},
	}

	// Redis (optional -- shares events and the failure cadence across processes)
	if cfg.RedisURL != "" {
		rdb, err := cluster.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()

		relay := cluster.NewRelay(rdb, cfg.RedisChannel, local)
		go func() {
			if err := relay.Run(ctx); err != nil {
				log.Printf("Relay: %v", err)
			}
		}()

		bus = events.Sinks{broadcaster, jr, relay}
		svcCfg.Counter = cluster.NewCounter(rdb, cfg.CounterKey)
		log.Printf("Redis connected: channel=%s origin=%s", cfg.RedisChannel, relay.Origin())
	} else {
		log.Println("Redis not configured, running single process")
	}

	// Ollama LLM (optional -- titles completed tracks)
	if cfg.OllamaURL != "" {
		client := ollama.NewClient(cfg.OllamaURL, cfg.OllamaModel)

		readyCtx, readyCancel := context.WithTimeout(ctx, 5*time.Second)
		if client.Available(readyCtx) {
			svcCfg.Sim.Titles = ollama.NewTitler(client, 0).Title
			log.Printf("Ollama connected: %s (LLM titles enabled)", client.Model())
		} else {
			log.Println("Ollama not available, using pool titles")
		}
		readyCancel()
	} else {
		log.Println("Ollama not configured (set OLLAMA_URL to enable LLM titles)")
	}

	svc := generation.NewService(ctx, bus, svcCfg)

	server := api.NewServer(cfg.Addr(), api.Deps{
		Service:     svc,
		Journal:     jr,
		Broadcaster: broadcaster,
		Synth:       audio.NewSynth(cfg.TrackDuration),
	})

	errc := make(chan error, 1)
	go func() { errc <- server.Start() }()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Println("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown: %v", err)
	}

	// Running simulations stop with ctx; wait so the journal sees their last write.
	cancel()
	svc.Wait()
	return nil
}
