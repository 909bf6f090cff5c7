// The coordinator serves the room lifecycle API over a shared state
// store. Game flow itself is client-driven; this binary covers thin
// clients and operational chores like the stale-room sweep.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg := loadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services, err := setupServices(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up services")
	}
	defer services.Close()

	log.Info().
		Str("store", cfg.StoreBackend).
		Str("nats_url", cfg.NATSURL).
		Str("port", cfg.Port).
		Msg("starting room coordinator")

	go runSweeper(ctx, cfg, services)

	server := setupServer(cfg, services)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	cancel()
	log.Info().Msg("room coordinator shutdown complete")
}

// hookReaper is implemented by store backends that persist disconnect
// hooks server-side and need a process to fire them for dead clients.
type hookReaper interface {
	ReapExpiredHooks(ctx context.Context) error
}

// runSweeper periodically collects rooms with no connected humans or no
// recent activity, and fires the disconnect hooks of expired clients on
// backends that queue them.
func runSweeper(ctx context.Context, cfg Config, services *Services) {
	ticker := time.NewTicker(cfg.sweepInterval())
	defer ticker.Stop()

	reaper, _ := services.Store.(hookReaper)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, time.Minute)
			if reaper != nil {
				if err := reaper.ReapExpiredHooks(sweepCtx); err != nil {
					log.Warn().Err(err).Msg("disconnect hook reap failed")
				}
			}
			if err := services.Rooms.SweepStale(sweepCtx); err != nil {
				log.Warn().Err(err).Msg("stale room sweep failed")
			}
			cancel()
		}
	}
}
