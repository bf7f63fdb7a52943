package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-commerce-stock/internal/config"
	"github.com/ariefcatur/go-commerce-stock/internal/postgres"
	"github.com/ariefcatur/go-commerce-stock/internal/reaper"
	"github.com/ariefcatur/go-commerce-stock/internal/reservation"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", cfg.ServiceName+"-reaper").Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMax)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer pool.Close()

	store := postgres.NewStore(pool)
	rp := reaper.New(reservation.NewManager(store), cfg.SweepInterval, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return rp.Run(gctx) })
	g.Go(func() error {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sig:
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("reaper exit")
	}
	log.Info().Msg("reaper stopped")
}
