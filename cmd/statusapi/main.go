// Command statusapi runs the read-only HTTP status surface against the
// durable archival store, for a deployment that runs it out-of-process
// from cmd/trader (which otherwise embeds the same surface in-process
// against its live scheduler/trailing engine/fabric).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/ees/internal/config"
	"github.com/ajitpratap0/ees/internal/db"
	"github.com/ajitpratap0/ees/internal/secrets"
	"github.com/ajitpratap0/ees/internal/session"
	"github.com/ajitpratap0/ees/internal/statusapi"
)

const databaseURLSecret = "database/url"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := secrets.NewStore(cfg.Vault.Adapter, cfg.Vault.Address, cfg.Vault.Token, cfg.Vault.MountPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to construct secret store")
	}
	if err := store.Put(ctx, databaseURLSecret, []byte(cfg.Database.GetDSN())); err != nil {
		log.Fatal().Err(err).Msg("failed to seed database DSN secret")
	}

	archive, err := db.New(ctx, store, databaseURLSecret, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to archival store")
	}
	defer archive.Close()

	sessions := db.NewPostgresSessionStore(archive)

	server := statusapi.NewServer(statusapi.Config{
		Host: cfg.API.Host,
		Port: cfg.API.Port,
		Source: statusapi.ArchiveSource{
			Sessions: sessions,
			DB:       archive,
		},
	})

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal().Err(err).Msg("status API server stopped with error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during status API shutdown")
	}
}

var _ session.StateStore = (*db.PostgresSessionStore)(nil)
