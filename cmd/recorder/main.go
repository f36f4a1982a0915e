package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bbangert/zilch/buildinfo"
	"github.com/bbangert/zilch/internal/recorder"
	"github.com/bbangert/zilch/pkg/logging"
	"github.com/bbangert/zilch/pkg/metrics"
	"github.com/bbangert/zilch/pkg/store"
	"github.com/bbangert/zilch/pkg/telemetry"
	"github.com/bbangert/zilch/pkg/telemetry/storage"
	"github.com/bbangert/zilch/pkg/transport"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: recorder <bind-uri> <database-uri>")
		os.Exit(1)
	}
	bindURI := os.Args[1]
	databaseURI := os.Args[2]

	cfg := setupConfig()
	logging.SetupLogger("recorder", buildinfo.GitCommit, cfg.Log.Debug, cfg.Log.Human)
	if err := metrics.SetupInstrumentation(":"+cfg.Metrics.Port, "recorder"); err != nil {
		log.Fatal().Err(err).Str("port", cfg.Metrics.Port).Msg("could not setup instrumentation")
	}

	flushInterval, err := time.ParseDuration(cfg.Ingest.FlushInterval)
	if err != nil {
		log.Fatal().Err(err).Msgf("flush interval has invalid format: %s", cfg.Ingest.FlushInterval)
	}

	log.Info().
		Str("bind_uri", bindURI).
		Str("database_uri", databaseURI).
		Str("git_commit", buildinfo.GitCommit).
		Msg("starting recorder")

	ctx, cancel := recorder.NotifyContext(context.Background())
	defer cancel()

	engine := "sqlite3"
	if strings.HasPrefix(databaseURI, "postgres://") {
		engine = "postgres"
	}

	eventStore, err := store.Open(ctx, engine, databaseURI)
	if err != nil {
		log.Fatal().Err(err).Msg("opening event store")
	}
	defer func() {
		if err := eventStore.Close(); err != nil {
			log.Error().Err(err).Msg("closing event store")
		}
	}()

	telemetryDB, err := storage.New(databaseURI)
	if err != nil {
		log.Fatal().Err(err).Msg("opening telemetry store")
	}
	defer func() {
		if err := telemetryDB.Close(); err != nil {
			log.Error().Err(err).Msg("closing telemetry store")
		}
	}()
	telemetry.SetMetricStore(telemetryDB)
	if err := telemetry.Collect(ctx, buildinfo.GetSummary()); err != nil {
		log.Error().Err(err).Msg("collecting git summary metric")
	}

	sub, err := transport.Subscribe(bindURI, cfg.Ingest.Subject, cfg.Ingest.QueueSize)
	if err != nil {
		log.Fatal().Err(err).Msg("subscribing to transport")
	}
	defer func() {
		if err := sub.Close(); err != nil {
			log.Error().Err(err).Msg("closing subscription")
		}
	}()

	loopLog := log.With().Str("component", "recorder.loop").Logger()
	if err := recorder.Run(ctx, recorder.Config{
		Sub:           sub,
		Store:         eventStore,
		FlushInterval: flushInterval,
		Log:           loopLog,
	}); err != nil {
		log.Fatal().Err(err).Msg("ingest loop exited with error")
	}

	log.Info().Msg("recorder stopped")
}
