package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nyxgw/gwcore/pkg/db"
	"github.com/nyxgw/gwcore/pkg/eventbus"
	"github.com/nyxgw/gwcore/pkg/executor"
	"github.com/nyxgw/gwcore/pkg/rules"
	"github.com/nyxgw/gwcore/pkg/statecache"
	"github.com/nyxgw/gwcore/pkg/store"
	"github.com/nyxgw/gwcore/pkg/zigbee"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	dbPath := flag.String("db", "", "Path to engine settings database (default: ~/.config/gwcore/gwcore.db)")
	storePath := flag.String("store", "", "Path to rule store blob (default: alongside -db)")
	flag.Parse()

	ctx := context.Background()

	database, err := db.Open(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}()
	log.Info().Str("path", database.Path()).Msg("Database opened")

	if err := database.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	needsBootstrap, err := database.NeedsBootstrap(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to check bootstrap status")
	}
	if needsBootstrap {
		log.Info().Msg("First run detected, bootstrapping database...")
		if err := database.Bootstrap(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to bootstrap database")
		}
	}

	settings, err := database.Settings().Get(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load engine settings")
	}
	log.Info().
		Int("ring_capacity", settings.RingCapacity).
		Int("queue_capacity", settings.QueueCapacity).
		Int("store_capacity", settings.StoreCapacity).
		Float64("condition_epsilon", settings.ConditionEpsilon).
		Msg("Engine settings loaded")

	rulesPath := *storePath
	if rulesPath == "" {
		rulesPath = filepath.Join(filepath.Dir(database.Path()), "rules.bin")
	}
	ruleStore, err := store.Open(rulesPath, settings.StoreCapacity)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open rule store")
	}
	log.Info().Str("path", rulesPath).Msg("Rule store opened")

	bus := eventbus.New()
	cache := statecache.New()

	// No radio transport is wired in yet, so every dispatch fails closed
	// with ErrNotConnected rather than reaching real hardware.
	commander := zigbee.NewNullCommander()
	exec := executor.New(commander)

	engine := rules.New(ruleStore, bus, cache, exec, settings.QueueCapacity, settings.ConditionEpsilon)
	engine.Start(ctx)
	log.Info().Msg("Rules engine started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutting down...")
}
