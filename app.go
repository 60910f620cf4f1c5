package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"media-index/internal/database"
	"media-index/internal/geocode"
	"media-index/internal/indexer"
	"media-index/internal/logging"
	"media-index/internal/memory"
	"media-index/internal/startup"
	"media-index/internal/workers"
)

// app holds the components shared by every command. It is built once per
// process and passed explicitly.
type app struct {
	cfg      *startup.Config
	db       *database.Database
	geocoder *geocode.Cache
	indexer  *indexer.Indexer
	memory   *memory.Monitor
	workers  int
}

func openApp(ctx context.Context, cfg *startup.Config) (*app, error) {
	if err := os.MkdirAll(cfg.DatabaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dbStart := time.Now()
	db, err := database.New(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	startup.LogDatabaseInit(time.Since(dbStart))

	a := &app{
		cfg:     cfg,
		db:      db,
		memory:  memory.NewMonitor(memory.DefaultConfig()),
		workers: workers.ForIO(8),
	}
	a.memory.Start()

	// A nil *geocode.Cache must not reach the indexer as a non-nil interface
	var geo indexer.Geocoder
	startup.LogGeocoderInit(cfg)
	if cfg.GeocodeEnabled {
		a.geocoder = geocode.NewCache(db, geocode.NewClient(cfg.GeocodeConfig()), geocode.DefaultPrecision)
		geo = a.geocoder
	}

	startup.LogIndexerInit(cfg, a.workers)
	a.indexer = indexer.New(db, geo, indexer.Options{
		Workers:            a.workers,
		WriteRatingsToFile: cfg.WriteRatingsToFile,
		Throttle:           a.memory,
	})
	return a, nil
}

// Close stops the indexer and closes the database.
func (a *app) Close() {
	a.memory.Stop()
	a.indexer.Close()
	if err := a.db.Close(); err != nil {
		logging.Warn("Failed to close database: %v", err)
	}
}
