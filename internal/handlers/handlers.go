package handlers

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"media-index/internal/database"
	"media-index/internal/indexer"
	"media-index/internal/startup"
)

// Indexer is the scan pipeline surface the HTTP layer drives.
type Indexer interface {
	TriggerScan(job indexer.Job) error
	IsScanning() bool
	LastScan() *indexer.ScanResult
	Stats(ctx context.Context) indexer.Stats
	WriteRating(ctx context.Context, path string, rating int) bool
}

// Store is the read and user-field side of the record store.
type Store interface {
	GetFileByPath(ctx context.Context, path string) (*database.MediaRecord, error)
	SetFavorite(ctx context.Context, path string, favorite bool) error
	RandomFiles(ctx context.Context, opts database.RandomOptions) ([]database.MediaRecord, error)
	RecentScans(ctx context.Context, limit int) ([]database.ScanRecord, error)
	CountFiles(ctx context.Context) (int, error)
}

type Handlers struct {
	indexer Indexer
	store   Store
	// defaultJob is the scan started when a request does not narrow it.
	defaultJob indexer.Job
}

func New(idx Indexer, store Store, defaultJob indexer.Job) *Handlers {
	return &Handlers{
		indexer:    idx,
		store:      store,
		defaultJob: defaultJob,
	}
}

// GetVersion reports the build of the running indexer.
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, startup.GetBuildInfo())
}

// MetricsHandler exposes scan, geocode and store metrics from the default
// registry.
func (h *Handlers) MetricsHandler() http.Handler {
	return promhttp.Handler()
}
