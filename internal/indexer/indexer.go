package indexer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"media-index/internal/database"
	"media-index/internal/filesystem"
	"media-index/internal/geocode"
	"media-index/internal/logging"
	"media-index/internal/metadata"
	"media-index/internal/workers"
)

// ErrScanInProgress is returned when a scan is requested while one is running.
var ErrScanInProgress = errors.New("indexer: scan already in progress")

// StatusRejected marks a scan that never started because another was running.
const StatusRejected database.ScanStatus = "rejected"

const (
	stateIdle int32 = iota
	stateScanning
)

// Store is the part of the record store the indexer writes to.
type Store interface {
	UpsertFile(ctx context.Context, rec *database.MediaRecord) (bool, error)
	UpsertFragment(ctx context.Context, fileID int64, frag *metadata.Fragment) error
	DeleteFragment(ctx context.Context, fileID int64) error
	GetFileByPath(ctx context.Context, path string) (*database.MediaRecord, error)
	SetRating(ctx context.Context, path string, rating int) error
	BeginScan(ctx context.Context, folderPath string, folders []string, scanType string) (int64, error)
	FinishScan(ctx context.Context, id int64, counts database.ScanCounts, status database.ScanStatus) error
	CalculateStats(ctx context.Context) (database.Stats, error)
}

// Geocoder resolves coordinates to a place.
type Geocoder interface {
	Resolve(ctx context.Context, lat, lon float64) (geocode.Location, bool)
	Stats() geocode.CacheStats
}

// Throttle pauses file processing under resource pressure. Wait returns an
// error only when ctx ends.
type Throttle interface {
	Wait(ctx context.Context) error
}

// Options tunes an Indexer. The zero value is usable.
type Options struct {
	// Workers bounds concurrent directory reads and file probes
	// (0 = workers.ForIO(8)).
	Workers int
	// WriteRatingsToFile also stores ratings in the file's own metadata
	// where the format supports it.
	WriteRatingsToFile bool
	// Retry is used for every stat and directory read.
	Retry filesystem.RetryConfig
	// IncludeHidden disables skipping of dot-files and dot-directories.
	IncludeHidden bool
	// Throttle, when set, is consulted before each file is processed.
	Throttle Throttle
}

// Job describes what a scan covers. A nil MaxDepth walks the whole tree;
// 0 limits the scan to files directly inside each scan root.
type Job struct {
	BasePath string   `json:"basePath"`
	Folders  []string `json:"folders,omitempty"`
	MaxDepth *int     `json:"maxDepth,omitempty"`
}

// depthLimit returns the walker limit for the job, -1 for none.
func (j Job) depthLimit() int {
	if j.MaxDepth == nil || *j.MaxDepth < 0 {
		return -1
	}
	return *j.MaxDepth
}

// ScanResult summarizes one scan request.
type ScanResult struct {
	ID             int64               `json:"id,omitempty"`
	Status         database.ScanStatus `json:"status"`
	Added          int                 `json:"added"`
	Updated        int                 `json:"updated"`
	Failed         int                 `json:"failed"`
	SkippedFolders []string            `json:"skippedFolders,omitempty"`
	StartedAt      time.Time           `json:"startedAt"`
	Duration       time.Duration       `json:"duration"`
	Err            error               `json:"-"`
}

// Processed returns the number of files written to the store.
func (r ScanResult) Processed() int {
	return r.Added + r.Updated
}

// Stats combines store totals with the indexer's live state.
type Stats struct {
	database.Stats
	Scanning bool                `json:"scanning"`
	Geocode  *geocode.CacheStats `json:"geocode,omitempty"`
	LastScan *ScanResult         `json:"lastScan,omitempty"`
}

// Indexer runs scans against a Store. It is safe for concurrent use; scans
// are mutually exclusive.
type Indexer struct {
	store    Store
	geocoder Geocoder
	pool     *workers.Pool
	opts     Options

	state    atomic.Int32
	lastScan atomic.Pointer[ScanResult]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an Indexer. geocoder may be nil to disable place lookups.
func New(store Store, geocoder Geocoder, opts Options) *Indexer {
	if opts.Workers <= 0 {
		opts.Workers = workers.ForIO(8)
	}
	if opts.Retry == (filesystem.RetryConfig{}) {
		opts.Retry = filesystem.DefaultRetryConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Indexer{
		store:    store,
		geocoder: geocoder,
		pool:     workers.NewPool(opts.Workers),
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Close interrupts any running scan, waits for background scans to finish
// and releases the worker pool.
func (idx *Indexer) Close() {
	idx.cancel()
	idx.wg.Wait()
	idx.pool.Close()
}

// IsScanning reports whether a scan is in flight.
func (idx *Indexer) IsScanning() bool {
	return idx.state.Load() == stateScanning
}

// LastScan returns the result of the most recent scan that started, or nil.
func (idx *Indexer) LastScan() *ScanResult {
	return idx.lastScan.Load()
}

func (idx *Indexer) tryStart() bool {
	return idx.state.CompareAndSwap(stateIdle, stateScanning)
}

func (idx *Indexer) finish() {
	idx.state.Store(stateIdle)
}

// Scan runs a scan to completion and returns its result. A scan already in
// flight causes an immediate StatusRejected result with ErrScanInProgress.
func (idx *Indexer) Scan(ctx context.Context, job Job) ScanResult {
	if !idx.tryStart() {
		return idx.rejected()
	}
	defer idx.finish()

	return idx.run(ctx, job)
}

// TriggerScan starts a scan in the background. It returns ErrScanInProgress
// without starting anything when a scan is already running.
func (idx *Indexer) TriggerScan(job Job) error {
	if !idx.tryStart() {
		idx.rejected()
		return ErrScanInProgress
	}

	idx.wg.Add(1)
	go func() {
		defer idx.wg.Done()
		defer idx.finish()
		idx.run(idx.ctx, job)
	}()
	return nil
}

// Schedule scans job at startup (when onStartup is set) and then every
// interval (when positive) until ctx ends. Ticks that find a scan running
// are skipped.
func (idx *Indexer) Schedule(ctx context.Context, job Job, onStartup bool, interval time.Duration) {
	if onStartup {
		logging.Info("Starting initial scan of %s", job.BasePath)
		idx.Scan(ctx, job)
	}

	if interval <= 0 {
		<-ctx.Done()
		return
	}

	logging.Info("Periodic scan enabled (interval: %v)", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logging.Debug("Periodic scan triggered")
			idx.Scan(ctx, job)
		case <-ctx.Done():
			return
		case <-idx.ctx.Done():
			return
		}
	}
}

// Stats returns store totals plus live scan and geocoding state. Store
// failures are logged and leave the totals zeroed.
func (idx *Indexer) Stats(ctx context.Context) Stats {
	stats := Stats{
		Scanning: idx.IsScanning(),
		LastScan: idx.LastScan(),
	}

	dbStats, err := idx.store.CalculateStats(ctx)
	if err != nil {
		logging.Error("Failed to calculate stats: %v", err)
	} else {
		stats.Stats = dbStats
	}

	if idx.geocoder != nil {
		gs := idx.geocoder.Stats()
		stats.Geocode = &gs
	}
	return stats
}

// WriteRating records rating for path in the store and reports whether it
// was stored. When file writes are enabled the rating is also written into
// the file itself; that write is best effort and does not affect the result.
// The result can therefore be true for files whose format cannot carry a
// rating, such as videos, where metadata.WriteRating reports false.
func (idx *Indexer) WriteRating(ctx context.Context, path string, rating int) bool {
	if !metadata.ValidRating(rating) {
		logging.Warn("Ignoring rating %d for %s: must be between 0 and 5", rating, path)
		return false
	}

	if err := idx.store.SetRating(ctx, path, rating); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			logging.Warn("Cannot rate %s: not indexed", path)
		} else {
			logging.Error("Failed to store rating for %s: %v", path, err)
		}
		return false
	}

	if idx.opts.WriteRatingsToFile {
		rec, err := idx.store.GetFileByPath(ctx, path)
		if err != nil {
			logging.Error("Failed to look up %s after rating: %v", path, err)
			return true
		}
		written, err := workers.Run(ctx, idx.pool, func() (bool, error) {
			return metadata.WriteRating(path, rec.Type, rating), nil
		})
		if err != nil || !written {
			logging.Debug("Rating for %s kept in the index only", path)
		}
	}

	return true
}
