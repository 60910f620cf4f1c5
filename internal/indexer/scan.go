package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"media-index/internal/database"
	"media-index/internal/filesystem"
	"media-index/internal/geocode"
	"media-index/internal/logging"
	"media-index/internal/metadata"
	"media-index/internal/metrics"
	"media-index/internal/workers"
)

// errStoreWrite marks a per-file store failure.
var errStoreWrite = errors.New("indexer: store write failed")

func (idx *Indexer) rejected() ScanResult {
	logging.Warn("Scan already in progress, rejecting request")
	metrics.ScanRunsTotal.WithLabelValues("rejected").Inc()
	return ScanResult{
		Status:    StatusRejected,
		StartedAt: time.Now(),
		Err:       ErrScanInProgress,
	}
}

// run performs a scan. The caller holds the scanning state.
func (idx *Indexer) run(ctx context.Context, job Job) (result ScanResult) {
	result = ScanResult{Status: database.ScanRunning, StartedAt: time.Now()}
	running := result
	idx.lastScan.Store(&running)

	metrics.ScanIsRunning.Set(1)
	defer metrics.ScanIsRunning.Set(0)

	logging.Info("Starting full scan of %s", job.BasePath)

	// History must be written even when ctx has already been cancelled.
	histCtx := context.WithoutCancel(ctx)

	id, err := idx.store.BeginScan(histCtx, job.BasePath, job.Folders, database.ScanTypeFull)
	if err != nil {
		logging.Error("Failed to record scan start: %v", err)
		result.Status = database.ScanFailed
		result.Err = err
		idx.complete(&result)
		return result
	}
	result.ID = id

	defer func() {
		if r := recover(); r != nil {
			logging.Error("Scan %d panicked: %v", id, r)
			result.Status = database.ScanFailed
			result.Err = fmt.Errorf("indexer: scan panicked: %v", r)
		}

		counts := database.ScanCounts{Added: result.Added, Updated: result.Updated}
		if err := idx.store.FinishScan(histCtx, id, counts, result.Status); err != nil {
			logging.Error("Failed to record scan %d end: %v", id, err)
		}
		idx.complete(&result)
	}()

	result.Err = idx.scanRoots(ctx, job, &result)
	if result.Err != nil {
		logging.Error("Scan %d failed: %v", id, result.Err)
		result.Status = database.ScanFailed
		return result
	}

	result.Status = database.ScanCompleted
	return result
}

// complete publishes result and its metrics.
func (idx *Indexer) complete(result *ScanResult) {
	result.Duration = time.Since(result.StartedAt)

	final := *result
	idx.lastScan.Store(&final)

	metrics.ScanRunsTotal.WithLabelValues(string(result.Status)).Inc()
	metrics.ScanLastRunTimestamp.Set(float64(time.Now().Unix()))
	metrics.ScanLastRunDuration.Set(result.Duration.Seconds())

	logging.Info("Scan %s: %d added, %d updated, %d failed in %v",
		result.Status, result.Added, result.Updated, result.Failed, result.Duration.Round(time.Millisecond))
}

func (idx *Indexer) scanRoots(ctx context.Context, job Job, result *ScanResult) error {
	roots, skipped, err := idx.resolveRoots(job)
	if err != nil {
		return err
	}
	result.SkippedFolders = skipped

	w := &walker{
		pool:       idx.pool,
		retry:      idx.opts.Retry,
		maxDepth:   job.depthLimit(),
		skipHidden: !idx.opts.IncludeHidden,
	}

	for _, root := range roots {
		logging.Info("Scanning: %s", root)

		files, err := w.walk(ctx, root)
		if err != nil {
			return err
		}

		for i, f := range files {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("scan interrupted: %w", err)
			}
			if idx.opts.Throttle != nil {
				if err := idx.opts.Throttle.Wait(ctx); err != nil {
					return fmt.Errorf("scan interrupted: %w", err)
				}
			}

			added, err := idx.processFile(ctx, f)
			switch {
			case err != nil:
				result.Failed++
				metrics.ScanFilesProcessed.WithLabelValues("failed").Inc()
			case added:
				result.Added++
				metrics.ScanFilesProcessed.WithLabelValues("added").Inc()
			default:
				result.Updated++
				metrics.ScanFilesProcessed.WithLabelValues("updated").Inc()
			}

			if (i+1)%100 == 0 {
				logging.Debug("Indexed %d/%d files in %s", i+1, len(files), root)
			}
		}
	}
	return nil
}

// resolveRoots returns the directories to walk. The base path must exist;
// requested sub-folders that are missing, not directories, or outside the
// base path are skipped.
func (idx *Indexer) resolveRoots(job Job) (roots, skipped []string, err error) {
	base := filepath.Clean(job.BasePath)

	info, err := filesystem.StatWithRetry(base, idx.opts.Retry)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot access base path %s: %w", base, err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("base path %s is not a directory", base)
	}

	if len(job.Folders) == 0 {
		return []string{base}, nil, nil
	}

	for _, folder := range job.Folders {
		path := filepath.Join(base, folder)

		rel, err := filepath.Rel(base, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			logging.Warn("Watched folder %s is outside %s, skipping", folder, base)
			skipped = append(skipped, folder)
			metrics.ScanFoldersSkipped.Inc()
			continue
		}

		info, err := filesystem.StatWithRetry(path, idx.opts.Retry)
		if err != nil || !info.IsDir() {
			logging.Warn("Watched folder not found: %s", path)
			skipped = append(skipped, folder)
			metrics.ScanFoldersSkipped.Inc()
			continue
		}
		roots = append(roots, path)
	}
	return roots, skipped, nil
}

// probe is what the worker pool reads from disk for one file.
type probe struct {
	info    os.FileInfo
	frag    metadata.Fragment
	hasFrag bool
}

// processFile indexes one file and reports whether it was new to the store.
func (idx *Indexer) processFile(ctx context.Context, f mediaFile) (bool, error) {
	p, err := workers.Run(ctx, idx.pool, func() (probe, error) {
		info, err := filesystem.StatWithRetry(f.path, idx.opts.Retry)
		if err != nil {
			return probe{}, err
		}
		frag, ok := metadata.Extract(f.path, f.fileType)
		return probe{info: info, frag: frag, hasFrag: ok}, nil
	})
	if err != nil {
		logging.Warn("Failed to read %s: %v", f.path, err)
		return false, err
	}

	if p.hasFrag && p.frag.HasCoordinates() && idx.geocoder != nil {
		if loc, ok := idx.geocoder.Resolve(ctx, *p.frag.Latitude, *p.frag.Longitude); ok && loc != (geocode.Location{}) {
			p.frag.Place = &metadata.Place{Name: loc.Name, City: loc.City, Country: loc.Country}
		}
	}

	rec := &database.MediaRecord{
		Path:        f.path,
		Filename:    filepath.Base(f.path),
		Folder:      filepath.Dir(f.path),
		Type:        f.fileType,
		Size:        p.info.Size(),
		ModTime:     p.info.ModTime(),
		CreatedTime: changeTime(p.info),
		LastScanned: time.Now(),
	}

	added, err := idx.store.UpsertFile(ctx, rec)
	if err != nil {
		logging.Error("Failed to add file to index: %s - %v", f.path, err)
		return false, errors.Join(errStoreWrite, err)
	}

	if p.hasFrag && !p.frag.IsEmpty() {
		err = idx.store.UpsertFragment(ctx, rec.ID, &p.frag)
	} else {
		err = idx.store.DeleteFragment(ctx, rec.ID)
	}
	if err != nil {
		logging.Error("Failed to store metadata for %s: %v", f.path, err)
		return false, errors.Join(errStoreWrite, err)
	}

	return added, nil
}
