package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"media-index/internal/filesystem"
	"media-index/internal/logging"
	"media-index/internal/mediatypes"
	"media-index/internal/workers"
)

// mediaFile is a file found by the walker.
type mediaFile struct {
	path     string
	fileType mediatypes.FileType
}

// walker enumerates media files under a root. Directory reads run on the
// worker pool, one level of the tree at a time.
type walker struct {
	pool       *workers.Pool
	retry      filesystem.RetryConfig
	maxDepth   int
	skipHidden bool
}

type dirJob struct {
	path  string
	depth int
}

type dirListing struct {
	job     dirJob
	entries <-chan workers.Result[[]os.DirEntry]
}

// walk returns every media file under root in lexical order. Directories
// deeper than maxDepth below root are not entered (a negative maxDepth means
// no limit, 0 keeps the walk to root itself). Failing to read root is an error; failing to read a directory
// below it is logged and that directory is skipped.
func (w *walker) walk(ctx context.Context, root string) ([]mediaFile, error) {
	start := time.Now()

	var files []mediaFile
	var folders int
	level := []dirJob{{path: root}}

	for len(level) > 0 {
		if err := ctx.Err(); err != nil {
			return files, err
		}

		listings := make([]dirListing, 0, len(level))
		for _, job := range level {
			listings = append(listings, dirListing{
				job: job,
				entries: workers.Submit(ctx, w.pool, func() ([]os.DirEntry, error) {
					return filesystem.ReadDirWithRetry(job.path, w.retry)
				}),
			})
		}

		var next []dirJob
		for _, l := range listings {
			res := <-l.entries
			if res.Err != nil {
				if l.job.path == root {
					return nil, fmt.Errorf("failed to read %s: %w", root, res.Err)
				}
				logging.Warn("Error reading directory %s: %v", l.job.path, res.Err)
				continue
			}
			folders++

			for _, entry := range res.Value {
				name := entry.Name()
				if w.skipHidden && strings.HasPrefix(name, ".") {
					continue
				}

				path := filepath.Join(l.job.path, name)
				if entry.IsDir() {
					if w.maxDepth < 0 || l.job.depth+1 <= w.maxDepth {
						next = append(next, dirJob{path: path, depth: l.job.depth + 1})
					}
					continue
				}

				fileType := mediatypes.Classify(name)
				if fileType == mediatypes.FileTypeOther {
					continue
				}
				files = append(files, mediaFile{path: path, fileType: fileType})
			}
		}
		level = next
	}

	slices.SortFunc(files, func(a, b mediaFile) int {
		return strings.Compare(a.path, b.path)
	})

	logging.Debug("Walked %s: %d media files in %d folders in %v", root, len(files), folders, time.Since(start))
	return files, nil
}
