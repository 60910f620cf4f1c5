package indexer

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-index/internal/database"
	"media-index/internal/geocode"
	"media-index/internal/mediatypes"
	"media-index/internal/metadata"
	mdt "media-index/internal/metadata/metadatatest"
)

type fakeGeocoder struct {
	mu    sync.Mutex
	calls int
	loc   geocode.Location
	ok    bool
}

func (g *fakeGeocoder) Resolve(_ context.Context, _, _ float64) (geocode.Location, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.loc, g.ok
}

func (g *fakeGeocoder) Stats() geocode.CacheStats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return geocode.CacheStats{Misses: int64(g.calls)}
}

func newYorkGeocoder() *fakeGeocoder {
	return &fakeGeocoder{
		loc: geocode.Location{Name: "City Hall", City: "New York", Country: "United States"},
		ok:  true,
	}
}

func setupStore(t *testing.T) *database.Database {
	t.Helper()

	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "media_index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func setupIndexer(t *testing.T, store Store, geocoder Geocoder, opts Options) *Indexer {
	t.Helper()

	if opts.Workers == 0 {
		opts.Workers = 2
	}
	idx := New(store, geocoder, opts)
	t.Cleanup(idx.Close)
	return idx
}

// newLibrary lays out a small media tree and returns its root.
func newLibrary(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	mdt.JPEG(t, root, "2023/nyc.jpg", mdt.NewYork())
	mdt.PlainJPEG(t, root, "2023/plain.jpg")
	mdt.WriteFile(t, root, "2024/clip.mp4", mdt.MP4(mdt.Mvhd(3000000000, 0)))
	mdt.WriteFile(t, root, "2024/notes.txt", []byte("not media"))
	mdt.PlainJPEG(t, root, ".thumbnails/hidden.jpg")
	return root
}

func TestScanIndexesLibrary(t *testing.T) {
	db := setupStore(t)
	geo := newYorkGeocoder()
	idx := setupIndexer(t, db, geo, Options{})
	root := newLibrary(t)
	ctx := context.Background()

	result := idx.Scan(ctx, Job{BasePath: root})
	require.NoError(t, result.Err)
	assert.Equal(t, database.ScanCompleted, result.Status)
	assert.Equal(t, 3, result.Added)
	assert.Zero(t, result.Updated)
	assert.Zero(t, result.Failed)
	assert.Equal(t, 3, result.Processed())

	nyc, err := db.GetFileByPath(ctx, filepath.Join(root, "2023/nyc.jpg"))
	require.NoError(t, err)
	assert.Equal(t, mediatypes.FileTypeImage, nyc.Type)
	assert.Equal(t, filepath.Join(root, "2023"), nyc.Folder)
	require.NotNil(t, nyc.Metadata)
	require.True(t, nyc.Metadata.HasCoordinates())
	assert.InDelta(t, 40.7128, *nyc.Metadata.Latitude, 1e-4)
	assert.InDelta(t, -74.0060, *nyc.Metadata.Longitude, 1e-4)
	require.NotNil(t, nyc.Metadata.Place)
	assert.Equal(t, "New York", nyc.Metadata.Place.City)
	assert.Equal(t, 1, geo.calls)

	plain, err := db.GetFileByPath(ctx, filepath.Join(root, "2023/plain.jpg"))
	require.NoError(t, err)
	assert.Nil(t, plain.Metadata)

	clip, err := db.GetFileByPath(ctx, filepath.Join(root, "2024/clip.mp4"))
	require.NoError(t, err)
	assert.Equal(t, mediatypes.FileTypeVideo, clip.Type)
	require.NotNil(t, clip.Metadata)
	require.NotNil(t, clip.Metadata.DateTaken)
	assert.Equal(t, int64(917155200), clip.Metadata.DateTaken.Unix())

	_, err = db.GetFileByPath(ctx, filepath.Join(root, ".thumbnails/hidden.jpg"))
	assert.ErrorIs(t, err, database.ErrNotFound)

	scan, err := db.GetScan(ctx, result.ID)
	require.NoError(t, err)
	assert.Equal(t, database.ScanCompleted, scan.Status)
	assert.Equal(t, database.ScanCounts{Added: 3}, scan.Counts)
	assert.Equal(t, root, scan.FolderPath)

	assert.False(t, idx.IsScanning())
	require.NotNil(t, idx.LastScan())
	assert.Equal(t, database.ScanCompleted, idx.LastScan().Status)
}

func TestScanWithoutGeocoder(t *testing.T) {
	db := setupStore(t)
	idx := setupIndexer(t, db, nil, Options{})
	root := newLibrary(t)
	ctx := context.Background()

	result := idx.Scan(ctx, Job{BasePath: root})
	require.Equal(t, database.ScanCompleted, result.Status)

	nyc, err := db.GetFileByPath(ctx, filepath.Join(root, "2023/nyc.jpg"))
	require.NoError(t, err)
	require.NotNil(t, nyc.Metadata)
	assert.True(t, nyc.Metadata.HasCoordinates())
	assert.Nil(t, nyc.Metadata.Place)
}

func TestRescanIsIdempotent(t *testing.T) {
	db := setupStore(t)
	idx := setupIndexer(t, db, newYorkGeocoder(), Options{})
	root := newLibrary(t)
	ctx := context.Background()

	first := idx.Scan(ctx, Job{BasePath: root})
	require.Equal(t, database.ScanCompleted, first.Status)
	before, err := db.RandomFiles(ctx, database.RandomOptions{Limit: database.MaxRandomLimit})
	require.NoError(t, err)

	second := idx.Scan(ctx, Job{BasePath: root})
	require.Equal(t, database.ScanCompleted, second.Status)
	assert.Zero(t, second.Added)
	assert.Equal(t, 3, second.Updated)

	after, err := db.RandomFiles(ctx, database.RandomOptions{Limit: database.MaxRandomLimit})
	require.NoError(t, err)
	require.Len(t, after, len(before))

	byPath := make(map[string]database.MediaRecord, len(before))
	for _, r := range before {
		byPath[r.Path] = r
	}
	for _, r := range after {
		prev, ok := byPath[r.Path]
		require.True(t, ok, r.Path)
		assert.Equal(t, prev.ID, r.ID)
		assert.Equal(t, prev.Size, r.Size)
		assert.Equal(t, prev.ModTime, r.ModTime)
		assert.Equal(t, prev.Metadata, r.Metadata)
	}
}

func TestRescanPreservesUserFields(t *testing.T) {
	db := setupStore(t)
	idx := setupIndexer(t, db, nil, Options{})
	root := newLibrary(t)
	ctx := context.Background()
	path := filepath.Join(root, "2023/plain.jpg")

	idx.Scan(ctx, Job{BasePath: root})
	require.NoError(t, db.SetFavorite(ctx, path, true))
	require.NoError(t, db.SetRating(ctx, path, 4))

	idx.Scan(ctx, Job{BasePath: root})

	rec, err := db.GetFileByPath(ctx, path)
	require.NoError(t, err)
	assert.True(t, rec.IsFavorite)
	assert.Equal(t, 4, rec.Rating)
}

func TestScanFolderFilter(t *testing.T) {
	db := setupStore(t)
	idx := setupIndexer(t, db, nil, Options{})
	root := newLibrary(t)
	ctx := context.Background()

	result := idx.Scan(ctx, Job{BasePath: root, Folders: []string{"2024", "missing", "../outside"}})
	require.NoError(t, result.Err)
	assert.Equal(t, database.ScanCompleted, result.Status)
	assert.Equal(t, 1, result.Added)
	assert.Equal(t, []string{"missing", "../outside"}, result.SkippedFolders)

	n, err := db.CountFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	scan, err := db.GetScan(ctx, result.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024", "missing", "../outside"}, scan.Folders)
}

func TestScanMaxDepth(t *testing.T) {
	root := t.TempDir()
	mdt.PlainJPEG(t, root, "top.jpg")
	mdt.PlainJPEG(t, root, "a/one.jpg")
	mdt.PlainJPEG(t, root, "a/b/two.jpg")
	mdt.PlainJPEG(t, root, "a/b/c/three.jpg")

	depth := func(n int) *int { return &n }

	tests := []struct {
		name     string
		maxDepth *int
		want     int
	}{
		{"unlimited", nil, 4},
		{"negative is unlimited", depth(-1), 4},
		{"root only", depth(0), 1},
		{"root and children", depth(1), 2},
		{"two levels", depth(2), 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := setupStore(t)
			idx := setupIndexer(t, db, nil, Options{})

			result := idx.Scan(context.Background(), Job{BasePath: root, MaxDepth: tt.maxDepth})
			require.Equal(t, database.ScanCompleted, result.Status)
			assert.Equal(t, tt.want, result.Added)
		})
	}
}

func TestScanMissingBasePathFails(t *testing.T) {
	db := setupStore(t)
	idx := setupIndexer(t, db, nil, Options{})
	ctx := context.Background()

	result := idx.Scan(ctx, Job{BasePath: filepath.Join(t.TempDir(), "gone")})
	assert.Equal(t, database.ScanFailed, result.Status)
	assert.Error(t, result.Err)
	assert.Zero(t, result.Processed())

	scan, err := db.GetScan(ctx, result.ID)
	require.NoError(t, err)
	assert.Equal(t, database.ScanFailed, scan.Status)
	assert.NotNil(t, scan.EndTime)
}

// faultyStore wraps a real store and injects failures and pauses.
type faultyStore struct {
	*database.Database

	failPath     string
	onUpsert     func(n int)
	upserts      atomic.Int32
	beginEntered chan struct{}
	beginRelease chan struct{}
	finishCalls  atomic.Int32
}

func (s *faultyStore) UpsertFile(ctx context.Context, rec *database.MediaRecord) (bool, error) {
	n := int(s.upserts.Add(1))
	if s.onUpsert != nil {
		s.onUpsert(n)
	}
	if s.failPath != "" && strings.HasSuffix(rec.Path, s.failPath) {
		return false, errors.New("disk full")
	}
	return s.Database.UpsertFile(ctx, rec)
}

func (s *faultyStore) BeginScan(ctx context.Context, folderPath string, folders []string, scanType string) (int64, error) {
	if s.beginEntered != nil {
		close(s.beginEntered)
		<-s.beginRelease
	}
	return s.Database.BeginScan(ctx, folderPath, folders, scanType)
}

func (s *faultyStore) FinishScan(ctx context.Context, id int64, counts database.ScanCounts, status database.ScanStatus) error {
	s.finishCalls.Add(1)
	return s.Database.FinishScan(ctx, id, counts, status)
}

func TestScanContinuesAfterStoreFailure(t *testing.T) {
	store := &faultyStore{Database: setupStore(t), failPath: "plain.jpg"}
	idx := setupIndexer(t, store, nil, Options{})
	root := newLibrary(t)
	ctx := context.Background()

	result := idx.Scan(ctx, Job{BasePath: root})
	assert.Equal(t, database.ScanCompleted, result.Status)
	assert.Equal(t, 2, result.Added)
	assert.Equal(t, 1, result.Failed)

	scan, err := store.GetScan(ctx, result.ID)
	require.NoError(t, err)
	assert.Equal(t, database.ScanCounts{Added: 2}, scan.Counts)
	assert.Equal(t, int32(1), store.finishCalls.Load())
}

func TestInterruptedScanClosesHistoryAsFailed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := &faultyStore{Database: setupStore(t)}
	store.onUpsert = func(n int) {
		if n == 1 {
			cancel()
		}
	}
	idx := setupIndexer(t, store, nil, Options{})
	root := newLibrary(t)

	result := idx.Scan(ctx, Job{BasePath: root})
	assert.Equal(t, database.ScanFailed, result.Status)
	assert.ErrorIs(t, result.Err, context.Canceled)

	scan, err := store.GetScan(context.Background(), result.ID)
	require.NoError(t, err)
	assert.Equal(t, database.ScanFailed, scan.Status)
	assert.Equal(t, result.Added, scan.Counts.Added)
	assert.Equal(t, int32(1), store.finishCalls.Load())
}

type countingThrottle struct {
	calls atomic.Int32
	err   error
}

func (c *countingThrottle) Wait(context.Context) error {
	c.calls.Add(1)
	return c.err
}

func TestScanConsultsThrottle(t *testing.T) {
	throttle := &countingThrottle{}
	idx := setupIndexer(t, setupStore(t), nil, Options{Throttle: throttle})

	result := idx.Scan(context.Background(), Job{BasePath: newLibrary(t)})

	require.NoError(t, result.Err)
	assert.Equal(t, int32(3), throttle.calls.Load())
}

func TestScanStopsWhenThrottleGivesUp(t *testing.T) {
	throttle := &countingThrottle{err: context.DeadlineExceeded}
	idx := setupIndexer(t, setupStore(t), nil, Options{Throttle: throttle})

	result := idx.Scan(context.Background(), Job{BasePath: newLibrary(t)})

	assert.Equal(t, database.ScanFailed, result.Status)
	assert.ErrorIs(t, result.Err, context.DeadlineExceeded)
	assert.Zero(t, result.Processed())
}

func TestConcurrentScanIsRejected(t *testing.T) {
	store := &faultyStore{
		Database:     setupStore(t),
		beginEntered: make(chan struct{}),
		beginRelease: make(chan struct{}),
	}
	idx := setupIndexer(t, store, nil, Options{})
	root := newLibrary(t)
	ctx := context.Background()

	done := make(chan ScanResult, 1)
	go func() { done <- idx.Scan(ctx, Job{BasePath: root}) }()

	select {
	case <-store.beginEntered:
	case <-time.After(5 * time.Second):
		t.Fatal("first scan never started")
	}
	assert.True(t, idx.IsScanning())

	rejected := idx.Scan(ctx, Job{BasePath: root})
	assert.Equal(t, StatusRejected, rejected.Status)
	assert.ErrorIs(t, rejected.Err, ErrScanInProgress)
	assert.Zero(t, rejected.Processed())

	assert.ErrorIs(t, idx.TriggerScan(Job{BasePath: root}), ErrScanInProgress)

	close(store.beginRelease)
	first := <-done
	assert.Equal(t, database.ScanCompleted, first.Status)
	assert.Equal(t, 3, first.Added)
	assert.False(t, idx.IsScanning())

	scans, err := store.RecentScans(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, scans, 1)
}

func TestTriggerScanRunsInBackground(t *testing.T) {
	db := setupStore(t)
	idx := setupIndexer(t, db, nil, Options{})
	root := newLibrary(t)

	require.NoError(t, idx.TriggerScan(Job{BasePath: root}))

	require.Eventually(t, func() bool {
		last := idx.LastScan()
		return !idx.IsScanning() && last != nil && last.Status == database.ScanCompleted
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, 3, idx.LastScan().Added)
}

func TestScheduleRunsStartupScan(t *testing.T) {
	db := setupStore(t)
	idx := setupIndexer(t, db, nil, Options{})
	root := newLibrary(t)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		idx.Schedule(ctx, Job{BasePath: root}, true, time.Hour)
	}()

	require.Eventually(t, func() bool {
		last := idx.LastScan()
		return last != nil && last.Status == database.ScanCompleted
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Schedule did not return after cancel")
	}
}

func TestStats(t *testing.T) {
	db := setupStore(t)
	idx := setupIndexer(t, db, newYorkGeocoder(), Options{})
	root := newLibrary(t)
	ctx := context.Background()

	idx.Scan(ctx, Job{BasePath: root})

	stats := idx.Stats(ctx)
	assert.Equal(t, 3, stats.TotalFiles)
	assert.Equal(t, 2, stats.TotalImages)
	assert.Equal(t, 1, stats.TotalVideos)
	assert.Equal(t, 1, stats.FilesWithLocation)
	assert.NotNil(t, stats.LastScanTime)
	assert.False(t, stats.Scanning)
	require.NotNil(t, stats.Geocode)
	assert.Equal(t, int64(1), stats.Geocode.Misses)
	require.NotNil(t, stats.LastScan)
	assert.Equal(t, 3, stats.LastScan.Added)
}

func TestWriteRating(t *testing.T) {
	db := setupStore(t)
	idx := setupIndexer(t, db, nil, Options{WriteRatingsToFile: true})
	root := newLibrary(t)
	ctx := context.Background()
	idx.Scan(ctx, Job{BasePath: root})

	image := filepath.Join(root, "2023/plain.jpg")
	video := filepath.Join(root, "2024/clip.mp4")

	tests := []struct {
		name   string
		path   string
		rating int
		want   bool
	}{
		{"image", image, 3, true},
		{"video stays in the index", video, 5, true},
		{"out of range", image, 7, false},
		{"not indexed", filepath.Join(root, "nope.jpg"), 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, idx.WriteRating(ctx, tt.path, tt.rating))
		})
	}

	rec, err := db.GetFileByPath(ctx, image)
	require.NoError(t, err)
	assert.Equal(t, 3, rec.Rating)

	frag, ok := metadata.Extract(image, mediatypes.FileTypeImage)
	require.True(t, ok)
	require.NotNil(t, frag.Rating)
	assert.Equal(t, 3, *frag.Rating)

	rec, err = db.GetFileByPath(ctx, video)
	require.NoError(t, err)
	assert.Equal(t, 5, rec.Rating)
	assert.False(t, metadata.WriteRating(video, mediatypes.FileTypeVideo, 5), "the file itself cannot carry the rating")
}

func TestWriteRatingIndexOnly(t *testing.T) {
	db := setupStore(t)
	idx := setupIndexer(t, db, nil, Options{})
	root := newLibrary(t)
	ctx := context.Background()
	idx.Scan(ctx, Job{BasePath: root})

	image := filepath.Join(root, "2023/plain.jpg")
	require.True(t, idx.WriteRating(ctx, image, 2))

	_, ok := metadata.Extract(image, mediatypes.FileTypeImage)
	assert.False(t, ok)
}
