package handlers

import (
	"context"
	"errors"
	"sync"
	"time"

	"media-index/internal/database"
	"media-index/internal/indexer"
)

type fakeIndexer struct {
	mu        sync.Mutex
	scanning  bool
	triggered []indexer.Job
	triggerFn func(indexer.Job) error
	lastScan  *indexer.ScanResult
	stats     indexer.Stats
	ratings   map[string]int
	rateOK    bool
}

func newFakeIndexer() *fakeIndexer {
	return &fakeIndexer{ratings: make(map[string]int), rateOK: true}
}

func (f *fakeIndexer) TriggerScan(job indexer.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.triggerFn != nil {
		return f.triggerFn(job)
	}
	if f.scanning {
		return indexer.ErrScanInProgress
	}
	f.triggered = append(f.triggered, job)
	return nil
}

func (f *fakeIndexer) IsScanning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scanning
}

func (f *fakeIndexer) LastScan() *indexer.ScanResult { return f.lastScan }

func (f *fakeIndexer) Stats(context.Context) indexer.Stats { return f.stats }

func (f *fakeIndexer) WriteRating(_ context.Context, path string, rating int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rateOK {
		f.ratings[path] = rating
	}
	return f.rateOK
}

type fakeStore struct {
	mu         sync.Mutex
	files      map[string]*database.MediaRecord
	scans      []database.ScanRecord
	random     []database.MediaRecord
	lastRandom database.RandomOptions
	err        error
}

func newFakeStore(paths ...string) *fakeStore {
	s := &fakeStore{files: make(map[string]*database.MediaRecord)}
	for i, p := range paths {
		s.files[p] = &database.MediaRecord{ID: int64(i + 1), Path: p, ModTime: time.Unix(1700000000, 0).UTC()}
	}
	return s
}

func (s *fakeStore) GetFileByPath(_ context.Context, path string) (*database.MediaRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	rec, ok := s.files[path]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *fakeStore) SetFavorite(_ context.Context, path string, favorite bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	rec, ok := s.files[path]
	if !ok {
		return database.ErrNotFound
	}
	rec.IsFavorite = favorite
	return nil
}

func (s *fakeStore) RandomFiles(_ context.Context, opts database.RandomOptions) ([]database.MediaRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRandom = opts
	if s.err != nil {
		return nil, s.err
	}
	return s.random, nil
}

func (s *fakeStore) RecentScans(_ context.Context, limit int) ([]database.ScanRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.scans) > limit {
		return s.scans[:limit], nil
	}
	return s.scans, nil
}

func (s *fakeStore) CountFiles(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	return len(s.files), nil
}

var errStoreDown = errors.New("database is locked")

func newTestHandlers(paths ...string) (*Handlers, *fakeIndexer, *fakeStore) {
	idx := newFakeIndexer()
	store := newFakeStore(paths...)
	h := New(idx, store, indexer.Job{BasePath: "/media", MaxDepth: depth(3)})
	return h, idx, store
}

func depth(n int) *int { return &n }
