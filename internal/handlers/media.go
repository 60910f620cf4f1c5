package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"media-index/internal/database"
	"media-index/internal/indexer"
	"media-index/internal/logging"
	"media-index/internal/mediatypes"
	"media-index/internal/metadata"
)

// ScanRequest narrows a triggered scan. Omitted fields keep the configured job.
type ScanRequest struct {
	Folders  []string `json:"folders"`
	MaxDepth *int     `json:"maxDepth"`
}

// RatingRequest sets a file's star rating; 0 clears it.
type RatingRequest struct {
	Path   string `json:"path"`
	Rating int    `json:"rating"`
}

// FavoriteRequest sets or clears a file's favorite flag.
type FavoriteRequest struct {
	Path     string `json:"path"`
	Favorite bool   `json:"favorite"`
}

const recentScansLimit = 20

// TriggerScan starts a background scan and returns immediately.
func (h *Handlers) TriggerScan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	job := h.defaultJob
	if req.Folders != nil {
		job.Folders = req.Folders
	}
	if req.MaxDepth != nil {
		// A negative depth lifts the configured limit.
		job.MaxDepth = nil
		if *req.MaxDepth >= 0 {
			job.MaxDepth = req.MaxDepth
		}
	}

	if err := h.indexer.TriggerScan(job); err != nil {
		if errors.Is(err, indexer.ErrScanInProgress) {
			writeJSONCode(w, http.StatusConflict, map[string]string{
				"status":  "already_running",
				"message": "A scan is already in progress",
			})
			return
		}
		logging.Error("Failed to start scan: %v", err)
		writeJSONError(w, "failed to start scan", http.StatusInternalServerError)
		return
	}

	writeJSONCode(w, http.StatusAccepted, map[string]string{
		"status":  "started",
		"message": "Scan started",
	})
}

// GetStats returns library totals and live indexer state.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, h.indexer.Stats(r.Context()))
}

// GetScans returns the most recent scan history rows.
func (h *Handlers) GetScans(w http.ResponseWriter, r *http.Request) {
	scans, err := h.store.RecentScans(r.Context(), recentScansLimit)
	if err != nil {
		logging.Error("Failed to list scans: %v", err)
		writeJSONError(w, "failed to list scans", http.StatusInternalServerError)
		return
	}
	if scans == nil {
		scans = []database.ScanRecord{}
	}
	writeJSONCode(w, http.StatusOK, scans)
}

// GetFile returns the indexed record for the path query parameter.
func (h *Handlers) GetFile(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSONError(w, "path is required", http.StatusBadRequest)
		return
	}

	rec, err := h.store.GetFileByPath(r.Context(), path)
	if errors.Is(err, database.ErrNotFound) {
		writeJSONError(w, "file not indexed", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("Failed to load %s: %v", path, err)
		writeJSONError(w, "failed to load file", http.StatusInternalServerError)
		return
	}
	writeJSONCode(w, http.StatusOK, rec)
}

// SetRating stores a rating for an indexed file.
func (h *Handlers) SetRating(w http.ResponseWriter, r *http.Request) {
	var req RatingRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Path == "" {
		writeJSONError(w, "path and rating are required", http.StatusBadRequest)
		return
	}
	if !metadata.ValidRating(req.Rating) {
		writeJSONError(w, "rating must be between 0 and 5", http.StatusBadRequest)
		return
	}

	if _, err := h.store.GetFileByPath(r.Context(), req.Path); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, "file not indexed", http.StatusNotFound)
			return
		}
		logging.Error("Failed to load %s: %v", req.Path, err)
		writeJSONError(w, "failed to load file", http.StatusInternalServerError)
		return
	}

	writeJSONCode(w, http.StatusOK, map[string]bool{
		"success": h.indexer.WriteRating(r.Context(), req.Path, req.Rating),
	})
}

// SetFavorite sets or clears the favorite flag of an indexed file.
func (h *Handlers) SetFavorite(w http.ResponseWriter, r *http.Request) {
	var req FavoriteRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Path == "" {
		writeJSONError(w, "path is required", http.StatusBadRequest)
		return
	}

	if err := h.store.SetFavorite(r.Context(), req.Path, req.Favorite); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, "file not indexed", http.StatusNotFound)
			return
		}
		logging.Error("Failed to set favorite on %s: %v", req.Path, err)
		writeJSONError(w, "failed to update favorite", http.StatusInternalServerError)
		return
	}

	writeJSONCode(w, http.StatusOK, map[string]bool{"success": true})
}

// GetRandom returns a random sample of indexed files.
func (h *Handlers) GetRandom(w http.ResponseWriter, r *http.Request) {
	opts, err := parseRandomQuery(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	recs, err := h.store.RandomFiles(r.Context(), opts)
	if err != nil {
		logging.Error("Failed to sample files: %v", err)
		writeJSONError(w, "failed to sample files", http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []database.MediaRecord{}
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSONCode(w, http.StatusOK, recs)
}

func parseRandomQuery(r *http.Request) (database.RandomOptions, error) {
	q := r.URL.Query()
	opts := database.RandomOptions{Folder: strings.TrimSpace(q.Get("folder"))}

	if v := q.Get("type"); v != "" {
		ft, ok := mediatypes.ParseFileType(v)
		if !ok {
			return opts, fmt.Errorf("type must be image or video")
		}
		opts.Type = ft
	}

	var err error
	if opts.From, err = ParseDate(q.Get("from"), false); err != nil {
		return opts, fmt.Errorf("invalid from: %w", err)
	}
	if opts.To, err = ParseDate(q.Get("to"), true); err != nil {
		return opts, fmt.Errorf("invalid to: %w", err)
	}
	if !opts.From.IsZero() && !opts.To.IsZero() && opts.To.Before(opts.From) {
		return opts, fmt.Errorf("to is before from")
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return opts, fmt.Errorf("limit must be a positive integer")
		}
		opts.Limit = n
	}
	return opts, nil
}

// ParseDate accepts RFC 3339 timestamps or plain YYYY-MM-DD dates. A plain
// date used as an upper bound covers the whole day. Empty input yields the
// zero time.
func ParseDate(s string, endOfDay bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected YYYY-MM-DD or RFC 3339, got %q", s)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
