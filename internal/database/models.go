package database

import (
	"time"

	"media-index/internal/mediatypes"
	"media-index/internal/metadata"
)

// MediaRecord is one indexed file.
type MediaRecord struct {
	ID          int64               `json:"id"`
	Path        string              `json:"path"`
	Filename    string              `json:"filename"`
	Folder      string              `json:"folder"`
	Type        mediatypes.FileType `json:"type"`
	Size        int64               `json:"size"`
	ModTime     time.Time           `json:"modTime"`
	CreatedTime *time.Time          `json:"createdTime,omitempty"`
	LastScanned time.Time           `json:"lastScanned"`
	IsFavorite  bool                `json:"isFavorite"`
	Rating      int                 `json:"rating"`
	RatedAt     *time.Time          `json:"ratedAt,omitempty"`

	// Metadata is populated by queries that join the extracted fragment.
	Metadata *metadata.Fragment `json:"metadata,omitempty"`
}

// ScanStatus is the lifecycle state of a scan history row.
type ScanStatus string

const (
	ScanRunning   ScanStatus = "running"
	ScanCompleted ScanStatus = "completed"
	ScanFailed    ScanStatus = "failed"
)

// ScanTypeFull marks a full re-walk of the requested folders.
const ScanTypeFull = "full"

// ScanCounts are the per-scan file tallies.
type ScanCounts struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Removed int `json:"removed"`
}

// ScanRecord is one row of scan history.
type ScanRecord struct {
	ID         int64      `json:"id"`
	FolderPath string     `json:"folderPath"`
	ScanType   string     `json:"scanType"`
	Folders    []string   `json:"folders"`
	StartTime  time.Time  `json:"startTime"`
	EndTime    *time.Time `json:"endTime,omitempty"`
	Counts     ScanCounts `json:"counts"`
	Status     ScanStatus `json:"status"`
}

// Stats aggregates library totals for status reporting.
type Stats struct {
	TotalFiles          int        `json:"totalFiles"`
	TotalImages         int        `json:"totalImages"`
	TotalVideos         int        `json:"totalVideos"`
	TotalFolders        int        `json:"totalFolders"`
	TotalFavorites      int        `json:"totalFavorites"`
	RatedFiles          int        `json:"ratedFiles"`
	FilesWithLocation   int        `json:"filesWithLocation"`
	GeocodeCacheEntries int        `json:"geocodeCacheEntries"`
	CacheSizeMB         float64    `json:"cacheSizeMb"`
	LastScanTime        *time.Time `json:"lastScanTime,omitempty"`
}

// MaxRandomLimit caps RandomFiles results.
const MaxRandomLimit = 100

// RandomOptions filters RandomFiles. Zero values disable a filter.
type RandomOptions struct {
	// Folder restricts results to the folder and everything beneath it.
	Folder string
	Type   mediatypes.FileType
	// From and To bound the capture date, or the modification time for
	// files without one.
	From  time.Time
	To    time.Time
	Limit int
}
