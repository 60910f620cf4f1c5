package mediatypes

import (
	"path/filepath"
	"strings"
)

// FileType represents the type of a media file.
type FileType string

const (
	// FileTypeImage represents an image file.
	FileTypeImage FileType = "image"
	// FileTypeVideo represents a video file.
	FileTypeVideo FileType = "video"
	// FileTypeOther represents an unknown or unsupported file type.
	FileTypeOther FileType = "other"
)

// ImageExtensions maps file extensions to whether they are indexed as images.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
	".tiff": true,
	".tif":  true,
	".heic": true,
	".heif": true,
}

// VideoExtensions maps file extensions to whether they are indexed as videos.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".m4v":  true,
	".avi":  true,
	".mkv":  true,
	".webm": true,
	".mpg":  true,
	".mpeg": true,
	".3gp":  true,
}

// ExifExtensions are the image formats whose embedded EXIF block is read.
var ExifExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".tiff": true,
	".tif":  true,
	".heic": true,
}

// AtomExtensions are the ISO-BMFF/QuickTime containers whose atoms are read.
var AtomExtensions = map[string]bool{
	".mp4": true,
	".m4v": true,
	".mov": true,
}

// RatingWritableExtensions are the image formats a rating can be written back to.
var RatingWritableExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
}

// Ext returns the lowercase extension of path including the leading dot.
func Ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// GetFileType returns the FileType for a given file extension.
// The extension should be lowercase and include the leading dot (e.g., ".jpg").
// Returns FileTypeOther if the extension is not recognized.
func GetFileType(ext string) FileType {
	if ImageExtensions[ext] {
		return FileTypeImage
	}
	if VideoExtensions[ext] {
		return FileTypeVideo
	}
	return FileTypeOther
}

// Classify returns the FileType of path based on its extension.
func Classify(path string) FileType {
	return GetFileType(Ext(path))
}

// IsMediaFile returns true if the extension represents a supported media file.
func IsMediaFile(ext string) bool {
	return GetFileType(ext) != FileTypeOther
}

// ParseFileType converts a stored or user-supplied type tag back to a FileType.
func ParseFileType(s string) (FileType, bool) {
	switch FileType(strings.ToLower(strings.TrimSpace(s))) {
	case FileTypeImage:
		return FileTypeImage, true
	case FileTypeVideo:
		return FileTypeVideo, true
	}
	return FileTypeOther, false
}
