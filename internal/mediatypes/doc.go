// Package mediatypes provides shared type definitions and utilities for media file
// classification across the media-index application.
//
// This package exists as a dependency-free foundation that can be imported by other
// packages without creating import cycles.
//
// # File Types
//
//	mediatypes.FileTypeImage // Supported image formats (jpg, png, heic, etc.)
//	mediatypes.FileTypeVideo // Supported video formats (mp4, mov, mkv, etc.)
//	mediatypes.FileTypeOther // Unrecognized or unsupported files
//
// # Extension Detection
//
// Use Classify to determine the type of a file from its path, or GetFileType when
// the lowercase extension is already at hand:
//
//	switch mediatypes.Classify(path) {
//	case mediatypes.FileTypeImage:
//	    // Handle image
//	case mediatypes.FileTypeVideo:
//	    // Handle video
//	}
package mediatypes
