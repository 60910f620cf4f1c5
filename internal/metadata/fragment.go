package metadata

import (
	"errors"
	"time"
)

// ErrNoMetadata is returned when a file carries no readable metadata block.
var ErrNoMetadata = errors.New("metadata: no embedded metadata")

// Fragment is the subset of embedded metadata recovered from a single file.
// Nil pointers and empty strings mean the field was absent or unreadable.
type Fragment struct {
	CameraMake   string     `json:"cameraMake,omitempty"`
	CameraModel  string     `json:"cameraModel,omitempty"`
	DateTaken    *time.Time `json:"dateTaken,omitempty"`
	Latitude     *float64   `json:"latitude,omitempty"`
	Longitude    *float64   `json:"longitude,omitempty"`
	ISO          *int       `json:"iso,omitempty"`
	Aperture     *float64   `json:"aperture,omitempty"`
	ShutterSpeed string     `json:"shutterSpeed,omitempty"`
	FocalLength  *float64   `json:"focalLength,omitempty"`
	Flash        string     `json:"flash,omitempty"`
	Rating       *int       `json:"rating,omitempty"`

	// Place is filled in by the scan pipeline after reverse geocoding.
	Place *Place `json:"place,omitempty"`
}

// Place is a human-readable location resolved from coordinates.
type Place struct {
	Name    string `json:"name"`
	City    string `json:"city"`
	Country string `json:"country"`
}

// HasCoordinates reports whether both latitude and longitude are present.
func (f *Fragment) HasCoordinates() bool {
	return f.Latitude != nil && f.Longitude != nil
}

// IsEmpty reports whether no field was recovered.
func (f *Fragment) IsEmpty() bool {
	return f.CameraMake == "" && f.CameraModel == "" && f.DateTaken == nil &&
		f.Latitude == nil && f.Longitude == nil && f.ISO == nil &&
		f.Aperture == nil && f.ShutterSpeed == "" && f.FocalLength == nil &&
		f.Flash == "" && f.Rating == nil && f.Place == nil
}

// ValidRating reports whether r is a star rating between 0 and 5.
func ValidRating(r int) bool {
	return r >= 0 && r <= 5
}

func ptr[T any](v T) *T {
	return &v
}
