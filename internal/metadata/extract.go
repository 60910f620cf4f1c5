package metadata

import (
	"errors"
	"time"

	"media-index/internal/logging"
	"media-index/internal/mediatypes"
	"media-index/internal/metrics"
)

// Extract reads embedded metadata from path using the extractor for its file
// type. It returns false when the format is not supported, the file has no
// metadata, or reading it failed; failures are logged, never returned.
func Extract(path string, fileType mediatypes.FileType) (frag Fragment, ok bool) {
	ext := mediatypes.Ext(path)

	var extractor func(string) (Fragment, error)
	switch {
	case fileType == mediatypes.FileTypeImage && mediatypes.ExifExtensions[ext]:
		extractor = ExtractImage
	case fileType == mediatypes.FileTypeVideo && mediatypes.AtomExtensions[ext]:
		extractor = ExtractVideo
	default:
		return Fragment{}, false
	}

	label := string(fileType)
	start := time.Now()
	defer func() {
		metrics.MetadataExtractionDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	}()

	defer func() {
		if r := recover(); r != nil {
			logging.Debug("Metadata extraction panicked for %s: %v", path, r)
			metrics.MetadataExtractionsTotal.WithLabelValues(label, "error").Inc()
			frag, ok = Fragment{}, false
		}
	}()

	frag, err := extractor(path)
	switch {
	case errors.Is(err, ErrNoMetadata):
		metrics.MetadataExtractionsTotal.WithLabelValues(label, "empty").Inc()
		return Fragment{}, false
	case err != nil:
		logging.Debug("Failed to extract metadata from %s: %v", path, err)
		metrics.MetadataExtractionsTotal.WithLabelValues(label, "error").Inc()
		return Fragment{}, false
	}

	metrics.MetadataExtractionsTotal.WithLabelValues(label, "found").Inc()
	return frag, true
}

// WriteRating stores a star rating in the file itself. It reports whether the
// file was updated; unsupported formats and write failures return false.
func WriteRating(path string, fileType mediatypes.FileType, rating int) bool {
	var err error
	switch fileType {
	case mediatypes.FileTypeImage:
		err = WriteImageRating(path, rating)
	case mediatypes.FileTypeVideo:
		err = WriteVideoRating(path, rating)
	default:
		err = ErrRatingUnsupported
	}

	status := "success"
	if err != nil {
		status = "failure"
		logging.Debug("Rating not written to %s: %v", path, err)
	}
	metrics.RatingWritesTotal.WithLabelValues(string(fileType), status).Inc()
	return err == nil
}
