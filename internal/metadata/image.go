package metadata

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	jis "github.com/dsoprea/go-jpeg-image-structure/v2"

	"media-index/internal/filesystem"
	"media-index/internal/logging"
	"media-index/internal/mediatypes"
)

// EXIF tag IDs read by ExtractImage.
const (
	tagMake             = 0x010f
	tagModel            = 0x0110
	tagDateTime         = 0x0132
	tagRating           = 0x4746
	tagExposureTime     = 0x829a
	tagFNumber          = 0x829d
	tagISOSpeedRatings  = 0x8827
	tagDateTimeOriginal = 0x9003
	tagFlash            = 0x9209
	tagFocalLength      = 0x920a

	tagGPSLatitudeRef  = 0x0001
	tagGPSLatitude     = 0x0002
	tagGPSLongitudeRef = 0x0003
	tagGPSLongitude    = 0x0004
)

// Tag IDs overlap between the GPS IFD and the others, so entries are keyed by
// both.
type tagKey struct {
	gps bool
	id  uint16
}

type tagSet map[tagKey]interface{}

func indexTags(entries []exif.ExifTag) tagSet {
	tags := make(tagSet, len(entries))
	for _, e := range entries {
		key := tagKey{gps: strings.Contains(e.IfdPath, "GPS"), id: e.TagId}
		if _, seen := tags[key]; seen {
			continue
		}
		tags[key] = e.Value
	}
	return tags
}

func (t tagSet) str(id uint16) string {
	s, _ := t[tagKey{id: id}].(string)
	return strings.TrimSpace(strings.TrimRight(s, "\x00"))
}

func (t tagSet) gpsStr(id uint16) string {
	s, _ := t[tagKey{gps: true, id: id}].(string)
	return strings.TrimSpace(strings.TrimRight(s, "\x00"))
}

func (t tagSet) integer(id uint16) (int, bool) {
	switch v := t[tagKey{id: id}].(type) {
	case []uint16:
		if len(v) > 0 {
			return int(v[0]), true
		}
	case []uint32:
		if len(v) > 0 {
			return int(v[0]), true
		}
	case []int32:
		if len(v) > 0 {
			return int(v[0]), true
		}
	case []uint8:
		if len(v) > 0 {
			return int(v[0]), true
		}
	}
	return 0, false
}

// rationals returns the rational components of a tag as floats. Any
// component with a zero denominator makes the whole value unavailable.
func rationals(v interface{}) ([]float64, bool) {
	var out []float64
	switch r := v.(type) {
	case []exifcommon.Rational:
		for _, x := range r {
			f, ok := rational(int64(x.Numerator), int64(x.Denominator))
			if !ok {
				return nil, false
			}
			out = append(out, f)
		}
	case []exifcommon.SignedRational:
		for _, x := range r {
			f, ok := rational(int64(x.Numerator), int64(x.Denominator))
			if !ok {
				return nil, false
			}
			out = append(out, f)
		}
	default:
		return nil, false
	}
	return out, len(out) > 0
}

func (t tagSet) rational(id uint16) (float64, bool) {
	vals, ok := rationals(t[tagKey{id: id}])
	if !ok {
		return 0, false
	}
	return vals[0], true
}

func (t tagSet) coordinate(valueID, refID uint16) (float64, bool) {
	vals, ok := rationals(t[tagKey{gps: true, id: valueID}])
	if !ok || len(vals) < 3 {
		return 0, false
	}
	return DMSToDecimal(vals[0], vals[1], vals[2], t.gpsStr(refID)), true
}

// ExtractImage reads the EXIF block of an image. Files without EXIF return
// ErrNoMetadata.
func ExtractImage(path string) (Fragment, error) {
	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return Fragment{}, err
	}
	defer f.Close()

	raw, err := exif.SearchAndExtractExifWithReader(f)
	if err != nil {
		if errors.Is(err, exif.ErrNoExif) {
			return Fragment{}, ErrNoMetadata
		}
		return Fragment{}, fmt.Errorf("failed to locate EXIF in %s: %w", path, err)
	}

	entries, _, err := exif.GetFlatExifData(raw, nil)
	if err != nil {
		return Fragment{}, fmt.Errorf("failed to parse EXIF in %s: %w", path, err)
	}

	return fragmentFromTags(indexTags(entries)), nil
}

func fragmentFromTags(tags tagSet) Fragment {
	var frag Fragment

	frag.CameraMake = tags.str(tagMake)
	frag.CameraModel = tags.str(tagModel)

	date := tags.str(tagDateTimeOriginal)
	if date == "" {
		date = tags.str(tagDateTime)
	}
	if t, ok := parseExifDate(date); ok {
		frag.DateTaken = &t
	}

	lat, latOK := tags.coordinate(tagGPSLatitude, tagGPSLatitudeRef)
	lon, lonOK := tags.coordinate(tagGPSLongitude, tagGPSLongitudeRef)
	if latOK && lonOK {
		frag.Latitude = ptr(lat)
		frag.Longitude = ptr(lon)
	}

	if iso, ok := tags.integer(tagISOSpeedRatings); ok {
		frag.ISO = ptr(iso)
	}
	if fn, ok := tags.rational(tagFNumber); ok && fn > 0 {
		frag.Aperture = ptr(fn)
	}
	if exp, ok := tags.rational(tagExposureTime); ok {
		frag.ShutterSpeed = FormatExposure(exp)
	}
	if fl, ok := tags.rational(tagFocalLength); ok && fl > 0 {
		frag.FocalLength = ptr(fl)
	}
	if flash, ok := tags.integer(tagFlash); ok {
		if flash&1 == 1 {
			frag.Flash = "Yes"
		} else {
			frag.Flash = "No"
		}
	}
	if r, ok := tags.integer(tagRating); ok && ValidRating(r) {
		frag.Rating = ptr(r)
	}

	return frag
}

// WriteImageRating stores a 0-5 star rating in the EXIF block of a JPEG
// file, creating the block if the file has none.
func WriteImageRating(path string, rating int) error {
	if !ValidRating(rating) {
		return fmt.Errorf("rating %d out of range 0-5", rating)
	}
	if !mediatypes.RatingWritableExtensions[mediatypes.Ext(path)] {
		return fmt.Errorf("rating write-back not supported for %s", filepath.Ext(path))
	}

	return EditJpegExif(path, func(rootIb *exif.IfdBuilder) error {
		return rootIb.SetStandardWithName("Rating", []uint16{uint16(rating)})
	})
}

// EditJpegExif rewrites the EXIF block of a JPEG file through edit, starting
// from an empty block when the file has none. The new file is written beside
// the original and renamed over it.
func EditJpegExif(path string, edit func(rootIb *exif.IfdBuilder) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("exif update panicked for %s: %v", path, r)
		}
	}()

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return err
	}

	mc, err := jis.NewJpegMediaParser().ParseFile(path)
	if err != nil {
		return fmt.Errorf("failed to parse JPEG structure: %w", err)
	}
	sl, ok := mc.(*jis.SegmentList)
	if !ok {
		return fmt.Errorf("unexpected JPEG media context %T", mc)
	}

	rootIb, err := sl.ConstructExifBuilder()
	if err != nil {
		logging.Debug("No usable EXIF in %s, creating a new block: %v", path, err)
		rootIb, err = newRootIfdBuilder()
		if err != nil {
			return err
		}
	}

	if err := edit(rootIb); err != nil {
		return fmt.Errorf("failed to update EXIF tags: %w", err)
	}
	if err := sl.SetExif(rootIb); err != nil {
		return fmt.Errorf("failed to encode EXIF: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".rating-*"+filepath.Ext(path))
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if err = sl.Write(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write JPEG: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmpName, info.Mode().Perm()); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func newRootIfdBuilder() (*exif.IfdBuilder, error) {
	im, err := exifcommon.NewIfdMappingWithStandard()
	if err != nil {
		return nil, fmt.Errorf("failed to build IFD mapping: %w", err)
	}
	ti := exif.NewTagIndex()
	var order binary.ByteOrder = exifcommon.EncodeDefaultByteOrder
	return exif.NewIfdBuilder(im, ti, exifcommon.IfdStandardIfdIdentity, order), nil
}
