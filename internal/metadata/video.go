package metadata

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/abema/go-mp4"

	"media-index/internal/filesystem"
	"media-index/internal/logging"
)

const (
	// Seconds between the QuickTime epoch (1904-01-01) and the Unix epoch.
	macEpochOffset = 2082844800

	// Movie header times outside (1990-01-01, 2050-01-01) are treated as
	// unset or garbage.
	minPlausibleUnix = 631152000
	maxPlausibleUnix = 2524608000
)

// Metadata item names read from video files. "\xa9" is the © prefix of the
// classic QuickTime atom names.
const (
	itemRate         = "rate"
	itemRating       = "----:com.apple.iTunes:rating"
	itemDay          = "\xa9day"
	itemXYZ          = "\xa9xyz"
	keyCreationDate  = "com.apple.quicktime.creationdate"
	keyLocationISO   = "com.apple.quicktime.location.ISO6709"
	ratingScaleWidth = 20
)

var (
	boxMoov = mp4.StrToBoxType("moov")
	boxMvhd = mp4.StrToBoxType("mvhd")
	boxUdta = mp4.StrToBoxType("udta")
	boxMeta = mp4.StrToBoxType("meta")
	boxIlst = mp4.StrToBoxType("ilst")
	boxKeys = mp4.StrToBoxType("keys")
	boxXYZ  = mp4.StrToBoxType(itemXYZ)
)

// movieAtoms collects the atoms of interest while walking a container.
type movieAtoms struct {
	creation     uint64
	modification uint64
	keys         []string
	items        []metaItem
	udtaLocation string
}

// lookup returns the named item. Items of a keyed ilst are matched through
// the keys table.
func (m *movieAtoms) lookup(name string) (metaItem, bool) {
	for _, it := range m.items {
		if it.name == name {
			return it, true
		}
		if idx := it.keyIndex(); idx >= 1 && int(idx) <= len(m.keys) && m.keys[idx-1] == name {
			return it, true
		}
	}
	return metaItem{}, false
}

func (m *movieAtoms) text(name string) string {
	if it, ok := m.lookup(name); ok {
		return it.text()
	}
	return ""
}

// ExtractVideo reads creation time, location and rating from an
// MP4/QuickTime container. Containers yielding no field return
// ErrNoMetadata.
func ExtractVideo(path string) (Fragment, error) {
	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return Fragment{}, err
	}
	defer f.Close()

	atoms := &movieAtoms{}
	_, walkErr := mp4.ReadBoxStructure(f, func(h *mp4.ReadHandle) (interface{}, error) {
		switch h.BoxInfo.Type {
		case boxMoov, boxUdta, boxMeta:
			return h.Expand()
		case boxMvhd:
			box, _, err := h.ReadPayload()
			if err != nil {
				logging.Debug("Unreadable mvhd in %s: %v", path, err)
				return nil, nil
			}
			if mvhd, ok := box.(*mp4.Mvhd); ok {
				if mvhd.GetVersion() == 0 {
					atoms.creation = uint64(mvhd.CreationTimeV0)
					atoms.modification = uint64(mvhd.ModificationTimeV0)
				} else {
					atoms.creation = mvhd.CreationTimeV1
					atoms.modification = mvhd.ModificationTimeV1
				}
			}
		case boxIlst:
			if data, ok := readAtomData(h); ok {
				atoms.items = append(atoms.items, parseIlst(data)...)
			}
		case boxKeys:
			if data, ok := readAtomData(h); ok {
				atoms.keys = parseKeys(data)
			}
		case boxXYZ:
			if data, ok := readAtomData(h); ok {
				atoms.udtaLocation = parseUserDataString(data)
			}
		}
		return nil, nil
	})

	frag := atoms.fragment()
	if walkErr != nil {
		if frag.IsEmpty() {
			return Fragment{}, fmt.Errorf("failed to read atoms of %s: %w", path, walkErr)
		}
		logging.Debug("Partial atom read for %s: %v", path, walkErr)
	}
	if frag.IsEmpty() {
		return Fragment{}, ErrNoMetadata
	}
	return frag, nil
}

func readAtomData(h *mp4.ReadHandle) ([]byte, bool) {
	var buf bytes.Buffer
	if _, err := h.ReadData(&buf); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

func (m *movieAtoms) fragment() Fragment {
	var frag Fragment

	if t, ok := m.dateTaken(); ok {
		frag.DateTaken = &t
	}

	for _, loc := range []string{m.text(keyLocationISO), m.text(itemXYZ), m.udtaLocation} {
		if loc == "" {
			continue
		}
		if lat, lon, ok := ParseISO6709(loc); ok {
			frag.Latitude = ptr(lat)
			frag.Longitude = ptr(lon)
			break
		}
	}

	if r, ok := m.rating(); ok {
		frag.Rating = ptr(r)
	}

	return frag
}

// dateTaken prefers the movie header times, then the QuickTime creation date
// key, then the generic day tag which may be a bare year.
func (m *movieAtoms) dateTaken() (time.Time, bool) {
	for _, ts := range []uint64{m.creation, m.modification} {
		if t, ok := macTime(ts); ok {
			return t, true
		}
	}
	if t, ok := parseVideoDate(m.text(keyCreationDate), false); ok {
		return t, true
	}
	return parseVideoDate(m.text(itemDay), true)
}

func macTime(ts uint64) (time.Time, bool) {
	if ts == 0 {
		return time.Time{}, false
	}
	unix := int64(ts) - macEpochOffset
	if unix <= minPlausibleUnix || unix >= maxPlausibleUnix {
		return time.Time{}, false
	}
	return time.Unix(unix, 0), true
}

// rating reads the 0-100 'rate' item scaled to stars, falling back to the
// freeform iTunes rating. A zero 'rate' counts as unset.
func (m *movieAtoms) rating() (int, bool) {
	r, found := 0, false
	if it, ok := m.lookup(itemRate); ok {
		if n, ok := it.integer(); ok && n != 0 {
			r, found = n/ratingScaleWidth, true
		}
	}
	if !found {
		if n, err := strconv.Atoi(m.text(itemRating)); err == nil {
			r, found = n, true
		}
	}
	if !found || !ValidRating(r) {
		return 0, false
	}
	return r, true
}

// ErrRatingUnsupported is returned when a format cannot store a rating.
var ErrRatingUnsupported = errors.New("metadata: rating write-back not supported for this format")

// WriteVideoRating always fails: container metadata is not rewritten.
func WriteVideoRating(path string, rating int) error {
	logging.Debug("Skipping rating write for video %s (rating %d)", path, rating)
	return ErrRatingUnsupported
}
