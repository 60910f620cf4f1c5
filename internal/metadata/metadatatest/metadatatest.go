// Package metadatatest builds small media files with known embedded
// metadata for tests.
package metadatatest

import (
	"encoding/binary"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	"github.com/stretchr/testify/require"

	"media-index/internal/metadata"
)

// ImageTags lists the EXIF tags written by WriteJPEG. Zero values are not
// written.
type ImageTags struct {
	Make             string
	Model            string
	DateTime         string
	DateTimeOriginal string
	ExposureTime     exifcommon.Rational
	FNumber          exifcommon.Rational
	FocalLength      exifcommon.Rational
	ISO              uint16
	Flash            *uint16
	Rating           *uint16

	LatRef string
	Lat    []exifcommon.Rational
	LonRef string
	Lon    []exifcommon.Rational
}

// NewYork returns tags placing a photo at 40°42'46.08"N 74°0'21.6"W
// (40.7128, -74.006).
func NewYork() ImageTags {
	return ImageTags{
		LatRef: "N",
		Lat:    []exifcommon.Rational{{Numerator: 40, Denominator: 1}, {Numerator: 42, Denominator: 1}, {Numerator: 4608, Denominator: 100}},
		LonRef: "W",
		Lon:    []exifcommon.Rational{{Numerator: 74, Denominator: 1}, {Numerator: 0, Denominator: 1}, {Numerator: 216, Denominator: 10}},
	}
}

// Uint16 returns a pointer to v.
func Uint16(v uint16) *uint16 {
	return &v
}

// PlainJPEG writes a small JPEG without any EXIF block and returns its path.
func PlainJPEG(t testing.TB, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	img := imaging.New(16, 16, color.NRGBA{R: 200, G: 120, B: 40, A: 255})
	require.NoError(t, imaging.Save(img, path))
	return path
}

// JPEG writes a small JPEG carrying tags and returns its path.
func JPEG(t testing.TB, dir, name string, tags ImageTags) string {
	t.Helper()

	path := PlainJPEG(t, dir, name)
	require.NoError(t, metadata.EditJpegExif(path, func(rootIb *exif.IfdBuilder) error {
		return applyTags(rootIb, tags)
	}))
	return path
}

func applyTags(rootIb *exif.IfdBuilder, tags ImageTags) error {
	var root, sub, gps []tagValue

	root = appendString(root, "Make", tags.Make)
	root = appendString(root, "Model", tags.Model)
	root = appendString(root, "DateTime", tags.DateTime)
	if tags.Rating != nil {
		root = append(root, tagValue{"Rating", []uint16{*tags.Rating}})
	}

	sub = appendString(sub, "DateTimeOriginal", tags.DateTimeOriginal)
	sub = appendRational(sub, "ExposureTime", tags.ExposureTime)
	sub = appendRational(sub, "FNumber", tags.FNumber)
	sub = appendRational(sub, "FocalLength", tags.FocalLength)
	if tags.ISO != 0 {
		sub = append(sub, tagValue{"ISOSpeedRatings", []uint16{tags.ISO}})
	}
	if tags.Flash != nil {
		sub = append(sub, tagValue{"Flash", []uint16{*tags.Flash}})
	}

	gps = appendString(gps, "GPSLatitudeRef", tags.LatRef)
	gps = appendString(gps, "GPSLongitudeRef", tags.LonRef)
	if len(tags.Lat) > 0 {
		gps = append(gps, tagValue{"GPSLatitude", tags.Lat})
	}
	if len(tags.Lon) > 0 {
		gps = append(gps, tagValue{"GPSLongitude", tags.Lon})
	}

	if err := setAll(rootIb, root); err != nil {
		return err
	}
	if len(sub) > 0 {
		ib, err := exif.GetOrCreateIbFromRootIb(rootIb, "IFD/Exif")
		if err != nil {
			return err
		}
		if err := setAll(ib, sub); err != nil {
			return err
		}
	}
	if len(gps) > 0 {
		ib, err := exif.GetOrCreateIbFromRootIb(rootIb, "IFD/GPSInfo")
		if err != nil {
			return err
		}
		if err := setAll(ib, gps); err != nil {
			return err
		}
	}
	return nil
}

type tagValue struct {
	name  string
	value interface{}
}

func appendString(tags []tagValue, name, v string) []tagValue {
	if v == "" {
		return tags
	}
	return append(tags, tagValue{name, v})
}

func appendRational(tags []tagValue, name string, v exifcommon.Rational) []tagValue {
	if v == (exifcommon.Rational{}) {
		return tags
	}
	return append(tags, tagValue{name, []exifcommon.Rational{v}})
}

func setAll(ib *exif.IfdBuilder, tags []tagValue) error {
	for _, tv := range tags {
		if err := ib.SetStandardWithName(tv.name, tv.value); err != nil {
			return err
		}
	}
	return nil
}

// U32 encodes v big-endian.
func U32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

// Atom builds an MP4 atom of the given four-character kind around parts.
func Atom(kind string, parts ...[]byte) []byte {
	size := 8
	for _, p := range parts {
		size += len(p)
	}
	b := make([]byte, 0, size)
	b = append(b, U32(uint32(size))...)
	b = append(b, kind[:4]...)
	for _, p := range parts {
		b = append(b, p...)
	}
	return b
}

// Mvhd builds a version 0 movie header with the given QuickTime-epoch times.
func Mvhd(creation, modification uint32) []byte {
	payload := make([]byte, 100)
	binary.BigEndian.PutUint32(payload[4:], creation)
	binary.BigEndian.PutUint32(payload[8:], modification)
	binary.BigEndian.PutUint32(payload[12:], 1000)    // timescale
	binary.BigEndian.PutUint32(payload[20:], 0x10000) // rate 1.0
	return Atom("mvhd", payload)
}

// Data builds an ilst 'data' atom.
func Data(typ uint32, value []byte) []byte {
	return Atom("data", U32(typ), U32(0), value)
}

// Text builds an ilst item holding UTF-8 text.
func Text(kind, value string) []byte {
	return Atom(kind, Data(1, []byte(value)))
}

// Int builds an ilst item holding a one-byte big-endian integer.
func Int(kind string, value uint8) []byte {
	return Atom(kind, Data(21, []byte{value}))
}

// Freeform builds a "----" ilst item.
func Freeform(mean, name, value string) []byte {
	return Atom("----",
		Atom("mean", U32(0), []byte(mean)),
		Atom("name", U32(0), []byte(name)),
		Data(1, []byte(value)),
	)
}

// KeyedText builds an ilst item referring to the 1-based entry idx of a
// keys atom.
func KeyedText(idx uint32, value string) []byte {
	return Atom(string(U32(idx)), Data(1, []byte(value)))
}

// Keys builds a QuickTime 'keys' atom in the mdta namespace.
func Keys(names ...string) []byte {
	parts := [][]byte{U32(0), U32(uint32(len(names)))}
	for _, n := range names {
		parts = append(parts, U32(uint32(8+len(n))), []byte("mdta"), []byte(n))
	}
	return Atom("keys", parts...)
}

// Meta builds a 'meta' full box around children.
func Meta(children ...[]byte) []byte {
	return Atom("meta", append([][]byte{U32(0)}, children...)...)
}

// MP4 builds a minimal file: an ftyp atom followed by moov.
func MP4(moovChildren ...[]byte) []byte {
	ftyp := Atom("ftyp", []byte("isom"), U32(0x200), []byte("isomiso2"))
	return append(ftyp, Atom("moov", moovChildren...)...)
}

// WriteFile writes data under dir and returns the path.
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}
