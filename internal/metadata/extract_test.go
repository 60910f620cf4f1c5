package metadata_test

import (
	"os"
	"testing"
	"time"

	exifcommon "github.com/dsoprea/go-exif/v3/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-index/internal/mediatypes"
	"media-index/internal/metadata"
	mdt "media-index/internal/metadata/metadatatest"
)

func TestExtractImageWithGPS(t *testing.T) {
	t.Parallel()

	tags := mdt.NewYork()
	tags.Make = "Canon"
	tags.Model = "EOS R5"
	tags.DateTimeOriginal = "2023:06:15 14:30:00"
	tags.ExposureTime = exifcommon.Rational{Numerator: 1, Denominator: 250}
	tags.FNumber = exifcommon.Rational{Numerator: 28, Denominator: 10}
	tags.FocalLength = exifcommon.Rational{Numerator: 50, Denominator: 1}
	tags.ISO = 400
	tags.Flash = mdt.Uint16(0)

	path := mdt.JPEG(t, t.TempDir(), "nyc.jpg", tags)

	frag, ok := metadata.Extract(path, mediatypes.FileTypeImage)
	require.True(t, ok)

	assert.Equal(t, "Canon", frag.CameraMake)
	assert.Equal(t, "EOS R5", frag.CameraModel)
	require.NotNil(t, frag.DateTaken)
	assert.Equal(t, time.Date(2023, 6, 15, 14, 30, 0, 0, time.Local), *frag.DateTaken)
	require.True(t, frag.HasCoordinates())
	assert.InDelta(t, 40.7128, *frag.Latitude, 1e-4)
	assert.InDelta(t, -74.006, *frag.Longitude, 1e-4)
	assert.Equal(t, "1/250", frag.ShutterSpeed)
	require.NotNil(t, frag.Aperture)
	assert.InDelta(t, 2.8, *frag.Aperture, 1e-9)
	require.NotNil(t, frag.FocalLength)
	assert.InDelta(t, 50.0, *frag.FocalLength, 1e-9)
	require.NotNil(t, frag.ISO)
	assert.Equal(t, 400, *frag.ISO)
	assert.Equal(t, "No", frag.Flash)
	assert.Nil(t, frag.Rating)
}

func TestExtractImageWithoutExif(t *testing.T) {
	t.Parallel()

	path := mdt.PlainJPEG(t, t.TempDir(), "plain.jpg")

	_, err := metadata.ExtractImage(path)
	assert.ErrorIs(t, err, metadata.ErrNoMetadata)

	_, ok := metadata.Extract(path, mediatypes.FileTypeImage)
	assert.False(t, ok)
}

func TestExtractUnsupportedFormats(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	gif := mdt.WriteFile(t, dir, "anim.gif", []byte("GIF89a"))
	avi := mdt.WriteFile(t, dir, "old.avi", []byte("RIFF"))

	_, ok := metadata.Extract(gif, mediatypes.FileTypeImage)
	assert.False(t, ok)
	_, ok = metadata.Extract(avi, mediatypes.FileTypeVideo)
	assert.False(t, ok)
}

func TestExtractMissingFile(t *testing.T) {
	t.Parallel()

	_, ok := metadata.Extract("/nonexistent/photo.jpg", mediatypes.FileTypeImage)
	assert.False(t, ok)
}

func TestWriteImageRatingRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := mdt.PlainJPEG(t, dir, "plain.jpg")

	require.True(t, metadata.WriteRating(path, mediatypes.FileTypeImage, 3))

	frag, ok := metadata.Extract(path, mediatypes.FileTypeImage)
	require.True(t, ok)
	require.NotNil(t, frag.Rating)
	assert.Equal(t, 3, *frag.Rating)

	// Existing tags survive a second write.
	tagged := mdt.JPEG(t, dir, "tagged.jpg", mdt.ImageTags{Make: "Nikon", Rating: mdt.Uint16(1)})
	require.NoError(t, metadata.WriteImageRating(tagged, 5))

	frag, ok = metadata.Extract(tagged, mediatypes.FileTypeImage)
	require.True(t, ok)
	assert.Equal(t, "Nikon", frag.CameraMake)
	require.NotNil(t, frag.Rating)
	assert.Equal(t, 5, *frag.Rating)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temporary files left behind")
}

func TestWriteImageRatingRejects(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	jpg := mdt.PlainJPEG(t, dir, "a.jpg")
	png := mdt.WriteFile(t, dir, "a.png", []byte("\x89PNG"))

	assert.Error(t, metadata.WriteImageRating(jpg, 6))
	assert.Error(t, metadata.WriteImageRating(jpg, -1))
	assert.Error(t, metadata.WriteImageRating(png, 3))
	assert.False(t, metadata.WriteRating(png, mediatypes.FileTypeImage, 3))
}

func TestWriteVideoRatingUnsupported(t *testing.T) {
	t.Parallel()

	path := mdt.WriteFile(t, t.TempDir(), "clip.mp4", mdt.MP4(mdt.Mvhd(3000000000, 0)))

	assert.ErrorIs(t, metadata.WriteVideoRating(path, 4), metadata.ErrRatingUnsupported)
	assert.False(t, metadata.WriteRating(path, mediatypes.FileTypeVideo, 4))
}

func TestExtractVideoMovieHeader(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	path := mdt.WriteFile(t, dir, "clip.mp4", mdt.MP4(mdt.Mvhd(3000000000, 0)))
	frag, ok := metadata.Extract(path, mediatypes.FileTypeVideo)
	require.True(t, ok)
	require.NotNil(t, frag.DateTaken)
	assert.Equal(t, int64(917155200), frag.DateTaken.Unix())

	// Creation time unset, modification time used.
	path = mdt.WriteFile(t, dir, "mod.mov", mdt.MP4(mdt.Mvhd(0, 3000000000)))
	frag, ok = metadata.Extract(path, mediatypes.FileTypeVideo)
	require.True(t, ok)
	assert.Equal(t, int64(917155200), frag.DateTaken.Unix())
}

func TestExtractVideoImplausibleHeaderFallsBackToTags(t *testing.T) {
	t.Parallel()

	data := mdt.MP4(
		mdt.Mvhd(100, 0),
		mdt.Atom("udta", mdt.Meta(mdt.Atom("ilst", mdt.Text("\xa9day", "2019")))),
	)
	path := mdt.WriteFile(t, t.TempDir(), "clip.m4v", data)

	frag, ok := metadata.Extract(path, mediatypes.FileTypeVideo)
	require.True(t, ok)
	require.NotNil(t, frag.DateTaken)
	assert.Equal(t, time.Date(2019, 1, 1, 0, 0, 0, 0, time.Local), *frag.DateTaken)
}

func TestExtractVideoQuickTimeKeys(t *testing.T) {
	t.Parallel()

	data := mdt.MP4(
		mdt.Mvhd(0, 0),
		mdt.Meta(
			mdt.Keys("com.apple.quicktime.creationdate", "com.apple.quicktime.location.ISO6709"),
			mdt.Atom("ilst",
				mdt.KeyedText(1, "2021-03-04T05:06:07Z"),
				mdt.KeyedText(2, "+40.7128-074.0060+010.000/"),
			),
		),
	)
	path := mdt.WriteFile(t, t.TempDir(), "iphone.mov", data)

	frag, ok := metadata.Extract(path, mediatypes.FileTypeVideo)
	require.True(t, ok)
	require.NotNil(t, frag.DateTaken)
	assert.True(t, time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC).Equal(*frag.DateTaken))
	require.True(t, frag.HasCoordinates())
	assert.InDelta(t, 40.7128, *frag.Latitude, 1e-9)
	assert.InDelta(t, -74.006, *frag.Longitude, 1e-9)
}

func TestExtractVideoRating(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	scaled := mdt.MP4(mdt.Mvhd(0, 0),
		mdt.Atom("udta", mdt.Meta(mdt.Atom("ilst", mdt.Int("rate", 80)))))
	frag, ok := metadata.Extract(mdt.WriteFile(t, dir, "a.mp4", scaled), mediatypes.FileTypeVideo)
	require.True(t, ok)
	require.NotNil(t, frag.Rating)
	assert.Equal(t, 4, *frag.Rating)

	custom := mdt.MP4(mdt.Mvhd(0, 0),
		mdt.Atom("udta", mdt.Meta(mdt.Atom("ilst", mdt.Freeform("com.apple.iTunes", "rating", "2")))))
	frag, ok = metadata.Extract(mdt.WriteFile(t, dir, "b.mp4", custom), mediatypes.FileTypeVideo)
	require.True(t, ok)
	require.NotNil(t, frag.Rating)
	assert.Equal(t, 2, *frag.Rating)
}

func TestExtractVideoWithoutMetadata(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	empty := mdt.WriteFile(t, dir, "empty.mp4", mdt.MP4(mdt.Mvhd(0, 0)))
	_, err := metadata.ExtractVideo(empty)
	assert.ErrorIs(t, err, metadata.ErrNoMetadata)

	garbage := mdt.WriteFile(t, dir, "garbage.mp4", []byte("this is not a movie at all"))
	_, ok := metadata.Extract(garbage, mediatypes.FileTypeVideo)
	assert.False(t, ok)
}
