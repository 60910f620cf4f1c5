// Package metadata reads embedded capture metadata from media files and
// writes star ratings back into them.
//
// Images are read through their EXIF block (camera, capture time, exposure
// settings, GPS position, rating). MP4-family videos are read from the movie
// header and the iTunes/QuickTime metadata atoms (creation time, ISO 6709
// location, rating). Extraction never fails loudly: unreadable or malformed
// files yield no fragment and a debug log line.
//
// Only JPEG files support rating write-back.
package metadata
