package metadata

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const exifDateLayout = "2006:01:02 15:04:05"

// rational converts an EXIF rational to a float. A zero denominator yields
// ok=false.
func rational(num, den int64) (float64, bool) {
	if den == 0 {
		return 0, false
	}
	return float64(num) / float64(den), true
}

// DMSToDecimal converts degrees/minutes/seconds to signed decimal degrees.
// Southern and western references produce negative values.
func DMSToDecimal(degrees, minutes, seconds float64, ref string) float64 {
	v := degrees + minutes/60 + seconds/3600
	switch strings.ToUpper(strings.TrimSpace(ref)) {
	case "S", "W":
		return -v
	}
	return v
}

// FormatExposure renders an exposure time the way cameras display it:
// sub-second exposures as "1/N", longer ones as seconds with one decimal.
func FormatExposure(seconds float64) string {
	if seconds <= 0 {
		return ""
	}
	if seconds < 1 {
		return fmt.Sprintf("1/%d", int(math.Round(1/seconds)))
	}
	return fmt.Sprintf("%.1fs", seconds)
}

// parseExifDate parses an EXIF date string in local time.
func parseExifDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(strings.TrimRight(s, "\x00"))
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(exifDateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Layouts tried for free-form video date tags, most specific first. Layouts
// without a zone are interpreted in local time.
var videoDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseVideoDate(s string, allowYearOnly bool) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range videoDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	if allowYearOnly && len(s) == 4 {
		if t, err := time.ParseInLocation("2006", s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseISO6709 parses a compact ISO 6709 location string such as
// "+40.7128-074.0060/" or "+40.7128-074.0060+010.000/". Any altitude
// component is ignored.
func ParseISO6709(s string) (lat, lon float64, ok bool) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "/")
	if len(s) < 2 || !isSign(s[0]) {
		return 0, 0, false
	}

	split := indexSign(s, 1)
	if split < 0 {
		return 0, 0, false
	}
	latPart, rest := s[:split], s[split:]

	if end := indexSign(rest, 1); end >= 0 {
		rest = rest[:end]
	}

	lat, err := strconv.ParseFloat(latPart, 64)
	if err != nil {
		return 0, 0, false
	}
	lon, err = strconv.ParseFloat(rest, 64)
	if err != nil {
		return 0, 0, false
	}
	if math.Abs(lat) > 90 || math.Abs(lon) > 180 {
		return 0, 0, false
	}
	return lat, lon, true
}

func isSign(c byte) bool {
	return c == '+' || c == '-'
}

func indexSign(s string, from int) int {
	for i := from; i < len(s); i++ {
		if isSign(s[i]) {
			return i
		}
	}
	return -1
}
