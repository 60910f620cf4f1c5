package geocode

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrUnavailable is returned when a location cannot be resolved: the service
// failed, refused, or returned nothing usable.
var ErrUnavailable = errors.New("geocode: location unavailable")

// DefaultPrecision is the number of decimal places coordinates are rounded to
// before lookup and caching (about 110 m).
const DefaultPrecision = 3

// Location is a resolved place. Fields the service did not provide are empty.
type Location struct {
	Name    string `json:"name"`
	City    string `json:"city"`
	Country string `json:"country"`
}

// Address fields tried in order for the place name and the city.
var (
	nameFields = []string{
		"amenity", "building", "tourism", "leisure", "suburb",
		"neighbourhood", "hamlet", "village", "town", "city",
	}
	cityFields = []string{"city", "town", "village", "municipality"}
)

type nominatimResponse struct {
	DisplayName string            `json:"display_name"`
	Address     map[string]string `json:"address"`
	Error       string            `json:"error"`
}

func (r nominatimResponse) location() Location {
	name := firstField(r.Address, nameFields)
	if name == "" {
		name, _, _ = strings.Cut(r.DisplayName, ",")
		name = strings.TrimSpace(name)
	}
	return Location{
		Name:    name,
		City:    firstField(r.Address, cityFields),
		Country: strings.TrimSpace(r.Address["country"]),
	}
}

func firstField(addr map[string]string, fields []string) string {
	for _, f := range fields {
		if v := strings.TrimSpace(addr[f]); v != "" {
			return v
		}
	}
	return ""
}

// Round rounds a coordinate to precision decimal places.
func Round(v float64, precision int) float64 {
	scale := math.Pow10(precision)
	return math.Round(v*scale) / scale
}

func cacheKey(lat, lon float64, precision int) string {
	// Rounding can yield -0, which would print as "-0.000".
	if lat == 0 {
		lat = 0
	}
	if lon == 0 {
		lon = 0
	}
	return fmt.Sprintf("%.*f,%.*f", precision, lat, precision, lon)
}
