package twitter

import (
	"fmt"
	"regexp"
	"strings"
)

// geofilterPattern is the accepted "lat,long,radiuskm" grammar. Coordinates
// need a fractional part; ranges are not checked.
var geofilterPattern = regexp.MustCompile(`^(-?\d+\.\d+),(-?\d+\.\d+),(\d+(?:\.\d+)?)km$`)

// Geofilter restricts a search to a radius around a point
type Geofilter struct {
	Latitude  string
	Longitude string
	RadiusKM  string
}

// String renders the geocode search parameter
func (g Geofilter) String() string {
	return fmt.Sprintf("%s,%s,%skm", g.Latitude, g.Longitude, g.RadiusKM)
}

// ParseGeofilter validates a "lat,long,radiuskm" string
func ParseGeofilter(s string) (*Geofilter, error) {
	m := geofilterPattern.FindStringSubmatch(s)
	if m == nil {
		return nil, &ValidationError{
			Field:   "geofilter",
			Value:   s,
			Message: `expected "lat,long,radiuskm" such as "51.5072,-0.1276,10km"`,
		}
	}
	return &Geofilter{Latitude: m[1], Longitude: m[2], RadiusKM: m[3]}, nil
}

// NewGeofilter builds a geofilter from separate parts. It returns nil, nil
// unless all three parts are supplied. A trailing "km" on radius is optional.
func NewGeofilter(latitude, longitude, radius string) (*Geofilter, error) {
	latitude = strings.TrimSpace(latitude)
	longitude = strings.TrimSpace(longitude)
	radius = strings.TrimSuffix(strings.TrimSpace(radius), "km")
	if latitude == "" || longitude == "" || radius == "" {
		return nil, nil
	}
	return ParseGeofilter(fmt.Sprintf("%s,%s,%skm", latitude, longitude, radius))
}
