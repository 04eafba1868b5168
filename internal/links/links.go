// Package links builds outbound navigation URLs (map searches, booking
// pages) and abstracts how they are opened.
package links

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// mapsZoom is the fixed zoom level for position-anchored map searches.
const mapsZoom = "14z"

var whitespaceRe = regexp.MustCompile(`\s+`)

// Slugify lowercases a specialty name and joins its words with hyphens, the
// form booking-site URLs expect ("médecin généraliste" → "médecin-généraliste").
func Slugify(specialty string) string {
	return whitespaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(specialty)), "-")
}

// MapsSearchAround returns a map-search URL for query anchored at the given
// coordinates.
func MapsSearchAround(query string, lat, lon float64) string {
	return fmt.Sprintf("https://www.google.com/maps/search/%s/@%g,%g,%s",
		url.PathEscape(query), lat, lon, mapsZoom)
}

// MapsSearchInCity returns a text map-search URL for query within a city.
func MapsSearchInCity(query, city string) string {
	return "https://www.google.com/maps/search/" + url.PathEscape(query+" "+city)
}

// MapsDirections returns a map URL pointing at a street address.
func MapsDirections(address, city string) string {
	q := url.QueryEscape(strings.TrimSpace(address + " " + city))
	return "https://www.google.com/maps?q=" + q
}

// Doctolib returns the booking-site URL for a specialty in a city.
func Doctolib(specialty, city string) string {
	return fmt.Sprintf("https://www.doctolib.fr/%s/%s", Slugify(specialty), url.PathEscape(city))
}
