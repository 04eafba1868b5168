// Package directory loads and serves the geocoded facility dataset: a
// semicolon-delimited tabular export with tolerant column aliasing, parsed
// once per session and ranked by great-circle distance on demand.
package directory

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vaccibot/vaccibot/internal/models"
	"github.com/vaccibot/vaccibot/internal/util"
)

// Column alias tables for the heterogeneous facility exports.
var (
	nameAliases    = []string{"Titre", "Nom", "name"}
	addressAliases = []string{"Adresse_voie 1", "Adresse", "address"}
	cityAliases    = []string{"Adresse_ville", "Ville", "city"}
	latAliases     = []string{"Adresse_latitude", "lat", "latitude"}
	lonAliases     = []string{"Adresse_longitude", "lon", "longitude"}
	hoursAliases   = []string{"Horaires", "Heures", "Hours"}

	perDayAliases = map[string][]string{
		"Lundi":    {"Lundi", "Lun", "Mon"},
		"Mardi":    {"Mardi", "Mar", "Tue"},
		"Mercredi": {"Mercredi", "Mer", "Wed"},
		"Jeudi":    {"Jeudi", "Jeu", "Thu"},
		"Vendredi": {"Vendredi", "Ven", "Fri"},
		"Samedi":   {"Samedi", "Sam", "Sat"},
		"Dimanche": {"Dimanche", "Dim", "Sun"},
	}
)

// defaultName is used when a record carries no recognizable name column.
const defaultName = "Pharmacie"

// liEntryRe extracts "<li>Day: range</li>" entries from the embedded
// HTML-like schedule cell some exports use instead of per-day columns.
var liEntryRe = regexp.MustCompile(`(?i)<li>\s*(Lundi|Mardi|Mercredi|Jeudi|Vendredi|Samedi|Dimanche)\s*:\s*([^<]+?)\s*</li>`)

// liCellRe detects whether a cell contains such entries at all.
var liCellRe = regexp.MustCompile(`(?i)<li>.*</li>`)

var nbspReplacer = strings.NewReplacer("&nbsp;", " ", "&#160;", " ")

// RankedFacility pairs a facility with its distance from a query point.
type RankedFacility struct {
	models.Facility
	DistanceKm float64
}

// Directory caches the facility dataset for the lifetime of a session.
// Load runs the fetch and parse at most once; concurrent callers share the
// same in-flight result.
type Directory struct {
	source string
	client *http.Client
	now    func() time.Time

	group      singleflight.Group
	mu         sync.RWMutex
	facilities []models.Facility
	loaded     bool
}

// Option configures a Directory.
type Option func(*Directory)

// WithHTTPClient overrides the HTTP client used for URL sources.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Directory) { d.client = c }
}

// WithClock overrides the clock used to resolve "today" at load time.
func WithClock(now func() time.Time) Option {
	return func(d *Directory) { d.now = now }
}

// New creates a Directory reading from source, which may be a local file
// path or an HTTP(S) URL.
func New(source string, opts ...Option) *Directory {
	d := &Directory{
		source: source,
		client: &http.Client{Timeout: 30 * time.Second},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Load fetches and parses the facility source exactly once per session and
// caches the result, including the empty result of a failed fetch; downstream
// lookups then degrade to "no results" messaging. The returned error reports
// the first load's failure but never clears the cache.
func (d *Directory) Load(ctx context.Context) ([]models.Facility, error) {
	d.mu.RLock()
	if d.loaded {
		defer d.mu.RUnlock()
		return d.facilities, nil
	}
	d.mu.RUnlock()

	_, err, _ := d.group.Do("load", func() (interface{}, error) {
		facilities, err := d.fetchAndParse(ctx)
		if err != nil {
			slog.Error("Directory.Load: fetch failed, caching empty directory", "error", err, "source", d.source)
			facilities = nil
		}
		d.mu.Lock()
		d.facilities = facilities
		d.loaded = true
		d.mu.Unlock()
		slog.Info("Directory.Load: dataset cached", "source", d.source, "count", len(facilities))
		return facilities, err
	})

	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.facilities, err
}

// Facilities returns the cached dataset without triggering a load.
func (d *Directory) Facilities() []models.Facility {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.facilities
}

// FindNearest returns the limit closest facilities to the query point,
// sorted ascending by distance. Ties keep input order.
func (d *Directory) FindNearest(lat, lon float64, limit int) []RankedFacility {
	d.mu.RLock()
	facilities := d.facilities
	d.mu.RUnlock()

	ranked := make([]RankedFacility, 0, len(facilities))
	for _, f := range facilities {
		ranked = append(ranked, RankedFacility{
			Facility:   f,
			DistanceKm: util.DistanceKm(lat, lon, f.Latitude, f.Longitude),
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].DistanceKm < ranked[j].DistanceKm })
	if limit < len(ranked) {
		ranked = ranked[:limit]
	}
	return ranked
}

// FilterCity returns up to limit facilities whose city contains the given
// city name, case-insensitively.
func (d *Directory) FilterCity(city string, limit int) []models.Facility {
	d.mu.RLock()
	facilities := d.facilities
	d.mu.RUnlock()

	needle := strings.ToLower(city)
	var out []models.Facility
	for _, f := range facilities {
		if f.City == "" || !strings.Contains(strings.ToLower(f.City), needle) {
			continue
		}
		out = append(out, f)
		if len(out) == limit {
			break
		}
	}
	return out
}

// fetchAndParse retrieves the raw CSV bytes and converts them to facility
// records.
func (d *Directory) fetchAndParse(ctx context.Context) ([]models.Facility, error) {
	reader, err := d.open(ctx)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return d.parse(reader)
}

func (d *Directory) open(ctx context.Context) (io.ReadCloser, error) {
	if strings.HasPrefix(d.source, "http://") || strings.HasPrefix(d.source, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.source, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		resp, err := d.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch facility source: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("facility source returned status %d", resp.StatusCode)
		}
		return resp.Body, nil
	}

	f, err := os.Open(d.source)
	if err != nil {
		return nil, fmt.Errorf("failed to open facility source: %w", err)
	}
	return f, nil
}

// parse reads the semicolon-delimited export. Records missing a finite
// coordinate pair are dropped; everything else degrades field by field.
func (d *Directory) parse(r io.Reader) ([]models.Facility, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}

	today := util.DayLabel(d.now())
	var facilities []models.Facility
	dropped := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			slog.Debug("Directory.parse: skipping malformed row", "error", err)
			continue
		}

		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				row[strings.TrimSpace(col)] = record[i]
			}
		}

		facility, ok := parseFacility(row, today)
		if !ok {
			dropped++
			continue
		}
		facilities = append(facilities, facility)
	}
	if dropped > 0 {
		slog.Debug("Directory.parse: dropped records without coordinates", "dropped", dropped)
	}
	return facilities, nil
}

// parseFacility converts one raw row, resolving aliases and parsing
// coordinates and hours. ok is false when the coordinate pair is unusable.
func parseFacility(row map[string]string, today string) (models.Facility, bool) {
	lat, latOK := parseCoordinate(util.PickFirstNonEmpty(row, latAliases))
	lon, lonOK := parseCoordinate(util.PickFirstNonEmpty(row, lonAliases))
	if !latOK || !lonOK {
		return models.Facility{}, false
	}

	name := util.PickFirstNonEmpty(row, nameAliases)
	if name == "" {
		name = defaultName
	}

	global := util.PickFirstNonEmpty(row, hoursAliases)
	perDay := make(map[string]string)
	for day, aliases := range perDayAliases {
		if v := util.PickFirstNonEmpty(row, aliases); v != "" {
			perDay[day] = v
		}
	}

	var todayRanges []models.OpeningRange
	if len(perDay) > 0 {
		todayStr := perDay[today]
		if todayStr == "" {
			todayStr = global
		}
		todayRanges = slices.Collect(util.ParseOpeningRanges(todayStr))
	} else {
		perDay, todayRanges = extractOpeningFromHTMLCell(row, today)
	}

	return models.Facility{
		Name:        name,
		Address:     util.PickFirstNonEmpty(row, addressAliases),
		City:        util.PickFirstNonEmpty(row, cityAliases),
		Latitude:    lat,
		Longitude:   lon,
		Hours:       models.FacilityHours{Global: global, PerDay: perDay},
		TodayRanges: todayRanges,
	}, true
}

// parseCoordinate parses a latitude/longitude value, accepting a comma as
// the decimal separator.
func parseCoordinate(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// extractOpeningFromHTMLCell falls back to the embedded "<li>Day: range</li>"
// list some exports carry in an arbitrary column.
func extractOpeningFromHTMLCell(row map[string]string, today string) (map[string]string, []models.OpeningRange) {
	var html string
	for _, v := range row {
		if liCellRe.MatchString(v) {
			html = v
			break
		}
	}
	perDay := make(map[string]string)
	if html == "" {
		return perDay, nil
	}

	for _, m := range liEntryRe.FindAllStringSubmatch(html, -1) {
		day := m[1]
		times := strings.TrimSpace(nbspReplacer.Replace(m[2]))
		perDay[day] = times
	}
	return perDay, slices.Collect(util.ParseOpeningRanges(perDay[today]))
}
