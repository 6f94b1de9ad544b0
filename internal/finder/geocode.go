package finder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/muesli/gominatim"
	"github.com/patrickmn/go-cache"
	"github.com/waysave/waysave/internal/station"
	"golang.org/x/time/rate"
)

const (
	geocodeCacheExpiry = 24 * time.Hour
	geocodeCacheClean  = time.Hour
)

// ErrLocationNotFound is returned when the geocoder has no match for a query.
var ErrLocationNotFound = errors.New("location not found")

// Place is a geocoded location.
type Place struct {
	Name     string
	Location station.Location
}

// Geocoder resolves free-text locations through Nominatim. Nominatim's usage policy
// allows one request per second, which the limiter enforces.
type Geocoder struct {
	limiter *rate.Limiter
	cache   *cache.Cache
	search  func(q string) ([]gominatim.SearchResult, error)
	log     *slog.Logger
}

var setServer sync.Once

// NewGeocoder returns a geocoder for the Nominatim server at url. gominatim keeps the
// server globally, so the first url wins.
func NewGeocoder(url string, logger *slog.Logger) *Geocoder {
	setServer.Do(func() { gominatim.SetServer(url) })
	return &Geocoder{
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		cache:   cache.New(geocodeCacheExpiry, geocodeCacheClean),
		search: func(q string) ([]gominatim.SearchResult, error) {
			qry := gominatim.SearchQuery{Q: q}
			return qry.Get()
		},
		log: logger,
	}
}

// Lookup returns the best match for query.
func (g *Geocoder) Lookup(ctx context.Context, query string) (Place, error) {
	key := strings.ToLower(strings.TrimSpace(query))
	if key == "" {
		return Place{}, fmt.Errorf("%w: empty query", ErrLocationNotFound)
	}
	if cached, found := g.cache.Get(key); found {
		g.log.Debug("Using cached data", "key", key)
		return cached.(Place), nil
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return Place{}, err
	}

	resp, err := g.search(query)
	if err != nil {
		return Place{}, fmt.Errorf("error geocoding %q: %w", query, err)
	}
	if len(resp) == 0 {
		return Place{}, fmt.Errorf("%w: %q", ErrLocationNotFound, query)
	}

	lat, err := strconv.ParseFloat(resp[0].Lat, 64)
	if err != nil {
		return Place{}, fmt.Errorf("error parsing latitude %q: %w", resp[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(resp[0].Lon, 64)
	if err != nil {
		return Place{}, fmt.Errorf("error parsing longitude %q: %w", resp[0].Lon, err)
	}

	place := Place{Name: resp[0].DisplayName, Location: station.Location{Lat: lat, Lng: lon}}
	g.cache.Set(key, place, cache.DefaultExpiration)
	g.log.Debug("Location found", "query", query, "name", place.Name)
	return place, nil
}
