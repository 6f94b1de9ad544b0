// Package finder collects the stations around a point from the configured sources.
package finder

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/waysave/waysave/internal/metrics"
	"github.com/waysave/waysave/internal/prefs"
	"github.com/waysave/waysave/internal/station"
	"github.com/waysave/waysave/pkg/api"
)

const (
	evCacheExpiry  = 5 * time.Minute
	evCacheCleanup = 10 * time.Minute
	evSourceName   = "ocm"
)

// LocationLogger records searched areas.
type LocationLogger interface {
	LogSearchLocation(ctx context.Context, latitude, longitude, distanceKm float64) error
}

// Finder fetches and normalizes the stations of the active tab. It never ranks.
type Finder struct {
	fuel        FuelSource
	ev          ChargePointSource
	locations   LocationLogger
	cache       *cache.Cache
	maxRadiusKm float64
	log         *slog.Logger
}

// Options configure a Finder. Nil sources yield no stations for their category.
type Options struct {
	Fuel      FuelSource
	EV        ChargePointSource
	Locations LocationLogger

	// MaxRadiusKm caps the radius of EV queries. Zero means no cap.
	MaxRadiusKm float64
}

func New(opts Options, logger *slog.Logger) *Finder {
	return &Finder{
		fuel:        opts.Fuel,
		ev:          opts.EV,
		locations:   opts.Locations,
		cache:       cache.New(evCacheExpiry, evCacheCleanup),
		maxRadiusKm: opts.MaxRadiusKm,
		log:         logger,
	}
}

// Nearby returns the unranked stations of p.ActiveTab around origin. A failing source
// yields an empty list and the error, so callers can both render and report it.
func (f *Finder) Nearby(ctx context.Context, origin station.Location, p prefs.Preferences) ([]station.Station, error) {
	f.logLocation(ctx, origin, p.MaxDistanceKm)

	if p.ActiveTab == prefs.TabEV {
		return f.chargers(ctx, origin, p.MaxDistanceKm)
	}
	return f.fuelStations(ctx, origin, p)
}

func (f *Finder) fuelStations(ctx context.Context, origin station.Location, p prefs.Preferences) ([]station.Station, error) {
	if f.fuel == nil {
		return []station.Station{}, nil
	}

	stations, err := f.fuel.Fetch(ctx, origin, p.MaxDistanceKm, p.FuelType)
	if err != nil {
		metrics.SourceFetches.WithLabelValues(f.fuel.Name(), metrics.OutcomeError).Inc()
		f.log.Error("Fuel source failed", "source", f.fuel.Name(), "error", err)
		return []station.Station{}, fmt.Errorf("error fetching fuel stations: %w", err)
	}

	metrics.SourceFetches.WithLabelValues(f.fuel.Name(), metrics.OutcomeOK).Inc()
	f.log.Debug("Fuel stations fetched", "source", f.fuel.Name(), "count", len(stations))
	return stations, nil
}

func (f *Finder) chargers(ctx context.Context, origin station.Location, radiusKm float64) ([]station.Station, error) {
	if f.ev == nil {
		return []station.Station{}, nil
	}
	if f.maxRadiusKm > 0 {
		radiusKm = math.Min(radiusKm, f.maxRadiusKm)
	}

	cacheKey := evCacheKey(origin, radiusKm)
	points, cached := f.cachedPoints(cacheKey)
	if !cached {
		var err error
		points, err = f.ev.NearbyChargePoints(ctx, origin.Lat, origin.Lng, radiusKm)
		if err != nil {
			metrics.SourceFetches.WithLabelValues(evSourceName, metrics.OutcomeError).Inc()
			f.log.Error("Charge point source failed", "source", evSourceName, "error", err)
			return []station.Station{}, fmt.Errorf("error fetching charge points: %w", err)
		}
		metrics.SourceFetches.WithLabelValues(evSourceName, metrics.OutcomeOK).Inc()
		f.cache.Set(cacheKey, points, cache.DefaultExpiration)
	}

	return normalize(f.log, evSourceName, points, func(i int) (station.Station, error) {
		cp := points[i]
		if cached && cp.AddressInfo != nil {
			// the reported distance belongs to the origin of the first query
			info := *cp.AddressInfo
			info.Distance = nil
			cp.AddressInfo = &info
		}
		return station.FromChargePoint(&cp, origin)
	}), nil
}

func (f *Finder) cachedPoints(key string) ([]api.ChargePoint, bool) {
	v, found := f.cache.Get(key)
	if !found {
		return nil, false
	}
	metrics.SourceFetches.WithLabelValues(evSourceName, metrics.OutcomeCache).Inc()
	f.log.Debug("Using cached data", "key", key)
	return v.([]api.ChargePoint), true
}

func (f *Finder) logLocation(ctx context.Context, origin station.Location, radiusKm float64) {
	if f.locations == nil {
		return
	}
	if err := f.locations.LogSearchLocation(ctx, origin.Lat, origin.Lng, radiusKm); err != nil {
		f.log.Error("Failed to log search location", "error", err)
		return
	}
	f.log.Debug("Search location logged", "latitude", origin.Lat, "longitude", origin.Lng)
}

// evCacheKey groups origins about 1 km apart.
func evCacheKey(origin station.Location, radiusKm float64) string {
	return fmt.Sprintf("ev_%.2f_%.2f_%g", origin.Lat, origin.Lng, radiusKm)
}

// Compile-time checks.
var (
	_ ChargePointSource = (*api.OpenChargeMap)(nil)
	_ FuelSource        = (*Snapshot)(nil)
	_ FuelSource        = (*Retailer)(nil)
	_ FuelSource        = (*Static)(nil)
)
