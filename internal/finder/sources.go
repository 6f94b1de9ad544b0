package finder

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/waysave/waysave/internal/prefs"
	"github.com/waysave/waysave/internal/station"
	"github.com/waysave/waysave/pkg/api"
)

// FuelSource yields fuel stations around a point, normalized for a fuel type.
type FuelSource interface {
	Name() string
	Fetch(ctx context.Context, origin station.Location, radiusKm float64, fuelType prefs.FuelType) ([]station.Station, error)
}

// ChargePointSource yields EV charge points around a point.
type ChargePointSource interface {
	NearbyChargePoints(ctx context.Context, lat, lng, distanceKm float64) ([]api.ChargePoint, error)
}

// SnapshotStore is the part of the database holding fuel price snapshots.
type SnapshotStore interface {
	NearbyPrices(ctx context.Context, lat, lng, radiusKm float64) ([]*api.GasStation, error)
}

// Snapshot reads the newest stored snapshot of the Spanish fuel feed.
type Snapshot struct {
	store SnapshotStore
	log   *slog.Logger
}

func NewSnapshot(store SnapshotStore, logger *slog.Logger) *Snapshot {
	return &Snapshot{store: store, log: logger}
}

func (s *Snapshot) Name() string { return "snapshot" }

func (s *Snapshot) Fetch(ctx context.Context, origin station.Location, radiusKm float64, fuelType prefs.FuelType) ([]station.Station, error) {
	records, err := s.store.NearbyPrices(ctx, origin.Lat, origin.Lng, radiusKm)
	if err != nil {
		return nil, err
	}
	return normalize(s.log, s.Name(), records, func(i int) (station.Station, error) {
		return station.FromGasStation(records[i], fuelType, origin)
	}), nil
}

// Retailer fetches a UK retailer open-data feed.
type Retailer struct {
	url    string
	client *http.Client
	log    *slog.Logger
}

func NewRetailer(url string, client *http.Client, logger *slog.Logger) *Retailer {
	if client == nil {
		client = &http.Client{Timeout: api.DefaultTimeout}
	}
	return &Retailer{url: url, client: client, log: logger}
}

func (r *Retailer) Name() string { return "retailer" }

func (r *Retailer) Fetch(ctx context.Context, origin station.Location, _ float64, fuelType prefs.FuelType) ([]station.Station, error) {
	records, err := api.FetchRetailerStations(ctx, r.client, r.url)
	if err != nil {
		return nil, err
	}
	return normalize(r.log, r.Name(), records, func(i int) (station.Station, error) {
		return station.FromRetailer(i, &records[i], fuelType, origin)
	}), nil
}

// Static serves the built-in dataset. Its prices are not split by fuel type.
type Static struct {
	records []api.FuelRecord
	log     *slog.Logger
}

func NewStatic(records []api.FuelRecord, logger *slog.Logger) *Static {
	if records == nil {
		records = api.StaticFuelDataset
	}
	return &Static{records: records, log: logger}
}

func (s *Static) Name() string { return "static" }

func (s *Static) Fetch(_ context.Context, origin station.Location, _ float64, _ prefs.FuelType) ([]station.Station, error) {
	return normalize(s.log, s.Name(), s.records, func(i int) (station.Station, error) {
		return station.FromFuelRecord(s.records[i], origin)
	}), nil
}

// normalize maps records with conv. Records that cannot be mapped are logged and
// dropped.
func normalize[T any](log *slog.Logger, source string, records []T, conv func(i int) (station.Station, error)) []station.Station {
	out := make([]station.Station, 0, len(records))
	for i := range records {
		st, err := conv(i)
		if err != nil {
			log.Warn("Dropping station record", "source", source, "error", err)
			continue
		}
		out = append(out, st)
	}
	return out
}
