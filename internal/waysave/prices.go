package waysave

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/tkrajina/gpxgo/gpx"
	"github.com/waysave/waysave/pkg/api"
)

const (
	lastPricesCacheKey = "last_price"
	metersPerKm        = 1000.0
	defaultSleepMs     = 200
)

// ErrNoSnapshot is returned when no fuel price snapshot has been stored yet.
var ErrNoSnapshot = errors.New("no fuel price data available")

func (s *Storage) SavePrices(ctx context.Context, date time.Time, data []byte) error {
	dateStr := date.Format(dateLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer s.rollback(tx)

	_, err = tx.ExecContext(ctx, "INSERT OR REPLACE INTO fuel_prices (date, data) VALUES (?, ?)", dateStr, data)
	if err != nil {
		return fmt.Errorf("error inserting data: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}

	s.cache.Delete(lastPricesCacheKey)
	return nil
}

func (s *Storage) HasDate(ctx context.Context, date time.Time) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM fuel_prices WHERE date = ?", date.Format(dateLayout)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("error checking date existence: %w", err)
	}
	return count > 0, nil
}

// GetLastPrices returns the newest snapshot.
func (s *Storage) GetLastPrices(ctx context.Context) (*api.GasStationList, error) {
	if cachedData, found := s.cache.Get(lastPricesCacheKey); found {
		s.log.Debug("Using cached data", "key", lastPricesCacheKey)
		return cachedData.(*api.GasStationList), nil
	}

	var jsonData []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM fuel_prices ORDER BY date DESC LIMIT 1").Scan(&jsonData)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("error querying database: %w", err)
	}

	var pricesResponse api.GasStationList
	if err := json.Unmarshal(jsonData, &pricesResponse); err != nil {
		return nil, fmt.Errorf("error unmarshaling data: %w", err)
	}

	s.cache.Set(lastPricesCacheKey, &pricesResponse, cache.DefaultExpiration)
	return &pricesResponse, nil
}

// GetLastUpdateDate returns the date of the newest snapshot, or nil when there is none.
func (s *Storage) GetLastUpdateDate(ctx context.Context) (*time.Time, error) {
	var dateStr string
	err := s.db.QueryRowContext(ctx, "SELECT date FROM fuel_prices ORDER BY date DESC LIMIT 1").Scan(&dateStr)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("error querying last update date: %w", err)
	}

	lastUpdate, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		return nil, fmt.Errorf("error parsing date %s: %w", dateStr, err)
	}

	return &lastUpdate, nil
}

// NearbyPrices returns the stations of the newest snapshot within radiusKm of the point.
func (s *Storage) NearbyPrices(ctx context.Context, lat, lng, radiusKm float64) ([]*api.GasStation, error) {
	pricesResponse, err := s.GetLastPrices(ctx)
	if err != nil {
		return nil, err
	}

	var nearbyStations []*api.GasStation
	for i := range pricesResponse.ListaEESSPrecio {
		gs := &pricesResponse.ListaEESSPrecio[i]
		stationLat, err := api.ParseDecimal(gs.Latitud)
		if err != nil {
			continue
		}
		stationLng, err := api.ParseDecimal(gs.Longitud)
		if err != nil {
			continue
		}

		if gpx.Distance2D(lat, lng, stationLat, stationLng, true) <= radiusKm*metersPerKm {
			nearbyStations = append(nearbyStations, gs)
		}
	}

	return nearbyStations, nil
}

// UpdateDB fetches today's snapshot and stores it.
func (s *Storage) UpdateDB(ctx context.Context, fuelAPI *api.FuelPriceAPI) error {
	pricesResponse, err := fuelAPI.FetchPrices(ctx)
	if err != nil {
		return err
	}
	return s.savePricesResponse(ctx, time.Now(), pricesResponse)
}

// Backfill stores the snapshots of the days between from and yesterday that are missing.
// Days that fail are logged and skipped. It returns the number of days stored.
func (s *Storage) Backfill(ctx context.Context, fuelAPI *api.FuelPriceAPI, from time.Time) (int, error) {
	endDate := time.Now().AddDate(0, 0, -1)
	saved := 0

	for date := from; !date.After(endDate); date = date.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return saved, err
		}

		day := date.Format(dateLayout)
		hasDate, err := s.HasDate(ctx, date)
		if err != nil {
			s.log.Debug("error checking if date exists", "date", day, "error", err)
			continue
		}
		if hasDate {
			continue
		}

		s.log.Debug("fetching data for", "date", day)
		pricesResponse, err := fuelAPI.FetchPricesForDate(ctx, date)
		if err != nil {
			s.log.Warn("Error fetching prices for date", "date", day, "error", err)
			continue
		}
		if err := s.savePricesResponse(ctx, date, pricesResponse); err != nil {
			s.log.Warn("Error saving prices for date", "date", day, "error", err)
			continue
		}
		saved++
		s.log.Debug("Saved data for", "date", day)
		time.Sleep(defaultSleepMs * time.Millisecond)
	}

	return saved, nil
}

func (s *Storage) savePricesResponse(ctx context.Context, date time.Time, pricesResponse *api.GasStationList) error {
	if pricesResponse.ResultadoConsulta != api.ApiResultOK {
		return fmt.Errorf("API returned non-OK result: %s", pricesResponse.ResultadoConsulta)
	}

	data, err := json.Marshal(pricesResponse)
	if err != nil {
		return fmt.Errorf("error marshaling data: %w", err)
	}

	return s.SavePrices(ctx, date, data)
}

// DeleteOldRecords removes the snapshots older than daysOld days, one row at a time to
// keep memory use flat on large databases.
func (s *Storage) DeleteOldRecords(ctx context.Context, daysOld int) (int, error) {
	cutoffDate := time.Now().AddDate(0, 0, -daysOld).Format(dateLayout)
	s.log.Info("Starting cleanup of old records", "cutoff_date", cutoffDate)

	deletedCount := 0
	for {
		var rowid int64
		err := s.db.QueryRowContext(ctx, "SELECT ROWID FROM fuel_prices WHERE date < ? ORDER BY ROWID LIMIT 1", cutoffDate).Scan(&rowid)
		if err != nil {
			if err == sql.ErrNoRows {
				break
			}
			return deletedCount, fmt.Errorf("error querying fuel_prices ROWID: %w", err)
		}

		_, err = s.db.ExecContext(ctx, "DELETE FROM fuel_prices WHERE ROWID = ?", rowid)
		if err != nil {
			return deletedCount, fmt.Errorf("error deleting fuel_prices record: %w", err)
		}

		deletedCount++
		if deletedCount%deleteBatchSize == 0 {
			s.log.Debug("Deleted fuel_prices records", "count", deletedCount)
			time.Sleep(deleteRecordsPause * time.Millisecond)
		}
	}

	if deletedCount > 0 {
		s.cache.Delete(lastPricesCacheKey)
	}
	s.log.Info("Completed fuel_prices cleanup", "deleted_count", deletedCount)
	return deletedCount, nil
}
