package waysave

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"
)

const (
	decimalBase                        = 10
	defaultReducePrecisionDecimalPlace = 2
)

// LocationLog represents a row in the location_logs table
type LocationLog struct {
	ID          int64     `json:"id"`
	Latitude    float64   `json:"lat"`
	Longitude   float64   `json:"lng"`
	Distance    float64   `json:"distanceKm"`
	SearchCount int64     `json:"count"`
	SearchTime  time.Time `json:"firstSearch"`
	LastSearch  time.Time `json:"lastSearch"`
}

// LogSearchLocation records a search around a point. Coordinates are rounded to two
// decimals (about 1 km) before they are stored and repeated searches of the same area
// increase its counter.
func (s *Storage) LogSearchLocation(ctx context.Context, latitude, longitude, distanceKm float64) error {
	var id int64
	var count int

	newLat, newLong := ReduceLocationPrecision(latitude, longitude, defaultReducePrecisionDecimalPlace)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, search_count FROM location_logs
		WHERE latitude = ?
		AND longitude = ?
		LIMIT 1
	`, newLat, newLong).Scan(&id, &count)

	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("error checking for existing location: %w", err)
	}

	if err == sql.ErrNoRows {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO location_logs (latitude, longitude, distance)
			VALUES (?, ?, ?)
		`, newLat, newLong, distanceKm)

		if err != nil {
			return fmt.Errorf("error logging search location: %w", err)
		}
		return nil
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE location_logs
		SET search_count = search_count + 1, last_search = CURRENT_TIMESTAMP, distance = ?
		WHERE id = ?
	`, distanceKm, id)

	if err != nil {
		return fmt.Errorf("error updating search location: %w", err)
	}
	return nil
}

// GetLocationLogs returns the most searched areas first. A limit of 0 returns all rows.
func (s *Storage) GetLocationLogs(ctx context.Context, limit int) ([]LocationLog, error) {
	query := `SELECT id, latitude, longitude, distance, search_count, search_time, last_search
			  FROM location_logs
			  ORDER BY search_count DESC, id ASC `

	if limit > 0 {
		query += fmt.Sprintf("LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error retrieving location logs: %w", err)
	}
	defer rows.Close()

	var logs []LocationLog
	for rows.Next() {
		var logEntry LocationLog
		if err := rows.Scan(
			&logEntry.ID,
			&logEntry.Latitude,
			&logEntry.Longitude,
			&logEntry.Distance,
			&logEntry.SearchCount,
			&logEntry.SearchTime,
			&logEntry.LastSearch,
		); err != nil {
			return nil, fmt.Errorf("error scanning location log: %w", err)
		}
		logs = append(logs, logEntry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}

	return logs, nil
}

// ReduceLocationPrecision rounds a coordinate pair to the given number of decimals.
func ReduceLocationPrecision(lat, lng float64, decimalPlaces int) (roundedLat, roundedLng float64) {
	factor := math.Pow(decimalBase, float64(decimalPlaces))
	roundedLat = math.Round(lat*factor) / factor
	roundedLng = math.Round(lng*factor) / factor
	return
}
