package waysave

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/waysave/waysave/internal/station"
	"github.com/waysave/waysave/internal/updates"
)

func (s *Storage) SaveStationUpdate(ctx context.Context, sub *updates.Submission) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO station_updates (
			id, user_id, station_type, station_external_id, station_name,
			lat, lng, new_price, note, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sub.ID, sub.UserID, string(sub.StationType), nullString(sub.StationExternalID), sub.StationName,
		sub.Lat, sub.Lng, sub.NewPrice, sub.Note, sub.CreatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("error inserting station update: %w", err)
	}
	return nil
}

// ListStationUpdates returns the reports of a user, newest first.
func (s *Storage) ListStationUpdates(ctx context.Context, userID int64, limit int) ([]updates.Submission, error) {
	query := `
		SELECT id, user_id, station_type, station_external_id, station_name,
			lat, lng, new_price, note, created_at
		FROM station_updates
		WHERE user_id = ?
		ORDER BY created_at DESC, id ASC`
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying station updates: %w", err)
	}
	defer rows.Close()

	var list []updates.Submission
	for rows.Next() {
		var (
			sub        updates.Submission
			kind       string
			externalID sql.NullString
			lat, lng   sql.NullFloat64
			price      sql.NullFloat64
			note       sql.NullString
			created    string
		)
		if err := rows.Scan(&sub.ID, &sub.UserID, &kind, &externalID, &sub.StationName,
			&lat, &lng, &price, &note, &created); err != nil {
			return nil, fmt.Errorf("error scanning station update: %w", err)
		}

		sub.StationType = station.Category(kind)
		sub.StationExternalID = externalID.String
		sub.Lat = nullFloat(lat)
		sub.Lng = nullFloat(lng)
		sub.NewPrice = nullFloat(price)
		if note.Valid {
			sub.Note = &note.String
		}
		if sub.CreatedAt, err = time.Parse(timestampLayout, created); err != nil {
			return nil, fmt.Errorf("error parsing created_at %q: %w", created, err)
		}
		list = append(list, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return list, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
