// Package updates accepts crowd-sourced corrections to station data.
package updates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/waysave/waysave/internal/station"
)

const maxNoteLength = 500

// ErrInvalid is returned for submissions that cannot be stored.
var ErrInvalid = errors.New("invalid station update")

// Submission is a user's report about a station.
type Submission struct {
	ID                string           `json:"id"`
	UserID            int64            `json:"userId"`
	StationType       station.Category `json:"stationType"`
	StationExternalID string           `json:"stationExternalId,omitempty"`
	StationName       string           `json:"stationName"`
	Lat               *float64         `json:"lat,omitempty"`
	Lng               *float64         `json:"lng,omitempty"`
	NewPrice          *float64         `json:"newPrice,omitempty"`
	Note              *string          `json:"note,omitempty"`
	CreatedAt         time.Time        `json:"createdAt"`
}

// Validate checks a submission before it is stored.
func (s *Submission) Validate() error {
	if s.UserID <= 0 {
		return fmt.Errorf("%w: missing user", ErrInvalid)
	}
	if !s.StationType.Valid() {
		return fmt.Errorf("%w: unknown station type %q", ErrInvalid, s.StationType)
	}
	if strings.TrimSpace(s.StationName) == "" {
		return fmt.Errorf("%w: missing station name", ErrInvalid)
	}
	if p := s.NewPrice; p != nil && (math.IsNaN(*p) || math.IsInf(*p, 0) || *p <= 0) {
		return fmt.Errorf("%w: price must be positive", ErrInvalid)
	}
	if s.Note != nil && len(*s.Note) > maxNoteLength {
		return fmt.Errorf("%w: note longer than %d bytes", ErrInvalid, maxNoteLength)
	}
	if s.NewPrice == nil && (s.Note == nil || strings.TrimSpace(*s.Note) == "") {
		return fmt.Errorf("%w: nothing to report", ErrInvalid)
	}
	return nil
}

// FromStation prefills a submission for st.
func FromStation(st station.Station, userID int64) Submission {
	sub := Submission{
		UserID:            userID,
		StationType:       st.Category,
		StationExternalID: st.ExternalID,
		StationName:       st.Name,
	}
	if st.Location != nil {
		lat, lng := st.Location.Lat, st.Location.Lng
		sub.Lat, sub.Lng = &lat, &lng
	}
	return sub
}

// Store persists submissions.
type Store interface {
	SaveStationUpdate(ctx context.Context, s *Submission) error
}

// Submitter validates, stamps and stores submissions.
type Submitter struct {
	store Store
	now   func() time.Time
	log   *slog.Logger
}

func NewSubmitter(store Store, logger *slog.Logger) *Submitter {
	return &Submitter{store: store, now: time.Now, log: logger}
}

// Submit stores s and returns it with its ID and creation time set.
func (u *Submitter) Submit(ctx context.Context, s Submission) (Submission, error) {
	s.StationName = strings.TrimSpace(s.StationName)
	if s.Note != nil {
		note := strings.TrimSpace(*s.Note)
		s.Note = &note
	}
	if err := s.Validate(); err != nil {
		return Submission{}, err
	}

	s.ID = uuid.NewString()
	s.CreatedAt = u.now().UTC()
	if err := u.store.SaveStationUpdate(ctx, &s); err != nil {
		return Submission{}, fmt.Errorf("error saving station update: %w", err)
	}

	u.log.Info("Station update submitted", "id", s.ID, "user_id", s.UserID, "station", s.StationName)
	return s, nil
}
