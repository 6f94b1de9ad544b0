// Package station defines the normalized station record shared by every data source,
// and the mapping from upstream records into it.
package station

import (
	"errors"
	"fmt"
	"math"

	"github.com/tkrajina/gpxgo/gpx"
)

const metersPerKm = 1000.0

// Category tells fuel stations and EV chargers apart.
type Category string

const (
	Fuel Category = "fuel"
	EV   Category = "ev"
)

func (c Category) Valid() bool {
	return c == Fuel || c == EV
}

// ErrNoLocation is returned for stations that cannot be placed on the map.
var ErrNoLocation = errors.New("station has no location")

// Location is a WGS84 coordinate pair in degrees.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (l Location) valid() bool {
	return !math.IsNaN(l.Lat) && !math.IsNaN(l.Lng) &&
		l.Lat >= -90 && l.Lat <= 90 && l.Lng >= -180 && l.Lng <= 180
}

// Station is a fuel or EV charging location. Optional values are nil when unknown.
type Station struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"externalId,omitempty"`
	Name       string    `json:"name"`
	Address    string    `json:"address,omitempty"`
	Location   *Location `json:"location"`
	Category   Category  `json:"category"`
	Connectors []string  `json:"connectors,omitempty"`
	DistanceKm *float64  `json:"distanceKm,omitempty"`
	PriceValue *float64  `json:"priceValue,omitempty"`
	PriceLabel string    `json:"priceLabel,omitempty"`
	Score      *float64  `json:"score,omitempty"`
}

// Validate reports whether s can enter the ranking pipeline.
func (s *Station) Validate() error {
	if s.Location == nil || !s.Location.valid() {
		return fmt.Errorf("%s: %w", s.ID, ErrNoLocation)
	}
	if !s.Category.Valid() {
		return fmt.Errorf("%s: unknown category %q", s.ID, s.Category)
	}
	return nil
}

// Sanitize returns a copy of s where negative or non-finite distance, price and score
// are treated as unknown. The pointers of the copy are never shared with s.
func (s Station) Sanitize() Station {
	s.DistanceKm = sanitize(s.DistanceKm)
	s.PriceValue = sanitize(s.PriceValue)
	s.Score = sanitize(s.Score)
	if s.Location != nil {
		loc := *s.Location
		s.Location = &loc
	}
	if s.Connectors != nil {
		s.Connectors = append([]string(nil), s.Connectors...)
	}
	return s
}

func sanitize(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0 {
		return nil
	}
	c := *v
	return &c
}

// WithDistanceFrom computes the great-circle distance between origin and the station.
func (s *Station) WithDistanceFrom(origin Location) {
	if s.Location == nil {
		return
	}
	d := Distance(origin, *s.Location)
	s.DistanceKm = &d
}

// Distance returns the haversine distance between a and b in kilometers.
func Distance(a, b Location) float64 {
	return gpx.Distance2D(a.Lat, a.Lng, b.Lat, b.Lng, true) / metersPerKm
}

// PriceLabel formats a price for display.
func PriceLabel(c Category, price *float64) string {
	if price == nil {
		return "Not available"
	}
	if c == EV {
		return fmt.Sprintf("€%.2f/kWh", *price)
	}
	return fmt.Sprintf("€%.2f/L", *price)
}

func float(v float64) *float64 { return &v }
