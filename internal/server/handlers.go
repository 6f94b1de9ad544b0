package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/waysave/waysave/internal/finder"
	"github.com/waysave/waysave/internal/metrics"
	"github.com/waysave/waysave/internal/prefs"
	"github.com/waysave/waysave/internal/ranker"
	"github.com/waysave/waysave/internal/station"
	"github.com/waysave/waysave/internal/updates"
	"github.com/waysave/waysave/internal/waysave"
)

const (
	maxPrefsBody       = 64 << 10
	defaultUpdatesPage = 20
	maxUpdatesPage     = 100
	defaultPopularPage = 10
)

// Query parameters of /stations that override a stored preference.
var preferenceParams = []string{"tab", "mode", "fuel", "radius", "sensitivity"}

type stationsResponse struct {
	Origin      station.Location  `json:"origin"`
	Place       string            `json:"place,omitempty"`
	Preferences prefs.Preferences `json:"preferences"`
	Stations    []station.Station `json:"stations"`
	BestValue   *station.Station  `json:"bestValue,omitempty"`
	Warning     string            `json:"warning,omitempty"`
}

func (s *Server) stations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	origin, place, status, err := s.origin(ctx, q)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	holder, err := prefs.Load(ctx, s.opts.Store, s.prefsKey(ctx), s.log.Logger)
	if err != nil {
		s.log.Error("Failed to load preferences", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load preferences")
		return
	}
	p := holder.Current()
	for _, key := range preferenceParams {
		if v := q.Get(key); v != "" {
			if p, err = p.Set(key, v); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
		}
	}

	resp := stationsResponse{Origin: origin, Place: place, Preferences: p}
	found, err := s.opts.Finder.Nearby(ctx, origin, p)
	if err != nil {
		s.log.Warn("Station sources failed", "error", err)
		resp.Warning = "station data is currently unavailable"
	}
	resp.Stations = ranker.Rank(found, p)
	if best, ok := ranker.BestValue(resp.Stations); ok {
		resp.BestValue = &best
	}
	writeJSON(w, http.StatusOK, resp)
}

// origin picks the search center: a geocoded q, explicit lat and lng, or the default.
func (s *Server) origin(ctx context.Context, q url.Values) (station.Location, string, int, error) {
	if text := q.Get("q"); text != "" {
		if s.opts.Geocoder == nil {
			return station.Location{}, "", http.StatusBadRequest, errors.New("location search is not available")
		}
		place, err := s.opts.Geocoder.Lookup(ctx, text)
		switch {
		case errors.Is(err, finder.ErrLocationNotFound):
			return station.Location{}, "", http.StatusNotFound, err
		case err != nil:
			s.log.Error("Geocoding failed", "query", text, "error", err)
			return station.Location{}, "", http.StatusBadGateway, errors.New("location search failed")
		}
		return place.Location, place.Name, 0, nil
	}

	latStr, lngStr := q.Get("lat"), q.Get("lng")
	if latStr == "" && lngStr == "" {
		return s.opts.Origin, "", 0, nil
	}
	lat, err := parseCoordinate(latStr, 90)
	if err != nil {
		return station.Location{}, "", http.StatusBadRequest, fmt.Errorf("invalid latitude value: %w", err)
	}
	lng, err := parseCoordinate(lngStr, 180)
	if err != nil {
		return station.Location{}, "", http.StatusBadRequest, fmt.Errorf("invalid longitude value: %w", err)
	}
	return station.Location{Lat: lat, Lng: lng}, "", 0, nil
}

func parseCoordinate(v string, limit float64) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.Abs(f) > limit {
		return 0, fmt.Errorf("%q out of range", v)
	}
	return f, nil
}

func (s *Server) prefsKey(ctx context.Context) string {
	if u, ok := userFromContext(ctx); ok {
		return prefs.KeyFor(strconv.FormatInt(u.ID, 10))
	}
	return prefs.KeyFor("")
}

func (s *Server) getPrefs(w http.ResponseWriter, r *http.Request) {
	holder, err := prefs.Load(r.Context(), s.opts.Store, s.prefsKey(r.Context()), s.log.Logger)
	if err != nil {
		s.log.Error("Failed to load preferences", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load preferences")
		return
	}
	writeJSON(w, http.StatusOK, holder.Current())
}

// putPrefs accepts partial documents: omitted fields take their default value.
func (s *Server) putPrefs(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPrefsBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "body too large")
		return
	}
	p, err := prefs.Decode(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid preferences document")
		return
	}

	holder, err := prefs.Load(r.Context(), s.opts.Store, s.prefsKey(r.Context()), s.log.Logger)
	if err == nil {
		err = holder.Apply(r.Context(), p)
	}
	if err != nil {
		s.log.Error("Failed to save preferences", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save preferences")
		return
	}
	writeJSON(w, http.StatusOK, holder.Current())
}

func (s *Server) submitUpdate(w http.ResponseWriter, r *http.Request) {
	var sub updates.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	sub.ID, sub.UserID, sub.CreatedAt = "", 0, time.Time{}
	if u, ok := userFromContext(r.Context()); ok {
		sub.UserID = u.ID
	}

	saved, err := s.opts.Updates.Submit(r.Context(), sub)
	if err != nil {
		metrics.StationUpdates.WithLabelValues(metrics.OutcomeError).Inc()
		if errors.Is(err, updates.ErrInvalid) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error("Failed to submit station update", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to submit update")
		return
	}
	metrics.StationUpdates.WithLabelValues(metrics.OutcomeOK).Inc()
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) listUpdates(w http.ResponseWriter, r *http.Request) {
	u, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "sign in to list your updates")
		return
	}

	limit, ok := pageLimit(w, r, defaultUpdatesPage)
	if !ok {
		return
	}

	list, err := s.opts.Store.ListStationUpdates(r.Context(), u.ID, limit)
	if err != nil {
		s.log.Error("Failed to list station updates", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list updates")
		return
	}
	if list == nil {
		list = []updates.Submission{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"updates": list})
}

// popularLocations lists the most searched areas. Coordinates are stored rounded.
func (s *Server) popularLocations(w http.ResponseWriter, r *http.Request) {
	limit, ok := pageLimit(w, r, defaultPopularPage)
	if !ok {
		return
	}

	logs, err := s.opts.Store.GetLocationLogs(r.Context(), limit)
	if err != nil {
		s.log.Error("Failed to list popular locations", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list locations")
		return
	}
	if logs == nil {
		logs = []waysave.LocationLog{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"locations": logs})
}

// pageLimit reads the limit parameter, capped at maxUpdatesPage. It writes the error
// response itself when the value is invalid.
func pageLimit(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return 0, false
	}
	return min(n, maxUpdatesPage), true
}
