package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/httplog/v2"
	"github.com/waysave/waysave/internal/auth"
	"github.com/waysave/waysave/internal/finder"
	"github.com/waysave/waysave/internal/metrics"
	"github.com/waysave/waysave/internal/prefs"
	"github.com/waysave/waysave/internal/station"
	"github.com/waysave/waysave/internal/updates"
	"github.com/waysave/waysave/internal/waysave"
	"golang.org/x/crypto/bcrypt"
)

func f(v float64) *float64 { return &v }

func fuelStation(id string, distance, price float64) station.Station {
	return station.Station{
		ID:         "fuel-" + id,
		ExternalID: id,
		Name:       "Station " + id,
		Location:   &station.Location{Lat: 53.35, Lng: -6.26},
		Category:   station.Fuel,
		DistanceKm: f(distance),
		PriceValue: f(price),
	}
}

type fakeFinder struct {
	stations []station.Station
	err      error
	origin   station.Location
}

func (f *fakeFinder) Nearby(_ context.Context, origin station.Location, _ prefs.Preferences) ([]station.Station, error) {
	f.origin = origin
	if f.err != nil {
		return []station.Station{}, f.err
	}
	return f.stations, nil
}

type fakeGeocoder map[string]finder.Place

func (g fakeGeocoder) Lookup(_ context.Context, q string) (finder.Place, error) {
	if p, ok := g[strings.ToLower(q)]; ok {
		return p, nil
	}
	return finder.Place{}, finder.ErrLocationNotFound
}

type testServer struct {
	handler http.Handler
	finder  *fakeFinder
	storage *waysave.Storage
}

func newTestServer(t *testing.T, bypass bool) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	storage, err := waysave.NewStorage(context.Background(), filepath.Join(t.TempDir(), "waysave.db"), logger)
	if err != nil {
		t.Fatalf("NewStorage() failed: %v", err)
	}
	t.Cleanup(func() { storage.Close() })

	fd := &fakeFinder{stations: []station.Station{
		fuelStation("near", 1, 1.90),
		fuelStation("cheap", 3, 1.40),
	}}
	accounts := auth.NewService(storage, auth.NewBcryptHasher(bcrypt.MinCost), auth.NewTokenService("test-secret", time.Hour), logger)
	srv := New(Options{
		Store:      storage,
		Auth:       accounts,
		Finder:     fd,
		Geocoder:   fakeGeocoder{"dublin": {Name: "Dublin, Ireland", Location: station.Location{Lat: 53.3498, Lng: -6.2603}}},
		Updates:    updates.NewSubmitter(storage, logger),
		Origin:     station.Location{Lat: 40.4168, Lng: -3.7038},
		RateLimit:  1000,
		BypassAuth: bypass,
	}, httplog.NewLogger("waysave-test", httplog.Options{Writer: io.Discard, LogLevel: slog.LevelError, Concise: true}))

	return &testServer{handler: srv.Handler(), finder: fd, storage: storage}
}

func (ts *testServer) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

// login registers a user and returns its token.
func (ts *testServer) login(t *testing.T, email string) string {
	t.Helper()
	if rec := ts.do(t, http.MethodPost, "/auth/signup", "", `{"email":"`+email+`","password":"secret123","fullName":"Test"}`); rec.Code != http.StatusCreated {
		t.Fatalf("signup: %d %s", rec.Code, rec.Body)
	}
	rec := ts.do(t, http.MethodPost, "/auth/login", "", `{"email":"`+email+`","password":"secret123"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rec.Code, rec.Body)
	}
	var resp struct {
		Token string `json:"token"`
	}
	decode(t, rec, &resp)
	return resp.Token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
}

func stationIDs(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp stationsResponse
	decode(t, rec, &resp)
	ids := make([]string, len(resp.Stations))
	for i, st := range resp.Stations {
		ids[i] = st.ID
	}
	return strings.Join(ids, ",")
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, false)
	rec := ts.do(t, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("healthz: %d %s", rec.Code, rec.Body)
	}
	if strings.Contains(rec.Body.String(), "lastPriceUpdate") {
		t.Errorf("healthz reported a snapshot on an empty database: %s", rec.Body)
	}

	day := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	if err := ts.storage.SavePrices(context.Background(), day, []byte(`{"ListaEESSPrecio":[]}`)); err != nil {
		t.Fatalf("SavePrices() failed: %v", err)
	}
	rec = ts.do(t, http.MethodGet, "/healthz", "", "")
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["lastPriceUpdate"] != "2026-10-15" {
		t.Errorf("lastPriceUpdate = %q", body["lastPriceUpdate"])
	}
}

func TestPopularLocations(t *testing.T) {
	ts := newTestServer(t, false)
	token := ts.login(t, "alice@example.com")
	ctx := context.Background()

	if rec := ts.do(t, http.MethodGet, "/locations/popular", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d", rec.Code)
	}

	rec := ts.do(t, http.MethodGet, "/locations/popular", token, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"locations":[]`) {
		t.Errorf("empty list: %d %s", rec.Code, rec.Body)
	}

	for _, search := range []struct{ lat, lng float64 }{
		{53.3498, -6.2603},
		{53.3501, -6.2598},
		{40.4168, -3.7038},
	} {
		if err := ts.storage.LogSearchLocation(ctx, search.lat, search.lng, 10); err != nil {
			t.Fatalf("LogSearchLocation() failed: %v", err)
		}
	}

	rec = ts.do(t, http.MethodGet, "/locations/popular?limit=1", token, "")
	var resp struct {
		Locations []waysave.LocationLog `json:"locations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v (%s)", err, rec.Body)
	}
	if len(resp.Locations) != 1 {
		t.Fatalf("locations = %+v", resp.Locations)
	}
	top := resp.Locations[0]
	if top.SearchCount != 2 || top.Latitude != 53.35 || top.Longitude != -6.26 {
		t.Errorf("top location = %+v", top)
	}

	if rec := ts.do(t, http.MethodGet, "/locations/popular?limit=zero", token, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", rec.Code)
	}
}

func TestSignupAndLogin(t *testing.T) {
	ts := newTestServer(t, false)
	ts.login(t, "alice@example.com")

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"duplicate email", "/auth/signup", `{"email":"alice@example.com","password":"secret123"}`, http.StatusConflict},
		{"invalid email", "/auth/signup", `{"email":"nope","password":"secret123"}`, http.StatusBadRequest},
		{"bad json", "/auth/signup", `{`, http.StatusBadRequest},
		{"password too long", "/auth/signup", `{"email":"long@example.com","password":"` + strings.Repeat("p", 73) + `"}`, http.StatusBadRequest},
		{"wrong password", "/auth/login", `{"email":"alice@example.com","password":"wrong-pass"}`, http.StatusUnauthorized},
		{"unknown user", "/auth/login", `{"email":"bob@example.com","password":"secret123"}`, http.StatusUnauthorized},
		{"missing password", "/auth/login", `{"email":"alice@example.com"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, tt.path, "", tt.body)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body)
			}
		})
	}
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t, false)
	for _, token := range []string{"", "not-a-jwt"} {
		if rec := ts.do(t, http.MethodGet, "/stations", token, ""); rec.Code != http.StatusUnauthorized {
			t.Errorf("token %q: status = %d", token, rec.Code)
		}
	}
	req := httptest.NewRequest(http.MethodGet, "/prefs", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("basic auth: status = %d", rec.Code)
	}
}

func TestStations(t *testing.T) {
	ts := newTestServer(t, false)
	token := ts.login(t, "alice@example.com")

	rec := ts.do(t, http.MethodGet, "/stations", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d %s", rec.Code, rec.Body)
	}
	if got := stationIDs(t, rec); got != "fuel-cheap,fuel-near" {
		t.Errorf("default ranking = %s", got)
	}
	if ts.finder.origin.Lat != 40.4168 {
		t.Errorf("origin = %+v, want the default", ts.finder.origin)
	}

	rec = ts.do(t, http.MethodGet, "/stations?mode=nearest&lat=53.35&lng=-6.26", token, "")
	if got := stationIDs(t, rec); got != "fuel-near,fuel-cheap" {
		t.Errorf("nearest ranking = %s", got)
	}
	if ts.finder.origin.Lat != 53.35 {
		t.Errorf("origin = %+v", ts.finder.origin)
	}

	rec = ts.do(t, http.MethodGet, "/stations?radius=2", token, "")
	if got := stationIDs(t, rec); got != "fuel-near" {
		t.Errorf("radius 2 = %s", got)
	}

	rec = ts.do(t, http.MethodGet, "/stations?q=Dublin", token, "")
	var resp stationsResponse
	decode(t, rec, &resp)
	if resp.Place != "Dublin, Ireland" || resp.BestValue == nil || resp.BestValue.ID != "fuel-cheap" {
		t.Errorf("geocoded response = %+v", resp)
	}
}

func TestStationsBadRequests(t *testing.T) {
	ts := newTestServer(t, false)
	token := ts.login(t, "alice@example.com")

	tests := []struct {
		query  string
		status int
	}{
		{"mode=fastest-ever", http.StatusBadRequest},
		{"tab=boat", http.StatusBadRequest},
		{"lat=200&lng=0", http.StatusBadRequest},
		{"lat=40", http.StatusBadRequest},
		{"q=Atlantis", http.StatusNotFound},
	}
	for _, tt := range tests {
		if rec := ts.do(t, http.MethodGet, "/stations?"+tt.query, token, ""); rec.Code != tt.status {
			t.Errorf("%s: status = %d, want %d", tt.query, rec.Code, tt.status)
		}
	}
}

func TestStationsSourceFailure(t *testing.T) {
	ts := newTestServer(t, false)
	token := ts.login(t, "alice@example.com")
	ts.finder.err = errors.New("upstream down")

	rec := ts.do(t, http.MethodGet, "/stations", token, "")
	var resp stationsResponse
	decode(t, rec, &resp)
	if rec.Code != http.StatusOK || resp.Warning == "" || resp.Stations == nil || len(resp.Stations) != 0 {
		t.Errorf("response = %d %s", rec.Code, rec.Body)
	}
}

func TestPreferences(t *testing.T) {
	ts := newTestServer(t, false)
	alice := ts.login(t, "alice@example.com")
	bob := ts.login(t, "bob@example.com")

	rec := ts.do(t, http.MethodPut, "/prefs", alice, `{"preference":"nearest","maxDistanceKm":10}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("put: %d %s", rec.Code, rec.Body)
	}

	var p prefs.Preferences
	decode(t, ts.do(t, http.MethodGet, "/prefs", alice, ""), &p)
	if p.Mode != prefs.Nearest || p.MaxDistanceKm != 10 || p.ActiveTab != prefs.TabFuel {
		t.Errorf("alice prefs = %+v", p)
	}
	decode(t, ts.do(t, http.MethodGet, "/prefs", bob, ""), &p)
	if p.Mode != prefs.Cheapest {
		t.Errorf("bob prefs = %+v", p)
	}

	if got := stationIDs(t, ts.do(t, http.MethodGet, "/stations", alice, "")); got != "fuel-near,fuel-cheap" {
		t.Errorf("stations with stored prefs = %s", got)
	}

	if rec := ts.do(t, http.MethodPut, "/prefs", alice, `not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("garbage put: status = %d", rec.Code)
	}
}

func TestUpdates(t *testing.T) {
	ts := newTestServer(t, false)
	token := ts.login(t, "alice@example.com")

	rec := ts.do(t, http.MethodPost, "/updates", token,
		`{"stationType":"fuel","stationExternalId":"cheap","stationName":"Station cheap","newPrice":1.35,"userId":99}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("post: %d %s", rec.Code, rec.Body)
	}
	var saved updates.Submission
	decode(t, rec, &saved)
	if saved.ID == "" || saved.UserID == 99 || saved.UserID == 0 {
		t.Errorf("saved = %+v", saved)
	}

	if rec := ts.do(t, http.MethodPost, "/updates", token, `{"stationType":"fuel","stationName":"x"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty report: status = %d", rec.Code)
	}

	var list struct {
		Updates []updates.Submission `json:"updates"`
	}
	decode(t, ts.do(t, http.MethodGet, "/updates?limit=5", token, ""), &list)
	if len(list.Updates) != 1 || list.Updates[0].ID != saved.ID {
		t.Errorf("list = %+v", list.Updates)
	}
	if rec := ts.do(t, http.MethodGet, "/updates?limit=-1", token, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit: status = %d", rec.Code)
	}
}

func TestBypassAuth(t *testing.T) {
	ts := newTestServer(t, true)
	if rec := ts.do(t, http.MethodGet, "/stations", "", ""); rec.Code != http.StatusOK {
		t.Errorf("stations: status = %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/updates", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("updates: status = %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	metrics.Register()
	ts := newTestServer(t, false)
	ts.do(t, http.MethodGet, "/healthz", "", "")

	rec := ts.do(t, http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `waysave_http_requests_total{method="GET",path="/healthz",status="200"}`) {
		t.Errorf("metrics: %d\n%s", rec.Code, rec.Body)
	}
}
