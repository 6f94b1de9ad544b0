package waysave

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/waysave/waysave/internal/auth"
	"github.com/waysave/waysave/internal/station"
	"github.com/waysave/waysave/internal/updates"
	"github.com/waysave/waysave/pkg/api"
)

const snapshot = `{
	"Fecha": "16/10/2026 10:00:00",
	"ListaEESSPrecio": [
		{"IDEESS": "1", "Rótulo": "REPSOL", "Latitud": "40,416775", "Longitud (WGS84)": "-3,703790", "Precio Gasoleo A": "1,459"},
		{"IDEESS": "2", "Rótulo": "CEPSA", "Latitud": "40,420000", "Longitud (WGS84)": "-3,700000", "Precio Gasoleo A": "1,479"},
		{"IDEESS": "3", "Rótulo": "GALP", "Latitud": "41,385064", "Longitud (WGS84)": "2,173403", "Precio Gasoleo A": "1,399"},
		{"IDEESS": "4", "Rótulo": "SIN COORDENADAS", "Latitud": "", "Longitud (WGS84)": ""}
	],
	"Nota": "",
	"ResultadoConsulta": "OK"
}`

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(context.Background(), filepath.Join(t.TempDir(), "waysave.db"),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewStorage() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPricesSnapshot(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	if _, err := s.GetLastPrices(ctx); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("GetLastPrices() on empty db error = %v", err)
	}
	if d, err := s.GetLastUpdateDate(ctx); err != nil || d != nil {
		t.Fatalf("GetLastUpdateDate() on empty db = %v, %v", d, err)
	}

	day := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	if err := s.SavePrices(ctx, day, []byte(snapshot)); err != nil {
		t.Fatalf("SavePrices() failed: %v", err)
	}

	has, err := s.HasDate(ctx, day)
	if err != nil || !has {
		t.Errorf("HasDate() = %v, %v", has, err)
	}
	if has, _ := s.HasDate(ctx, day.AddDate(0, 0, -1)); has {
		t.Error("HasDate() reported a missing day")
	}

	last, err := s.GetLastUpdateDate(ctx)
	if err != nil || last == nil || !last.Equal(day) {
		t.Errorf("GetLastUpdateDate() = %v, %v", last, err)
	}

	prices, err := s.GetLastPrices(ctx)
	if err != nil {
		t.Fatalf("GetLastPrices() failed: %v", err)
	}
	if len(prices.ListaEESSPrecio) != 4 {
		t.Errorf("got %d stations, want 4", len(prices.ListaEESSPrecio))
	}
}

func TestSavePricesInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	day := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

	if err := s.SavePrices(ctx, day, []byte(`{"ListaEESSPrecio":[],"ResultadoConsulta":"OK"}`)); err != nil {
		t.Fatal(err)
	}
	if p, _ := s.GetLastPrices(ctx); len(p.ListaEESSPrecio) != 0 {
		t.Fatalf("unexpected stations: %d", len(p.ListaEESSPrecio))
	}

	if err := s.SavePrices(ctx, day.AddDate(0, 0, 1), []byte(snapshot)); err != nil {
		t.Fatal(err)
	}
	if p, _ := s.GetLastPrices(ctx); len(p.ListaEESSPrecio) != 4 {
		t.Errorf("stale cache: got %d stations", len(p.ListaEESSPrecio))
	}
}

func TestNearbyPrices(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	if err := s.SavePrices(ctx, time.Now(), []byte(snapshot)); err != nil {
		t.Fatal(err)
	}

	nearby, err := s.NearbyPrices(ctx, 40.4168, -3.7038, 5)
	if err != nil {
		t.Fatalf("NearbyPrices() failed: %v", err)
	}
	if len(nearby) != 2 {
		t.Fatalf("NearbyPrices() returned %d stations, want 2", len(nearby))
	}
	for _, gs := range nearby {
		if gs.IDEESS == "3" || gs.IDEESS == "4" {
			t.Errorf("unexpected station %s", gs.IDEESS)
		}
	}
}

func TestUpdateDB(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, snapshot)
	}))
	defer srv.Close()

	if err := s.UpdateDB(ctx, api.NewFuelPriceAPI(srv.URL)); err != nil {
		t.Fatalf("UpdateDB() failed: %v", err)
	}
	if has, _ := s.HasDate(ctx, time.Now()); !has {
		t.Error("UpdateDB() did not store today's snapshot")
	}
}

func TestUpdateDBRejectsNonOK(t *testing.T) {
	s := newTestStorage(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"ListaEESSPrecio":[],"ResultadoConsulta":"ERROR"}`)
	}))
	defer srv.Close()

	if err := s.UpdateDB(context.Background(), api.NewFuelPriceAPI(srv.URL)); err == nil {
		t.Error("UpdateDB() accepted a non-OK result")
	}
}

func TestDeleteOldRecords(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	now := time.Now()

	for _, d := range []time.Time{now.AddDate(0, 0, -40), now.AddDate(0, 0, -31), now} {
		if err := s.SavePrices(ctx, d, []byte(snapshot)); err != nil {
			t.Fatal(err)
		}
	}

	deleted, err := s.DeleteOldRecords(ctx, 30)
	if err != nil {
		t.Fatalf("DeleteOldRecords() failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted %d records, want 2", deleted)
	}
	if has, _ := s.HasDate(ctx, now); !has {
		t.Error("today's snapshot was deleted")
	}
	if err := s.VacuumDatabase(ctx); err != nil {
		t.Errorf("VacuumDatabase() failed: %v", err)
	}
}

func TestLogSearchLocation(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	for _, p := range [][2]float64{{53.3498, -6.2603}, {53.3501, -6.2598}, {40.4168, -3.7038}} {
		if err := s.LogSearchLocation(ctx, p[0], p[1], 10); err != nil {
			t.Fatalf("LogSearchLocation() failed: %v", err)
		}
	}

	logs, err := s.GetLocationLogs(ctx, 0)
	if err != nil {
		t.Fatalf("GetLocationLogs() failed: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("got %d areas, want 2", len(logs))
	}
	if logs[0].SearchCount != 2 || logs[0].Latitude != 53.35 || logs[0].Longitude != -6.26 {
		t.Errorf("most searched area = %+v", logs[0])
	}

	top, err := s.GetLocationLogs(ctx, 1)
	if err != nil || len(top) != 1 {
		t.Errorf("GetLocationLogs(1) = %v, %v", top, err)
	}
}

func TestReduceLocationPrecision(t *testing.T) {
	lat, lng := ReduceLocationPrecision(53.34567, -6.26789, 2)
	if lat != 53.35 || lng != -6.27 {
		t.Errorf("ReduceLocationPrecision() = %v, %v", lat, lng)
	}
}

func TestKeyValue(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	if _, found, err := s.GetValue(ctx, "missing"); err != nil || found {
		t.Fatalf("GetValue(missing) = %v, %v", found, err)
	}

	if err := s.PutValue(ctx, "k", []byte("one")); err != nil {
		t.Fatal(err)
	}
	if err := s.PutValue(ctx, "k", []byte("two")); err != nil {
		t.Fatal(err)
	}

	v, found, err := s.GetValue(ctx, "k")
	if err != nil || !found || string(v) != "two" {
		t.Errorf("GetValue() = %q, %v, %v", v, found, err)
	}

	// callers may modify the returned slice
	v[0] = 'X'
	if v, _, _ := s.GetValue(ctx, "k"); string(v) != "two" {
		t.Errorf("cached value was modified: %q", v)
	}

	if err := s.DeleteValue(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := s.GetValue(ctx, "k"); found {
		t.Error("value still present after delete")
	}
	if err := s.DeleteValue(ctx, "k"); err != nil {
		t.Errorf("deleting a missing key failed: %v", err)
	}
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	u := &auth.User{Email: "driver@example.com", FullName: "Dee", PasswordHash: "hash"}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	if u.ID == 0 || u.CreatedAt.IsZero() {
		t.Errorf("CreateUser() did not fill the user: %+v", u)
	}

	byEmail, err := s.GetUserByEmail(ctx, "driver@example.com")
	if err != nil || byEmail.ID != u.ID || byEmail.PasswordHash != "hash" {
		t.Errorf("GetUserByEmail() = %+v, %v", byEmail, err)
	}
	byID, err := s.GetUserByID(ctx, u.ID)
	if err != nil || byID.Email != u.Email || !byID.CreatedAt.Equal(u.CreatedAt) {
		t.Errorf("GetUserByID() = %+v, %v", byID, err)
	}

	if err := s.CreateUser(ctx, &auth.User{Email: "driver@example.com", PasswordHash: "x"}); !errors.Is(err, auth.ErrEmailInUse) {
		t.Errorf("duplicate CreateUser() error = %v", err)
	}
	if _, err := s.GetUserByID(ctx, 999); !errors.Is(err, auth.ErrUserNotFound) {
		t.Errorf("GetUserByID(999) error = %v", err)
	}
}

func TestStationUpdates(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	price, lat, lng := 1.559, 53.34, -6.26
	note := "pump 3 out of order"
	base := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)

	dee := &auth.User{Email: "dee@example.com", PasswordHash: "hash"}
	kim := &auth.User{Email: "kim@example.com", PasswordHash: "hash"}
	for _, u := range []*auth.User{dee, kim} {
		if err := s.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}

	subs := []updates.Submission{
		{ID: "a", UserID: dee.ID, StationType: station.Fuel, StationExternalID: "1", StationName: "Shell", Lat: &lat, Lng: &lng, NewPrice: &price, CreatedAt: base},
		{ID: "b", UserID: dee.ID, StationType: station.EV, StationName: "Ionity", Note: &note, CreatedAt: base.Add(time.Hour)},
		{ID: "c", UserID: kim.ID, StationType: station.Fuel, StationName: "Maxol", NewPrice: &price, CreatedAt: base},
	}
	for i := range subs {
		if err := s.SaveStationUpdate(ctx, &subs[i]); err != nil {
			t.Fatalf("SaveStationUpdate() failed: %v", err)
		}
	}

	orphan := updates.Submission{ID: "d", UserID: kim.ID + 100, StationType: station.Fuel, StationName: "Circle K", NewPrice: &price, CreatedAt: base}
	if err := s.SaveStationUpdate(ctx, &orphan); err == nil {
		t.Error("SaveStationUpdate() accepted an update for an unknown user")
	}

	list, err := s.ListStationUpdates(ctx, dee.ID, 0)
	if err != nil {
		t.Fatalf("ListStationUpdates() failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != "b" || list[1].ID != "a" {
		t.Fatalf("ListStationUpdates() = %+v", list)
	}
	if list[0].NewPrice != nil || list[0].Note == nil || *list[0].Note != note || list[0].Lat != nil {
		t.Errorf("note-only update = %+v", list[0])
	}
	if list[1].NewPrice == nil || *list[1].NewPrice != price || *list[1].Lat != lat || list[1].StationExternalID != "1" {
		t.Errorf("price update = %+v", list[1])
	}
	if !list[1].CreatedAt.Equal(base) {
		t.Errorf("CreatedAt = %v, want %v", list[1].CreatedAt, base)
	}

	limited, _ := s.ListStationUpdates(ctx, dee.ID, 1)
	if len(limited) != 1 {
		t.Errorf("limit ignored: %d rows", len(limited))
	}
}
