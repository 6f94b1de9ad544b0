package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"
	"github.com/waysave/waysave/internal/auth"
	"github.com/waysave/waysave/internal/config"
	"github.com/waysave/waysave/internal/finder"
	"github.com/waysave/waysave/internal/metrics"
	"github.com/waysave/waysave/internal/prefs"
	"github.com/waysave/waysave/internal/session"
	"github.com/waysave/waysave/internal/station"
	"github.com/waysave/waysave/internal/waysave"
	"github.com/waysave/waysave/pkg/api"
	"golang.org/x/crypto/bcrypt"
)

// env is what every command shares: the settings, a logger and the database.
type env struct {
	cfg     config.Config
	log     *slog.Logger
	storage *waysave.Storage

	// secret signs session tokens. Without a configured one it is the device secret.
	secret string
}

func setup(c *cli.Context) (*env, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if db := c.String("db"); db != "" {
		cfg.DB = db
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	storage, err := waysave.NewStorage(c.Context, cfg.DB, logger)
	if err != nil {
		return nil, fmt.Errorf("error initializing storage: %w", err)
	}
	secret := cfg.Auth.JWTSecret
	if secret == "" {
		if secret, err = auth.DeviceSecret(c.Context, storage); err != nil {
			storage.Close()
			return nil, err
		}
	}
	metrics.Register()
	return &env{cfg: cfg, log: logger, storage: storage, secret: secret}, nil
}

func (e *env) Close() error {
	return e.storage.Close()
}

func (e *env) origin() station.Location {
	return station.Location{Lat: e.cfg.Origin.Lat, Lng: e.cfg.Origin.Lng}
}

func (e *env) accounts() *auth.Service {
	tokens := auth.NewTokenService(e.secret, e.cfg.Auth.TokenTTL)
	return auth.NewService(e.storage, auth.NewBcryptHasher(bcrypt.DefaultCost), tokens, e.log)
}

func (e *env) provider() *session.Local {
	return session.NewLocal(e.accounts(), e.storage, e.log)
}

func (e *env) resolver(p session.Provider) *session.Resolver {
	a := e.cfg.Auth
	return session.NewResolver(p, a.RestoreRetries, a.RestoreBackoff, a.RestoreTimeout, e.log)
}

func (e *env) fuelSource() finder.FuelSource {
	switch e.cfg.Fuel.Source {
	case config.SourceRetailer:
		return finder.NewRetailer(e.cfg.Fuel.RetailerURL, &http.Client{Timeout: api.DefaultTimeout}, e.log)
	case config.SourceStatic:
		return finder.NewStatic(nil, e.log)
	}
	return finder.NewSnapshot(e.storage, e.log)
}

func (e *env) finder() *finder.Finder {
	var ev finder.ChargePointSource
	if e.cfg.OCM.BaseURL != "" {
		ev = api.NewOpenChargeMap(e.cfg.OCM.BaseURL, e.cfg.OCM.APIKey, e.cfg.OCM.MaxResults)
	}
	return finder.New(finder.Options{
		Fuel:        e.fuelSource(),
		EV:          ev,
		Locations:   e.storage,
		MaxRadiusKm: e.cfg.OCM.RadiusKm,
	}, e.log)
}

func (e *env) geocoder() *finder.Geocoder {
	return finder.NewGeocoder(e.cfg.Geocoder.URL, e.log)
}

// preferences loads the preferences of the signed-in user, or the device ones.
func (e *env) preferences(ctx context.Context) (*prefs.Holder, error) {
	key := prefs.KeyFor("")
	s, err := e.provider().CurrentSession(ctx)
	if err != nil {
		return nil, err
	}
	if s != nil {
		key = prefs.KeyFor(strconv.FormatInt(s.UserID, 10))
	}
	return prefs.Load(ctx, e.storage, key, e.log)
}

// locate resolves either a free-text location or explicit coordinates. With neither
// the configured origin is used.
func (e *env) locate(ctx context.Context, query string, lat, lng float64) (station.Location, error) {
	if strings.TrimSpace(query) != "" {
		place, err := e.geocoder().Lookup(ctx, query)
		if err != nil {
			return station.Location{}, err
		}
		fmt.Println("Location found:", place.Name)
		return place.Location, nil
	}
	if lat == 0 && lng == 0 {
		return e.origin(), nil
	}
	return station.Location{Lat: lat, Lng: lng}, nil
}
