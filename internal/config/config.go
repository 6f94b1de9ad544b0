// Package config loads WaySave settings from an optional YAML file and WAYSAVE_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// PathEnv names the variable holding the config file path when none is given.
	PathEnv   = "CONFIG_FILE"
	envPrefix = "WAYSAVE"

	// MinSecretLength is the shortest accepted auth.jwt_secret, in bytes.
	MinSecretLength = 32
)

// Fuel sources.
const (
	SourceSnapshot = "snapshot"
	SourceRetailer = "retailer"
	SourceStatic   = "static"
)

type Config struct {
	DB          string         `yaml:"db"`
	LogLevel    string         `yaml:"log_level" env:"LOG_LEVEL"`
	Origin      Origin         `yaml:"origin"`
	SplashDelay time.Duration  `yaml:"splash_delay" env:"SPLASH_DELAY"`
	Auth        AuthConfig     `yaml:"auth"`
	OCM         OCMConfig      `yaml:"ocm"`
	Fuel        FuelConfig     `yaml:"fuel"`
	Geocoder    GeocoderConfig `yaml:"geocoder"`
	Server      ServerConfig   `yaml:"server"`
}

// Origin is the search center used when the device location is unknown.
type Origin struct {
	Lat float64 `yaml:"lat"`
	Lng float64 `yaml:"lng"`
}

type AuthConfig struct {
	// Skip treats every user as signed in. Development only.
	Skip           bool          `yaml:"skip"`
	JWTSecret      string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	TokenTTL       time.Duration `yaml:"token_ttl" env:"TOKEN_TTL"`
	RestoreRetries int           `yaml:"restore_retries" env:"RESTORE_RETRIES"`
	RestoreBackoff time.Duration `yaml:"restore_backoff" env:"RESTORE_BACKOFF"`
	RestoreTimeout time.Duration `yaml:"restore_timeout" env:"RESTORE_TIMEOUT"`
}

type OCMConfig struct {
	APIKey     string  `yaml:"api_key" env:"API_KEY"`
	BaseURL    string  `yaml:"base_url" env:"BASE_URL"`
	MaxResults int     `yaml:"max_results" env:"MAX_RESULTS"`
	RadiusKm   float64 `yaml:"radius_km" env:"RADIUS_KM"`
}

type FuelConfig struct {
	Source      string `yaml:"source"`
	FeedURL     string `yaml:"feed_url" env:"FEED_URL"`
	RetailerURL string `yaml:"retailer_url" env:"RETAILER_URL"`
}

type GeocoderConfig struct {
	URL string `yaml:"url"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`

	// RateLimit is the number of requests per minute allowed per client IP.
	RateLimit int `yaml:"rate_limit" env:"RATE_LIMIT"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		DB:          "waysave.db",
		LogLevel:    "info",
		Origin:      Origin{Lat: 53.3498, Lng: -6.2603},
		SplashDelay: 1500 * time.Millisecond,
		Auth: AuthConfig{
			TokenTTL:       7 * 24 * time.Hour,
			RestoreRetries: 3,
			RestoreBackoff: time.Second,
			RestoreTimeout: 10 * time.Second,
		},
		OCM: OCMConfig{
			BaseURL:    "https://api.openchargemap.io/v3/poi",
			MaxResults: 20,
			RadiusKm:   50,
		},
		Fuel:     FuelConfig{Source: SourceSnapshot},
		Geocoder: GeocoderConfig{URL: "https://nominatim.openstreetmap.org/"},
		Server:   ServerConfig{Addr: ":8080", RateLimit: 120},
	}
}

// Load starts from Default, applies the YAML file at path (or $CONFIG_FILE when path
// is empty) and then the environment overrides. A missing file is only an error when
// it was named explicitly.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv(PathEnv)
	}
	if path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return cfg, err
			}
		}
	}

	if err := populateFromEnv(reflect.ValueOf(&cfg).Elem(), envPrefix); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the program cannot run with.
func (c Config) Validate() error {
	switch c.Fuel.Source {
	case SourceSnapshot, SourceStatic:
	case SourceRetailer:
		if c.Fuel.RetailerURL == "" {
			return errors.New("config: fuel.retailer_url is required for the retailer source")
		}
	default:
		return fmt.Errorf("config: unknown fuel.source %q", c.Fuel.Source)
	}
	if n := len(c.Auth.JWTSecret); n > 0 && n < MinSecretLength {
		return fmt.Errorf("config: auth.jwt_secret must be at least %d bytes", MinSecretLength)
	}
	if c.Origin.Lat < -90 || c.Origin.Lat > 90 || c.Origin.Lng < -180 || c.Origin.Lng > 180 {
		return fmt.Errorf("config: origin %v,%v out of range", c.Origin.Lat, c.Origin.Lng)
	}
	return nil
}

// ValidateServer checks the settings the JSON API needs on top of Validate. Tokens
// handed to remote clients must be signed with a secret the operator chose.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("config: auth.jwt_secret (WAYSAVE_AUTH_JWT_SECRET) is required to serve")
	}
	return nil
}

func loadFromFile(path string, target *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read file: %w", err)
	}

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("config: decode yaml: %w", err)
	}

	return nil
}

// populateFromEnv walks the struct and reads PREFIX_FIELD variables. Nested structs
// extend the prefix; an `env` tag replaces the field part of the key.
func populateFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		fieldVal := v.Field(i)
		fieldType := t.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		rawKey := fieldType.Tag.Get("env")
		if rawKey == "-" {
			continue
		}
		if rawKey == "" {
			rawKey = fieldType.Name
		}
		envKey := normalizeKey(prefix, rawKey)

		if fieldVal.Kind() == reflect.Struct {
			if err := populateFromEnv(fieldVal, envKey); err != nil {
				return err
			}
			continue
		}

		if val, ok := os.LookupEnv(envKey); ok {
			if err := assign(fieldVal, val); err != nil {
				return fmt.Errorf("config: parse %s: %w", envKey, err)
			}
		}
	}
	return nil
}

func normalizeKey(prefix, key string) string {
	key = strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
	if prefix == "" {
		return key
	}
	return fmt.Sprintf("%s_%s", prefix, key)
}

var durationType = reflect.TypeOf(time.Duration(0))

func assign(field reflect.Value, value string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(parsed)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		parsed, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetInt(parsed)
	case reflect.Float32, reflect.Float64:
		parsed, err := strconv.ParseFloat(value, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetFloat(parsed)
	default:
		return fmt.Errorf("unsupported field type %s", field.Type().String())
	}
	return nil
}
