package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "waysave.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(PathEnv, "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Auth.RestoreRetries != 3 || cfg.Auth.RestoreBackoff != time.Second || cfg.Auth.RestoreTimeout != 10*time.Second {
		t.Errorf("restore defaults = %+v", cfg.Auth)
	}
	if cfg.SplashDelay != 1500*time.Millisecond || cfg.Fuel.Source != SourceSnapshot || cfg.OCM.MaxResults != 20 {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeFile(t, `
db: /tmp/ws.db
splash_delay: 2s
origin:
  lat: 40.4168
  lng: -3.7038
auth:
  skip: true
  token_ttl: 1h
ocm:
  api_key: from-file
fuel:
  source: static
`)
	t.Setenv("WAYSAVE_OCM_API_KEY", "from-env")
	t.Setenv("WAYSAVE_AUTH_RESTORE_TIMEOUT", "5s")
	t.Setenv("WAYSAVE_SERVER_RATE_LIMIT", "30")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.DB != "/tmp/ws.db" || cfg.SplashDelay != 2*time.Second {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Origin.Lat != 40.4168 || cfg.Origin.Lng != -3.7038 {
		t.Errorf("origin = %+v", cfg.Origin)
	}
	if !cfg.Auth.Skip || cfg.Auth.TokenTTL != time.Hour {
		t.Errorf("auth = %+v", cfg.Auth)
	}
	if cfg.Auth.RestoreRetries != 3 {
		t.Errorf("partial section reset the defaults: %+v", cfg.Auth)
	}
	if cfg.OCM.APIKey != "from-env" {
		t.Errorf("env did not override file: %q", cfg.OCM.APIKey)
	}
	if cfg.Auth.RestoreTimeout != 5*time.Second || cfg.Server.RateLimit != 30 {
		t.Errorf("env overrides = %v, %d", cfg.Auth.RestoreTimeout, cfg.Server.RateLimit)
	}
}

func TestLoadErrors(t *testing.T) {
	t.Setenv(PathEnv, "")

	tests := []struct {
		name string
		path string
		env  map[string]string
	}{
		{"missing explicit file", filepath.Join(t.TempDir(), "nope.yaml"), nil},
		{"bad yaml", writeFile(t, "db: [unterminated"), nil},
		{"unknown source", writeFile(t, "fuel:\n  source: carrier-pigeon\n"), nil},
		{"retailer without url", writeFile(t, "fuel:\n  source: retailer\n"), nil},
		{"bad duration", "", map[string]string{"WAYSAVE_AUTH_TOKEN_TTL": "forever"}},
		{"bad origin", "", map[string]string{"WAYSAVE_ORIGIN_LAT": "123"}},
		{"placeholder secret", "", map[string]string{"WAYSAVE_AUTH_JWT_SECRET": "change-me"}},
		{"short secret", writeFile(t, "auth:\n  jwt_secret: "+strings.Repeat("s", MinSecretLength-1)+"\n"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(tt.path); err == nil {
				t.Error("Load() succeeded, want error")
			}
		})
	}
}

func TestLoadIgnoresMissingEnvFile(t *testing.T) {
	t.Setenv(PathEnv, filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := Load(""); err != nil {
		t.Errorf("Load() error = %v", err)
	}
}

func TestValidateServerNeedsSecret(t *testing.T) {
	t.Setenv(PathEnv, "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Auth.JWTSecret != "" {
		t.Errorf("default secret = %q, want none", cfg.Auth.JWTSecret)
	}
	if err := cfg.ValidateServer(); err == nil {
		t.Error("ValidateServer() accepted a missing secret")
	}

	t.Setenv("WAYSAVE_AUTH_JWT_SECRET", strings.Repeat("k", MinSecretLength))
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		t.Errorf("ValidateServer() error = %v", err)
	}
}
