// Package prefs holds the user's filter and ranking preferences and their persistence.
package prefs

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// StorageKey is the versioned key preferences are persisted under.
const StorageKey = "waysave_prefs_v1"

type Tab string

const (
	TabFuel Tab = "fuel"
	TabEV   Tab = "ev"
)

type FuelType string

const (
	Diesel   FuelType = "diesel"
	Unleaded FuelType = "unleaded"
	Both     FuelType = "both"
)

type Mode string

const (
	Nearest  Mode = "nearest"
	Cheapest Mode = "cheapest"
	Fastest  Mode = "fastest"
)

// Connector names users can filter EV stations by.
const (
	CCS     = "CCS"
	CHAdeMO = "CHAdeMO"
	Type2   = "Type2"
)

var connectorNames = []string{CCS, CHAdeMO, Type2}

// ConnectorName returns the canonical spelling of a connector name, matched without
// regard to case.
func ConnectorName(name string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, c := range connectorNames {
		if strings.EqualFold(c, name) {
			return c, true
		}
	}
	return "", false
}

// Preferences are the user-configured filter and ranking parameters.
type Preferences struct {
	ActiveTab        Tab             `json:"activeTab"`
	FuelType         FuelType        `json:"fuelType"`
	Connectors       map[string]bool `json:"connectors"`
	Mode             Mode            `json:"preference"`
	MaxDistanceKm    float64         `json:"maxDistanceKm"`
	PriceSensitivity float64         `json:"priceSensitivity"`
}

// Defaults returns a fresh copy of the default preferences.
func Defaults() Preferences {
	return Preferences{
		ActiveTab:        TabFuel,
		FuelType:         Unleaded,
		Connectors:       map[string]bool{CCS: true, CHAdeMO: false, Type2: true},
		Mode:             Cheapest,
		MaxDistanceKm:    30,
		PriceSensitivity: 50,
	}
}

// KeyFor returns the storage key for a user's preferences. An empty user selects the
// device-wide key.
func KeyFor(userID string) string {
	if userID == "" {
		return StorageKey
	}
	return StorageKey + ":" + userID
}

// Decode parses a persisted blob. Fields missing from raw keep their default value;
// corrupt data yields the defaults.
func Decode(raw []byte) (Preferences, error) {
	p := Defaults()
	if len(raw) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return Defaults(), fmt.Errorf("error decoding preferences: %w", err)
	}
	return p.Normalize(), nil
}

// Encode serializes p for persistence.
func Encode(p Preferences) ([]byte, error) {
	return json.Marshal(p.Normalize())
}

// Normalize replaces invalid values with their defaults and clamps the price sensitivity.
func (p Preferences) Normalize() Preferences {
	def := Defaults()
	switch p.ActiveTab {
	case TabFuel, TabEV:
	default:
		p.ActiveTab = def.ActiveTab
	}
	switch p.FuelType {
	case Diesel, Unleaded, Both:
	default:
		p.FuelType = def.FuelType
	}
	switch p.Mode {
	case Nearest, Cheapest, Fastest:
	default:
		p.Mode = def.Mode
	}
	if math.IsNaN(p.MaxDistanceKm) || math.IsInf(p.MaxDistanceKm, 0) || p.MaxDistanceKm < 0 {
		p.MaxDistanceKm = def.MaxDistanceKm
	}
	if math.IsNaN(p.PriceSensitivity) {
		p.PriceSensitivity = def.PriceSensitivity
	}
	p.PriceSensitivity = math.Max(0, math.Min(100, p.PriceSensitivity))

	connectors := make(map[string]bool, len(def.Connectors))
	for k, v := range def.Connectors {
		connectors[k] = v
	}
	for k, v := range p.Connectors {
		if name, ok := ConnectorName(k); ok {
			connectors[name] = v
		}
	}
	p.Connectors = connectors
	return p
}

// Set updates one field from its textual form, as typed on the command line or in the shell.
// Connector flags are addressed as connectors.<name>.
func (p Preferences) Set(key, value string) (Preferences, error) {
	value = strings.TrimSpace(value)
	switch strings.ToLower(key) {
	case "tab", "activetab":
		p.ActiveTab = Tab(strings.ToLower(value))
		if p.ActiveTab != TabFuel && p.ActiveTab != TabEV {
			return p, fmt.Errorf("invalid tab %q", value)
		}
	case "fuel", "fueltype":
		p.FuelType = FuelType(strings.ToLower(value))
		if p.FuelType != Diesel && p.FuelType != Unleaded && p.FuelType != Both {
			return p, fmt.Errorf("invalid fuel type %q", value)
		}
	case "mode", "preference":
		p.Mode = Mode(strings.ToLower(value))
		if p.Mode != Nearest && p.Mode != Cheapest && p.Mode != Fastest {
			return p, fmt.Errorf("invalid preference mode %q", value)
		}
	case "radius", "maxdistancekm":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil || v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
			return p, fmt.Errorf("invalid max distance %q", value)
		}
		p.MaxDistanceKm = v
	case "sensitivity", "pricesensitivity":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil || v < 0 || v > 100 {
			return p, fmt.Errorf("invalid price sensitivity %q", value)
		}
		p.PriceSensitivity = v
	default:
		suffix, ok := strings.CutPrefix(strings.ToLower(key), "connectors.")
		if !ok {
			return p, fmt.Errorf("unknown preference %q", key)
		}
		name, ok := ConnectorName(suffix)
		if !ok {
			return p, fmt.Errorf("unknown connector %q", suffix)
		}
		on, err := strconv.ParseBool(value)
		if err != nil {
			return p, fmt.Errorf("invalid connector flag %q", value)
		}
		p = p.Normalize()
		p.Connectors[name] = on
	}
	return p.Normalize(), nil
}

// EnabledConnectors lists the connectors switched on, sorted by name.
func (p Preferences) EnabledConnectors() []string {
	var out []string
	for name, on := range p.Connectors {
		if on {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
