package station

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/waysave/waysave/internal/prefs"
	"github.com/waysave/waysave/pkg/api"
)

const penceToPounds = 100.0

var kwhPrice = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:/|per)\s*kwh`)

// FromGasStation maps a record of the Spanish fuel feed.
func FromGasStation(gs *api.GasStation, fuelType prefs.FuelType, origin Location) (Station, error) {
	st := Station{
		ID:         "fuel-" + gs.IDEESS,
		ExternalID: gs.IDEESS,
		Name:       strings.TrimSpace(gs.Rotulo),
		Address:    strings.TrimSpace(strings.Join(nonEmpty(gs.Direccion, gs.Municipio), ", ")),
		Category:   Fuel,
	}

	lat, errLat := api.ParseDecimal(gs.Latitud)
	lng, errLng := api.ParseDecimal(gs.Longitud)
	if errLat != nil || errLng != nil {
		return st, fmt.Errorf("%s: %w", st.ID, ErrNoLocation)
	}
	st.Location = &Location{Lat: lat, Lng: lng}

	diesel := parsePrice(gs.PrecioGasoleoA)
	unleaded := parsePrice(gs.PrecioGasolina95E5)
	st.PriceValue = pickPrice(fuelType, diesel, unleaded)
	return finish(st, origin)
}

// FromFuelRecord maps a row of a static fuel dataset.
func FromFuelRecord(r api.FuelRecord, origin Location) (Station, error) {
	st := Station{
		ID:         fmt.Sprintf("fuel-%d", r.ID),
		ExternalID: strconv.FormatInt(r.ID, 10),
		Name:       r.Name,
		Location:   &Location{Lat: r.Latitude, Lng: r.Longitude},
		Category:   Fuel,
		PriceValue: r.Price,
	}
	return finish(st, origin)
}

// FromRetailer maps a UK retailer forecourt. Prices are published in pence per litre.
// idx is used to build an ID when the retailer omits site_id.
func FromRetailer(idx int, r *api.RetailerStation, fuelType prefs.FuelType, origin Location) (Station, error) {
	st := Station{
		ID:         fmt.Sprintf("fuel-retail-%d", idx),
		ExternalID: r.SiteID,
		Name:       r.DisplayName(),
		Address:    strings.Join(nonEmpty(r.Address, r.Postcode), ", "),
		Category:   Fuel,
	}
	if r.SiteID != "" {
		st.ID = "fuel-" + r.SiteID
	}
	if r.Location == nil {
		return st, fmt.Errorf("%s: %w", st.ID, ErrNoLocation)
	}
	st.Location = &Location{Lat: r.Location.Latitude, Lng: r.Location.Longitude}

	diesel := pickPence(r.Prices, "B7", "SDV", "diesel", "Diesel")
	unleaded := pickPence(r.Prices, "E10", "E5", "unleaded", "Unleaded")
	st.PriceValue = pickPrice(fuelType, diesel, unleaded)
	return finish(st, origin)
}

// FromChargePoint maps an OpenChargeMap POI. The distance reported by the API is
// trusted when present.
func FromChargePoint(cp *api.ChargePoint, origin Location) (Station, error) {
	st := Station{
		ID:         fmt.Sprintf("ev-%d", cp.ID),
		ExternalID: strconv.FormatInt(cp.ID, 10),
		Category:   EV,
	}
	info := cp.AddressInfo
	if info == nil || info.Latitude == nil || info.Longitude == nil {
		return st, fmt.Errorf("%s: %w", st.ID, ErrNoLocation)
	}
	st.Name = info.Title
	st.Address = strings.Join(nonEmpty(info.AddressLine1, info.Town), ", ")
	st.Location = &Location{Lat: *info.Latitude, Lng: *info.Longitude}

	seen := map[string]bool{}
	for _, c := range cp.Connections {
		if c.ConnectionType == nil {
			continue
		}
		name := ConnectorName(c.ConnectionType.Title)
		if name != "" && !seen[name] {
			seen[name] = true
			st.Connectors = append(st.Connectors, name)
		}
	}

	if m := kwhPrice.FindStringSubmatch(cp.UsageCost); m != nil {
		st.PriceValue = parsePrice(m[1])
	}

	if info.Distance != nil {
		if err := st.Validate(); err != nil {
			return st, err
		}
		st.DistanceKm = float(*info.Distance)
		st = st.Sanitize()
		st.PriceLabel = PriceLabel(st.Category, st.PriceValue)
		return st, nil
	}
	return finish(st, origin)
}

// ConnectorName maps an OpenChargeMap connection type title onto the connector names
// users filter by. Unknown types map to "".
func ConnectorName(title string) string {
	t := strings.ToLower(title)
	switch {
	case strings.Contains(t, "ccs"), strings.Contains(t, "combo"):
		return "CCS"
	case strings.Contains(t, "chademo"):
		return "CHAdeMO"
	case strings.Contains(t, "type 2"), strings.Contains(t, "mennekes"):
		return "Type2"
	}
	return ""
}

func finish(st Station, origin Location) (Station, error) {
	if err := st.Validate(); err != nil {
		return st, err
	}
	st.WithDistanceFrom(origin)
	st = st.Sanitize()
	st.PriceLabel = PriceLabel(st.Category, st.PriceValue)
	return st, nil
}

func pickPrice(fuelType prefs.FuelType, diesel, unleaded *float64) *float64 {
	switch fuelType {
	case prefs.Diesel:
		return diesel
	case prefs.Both:
		if diesel == nil {
			return unleaded
		}
		if unleaded == nil || *diesel < *unleaded {
			return diesel
		}
		return unleaded
	default:
		return unleaded
	}
}

func pickPence(prices map[string]float64, keys ...string) *float64 {
	for _, k := range keys {
		if v, ok := prices[k]; ok {
			return float(v / penceToPounds)
		}
	}
	return nil
}

func parsePrice(s string) *float64 {
	if s == "" || s == "-" {
		return nil
	}
	v, err := api.ParseDecimal(s)
	if err != nil {
		return nil
	}
	return &v
}

func nonEmpty(parts ...string) []string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
