// Package ranker filters and orders stations according to the user's preferences.
package ranker

import (
	"sort"

	"github.com/waysave/waysave/internal/prefs"
	"github.com/waysave/waysave/internal/station"
)

const (
	// PriceScale converts a price per unit into kilometers so that price and distance
	// can be weighed against each other.
	PriceScale = 10.0

	// UnknownPriceCost keeps unpriced stations behind every priced one in cheapest mode.
	UnknownPriceCost = 1e9
)

// Rank returns the stations matching p, cheapest cost first. The input is not modified
// and equal costs keep their input order. The result is never nil.
func Rank(stations []station.Station, p prefs.Preferences) []station.Station {
	p = p.Normalize()
	category := station.Category(p.ActiveTab)

	ranked := make([]station.Station, 0, len(stations))
	for i := range stations {
		st := stations[i].Sanitize()
		if st.Validate() != nil {
			continue
		}
		if st.Category != category {
			continue
		}
		if st.Category == station.EV && !connectorsMatch(st.Connectors, p.Connectors) {
			continue
		}
		if st.DistanceKm == nil || *st.DistanceKm > p.MaxDistanceKm {
			continue
		}

		c := Cost(st, p)
		st.Score = &c
		ranked = append(ranked, st)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return *ranked[i].Score < *ranked[j].Score
	})
	return ranked
}

// Cost is the ranking cost of st under the active preference mode. Lower is better.
// Fastest has no travel-time source and uses distance, like nearest.
func Cost(st station.Station, p prefs.Preferences) float64 {
	distance := 0.0
	if st.DistanceKm != nil {
		distance = *st.DistanceKm
	}

	switch p.Mode {
	case prefs.Cheapest:
		w := p.PriceSensitivity / 100
		if st.PriceValue == nil {
			return UnknownPriceCost + (1-w)*distance
		}
		price := *st.PriceValue
		return w*price*PriceScale + (1-w)*distance
	default:
		return distance
	}
}

// BestValue returns the station to highlight, if any.
func BestValue(ranked []station.Station) (station.Station, bool) {
	if len(ranked) == 0 {
		return station.Station{}, false
	}
	return ranked[0], true
}

// connectorsMatch keeps stations that did not report connectors.
func connectorsMatch(have []string, enabled map[string]bool) bool {
	if len(have) == 0 {
		return true
	}
	for _, c := range have {
		if enabled[c] {
			return true
		}
	}
	return false
}
