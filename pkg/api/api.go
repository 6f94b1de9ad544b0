// Package api provides clients for the upstream station data sources: the Spanish
// government fuel price feed, UK retailer open-data feeds and the OpenChargeMap API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	ApiResultOK    = "OK"
	DefaultTimeout = 30 * time.Second

	DefaultFuelPriceURL = "https://sedeaplicaciones.minetur.gob.es/ServiciosRESTCarburantes/PreciosCarburantes/EstacionesTerrestres"
)

// ErrUnexpectedPayload is returned when a feed answers with a body of an unknown shape.
var ErrUnexpectedPayload = errors.New("unexpected payload")

// FuelPriceAPI provides methods to fetch fuel price data from the official API.
type FuelPriceAPI struct {
	baseURL    string
	httpClient *http.Client
}

// NewFuelPriceAPI creates a FuelPriceAPI client. An empty baseURL selects the official endpoint.
func NewFuelPriceAPI(baseURL string) *FuelPriceAPI {
	if baseURL == "" {
		baseURL = DefaultFuelPriceURL
	}
	return &FuelPriceAPI{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// FetchPrices fetches the latest available fuel station prices.
func (api *FuelPriceAPI) FetchPrices(ctx context.Context) (*GasStationList, error) {
	var pricesResponse GasStationList
	if err := getJSON(ctx, api.httpClient, api.baseURL, &pricesResponse); err != nil {
		return nil, err
	}
	return &pricesResponse, nil
}

// FetchPricesForDate fetches fuel station prices for a specific date.
func (api *FuelPriceAPI) FetchPricesForDate(ctx context.Context, date time.Time) (*GasStationList, error) {
	url := fmt.Sprintf("%sHist/%s", api.baseURL, date.Format("02-01-2006"))

	var pricesResponse GasStationList
	if err := getJSON(ctx, api.httpClient, url, &pricesResponse); err != nil {
		return nil, err
	}
	return &pricesResponse, nil
}

// FetchRetailerStations downloads a UK retailer open-data feed. Retailers publish either
// {"stations": [...]}, {"forecourts": [...]} or a bare array.
func FetchRetailerStations(ctx context.Context, client *http.Client, url string) ([]RetailerStation, error) {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}

	var raw json.RawMessage
	if err := getJSON(ctx, client, url, &raw); err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var stations []RetailerStation
		if err := json.Unmarshal(raw, &stations); err != nil {
			return nil, fmt.Errorf("error unmarshaling JSON: %w", err)
		}
		return stations, nil
	}

	var wrapped struct {
		Stations   []RetailerStation `json:"stations"`
		Forecourts []RetailerStation `json:"forecourts"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("error unmarshaling JSON: %w", err)
	}
	switch {
	case wrapped.Stations != nil:
		return wrapped.Stations, nil
	case wrapped.Forecourts != nil:
		return wrapped.Forecourts, nil
	}
	return nil, ErrUnexpectedPayload
}

func getJSON(ctx context.Context, client *http.Client, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("error fetching data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response body: %w", err)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("error unmarshaling JSON: %w", err)
	}
	return nil
}

// ParseDecimal parses a number written with a comma or a dot as decimal separator.
// The Spanish feed uses commas for coordinates and prices.
func ParseDecimal(s string) (float64, error) {
	s = strings.Replace(strings.TrimSpace(s), ",", ".", 1)
	m, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}

	return m, nil
}
