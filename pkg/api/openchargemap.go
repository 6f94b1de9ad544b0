package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultOpenChargeMapURL = "https://api.openchargemap.io/v3/poi/"
	DefaultMaxResults       = 20
)

// OpenChargeMap queries EV charge points around a location.
type OpenChargeMap struct {
	baseURL    string
	apiKey     string
	maxResults int
	httpClient *http.Client
}

// NewOpenChargeMap creates a client. An empty baseURL selects the public endpoint.
func NewOpenChargeMap(baseURL, apiKey string, maxResults int) *OpenChargeMap {
	if baseURL == "" {
		baseURL = DefaultOpenChargeMapURL
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &OpenChargeMap{
		baseURL:    baseURL,
		apiKey:     apiKey,
		maxResults: maxResults,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// NearbyChargePoints returns charge points within distanceKm of lat/lng, nearest first
// as ordered by the API. The API sometimes answers 200 with an error object instead of
// an array; that is reported as ErrUnexpectedPayload.
func (o *OpenChargeMap) NearbyChargePoints(ctx context.Context, lat, lng, distanceKm float64) ([]ChargePoint, error) {
	q := url.Values{}
	q.Set("output", "json")
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lng, 'f', -1, 64))
	q.Set("distance", strconv.FormatFloat(distanceKm, 'f', -1, 64))
	q.Set("distanceunit", "KM")
	q.Set("maxresults", strconv.Itoa(o.maxResults))
	if o.apiKey != "" {
		q.Set("key", o.apiKey)
	}

	var raw json.RawMessage
	if err := getJSON(ctx, o.httpClient, o.baseURL+"?"+q.Encode(), &raw); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(strings.TrimSpace(string(raw)), "[") {
		return nil, ErrUnexpectedPayload
	}

	var points []ChargePoint
	if err := json.Unmarshal(raw, &points); err != nil {
		return nil, fmt.Errorf("error unmarshaling JSON: %w", err)
	}
	return points, nil
}
