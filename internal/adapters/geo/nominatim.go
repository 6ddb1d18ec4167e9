package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/ports"
)

const (
	// DefaultBaseURL is the public Nominatim API endpoint.
	DefaultBaseURL   = "https://nominatim.openstreetmap.org"
	defaultUserAgent = "smart-waste-reporting/1.0"
	requestTimeout   = 10 * time.Second
)

// NominatimGeocoder reverse geocodes through a Nominatim instance. The public instance allows one
// request per second and requires an identifying User-Agent.
type NominatimGeocoder struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	cb         *gobreaker.CircuitBreaker
}

var _ ports.Geocoder = (*NominatimGeocoder)(nil)

type reverseResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

func NewNominatimGeocoder(baseURL, userAgent string, cb *gobreaker.CircuitBreaker) *NominatimGeocoder {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &NominatimGeocoder{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: requestTimeout},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
		cb:         cb,
	}
}

func (g *NominatimGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", domain.NewGeolocationError("lookup cancelled", err)
	}

	res, err := g.cb.Execute(func() (interface{}, error) {
		return g.reverse(ctx, lat, lng)
	})
	if err != nil {
		return "", domain.NewGeolocationError("reverse geocoding failed", err)
	}
	return res.(string), nil
}

func (g *NominatimGeocoder) reverse(ctx context.Context, lat, lng float64) (string, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/reverse?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("nominatim returned status %d: %s", resp.StatusCode, string(body))
	}

	var out reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("nominatim: %s", out.Error)
	}
	if out.DisplayName == "" {
		return "", fmt.Errorf("nominatim: empty address")
	}
	return out.DisplayName, nil
}
