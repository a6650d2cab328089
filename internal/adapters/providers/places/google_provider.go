package places

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/providers"
	"github.com/machikuchikomi/kuchikomi-cho/backend/pkg/retry"
)

const (
	googleMapsBaseURL     = "https://maps.googleapis.com/maps/api"
	defaultTextSearchTTL  = 24 * time.Hour
	defaultDetailsTTL     = 7 * 24 * time.Hour
	defaultHTTPTimeout    = 10 * time.Second
	detailsFields         = "place_id,name,formatted_address,geometry,types,formatted_phone_number,url,business_status"
	statusOK              = "OK"
	statusZeroResults     = "ZERO_RESULTS"
	statusOverQueryLimit  = "OVER_QUERY_LIMIT"
	statusUnknownError    = "UNKNOWN_ERROR"
	cacheKeyVersionPrefix = "places:v1:"
)

// Options configures a GoogleProvider. Zero values fall back to production defaults.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Language   string
	Region     string
	Retry      *retry.Config
}

// GoogleProvider implements PlacesProvider on the Google Places web service
type GoogleProvider struct {
	apiKey     string
	httpClient *http.Client
	cache      providers.CacheProvider
	baseURL    string
	language   string
	region     string
	retry      retry.Config
}

// NewGoogleProvider creates a places provider. cache may be nil.
func NewGoogleProvider(apiKey string, cache providers.CacheProvider, opts Options) *GoogleProvider {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = googleMapsBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	retryCfg := retry.APIConfig()
	if opts.Retry != nil {
		retryCfg = *opts.Retry
	}
	retryCfg.Retryable = isRetryable
	retryCfg.OnRetry = func(attempt int, err error, next time.Duration) {
		log.Warn().Err(err).Int("attempt", attempt).Dur("next_delay", next).Msg("places request failed, retrying")
	}

	return &GoogleProvider{
		apiKey:     apiKey,
		httpClient: httpClient,
		cache:      cache,
		baseURL:    baseURL,
		language:   opts.Language,
		region:     opts.Region,
		retry:      retryCfg,
	}
}

var _ providers.PlacesProvider = (*GoogleProvider)(nil)

// TextSearch returns the first page of places matching query
func (g *GoogleProvider) TextSearch(ctx context.Context, query string) ([]*providers.PlaceSummary, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil, fmt.Errorf("query is required")
	}

	cacheKey := cacheKeyVersionPrefix + "text:" + hashKey(g.language+"|"+g.region+"|"+trimmed)
	var cached []*providers.PlaceSummary
	if g.readCache(ctx, cacheKey, &cached) {
		return cached, nil
	}

	params := url.Values{}
	params.Set("query", trimmed)

	var payload textSearchResponse
	if err := g.get(ctx, "/place/textsearch/json", params, &payload); err != nil {
		return nil, err
	}
	if err := checkStatus("text search", payload.Status, payload.ErrorMessage); err != nil {
		return nil, err
	}

	results := make([]*providers.PlaceSummary, 0, len(payload.Results))
	for _, r := range payload.Results {
		results = append(results, &providers.PlaceSummary{
			PlaceID:          r.PlaceID,
			Name:             r.Name,
			FormattedAddress: r.FormattedAddress,
			Latitude:         r.Geometry.Location.Lat,
			Longitude:        r.Geometry.Location.Lng,
			Types:            r.Types,
		})
	}

	g.writeCache(ctx, cacheKey, results, defaultTextSearchTTL)
	return results, nil
}

// PlaceDetails fetches the detail record for one place
func (g *GoogleProvider) PlaceDetails(ctx context.Context, placeID string) (*providers.PlaceDetails, error) {
	placeID = strings.TrimSpace(placeID)
	if placeID == "" {
		return nil, fmt.Errorf("place id is required")
	}

	cacheKey := cacheKeyVersionPrefix + "details:" + hashKey(g.language+"|"+placeID)
	var cached providers.PlaceDetails
	if g.readCache(ctx, cacheKey, &cached) && cached.PlaceID != "" {
		return &cached, nil
	}

	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("fields", detailsFields)

	var payload detailsResponse
	if err := g.get(ctx, "/place/details/json", params, &payload); err != nil {
		return nil, err
	}
	if payload.Status == statusZeroResults || payload.Status == "NOT_FOUND" {
		return nil, fmt.Errorf("place %s not found", placeID)
	}
	if err := checkStatus("place details", payload.Status, payload.ErrorMessage); err != nil {
		return nil, err
	}

	r := payload.Result
	details := &providers.PlaceDetails{
		PlaceID:          r.PlaceID,
		Name:             r.Name,
		FormattedAddress: r.FormattedAddress,
		Latitude:         r.Geometry.Location.Lat,
		Longitude:        r.Geometry.Location.Lng,
		Types:            r.Types,
		Phone:            r.FormattedPhoneNumber,
		MapsURL:          r.URL,
		BusinessStatus:   r.BusinessStatus,
	}

	g.writeCache(ctx, cacheKey, details, defaultDetailsTTL)
	return details, nil
}

// get performs a GET with retries and decodes the JSON body into out
func (g *GoogleProvider) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	if g.apiKey == "" {
		return retry.Permanent(fmt.Errorf("google places api key is required"))
	}

	params.Set("key", g.apiKey)
	if g.language != "" {
		params.Set("language", g.language)
	}
	if g.region != "" {
		params.Set("region", g.region)
	}
	reqURL := g.baseURL + path + "?" + params.Encode()

	return retry.Do(ctx, g.retry, "places"+path, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return retry.Permanent(fmt.Errorf("failed to build places request: %w", err))
		}

		resp, err := g.httpClient.Do(req)
		if err != nil {
			return &transientError{err: fmt.Errorf("places request failed: %w", err)}
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return &transientError{err: fmt.Errorf("places request returned status %d", resp.StatusCode)}
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("places request returned status %d", resp.StatusCode)
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode places response: %w", err)
		}

		// Quota and transient server errors come back as 200 with a status field
		if s, ok := out.(interface{ apiStatus() string }); ok {
			switch s.apiStatus() {
			case statusOverQueryLimit, statusUnknownError:
				return &transientError{err: fmt.Errorf("places api status %s", s.apiStatus())}
			}
		}
		return nil
	})
}

func (g *GoogleProvider) readCache(ctx context.Context, key string, out interface{}) bool {
	if g.cache == nil {
		return false
	}
	data, err := g.cache.Get(ctx, key)
	if err != nil || len(data) == 0 {
		return false
	}
	return json.Unmarshal(data, out) == nil
}

func (g *GoogleProvider) writeCache(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if g.cache == nil {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := g.cache.Set(ctx, key, payload, ttl); err != nil {
		log.Debug().Err(err).Msg("failed to cache places response")
	}
}

// transientError marks failures worth another attempt
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	_, ok := err.(*transientError)
	return ok
}

func checkStatus(op, status, message string) error {
	switch status {
	case statusOK, statusZeroResults:
		return nil
	}
	if message != "" {
		return fmt.Errorf("places %s failed: %s - %s", op, status, message)
	}
	return fmt.Errorf("places %s failed: %s", op, status)
}

func hashKey(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

type googleGeometry struct {
	Location struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"location"`
}

type textSearchResponse struct {
	Status       string             `json:"status"`
	ErrorMessage string             `json:"error_message,omitempty"`
	Results      []textSearchResult `json:"results"`
}

func (r *textSearchResponse) apiStatus() string { return r.Status }

type textSearchResult struct {
	PlaceID          string         `json:"place_id"`
	Name             string         `json:"name"`
	FormattedAddress string         `json:"formatted_address"`
	Geometry         googleGeometry `json:"geometry"`
	Types            []string       `json:"types"`
}

type detailsResponse struct {
	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Result       detailsResult `json:"result"`
}

func (r *detailsResponse) apiStatus() string { return r.Status }

type detailsResult struct {
	PlaceID              string         `json:"place_id"`
	Name                 string         `json:"name"`
	FormattedAddress     string         `json:"formatted_address"`
	Geometry             googleGeometry `json:"geometry"`
	Types                []string       `json:"types"`
	FormattedPhoneNumber string         `json:"formatted_phone_number"`
	URL                  string         `json:"url"`
	BusinessStatus       string         `json:"business_status"`
}
