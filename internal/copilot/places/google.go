package places

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/estate-copilot/server/internal/copilot/model"
	errx "github.com/estate-copilot/server/internal/core/error"
	logx "github.com/estate-copilot/server/pkg/logger"
)

const (
	maxNearbyResults  = 20
	maxRadiusMeters   = 50000.0
	geocodeFieldMask  = "places.id,places.displayName,places.formattedAddress,places.location"
	nearbyFieldMask   = "places.id,places.displayName,places.formattedAddress,places.location,places.rating,places.userRatingCount"
	contentTypeHeader = "application/json"
)

// GoogleClient wraps the Google Places v1 API: text search for geocoding and
// nearby search for POI lookup.
type GoogleClient struct {
	apiKey     string
	baseURL    string
	regionCode string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewGoogleClient(cfg model.PlacesAPIConfig) *GoogleClient {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rps := cfg.RPS
	if rps <= 0 {
		rps = 5
	}
	return &GoogleClient{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		regionCode: cfg.RegionCode,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 2),
	}
}

func (c *GoogleClient) post(ctx context.Context, path, fieldMask string, body any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal places request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build places request: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeHeader)
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("places request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read places response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		logx.Warn().Int("status", resp.StatusCode).Str("path", path).Msg("places API returned non-200")
		return fmt.Errorf("places API status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode places response: %w", err)
	}
	return nil
}

type placesResponse struct {
	Places []struct {
		ID          string `json:"id"`
		DisplayName struct {
			Text string `json:"text"`
		} `json:"displayName"`
		FormattedAddress string `json:"formattedAddress"`
		Location         struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"location"`
		Rating          *float64 `json:"rating"`
		UserRatingCount int      `json:"userRatingCount"`
	} `json:"places"`
}

// Geocode resolves an address via Places text search. An empty result set is
// errx.ErrGeocode, recorded per candidate by the analysis stage.
func (c *GoogleClient) Geocode(ctx context.Context, address, regionCode string) (*model.GeocodeResult, error) {
	body := map[string]any{"textQuery": address}
	if regionCode == "" {
		regionCode = c.regionCode
	}
	if regionCode != "" {
		body["regionCode"] = strings.ToUpper(regionCode)
	}

	var parsed placesResponse
	if err := c.post(ctx, "/places:searchText", geocodeFieldMask, body, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Places) == 0 {
		return nil, fmt.Errorf("%w: no result for %q", errx.ErrGeocode, address)
	}
	p := parsed.Places[0]
	return &model.GeocodeResult{
		Latitude:         p.Location.Latitude,
		Longitude:        p.Location.Longitude,
		FormattedAddress: p.FormattedAddress,
		PlaceID:          p.ID,
	}, nil
}

// Nearby finds POIs of one category around a coordinate, with the distance
// from the origin computed by haversine.
func (c *GoogleClient) Nearby(ctx context.Context, lat, lon float64, category string, radiusMeters float64, limit int) ([]model.PointOfInterest, error) {
	if limit <= 0 || limit > maxNearbyResults {
		limit = maxNearbyResults
	}
	if radiusMeters <= 0 || radiusMeters > maxRadiusMeters {
		radiusMeters = maxRadiusMeters
	}
	body := map[string]any{
		"includedTypes":  []string{category},
		"maxResultCount": limit,
		"locationRestriction": map[string]any{
			"circle": map[string]any{
				"center": map[string]float64{"latitude": lat, "longitude": lon},
				"radius": radiusMeters,
			},
		},
	}

	var parsed placesResponse
	if err := c.post(ctx, "/places:searchNearby", nearbyFieldMask, body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %w", errx.ErrPlacesLookup, err)
	}

	pois := make([]model.PointOfInterest, 0, len(parsed.Places))
	for _, p := range parsed.Places {
		pois = append(pois, model.PointOfInterest{
			Name:           p.DisplayName.Text,
			Category:       category,
			DistanceMeters: HaversineMeters(lat, lon, p.Location.Latitude, p.Location.Longitude),
			Address:        p.FormattedAddress,
			Latitude:       p.Location.Latitude,
			Longitude:      p.Location.Longitude,
			Rating:         p.Rating,
			RatingCount:    p.UserRatingCount,
		})
	}
	return pois, nil
}

var _ model.PlacesProvider = (*GoogleClient)(nil)
