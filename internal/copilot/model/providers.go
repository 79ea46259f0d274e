package model

import "context"

// ChatMessage is one turn of the user conversation as received on /invoke.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SearchResult is one raw web-search hit before listing extraction.
type SearchResult struct {
	Title   string   `json:"title"`
	URL     string   `json:"url"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
	Score   float64  `json:"score,omitempty"`
}

// SearchProvider abstracts the hosted web-search API used by discovery.
type SearchProvider interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
}

// ListingContent is the fetched page content behind one search hit.
type ListingContent struct {
	URL        string   `json:"url"`
	RawContent string   `json:"raw_content"`
	Images     []string `json:"images,omitempty"`
}

// ListingExtractor is an optional capability of a SearchProvider: fetch the
// full page content and photos of one listing URL. Discovery treats it as
// best effort, so a failed extraction leaves the candidate with whatever the
// search response carried.
type ListingExtractor interface {
	ExtractListing(ctx context.Context, url string) (*ListingContent, error)
}

// GeocodeResult is a resolved address.
type GeocodeResult struct {
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	FormattedAddress string  `json:"formatted_address"`
	PlaceID          string  `json:"place_id,omitempty"`
}

// PlacesProvider abstracts the hosted places API used by location analysis.
// Geocode must return errx.ErrGeocode (via errors.Is) when the address
// resolves to nothing.
type PlacesProvider interface {
	Geocode(ctx context.Context, address, regionCode string) (*GeocodeResult, error)
	Nearby(ctx context.Context, lat, lon float64, category string, radiusMeters float64, limit int) ([]PointOfInterest, error)
}

// VisionProvider abstracts the hosted vision/generation API used by the
// decoration stage.
type VisionProvider interface {
	AnalyzeImage(ctx context.Context, imageURL string) (*ImageAnalysis, error)
	DecorateImage(ctx context.Context, imageURL string, analysis *ImageAnalysis) (*DecoratedImage, error)
}

// CriteriaExtractor turns conversation text into a SearchCriteria record.
// When required fields are absent it returns errx.ErrIncompleteCriteria with
// a clarification message instead of guessing.
type CriteriaExtractor interface {
	Extract(ctx context.Context, messages []ChatMessage) (*SearchCriteria, error)
}

// Summarizer optionally rewrites the deterministic report summary with an
// LLM. It runs before report compilation so the compiler itself stays pure;
// its output is non-deterministic and treated as best-effort.
type Summarizer interface {
	Summarize(ctx context.Context, report *Report) (string, error)
}
