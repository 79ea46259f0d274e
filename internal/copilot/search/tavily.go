package search

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
	logx "github.com/estate-copilot/server/pkg/logger"
)

// TavilyClient is a thin wrapper over the Tavily search API. Outbound calls
// are rate limited so a burst of threads cannot exhaust the API quota.
type TavilyClient struct {
	apiKey      string
	baseURL     string
	searchDepth string
	httpClient  *http.Client
	limiter     *rate.Limiter
}

func NewTavilyClient(cfg model.SearchAPIConfig) *TavilyClient {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rps := cfg.RPS
	if rps <= 0 {
		rps = 2
	}
	return &TavilyClient{
		apiKey:      strings.TrimSpace(cfg.APIKey),
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		searchDepth: cfg.SearchDepth,
		httpClient:  &http.Client{Timeout: timeout},
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
	}
}

type tavilySearchRequest struct {
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth,omitempty"`
}

type tavilySearchResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

func (c *TavilyClient) Search(ctx context.Context, query string, maxResults int) ([]model.SearchResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(tavilySearchRequest{
		Query:       query,
		MaxResults:  maxResults,
		SearchDepth: c.searchDepth,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		logx.Warn().Int("status", resp.StatusCode).Str("query", query).Msg("search API returned non-200")
		return nil, fmt.Errorf("search API status %d", resp.StatusCode)
	}

	var parsed tavilySearchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	results := make([]model.SearchResult, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		// Search results carry no per-result images; those come from the
		// extract endpoint once discovery keeps a listing.
		results = append(results, model.SearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Content: r.Content,
			Score:   r.Score,
		})
	}
	return results, nil
}

type tavilyExtractRequest struct {
	URLs          []string `json:"urls"`
	IncludeImages bool     `json:"include_images"`
}

type tavilyExtractResponse struct {
	Results []struct {
		URL        string   `json:"url"`
		RawContent string   `json:"raw_content"`
		Images     []string `json:"images"`
	} `json:"results"`
	FailedResults []struct {
		URL   string `json:"url"`
		Error string `json:"error"`
	} `json:"failed_results"`
}

// ExtractListing fetches the page content and photos of one listing URL via
// the extract endpoint.
func (c *TavilyClient) ExtractListing(ctx context.Context, url string) (*model.ListingContent, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(tavilyExtractRequest{URLs: []string{url}, IncludeImages: true})
	if err != nil {
		return nil, fmt.Errorf("marshal extract request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build extract request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extract request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read extract response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		logx.Warn().Int("status", resp.StatusCode).Str("url", url).Msg("extract API returned non-200")
		return nil, fmt.Errorf("extract API status %d", resp.StatusCode)
	}

	var parsed tavilyExtractResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode extract response: %w", err)
	}
	if len(parsed.Results) == 0 {
		if len(parsed.FailedResults) > 0 {
			return nil, fmt.Errorf("extract %s: %s", url, parsed.FailedResults[0].Error)
		}
		return nil, fmt.Errorf("extract %s: empty response", url)
	}

	r := parsed.Results[0]
	return &model.ListingContent{URL: r.URL, RawContent: r.RawContent, Images: r.Images}, nil
}

var (
	_ model.SearchProvider   = (*TavilyClient)(nil)
	_ model.ListingExtractor = (*TavilyClient)(nil)
)
