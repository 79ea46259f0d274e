package search

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/estate-copilot/server/internal/copilot/model"
	errx "github.com/estate-copilot/server/internal/core/error"
	logx "github.com/estate-copilot/server/pkg/logger"
)

// Discovery runs the listing discovery stage: build a query from the
// criteria, call the search provider with bounded exponential backoff, parse
// listings, and persist each candidate the moment it is parsed so a crash
// mid-stage loses at most the in-flight candidate.
type Discovery struct {
	provider   model.SearchProvider
	repo       model.ThreadRepository
	extractor  model.ListingExtractor
	maxRetries int
}

func NewDiscovery(provider model.SearchProvider, repo model.ThreadRepository, maxRetries int) *Discovery {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	// Providers that can fetch listing pages enrich candidates with their
	// own photos and full description.
	extractor, _ := provider.(model.ListingExtractor)
	return &Discovery{provider: provider, repo: repo, extractor: extractor, maxRetries: maxRetries}
}

// Run discovers up to criteria.MaxResults candidates for the thread and
// appends their ids to state.CandidateIDs, saving the checkpoint after each
// one. Listings already rejected in this thread (matched by listing URL) are
// excluded. Exhausted retries surface as errx.ErrUpstreamSearch.
func (d *Discovery) Run(ctx context.Context, state *model.ThreadState) ([]*model.Candidate, error) {
	criteria := state.Criteria
	if criteria == nil || !criteria.Complete() {
		return nil, fmt.Errorf("discovery requires complete criteria")
	}

	query := buildQuery(criteria)
	logx.Info().Str("thread_id", state.ThreadID).Str("query", query).Msg("Discovering listings")

	// Over-fetch so URL exclusion and address-less rejects still leave
	// enough results to fill the cap.
	fetch := criteria.MaxResults + len(state.RejectedIDs) + 3

	var results []model.SearchResult
	operation := func() error {
		var err error
		results, err = d.provider.Search(ctx, query, fetch)
		if err != nil {
			logx.Warn().Err(err).Str("thread_id", state.ThreadID).Msg("search attempt failed")
			return err
		}
		return nil
	}
	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(d.maxRetries-1)),
		ctx,
	)
	if err := backoff.Retry(operation, bo); err != nil {
		return nil, errx.UpstreamSearch(err)
	}

	excluded, err := d.rejectedURLs(ctx, state)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	candidates := make([]*model.Candidate, 0, criteria.MaxResults)
	for _, r := range results {
		if len(candidates) >= criteria.MaxResults {
			break
		}
		if r.URL == "" || excluded[r.URL] {
			continue
		}
		c := parseListing(newCandidateID(), r, now)
		if c.Address == "" {
			logx.Debug().Str("url", r.URL).Msg("skipping listing without address")
			continue
		}
		d.enrichListing(ctx, c)
		// Durable write before the candidate becomes visible anywhere.
		if err := d.repo.PutCandidate(ctx, state.ThreadID, c); err != nil {
			return candidates, err
		}
		state.CandidateIDs = append(state.CandidateIDs, c.ID)
		if err := d.repo.SaveThread(ctx, state); err != nil {
			return candidates, err
		}
		candidates = append(candidates, c)
	}

	logx.Info().Str("thread_id", state.ThreadID).Int("found", len(candidates)).Msg("Discovery finished")
	return candidates, nil
}

const maxDescriptionLen = 4 * 1024

// enrichListing fetches the listing page itself so each kept candidate
// carries its own photos and description rather than the search snippet.
// Failures only leave the candidate with the search-level fields.
func (d *Discovery) enrichListing(ctx context.Context, c *model.Candidate) {
	if d.extractor == nil || c.ListingURL == "" {
		return
	}
	content, err := d.extractor.ExtractListing(ctx, c.ListingURL)
	if err != nil {
		logx.Warn().Err(err).Str("url", c.ListingURL).Msg("listing extraction failed")
		return
	}

	seen := make(map[string]bool, len(c.ImageURLs))
	for _, u := range c.ImageURLs {
		seen[u] = true
	}
	for _, u := range content.Images {
		if u != "" && !seen[u] {
			seen[u] = true
			c.ImageURLs = append(c.ImageURLs, u)
		}
	}

	if rc := strings.TrimSpace(content.RawContent); len(rc) > len(c.Description) {
		if len(rc) > maxDescriptionLen {
			cut := maxDescriptionLen
			for cut > 0 && !utf8.RuneStart(rc[cut]) {
				cut--
			}
			rc = rc[:cut]
		}
		c.Description = rc
	}
}

// rejectedURLs resolves the listing URLs of every candidate rejected in this
// thread so a re-search cannot surface the same listing under a fresh id.
func (d *Discovery) rejectedURLs(ctx context.Context, state *model.ThreadState) (map[string]bool, error) {
	urls := make(map[string]bool, len(state.RejectedIDs))
	for _, id := range state.RejectedIDs {
		c, err := d.repo.GetCandidate(ctx, state.ThreadID, id)
		if err != nil {
			// A missing rejected candidate only weakens exclusion.
			logx.Warn().Err(err).Str("candidate_id", id).Msg("rejected candidate not found")
			continue
		}
		if c.ListingURL != "" {
			urls[c.ListingURL] = true
		}
	}
	return urls, nil
}

func newCandidateID() string {
	return "prop_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// buildQuery renders the criteria as a web-search query.
func buildQuery(c *model.SearchCriteria) string {
	var parts []string
	if c.MinBedrooms != nil {
		parts = append(parts, fmt.Sprintf("%d bedroom", *c.MinBedrooms))
	}
	if len(c.PropertyTypes) > 0 {
		parts = append(parts, strings.Join(c.PropertyTypes, " or "))
	} else {
		parts = append(parts, "homes")
	}
	switch c.Purpose {
	case model.PurposeRent:
		parts = append(parts, "for rent")
	case model.PurposeShortlet:
		parts = append(parts, "short let")
	default:
		parts = append(parts, "for sale")
	}
	parts = append(parts, "in "+c.Location)
	if c.MaxPrice != nil {
		parts = append(parts, fmt.Sprintf("under $%.0f", *c.MaxPrice))
	}
	if c.MinPrice != nil {
		parts = append(parts, fmt.Sprintf("over $%.0f", *c.MinPrice))
	}
	parts = append(parts, "listings")
	return strings.Join(parts, " ")
}
