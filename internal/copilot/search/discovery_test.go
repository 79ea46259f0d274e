package search

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estate-copilot/server/internal/copilot/model"
	"github.com/estate-copilot/server/internal/copilot/repo"
	errx "github.com/estate-copilot/server/internal/core/error"
)

type stubSearchProvider struct {
	results []model.SearchResult
	err     error
	calls   int
}

func (s *stubSearchProvider) Search(_ context.Context, _ string, _ int) ([]model.SearchResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

type stubExtractingProvider struct {
	stubSearchProvider
	contents     map[string]*model.ListingContent
	extractErr   error
	extractCalls int
}

func (s *stubExtractingProvider) ExtractListing(_ context.Context, url string) (*model.ListingContent, error) {
	s.extractCalls++
	if s.extractErr != nil {
		return nil, s.extractErr
	}
	content, ok := s.contents[url]
	if !ok {
		return nil, fmt.Errorf("no content for %s", url)
	}
	return content, nil
}

func listingResult(n int) model.SearchResult {
	return model.SearchResult{
		Title:   fmt.Sprintf("%d Birch St, Portland, OR | Zillow", 100+n),
		URL:     fmt.Sprintf("https://example.com/listing/%d", n),
		Content: fmt.Sprintf("House with %d beds for $%d00,000.", 2+n, 4+n),
	}
}

func newTestState() *model.ThreadState {
	return &model.ThreadState{
		ThreadID: "user1-1700000000",
		UserID:   "user1",
		Stage:    model.StageAwaitingSearch,
		Criteria: &model.SearchCriteria{
			Location:   "Portland, OR",
			Purpose:    model.PurposeSale,
			MaxResults: 3,
		},
	}
}

func TestDiscoveryRunPersistsEachCandidate(t *testing.T) {
	ctx := context.Background()
	r := repo.NewMemoryThreadRepository()
	provider := &stubSearchProvider{results: []model.SearchResult{
		listingResult(1), listingResult(2), listingResult(3), listingResult(4),
	}}
	state := newTestState()
	require.NoError(t, r.SaveThread(ctx, state))

	candidates, err := NewDiscovery(provider, r, 3).Run(ctx, state)
	require.NoError(t, err)
	require.Len(t, candidates, 3)
	assert.Len(t, state.CandidateIDs, 3)

	seen := map[string]bool{}
	for _, c := range candidates {
		assert.Regexp(t, `^prop_[0-9a-f]{12}$`, c.ID)
		assert.False(t, seen[c.ID], "duplicate candidate id")
		seen[c.ID] = true

		stored, err := r.GetCandidate(ctx, state.ThreadID, c.ID)
		require.NoError(t, err)
		assert.Equal(t, c.Address, stored.Address)
	}
}

func TestDiscoveryRunSkipsAddresslessResults(t *testing.T) {
	ctx := context.Background()
	r := repo.NewMemoryThreadRepository()
	provider := &stubSearchProvider{results: []model.SearchResult{
		{Title: "Homes for sale in Portland | Zillow", URL: "https://example.com/search"},
		listingResult(1),
	}}
	state := newTestState()
	require.NoError(t, r.SaveThread(ctx, state))

	candidates, err := NewDiscovery(provider, r, 3).Run(ctx, state)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "101 Birch St, Portland, OR", candidates[0].Address)
}

func TestDiscoveryRunExcludesRejectedURLs(t *testing.T) {
	ctx := context.Background()
	r := repo.NewMemoryThreadRepository()
	state := newTestState()

	rejected := &model.Candidate{
		ID:           "prop_rejected0001",
		Address:      "101 Birch St, Portland, OR",
		ListingURL:   listingResult(1).URL,
		DiscoveredAt: time.Now().UTC(),
	}
	require.NoError(t, r.PutCandidate(ctx, state.ThreadID, rejected))
	state.RejectedIDs = []string{rejected.ID}
	require.NoError(t, r.SaveThread(ctx, state))

	provider := &stubSearchProvider{results: []model.SearchResult{listingResult(1), listingResult(2)}}
	candidates, err := NewDiscovery(provider, r, 3).Run(ctx, state)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, listingResult(2).URL, candidates[0].ListingURL)
}

func TestDiscoveryRunEnrichesCandidatesFromListingPages(t *testing.T) {
	ctx := context.Background()
	r := repo.NewMemoryThreadRepository()
	provider := &stubExtractingProvider{
		stubSearchProvider: stubSearchProvider{results: []model.SearchResult{listingResult(1), listingResult(2)}},
		contents: map[string]*model.ListingContent{
			listingResult(1).URL: {
				URL:        listingResult(1).URL,
				RawContent: "Charming craftsman with a wraparound porch and updated kitchen.",
				Images:     []string{"https://example.com/photo/1a.jpg", "https://example.com/photo/1b.jpg"},
			},
			listingResult(2).URL: {
				URL:        listingResult(2).URL,
				RawContent: "Sunlit corner unit two blocks from the waterfront park.",
				Images:     []string{"https://example.com/photo/2a.jpg"},
			},
		},
	}
	state := newTestState()
	require.NoError(t, r.SaveThread(ctx, state))

	candidates, err := NewDiscovery(provider, r, 3).Run(ctx, state)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, 2, provider.extractCalls)

	// Every candidate carries its own page's photos, not just the first.
	assert.Equal(t, []string{"https://example.com/photo/1a.jpg", "https://example.com/photo/1b.jpg"}, candidates[0].ImageURLs)
	assert.Equal(t, []string{"https://example.com/photo/2a.jpg"}, candidates[1].ImageURLs)
	assert.Contains(t, candidates[0].Description, "wraparound porch")
	assert.Contains(t, candidates[1].Description, "waterfront park")

	// The enriched fields are what got persisted.
	stored, err := r.GetCandidate(ctx, state.ThreadID, candidates[0].ID)
	require.NoError(t, err)
	assert.Equal(t, candidates[0].ImageURLs, stored.ImageURLs)
}

func TestDiscoveryRunExtractionFailureKeepsSearchFields(t *testing.T) {
	ctx := context.Background()
	r := repo.NewMemoryThreadRepository()
	result := listingResult(1)
	result.Images = []string{"https://example.com/thumb/1.jpg"}
	provider := &stubExtractingProvider{
		stubSearchProvider: stubSearchProvider{results: []model.SearchResult{result}},
		extractErr:         errors.New("page fetch failed"),
	}
	state := newTestState()
	require.NoError(t, r.SaveThread(ctx, state))

	candidates, err := NewDiscovery(provider, r, 3).Run(ctx, state)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, []string{"https://example.com/thumb/1.jpg"}, candidates[0].ImageURLs)
	assert.Equal(t, result.Content, candidates[0].Description)
}

func TestDiscoveryRunEmptyResults(t *testing.T) {
	ctx := context.Background()
	r := repo.NewMemoryThreadRepository()
	state := newTestState()
	require.NoError(t, r.SaveThread(ctx, state))

	candidates, err := NewDiscovery(&stubSearchProvider{}, r, 3).Run(ctx, state)
	require.NoError(t, err)
	assert.Empty(t, candidates)
	assert.Empty(t, state.CandidateIDs)
}

func TestDiscoveryRunRetriesThenFails(t *testing.T) {
	ctx := context.Background()
	r := repo.NewMemoryThreadRepository()
	state := newTestState()
	require.NoError(t, r.SaveThread(ctx, state))

	provider := &stubSearchProvider{err: errors.New("upstream down")}
	_, err := NewDiscovery(provider, r, 2).Run(ctx, state)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errx.ErrUpstreamSearch))
	assert.Equal(t, 2, provider.calls)
}

func TestDiscoveryRunRequiresCompleteCriteria(t *testing.T) {
	state := &model.ThreadState{ThreadID: "t", Criteria: &model.SearchCriteria{Location: "x"}}
	_, err := NewDiscovery(&stubSearchProvider{}, repo.NewMemoryThreadRepository(), 3).Run(context.Background(), state)
	require.Error(t, err)
}
