package places

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estate-copilot/server/internal/copilot/model"
	"github.com/estate-copilot/server/internal/copilot/repo"
	errx "github.com/estate-copilot/server/internal/core/error"
)

type fakePlaces struct {
	mu            sync.Mutex
	geocodeCalls  int
	failAddresses map[string]bool
	poisByCat     map[string][]model.PointOfInterest
}

func (f *fakePlaces) Geocode(_ context.Context, address, _ string) (*model.GeocodeResult, error) {
	f.mu.Lock()
	f.geocodeCalls++
	f.mu.Unlock()
	if f.failAddresses[address] {
		return nil, fmt.Errorf("%w: no result for %q", errx.ErrGeocode, address)
	}
	return &model.GeocodeResult{Latitude: 47.6062, Longitude: -122.3321, FormattedAddress: address}, nil
}

func (f *fakePlaces) Nearby(_ context.Context, _, _ float64, category string, _ float64, _ int) ([]model.PointOfInterest, error) {
	return f.poisByCat[category], nil
}

func analysisConfig() model.WorkflowConfig {
	cfg := model.WorkflowConfig{}
	cfg.Analysis.Workers = 2
	cfg.Analysis.RadiusMeters = 5000
	cfg.Analysis.POIPerKind = 5
	return cfg
}

func seedCandidates(t *testing.T, r model.ThreadRepository, threadID string, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("prop_%012d", i)
		require.NoError(t, r.PutCandidate(context.Background(), threadID, &model.Candidate{
			ID:      id,
			Address: fmt.Sprintf("%d Cedar Ln, Seattle, WA", 100+i),
		}))
		ids = append(ids, id)
	}
	return ids
}

func TestAnalysisRunProducesRecordPerCandidate(t *testing.T) {
	ctx := context.Background()
	r := repo.NewMemoryThreadRepository()
	state := &model.ThreadState{ThreadID: "t1", UserID: "u1", Stage: model.StageApprovedNonempty}
	require.NoError(t, r.SaveThread(ctx, state))
	ids := seedCandidates(t, r, "t1", 3)

	provider := &fakePlaces{poisByCat: map[string][]model.PointOfInterest{
		"park":            {{Name: "Lake Park", Category: "park", DistanceMeters: 300}},
		"transit_station": {{Name: "Central Stop", Category: "transit_station", DistanceMeters: 450}},
	}}
	a := NewAnalysis(provider, r, analysisConfig())
	require.NoError(t, a.Run(ctx, state, ids))

	for _, id := range ids {
		got, err := r.GetAnalysis(ctx, "t1", id)
		require.NoError(t, err)
		assert.False(t, got.Failed)
		assert.Equal(t, 47.6062, got.Latitude)
		require.Len(t, got.NearbyPOIs, 2)
		// POIs sorted closest first.
		assert.Equal(t, "Lake Park", got.NearbyPOIs[0].Name)
		assert.NotNil(t, got.Walkability)
		assert.NotNil(t, got.TransitScore)
	}
	assert.Equal(t, 3, provider.geocodeCalls)
	assert.Empty(t, state.Failures)
}

func TestAnalysisRunRecordsGeocodeFailure(t *testing.T) {
	ctx := context.Background()
	r := repo.NewMemoryThreadRepository()
	state := &model.ThreadState{ThreadID: "t1", UserID: "u1", Stage: model.StageApprovedNonempty}
	require.NoError(t, r.SaveThread(ctx, state))
	ids := seedCandidates(t, r, "t1", 2)

	provider := &fakePlaces{failAddresses: map[string]bool{"100 Cedar Ln, Seattle, WA": true}}
	a := NewAnalysis(provider, r, analysisConfig())
	require.NoError(t, a.Run(ctx, state, ids))

	failed, err := r.GetAnalysis(ctx, "t1", ids[0])
	require.NoError(t, err)
	assert.True(t, failed.Failed)
	assert.Contains(t, failed.FailureReason, "geocode")

	ok, err := r.GetAnalysis(ctx, "t1", ids[1])
	require.NoError(t, err)
	assert.False(t, ok.Failed)

	assert.Len(t, state.Failures, 1)
	assert.Contains(t, state.Failures, ids[0])
}

func TestAnalysisRunMissingCandidateIsRecorded(t *testing.T) {
	ctx := context.Background()
	r := repo.NewMemoryThreadRepository()
	state := &model.ThreadState{ThreadID: "t1", UserID: "u1", Stage: model.StageApprovedNonempty}
	require.NoError(t, r.SaveThread(ctx, state))

	a := NewAnalysis(&fakePlaces{}, r, analysisConfig())
	require.NoError(t, a.Run(ctx, state, []string{"prop_missing"}))

	got, err := r.GetAnalysis(ctx, "t1", "prop_missing")
	require.NoError(t, err)
	assert.True(t, got.Failed)
	assert.Contains(t, got.FailureReason, "load candidate")
}

func TestDeriveProsConsEmptyNeighborhood(t *testing.T) {
	pros, cons := deriveProsCons(map[string]int{}, nil)
	assert.Empty(t, pros)
	assert.NotEmpty(t, cons)
}
