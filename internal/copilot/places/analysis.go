package places

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/estate-copilot/server/internal/copilot/model"
	logx "github.com/estate-copilot/server/pkg/logger"
)

// poiCategories are the Places API types queried around each candidate.
var poiCategories = []string{
	"restaurant",
	"cafe",
	"park",
	"shopping_mall",
	"transit_station",
	"school",
	"hospital",
	"gym",
}

// Analysis runs the location analysis stage over approved candidates. Each
// candidate is geocoded, its neighborhood POIs are collected per category, and
// pros/cons are derived from what was found. A candidate that cannot be
// analyzed gets a failure record instead of sinking the whole stage, so the
// stage always produces exactly one record per approved candidate.
type Analysis struct {
	provider     model.PlacesProvider
	repo         model.ThreadRepository
	workers      int
	radiusMeters float64
	poiPerKind   int
}

func NewAnalysis(provider model.PlacesProvider, repo model.ThreadRepository, cfg model.WorkflowConfig) *Analysis {
	workers := cfg.Analysis.Workers
	if workers <= 0 {
		workers = 4
	}
	radius := cfg.Analysis.RadiusMeters
	if radius <= 0 {
		radius = 5000
	}
	perKind := cfg.Analysis.POIPerKind
	if perKind <= 0 {
		perKind = 10
	}
	return &Analysis{
		provider:     provider,
		repo:         repo,
		workers:      workers,
		radiusMeters: radius,
		poiPerKind:   perKind,
	}
}

// Run analyzes every approved candidate concurrently with a bounded worker
// pool and persists each result as it lands. Provider errors are recorded in
// the per-candidate analysis record; only repository write failures abort.
func (a *Analysis) Run(ctx context.Context, state *model.ThreadState, approvedIDs []string) error {
	logx.Info().Str("thread_id", state.ThreadID).Int("candidates", len(approvedIDs)).Msg("Analyzing locations")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)

	for _, id := range approvedIDs {
		candidateID := id
		g.Go(func() error {
			analysis := a.analyzeOne(gctx, state.ThreadID, candidateID)
			if analysis.Failed {
				logx.Warn().
					Str("thread_id", state.ThreadID).
					Str("candidate_id", candidateID).
					Str("reason", analysis.FailureReason).
					Msg("location analysis failed for candidate")
			}
			return a.repo.PutAnalysis(gctx, state.ThreadID, analysis)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, id := range approvedIDs {
		analysis, err := a.repo.GetAnalysis(ctx, state.ThreadID, id)
		if err != nil {
			return err
		}
		if analysis.Failed {
			state.RecordFailure(id, analysis.FailureReason)
		}
	}
	return a.repo.SaveThread(ctx, state)
}

func (a *Analysis) analyzeOne(ctx context.Context, threadID, candidateID string) *model.LocationAnalysis {
	now := time.Now().UTC()

	candidate, err := a.repo.GetCandidate(ctx, threadID, candidateID)
	if err != nil {
		return model.FailedAnalysis(candidateID, fmt.Sprintf("load candidate: %v", err), now)
	}

	geo, err := a.provider.Geocode(ctx, candidate.FullAddress(), "")
	if err != nil {
		return model.FailedAnalysis(candidateID, fmt.Sprintf("geocode %q: %v", candidate.Address, err), now)
	}

	analysis := &model.LocationAnalysis{
		CandidateID: candidateID,
		Latitude:    geo.Latitude,
		Longitude:   geo.Longitude,
		NearbyPOIs:  []model.PointOfInterest{},
		Pros:        []string{},
		Cons:        []string{},
		AnalyzedAt:  now,
	}

	byCategory := make(map[string]int, len(poiCategories))
	for _, category := range poiCategories {
		pois, err := a.provider.Nearby(ctx, geo.Latitude, geo.Longitude, category, a.radiusMeters, a.poiPerKind)
		if err != nil {
			// One category missing is fine; the rest still inform the report.
			logx.Debug().Err(err).Str("category", category).Str("candidate_id", candidateID).Msg("POI lookup failed")
			continue
		}
		byCategory[category] = len(pois)
		analysis.NearbyPOIs = append(analysis.NearbyPOIs, pois...)
	}

	sort.Slice(analysis.NearbyPOIs, func(i, j int) bool {
		return analysis.NearbyPOIs[i].DistanceMeters < analysis.NearbyPOIs[j].DistanceMeters
	})

	analysis.Pros, analysis.Cons = deriveProsCons(byCategory, analysis.NearbyPOIs)
	walk, transit := deriveScores(byCategory, analysis.NearbyPOIs)
	analysis.Walkability = &walk
	analysis.TransitScore = &transit
	return analysis
}

// deriveProsCons turns POI counts into human-readable highlights.
func deriveProsCons(byCategory map[string]int, pois []model.PointOfInterest) (pros, cons []string) {
	pros = []string{}
	cons = []string{}

	if n := byCategory["restaurant"] + byCategory["cafe"]; n >= 5 {
		pros = append(pros, fmt.Sprintf("Lively dining scene with %d restaurants and cafes nearby", n))
	} else if n == 0 {
		cons = append(cons, "No restaurants or cafes found nearby")
	}
	if byCategory["park"] > 0 {
		pros = append(pros, fmt.Sprintf("%d parks within reach for outdoor time", byCategory["park"]))
	} else {
		cons = append(cons, "No parks found in the area")
	}
	if byCategory["transit_station"] >= 2 {
		pros = append(pros, "Well connected by public transit")
	} else if byCategory["transit_station"] == 0 {
		cons = append(cons, "Limited public transit access")
	}
	if byCategory["school"] > 0 {
		pros = append(pros, fmt.Sprintf("%d schools in the neighborhood", byCategory["school"]))
	}
	if byCategory["hospital"] > 0 {
		pros = append(pros, "Medical care close by")
	} else {
		cons = append(cons, "No hospital within the search radius")
	}
	if byCategory["shopping_mall"] > 0 {
		pros = append(pros, "Shopping options nearby")
	}
	if byCategory["gym"] > 0 {
		pros = append(pros, "Gyms available in the area")
	}

	if closest := closestWithin(pois, 500); closest != nil {
		pros = append(pros, fmt.Sprintf("%s is only %.0fm away", closest.Name, closest.DistanceMeters))
	}
	return pros, cons
}

// deriveScores maps POI density to coarse 0-100 walkability and transit
// scores.
func deriveScores(byCategory map[string]int, pois []model.PointOfInterest) (walk, transit int) {
	walkable := 0
	for _, p := range pois {
		if p.DistanceMeters <= 1500 {
			walkable++
		}
	}
	walk = walkable * 4
	if walk > 100 {
		walk = 100
	}
	transit = byCategory["transit_station"] * 20
	if transit > 100 {
		transit = 100
	}
	return walk, transit
}

func closestWithin(pois []model.PointOfInterest, meters float64) *model.PointOfInterest {
	for i := range pois {
		if pois[i].DistanceMeters > 0 && pois[i].DistanceMeters <= meters {
			return &pois[i]
		}
	}
	return nil
}
