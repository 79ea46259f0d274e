package model

import "time"

// PointOfInterest is one nearby amenity found during location analysis.
type PointOfInterest struct {
	Name           string   `json:"name"`
	Category       string   `json:"category"`
	DistanceMeters float64  `json:"distance_meters"`
	Address        string   `json:"address,omitempty"`
	Latitude       float64  `json:"latitude"`
	Longitude      float64  `json:"longitude"`
	Rating         *float64 `json:"rating,omitempty"`
	RatingCount    int      `json:"user_ratings_total,omitempty"`
}

// LocationAnalysis is the derived location insight for one approved
// candidate. Pros and Cons are always non-nil, possibly empty. A failed
// analysis (geocode or POI lookup) is still written, with Failed set and
// FailureReason carrying the stage-local error, so the report compiler never
// has to deal with a silently missing record.
type LocationAnalysis struct {
	CandidateID   string            `json:"candidate_id"`
	Latitude      float64           `json:"latitude"`
	Longitude     float64           `json:"longitude"`
	NearbyPOIs    []PointOfInterest `json:"nearby_pois"`
	Pros          []string          `json:"pros"`
	Cons          []string          `json:"cons"`
	Walkability   *int              `json:"walkability_score,omitempty"`
	TransitScore  *int              `json:"transit_score,omitempty"`
	Failed        bool              `json:"failed,omitempty"`
	FailureReason string            `json:"failure_reason,omitempty"`
	AnalyzedAt    time.Time         `json:"analyzed_at"`
}

// FailedAnalysis builds the recorded-failure form of a LocationAnalysis.
func FailedAnalysis(candidateID, reason string, at time.Time) *LocationAnalysis {
	return &LocationAnalysis{
		CandidateID:   candidateID,
		NearbyPOIs:    []PointOfInterest{},
		Pros:          []string{},
		Cons:          []string{},
		Failed:        true,
		FailureReason: reason,
		AnalyzedAt:    at,
	}
}
