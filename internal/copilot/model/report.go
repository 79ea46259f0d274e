package model

import "time"

// Report is the final deliverable for one completed workflow: the approved
// candidates joined with their location analyses and any decorated images.
// Immutable once produced; rebuilding it from the same thread state yields
// identical content.
type Report struct {
	Criteria    SearchCriteria               `json:"criteria"`
	Candidates  []*Candidate                 `json:"candidates"`
	Analyses    map[string]*LocationAnalysis `json:"analyses"`
	Decorations map[string]*DecoratedImage   `json:"decorations,omitempty"`
	Summary     string                       `json:"summary"`
	GeneratedAt time.Time                    `json:"generated_at"`
}
