package model

import (
	"context"
	"fmt"
	"time"
)

// Stage is the workflow position of a thread. Transitions are monotonic
// within one approval round; an empty approval loops the thread back to
// discovery with the rejected ids excluded from the new search.
type Stage string

const (
	// StageAwaitingSearch: thread exists, no candidates yet.
	StageAwaitingSearch Stage = "awaiting_search"
	// StageAwaitingApproval: candidates persisted, workflow suspended.
	StageAwaitingApproval Stage = "awaiting_approval"
	// StageApprovedNonempty: decision received with >=1 approved id.
	StageApprovedNonempty Stage = "approved_nonempty"
	// StageApprovedEmpty: decision received with 0 approved ids.
	StageApprovedEmpty Stage = "approved_empty"
	// StageCompleted: report produced. Terminal.
	StageCompleted Stage = "completed"
)

// ThreadState is the durable workflow checkpoint for one conversation.
// "Suspension" is nothing more than this record saying awaiting_approval:
// there is no paused goroutine, and a resume in another process works as long
// as the repository is shared.
type ThreadState struct {
	ThreadID     string            `json:"thread_id"`
	UserID       string            `json:"user_id"`
	Stage        Stage             `json:"stage"`
	Criteria     *SearchCriteria   `json:"criteria,omitempty"`
	CandidateIDs []string          `json:"candidate_ids,omitempty"`
	RejectedIDs  []string          `json:"rejected_ids,omitempty"`
	Decorate     bool              `json:"decorate,omitempty"`
	Failures     map[string]string `json:"failures,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// NewThreadID derives the durable thread identifier from the authenticated
// user and the client-supplied request timestamp.
func NewThreadID(userID string, timestamp int64) string {
	return fmt.Sprintf("%s-%d", userID, timestamp)
}

// RecordFailure stores a stage-level failure marker readable via /state.
func (s *ThreadState) RecordFailure(scope, reason string) {
	if s.Failures == nil {
		s.Failures = make(map[string]string)
	}
	s.Failures[scope] = reason
}

// IsRejected reports whether a candidate id was rejected in any prior
// approval round of this thread.
func (s *ThreadState) IsRejected(candidateID string) bool {
	for _, id := range s.RejectedIDs {
		if id == candidateID {
			return true
		}
	}
	return false
}

// ThreadRepository is the durable store underlying every stage past
// discovery. One record per thread; candidate, analysis and decoration
// sub-records are addressable by (thread id, candidate id) so each can be
// fetched independently. Implementations must return errx.ErrUnknownThread
// (via errors.Is) from GetThread when the thread was never created.
type ThreadRepository interface {
	// SaveThread creates or replaces the thread checkpoint.
	SaveThread(ctx context.Context, state *ThreadState) error

	// GetThread retrieves the thread checkpoint.
	GetThread(ctx context.Context, threadID string) (*ThreadState, error)

	// PutCandidate durably writes one candidate. Called per candidate as
	// soon as it is parsed, before the discovery stage returns.
	PutCandidate(ctx context.Context, threadID string, c *Candidate) error

	// GetCandidate retrieves one candidate by id.
	GetCandidate(ctx context.Context, threadID, candidateID string) (*Candidate, error)

	// PutDecision records the approval decision for the latest round.
	PutDecision(ctx context.Context, d *ApprovalDecision) error

	// GetDecision retrieves the latest approval decision, or nil when the
	// thread has not passed an approval gate yet.
	GetDecision(ctx context.Context, threadID string) (*ApprovalDecision, error)

	// PutAnalysis writes the location analysis (or recorded failure) for one
	// candidate.
	PutAnalysis(ctx context.Context, threadID string, a *LocationAnalysis) error

	// GetAnalysis retrieves the analysis for one candidate.
	GetAnalysis(ctx context.Context, threadID, candidateID string) (*LocationAnalysis, error)

	// PutDecoration writes the decorated image (or recorded failure) for one
	// candidate.
	PutDecoration(ctx context.Context, threadID string, d *DecoratedImage) error

	// GetDecoration retrieves the decoration for one candidate.
	GetDecoration(ctx context.Context, threadID, candidateID string) (*DecoratedImage, error)

	// ClearThread removes the thread and all of its sub-records.
	ClearThread(ctx context.Context, threadID string) error
}
