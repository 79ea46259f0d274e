package workflow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/estate-copilot/server/internal/copilot/model"
	"github.com/estate-copilot/server/internal/copilot/places"
	"github.com/estate-copilot/server/internal/copilot/search"
	"github.com/estate-copilot/server/internal/copilot/vision"
	errx "github.com/estate-copilot/server/internal/core/error"
	logx "github.com/estate-copilot/server/pkg/logger"
)

// Result kinds returned by Invoke and Resume.
const (
	ResultMessage   = "message"
	ResultInterrupt = "interrupt"
	ResultReport    = "report"
)

// InterruptType tags the approval-gate payload so clients can dispatch on it.
const InterruptType = "property_review"

// InterruptPayload is what a suspended thread hands back to the client: the
// candidates awaiting the user's approve/reject decision.
type InterruptPayload struct {
	Type       string             `json:"type"`
	ThreadID   string             `json:"thread_id"`
	Properties []*model.Candidate `json:"properties"`
}

// Result is the outcome of one Invoke or Resume call. Exactly one of Message,
// Interrupt, Report is set, indicated by Kind.
type Result struct {
	Kind      string            `json:"kind"`
	ThreadID  string            `json:"thread_id"`
	Message   string            `json:"message,omitempty"`
	Interrupt *InterruptPayload `json:"interrupt,omitempty"`
	Report    *model.Report     `json:"report,omitempty"`
}

func messageResult(threadID, msg string) *Result {
	return &Result{Kind: ResultMessage, ThreadID: threadID, Message: msg}
}

// Workflow orchestrates the research pipeline over durable thread state.
// Every stage transition is persisted before the next stage starts, so any
// instance sharing the repository can pick a thread up where another left it.
type Workflow struct {
	repo       model.ThreadRepository
	extractor  model.CriteriaExtractor
	discovery  *search.Discovery
	analysis   *places.Analysis
	decoration *vision.Decoration
	summarizer model.Summarizer
	maxResults int
}

func New(
	repo model.ThreadRepository,
	extractor model.CriteriaExtractor,
	discovery *search.Discovery,
	analysis *places.Analysis,
	decoration *vision.Decoration,
	summarizer model.Summarizer,
	cfg model.WorkflowConfig,
) *Workflow {
	maxResults := cfg.Discovery.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Workflow{
		repo:       repo,
		extractor:  extractor,
		discovery:  discovery,
		analysis:   analysis,
		decoration: decoration,
		summarizer: summarizer,
		maxResults: maxResults,
	}
}

// Invoke starts or continues a thread from conversation messages. The thread
// id is derived from the authenticated user and the request timestamp, so the
// same pair always lands on the same thread.
func (w *Workflow) Invoke(ctx context.Context, userID string, timestamp int64, messages []model.ChatMessage, decorate bool) (*Result, error) {
	threadID := model.NewThreadID(userID, timestamp)

	state, err := w.repo.GetThread(ctx, threadID)
	switch {
	case err == nil:
	case errors.Is(err, errx.ErrUnknownThread):
		now := time.Now().UTC()
		state = &model.ThreadState{
			ThreadID:  threadID,
			UserID:    userID,
			Stage:     model.StageAwaitingSearch,
			Decorate:  decorate,
			CreatedAt: now,
			UpdatedAt: now,
		}
	default:
		return nil, err
	}

	switch state.Stage {
	case model.StageAwaitingApproval:
		// Re-invoking a suspended thread re-presents the pending candidates.
		return w.interruptResult(ctx, state)
	case model.StageApprovedNonempty:
		// The approval decision is recorded but a previous run stopped
		// before the report. Finish the remaining stages; the thread must
		// never fall back to discovery once past the gate.
		return w.resumeApproved(ctx, state)
	case model.StageApprovedEmpty:
		// An all-rejected round was interrupted before its re-search
		// finished. Run it against the persisted criteria.
		return w.discoverAndSuspend(ctx, state)
	case model.StageCompleted:
		report, err := w.buildReport(ctx, state)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: ResultReport, ThreadID: threadID, Report: report}, nil
	}

	criteria, err := w.extractor.Extract(ctx, messages)
	if err != nil {
		if errors.Is(err, errx.ErrIncompleteCriteria) {
			// The clarification is conversational flow, not a failure.
			if saveErr := w.touch(ctx, state); saveErr != nil {
				return nil, saveErr
			}
			return messageResult(threadID, errx.MessageOf(err)), nil
		}
		return nil, err
	}
	if criteria.MaxResults <= 0 || criteria.MaxResults > w.maxResults {
		criteria.MaxResults = w.maxResults
	}
	state.Criteria = criteria
	if err := w.touch(ctx, state); err != nil {
		return nil, err
	}

	return w.discoverAndSuspend(ctx, state)
}

// Resume applies the user's approval decision to a suspended thread.
// An empty approval loops the thread back to discovery with the rejected
// listings excluded; a non-empty one drives the remaining stages through to
// the report.
func (w *Workflow) Resume(ctx context.Context, threadID string, approvedIDs []string) (*Result, error) {
	state, err := w.repo.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}

	if state.Stage == model.StageCompleted {
		report, err := w.buildReport(ctx, state)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: ResultReport, ThreadID: threadID, Report: report}, nil
	}
	if state.Stage != model.StageAwaitingApproval {
		return nil, errx.New(
			fmt.Errorf("thread %s is in stage %s", threadID, state.Stage),
			http.StatusConflict,
			"thread is not awaiting approval",
		)
	}

	pending := make(map[string]bool, len(state.CandidateIDs))
	for _, id := range state.CandidateIDs {
		pending[id] = true
	}
	for _, id := range approvedIDs {
		if !pending[id] {
			return nil, errx.New(
				fmt.Errorf("candidate %s is not pending approval in thread %s", id, threadID),
				http.StatusUnprocessableEntity,
				"approved id does not match any pending property",
			)
		}
	}

	approved := make(map[string]bool, len(approvedIDs))
	for _, id := range approvedIDs {
		approved[id] = true
	}
	var rejected []string
	for _, id := range state.CandidateIDs {
		if !approved[id] {
			rejected = append(rejected, id)
		}
	}

	decision := &model.ApprovalDecision{
		ThreadID:    threadID,
		ApprovedIDs: approvedIDs,
		RejectedIDs: rejected,
		DecidedAt:   time.Now().UTC(),
	}
	if err := w.repo.PutDecision(ctx, decision); err != nil {
		return nil, err
	}

	state.RejectedIDs = append(state.RejectedIDs, rejected...)

	if len(approvedIDs) == 0 {
		logx.Info().Str("thread_id", threadID).Int("rejected", len(rejected)).Msg("All candidates rejected, searching again")
		state.Stage = model.StageApprovedEmpty
		state.CandidateIDs = nil
		if err := w.touch(ctx, state); err != nil {
			return nil, err
		}
		return w.discoverAndSuspend(ctx, state)
	}

	state.Stage = model.StageApprovedNonempty
	if err := w.touch(ctx, state); err != nil {
		return nil, err
	}

	return w.completeApproved(ctx, state, approvedIDs)
}

// completeApproved drives an approved thread through analysis, optional
// decoration, and report compilation.
func (w *Workflow) completeApproved(ctx context.Context, state *model.ThreadState, approvedIDs []string) (*Result, error) {
	if err := w.analysis.Run(ctx, state, approvedIDs); err != nil {
		return nil, err
	}
	if state.Decorate {
		if err := w.decoration.Run(ctx, state, approvedIDs); err != nil {
			return nil, err
		}
	}

	state.Stage = model.StageCompleted
	if err := w.touch(ctx, state); err != nil {
		return nil, err
	}

	report, err := w.buildReport(ctx, state)
	if err != nil {
		return nil, err
	}
	return &Result{Kind: ResultReport, ThreadID: state.ThreadID, Report: report}, nil
}

// resumeApproved picks a thread back up from the persisted approval decision
// when a previous run stopped between the decision and the report.
func (w *Workflow) resumeApproved(ctx context.Context, state *model.ThreadState) (*Result, error) {
	decision, err := w.repo.GetDecision(ctx, state.ThreadID)
	if err != nil {
		return nil, err
	}
	if decision == nil || len(decision.ApprovedIDs) == 0 {
		return nil, errx.New(
			fmt.Errorf("thread %s is approved but has no decision record", state.ThreadID),
			http.StatusConflict,
			"thread approval record is missing",
		)
	}
	logx.Info().Str("thread_id", state.ThreadID).Int("approved", len(decision.ApprovedIDs)).Msg("Resuming interrupted analysis")
	return w.completeApproved(ctx, state, decision.ApprovedIDs)
}

// discoverAndSuspend runs discovery and, when it yields candidates, parks the
// thread at the approval gate.
func (w *Workflow) discoverAndSuspend(ctx context.Context, state *model.ThreadState) (*Result, error) {
	candidates, err := w.discovery.Run(ctx, state)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		state.Stage = model.StageAwaitingSearch
		if err := w.touch(ctx, state); err != nil {
			return nil, err
		}
		return messageResult(state.ThreadID,
			"I could not find any listings matching those criteria. Could you broaden the location or budget?"), nil
	}

	state.Stage = model.StageAwaitingApproval
	if err := w.touch(ctx, state); err != nil {
		return nil, err
	}
	return &Result{
		Kind:     ResultInterrupt,
		ThreadID: state.ThreadID,
		Interrupt: &InterruptPayload{
			Type:       InterruptType,
			ThreadID:   state.ThreadID,
			Properties: candidates,
		},
	}, nil
}

// interruptResult rebuilds the approval payload from persisted candidates.
func (w *Workflow) interruptResult(ctx context.Context, state *model.ThreadState) (*Result, error) {
	candidates := make([]*model.Candidate, 0, len(state.CandidateIDs))
	for _, id := range state.CandidateIDs {
		c, err := w.repo.GetCandidate(ctx, state.ThreadID, id)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return &Result{
		Kind:     ResultInterrupt,
		ThreadID: state.ThreadID,
		Interrupt: &InterruptPayload{
			Type:       InterruptType,
			ThreadID:   state.ThreadID,
			Properties: candidates,
		},
	}, nil
}

// buildReport loads the records of the latest approved round and compiles
// them. The optional summarizer rewrite runs afterward and is best effort.
func (w *Workflow) buildReport(ctx context.Context, state *model.ThreadState) (*model.Report, error) {
	decision, err := w.repo.GetDecision(ctx, state.ThreadID)
	if err != nil {
		return nil, err
	}
	if decision == nil {
		return nil, fmt.Errorf("thread %s completed without an approval decision", state.ThreadID)
	}

	candidates := make([]*model.Candidate, 0, len(decision.ApprovedIDs))
	analyses := make(map[string]*model.LocationAnalysis, len(decision.ApprovedIDs))
	var decorations map[string]*model.DecoratedImage
	if state.Decorate {
		decorations = make(map[string]*model.DecoratedImage, len(decision.ApprovedIDs))
	}

	for _, id := range decision.ApprovedIDs {
		c, err := w.repo.GetCandidate(ctx, state.ThreadID, id)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, c)

		a, err := w.repo.GetAnalysis(ctx, state.ThreadID, id)
		if err != nil {
			return nil, err
		}
		analyses[id] = a

		if state.Decorate {
			d, err := w.repo.GetDecoration(ctx, state.ThreadID, id)
			if err == nil {
				decorations[id] = d
			}
		}
	}

	report, err := CompileReport(*state.Criteria, candidates, analyses, decorations)
	if err != nil {
		return nil, err
	}

	if w.summarizer != nil {
		if summary, err := w.summarizer.Summarize(ctx, report); err == nil && summary != "" {
			report.Summary = summary
		} else if err != nil {
			logx.Warn().Err(err).Str("thread_id", state.ThreadID).Msg("summary model failed, keeping deterministic summary")
		}
	}
	return report, nil
}

// StateSnapshot is the externally visible view of a thread for /state.
type StateSnapshot struct {
	ThreadID     string                `json:"thread_id"`
	Stage        model.Stage           `json:"stage"`
	Criteria     *model.SearchCriteria `json:"criteria,omitempty"`
	CandidateIDs []string              `json:"candidate_ids,omitempty"`
	RejectedIDs  []string              `json:"rejected_ids,omitempty"`
	Failures     map[string]string     `json:"failures,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// State returns the snapshot for one thread.
func (w *Workflow) State(ctx context.Context, threadID string) (*StateSnapshot, error) {
	state, err := w.repo.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return &StateSnapshot{
		ThreadID:     state.ThreadID,
		Stage:        state.Stage,
		Criteria:     state.Criteria,
		CandidateIDs: state.CandidateIDs,
		RejectedIDs:  state.RejectedIDs,
		Failures:     state.Failures,
		CreatedAt:    state.CreatedAt,
		UpdatedAt:    state.UpdatedAt,
	}, nil
}

// Owner returns the user id that owns a thread, for the HTTP layer's
// ownership check.
func (w *Workflow) Owner(ctx context.Context, threadID string) (string, error) {
	state, err := w.repo.GetThread(ctx, threadID)
	if err != nil {
		return "", err
	}
	return state.UserID, nil
}

// Decoration returns the decorated image for one candidate of a thread.
func (w *Workflow) Decoration(ctx context.Context, threadID, candidateID string) (*model.DecoratedImage, error) {
	return w.repo.GetDecoration(ctx, threadID, candidateID)
}

func (w *Workflow) touch(ctx context.Context, state *model.ThreadState) error {
	state.UpdatedAt = time.Now().UTC()
	return w.repo.SaveThread(ctx, state)
}
