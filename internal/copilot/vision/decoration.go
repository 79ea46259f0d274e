package vision

import (
	"context"
	"fmt"
	"time"

	"github.com/estate-copilot/server/internal/copilot/model"
	logx "github.com/estate-copilot/server/pkg/logger"
)

// Decoration runs the optional Halloween decoration stage over approved
// candidates. It is strictly best effort: any failure is recorded on the
// candidate's decoration record and the report is compiled without it. At most
// one image per candidate is decorated, using the listing's first usable
// photo.
type Decoration struct {
	provider model.VisionProvider
	repo     model.ThreadRepository
}

func NewDecoration(provider model.VisionProvider, repo model.ThreadRepository) *Decoration {
	return &Decoration{provider: provider, repo: repo}
}

// Run decorates each approved candidate's first photo sequentially. Image
// generation is the slowest and most quota-bound stage, so it is not worth
// parallelizing.
func (d *Decoration) Run(ctx context.Context, state *model.ThreadState, approvedIDs []string) error {
	logx.Info().Str("thread_id", state.ThreadID).Int("candidates", len(approvedIDs)).Msg("Decorating listing photos")

	for _, id := range approvedIDs {
		record := d.decorateOne(ctx, state.ThreadID, id)
		record.CandidateID = id
		if record.Failed {
			logx.Warn().
				Str("thread_id", state.ThreadID).
				Str("candidate_id", id).
				Str("reason", record.FailureReason).
				Msg("decoration failed for candidate")
			state.RecordFailure(id, record.FailureReason)
		}
		if err := d.repo.PutDecoration(ctx, state.ThreadID, record); err != nil {
			return err
		}
	}
	return d.repo.SaveThread(ctx, state)
}

func (d *Decoration) decorateOne(ctx context.Context, threadID, candidateID string) *model.DecoratedImage {
	now := time.Now().UTC()

	candidate, err := d.repo.GetCandidate(ctx, threadID, candidateID)
	if err != nil {
		return failedDecoration(fmt.Sprintf("load candidate: %v", err), now)
	}

	imageURL := candidate.FirstImageURL()
	if imageURL == "" {
		return failedDecoration("listing has no images", now)
	}

	analysis, err := d.provider.AnalyzeImage(ctx, imageURL)
	if err != nil {
		// Generation can still work without the analysis hints.
		logx.Debug().Err(err).Str("candidate_id", candidateID).Msg("image analysis failed, decorating blind")
		analysis = nil
	}

	decorated, err := d.provider.DecorateImage(ctx, imageURL, analysis)
	if err != nil {
		return failedDecoration(err.Error(), now)
	}
	return decorated
}

func failedDecoration(reason string, at time.Time) *model.DecoratedImage {
	return &model.DecoratedImage{
		Failed:        true,
		FailureReason: reason,
		GeneratedAt:   at,
	}
}
