package extract

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/estate-copilot/server/internal/copilot/model"
)

const summarySystemPrompt = `You summarize a property research report for the user.
Write 3-5 sentences: how many properties were found, the price range, and the
strongest location highlights and concerns from the analyses. Plain text only.`

// GeminiSummarizer rewrites the deterministic report summary with an LLM.
// Its output varies between runs; the workflow treats it as best-effort and
// keeps the deterministic summary on any failure.
type GeminiSummarizer struct {
	cm einomodel.BaseChatModel
}

func NewGeminiSummarizer(cm einomodel.BaseChatModel) *GeminiSummarizer {
	return &GeminiSummarizer{cm: cm}
}

func (s *GeminiSummarizer) Summarize(ctx context.Context, report *model.Report) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Criteria: %s (%s), %d properties.\n", report.Criteria.Location, report.Criteria.Purpose, len(report.Candidates))
	for _, c := range report.Candidates {
		fmt.Fprintf(&b, "- %s", c.Address)
		if c.Price != nil {
			fmt.Fprintf(&b, ", $%.0f", *c.Price)
		}
		if a, ok := report.Analyses[c.ID]; ok && !a.Failed {
			fmt.Fprintf(&b, "; pros: %s; cons: %s", strings.Join(a.Pros, " / "), strings.Join(a.Cons, " / "))
		}
		b.WriteString("\n")
	}

	out, err := s.cm.Generate(ctx, []*schema.Message{
		schema.SystemMessage(summarySystemPrompt),
		schema.UserMessage(b.String()),
	})
	if err != nil {
		return "", fmt.Errorf("summary call: %w", err)
	}
	if out == nil || strings.TrimSpace(out.Content) == "" {
		return "", fmt.Errorf("summary: empty model response")
	}
	return strings.TrimSpace(out.Content), nil
}

var _ model.Summarizer = (*GeminiSummarizer)(nil)
