package extract

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/estate-copilot/server/internal/copilot/model"
	logx "github.com/estate-copilot/server/pkg/logger"
)

//go:embed template/criteria_prompt.txt
var criteriaSystemPrompt string

const maxResultsCap = 10

// GeminiExtractor turns the conversation into a SearchCriteria record with a
// single chat-model call. It never guesses required fields: when the model
// asks for clarification, Extract returns errx.ErrIncompleteCriteria carrying
// the re-prompt.
type GeminiExtractor struct {
	cm                einomodel.BaseChatModel
	defaultMaxResults int
}

func NewGeminiExtractor(cm einomodel.BaseChatModel, defaultMaxResults int) *GeminiExtractor {
	if defaultMaxResults <= 0 || defaultMaxResults > maxResultsCap {
		defaultMaxResults = 5
	}
	return &GeminiExtractor{cm: cm, defaultMaxResults: defaultMaxResults}
}

// renderSystemPrompt renders the criteria prompt via the Eino prompt
// component so prompt callbacks fire.
func (e *GeminiExtractor) renderSystemPrompt(ctx context.Context) (string, error) {
	content := strings.NewReplacer(
		"{default_max_results}", strconv.Itoa(e.defaultMaxResults),
		"{max_results_cap}", strconv.Itoa(maxResultsCap),
	).Replace(criteriaSystemPrompt)

	tpl := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("system_messages", false),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"system_messages": []*schema.Message{schema.SystemMessage(content)},
	})
	if err != nil {
		return "", fmt.Errorf("criteria prompt callbacks: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("criteria prompt callbacks: empty result")
	}
	return msgs[0].Content, nil
}

// buildConversationContext flattens the /invoke messages into the tagged
// transcript the prompt expects.
func buildConversationContext(messages []model.ChatMessage) string {
	var b strings.Builder
	b.WriteString("<conversation>\n")
	for _, msg := range messages {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		switch strings.ToLower(msg.Role) {
		case "user":
			b.WriteString("UserMessage(" + content + ")\n")
		case "assistant":
			b.WriteString("AssistantMessage(" + content + ")\n")
		}
	}
	b.WriteString("</conversation>")
	return b.String()
}

func (e *GeminiExtractor) Extract(ctx context.Context, messages []model.ChatMessage) (*model.SearchCriteria, error) {
	systemPrompt, err := e.renderSystemPrompt(ctx)
	if err != nil {
		return nil, err
	}

	out, err := e.cm.Generate(ctx, []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(buildConversationContext(messages)),
	})
	if err != nil {
		return nil, fmt.Errorf("criteria extraction call: %w", err)
	}
	if out == nil || strings.TrimSpace(out.Content) == "" {
		return nil, fmt.Errorf("criteria extraction: empty model response")
	}

	criteria, err := ParseCriteriaResponse(out.Content, e.defaultMaxResults)
	if err != nil {
		return nil, err
	}

	logx.Debug().
		Str("location", criteria.Location).
		Str("purpose", string(criteria.Purpose)).
		Int("max_results", criteria.MaxResults).
		Msg("Extracted search criteria")
	return criteria, nil
}

var _ model.CriteriaExtractor = (*GeminiExtractor)(nil)
