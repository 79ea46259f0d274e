package observe

import (
	"context"
	"strings"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	logx "github.com/estate-copilot/server/pkg/logger"
)

// NewCallbacks aggregates the model and prompt observers into one
// callbacks.Handler. Registered globally in main so every chat-model call
// (criteria extraction, summary) reports its token usage and cost.
func NewCallbacks() einocb.Handler {
	return callbackHelper.NewHandlerHelper().
		ChatModel(newModelHandler()).
		Prompt(newPromptHandler()).
		Handler()
}

// newModelHandler logs model call lifecycle with token usage and USD cost.
func newModelHandler() *callbackHelper.ModelCallbackHandler {
	return &callbackHelper.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *model.CallbackInput) context.Context {
			evt := logx.Debug().Str("component", info.Name)
			if input != nil {
				evt = evt.Int("messages", len(input.Messages))
				if input.Config != nil {
					evt = evt.Str("model", input.Config.Model)
				}
			}
			evt.Msg("model call started")
			return ctx
		},
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *model.CallbackOutput) context.Context {
			evt := logx.Info().Str("component", info.Name)
			if output != nil && output.TokenUsage != nil {
				usage := &schema.TokenUsage{
					PromptTokens:     output.TokenUsage.PromptTokens,
					CompletionTokens: output.TokenUsage.CompletionTokens,
					TotalTokens:      output.TokenUsage.TotalTokens,
				}
				modelName := ""
				if output.Config != nil {
					modelName = output.Config.Model
				}
				_, _, total := ComputeCost(usage, ResolvePricing(modelName))
				evt = evt.
					Str("model", modelName).
					Int("prompt_tokens", output.TokenUsage.PromptTokens).
					Int("completion_tokens", output.TokenUsage.CompletionTokens).
					Float64("cost_usd", total)
			}
			evt.Msg("model call finished")
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			logx.Error().Err(err).Str("component", info.Name).Msg("model call failed")
			return ctx
		},
	}
}

// newPromptHandler logs rendered prompt sizes at debug level.
func newPromptHandler() *callbackHelper.PromptCallbackHandler {
	return &callbackHelper.PromptCallbackHandler{
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *prompt.CallbackOutput) context.Context {
			if output != nil && len(output.Result) > 0 && output.Result[0] != nil {
				logx.Debug().
					Str("component", info.Name).
					Int("rendered_len", len(strings.TrimSpace(output.Result[0].Content))).
					Msg("prompt rendered")
			}
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			logx.Error().Err(err).Str("component", info.Name).Msg("prompt render failed")
			return ctx
		},
	}
}
