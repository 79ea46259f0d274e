package extract

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"google.golang.org/genai"

	"github.com/estate-copilot/server/internal/copilot/model"
	logx "github.com/estate-copilot/server/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation.
type ChatModelConfig struct {
	APIKey    string
	BaseURL   string
	Extractor *model.ExtractorModelConfig
	Summary   *model.SummaryModelConfig
}

// ChatModels holds the extraction and summary chat models plus the shared
// genai client, which the decoration stage reuses for image generation.
type ChatModels struct {
	Extractor *gemini.ChatModel
	Summary   *gemini.ChatModel
	Client    *genai.Client
}

// NewChatModels creates the Gemini chat models with a shared client.
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	extractorModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.Extractor.Model,
		Temperature: &config.Extractor.Temperature,
		MaxTokens:   &config.Extractor.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating extractor model")
		return nil, fmt.Errorf("error creating extractor model: %w", err)
	}

	cms := &ChatModels{
		Extractor: extractorModel,
		Client:    client,
	}

	if config.Summary != nil && config.Summary.Enabled {
		summaryModel, err := gemini.NewChatModel(ctx, &gemini.Config{
			Client:      client,
			Model:       config.Summary.Model,
			Temperature: &config.Summary.Temperature,
			MaxTokens:   &config.Summary.MaxTokens,
		})
		if err != nil {
			logx.Error().Err(err).Msg("Error creating summary model")
			return nil, fmt.Errorf("error creating summary model: %w", err)
		}
		cms.Summary = summaryModel
	}

	return cms, nil
}
