package main

import (
	"context"
	"fmt"
	"log"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/estate-copilot/server/internal/copilot/extract"
	"github.com/estate-copilot/server/internal/copilot/model"
	"github.com/estate-copilot/server/internal/copilot/observe"
	"github.com/estate-copilot/server/internal/copilot/places"
	"github.com/estate-copilot/server/internal/copilot/repo"
	"github.com/estate-copilot/server/internal/copilot/search"
	"github.com/estate-copilot/server/internal/copilot/vision"
	"github.com/estate-copilot/server/internal/copilot/workflow"
	"github.com/estate-copilot/server/internal/core"
	"github.com/estate-copilot/server/internal/server"
	logx "github.com/estate-copilot/server/pkg/logger"
	pkgredis "github.com/estate-copilot/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the service, sourced from
// environment variables (loaded from .env for local runs).
type AppConfig struct {
	// Infrastructure
	Env    string `envconfig:"APP_ENV" default:"development"`
	Redis  pkgredis.Config
	Server model.ServerConfig
	Auth   model.AuthConfig

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Workflow configs
	Workflow   model.WorkflowConfig
	Extractor  model.ExtractorModelConfig
	Summary    model.SummaryModelConfig
	Search     model.SearchAPIConfig
	Places     model.PlacesAPIConfig
	Decoration model.DecorationConfig
}

func main() {
	ctx := context.Background()

	// Load .env file
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Load structured config from env
	var envCfg AppConfig
	if err := envconfig.Process("", &envCfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(envCfg.Env)})
	einocb.AppendGlobalHandlers(observe.NewCallbacks())

	rdb, err := envCfg.Redis.New()
	if err != nil {
		log.Fatalf("Failed to initialise Redis client: %v", err)
	}
	defer rdb.Close()

	ttl, err := time.ParseDuration(envCfg.Workflow.ThreadTTL)
	if err != nil {
		log.Fatalf("Invalid THREAD_TTL '%s': %v", envCfg.Workflow.ThreadTTL, err)
	}
	threadRepo := repo.NewRedisThreadRepository(rdb, ttl)

	chatModels, err := extract.NewChatModels(ctx, extract.ChatModelConfig{
		APIKey:    envCfg.APIKey,
		BaseURL:   envCfg.BaseURL,
		Extractor: &envCfg.Extractor,
		Summary:   &envCfg.Summary,
	})
	if err != nil {
		log.Fatalf("Failed to create chat models: %v", err)
	}

	extractor := extract.NewGeminiExtractor(chatModels.Extractor, envCfg.Workflow.Discovery.MaxResults)
	var summarizer model.Summarizer
	if chatModels.Summary != nil {
		summarizer = extract.NewGeminiSummarizer(chatModels.Summary)
	}

	discovery := search.NewDiscovery(
		search.NewTavilyClient(envCfg.Search),
		threadRepo,
		envCfg.Workflow.Discovery.MaxRetries,
	)
	analysis := places.NewAnalysis(places.NewGoogleClient(envCfg.Places), threadRepo, envCfg.Workflow)
	decoration := vision.NewDecoration(vision.NewGeminiVision(chatModels.Client, envCfg.Decoration), threadRepo)

	wf := workflow.New(threadRepo, extractor, discovery, analysis, decoration, summarizer, envCfg.Workflow)

	router := server.NewRouter(server.NewHandler(wf), envCfg.Server, envCfg.Auth)
	addr := fmt.Sprintf("%s:%d", envCfg.Server.Host, envCfg.Server.Port)
	log.Printf("Listening on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
