package model

// ================ Config ================

// WorkflowConfig controls thread lifecycle and stage behavior.
type WorkflowConfig struct {
	ThreadTTL string `envconfig:"THREAD_TTL" default:"168h"`
	Discovery struct {
		MaxResults int `envconfig:"DISCOVERY_MAX_RESULTS" default:"5"`
		MaxRetries int `envconfig:"DISCOVERY_MAX_RETRIES" default:"3"`
	}
	Analysis struct {
		Workers      int     `envconfig:"ANALYSIS_WORKERS" default:"4"`
		RadiusMeters float64 `envconfig:"ANALYSIS_RADIUS_METERS" default:"5000"`
		POIPerKind   int     `envconfig:"ANALYSIS_POI_PER_CATEGORY" default:"10"`
	}
}

// ExtractorModelConfig configures the criteria-extraction chat model.
type ExtractorModelConfig struct {
	Model       string  `envconfig:"EXTRACTOR_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"EXTRACTOR_MAX_TOKENS" default:"1024"`
	Temperature float32 `envconfig:"EXTRACTOR_TEMPERATURE" default:"0.1"`
}

// SummaryModelConfig configures the optional report-summary chat model.
type SummaryModelConfig struct {
	Enabled     bool    `envconfig:"SUMMARY_MODEL_ENABLED" default:"false"`
	Model       string  `envconfig:"SUMMARY_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"SUMMARY_MAX_TOKENS" default:"1024"`
	Temperature float32 `envconfig:"SUMMARY_TEMPERATURE" default:"0.4"`
}

// SearchAPIConfig configures the hosted web-search provider.
type SearchAPIConfig struct {
	APIKey      string  `envconfig:"TAVILY_API_KEY" required:"true"`
	BaseURL     string  `envconfig:"TAVILY_BASE_URL" default:"https://api.tavily.com"`
	SearchDepth string  `envconfig:"TAVILY_SEARCH_DEPTH" default:"advanced"`
	TimeoutSec  int     `envconfig:"TAVILY_TIMEOUT" default:"30"`
	RPS         float64 `envconfig:"TAVILY_RPS" default:"2"`
}

// PlacesAPIConfig configures the hosted places provider.
type PlacesAPIConfig struct {
	APIKey     string  `envconfig:"GOOGLE_MAPS_API_KEY" required:"true"`
	BaseURL    string  `envconfig:"PLACES_BASE_URL" default:"https://places.googleapis.com/v1"`
	RegionCode string  `envconfig:"PLACES_REGION_CODE"`
	TimeoutSec int     `envconfig:"PLACES_TIMEOUT" default:"10"`
	RPS        float64 `envconfig:"PLACES_RPS" default:"5"`
}

// DecorationConfig configures the themed image generation stage.
type DecorationConfig struct {
	AnalysisModel   string `envconfig:"DECOR_ANALYSIS_MODEL" default:"gemini-2.5-flash"`
	GenerationModel string `envconfig:"DECOR_GENERATION_MODEL" default:"gemini-2.5-flash-image"`
	FetchTimeoutSec int    `envconfig:"DECOR_FETCH_TIMEOUT" default:"15"`
	MaxImageBytes   int64  `envconfig:"DECOR_MAX_IMAGE_BYTES" default:"8388608"`
}

// AuthConfig configures bearer-credential verification. The subject claim of
// a verified token becomes the user id embedded in thread ids.
type AuthConfig struct {
	JWTSecret string `envconfig:"AUTH_JWT_SECRET" required:"true"`
	Issuer    string `envconfig:"AUTH_ISSUER"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host           string `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port           int    `envconfig:"SERVER_PORT" default:"8080"`
	GinMode        string `envconfig:"GIN_MODE" default:"release"`
	AllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}
