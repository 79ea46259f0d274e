package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/estate-copilot/server/internal/copilot/model"
	errx "github.com/estate-copilot/server/internal/core/error"
)

const analyzePrompt = `You are looking at a real-estate listing photo.
Respond with a single JSON object, no markdown fence:
{"room_type": "<living room|bedroom|kitchen|bathroom|exterior|other>",
 "opportunities": ["<short phrase naming a spot that could hold Halloween decoration>", ...]}
List at most 4 opportunities.`

const decoratePromptFmt = `Redecorate this %s photo with tasteful Halloween decorations: %s.
Keep the room layout, lighting and architecture exactly as in the original photo.
Generate the decorated image.`

// GeminiVision analyzes listing photos and generates Halloween-decorated
// variants through the Gemini API. Image downloads are capped so a hostile
// listing page cannot feed the service an unbounded body.
type GeminiVision struct {
	client          *genai.Client
	analysisModel   string
	generationModel string
	httpClient      *http.Client
	maxImageBytes   int64
}

func NewGeminiVision(client *genai.Client, cfg model.DecorationConfig) *GeminiVision {
	timeout := time.Duration(cfg.FetchTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxBytes := cfg.MaxImageBytes
	if maxBytes <= 0 {
		maxBytes = 8 << 20
	}
	return &GeminiVision{
		client:          client,
		analysisModel:   cfg.AnalysisModel,
		generationModel: cfg.GenerationModel,
		httpClient:      &http.Client{Timeout: timeout},
		maxImageBytes:   maxBytes,
	}
}

// fetchImage downloads a listing photo and returns its bytes with the served
// MIME type.
func (v *GeminiVision) fetchImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build image request: %w", err)
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, v.maxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read image body: %w", err)
	}
	if int64(len(data)) > v.maxImageBytes {
		return nil, "", fmt.Errorf("image exceeds %d bytes", v.maxImageBytes)
	}

	mime := resp.Header.Get("Content-Type")
	if idx := strings.Index(mime, ";"); idx > 0 {
		mime = mime[:idx]
	}
	if !strings.HasPrefix(mime, "image/") {
		mime = http.DetectContentType(data)
	}
	return data, mime, nil
}

// AnalyzeImage asks the vision model what room the photo shows and where
// decoration could go.
func (v *GeminiVision) AnalyzeImage(ctx context.Context, imageURL string) (*model.ImageAnalysis, error) {
	data, mime, err := v.fetchImage(ctx, imageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errx.ErrDecoration, err)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(analyzePrompt),
			genai.NewPartFromBytes(data, mime),
		}, genai.RoleUser),
	}
	resp, err := v.client.Models.GenerateContent(ctx, v.analysisModel, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: analyze image: %w", errx.ErrDecoration, err)
	}

	text := firstText(resp)
	if text == "" {
		return nil, fmt.Errorf("%w: analysis model returned no text", errx.ErrDecoration)
	}

	var analysis model.ImageAnalysis
	if err := json.Unmarshal([]byte(stripFence(text)), &analysis); err != nil {
		return nil, fmt.Errorf("%w: decode analysis: %w", errx.ErrDecoration, err)
	}
	if analysis.RoomType == "" {
		analysis.RoomType = "other"
	}
	return &analysis, nil
}

// DecorateImage generates the Halloween variant of the photo using the
// opportunities the analysis found.
func (v *GeminiVision) DecorateImage(ctx context.Context, imageURL string, analysis *model.ImageAnalysis) (*model.DecoratedImage, error) {
	data, mime, err := v.fetchImage(ctx, imageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errx.ErrDecoration, err)
	}

	spots := "the most natural spots"
	if analysis != nil && len(analysis.Opportunities) > 0 {
		spots = strings.Join(analysis.Opportunities, ", ")
	}
	roomType := "room"
	if analysis != nil && analysis.RoomType != "" {
		roomType = analysis.RoomType
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(fmt.Sprintf(decoratePromptFmt, roomType, spots)),
			genai.NewPartFromBytes(data, mime),
		}, genai.RoleUser),
	}
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	}
	resp, err := v.client.Models.GenerateContent(ctx, v.generationModel, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: generate image: %w", errx.ErrDecoration, err)
	}

	decorated := &model.DecoratedImage{
		SourceURL:   imageURL,
		Description: firstText(resp),
		GeneratedAt: time.Now().UTC(),
	}
	if part := firstInlineImage(resp); part != nil {
		decorated.ImageData = part.Data
		decorated.MIMEType = part.MIMEType
	}
	if len(decorated.ImageData) == 0 {
		return nil, fmt.Errorf("%w: generation model returned no image", errx.ErrDecoration)
	}
	return decorated, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if p.Text != "" {
				return strings.TrimSpace(p.Text)
			}
		}
	}
	return ""
}

func firstInlineImage(resp *genai.GenerateContentResponse) *genai.Blob {
	if resp == nil {
		return nil
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if p.InlineData != nil && len(p.InlineData.Data) > 0 {
				return p.InlineData
			}
		}
	}
	return nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}

var _ model.VisionProvider = (*GeminiVision)(nil)
