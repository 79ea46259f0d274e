package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estate-copilot/server/internal/copilot/model"
	"github.com/estate-copilot/server/internal/copilot/places"
	"github.com/estate-copilot/server/internal/copilot/repo"
	"github.com/estate-copilot/server/internal/copilot/search"
	"github.com/estate-copilot/server/internal/copilot/vision"
	"github.com/estate-copilot/server/internal/copilot/workflow"
)

const testSecret = "handler-test-secret"

type fixedExtractor struct{ criteria model.SearchCriteria }

func (f fixedExtractor) Extract(context.Context, []model.ChatMessage) (*model.SearchCriteria, error) {
	cp := f.criteria
	return &cp, nil
}

type fixedSearcher struct{}

func (fixedSearcher) Search(context.Context, string, int) ([]model.SearchResult, error) {
	return []model.SearchResult{
		{
			Title:   "300 Maple Dr, Seattle, WA | Zillow",
			URL:     "https://example.com/listing/300",
			Content: "House with 3 beds for $700,000.",
			Images:  []string{"https://example.com/photo/300.jpg"},
		},
	}, nil
}

type fixedPlaces struct{}

func (fixedPlaces) Geocode(_ context.Context, address, _ string) (*model.GeocodeResult, error) {
	return &model.GeocodeResult{Latitude: 47.6, Longitude: -122.3, FormattedAddress: address}, nil
}

func (fixedPlaces) Nearby(context.Context, float64, float64, string, float64, int) ([]model.PointOfInterest, error) {
	return []model.PointOfInterest{{Name: "Hill Park", Category: "park", DistanceMeters: 200}}, nil
}

type fixedVision struct{}

func (fixedVision) AnalyzeImage(context.Context, string) (*model.ImageAnalysis, error) {
	return &model.ImageAnalysis{RoomType: "exterior"}, nil
}

func (fixedVision) DecorateImage(_ context.Context, imageURL string, _ *model.ImageAnalysis) (*model.DecoratedImage, error) {
	return &model.DecoratedImage{SourceURL: imageURL, ImageData: []byte("img"), MIMEType: "image/png"}, nil
}

func newTestServer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := repo.NewMemoryThreadRepository()
	cfg := model.WorkflowConfig{}
	cfg.Discovery.MaxResults = 3
	cfg.Analysis.Workers = 2
	cfg.Analysis.RadiusMeters = 5000
	cfg.Analysis.POIPerKind = 5

	wf := workflow.New(
		r,
		fixedExtractor{criteria: model.SearchCriteria{Location: "Seattle, WA", Purpose: model.PurposeSale, MaxResults: 3}},
		search.NewDiscovery(fixedSearcher{}, r, 1),
		places.NewAnalysis(fixedPlaces{}, r, cfg),
		vision.NewDecoration(fixedVision{}, r),
		nil,
		cfg,
	)

	return NewRouter(
		NewHandler(wf),
		model.ServerConfig{GinMode: gin.TestMode, AllowedOrigins: "http://localhost:3000"},
		model.AuthConfig{JWTSecret: testSecret},
	)
}

func bearer(t *testing.T, subject string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

func doJSON(r *gin.Engine, method, path, auth string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func invokeThread(t *testing.T, r *gin.Engine, auth string, decorate bool) *workflow.Result {
	t.Helper()
	w := doJSON(r, http.MethodPost, "/invoke", auth, gin.H{
		"timestamp": 1700000000,
		"messages":  []gin.H{{"role": "user", "content": "3 bed house in Seattle, buying"}},
		"decorate":  decorate,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result workflow.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	return &result
}

func TestHealthEndpointUnauthenticated(t *testing.T) {
	r := newTestServer(t)
	w := doJSON(r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestInvokeRequiresAuth(t *testing.T) {
	r := newTestServer(t)
	w := doJSON(r, http.MethodPost, "/invoke", "", gin.H{"timestamp": 1, "messages": []gin.H{{"role": "user", "content": "hi"}}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestInvokeReturnsInterrupt(t *testing.T) {
	r := newTestServer(t)

	result := invokeThread(t, r, bearer(t, "user1"), false)
	assert.Equal(t, workflow.ResultInterrupt, result.Kind)
	require.NotNil(t, result.Interrupt)
	assert.Equal(t, workflow.InterruptType, result.Interrupt.Type)
	require.Len(t, result.Interrupt.Properties, 1)
	assert.Equal(t, "user1-1700000000", result.ThreadID)
}

func TestResumeDrivesToReport(t *testing.T) {
	r := newTestServer(t)
	auth := bearer(t, "user1")

	invoked := invokeThread(t, r, auth, false)
	propID := invoked.Interrupt.Properties[0].ID

	w := doJSON(r, http.MethodPost, "/resume", auth, gin.H{
		"thread_id":    invoked.ThreadID,
		"approved_properties": []string{propID},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result workflow.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, workflow.ResultReport, result.Kind)
	require.NotNil(t, result.Report)
	assert.Len(t, result.Report.Candidates, 1)
}

func TestResumeUnknownThreadReturns404(t *testing.T) {
	r := newTestServer(t)
	w := doJSON(r, http.MethodPost, "/resume", bearer(t, "user1"), gin.H{
		"thread_id":    "ghost-1",
		"approved_properties": []string{},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResumeForeignThreadReturns403(t *testing.T) {
	r := newTestServer(t)

	invoked := invokeThread(t, r, bearer(t, "user1"), false)

	w := doJSON(r, http.MethodPost, "/resume", bearer(t, "intruder"), gin.H{
		"thread_id":    invoked.ThreadID,
		"approved_properties": []string{},
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestStateEndpoint(t *testing.T) {
	r := newTestServer(t)
	auth := bearer(t, "user1")

	invoked := invokeThread(t, r, auth, false)

	w := doJSON(r, http.MethodGet, "/state?thread_id="+invoked.ThreadID, auth, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var snap workflow.StateSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, model.StageAwaitingApproval, snap.Stage)
	assert.Len(t, snap.CandidateIDs, 1)
}

func TestDecoratedImageEndpoint(t *testing.T) {
	r := newTestServer(t)
	auth := bearer(t, "user1")

	invoked := invokeThread(t, r, auth, true)
	propID := invoked.Interrupt.Properties[0].ID

	w := doJSON(r, http.MethodPost, "/resume", auth, gin.H{
		"thread_id":    invoked.ThreadID,
		"approved_properties": []string{propID},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	path := fmt.Sprintf("/decorated-image/%s?thread_id=%s", propID, invoked.ThreadID)
	img := doJSON(r, http.MethodGet, path, auth, nil)
	require.Equal(t, http.StatusOK, img.Code)
	assert.Equal(t, "image/png", img.Header().Get("Content-Type"))
	assert.Equal(t, "img", img.Body.String())

	missing := doJSON(r, http.MethodGet, "/decorated-image/prop_none?thread_id="+invoked.ThreadID, auth, nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)
}
