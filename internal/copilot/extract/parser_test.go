package extract

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estate-copilot/server/internal/copilot/model"
	errx "github.com/estate-copilot/server/internal/core/error"
)

func TestParseCriteriaResponseComplete(t *testing.T) {
	content := `{"criteria": {"location": "Seattle, WA", "purpose": "sale",
		"max_price": 800000, "min_bedrooms": 3, "property_types": ["House", "condo", "house"]}}`

	c, err := ParseCriteriaResponse(content, 5)
	require.NoError(t, err)
	assert.Equal(t, "Seattle, WA", c.Location)
	assert.Equal(t, model.PurposeSale, c.Purpose)
	require.NotNil(t, c.MaxPrice)
	assert.Equal(t, 800000.0, *c.MaxPrice)
	require.NotNil(t, c.MinBedrooms)
	assert.Equal(t, 3, *c.MinBedrooms)
	assert.Equal(t, []string{"house", "condo"}, c.PropertyTypes)
	assert.Equal(t, 5, c.MaxResults)
}

func TestParseCriteriaResponseMarkdownFence(t *testing.T) {
	content := "Here you go:\n```json\n{\"criteria\": {\"location\": \"Austin\", \"purpose\": \"rent\"}}\n```"

	c, err := ParseCriteriaResponse(content, 5)
	require.NoError(t, err)
	assert.Equal(t, "Austin", c.Location)
	assert.Equal(t, model.PurposeRent, c.Purpose)
}

func TestParseCriteriaResponseClarification(t *testing.T) {
	content := `{"clarification": "Which city are you interested in?"}`

	_, err := ParseCriteriaResponse(content, 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errx.ErrIncompleteCriteria))
	assert.Equal(t, "Which city are you interested in?", errx.MessageOf(err))
}

func TestParseCriteriaResponseMissingPurpose(t *testing.T) {
	content := `{"criteria": {"location": "Denver"}}`

	_, err := ParseCriteriaResponse(content, 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errx.ErrIncompleteCriteria))
	assert.Contains(t, errx.MessageOf(err), "purpose")
}

func TestParseCriteriaResponseUnknownPurposeIsIncomplete(t *testing.T) {
	content := `{"criteria": {"location": "Denver", "purpose": "lease-to-own"}}`

	_, err := ParseCriteriaResponse(content, 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errx.ErrIncompleteCriteria))
}

func TestParseCriteriaResponseClampsMaxResults(t *testing.T) {
	content := `{"criteria": {"location": "Miami", "purpose": "shortlet", "max_results": 500}}`

	c, err := ParseCriteriaResponse(content, 5)
	require.NoError(t, err)
	assert.Equal(t, maxResultsCap, c.MaxResults)
}

func TestParseCriteriaResponseLongClarificationStaysValidUTF8(t *testing.T) {
	// 3 bytes per rune, 600 bytes total, so the cap falls mid-rune unless
	// truncation respects rune boundaries.
	long := strings.Repeat("桜", 200)
	content := `{"clarification": "` + long + `"}`

	_, err := ParseCriteriaResponse(content, 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errx.ErrIncompleteCriteria))

	msg := errx.MessageOf(err)
	assert.LessOrEqual(t, len(msg), maxClarificationLen)
	assert.True(t, utf8.ValidString(msg))
}

func TestParseCriteriaResponseNoJSON(t *testing.T) {
	_, err := ParseCriteriaResponse("sorry, I could not help with that", 5)
	require.Error(t, err)
	assert.False(t, errors.Is(err, errx.ErrIncompleteCriteria))
}

func TestBuildConversationContext(t *testing.T) {
	got := buildConversationContext([]model.ChatMessage{
		{Role: "user", Content: "3 bedroom house in Seattle under $800k"},
		{Role: "assistant", Content: "Are you buying or renting?"},
		{Role: "user", Content: "buying"},
		{Role: "system", Content: "ignored"},
	})
	assert.Contains(t, got, "UserMessage(3 bedroom house in Seattle under $800k)")
	assert.Contains(t, got, "AssistantMessage(Are you buying or renting?)")
	assert.NotContains(t, got, "ignored")
}
