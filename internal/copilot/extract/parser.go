package extract

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/estate-copilot/server/internal/copilot/model"
	errx "github.com/estate-copilot/server/internal/core/error"
)

// basic safety limits to avoid pathological model output
const (
	maxResponseLen      = 32 * 1024
	defaultReprompt     = "Could you tell me where you are looking and whether you want to rent or buy?"
	maxClarificationLen = 500
)

type criteriaPayload struct {
	Location      string   `json:"location"`
	Purpose       string   `json:"purpose"`
	MinPrice      *float64 `json:"min_price"`
	MaxPrice      *float64 `json:"max_price"`
	MinBedrooms   *int     `json:"min_bedrooms"`
	MaxBedrooms   *int     `json:"max_bedrooms"`
	MinBathrooms  *float64 `json:"min_bathrooms"`
	PropertyTypes []string `json:"property_types"`
	MaxResults    int      `json:"max_results"`
}

type extractorResponse struct {
	Criteria      *criteriaPayload `json:"criteria"`
	Clarification string           `json:"clarification"`
}

// ParseCriteriaResponse parses the extractor model's JSON output. Markdown
// fences and surrounding prose are tolerated. A clarification response, or a
// criteria object missing required fields, comes back as
// errx.ErrIncompleteCriteria with the re-prompt as its message.
func ParseCriteriaResponse(content string, defaultMaxResults int) (*model.SearchCriteria, error) {
	content = truncateOnRune(content, maxResponseLen)

	raw := extractJSONObject(content)
	if raw == "" {
		return nil, fmt.Errorf("criteria response contains no JSON object")
	}

	var resp extractorResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("unmarshal criteria response: %w", err)
	}

	if resp.Criteria == nil {
		msg := strings.TrimSpace(resp.Clarification)
		if msg == "" {
			msg = defaultReprompt
		}
		msg = truncateOnRune(msg, maxClarificationLen)
		return nil, errx.IncompleteCriteria(msg)
	}

	c := &model.SearchCriteria{
		Location:      strings.TrimSpace(resp.Criteria.Location),
		Purpose:       model.ParsePurpose(resp.Criteria.Purpose),
		MinPrice:      resp.Criteria.MinPrice,
		MaxPrice:      resp.Criteria.MaxPrice,
		MinBedrooms:   resp.Criteria.MinBedrooms,
		MaxBedrooms:   resp.Criteria.MaxBedrooms,
		MinBathrooms:  resp.Criteria.MinBathrooms,
		PropertyTypes: normalizeTypes(resp.Criteria.PropertyTypes),
		MaxResults:    clampMaxResults(resp.Criteria.MaxResults, defaultMaxResults),
	}

	if !c.Complete() {
		return nil, errx.IncompleteCriteria(fmt.Sprintf(
			"I still need your %s to search. %s",
			strings.Join(c.MissingFields(), " and "), defaultReprompt))
	}
	return c, nil
}

// truncateOnRune caps s at limit bytes, backing up so a multi-byte rune is
// never split.
func truncateOnRune(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

func clampMaxResults(v, def int) int {
	if v <= 0 {
		return def
	}
	if v > maxResultsCap {
		return maxResultsCap
	}
	return v
}

func normalizeTypes(types []string) []string {
	out := make([]string, 0, len(types))
	seen := make(map[string]bool, len(types))
	for _, t := range types {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// extractJSONObject pulls the first balanced JSON object out of text that may
// wrap it in markdown fences or prose.
func extractJSONObject(input string) string {
	if fenced := stripMarkdownFence(input); fenced != "" {
		input = fenced
	}
	start := strings.Index(input, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escape := false
	for i := start; i < len(input); i++ {
		ch := input[i]
		if escape {
			escape = false
			continue
		}
		switch ch {
		case '\\':
			escape = true
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return input[start : i+1]
				}
			}
		}
	}
	return ""
}

func stripMarkdownFence(input string) string {
	idx := strings.Index(input, "```")
	if idx < 0 {
		return ""
	}
	rest := input[idx+3:]
	rest = strings.TrimPrefix(rest, "json")
	end := strings.Index(rest, "```")
	if end < 0 {
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(rest[:end])
}
