package search

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/estate-copilot/server/internal/copilot/model"
)

var (
	priceRe = regexp.MustCompile(`\$\s?([\d,]+(?:\.\d+)?)\s?([kKmM])?`)
	bedsRe  = regexp.MustCompile(`(?i)(\d+)\s*(?:bed(?:room)?s?|br|bd)\b`)
	bathsRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:bath(?:room)?s?|ba)\b`)
	sqftRe  = regexp.MustCompile(`(?i)([\d,]+)\s*(?:sq\.?\s?ft|sqft|square\s+feet)`)
)

var propertyTypeKeywords = []string{"house", "condo", "apartment", "townhouse", "duplex", "studio", "villa"}

// parseListing extracts a Candidate from one raw search result. The address
// comes from the result title; results whose title yields no address are
// rejected by the caller since location analysis needs one. Fields the text
// does not mention stay nil.
func parseListing(id string, r model.SearchResult, now time.Time) *model.Candidate {
	text := r.Title + " " + r.Content

	c := &model.Candidate{
		ID:           id,
		Address:      extractAddress(r.Title),
		ListingURL:   r.URL,
		ImageURLs:    r.Images,
		Description:  strings.TrimSpace(r.Content),
		DiscoveredAt: now,
	}

	if m := priceRe.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64); err == nil {
			switch strings.ToLower(m[2]) {
			case "k":
				v *= 1_000
			case "m":
				v *= 1_000_000
			}
			c.Price = &v
		}
	}
	if m := bedsRe.FindStringSubmatch(text); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil && v > 0 && v < 50 {
			c.Bedrooms = &v
		}
	}
	if m := bathsRe.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v > 0 && v < 50 {
			c.Bathrooms = &v
		}
	}
	if m := sqftRe.FindStringSubmatch(text); m != nil {
		if v, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", "")); err == nil && v > 0 {
			c.SquareFeet = &v
		}
	}
	lower := strings.ToLower(text)
	for _, t := range propertyTypeKeywords {
		if strings.Contains(lower, t) {
			pt := t
			c.PropertyType = &pt
			break
		}
	}
	return c
}

// extractAddress takes the leading segment of the listing title, which
// aggregator pages format as "123 Main St, Seattle, WA | Zillow".
func extractAddress(title string) string {
	addr := title
	for _, sep := range []string{"|", " - ", " – "} {
		if idx := strings.Index(addr, sep); idx > 0 {
			addr = addr[:idx]
		}
	}
	addr = strings.TrimSpace(addr)
	// A bare site name ("Zillow", "Homes for sale") is not an address.
	if addr == "" || !strings.ContainsAny(addr, "0123456789") {
		return ""
	}
	return addr
}
