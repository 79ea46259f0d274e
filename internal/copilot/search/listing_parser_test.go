package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estate-copilot/server/internal/copilot/model"
)

func TestParseListingExtractsFields(t *testing.T) {
	now := time.Now().UTC()
	r := model.SearchResult{
		Title:   "742 Evergreen Terrace, Springfield, OR | Zillow",
		URL:     "https://example.com/listing/742",
		Content: "Charming house with 3 beds, 2.5 baths and 1,850 sqft. Listed at $725,000.",
		Images:  []string{"https://example.com/photo1.jpg"},
	}

	c := parseListing("prop_abc123def456", r, now)
	assert.Equal(t, "prop_abc123def456", c.ID)
	assert.Equal(t, "742 Evergreen Terrace, Springfield, OR", c.Address)
	require.NotNil(t, c.Price)
	assert.Equal(t, 725000.0, *c.Price)
	require.NotNil(t, c.Bedrooms)
	assert.Equal(t, 3, *c.Bedrooms)
	require.NotNil(t, c.Bathrooms)
	assert.Equal(t, 2.5, *c.Bathrooms)
	require.NotNil(t, c.SquareFeet)
	assert.Equal(t, 1850, *c.SquareFeet)
	require.NotNil(t, c.PropertyType)
	assert.Equal(t, "house", *c.PropertyType)
	assert.Equal(t, now, c.DiscoveredAt)
}

func TestParseListingPriceSuffixes(t *testing.T) {
	now := time.Now().UTC()

	c := parseListing("p1", model.SearchResult{Title: "1 Main St", Content: "priced at $800k"}, now)
	require.NotNil(t, c.Price)
	assert.Equal(t, 800000.0, *c.Price)

	c = parseListing("p2", model.SearchResult{Title: "2 Main St", Content: "around $1.2M"}, now)
	require.NotNil(t, c.Price)
	assert.Equal(t, 1200000.0, *c.Price)
}

func TestParseListingUnknownFieldsStayNil(t *testing.T) {
	c := parseListing("p1", model.SearchResult{
		Title:   "15 Oak Ave",
		Content: "A lovely property.",
	}, time.Now().UTC())
	assert.Nil(t, c.Price)
	assert.Nil(t, c.Bedrooms)
	assert.Nil(t, c.Bathrooms)
	assert.Nil(t, c.SquareFeet)
}

func TestExtractAddress(t *testing.T) {
	assert.Equal(t, "123 Main St, Seattle, WA", extractAddress("123 Main St, Seattle, WA | Zillow"))
	assert.Equal(t, "45 Pine Rd", extractAddress("45 Pine Rd - Redfin"))
	assert.Equal(t, "", extractAddress("Homes for sale in Seattle | Zillow"))
	assert.Equal(t, "", extractAddress(""))
}

func TestBuildQuery(t *testing.T) {
	minBeds := 3
	maxPrice := 800000.0
	q := buildQuery(&model.SearchCriteria{
		Location:      "Seattle, WA",
		Purpose:       model.PurposeSale,
		MinBedrooms:   &minBeds,
		MaxPrice:      &maxPrice,
		PropertyTypes: []string{"house"},
		MaxResults:    5,
	})
	assert.Contains(t, q, "3 bedroom")
	assert.Contains(t, q, "house")
	assert.Contains(t, q, "for sale")
	assert.Contains(t, q, "in Seattle, WA")
	assert.Contains(t, q, "under $800000")
}
