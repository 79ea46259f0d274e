package model

import "strings"

// Purpose is what the user wants to do with the property.
type Purpose string

const (
	PurposeRent     Purpose = "rent"
	PurposeSale     Purpose = "sale"
	PurposeShortlet Purpose = "shortlet"
)

// ParsePurpose normalises free-form purpose strings from the extractor.
// Unknown values return an empty Purpose so the caller can re-prompt.
func ParsePurpose(v string) Purpose {
	switch Purpose(strings.ToLower(strings.TrimSpace(v))) {
	case PurposeRent:
		return PurposeRent
	case PurposeSale:
		return PurposeSale
	case PurposeShortlet:
		return PurposeShortlet
	default:
		return ""
	}
}

// SearchCriteria is the normalised user intent for one research run.
// Location and Purpose are required; everything else is optional.
// Immutable once confirmed by the workflow.
type SearchCriteria struct {
	Location      string   `json:"location"`
	Purpose       Purpose  `json:"purpose"`
	MinPrice      *float64 `json:"min_price,omitempty"`
	MaxPrice      *float64 `json:"max_price,omitempty"`
	MinBedrooms   *int     `json:"min_bedrooms,omitempty"`
	MaxBedrooms   *int     `json:"max_bedrooms,omitempty"`
	MinBathrooms  *float64 `json:"min_bathrooms,omitempty"`
	PropertyTypes []string `json:"property_types,omitempty"`
	MaxResults    int      `json:"max_results"`
}

// Complete reports whether the required fields are present.
func (c *SearchCriteria) Complete() bool {
	return c != nil && strings.TrimSpace(c.Location) != "" && c.Purpose != ""
}

// MissingFields lists the required fields the extractor could not fill,
// used to build the clarification re-prompt.
func (c *SearchCriteria) MissingFields() []string {
	var missing []string
	if c == nil || strings.TrimSpace(c.Location) == "" {
		missing = append(missing, "location")
	}
	if c == nil || c.Purpose == "" {
		missing = append(missing, "purpose")
	}
	return missing
}
