package model

import "time"

// Candidate is one discovered property listing. The id is opaque, unique
// within its thread and stable across resume. Fields the discovery stage could
// not extract stay nil rather than zero so the report can distinguish
// "unknown" from "zero"; only the address is mandatory, since location
// analysis cannot proceed without one.
type Candidate struct {
	ID           string     `json:"id"`
	Address      string     `json:"address"`
	City         *string    `json:"city,omitempty"`
	State        *string    `json:"state,omitempty"`
	ZipCode      *string    `json:"zip_code,omitempty"`
	Price        *float64   `json:"price,omitempty"`
	Bedrooms     *int       `json:"bedrooms,omitempty"`
	Bathrooms    *float64   `json:"bathrooms,omitempty"`
	SquareFeet   *int       `json:"square_feet,omitempty"`
	PropertyType *string    `json:"property_type,omitempty"`
	ListingURL   string     `json:"listing_url"`
	ImageURLs    []string   `json:"image_urls,omitempty"`
	Description  string     `json:"description"`
	ListingDate  *time.Time `json:"listing_date,omitempty"`
	DiscoveredAt time.Time  `json:"discovered_at"`
}

// FullAddress joins the street address with whatever locality parts are
// known, for geocoding.
func (c *Candidate) FullAddress() string {
	addr := c.Address
	if c.City != nil && *c.City != "" {
		addr += ", " + *c.City
	}
	if c.State != nil && *c.State != "" {
		addr += ", " + *c.State
	}
	if c.ZipCode != nil && *c.ZipCode != "" {
		addr += " " + *c.ZipCode
	}
	return addr
}

// FirstImageURL returns the first non-empty image URL, or "" when the
// listing carried no usable images.
func (c *Candidate) FirstImageURL() string {
	for _, u := range c.ImageURLs {
		if u != "" {
			return u
		}
	}
	return ""
}

// ApprovalDecision is the user's accept/reject choice for one approval round.
type ApprovalDecision struct {
	ThreadID    string    `json:"thread_id"`
	ApprovedIDs []string  `json:"approved_ids"`
	RejectedIDs []string  `json:"rejected_ids"`
	DecidedAt   time.Time `json:"decided_at"`
}
