package model

import "time"

// ImageAnalysis is the vision model's read of a listing photo before
// decoration: what room it shows and where themed decoration could go.
type ImageAnalysis struct {
	RoomType      string   `json:"room_type"`
	Opportunities []string `json:"opportunities"`
}

// DecoratedImage is the generated Halloween-themed variant of a candidate's
// photo. At most one per candidate per run. A failed generation is recorded
// with Failed set so the report treats it as "no decoration available" rather
// than an error.
type DecoratedImage struct {
	CandidateID   string    `json:"candidate_id"`
	SourceURL     string    `json:"source_url"`
	ImageData     []byte    `json:"image_data,omitempty"`
	MIMEType      string    `json:"mime_type,omitempty"`
	Description   string    `json:"description,omitempty"`
	Failed        bool      `json:"failed,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// Available reports whether the decoration produced usable image bytes.
func (d *DecoratedImage) Available() bool {
	return d != nil && !d.Failed && len(d.ImageData) > 0
}
