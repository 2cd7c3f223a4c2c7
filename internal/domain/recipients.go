package domain

import (
	"strings"
	"time"
)

const SegmentNotInAudienceMessage = "The segment is not part of the selected audience."

// Recipients selects who a campaign is sent to: an audience and,
// optionally, one of its segments.
type Recipients struct {
	ID         string
	Name       string
	AudienceID string
	SegmentID  *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (r *Recipients) HasSegment() bool {
	return r != nil && r.SegmentID != nil && strings.TrimSpace(*r.SegmentID) != ""
}

// Validate checks field presence and that the segment belongs to the audience.
func (r *Recipients) Validate() error {
	if r == nil {
		return NewValidationError("", "recipients are required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return NewValidationError("name", "name is required")
	}
	if strings.TrimSpace(r.AudienceID) == "" {
		return NewValidationError("audience", "audience is required")
	}
	return r.ValidateSegment()
}

// ValidateSegment only checks the audience/segment relationship.
func (r *Recipients) ValidateSegment() error {
	if !r.HasSegment() {
		return nil
	}
	audienceID, _, ok := SplitSegmentID(strings.TrimSpace(*r.SegmentID))
	if !ok || audienceID != strings.TrimSpace(r.AudienceID) {
		return NewValidationError("segment", SegmentNotInAudienceMessage)
	}
	return nil
}
