package domain

import (
	"fmt"
	"strings"
)

// Audience is a provider mailing list.
type Audience struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MemberCount int    `json:"member_count"`
}

func (a Audience) Key() string { return a.ID }

// AudienceSegment is a subset of an audience. Its ID is the composite
// "{audience_id}/{provider_segment_id}".
type AudienceSegment struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MemberCount int    `json:"member_count"`
}

func (s AudienceSegment) Key() string { return s.ID }

// AudienceID returns the audience part of the segment's composite ID.
func (s AudienceSegment) AudienceID() string {
	audienceID, _, _ := SplitSegmentID(s.ID)
	return audienceID
}

func SegmentID(audienceID, providerSegmentID string) string {
	return fmt.Sprintf("%s/%s", audienceID, providerSegmentID)
}

// SplitSegmentID splits a composite segment ID on its first slash.
func SplitSegmentID(id string) (audienceID string, providerSegmentID string, ok bool) {
	audienceID, providerSegmentID, ok = strings.Cut(id, "/")
	if !ok || audienceID == "" || providerSegmentID == "" {
		return audienceID, providerSegmentID, false
	}
	return audienceID, providerSegmentID, true
}
