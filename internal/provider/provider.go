package provider

import (
	"context"
	"time"

	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
)

// Backend is the campaign backend port. Implementations normalize one
// email marketing provider behind a single operation set. All campaign
// IDs are strings at this boundary.
type Backend interface {
	Name() string

	GetAudiences(ctx context.Context) ([]domain.Audience, error)
	// GetAudience returns ErrAudienceNotFound for unknown IDs.
	GetAudience(ctx context.Context, audienceID string) (*domain.Audience, error)
	// GetAudienceSegments returns ErrAudienceNotFound for unknown audiences.
	GetAudienceSegments(ctx context.Context, audienceID string) ([]domain.AudienceSegment, error)

	ValidateRecipients(recipients *domain.Recipients) error

	// SaveCampaign updates input.CampaignID, or creates a campaign when it is
	// empty or no longer exists remotely. The returned ID may differ from
	// input.CampaignID.
	SaveCampaign(ctx context.Context, input SaveCampaignInput) (string, error)
	// GetCampaign returns nil, nil when the campaign was deleted remotely.
	GetCampaign(ctx context.Context, campaignID string) (*Campaign, error)
	SendTestEmail(ctx context.Context, campaignID string, email string) error
	SendCampaign(ctx context.Context, campaignID string) error
	ValidateScheduleTime(scheduleTime time.Time) error
	ScheduleCampaign(ctx context.Context, campaignID string, scheduleTime time.Time) error
	UnscheduleCampaign(ctx context.Context, campaignID string) error
}

type SaveCampaignInput struct {
	CampaignID string
	Name       string
	Recipients *domain.Recipients
	Subject    string
	HTML       string
}

// Campaign is a snapshot of a remote campaign.
type Campaign struct {
	ID     string
	Status string
	URL    string

	scheduled bool
	sent      bool
	report    func(ctx context.Context) (*domain.CampaignReport, error)
}

func (c *Campaign) IsScheduled() bool { return c != nil && c.scheduled }

func (c *Campaign) IsSent() bool { return c != nil && c.sent }

// Report fetches delivery statistics for the campaign.
func (c *Campaign) Report(ctx context.Context) (*domain.CampaignReport, error) {
	if c == nil || c.report == nil {
		return &domain.CampaignReport{}, nil
	}
	return c.report(ctx)
}

// NewCampaign builds a campaign snapshot. It is exported for test doubles
// of Backend in other packages.
func NewCampaign(
	id string,
	status string,
	url string,
	scheduled bool,
	sent bool,
	report func(ctx context.Context) (*domain.CampaignReport, error),
) *Campaign {
	return &Campaign{
		ID:        id,
		Status:    status,
		URL:       url,
		scheduled: scheduled,
		sent:      sent,
		report:    report,
	}
}
