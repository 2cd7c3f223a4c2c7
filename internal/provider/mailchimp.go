package provider

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
	"go.uber.org/zap"
)

const mailchimpScheduleInterval = 15 * time.Minute

// Mailchimp campaign status vocabulary. Anything else counts as sent.
const (
	mailchimpStatusSave     = "save"
	mailchimpStatusSchedule = "schedule"
	mailchimpStatusPaused   = "paused"
)

var _ Backend = (*MailchimpBackend)(nil)

// MailchimpBackend implements Backend on the hosted Mailchimp API.
type MailchimpBackend struct {
	client   *MailchimpClient
	fromName string
	replyTo  string
	logger   *zap.Logger
}

func NewMailchimpBackend(client *MailchimpClient, fromName string, replyTo string, logger *zap.Logger) (*MailchimpBackend, error) {
	if client == nil {
		return nil, fmt.Errorf("mailchimp client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &MailchimpBackend{
		client:   client,
		fromName: strings.TrimSpace(fromName),
		replyTo:  strings.TrimSpace(replyTo),
		logger:   logger.With(zap.String("backend", mailchimpName)),
	}, nil
}

func (b *MailchimpBackend) Name() string { return mailchimpName }

func (b *MailchimpBackend) GetAudiences(ctx context.Context) ([]domain.Audience, error) {
	lists, err := b.client.GetAllLists(ctx)
	if err != nil {
		return nil, logAndWrap(b.logger, err, "Error while fetching audiences")
	}

	audiences := make([]domain.Audience, 0, len(lists))
	for _, list := range lists {
		audiences = append(audiences, mailchimpAudience(list))
	}
	return audiences, nil
}

func (b *MailchimpBackend) GetAudience(ctx context.Context, audienceID string) (*domain.Audience, error) {
	list, err := b.client.GetList(ctx, audienceID)
	if err != nil {
		if isNotFoundStatus(err) {
			return nil, ErrAudienceNotFound
		}
		return nil, logAndWrap(b.logger, err, "Error while fetching audience", zap.String("audienceId", audienceID))
	}

	audience := mailchimpAudience(*list)
	return &audience, nil
}

func (b *MailchimpBackend) GetAudienceSegments(ctx context.Context, audienceID string) ([]domain.AudienceSegment, error) {
	segments, err := b.client.ListSegments(ctx, audienceID)
	if err != nil {
		if isNotFoundStatus(err) {
			return nil, ErrAudienceNotFound
		}
		return nil, logAndWrap(b.logger, err, "Error while fetching audience segments", zap.String("audienceId", audienceID))
	}

	result := make([]domain.AudienceSegment, 0, len(segments))
	for _, segment := range segments {
		result = append(result, domain.AudienceSegment{
			ID:          domain.SegmentID(audienceID, strconv.Itoa(segment.ID)),
			Name:        segment.Name,
			MemberCount: segment.MemberCount,
		})
	}
	return result, nil
}

// ValidateRecipients accepts a missing selection; Mailchimp drafts may
// be saved without an audience.
func (b *MailchimpBackend) ValidateRecipients(recipients *domain.Recipients) error {
	if recipients == nil {
		return nil
	}
	if err := recipients.ValidateSegment(); err != nil {
		return err
	}
	if recipients.HasSegment() {
		if _, err := mailchimpSavedSegmentID(*recipients.SegmentID); err != nil {
			return err
		}
	}
	return nil
}

func (b *MailchimpBackend) SaveCampaign(ctx context.Context, input SaveCampaignInput) (string, error) {
	body, err := b.campaignRequest(input)
	if err != nil {
		return "", err
	}

	campaignID := strings.TrimSpace(input.CampaignID)
	if campaignID != "" {
		body.Type = ""
		updated, err := b.client.UpdateCampaign(ctx, campaignID, body)
		switch {
		case err == nil:
			campaignID = updated.ID
		case isNotFoundStatus(err):
			// Deleted at the provider; the old ID is abandoned, not cleaned up.
			b.logger.Warn("campaign missing remotely, creating a new one", zap.String("campaignId", campaignID))
			campaignID = ""
		default:
			return "", logAndWrap(b.logger, err, "Error while updating campaign", zap.String("campaignId", campaignID))
		}
	}

	if campaignID == "" {
		body.Type = "regular"
		created, err := b.client.CreateCampaign(ctx, body)
		if err != nil {
			return "", logAndWrap(b.logger, err, "Error while creating campaign")
		}
		campaignID = created.ID
	}

	if err := b.client.SetCampaignContent(ctx, campaignID, input.HTML); err != nil {
		return "", logAndWrap(b.logger, err, "Error while saving campaign content", zap.String("campaignId", campaignID))
	}

	return campaignID, nil
}

func (b *MailchimpBackend) GetCampaign(ctx context.Context, campaignID string) (*Campaign, error) {
	campaign, err := b.client.GetCampaign(ctx, campaignID)
	if err != nil {
		if isNotFoundStatus(err) {
			return nil, nil
		}
		return nil, logAndWrap(b.logger, err, "Error while fetching campaign", zap.String("campaignId", campaignID))
	}

	id := campaign.ID
	return NewCampaign(
		id,
		campaign.Status,
		fmt.Sprintf("https://%s.admin.mailchimp.com/campaigns/show/?id=%d", b.client.Datacenter(), campaign.WebID),
		campaign.Status == mailchimpStatusSchedule,
		mailchimpIsSent(campaign.Status),
		func(ctx context.Context) (*domain.CampaignReport, error) {
			return b.report(ctx, id)
		},
	), nil
}

func (b *MailchimpBackend) report(ctx context.Context, campaignID string) (*domain.CampaignReport, error) {
	data, err := b.client.GetReport(ctx, campaignID)
	if err != nil {
		return nil, logAndWrap(b.logger, err, "Error while fetching campaign report", zap.String("campaignId", campaignID))
	}

	report := &domain.CampaignReport{
		EmailsSent: data.EmailsSent,
		Opens:      data.Opens.UniqueOpens,
		Clicks:     data.Clicks.UniqueClicks,
		Bounces:    data.Bounces.HardBounces + data.Bounces.SoftBounces,
	}
	if sendTime, err := time.Parse(time.RFC3339, data.SendTime); err == nil {
		report.SendTime = &sendTime
	}
	return report, nil
}

func (b *MailchimpBackend) SendTestEmail(ctx context.Context, campaignID string, email string) error {
	if err := b.client.SendTestEmail(ctx, campaignID, []string{email}); err != nil {
		return logAndWrapWithDetail(b.logger, err, "Error while sending test email", zap.String("campaignId", campaignID))
	}
	return nil
}

func (b *MailchimpBackend) SendCampaign(ctx context.Context, campaignID string) error {
	if err := b.client.Send(ctx, campaignID); err != nil {
		return logAndWrapWithDetail(b.logger, err, "Error while sending campaign", zap.String("campaignId", campaignID))
	}
	return nil
}

// ValidateScheduleTime enforces Mailchimp's quarter-hour scheduling grid.
func (b *MailchimpBackend) ValidateScheduleTime(scheduleTime time.Time) error {
	offset := quarterHourOffset(scheduleTime)
	if offset == 0 {
		return nil
	}

	nearest := scheduleTime.Add(-offset)
	if offset*2 >= mailchimpScheduleInterval {
		nearest = nearest.Add(mailchimpScheduleInterval)
	}

	return &BackendError{
		Message: fmt.Sprintf(
			"Mailchimp only supports scheduling campaigns at 15-minute intervals (:00, :15, :30, :45). Try %s instead.",
			nearest.Format("15:04"),
		),
	}
}

func (b *MailchimpBackend) ScheduleCampaign(ctx context.Context, campaignID string, scheduleTime time.Time) error {
	if err := b.ValidateScheduleTime(scheduleTime); err != nil {
		return err
	}
	if err := b.client.Schedule(ctx, campaignID, scheduleTime); err != nil {
		return logAndWrapWithDetail(b.logger, err, "Error while scheduling campaign",
			zap.String("campaignId", campaignID),
			zap.Time("scheduleTime", scheduleTime),
		)
	}
	return nil
}

func (b *MailchimpBackend) UnscheduleCampaign(ctx context.Context, campaignID string) error {
	if err := b.client.Unschedule(ctx, campaignID); err != nil {
		return logAndWrapWithDetail(b.logger, err, "Error while unscheduling campaign", zap.String("campaignId", campaignID))
	}
	return nil
}

func (b *MailchimpBackend) campaignRequest(input SaveCampaignInput) (mailchimpCampaignRequest, error) {
	if b.fromName == "" {
		return mailchimpCampaignRequest{}, &ConfigError{Setting: "NEWSLETTER_FROM_NAME"}
	}
	if b.replyTo == "" {
		return mailchimpCampaignRequest{}, &ConfigError{Setting: "NEWSLETTER_REPLY_TO"}
	}

	body := mailchimpCampaignRequest{
		Settings: mailchimpSettings{
			SubjectLine: input.Subject,
			Title:       input.Name,
			FromName:    b.fromName,
			ReplyTo:     b.replyTo,
		},
	}

	if recipients := input.Recipients; recipients != nil && strings.TrimSpace(recipients.AudienceID) != "" {
		if err := b.ValidateRecipients(recipients); err != nil {
			return mailchimpCampaignRequest{}, err
		}
		body.Recipients = &mailchimpRecipients{ListID: strings.TrimSpace(recipients.AudienceID)}
		if recipients.HasSegment() {
			segmentID, _ := mailchimpSavedSegmentID(*recipients.SegmentID)
			body.Recipients.SegmentOpts = &mailchimpSegmentOpts{SavedSegmentID: segmentID}
		}
	}

	return body, nil
}

func mailchimpAudience(list mailchimpList) domain.Audience {
	return domain.Audience{
		ID:          list.ID,
		Name:        list.Name,
		MemberCount: list.Stats.MemberCount,
	}
}

func mailchimpIsSent(status string) bool {
	switch status {
	case mailchimpStatusSave, mailchimpStatusSchedule, mailchimpStatusPaused:
		return false
	}
	return true
}

func mailchimpSavedSegmentID(compositeID string) (int, error) {
	_, providerSegmentID, ok := domain.SplitSegmentID(strings.TrimSpace(compositeID))
	if !ok {
		return 0, domain.NewValidationError("segment", domain.SegmentNotInAudienceMessage)
	}
	id, err := strconv.Atoi(providerSegmentID)
	if err != nil {
		return 0, domain.NewValidationError("segment", fmt.Sprintf("invalid segment id %q", providerSegmentID))
	}
	return id, nil
}

// quarterHourOffset is the distance from t back to the previous wall-clock
// quarter hour in t's location.
func quarterHourOffset(t time.Time) time.Duration {
	return time.Duration(t.Minute()%15)*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
}
