package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
	"go.uber.org/zap"
)

// Listmonk campaign status vocabulary.
const (
	listmonkStatusDraft     = "draft"
	listmonkStatusScheduled = "scheduled"
	listmonkStatusRunning   = "running"
	listmonkStatusPaused    = "paused"
	listmonkStatusCancelled = "cancelled"
	listmonkStatusFinished  = "finished"
)

const listmonkInvalidIDText = "invalid ID"

var _ Backend = (*ListmonkBackend)(nil)

// ListmonkBackend implements Backend on a self-hosted Listmonk server.
// Listmonk has no segments.
type ListmonkBackend struct {
	client   *ListmonkClient
	fromName string
	replyTo  string
	headers  []map[string]string
	logger   *zap.Logger
}

func DefaultListmonkHeaders() []map[string]string {
	return []map[string]string{{"Content-Type": "application/json", "charset": "utf-8"}}
}

func NewListmonkBackend(
	client *ListmonkClient,
	fromName string,
	replyTo string,
	headers []map[string]string,
	logger *zap.Logger,
) (*ListmonkBackend, error) {
	if client == nil {
		return nil, fmt.Errorf("listmonk client is required")
	}
	if len(headers) == 0 {
		headers = DefaultListmonkHeaders()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ListmonkBackend{
		client:   client,
		fromName: strings.TrimSpace(fromName),
		replyTo:  strings.TrimSpace(replyTo),
		headers:  headers,
		logger:   logger.With(zap.String("backend", listmonkName)),
	}, nil
}

func (b *ListmonkBackend) Name() string { return listmonkName }

func (b *ListmonkBackend) GetAudiences(ctx context.Context) ([]domain.Audience, error) {
	lists, err := b.client.GetLists(ctx)
	if err != nil {
		return nil, logAndWrap(b.logger, err, "Error while fetching audiences")
	}

	audiences := make([]domain.Audience, 0, len(lists))
	for _, list := range lists {
		audiences = append(audiences, listmonkAudience(list))
	}
	return audiences, nil
}

func (b *ListmonkBackend) GetAudience(ctx context.Context, audienceID string) (*domain.Audience, error) {
	id, ok := parseListmonkID(audienceID)
	if !ok {
		return nil, ErrAudienceNotFound
	}

	list, err := b.client.GetList(ctx, id)
	if err != nil {
		if isListmonkMissing(err) {
			return nil, ErrAudienceNotFound
		}
		return nil, logAndWrap(b.logger, err, "Error while fetching audience", zap.String("audienceId", audienceID))
	}

	audience := listmonkAudience(*list)
	return &audience, nil
}

// GetAudienceSegments always reports ErrAudienceNotFound: Listmonk lists
// cannot be segmented, so there is nothing to list.
func (b *ListmonkBackend) GetAudienceSegments(context.Context, string) ([]domain.AudienceSegment, error) {
	return nil, ErrAudienceNotFound
}

func (b *ListmonkBackend) ValidateRecipients(recipients *domain.Recipients) error {
	if recipients == nil || strings.TrimSpace(recipients.AudienceID) == "" {
		return domain.NewValidationError("audience", "listmonk requires an audience (list) to be selected")
	}
	if _, ok := parseListmonkID(recipients.AudienceID); !ok {
		return domain.NewValidationError("audience", fmt.Sprintf("invalid listmonk list id %q", recipients.AudienceID))
	}
	if recipients.HasSegment() {
		return domain.NewValidationError("segment", "listmonk does not support segments")
	}
	return nil
}

func (b *ListmonkBackend) SaveCampaign(ctx context.Context, input SaveCampaignInput) (string, error) {
	params, err := b.campaignParams(input)
	if err != nil {
		return "", err
	}

	if id, ok := parseListmonkID(input.CampaignID); ok {
		updated, err := b.client.UpdateCampaign(ctx, id, params)
		switch {
		case err == nil:
			return strconv.Itoa(updated.ID), nil
		case isListmonkMissing(err):
			// Deleted at the provider; the old ID is abandoned, not cleaned up.
			b.logger.Warn("campaign missing remotely, creating a new one", zap.String("campaignId", input.CampaignID))
		default:
			return "", logAndWrap(b.logger, err, "Error while updating campaign", zap.String("campaignId", input.CampaignID))
		}
	}

	created, err := b.client.CreateCampaign(ctx, params)
	if err != nil {
		return "", logAndWrap(b.logger, err, "Error while creating campaign")
	}
	return strconv.Itoa(created.ID), nil
}

func (b *ListmonkBackend) GetCampaign(ctx context.Context, campaignID string) (*Campaign, error) {
	id, ok := parseListmonkID(campaignID)
	if !ok {
		return nil, nil
	}

	data, err := b.client.GetCampaign(ctx, id)
	if err != nil {
		if isListmonkMissing(err) {
			return nil, nil
		}
		return nil, logAndWrap(b.logger, err, "Error while fetching campaign", zap.String("campaignId", campaignID))
	}

	return NewCampaign(
		strconv.Itoa(data.ID),
		data.Status,
		b.client.CampaignURL(data.ID),
		data.Status == listmonkStatusScheduled,
		data.Status == listmonkStatusRunning || data.Status == listmonkStatusFinished,
		func(ctx context.Context) (*domain.CampaignReport, error) {
			return b.report(ctx, id)
		},
	), nil
}

func (b *ListmonkBackend) report(ctx context.Context, id int) (*domain.CampaignReport, error) {
	data, err := b.client.GetCampaign(ctx, id)
	if err != nil {
		return nil, logAndWrap(b.logger, err, "Error while fetching campaign statistics", zap.Int("campaignId", id))
	}

	report := &domain.CampaignReport{
		EmailsSent: data.Sent,
		Opens:      data.Views,
		Clicks:     data.Clicks,
		Bounces:    data.Bounces,
	}
	if data.SendAt != nil {
		if sendTime, err := time.Parse(time.RFC3339, *data.SendAt); err == nil {
			report.SendTime = &sendTime
		}
	}
	return report, nil
}

func (b *ListmonkBackend) SendTestEmail(ctx context.Context, campaignID string, email string) error {
	id, err := b.requireID(campaignID)
	if err != nil {
		return err
	}

	data, err := b.client.GetCampaign(ctx, id)
	if err != nil {
		return logAndWrap(b.logger, err, "Error while retrieving campaign data", zap.String("campaignId", campaignID))
	}

	params := paramsFromListmonkCampaign(data)
	params.Subscribers = []string{email}

	ok, err := b.client.SendTestEmail(ctx, id, params)
	if err != nil {
		return logAndWrapWithDetail(b.logger, err, "Error while sending test email", zap.String("campaignId", campaignID))
	}
	if !ok {
		return logAndWrap(b.logger, errors.New("returned data is false"), "Error while sending test email",
			zap.String("campaignId", campaignID),
		)
	}
	return nil
}

func (b *ListmonkBackend) SendCampaign(ctx context.Context, campaignID string) error {
	return b.updateStatus(ctx, campaignID, listmonkStatusRunning, "Error while sending campaign")
}

// ValidateScheduleTime accepts any time; Listmonk has no scheduling grid.
func (b *ListmonkBackend) ValidateScheduleTime(time.Time) error { return nil }

// ScheduleCampaign stores send_at through a full campaign update and then
// flips the status. Listmonk does not take both in one call.
func (b *ListmonkBackend) ScheduleCampaign(ctx context.Context, campaignID string, scheduleTime time.Time) error {
	id, err := b.requireID(campaignID)
	if err != nil {
		return err
	}

	data, err := b.client.GetCampaign(ctx, id)
	if err != nil {
		return logAndWrap(b.logger, err, "Error while getting campaign information", zap.String("campaignId", campaignID))
	}

	params := paramsFromListmonkCampaign(data)
	sendAt := scheduleTime.Format(time.RFC3339)
	params.SendAt = &sendAt

	if _, err := b.client.UpdateCampaign(ctx, id, params); err != nil {
		return logAndWrap(b.logger, err, "Error while setting campaign send_at time",
			zap.String("campaignId", campaignID),
			zap.String("sendAt", sendAt),
		)
	}

	return b.updateStatus(ctx, campaignID, listmonkStatusScheduled, "Error while scheduling campaign")
}

// UnscheduleCampaign moves the campaign back to draft; Listmonk rejects
// the transition when the campaign is not scheduled.
func (b *ListmonkBackend) UnscheduleCampaign(ctx context.Context, campaignID string) error {
	return b.updateStatus(ctx, campaignID, listmonkStatusDraft, "Error while unscheduling campaign")
}

func (b *ListmonkBackend) updateStatus(ctx context.Context, campaignID string, status string, message string) error {
	id, err := b.requireID(campaignID)
	if err != nil {
		return err
	}

	if _, err := b.client.UpdateStatus(ctx, id, status); err != nil {
		return logAndWrapWithDetail(b.logger, err, message,
			zap.String("campaignId", campaignID),
			zap.String("status", status),
		)
	}
	return nil
}

func (b *ListmonkBackend) requireID(campaignID string) (int, error) {
	id, ok := parseListmonkID(campaignID)
	if !ok {
		b.logger.Error("invalid listmonk campaign id", zap.String("campaignId", campaignID))
		return 0, &BackendError{Message: fmt.Sprintf("Invalid campaign ID %q", campaignID)}
	}
	return id, nil
}

func (b *ListmonkBackend) campaignParams(input SaveCampaignInput) (listmonkCampaignParams, error) {
	if b.fromName == "" {
		return listmonkCampaignParams{}, &ConfigError{Setting: "NEWSLETTER_FROM_NAME"}
	}
	if b.replyTo == "" {
		return listmonkCampaignParams{}, &ConfigError{Setting: "NEWSLETTER_REPLY_TO"}
	}

	fromEmail := fmt.Sprintf("%s <%s>", b.fromName, b.replyTo)
	if !validEmail(fromEmail) {
		return listmonkCampaignParams{}, domain.NewValidationError("from_email", fmt.Sprintf("from_email is not valid %s", fromEmail))
	}

	params := listmonkCampaignParams{
		Name:        input.Name,
		Subject:     input.Subject,
		FromEmail:   fromEmail,
		ContentType: "html",
		Messenger:   "email",
		Type:        "regular",
		Headers:     b.headers,
		Body:        input.HTML,
		Lists:       []int{},
	}

	if input.Recipients != nil && strings.TrimSpace(input.Recipients.AudienceID) != "" {
		listID, ok := parseListmonkID(input.Recipients.AudienceID)
		if !ok {
			return listmonkCampaignParams{}, domain.NewValidationError("audience",
				fmt.Sprintf("invalid listmonk list id %q", input.Recipients.AudienceID))
		}
		params.Lists = append(params.Lists, listID)
	}

	return params, nil
}

func paramsFromListmonkCampaign(data *listmonkCampaign) listmonkCampaignParams {
	lists := make([]int, 0, len(data.Lists))
	for _, list := range data.Lists {
		lists = append(lists, list.ID)
	}

	return listmonkCampaignParams{
		Name:        data.Name,
		Subject:     data.Subject,
		Lists:       lists,
		FromEmail:   data.FromEmail,
		ContentType: data.ContentType,
		Messenger:   data.Messenger,
		Type:        data.Type,
		Tags:        data.Tags,
		Headers:     data.Headers,
		Body:        data.Body,
		BodySource:  data.BodySource,
		AltBody:     data.AltBody,
		SendAt:      data.SendAt,
		TemplateID:  data.TemplateID,
	}
}

func listmonkAudience(list listmonkList) domain.Audience {
	return domain.Audience{
		ID:          strconv.Itoa(list.ID),
		Name:        list.Name,
		MemberCount: list.SubscriberCount,
	}
}

// parseListmonkID converts a contract ID to Listmonk's integer ID. IDs that
// are not positive integers cannot exist remotely.
func parseListmonkID(id string) (int, bool) {
	parsed, err := strconv.Atoi(strings.TrimSpace(id))
	if err != nil || parsed <= 0 {
		return 0, false
	}
	return parsed, true
}

// isListmonkMissing matches both Listmonk's 400 "invalid ID" answer and a
// plain 404.
func isListmonkMissing(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode == http.StatusNotFound {
		return true
	}
	return apiErr.StatusCode == http.StatusBadRequest && apiErr.Text == listmonkInvalidIDText
}

func validEmail(s string) bool {
	address, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	return strings.Contains(address.Address, "@")
}
