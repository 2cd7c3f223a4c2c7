package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const (
	mailchimpName      = "mailchimp"
	mailchimpPageCount = "1000"
	// Segment types offered in the chooser; fuzzy (auto-updating) segments are excluded.
	mailchimpSegmentTypes = "saved,static"
)

var mailchimpAPIKeyPattern = regexp.MustCompile(`^[0-9a-f]{32}-([a-z]+[0-9]+)$`)

// MailchimpClient is a typed wrapper over the Mailchimp Marketing API v3.
type MailchimpClient struct {
	rest       *restClient
	datacenter string
}

type mailchimpList struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Stats struct {
		MemberCount int `json:"member_count"`
	} `json:"stats"`
}

type mailchimpListsResponse struct {
	Lists []mailchimpList `json:"lists"`
}

type mailchimpSegment struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	MemberCount int    `json:"member_count"`
	Type        string `json:"type"`
}

type mailchimpSegmentsResponse struct {
	ListID   string             `json:"list_id"`
	Segments []mailchimpSegment `json:"segments"`
}

type mailchimpSegmentOpts struct {
	SavedSegmentID int `json:"saved_segment_id"`
}

type mailchimpRecipients struct {
	ListID      string                `json:"list_id"`
	SegmentOpts *mailchimpSegmentOpts `json:"segment_opts,omitempty"`
}

type mailchimpSettings struct {
	SubjectLine string `json:"subject_line"`
	Title       string `json:"title"`
	FromName    string `json:"from_name"`
	ReplyTo     string `json:"reply_to"`
}

type mailchimpCampaignRequest struct {
	Type       string               `json:"type,omitempty"`
	Recipients *mailchimpRecipients `json:"recipients,omitempty"`
	Settings   mailchimpSettings    `json:"settings"`
}

type mailchimpCampaign struct {
	ID     string `json:"id"`
	WebID  int    `json:"web_id"`
	Status string `json:"status"`
}

type mailchimpReport struct {
	EmailsSent int    `json:"emails_sent"`
	SendTime   string `json:"send_time"`
	Bounces    struct {
		HardBounces int `json:"hard_bounces"`
		SoftBounces int `json:"soft_bounces"`
	} `json:"bounces"`
	Opens struct {
		UniqueOpens int `json:"unique_opens"`
	} `json:"opens"`
	Clicks struct {
		UniqueClicks int `json:"unique_clicks"`
	} `json:"clicks"`
}

// MailchimpDatacenter extracts the datacenter suffix from an API key of the
// form "{32 hex}-{dc}".
func MailchimpDatacenter(apiKey string) (string, error) {
	match := mailchimpAPIKeyPattern.FindStringSubmatch(strings.TrimSpace(apiKey))
	if match == nil {
		return "", fmt.Errorf("expected {32 hex chars}-{datacenter}")
	}
	return match[1], nil
}

func NewMailchimpClient(apiKey string, opts ClientOptions) (*MailchimpClient, error) {
	datacenter, err := MailchimpDatacenter(apiKey)
	if err != nil {
		return nil, &ConfigError{Setting: "MAILCHIMP_API_KEY", Reason: err.Error()}
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.api.mailchimp.com/3.0", datacenter)
	}

	rest := newRestClient(mailchimpName, baseURL, opts)
	rest.client.SetBasicAuth("anystring", strings.TrimSpace(apiKey))

	return &MailchimpClient{rest: rest, datacenter: datacenter}, nil
}

func (c *MailchimpClient) Datacenter() string { return c.datacenter }

func (c *MailchimpClient) GetAllLists(ctx context.Context) ([]mailchimpList, error) {
	var out mailchimpListsResponse
	err := c.rest.do(ctx, request{
		method: http.MethodGet,
		path:   "/lists",
		query:  map[string]string{"count": mailchimpPageCount},
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Lists, nil
}

func (c *MailchimpClient) GetList(ctx context.Context, listID string) (*mailchimpList, error) {
	var out mailchimpList
	err := c.rest.do(ctx, request{
		method: http.MethodGet,
		path:   "/lists/" + url.PathEscape(listID),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *MailchimpClient) ListSegments(ctx context.Context, listID string) ([]mailchimpSegment, error) {
	var out mailchimpSegmentsResponse
	err := c.rest.do(ctx, request{
		method: http.MethodGet,
		path:   "/lists/" + url.PathEscape(listID) + "/segments",
		query: map[string]string{
			"count": mailchimpPageCount,
			"type":  mailchimpSegmentTypes,
		},
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Segments, nil
}

func (c *MailchimpClient) CreateCampaign(ctx context.Context, body mailchimpCampaignRequest) (*mailchimpCampaign, error) {
	var out mailchimpCampaign
	if err := c.rest.do(ctx, request{method: http.MethodPost, path: "/campaigns", body: body}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *MailchimpClient) UpdateCampaign(ctx context.Context, campaignID string, body mailchimpCampaignRequest) (*mailchimpCampaign, error) {
	var out mailchimpCampaign
	err := c.rest.do(ctx, request{
		method: http.MethodPatch,
		path:   campaignPath(campaignID),
		body:   body,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *MailchimpClient) SetCampaignContent(ctx context.Context, campaignID string, html string) error {
	return c.rest.do(ctx, request{
		method: http.MethodPut,
		path:   campaignPath(campaignID) + "/content",
		body:   map[string]string{"html": html},
	}, nil)
}

func (c *MailchimpClient) GetCampaign(ctx context.Context, campaignID string) (*mailchimpCampaign, error) {
	var out mailchimpCampaign
	if err := c.rest.do(ctx, request{method: http.MethodGet, path: campaignPath(campaignID)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *MailchimpClient) SendTestEmail(ctx context.Context, campaignID string, emails []string) error {
	return c.rest.do(ctx, request{
		method: http.MethodPost,
		path:   campaignPath(campaignID) + "/actions/test",
		body: map[string]any{
			"test_emails": emails,
			"send_type":   "html",
		},
	}, nil)
}

func (c *MailchimpClient) Send(ctx context.Context, campaignID string) error {
	return c.rest.do(ctx, request{method: http.MethodPost, path: campaignPath(campaignID) + "/actions/send"}, nil)
}

func (c *MailchimpClient) Schedule(ctx context.Context, campaignID string, scheduleTime time.Time) error {
	return c.rest.do(ctx, request{
		method: http.MethodPost,
		path:   campaignPath(campaignID) + "/actions/schedule",
		body:   map[string]string{"schedule_time": scheduleTime.UTC().Format(time.RFC3339)},
	}, nil)
}

func (c *MailchimpClient) Unschedule(ctx context.Context, campaignID string) error {
	return c.rest.do(ctx, request{method: http.MethodPost, path: campaignPath(campaignID) + "/actions/unschedule"}, nil)
}

func (c *MailchimpClient) GetReport(ctx context.Context, campaignID string) (*mailchimpReport, error) {
	var out mailchimpReport
	err := c.rest.do(ctx, request{
		method: http.MethodGet,
		path:   "/reports/" + url.PathEscape(campaignID),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func campaignPath(campaignID string) string {
	return "/campaigns/" + url.PathEscape(campaignID)
}
