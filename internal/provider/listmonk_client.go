package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const listmonkName = "listmonk"

// ListmonkClient is a typed wrapper over the self-hosted Listmonk REST API.
// Listmonk IDs are integers; conversion from the string contract happens
// in ListmonkBackend.
type ListmonkClient struct {
	rest    *restClient
	baseURL string
}

type listmonkList struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	SubscriberCount int    `json:"subscriber_count"`
}

type listmonkListsResponse struct {
	Data struct {
		Results []listmonkList `json:"results"`
		Total   int            `json:"total"`
	} `json:"data"`
}

type listmonkListResponse struct {
	Data listmonkList `json:"data"`
}

type listmonkCampaignList struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type listmonkCampaign struct {
	ID          int                    `json:"id"`
	Name        string                 `json:"name"`
	Subject     string                 `json:"subject"`
	FromEmail   string                 `json:"from_email"`
	Body        string                 `json:"body"`
	BodySource  *string                `json:"body_source"`
	AltBody     *string                `json:"altbody"`
	ContentType string                 `json:"content_type"`
	Type        string                 `json:"type"`
	Messenger   string                 `json:"messenger"`
	Status      string                 `json:"status"`
	Tags        []string               `json:"tags"`
	TemplateID  *int                   `json:"template_id"`
	Headers     []map[string]string    `json:"headers"`
	SendAt      *string                `json:"send_at"`
	Lists       []listmonkCampaignList `json:"lists"`
	Views       int                    `json:"views"`
	Clicks      int                    `json:"clicks"`
	Bounces     int                    `json:"bounces"`
	Sent        int                    `json:"sent"`
}

type listmonkCampaignResponse struct {
	Data listmonkCampaign `json:"data"`
}

// listmonkCampaignParams is the create/update/test body.
type listmonkCampaignParams struct {
	ID          int                 `json:"id,omitempty"`
	Subscribers []string            `json:"subscribers,omitempty"`
	Name        string              `json:"name"`
	Subject     string              `json:"subject"`
	Lists       []int               `json:"lists"`
	FromEmail   string              `json:"from_email,omitempty"`
	ContentType string              `json:"content_type"`
	Messenger   string              `json:"messenger,omitempty"`
	Type        string              `json:"type"`
	Tags        []string            `json:"tags,omitempty"`
	Headers     []map[string]string `json:"headers,omitempty"`
	Body        string              `json:"body"`
	BodySource  *string             `json:"body_source,omitempty"`
	AltBody     *string             `json:"altbody,omitempty"`
	SendAt      *string             `json:"send_at,omitempty"`
	TemplateID  *int                `json:"template_id,omitempty"`
}

type listmonkBoolResponse struct {
	Data bool `json:"data"`
}

func NewListmonkClient(baseURL string, username string, apiKey string, opts ClientOptions) (*ListmonkClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, &ConfigError{Setting: "LISTMONK_BASE_URL"}
	}

	target := baseURL
	if opts.BaseURL != "" {
		target = opts.BaseURL
	}

	rest := newRestClient(listmonkName, target, opts)
	rest.requireJSON = true
	rest.client.SetBasicAuth(username, apiKey)

	return &ListmonkClient{rest: rest, baseURL: baseURL}, nil
}

// CampaignURL links to the campaign in the Listmonk admin UI.
func (c *ListmonkClient) CampaignURL(id int) string {
	return fmt.Sprintf("%s/admin/campaigns/%d", c.baseURL, id)
}

func (c *ListmonkClient) GetLists(ctx context.Context) ([]listmonkList, error) {
	var out listmonkListsResponse
	err := c.rest.do(ctx, request{
		method: http.MethodGet,
		path:   "/api/lists",
		query:  map[string]string{"per_page": "all"},
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Data.Results, nil
}

func (c *ListmonkClient) GetList(ctx context.Context, id int) (*listmonkList, error) {
	var out listmonkListResponse
	if err := c.rest.do(ctx, request{method: http.MethodGet, path: fmt.Sprintf("/api/lists/%d", id)}, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (c *ListmonkClient) CreateCampaign(ctx context.Context, params listmonkCampaignParams) (*listmonkCampaign, error) {
	var out listmonkCampaignResponse
	if err := c.rest.do(ctx, request{method: http.MethodPost, path: "/api/campaigns", body: params}, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (c *ListmonkClient) UpdateCampaign(ctx context.Context, id int, params listmonkCampaignParams) (*listmonkCampaign, error) {
	params.ID = id
	var out listmonkCampaignResponse
	err := c.rest.do(ctx, request{
		method: http.MethodPut,
		path:   fmt.Sprintf("/api/campaigns/%d", id),
		body:   params,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (c *ListmonkClient) GetCampaign(ctx context.Context, id int) (*listmonkCampaign, error) {
	var out listmonkCampaignResponse
	if err := c.rest.do(ctx, request{method: http.MethodGet, path: fmt.Sprintf("/api/campaigns/%d", id)}, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// UpdateStatus moves a campaign to draft, scheduled, running, paused or
// cancelled. Listmonk rejects transitions that are not allowed from the
// current status.
func (c *ListmonkClient) UpdateStatus(ctx context.Context, id int, status string) (*listmonkCampaign, error) {
	var out listmonkCampaignResponse
	err := c.rest.do(ctx, request{
		method: http.MethodPut,
		path:   fmt.Sprintf("/api/campaigns/%d/status", id),
		body:   map[string]string{"status": status},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (c *ListmonkClient) SendTestEmail(ctx context.Context, id int, params listmonkCampaignParams) (bool, error) {
	params.ID = id
	var out listmonkBoolResponse
	err := c.rest.do(ctx, request{
		method: http.MethodPost,
		path:   fmt.Sprintf("/api/campaigns/%d/test", id),
		body:   params,
	}, &out)
	if err != nil {
		return false, err
	}
	return out.Data, nil
}
