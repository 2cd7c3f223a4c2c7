package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
	"github.com/kursadbilgin/newsletter-dispatch/internal/observability"
	"github.com/kursadbilgin/newsletter-dispatch/internal/provider"
	"github.com/kursadbilgin/newsletter-dispatch/internal/service"
)

type PageService interface {
	Create(ctx context.Context, input service.RevisionInput) (*domain.NewsletterPage, *domain.PageRevision, error)
	CreateRevision(ctx context.Context, pageID string, input service.RevisionInput) (*domain.PageRevision, error)
}

type CampaignService interface {
	Save(ctx context.Context, pageID string) (*service.ActionResult, error)
	SendTestEmail(ctx context.Context, pageID string, email string) (*service.ActionResult, error)
	Send(ctx context.Context, pageID string) (*service.ActionResult, error)
	Schedule(ctx context.Context, pageID string, scheduleTime time.Time) (*service.ActionResult, error)
	Unschedule(ctx context.Context, pageID string) (*service.ActionResult, error)
	GetCampaignStatus(ctx context.Context, pageID string) (*service.CampaignStatus, error)
	History(ctx context.Context, pageID string, limit int) ([]domain.AuditLogEntry, error)
}

type CampaignHandler struct {
	pages     PageService
	campaigns CampaignService
}

func NewCampaignHandler(pages PageService, campaigns CampaignService) (*CampaignHandler, error) {
	if pages == nil {
		return nil, fmt.Errorf("page service is required")
	}
	if campaigns == nil {
		return nil, fmt.Errorf("campaign service is required")
	}
	return &CampaignHandler{pages: pages, campaigns: campaigns}, nil
}

func RegisterCampaignRoutes(router fiber.Router, pages PageService, campaigns CampaignService) error {
	h, err := NewCampaignHandler(pages, campaigns)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/pages", h.CreatePage)

	page := v1.Group("/pages/:id", withPageID)
	page.Post("/revisions", h.CreateRevision)
	page.Get("/campaign", h.GetCampaign)
	page.Get("/campaign/history", h.GetHistory)
	page.Post("/campaign/save", h.SaveCampaign)
	page.Post("/campaign/test", h.SendTestEmail)
	page.Post("/campaign/send", h.SendCampaign)
	page.Post("/campaign/schedule", h.ScheduleCampaign)
	page.Post("/campaign/unschedule", h.UnscheduleCampaign)

	return nil
}

type revisionRequest struct {
	Title      string  `json:"title" validate:"required,max=255"`
	Subject    string  `json:"subject" validate:"max=255"`
	HTML       string  `json:"html"`
	Recipients *string `json:"recipients"`
}

type testEmailRequest struct {
	Email string `json:"email"`
}

type scheduleRequest struct {
	ScheduleTime string `json:"schedule_time"`
}

type pageResponse struct {
	ID               string  `json:"id"`
	Title            string  `json:"title"`
	CampaignID       string  `json:"campaign_id,omitempty"`
	LatestRevisionID *string `json:"latest_revision_id,omitempty"`
}

type revisionResponse struct {
	ID         string    `json:"id"`
	PageID     string    `json:"page_id"`
	Title      string    `json:"title"`
	Subject    string    `json:"subject"`
	Recipients *string   `json:"recipients,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

type createPageResponse struct {
	Page     pageResponse     `json:"page"`
	Revision revisionResponse `json:"revision"`
}

type actionResponse struct {
	Messages   []service.Message `json:"messages"`
	CampaignID string            `json:"campaign_id,omitempty"`
}

type campaignStatusResponse struct {
	PageID      string                 `json:"page_id"`
	Backend     string                 `json:"backend"`
	CampaignID  string                 `json:"campaign_id,omitempty"`
	Exists      bool                   `json:"exists"`
	Status      string                 `json:"status,omitempty"`
	URL         string                 `json:"url,omitempty"`
	IsScheduled bool                   `json:"is_scheduled"`
	IsSent      bool                   `json:"is_sent"`
	Report      *domain.CampaignReport `json:"report,omitempty"`
	Recipients  *recipientsResponse    `json:"recipients,omitempty"`
}

type historyEntryResponse struct {
	ID         string            `json:"id"`
	Action     string            `json:"action"`
	RevisionID *string           `json:"revision_id,omitempty"`
	Data       map[string]string `json:"data,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

func (h *CampaignHandler) CreatePage(c *fiber.Ctx) error {
	var req revisionRequest
	if err := parseBody(c, &req); err != nil {
		return toHTTPError(err)
	}

	page, revision, err := h.pages.Create(c.UserContext(), req.toInput())
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(createPageResponse{
		Page:     toPageResponse(page),
		Revision: toRevisionResponse(revision),
	})
}

func (h *CampaignHandler) CreateRevision(c *fiber.Ctx) error {
	var req revisionRequest
	if err := parseBody(c, &req); err != nil {
		return toHTTPError(err)
	}

	revision, err := h.pages.CreateRevision(c.UserContext(), pageIDParam(c), req.toInput())
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(toRevisionResponse(revision))
}

func (h *CampaignHandler) GetCampaign(c *fiber.Ctx) error {
	status, err := h.campaigns.GetCampaignStatus(c.UserContext(), pageIDParam(c))
	if err != nil {
		return toHTTPError(err)
	}

	resp := campaignStatusResponse{
		PageID:      status.PageID,
		Backend:     status.Backend,
		CampaignID:  status.CampaignID,
		Exists:      status.Exists,
		Status:      status.Status,
		URL:         status.URL,
		IsScheduled: status.IsScheduled,
		IsSent:      status.IsSent,
		Report:      status.Report,
	}
	if status.Recipients != nil {
		recipients := toRecipientsResponse(status.Recipients, status.MemberCount)
		resp.Recipients = &recipients
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

func (h *CampaignHandler) GetHistory(c *fiber.Ctx) error {
	entries, err := h.campaigns.History(c.UserContext(), pageIDParam(c), c.QueryInt("limit", 0))
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]historyEntryResponse, 0, len(entries))
	for _, e := range entries {
		data = append(data, historyEntryResponse{
			ID:         e.ID,
			Action:     e.Action.String(),
			RevisionID: e.RevisionID,
			Data:       e.Data,
			Timestamp:  e.Timestamp,
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": data})
}

func (h *CampaignHandler) SaveCampaign(c *fiber.Ctx) error {
	result, err := h.campaigns.Save(c.UserContext(), pageIDParam(c))
	return respondAction(c, result, err)
}

func (h *CampaignHandler) SendTestEmail(c *fiber.Ctx) error {
	var req testEmailRequest
	if err := parseBody(c, &req); err != nil {
		return toHTTPError(err)
	}

	result, err := h.campaigns.SendTestEmail(c.UserContext(), pageIDParam(c), req.Email)
	return respondAction(c, result, err)
}

func (h *CampaignHandler) SendCampaign(c *fiber.Ctx) error {
	result, err := h.campaigns.Send(c.UserContext(), pageIDParam(c))
	return respondAction(c, result, err)
}

// ScheduleCampaign accepts schedule_time in RFC 3339; the offset given is the
// wall clock the backend validates against.
func (h *CampaignHandler) ScheduleCampaign(c *fiber.Ctx) error {
	var req scheduleRequest
	if err := parseBody(c, &req); err != nil {
		return toHTTPError(err)
	}

	var scheduleTime time.Time
	if raw := strings.TrimSpace(req.ScheduleTime); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return toHTTPError(domain.NewValidationError("schedule_time", "schedule_time must be RFC3339"))
		}
		scheduleTime = parsed
	}

	result, err := h.campaigns.Schedule(c.UserContext(), pageIDParam(c), scheduleTime)
	return respondAction(c, result, err)
}

func (h *CampaignHandler) UnscheduleCampaign(c *fiber.Ctx) error {
	result, err := h.campaigns.Unschedule(c.UserContext(), pageIDParam(c))
	return respondAction(c, result, err)
}

// respondAction writes the action messages. A backend failure answers 502
// and a validation failure 400, each with the messages body.
func respondAction(c *fiber.Ctx, result *service.ActionResult, err error) error {
	if err != nil {
		return toHTTPError(err)
	}

	status := fiber.StatusOK
	if result.Failed() {
		var backendErr *provider.BackendError
		switch {
		case errors.As(result.Err, &backendErr):
			status = fiber.StatusBadGateway
		case errors.Is(result.Err, domain.ErrValidation):
			status = fiber.StatusBadRequest
		default:
			status = fiber.StatusInternalServerError
		}
	}

	messages := result.Messages
	if messages == nil {
		messages = []service.Message{}
	}
	return c.Status(status).JSON(actionResponse{
		Messages:   messages,
		CampaignID: result.CampaignID,
	})
}

func withPageID(c *fiber.Ctx) error {
	if id := pageIDParam(c); id != "" {
		c.SetUserContext(observability.WithPageID(c.UserContext(), id))
	}
	return c.Next()
}

func pageIDParam(c *fiber.Ctx) string {
	return strings.TrimSpace(c.Params("id"))
}

func (r revisionRequest) toInput() service.RevisionInput {
	return service.RevisionInput{
		Title:        r.Title,
		Subject:      r.Subject,
		HTML:         r.HTML,
		RecipientsID: r.Recipients,
	}
}

func toPageResponse(p *domain.NewsletterPage) pageResponse {
	if p == nil {
		return pageResponse{}
	}
	return pageResponse{
		ID:               p.ID,
		Title:            p.Title,
		CampaignID:       p.CampaignID,
		LatestRevisionID: p.LatestRevisionID,
	}
}

func toRevisionResponse(r *domain.PageRevision) revisionResponse {
	if r == nil {
		return revisionResponse{}
	}
	return revisionResponse{
		ID:         r.ID,
		PageID:     r.PageID,
		Title:      r.Title,
		Subject:    r.Subject,
		Recipients: r.RecipientsID,
		CreatedAt:  r.CreatedAt,
	}
}
