package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
	"github.com/kursadbilgin/newsletter-dispatch/internal/repository"
)

type RecipientsService interface {
	Create(ctx context.Context, r *domain.Recipients) (*domain.Recipients, error)
	Detail(ctx context.Context, id string) (*domain.Recipients, *int, error)
	List(ctx context.Context, params repository.RecipientsListParams) ([]domain.Recipients, int64, error)
	Update(ctx context.Context, r *domain.Recipients) (*domain.Recipients, error)
	Delete(ctx context.Context, id string) error
}

type RecipientsHandler struct {
	service RecipientsService
}

func NewRecipientsHandler(service RecipientsService) (*RecipientsHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("recipients service is required")
	}
	return &RecipientsHandler{service: service}, nil
}

func RegisterRecipientsRoutes(router fiber.Router, service RecipientsService) error {
	h, err := NewRecipientsHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/recipients", h.CreateRecipients)
	v1.Get("/recipients", h.ListRecipients)
	v1.Get("/recipients/:id", h.GetRecipients)
	v1.Put("/recipients/:id", h.UpdateRecipients)
	v1.Delete("/recipients/:id", h.DeleteRecipients)

	return nil
}

type recipientsRequest struct {
	Name     string  `json:"name" validate:"required,max=255"`
	Audience string  `json:"audience" validate:"required,max=255"`
	Segment  *string `json:"segment" validate:"omitempty,max=255"`
}

type recipientsResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Audience    string    `json:"audience"`
	Segment     *string   `json:"segment"`
	MemberCount *int      `json:"member_count,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type listRecipientsResponse struct {
	Data []recipientsResponse `json:"data"`
	Meta listMeta             `json:"meta"`
}

func (h *RecipientsHandler) CreateRecipients(c *fiber.Ctx) error {
	var req recipientsRequest
	if err := parseBody(c, &req); err != nil {
		return toHTTPError(err)
	}

	created, err := h.service.Create(c.UserContext(), req.toDomain(""))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(toRecipientsResponse(created, nil))
}

func (h *RecipientsHandler) ListRecipients(c *fiber.Ctx) error {
	q, err := parseListQuery(c)
	if err != nil {
		return toHTTPError(err)
	}

	items, total, err := h.service.List(c.UserContext(), repository.RecipientsListParams{
		Page:     q.Page,
		PageSize: q.PageSize,
	})
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]recipientsResponse, 0, len(items))
	for i := range items {
		data = append(data, toRecipientsResponse(&items[i], nil))
	}

	return c.Status(fiber.StatusOK).JSON(listRecipientsResponse{
		Data: data,
		Meta: listMeta{
			Page:     q.Page,
			PageSize: q.PageSize,
			Total:    total,
			HasNext:  int64(q.Page*q.PageSize) < total,
		},
	})
}

// GetRecipients includes member_count; it is omitted when the audience or
// segment cannot be resolved.
func (h *RecipientsHandler) GetRecipients(c *fiber.Ctx) error {
	r, count, err := h.service.Detail(c.UserContext(), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toRecipientsResponse(r, count))
}

func (h *RecipientsHandler) UpdateRecipients(c *fiber.Ctx) error {
	var req recipientsRequest
	if err := parseBody(c, &req); err != nil {
		return toHTTPError(err)
	}

	updated, err := h.service.Update(c.UserContext(), req.toDomain(strings.TrimSpace(c.Params("id"))))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toRecipientsResponse(updated, nil))
}

func (h *RecipientsHandler) DeleteRecipients(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), strings.TrimSpace(c.Params("id"))); err != nil {
		return toHTTPError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (r recipientsRequest) toDomain(id string) *domain.Recipients {
	return &domain.Recipients{
		ID:         id,
		Name:       r.Name,
		AudienceID: r.Audience,
		SegmentID:  r.Segment,
	}
}

func toRecipientsResponse(r *domain.Recipients, memberCount *int) recipientsResponse {
	if r == nil {
		return recipientsResponse{}
	}
	return recipientsResponse{
		ID:          r.ID,
		Name:        r.Name,
		Audience:    r.AudienceID,
		Segment:     r.SegmentID,
		MemberCount: memberCount,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}
