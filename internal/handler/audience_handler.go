package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/newsletter-dispatch/internal/audience"
	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
)

// AudienceCatalog is the cached view of the backend's audiences and
// segments.
type AudienceCatalog interface {
	Audiences() audience.Query[domain.Audience]
	Segments() audience.Query[domain.AudienceSegment]
	AudienceSegments(ctx context.Context, audienceID string) ([]domain.AudienceSegment, error)
	ParentAudience(ctx context.Context, segment domain.AudienceSegment) (domain.Audience, error)
	Clear(ctx context.Context) (int, error)
}

type AudienceHandler struct {
	catalog AudienceCatalog
}

func NewAudienceHandler(catalog AudienceCatalog) (*AudienceHandler, error) {
	if catalog == nil {
		return nil, fmt.Errorf("audience catalog is required")
	}
	return &AudienceHandler{catalog: catalog}, nil
}

func RegisterAudienceRoutes(router fiber.Router, catalog AudienceCatalog) error {
	h, err := NewAudienceHandler(catalog)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/audiences", h.ListAudiences)
	v1.Delete("/audiences/cache", h.ClearCache)
	v1.Get("/audiences/:id", h.GetAudience)
	v1.Get("/audiences/:id/segments", h.GetAudienceSegments)
	v1.Get("/segments", h.ListSegments)
	v1.Get("/segments/:audienceId/:segmentId", h.GetSegment)

	return nil
}

type listAudiencesResponse struct {
	Data []domain.Audience `json:"data"`
	Meta listMeta          `json:"meta"`
}

type segmentResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MemberCount int    `json:"member_count"`
	AudienceID  string `json:"audience_id"`
}

type segmentDetailResponse struct {
	segmentResponse
	AudienceName string `json:"audience_name"`
}

type listSegmentsResponse struct {
	Data []segmentResponse `json:"data"`
	Meta listMeta          `json:"meta"`
}

func (h *AudienceHandler) ListAudiences(c *fiber.Ctx) error {
	q, err := parseListQuery(c)
	if err != nil {
		return toHTTPError(err)
	}

	page, err := h.catalog.Audiences().Page(c.UserContext(), q.Page, q.PageSize)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(listAudiencesResponse{
		Data: page.Items,
		Meta: pageMeta(page.Page, page.PageSize, page.Total, page.HasNext),
	})
}

func (h *AudienceHandler) GetAudience(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return toHTTPError(domain.NewValidationError("id", "audience id is required"))
	}

	item, err := h.catalog.Audiences().Get(c.UserContext(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(item)
}

// ListSegments lists the segments of ?audience=; without it the listing is
// empty.
func (h *AudienceHandler) ListSegments(c *fiber.Ctx) error {
	q, err := parseListQuery(c)
	if err != nil {
		return toHTTPError(err)
	}

	query := h.catalog.Segments()
	if audienceID := strings.TrimSpace(c.Query("audience")); audienceID != "" {
		query = query.Filter(audience.FilterAudience, audienceID)
	}

	page, err := query.Page(c.UserContext(), q.Page, q.PageSize)
	if err != nil {
		return toHTTPError(err)
	}

	items := make([]segmentResponse, 0, len(page.Items))
	for _, segment := range page.Items {
		items = append(items, toSegmentResponse(segment))
	}

	return c.Status(fiber.StatusOK).JSON(listSegmentsResponse{
		Data: items,
		Meta: pageMeta(page.Page, page.PageSize, page.Total, page.HasNext),
	})
}

func (h *AudienceHandler) GetSegment(c *fiber.Ctx) error {
	audienceID := strings.TrimSpace(c.Params("audienceId"))
	segmentID := strings.TrimSpace(c.Params("segmentId"))
	if audienceID == "" || segmentID == "" {
		return toHTTPError(domain.NewValidationError("id", "segment id is required"))
	}

	item, err := h.catalog.Segments().Get(c.UserContext(), domain.SegmentID(audienceID, segmentID))
	if err != nil {
		return toHTTPError(err)
	}

	// A segment whose audience was deleted upstream is reported as missing.
	parent, err := h.catalog.ParentAudience(c.UserContext(), item)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(segmentDetailResponse{
		segmentResponse: toSegmentResponse(item),
		AudienceName:    parent.Name,
	})
}

// GetAudienceSegments returns every segment of one audience. The list is
// served from the cache within the TTL window; an unknown audience has none.
func (h *AudienceHandler) GetAudienceSegments(c *fiber.Ctx) error {
	audienceID := strings.TrimSpace(c.Params("id"))
	if audienceID == "" {
		return toHTTPError(domain.NewValidationError("id", "audience id is required"))
	}

	segments, err := h.catalog.AudienceSegments(c.UserContext(), audienceID)
	if err != nil {
		return toHTTPError(err)
	}

	items := make([]segmentResponse, 0, len(segments))
	for _, segment := range segments {
		items = append(items, toSegmentResponse(segment))
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": items})
}

func (h *AudienceHandler) ClearCache(c *fiber.Ctx) error {
	removed, err := h.catalog.Clear(c.UserContext())
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"removed": removed})
}

func toSegmentResponse(s domain.AudienceSegment) segmentResponse {
	return segmentResponse{
		ID:          s.ID,
		Name:        s.Name,
		MemberCount: s.MemberCount,
		AudienceID:  s.AudienceID(),
	}
}

func pageMeta(page, pageSize, total int, hasNext bool) listMeta {
	return listMeta{
		Page:     page,
		PageSize: pageSize,
		Total:    int64(total),
		HasNext:  hasNext,
	}
}
