package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
	"github.com/kursadbilgin/newsletter-dispatch/internal/repository"
	"go.uber.org/zap"
)

type RevisionInput struct {
	Title        string
	Subject      string
	HTML         string
	RecipientsID *string
}

// PageService stores newsletter pages and their saved revisions. Campaign
// actions always read the latest revision, never unsaved content.
type PageService struct {
	pages      repository.PageRepository
	recipients repository.RecipientsRepository
	logger     *zap.Logger
	now        func() time.Time
}

func NewPageService(
	pages repository.PageRepository,
	recipients repository.RecipientsRepository,
	logger *zap.Logger,
) (*PageService, error) {
	if pages == nil {
		return nil, fmt.Errorf("page repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PageService{
		pages:      pages,
		recipients: recipients,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// Create stores a page together with its first revision.
func (s *PageService) Create(ctx context.Context, input RevisionInput) (*domain.NewsletterPage, *domain.PageRevision, error) {
	if err := s.validateRevision(ctx, &input); err != nil {
		return nil, nil, err
	}

	page := &domain.NewsletterPage{
		ID:        uuid.NewString(),
		Title:     input.Title,
		UpdatedAt: s.now().UTC(),
	}
	if err := s.pages.Create(ctx, page); err != nil {
		return nil, nil, err
	}

	revision, err := s.createRevision(ctx, page.ID, input)
	if err != nil {
		return nil, nil, err
	}
	page.LatestRevisionID = &revision.ID

	s.logger.Info("newsletter page created", zap.String("pageId", page.ID))
	return page, revision, nil
}

func (s *PageService) GetByID(ctx context.Context, id string) (*domain.NewsletterPage, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: page id is required", domain.ErrValidation)
	}
	return s.pages.GetByID(ctx, id)
}

// CreateRevision saves new content for a page and makes it the latest
// revision. The page's campaign ID is left as is.
func (s *PageService) CreateRevision(ctx context.Context, pageID string, input RevisionInput) (*domain.PageRevision, error) {
	page, err := s.GetByID(ctx, pageID)
	if err != nil {
		return nil, err
	}
	if err := s.validateRevision(ctx, &input); err != nil {
		return nil, err
	}
	return s.createRevision(ctx, page.ID, input)
}

func (s *PageService) createRevision(ctx context.Context, pageID string, input RevisionInput) (*domain.PageRevision, error) {
	revision := &domain.PageRevision{
		ID:           uuid.NewString(),
		PageID:       pageID,
		Title:        input.Title,
		Subject:      input.Subject,
		HTML:         input.HTML,
		RecipientsID: input.RecipientsID,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.pages.CreateRevision(ctx, revision); err != nil {
		return nil, err
	}
	return revision, nil
}

func (s *PageService) validateRevision(ctx context.Context, input *RevisionInput) error {
	input.Title = strings.TrimSpace(input.Title)
	input.Subject = strings.TrimSpace(input.Subject)
	input.RecipientsID = normalizeOptionalString(input.RecipientsID)

	if input.Title == "" {
		return domain.NewValidationError("title", "title is required")
	}

	if input.RecipientsID != nil && s.recipients != nil {
		if _, err := s.recipients.GetByID(ctx, *input.RecipientsID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.NewValidationError("recipients", "selected recipients do not exist")
			}
			return err
		}
	}
	return nil
}
