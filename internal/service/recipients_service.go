package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
	"github.com/kursadbilgin/newsletter-dispatch/internal/repository"
	"go.uber.org/zap"
)

const maxRecipientsPageSize = 100

type RecipientsService struct {
	recipients repository.RecipientsRepository
	backends   BackendResolver
	members    MemberCounter
	logger     *zap.Logger
	now        func() time.Time
}

func NewRecipientsService(
	recipients repository.RecipientsRepository,
	backends BackendResolver,
	members MemberCounter,
	logger *zap.Logger,
) (*RecipientsService, error) {
	if recipients == nil {
		return nil, fmt.Errorf("recipients repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RecipientsService{
		recipients: recipients,
		backends:   backends,
		members:    members,
		logger:     logger,
		now:        time.Now,
	}, nil
}

func (s *RecipientsService) Create(ctx context.Context, r *domain.Recipients) (*domain.Recipients, error) {
	if err := s.prepare(r); err != nil {
		return nil, err
	}
	if err := s.validateForBackend(r); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	r.ID = uuid.NewString()
	r.CreatedAt = now
	r.UpdatedAt = now

	if err := s.recipients.Create(ctx, r); err != nil {
		return nil, err
	}

	s.logger.Info("recipients created",
		zap.String("recipientsId", r.ID),
		zap.String("audienceId", r.AudienceID),
	)
	return r, nil
}

func (s *RecipientsService) GetByID(ctx context.Context, id string) (*domain.Recipients, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: recipients id is required", domain.ErrValidation)
	}
	return s.recipients.GetByID(ctx, id)
}

// Detail returns the recipients with their member count, which is nil when
// the audience or segment no longer exists remotely.
func (s *RecipientsService) Detail(ctx context.Context, id string) (*domain.Recipients, *int, error) {
	r, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if s.members == nil {
		return r, nil, nil
	}

	count, err := s.members.MemberCount(ctx, r)
	if err != nil {
		return nil, nil, err
	}
	return r, count, nil
}

func (s *RecipientsService) List(
	ctx context.Context,
	params repository.RecipientsListParams,
) ([]domain.Recipients, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = 20
	}
	if params.PageSize > maxRecipientsPageSize {
		params.PageSize = maxRecipientsPageSize
	}
	return s.recipients.List(ctx, params)
}

func (s *RecipientsService) Update(ctx context.Context, r *domain.Recipients) (*domain.Recipients, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: recipients are required", domain.ErrValidation)
	}

	existing, err := s.GetByID(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	if err := s.prepare(r); err != nil {
		return nil, err
	}
	if err := s.validateForBackend(r); err != nil {
		return nil, err
	}

	r.ID = existing.ID
	r.CreatedAt = existing.CreatedAt
	r.UpdatedAt = s.now().UTC()
	if err := s.recipients.Update(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *RecipientsService) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: recipients id is required", domain.ErrValidation)
	}
	return s.recipients.Delete(ctx, id)
}

func (s *RecipientsService) prepare(r *domain.Recipients) error {
	if r == nil {
		return fmt.Errorf("%w: recipients are required", domain.ErrValidation)
	}

	r.Name = strings.TrimSpace(r.Name)
	r.AudienceID = strings.TrimSpace(r.AudienceID)
	r.SegmentID = normalizeOptionalString(r.SegmentID)

	return r.Validate()
}

// validateForBackend applies the configured backend's recipient rules, such
// as Listmonk rejecting segments.
func (s *RecipientsService) validateForBackend(r *domain.Recipients) error {
	if s.backends == nil {
		return nil
	}
	backend, err := s.backends()
	if err != nil {
		return err
	}
	return backend.ValidateRecipients(r)
}

func normalizeOptionalString(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
