package repository

import (
	"context"
	"errors"

	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
	"gorm.io/gorm"
)

type PageRepository interface {
	Create(ctx context.Context, p *domain.NewsletterPage) error
	GetByID(ctx context.Context, id string) (*domain.NewsletterPage, error)
	// CreateRevision stores r and makes it the page's latest revision.
	CreateRevision(ctx context.Context, r *domain.PageRevision) error
	GetLatestRevision(ctx context.Context, pageID string) (*domain.PageRevision, error)
	// SetCampaignID updates the live record only; revisions are untouched.
	SetCampaignID(ctx context.Context, pageID string, campaignID string) error
}

type GormPageRepo struct {
	db *gorm.DB
}

func NewGormPageRepo(db *gorm.DB) *GormPageRepo {
	return &GormPageRepo{db: db}
}

func (r *GormPageRepo) Create(ctx context.Context, p *domain.NewsletterPage) error {
	model := pageModelFromDomain(p)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if p != nil {
		*p = *pageModelToDomain(model)
	}
	return nil
}

func (r *GormPageRepo) GetByID(ctx context.Context, id string) (*domain.NewsletterPage, error) {
	var model NewsletterPageModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return pageModelToDomain(&model), nil
}

func (r *GormPageRepo) CreateRevision(ctx context.Context, rev *domain.PageRevision) error {
	model := revisionModelFromDomain(rev)
	if model == nil {
		return nil
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}

		result := tx.Model(&NewsletterPageModel{}).
			Where("id = ?", model.PageID).
			Updates(map[string]any{
				"latest_revision_id": model.ID,
				"title":              model.Title,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	*rev = *revisionModelToDomain(model)
	return nil
}

func (r *GormPageRepo) GetLatestRevision(ctx context.Context, pageID string) (*domain.PageRevision, error) {
	var model PageRevisionModel
	err := r.db.WithContext(ctx).
		Joins("JOIN newsletter_pages ON newsletter_pages.latest_revision_id = newsletter_page_revisions.id").
		Where("newsletter_pages.id = ?", pageID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return revisionModelToDomain(&model), nil
}

func (r *GormPageRepo) SetCampaignID(ctx context.Context, pageID string, campaignID string) error {
	result := r.db.WithContext(ctx).
		Model(&NewsletterPageModel{}).
		Where("id = ?", pageID).
		UpdateColumn("campaign_id", campaignID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
