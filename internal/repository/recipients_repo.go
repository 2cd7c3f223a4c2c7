package repository

import (
	"context"
	"errors"

	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
	"gorm.io/gorm"
)

type RecipientsListParams struct {
	Page     int
	PageSize int
}

type RecipientsRepository interface {
	Create(ctx context.Context, r *domain.Recipients) error
	GetByID(ctx context.Context, id string) (*domain.Recipients, error)
	List(ctx context.Context, params RecipientsListParams) ([]domain.Recipients, int64, error)
	Update(ctx context.Context, r *domain.Recipients) error
	Delete(ctx context.Context, id string) error
}

type GormRecipientsRepo struct {
	db *gorm.DB
}

func NewGormRecipientsRepo(db *gorm.DB) *GormRecipientsRepo {
	return &GormRecipientsRepo{db: db}
}

func (r *GormRecipientsRepo) Create(ctx context.Context, rec *domain.Recipients) error {
	model := recipientsModelFromDomain(rec)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if rec != nil {
		*rec = *recipientsModelToDomain(model)
	}
	return nil
}

func (r *GormRecipientsRepo) GetByID(ctx context.Context, id string) (*domain.Recipients, error) {
	var model RecipientsModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return recipientsModelToDomain(&model), nil
}

func (r *GormRecipientsRepo) List(ctx context.Context, params RecipientsListParams) ([]domain.Recipients, int64, error) {
	query := r.db.WithContext(ctx).Model(&RecipientsModel{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := params.Page
	if page < 1 {
		page = 1
	}
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	var models []RecipientsModel
	err := query.
		Order("name ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	out := make([]domain.Recipients, 0, len(models))
	for i := range models {
		out = append(out, *recipientsModelToDomain(&models[i]))
	}
	return out, total, nil
}

func (r *GormRecipientsRepo) Update(ctx context.Context, rec *domain.Recipients) error {
	if rec == nil {
		return nil
	}

	result := r.db.WithContext(ctx).
		Model(&RecipientsModel{}).
		Where("id = ?", rec.ID).
		Updates(map[string]any{
			"name":        rec.Name,
			"audience_id": rec.AudienceID,
			"segment_id":  rec.SegmentID,
			"updated_at":  rec.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormRecipientsRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&RecipientsModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
