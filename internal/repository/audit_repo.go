package repository

import (
	"context"

	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
	"gorm.io/gorm"
)

type AuditLogRepository interface {
	Create(ctx context.Context, e *domain.AuditLogEntry) error
	ListByPage(ctx context.Context, pageID string, limit int) ([]domain.AuditLogEntry, error)
}

type GormAuditLogRepo struct {
	db *gorm.DB
}

func NewGormAuditLogRepo(db *gorm.DB) *GormAuditLogRepo {
	return &GormAuditLogRepo{db: db}
}

func (r *GormAuditLogRepo) Create(ctx context.Context, e *domain.AuditLogEntry) error {
	model := auditModelFromDomain(e)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if e != nil {
		*e = *auditModelToDomain(model)
	}
	return nil
}

// ListByPage returns the page's entries, newest first.
func (r *GormAuditLogRepo) ListByPage(ctx context.Context, pageID string, limit int) ([]domain.AuditLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	var models []AuditLogModel
	err := r.db.WithContext(ctx).
		Where("page_id = ?", pageID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	out := make([]domain.AuditLogEntry, 0, len(models))
	for i := range models {
		out = append(out, *auditModelToDomain(&models[i]))
	}
	return out, nil
}
