package repository

import (
	"time"

	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
)

// NewsletterPageModel is the live page record. campaign_id is written
// outside revisioning.
type NewsletterPageModel struct {
	ID               string  `gorm:"type:uuid;primaryKey"`
	Title            string  `gorm:"type:varchar(255);not null"`
	CampaignID       string  `gorm:"type:varchar(255);not null;default:''"`
	LatestRevisionID *string `gorm:"type:uuid"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (NewsletterPageModel) TableName() string {
	return "newsletter_pages"
}

// PageRevisionModel is an immutable saved version of a page.
type PageRevisionModel struct {
	ID           string  `gorm:"type:uuid;primaryKey"`
	PageID       string  `gorm:"type:uuid;not null"`
	Title        string  `gorm:"type:varchar(255);not null"`
	Subject      string  `gorm:"type:varchar(255);not null;default:''"`
	HTML         string  `gorm:"column:html;type:text;not null"`
	RecipientsID *string `gorm:"type:uuid"`
	CreatedAt    time.Time
}

func (PageRevisionModel) TableName() string {
	return "newsletter_page_revisions"
}

type RecipientsModel struct {
	ID         string  `gorm:"type:uuid;primaryKey"`
	Name       string  `gorm:"type:varchar(255);not null"`
	AudienceID string  `gorm:"type:varchar(255);not null"`
	SegmentID  *string `gorm:"type:varchar(255)"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (RecipientsModel) TableName() string {
	return "newsletter_recipients"
}

type AuditLogModel struct {
	ID         string             `gorm:"type:uuid;primaryKey"`
	PageID     string             `gorm:"type:uuid;not null"`
	RevisionID *string            `gorm:"type:uuid"`
	Action     domain.AuditAction `gorm:"type:varchar(64);not null"`
	Data       map[string]string  `gorm:"type:jsonb;serializer:json"`
	Timestamp  time.Time          `gorm:"type:timestamptz;not null"`
}

func (AuditLogModel) TableName() string {
	return "newsletter_audit_log"
}

func pageModelFromDomain(p *domain.NewsletterPage) *NewsletterPageModel {
	if p == nil {
		return nil
	}

	return &NewsletterPageModel{
		ID:               p.ID,
		Title:            p.Title,
		CampaignID:       p.CampaignID,
		LatestRevisionID: p.LatestRevisionID,
		UpdatedAt:        p.UpdatedAt,
	}
}

func pageModelToDomain(m *NewsletterPageModel) *domain.NewsletterPage {
	if m == nil {
		return nil
	}

	return &domain.NewsletterPage{
		ID:               m.ID,
		Title:            m.Title,
		CampaignID:       m.CampaignID,
		LatestRevisionID: m.LatestRevisionID,
		UpdatedAt:        m.UpdatedAt,
	}
}

func revisionModelFromDomain(r *domain.PageRevision) *PageRevisionModel {
	if r == nil {
		return nil
	}

	return &PageRevisionModel{
		ID:           r.ID,
		PageID:       r.PageID,
		Title:        r.Title,
		Subject:      r.Subject,
		HTML:         r.HTML,
		RecipientsID: r.RecipientsID,
		CreatedAt:    r.CreatedAt,
	}
}

func revisionModelToDomain(m *PageRevisionModel) *domain.PageRevision {
	if m == nil {
		return nil
	}

	return &domain.PageRevision{
		ID:           m.ID,
		PageID:       m.PageID,
		Title:        m.Title,
		Subject:      m.Subject,
		HTML:         m.HTML,
		RecipientsID: m.RecipientsID,
		CreatedAt:    m.CreatedAt,
	}
}

func recipientsModelFromDomain(r *domain.Recipients) *RecipientsModel {
	if r == nil {
		return nil
	}

	return &RecipientsModel{
		ID:         r.ID,
		Name:       r.Name,
		AudienceID: r.AudienceID,
		SegmentID:  r.SegmentID,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func recipientsModelToDomain(m *RecipientsModel) *domain.Recipients {
	if m == nil {
		return nil
	}

	return &domain.Recipients{
		ID:         m.ID,
		Name:       m.Name,
		AudienceID: m.AudienceID,
		SegmentID:  m.SegmentID,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func auditModelFromDomain(e *domain.AuditLogEntry) *AuditLogModel {
	if e == nil {
		return nil
	}

	return &AuditLogModel{
		ID:         e.ID,
		PageID:     e.PageID,
		RevisionID: e.RevisionID,
		Action:     e.Action,
		Data:       e.Data,
		Timestamp:  e.Timestamp,
	}
}

func auditModelToDomain(m *AuditLogModel) *domain.AuditLogEntry {
	if m == nil {
		return nil
	}

	return &domain.AuditLogEntry{
		ID:         m.ID,
		PageID:     m.PageID,
		RevisionID: m.RevisionID,
		Action:     m.Action,
		Data:       m.Data,
		Timestamp:  m.Timestamp,
	}
}
