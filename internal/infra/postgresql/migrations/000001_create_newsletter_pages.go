package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/newsletter-dispatch/internal/repository"
	"gorm.io/gorm"
)

func createNewsletterPagesTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_newsletter_pages",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.NewsletterPageModel{}, &repository.PageRevisionModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_page_revisions_page_created ON newsletter_page_revisions (page_id, created_at DESC)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.PageRevisionModel{}, &repository.NewsletterPageModel{})
		},
	}
}
