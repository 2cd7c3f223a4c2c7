package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/newsletter-dispatch/internal/repository"
	"gorm.io/gorm"
)

func createNewsletterRecipientsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_newsletter_recipients",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.RecipientsModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.RecipientsModel{})
		},
	}
}
