package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/newsletter-dispatch/internal/repository"
	"gorm.io/gorm"
)

func createNewsletterAuditLogTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_newsletter_audit_log",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.AuditLogModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_audit_log_page_timestamp ON newsletter_audit_log (page_id, timestamp DESC)`,
				`CREATE INDEX IF NOT EXISTS idx_audit_log_action ON newsletter_audit_log (action)`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.AuditLogModel{})
		},
	}
}
