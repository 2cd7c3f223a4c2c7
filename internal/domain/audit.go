package domain

import "time"

type AuditAction string

const (
	AuditSaveCampaign       AuditAction = "newsletter.save_campaign"
	AuditSendTestEmail      AuditAction = "newsletter.send_test_email"
	AuditSendCampaign       AuditAction = "newsletter.send_campaign"
	AuditScheduleCampaign   AuditAction = "newsletter.schedule_campaign"
	AuditUnscheduleCampaign AuditAction = "newsletter.unschedule_campaign"
)

func (a AuditAction) String() string { return string(a) }

// AuditLogEntry records one campaign action against a page.
type AuditLogEntry struct {
	ID         string
	PageID     string
	RevisionID *string
	Action     AuditAction
	Data       map[string]string
	Timestamp  time.Time
}
