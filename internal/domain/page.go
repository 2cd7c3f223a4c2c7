package domain

import (
	"strings"
	"time"
)

// NewsletterPage is the live CMS page record a campaign is attached to.
// CampaignID lives on the page, not on a revision.
type NewsletterPage struct {
	ID               string
	Title            string
	CampaignID       string
	LatestRevisionID *string
	UpdatedAt        time.Time
}

// PageRevision is a saved version of the page content.
type PageRevision struct {
	ID           string
	PageID       string
	Title        string
	Subject      string
	HTML         string
	RecipientsID *string
	CreatedAt    time.Time
}

// NewsletterSubject falls back to the title when no subject was entered.
func (r *PageRevision) NewsletterSubject() string {
	if r == nil {
		return ""
	}
	if subject := strings.TrimSpace(r.Subject); subject != "" {
		return subject
	}
	return strings.TrimSpace(r.Title)
}
