package domain

import "time"

// CampaignReport is the flat statistics map of a sent campaign.
type CampaignReport struct {
	EmailsSent int        `json:"emails_sent"`
	Opens      int        `json:"opens"`
	Clicks     int        `json:"clicks"`
	Bounces    int        `json:"bounces"`
	SendTime   *time.Time `json:"send_time,omitempty"`
}
