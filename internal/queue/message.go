package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
)

// AuditEventMessage is the broker payload for one campaign audit entry.
type AuditEventMessage struct {
	EntryID    string             `json:"entryId"`
	PageID     string             `json:"pageId"`
	RevisionID *string            `json:"revisionId,omitempty"`
	Action     domain.AuditAction `json:"action"`
	Data       map[string]string  `json:"data,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
}

func NewAuditEventMessage(entry domain.AuditLogEntry) AuditEventMessage {
	return AuditEventMessage{
		EntryID:    entry.ID,
		PageID:     entry.PageID,
		RevisionID: entry.RevisionID,
		Action:     entry.Action,
		Data:       entry.Data,
		Timestamp:  entry.Timestamp.UTC(),
	}
}

func (m AuditEventMessage) Validate() error {
	if strings.TrimSpace(m.EntryID) == "" {
		return fmt.Errorf("entryId is required")
	}
	if strings.TrimSpace(m.PageID) == "" {
		return fmt.Errorf("pageId is required")
	}
	if !strings.HasPrefix(m.Action.String(), auditActionPrefix) {
		return fmt.Errorf("invalid audit action %q", m.Action)
	}
	return nil
}
