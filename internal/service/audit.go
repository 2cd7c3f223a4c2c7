package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
	"github.com/kursadbilgin/newsletter-dispatch/internal/repository"
	"go.uber.org/zap"
)

// AuditSink receives every audit log entry.
type AuditSink interface {
	Name() string
	Record(ctx context.Context, entry domain.AuditLogEntry) error
}

type AuditFailureRecorder interface {
	IncAuditSinkFailure(sink string)
}

// AuditLogger fans campaign action entries out to its sinks. A failing sink
// is logged and counted; it never fails the action that produced the entry.
type AuditLogger struct {
	sinks    []AuditSink
	recorder AuditFailureRecorder
	logger   *zap.Logger
	now      func() time.Time
}

func NewAuditLogger(logger *zap.Logger, recorder AuditFailureRecorder, sinks ...AuditSink) *AuditLogger {
	if logger == nil {
		logger = zap.NewNop()
	}

	kept := make([]AuditSink, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			kept = append(kept, sink)
		}
	}

	return &AuditLogger{
		sinks:    kept,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// Log assigns an ID and timestamp when missing and returns the entry as
// recorded.
func (a *AuditLogger) Log(ctx context.Context, entry domain.AuditLogEntry) domain.AuditLogEntry {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = a.now()
	}
	entry.Timestamp = entry.Timestamp.UTC()

	for _, sink := range a.sinks {
		if err := sink.Record(ctx, entry); err != nil {
			a.logger.Warn("failed to record audit log entry",
				zap.String("sink", sink.Name()),
				zap.String("action", entry.Action.String()),
				zap.String("pageId", entry.PageID),
				zap.Error(err),
			)
			if a.recorder != nil {
				a.recorder.IncAuditSinkFailure(sink.Name())
			}
		}
	}

	return entry
}

// RepositoryAuditSink persists entries through the audit log repository.
type RepositoryAuditSink struct {
	repo repository.AuditLogRepository
}

func NewRepositoryAuditSink(repo repository.AuditLogRepository) *RepositoryAuditSink {
	return &RepositoryAuditSink{repo: repo}
}

func (s *RepositoryAuditSink) Name() string { return "postgres" }

func (s *RepositoryAuditSink) Record(ctx context.Context, entry domain.AuditLogEntry) error {
	return s.repo.Create(ctx, &entry)
}
