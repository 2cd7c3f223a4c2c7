package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
	"github.com/kursadbilgin/newsletter-dispatch/internal/observability"
	"github.com/kursadbilgin/newsletter-dispatch/internal/provider"
	"github.com/kursadbilgin/newsletter-dispatch/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	ActionSave       = "save"
	ActionTest       = "test"
	ActionSend       = "send"
	ActionSchedule   = "schedule"
	ActionUnschedule = "unschedule"

	defaultHistoryLimit = 50
	scheduleTimeLayout  = "2006-01-02 15:04"
)

// BackendResolver returns the configured campaign backend. It is called once
// per action so settings changes apply without a restart.
type BackendResolver func() (provider.Backend, error)

type MemberCounter interface {
	MemberCount(ctx context.Context, recipients *domain.Recipients) (*int, error)
}

type ActionRecorder interface {
	IncCampaignAction(action string, succeeded bool)
}

type AuditLog interface {
	Log(ctx context.Context, entry domain.AuditLogEntry) domain.AuditLogEntry
}

type MessageLevel string

const (
	LevelSuccess MessageLevel = "success"
	LevelError   MessageLevel = "error"
)

type Message struct {
	Level MessageLevel `json:"level"`
	Text  string       `json:"text"`
}

// ActionResult collects the user-facing messages of one campaign action.
// Err holds the backend or validation failure that stopped the action.
type ActionResult struct {
	Messages   []Message
	CampaignID string
	Err        error
}

func (r *ActionResult) success(text string) {
	r.Messages = append(r.Messages, Message{Level: LevelSuccess, Text: text})
}

func (r *ActionResult) fail(text string, err error) {
	r.Messages = append(r.Messages, Message{Level: LevelError, Text: text})
	r.Err = err
}

func (r *ActionResult) Failed() bool { return r != nil && r.Err != nil }

// CampaignStatus is the campaign panel of a newsletter page.
type CampaignStatus struct {
	PageID      string
	Backend     string
	CampaignID  string
	Exists      bool
	Status      string
	URL         string
	IsScheduled bool
	IsSent      bool
	Report      *domain.CampaignReport
	Recipients  *domain.Recipients
	MemberCount *int
}

type CampaignService struct {
	pages      repository.PageRepository
	recipients repository.RecipientsRepository
	history    repository.AuditLogRepository
	audit      AuditLog
	backends   BackendResolver
	members    MemberCounter
	renderer   *Renderer
	recorder   ActionRecorder
	validate   *validator.Validate
	logger     *zap.Logger
}

func NewCampaignService(
	pages repository.PageRepository,
	recipients repository.RecipientsRepository,
	history repository.AuditLogRepository,
	audit AuditLog,
	backends BackendResolver,
	members MemberCounter,
	recorder ActionRecorder,
	logger *zap.Logger,
) (*CampaignService, error) {
	if pages == nil || audit == nil || backends == nil {
		return nil, errors.New("campaign service requires pages, audit log and backend resolver")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	renderer, err := NewRenderer()
	if err != nil {
		return nil, err
	}

	return &CampaignService{
		pages:      pages,
		recipients: recipients,
		history:    history,
		audit:      audit,
		backends:   backends,
		members:    members,
		renderer:   renderer,
		recorder:   recorder,
		validate:   validator.New(),
		logger:     logger,
	}, nil
}

// Save pushes the page's latest saved revision to the campaign backend.
func (s *CampaignService) Save(ctx context.Context, pageID string) (*ActionResult, error) {
	page, backend, err := s.prepare(ctx, pageID)
	if err != nil {
		return nil, err
	}

	result := &ActionResult{}
	if err := s.saveCampaign(ctx, page, backend, result); err != nil {
		return nil, err
	}
	s.observe(ActionSave, result)
	return result, nil
}

// SendTestEmail saves the campaign and sends a test message to email.
func (s *CampaignService) SendTestEmail(ctx context.Context, pageID string, email string) (*ActionResult, error) {
	email = strings.TrimSpace(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		result := &ActionResult{}
		result.fail("Email: Enter a valid email address.", domain.NewValidationError("email", "Enter a valid email address."))
		s.observe(ActionTest, result)
		return result, nil
	}

	page, backend, err := s.prepare(ctx, pageID)
	if err != nil {
		return nil, err
	}

	result := &ActionResult{}
	if err := s.saveCampaign(ctx, page, backend, result); err != nil {
		return nil, err
	}
	if result.Failed() {
		s.observe(ActionTest, result)
		return result, nil
	}

	logger := observability.WithContextLogger(s.logger, ctx)
	if err := backend.SendTestEmail(ctx, page.CampaignID, email); err != nil {
		if handleErr := s.actionFailure(result, err); handleErr != nil {
			return nil, handleErr
		}
		logger.Warn("test email failed", zap.String("campaignId", page.CampaignID), zap.Error(err))
		s.observe(ActionTest, result)
		return result, nil
	}

	s.audit.Log(ctx, domain.AuditLogEntry{
		PageID: page.ID,
		Action: domain.AuditSendTestEmail,
		Data:   map[string]string{"email": email},
	})
	result.success(fmt.Sprintf("Test message sent to '%s'", email))
	s.observe(ActionTest, result)
	return result, nil
}

// Send saves the campaign and starts sending it.
func (s *CampaignService) Send(ctx context.Context, pageID string) (*ActionResult, error) {
	page, backend, err := s.prepare(ctx, pageID)
	if err != nil {
		return nil, err
	}

	result := &ActionResult{}
	if err := s.saveCampaign(ctx, page, backend, result); err != nil {
		return nil, err
	}
	if result.Failed() {
		s.observe(ActionSend, result)
		return result, nil
	}

	if err := backend.SendCampaign(ctx, page.CampaignID); err != nil {
		if handleErr := s.actionFailure(result, err); handleErr != nil {
			return nil, handleErr
		}
		s.observe(ActionSend, result)
		return result, nil
	}

	s.audit.Log(ctx, domain.AuditLogEntry{PageID: page.ID, Action: domain.AuditSendCampaign})
	result.success("Newsletter campaign is now sending")
	s.observe(ActionSend, result)
	return result, nil
}

// Schedule validates scheduleTime against the backend before saving, so an
// invalid time never triggers a save.
func (s *CampaignService) Schedule(ctx context.Context, pageID string, scheduleTime time.Time) (*ActionResult, error) {
	if scheduleTime.IsZero() {
		result := &ActionResult{}
		result.fail("Schedule time: This field is required.", domain.NewValidationError("schedule_time", "This field is required."))
		s.observe(ActionSchedule, result)
		return result, nil
	}

	page, backend, err := s.prepare(ctx, pageID)
	if err != nil {
		return nil, err
	}

	result := &ActionResult{}
	if err := backend.ValidateScheduleTime(scheduleTime); err != nil {
		if handleErr := s.actionFailure(result, err); handleErr != nil {
			return nil, handleErr
		}
		s.observe(ActionSchedule, result)
		return result, nil
	}

	if err := s.saveCampaign(ctx, page, backend, result); err != nil {
		return nil, err
	}
	if result.Failed() {
		s.observe(ActionSchedule, result)
		return result, nil
	}

	if err := backend.ScheduleCampaign(ctx, page.CampaignID, scheduleTime); err != nil {
		if handleErr := s.actionFailure(result, err); handleErr != nil {
			return nil, handleErr
		}
		s.observe(ActionSchedule, result)
		return result, nil
	}

	s.audit.Log(ctx, domain.AuditLogEntry{
		PageID: page.ID,
		Action: domain.AuditScheduleCampaign,
		Data:   map[string]string{"schedule_time": scheduleTime.Format(time.RFC3339)},
	})
	result.success(fmt.Sprintf("Campaign scheduled to send at %s %s",
		scheduleTime.Format(scheduleTimeLayout), scheduleTime.Format("MST")))
	s.observe(ActionSchedule, result)
	return result, nil
}

// Unschedule works on the stored campaign ID and does not save.
func (s *CampaignService) Unschedule(ctx context.Context, pageID string) (*ActionResult, error) {
	page, backend, err := s.prepare(ctx, pageID)
	if err != nil {
		return nil, err
	}

	result := &ActionResult{CampaignID: page.CampaignID}
	if strings.TrimSpace(page.CampaignID) == "" {
		result.fail("Newsletter campaign has not been saved yet", domain.NewValidationError("campaign", "campaign has not been saved"))
		s.observe(ActionUnschedule, result)
		return result, nil
	}

	if err := backend.UnscheduleCampaign(ctx, page.CampaignID); err != nil {
		if handleErr := s.actionFailure(result, err); handleErr != nil {
			return nil, handleErr
		}
		s.observe(ActionUnschedule, result)
		return result, nil
	}

	s.audit.Log(ctx, domain.AuditLogEntry{PageID: page.ID, Action: domain.AuditUnscheduleCampaign})
	result.success("Newsletter campaign has been unscheduled")
	s.observe(ActionUnschedule, result)
	return result, nil
}

// GetCampaignStatus fetches the remote campaign and the recipients' member
// count concurrently.
func (s *CampaignService) GetCampaignStatus(ctx context.Context, pageID string) (*CampaignStatus, error) {
	page, backend, err := s.prepare(ctx, pageID)
	if err != nil {
		return nil, err
	}

	status := &CampaignStatus{
		PageID:     page.ID,
		Backend:    backend.Name(),
		CampaignID: page.CampaignID,
	}

	recipients, err := s.latestRecipients(ctx, page.ID)
	if err != nil {
		return nil, err
	}
	status.Recipients = recipients

	g, gctx := errgroup.WithContext(ctx)

	if page.CampaignID != "" {
		g.Go(func() error {
			campaign, err := backend.GetCampaign(gctx, page.CampaignID)
			if err != nil {
				return err
			}
			if campaign == nil {
				return nil
			}

			status.Exists = true
			status.Status = campaign.Status
			status.URL = campaign.URL
			status.IsScheduled = campaign.IsScheduled()
			status.IsSent = campaign.IsSent()
			if campaign.IsSent() {
				report, err := campaign.Report(gctx)
				if err != nil {
					return err
				}
				status.Report = report
			}
			return nil
		})
	}

	if recipients != nil && s.members != nil {
		g.Go(func() error {
			count, err := s.members.MemberCount(gctx, recipients)
			if err != nil {
				return err
			}
			status.MemberCount = count
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return status, nil
}

// History returns the page's audit log entries, newest first.
func (s *CampaignService) History(ctx context.Context, pageID string, limit int) ([]domain.AuditLogEntry, error) {
	pageID = strings.TrimSpace(pageID)
	if pageID == "" {
		return nil, fmt.Errorf("%w: page id is required", domain.ErrValidation)
	}
	if s.history == nil {
		return []domain.AuditLogEntry{}, nil
	}
	if _, err := s.pages.GetByID(ctx, pageID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return s.history.ListByPage(ctx, pageID, limit)
}

func (s *CampaignService) prepare(ctx context.Context, pageID string) (*domain.NewsletterPage, provider.Backend, error) {
	pageID = strings.TrimSpace(pageID)
	if pageID == "" {
		return nil, nil, fmt.Errorf("%w: page id is required", domain.ErrValidation)
	}

	page, err := s.pages.GetByID(ctx, pageID)
	if err != nil {
		return nil, nil, err
	}

	backend, err := s.backends()
	if err != nil {
		return nil, nil, err
	}
	return page, backend, nil
}

// saveCampaign records a backend or validation failure on result and returns
// any other error. On success page.CampaignID holds the saved ID.
func (s *CampaignService) saveCampaign(
	ctx context.Context,
	page *domain.NewsletterPage,
	backend provider.Backend,
	result *ActionResult,
) error {
	logger := observability.WithContextLogger(s.logger, ctx).With(zap.String("backend", backend.Name()))

	revision, err := s.pages.GetLatestRevision(ctx, page.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			result.fail("Save the page before saving the newsletter campaign", domain.NewValidationError("revision", "page has no saved revision"))
			return nil
		}
		return err
	}

	recipients, err := s.revisionRecipients(ctx, revision)
	if err != nil {
		return err
	}
	if err := backend.ValidateRecipients(recipients); err != nil {
		return s.actionFailure(result, err)
	}

	html, err := s.renderer.Render(revision)
	if err != nil {
		return err
	}

	subject := revision.NewsletterSubject()
	campaignID, err := backend.SaveCampaign(ctx, provider.SaveCampaignInput{
		CampaignID: page.CampaignID,
		Name:       page.Title,
		Recipients: recipients,
		Subject:    subject,
		HTML:       html,
	})
	if err != nil {
		logger.Warn("campaign save failed", zap.String("campaignId", page.CampaignID), zap.Error(err))
		return s.actionFailure(result, err)
	}

	if err := s.pages.SetCampaignID(ctx, page.ID, campaignID); err != nil {
		return fmt.Errorf("failed to store campaign id: %w", err)
	}
	if page.CampaignID != "" && page.CampaignID != campaignID {
		logger.Info("campaign recreated", zap.String("previousCampaignId", page.CampaignID), zap.String("campaignId", campaignID))
	}
	page.CampaignID = campaignID
	result.CampaignID = campaignID

	revisionID := revision.ID
	s.audit.Log(ctx, domain.AuditLogEntry{
		PageID:     page.ID,
		RevisionID: &revisionID,
		Action:     domain.AuditSaveCampaign,
		Timestamp:  revision.CreatedAt,
	})

	result.success(fmt.Sprintf("Newsletter campaign '%s' has been saved to %s", subject, backend.Name()))
	return nil
}

// actionFailure turns backend and validation errors into a user message.
// Anything else, configuration errors included, is returned unchanged.
func (s *CampaignService) actionFailure(result *ActionResult, err error) error {
	var backendErr *provider.BackendError
	if errors.As(err, &backendErr) {
		result.fail(backendErr.Message, err)
		return nil
	}

	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		result.fail(validationErr.Message, err)
		return nil
	}

	return err
}

func (s *CampaignService) latestRecipients(ctx context.Context, pageID string) (*domain.Recipients, error) {
	revision, err := s.pages.GetLatestRevision(ctx, pageID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return s.revisionRecipients(ctx, revision)
}

// revisionRecipients returns nil when the revision has no recipients or they
// were deleted since the revision was saved.
func (s *CampaignService) revisionRecipients(ctx context.Context, revision *domain.PageRevision) (*domain.Recipients, error) {
	if revision == nil || revision.RecipientsID == nil || s.recipients == nil {
		return nil, nil
	}

	recipients, err := s.recipients.GetByID(ctx, *revision.RecipientsID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return recipients, nil
}

func (s *CampaignService) observe(action string, result *ActionResult) {
	if s.recorder == nil || result == nil {
		return
	}
	s.recorder.IncCampaignAction(action, !result.Failed())
}
