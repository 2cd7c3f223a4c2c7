package service

import (
	"context"
	"errors"
	"testing"

	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
	"github.com/kursadbilgin/newsletter-dispatch/internal/provider"
	"github.com/kursadbilgin/newsletter-dispatch/internal/repository"
)

func TestRecipientsServiceCreateValidatesSegmentAudience(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		segmentID *string
		wantErr   bool
	}{
		{name: "no segment", segmentID: nil},
		{name: "blank segment", segmentID: strPtr("  ")},
		{name: "segment of audience", segmentID: strPtr("A1/S1")},
		{name: "segment of other audience", segmentID: strPtr("A2/S1"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := newFakeRecipientsRepo()
			svc, err := NewRecipientsService(repo, nil, nil, nil)
			if err != nil {
				t.Fatalf("NewRecipientsService() error = %v", err)
			}

			created, err := svc.Create(context.Background(), &domain.Recipients{
				Name:       "Members",
				AudienceID: "A1",
				SegmentID:  tt.segmentID,
			})
			if tt.wantErr {
				var validationErr *domain.ValidationError
				if !errors.As(err, &validationErr) {
					t.Fatalf("Create() error = %v, want ValidationError", err)
				}
				if validationErr.Field != "segment" || validationErr.Message != domain.SegmentNotInAudienceMessage {
					t.Fatalf("validation error = %+v", validationErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			if created.ID == "" {
				t.Fatal("id should be generated")
			}
			if _, ok := repo.items[created.ID]; !ok {
				t.Fatal("recipients should be stored")
			}
		})
	}
}

func TestRecipientsServiceCreateAppliesBackendRules(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		validateRecipientsFn: func(r *domain.Recipients) error {
			if r.HasSegment() {
				return domain.NewValidationError("segment", "listmonk does not support segments")
			}
			return nil
		},
	}
	svc, err := NewRecipientsService(newFakeRecipientsRepo(), func() (provider.Backend, error) { return backend, nil }, nil, nil)
	if err != nil {
		t.Fatalf("NewRecipientsService() error = %v", err)
	}

	_, err = svc.Create(context.Background(), &domain.Recipients{Name: "n", AudienceID: "3", SegmentID: strPtr("3/1")})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Create() error = %v, want ErrValidation", err)
	}
}

func TestRecipientsServiceDetailIncludesMemberCount(t *testing.T) {
	t.Parallel()

	repo := newFakeRecipientsRepo()
	repo.items["r1"] = &domain.Recipients{ID: "r1", Name: "All", AudienceID: "A1"}
	count := 17

	svc, err := NewRecipientsService(repo, nil, &fakeMemberCounter{count: &count}, nil)
	if err != nil {
		t.Fatalf("NewRecipientsService() error = %v", err)
	}

	r, got, err := svc.Detail(context.Background(), "r1")
	if err != nil {
		t.Fatalf("Detail() error = %v", err)
	}
	if r.Name != "All" || got == nil || *got != 17 {
		t.Fatalf("Detail() = %+v, %v", r, got)
	}
}

func TestRecipientsServiceDetailUnknownAudience(t *testing.T) {
	t.Parallel()

	repo := newFakeRecipientsRepo()
	repo.items["r1"] = &domain.Recipients{ID: "r1", Name: "All", AudienceID: "gone"}

	svc, err := NewRecipientsService(repo, nil, &fakeMemberCounter{}, nil)
	if err != nil {
		t.Fatalf("NewRecipientsService() error = %v", err)
	}

	_, got, err := svc.Detail(context.Background(), "r1")
	if err != nil {
		t.Fatalf("Detail() error = %v", err)
	}
	if got != nil {
		t.Fatalf("member count = %v, want nil", *got)
	}
}

func TestRecipientsServiceUpdateAndDelete(t *testing.T) {
	t.Parallel()

	repo := newFakeRecipientsRepo()
	repo.items["r1"] = &domain.Recipients{ID: "r1", Name: "Old", AudienceID: "A1"}
	svc, err := NewRecipientsService(repo, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewRecipientsService() error = %v", err)
	}

	updated, err := svc.Update(context.Background(), &domain.Recipients{ID: "r1", Name: " New ", AudienceID: "A1", SegmentID: strPtr("A1/7")})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Name != "New" || repo.items["r1"].Name != "New" {
		t.Fatalf("updated = %+v", updated)
	}
	if updated.UpdatedAt.IsZero() {
		t.Fatal("UpdatedAt should be set")
	}

	if err := svc.Delete(context.Background(), "r1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := svc.Delete(context.Background(), "r1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestRecipientsServiceListClampsPageSize(t *testing.T) {
	t.Parallel()

	var got repository.RecipientsListParams
	repo := &listCapturingRepo{fakeRecipientsRepo: newFakeRecipientsRepo(), params: &got}
	svc, err := NewRecipientsService(repo, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewRecipientsService() error = %v", err)
	}

	if _, _, err := svc.List(context.Background(), repository.RecipientsListParams{Page: 0, PageSize: 500}); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if got.Page != 1 || got.PageSize != maxRecipientsPageSize {
		t.Fatalf("params = %+v", got)
	}
}

func TestPageServiceCreateAndRevise(t *testing.T) {
	t.Parallel()

	pages := &fakePageRepo{}
	recipients := newFakeRecipientsRepo()
	recipients.items["rcp-1"] = &domain.Recipients{ID: "rcp-1", Name: "All", AudienceID: "A1"}

	svc, err := NewPageService(pages, recipients, nil)
	if err != nil {
		t.Fatalf("NewPageService() error = %v", err)
	}

	page, revision, err := svc.Create(context.Background(), RevisionInput{Title: " Issue 1 ", HTML: "<p>1</p>"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if page.Title != "Issue 1" || revision.PageID != page.ID {
		t.Fatalf("page = %+v, revision = %+v", page, revision)
	}
	if page.LatestRevisionID == nil || *page.LatestRevisionID != revision.ID {
		t.Fatalf("latest revision = %v, want %s", page.LatestRevisionID, revision.ID)
	}

	_, err = svc.CreateRevision(context.Background(), page.ID, RevisionInput{Title: "Issue 1", RecipientsID: strPtr("missing")})
	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) || validationErr.Field != "recipients" {
		t.Fatalf("CreateRevision() error = %v, want recipients validation error", err)
	}

	second, err := svc.CreateRevision(context.Background(), page.ID, RevisionInput{Title: "Issue 1", Subject: "Hello", RecipientsID: strPtr("rcp-1")})
	if err != nil {
		t.Fatalf("CreateRevision() error = %v", err)
	}
	if pages.revision != second || second.Subject != "Hello" {
		t.Fatalf("latest revision = %+v", pages.revision)
	}
}

func TestPageServiceCreateRequiresTitle(t *testing.T) {
	t.Parallel()

	svc, err := NewPageService(&fakePageRepo{}, nil, nil)
	if err != nil {
		t.Fatalf("NewPageService() error = %v", err)
	}
	if _, _, err := svc.Create(context.Background(), RevisionInput{Title: "  "}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Create() error = %v, want ErrValidation", err)
	}
}

type listCapturingRepo struct {
	*fakeRecipientsRepo
	params *repository.RecipientsListParams
}

func (r *listCapturingRepo) List(ctx context.Context, params repository.RecipientsListParams) ([]domain.Recipients, int64, error) {
	*r.params = params
	return r.fakeRecipientsRepo.List(ctx, params)
}

func strPtr(s string) *string { return &s }
