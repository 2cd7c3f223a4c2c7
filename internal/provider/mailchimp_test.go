package provider

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
)

const testMailchimpKey = "0123456789abcdef0123456789abcdef-us21"

func newTestMailchimpBackend(t *testing.T, api *fakeAPI) *MailchimpBackend {
	t.Helper()

	client, err := NewMailchimpClient(testMailchimpKey, ClientOptions{BaseURL: api.URL(), Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("NewMailchimpClient() error = %v", err)
	}

	backend, err := NewMailchimpBackend(client, "Newsletter", "news@example.com", nil)
	if err != nil {
		t.Fatalf("NewMailchimpBackend() error = %v", err)
	}
	return backend
}

func TestMailchimpDatacenter(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		apiKey  string
		want    string
		wantErr bool
	}{
		{name: "valid key", apiKey: testMailchimpKey, want: "us21"},
		{name: "missing suffix", apiKey: "0123456789abcdef0123456789abcdef", wantErr: true},
		{name: "short key", apiKey: "abc-us1", wantErr: true},
		{name: "uppercase hex", apiKey: "0123456789ABCDEF0123456789ABCDEF-us1", wantErr: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := MailchimpDatacenter(tc.apiKey)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("MailchimpDatacenter(%q) expected error", tc.apiKey)
				}
				return
			}
			if err != nil {
				t.Fatalf("MailchimpDatacenter() error = %v", err)
			}
			if got != tc.want {
				t.Fatalf("datacenter = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestMailchimpGetAudiences(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	api.handle("GET /lists", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("count") != "1000" {
			t.Errorf("count = %q, want 1000", r.URL.Query().Get("count"))
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user == "" || pass != testMailchimpKey {
			t.Errorf("basic auth = (%q, %q, %v), want api key as password", user, pass, ok)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"lists": []map[string]any{
				{"id": "be13e6ca91", "name": "Torchbox", "stats": map[string]any{"member_count": 8}},
				{"id": "9af08f2afa", "name": "Other", "stats": map[string]any{"member_count": 13}},
			},
		})
	})

	backend := newTestMailchimpBackend(t, api)

	got, err := backend.GetAudiences(context.Background())
	if err != nil {
		t.Fatalf("GetAudiences() error = %v", err)
	}

	want := []domain.Audience{
		{ID: "be13e6ca91", Name: "Torchbox", MemberCount: 8},
		{ID: "9af08f2afa", Name: "Other", MemberCount: 13},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("GetAudiences() mismatch (-want +got):\n%s", diff)
	}
}

func TestMailchimpGetAudiencesBackendError(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	api.handle("GET /lists", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"title":  "API Key Invalid",
			"detail": "Your API key may be invalid, or you've attempted to access the wrong datacenter.",
		})
	})

	backend := newTestMailchimpBackend(t, api)

	_, err := backend.GetAudiences(context.Background())
	var backendErr *BackendError
	if !errors.As(err, &backendErr) {
		t.Fatalf("expected BackendError, got %T (%v)", err, err)
	}
	if backendErr.Error() != "Error while fetching audiences" {
		t.Fatalf("message = %q", backendErr.Error())
	}
	if backendErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("StatusCode = %d, want 401", backendErr.StatusCode)
	}
	if !strings.Contains(backendErr.Text, "API key may be invalid") {
		t.Fatalf("Text = %q, want provider detail", backendErr.Text)
	}
}

func TestMailchimpGetAudienceSegments(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	api.handle("GET /lists/be13e6ca91/segments", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("type") != mailchimpSegmentTypes {
			t.Errorf("type = %q, want %q", r.URL.Query().Get("type"), mailchimpSegmentTypes)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"list_id": "be13e6ca91",
			"segments": []map[string]any{
				{"id": 2103836, "member_count": 3, "name": "Segment One"},
				{"id": 2103837, "member_count": 1, "name": "Segment Two"},
			},
		})
	})

	backend := newTestMailchimpBackend(t, api)

	got, err := backend.GetAudienceSegments(context.Background(), "be13e6ca91")
	if err != nil {
		t.Fatalf("GetAudienceSegments() error = %v", err)
	}

	want := []domain.AudienceSegment{
		{ID: "be13e6ca91/2103836", Name: "Segment One", MemberCount: 3},
		{ID: "be13e6ca91/2103837", Name: "Segment Two", MemberCount: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("GetAudienceSegments() mismatch (-want +got):\n%s", diff)
	}
}

func TestMailchimpGetAudienceSegmentsListNotFound(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	api.handle("GET /lists/missing/segments", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"title": "Resource Not Found"})
	})

	backend := newTestMailchimpBackend(t, api)

	_, err := backend.GetAudienceSegments(context.Background(), "missing")
	if !errors.Is(err, ErrAudienceNotFound) {
		t.Fatalf("error = %v, want ErrAudienceNotFound", err)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatal("ErrAudienceNotFound should match domain.ErrNotFound")
	}
	if IsBackendError(err) {
		t.Fatal("not-found must not be reported as a BackendError")
	}
}

func TestMailchimpSaveCampaignCreatesNewCampaign(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	api.handle("POST /campaigns", func(w http.ResponseWriter, r *http.Request) {
		var body mailchimpCampaignRequest
		decodeBody(t, r, &body)
		if body.Type != "regular" {
			t.Errorf("type = %q, want regular", body.Type)
		}
		if body.Settings.SubjectLine != "Weekly" || body.Settings.Title != "Issue 1" {
			t.Errorf("settings = %+v", body.Settings)
		}
		if body.Settings.FromName != "Newsletter" || body.Settings.ReplyTo != "news@example.com" {
			t.Errorf("sender = %+v", body.Settings)
		}
		if body.Recipients == nil || body.Recipients.ListID != "be13e6ca91" {
			t.Errorf("recipients = %+v", body.Recipients)
		} else if body.Recipients.SegmentOpts == nil || body.Recipients.SegmentOpts.SavedSegmentID != 42 {
			t.Errorf("segment_opts = %+v", body.Recipients.SegmentOpts)
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": "c-new", "web_id": 7, "status": "save"})
	})
	api.handle("PUT /campaigns/c-new/content", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		decodeBody(t, r, &body)
		if body["html"] != "<p>hi</p>" {
			t.Errorf("html = %q", body["html"])
		}
		writeJSON(w, http.StatusOK, map[string]any{})
	})

	backend := newTestMailchimpBackend(t, api)
	segment := "be13e6ca91/42"

	id, err := backend.SaveCampaign(context.Background(), SaveCampaignInput{
		Name:       "Issue 1",
		Subject:    "Weekly",
		HTML:       "<p>hi</p>",
		Recipients: &domain.Recipients{Name: "r", AudienceID: "be13e6ca91", SegmentID: &segment},
	})
	if err != nil {
		t.Fatalf("SaveCampaign() error = %v", err)
	}
	if id != "c-new" {
		t.Fatalf("campaign id = %q, want c-new", id)
	}
}

func TestMailchimpSaveCampaignRecreatesMissingCampaign(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	api.handle("PATCH /campaigns/c-old", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		decodeBody(t, r, &body)
		if _, ok := body["type"]; ok {
			t.Error("update body should not carry a campaign type")
		}
		writeJSON(w, http.StatusNotFound, map[string]any{"title": "Resource Not Found"})
	})
	api.handle("POST /campaigns", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": "c-new", "status": "save"})
	})
	api.handle("PUT /campaigns/c-new/content", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{})
	})
	api.handle("GET /campaigns/c-old", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"title": "Resource Not Found"})
	})
	api.handle("GET /campaigns/c-new", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": "c-new", "web_id": 9, "status": "save"})
	})

	backend := newTestMailchimpBackend(t, api)
	ctx := context.Background()

	id, err := backend.SaveCampaign(ctx, SaveCampaignInput{CampaignID: "c-old", Name: "Issue", Subject: "S", HTML: "<p/>"})
	if err != nil {
		t.Fatalf("SaveCampaign() error = %v", err)
	}
	if id == "c-old" || id != "c-new" {
		t.Fatalf("campaign id = %q, want a new id c-new", id)
	}

	old, err := backend.GetCampaign(ctx, "c-old")
	if err != nil {
		t.Fatalf("GetCampaign(old) error = %v", err)
	}
	if old != nil {
		t.Fatalf("GetCampaign(old) = %+v, want nil", old)
	}

	current, err := backend.GetCampaign(ctx, id)
	if err != nil {
		t.Fatalf("GetCampaign(new) error = %v", err)
	}
	if current == nil || current.ID != "c-new" {
		t.Fatalf("GetCampaign(new) = %+v", current)
	}
	if current.URL != "https://us21.admin.mailchimp.com/campaigns/show/?id=9" {
		t.Fatalf("URL = %q", current.URL)
	}
}

func TestMailchimpSaveCampaignUpdateFailure(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	api.handle("PATCH /campaigns/c1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"detail": "boom"})
	})

	backend := newTestMailchimpBackend(t, api)

	_, err := backend.SaveCampaign(context.Background(), SaveCampaignInput{CampaignID: "c1", Name: "n", Subject: "s"})
	var backendErr *BackendError
	if !errors.As(err, &backendErr) {
		t.Fatalf("expected BackendError, got %v", err)
	}
	if backendErr.Message != "Error while updating campaign" {
		t.Fatalf("message = %q", backendErr.Message)
	}
	if backendErr.StatusCode != http.StatusInternalServerError || backendErr.Text != "boom" {
		t.Fatalf("diagnostics = (%d, %q)", backendErr.StatusCode, backendErr.Text)
	}
	if !IsTransient(err) {
		t.Fatal("5xx should be transient")
	}
	if api.callCount("POST /campaigns") != 0 {
		t.Fatal("a failed update must not create a campaign")
	}
}

func TestMailchimpSaveCampaignRequiresSenderIdentity(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	client, err := NewMailchimpClient(testMailchimpKey, ClientOptions{BaseURL: api.URL()})
	if err != nil {
		t.Fatalf("NewMailchimpClient() error = %v", err)
	}
	backend, err := NewMailchimpBackend(client, "", "news@example.com", nil)
	if err != nil {
		t.Fatalf("NewMailchimpBackend() error = %v", err)
	}

	_, err = backend.SaveCampaign(context.Background(), SaveCampaignInput{Name: "n", Subject: "s"})
	if !IsConfigError(err) {
		t.Fatalf("error = %v, want ConfigError", err)
	}
	if api.totalCalls() != 0 {
		t.Fatal("no request should be made without sender identity")
	}
}

func TestMailchimpCampaignStatus(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		status        string
		wantScheduled bool
		wantSent      bool
	}{
		{status: "save"},
		{status: "schedule", wantScheduled: true},
		{status: "paused"},
		{status: "sending", wantSent: true},
		{status: "sent", wantSent: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.status, func(t *testing.T) {
			t.Parallel()

			api := newFakeAPI(t)
			api.handle("GET /campaigns/c1", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]any{"id": "c1", "web_id": 1, "status": tc.status})
			})

			campaign, err := newTestMailchimpBackend(t, api).GetCampaign(context.Background(), "c1")
			if err != nil {
				t.Fatalf("GetCampaign() error = %v", err)
			}
			if campaign.IsScheduled() != tc.wantScheduled {
				t.Fatalf("IsScheduled() = %v, want %v", campaign.IsScheduled(), tc.wantScheduled)
			}
			if campaign.IsSent() != tc.wantSent {
				t.Fatalf("IsSent() = %v, want %v", campaign.IsSent(), tc.wantSent)
			}
		})
	}
}

func TestMailchimpCampaignReport(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	api.handle("GET /campaigns/c1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": "c1", "web_id": 1, "status": "sent"})
	})
	api.handle("GET /reports/c1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"emails_sent": 120,
			"send_time":   "2024-05-01T16:30:00+00:00",
			"bounces":     map[string]any{"hard_bounces": 2, "soft_bounces": 3},
			"opens":       map[string]any{"unique_opens": 60},
			"clicks":      map[string]any{"unique_clicks": 12},
		})
	})

	ctx := context.Background()
	campaign, err := newTestMailchimpBackend(t, api).GetCampaign(ctx, "c1")
	if err != nil {
		t.Fatalf("GetCampaign() error = %v", err)
	}

	report, err := campaign.Report(ctx)
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	if report.EmailsSent != 120 || report.Opens != 60 || report.Clicks != 12 || report.Bounces != 5 {
		t.Fatalf("report = %+v", report)
	}
	if report.SendTime == nil || !report.SendTime.Equal(time.Date(2024, 5, 1, 16, 30, 0, 0, time.UTC)) {
		t.Fatalf("SendTime = %v", report.SendTime)
	}
}

func TestMailchimpValidateScheduleTime(t *testing.T) {
	t.Parallel()

	backend := &MailchimpBackend{}
	day := func(h, m, s int) time.Time { return time.Date(2024, 5, 1, h, m, s, 0, time.UTC) }

	testCases := []struct {
		name        string
		at          time.Time
		wantNearest string
	}{
		{name: "quarter hour", at: day(16, 30, 0)},
		{name: "on the hour", at: day(17, 0, 0)},
		{name: "one minute past", at: day(16, 31, 0), wantNearest: "16:30"},
		{name: "rounds up", at: day(16, 38, 0), wantNearest: "16:45"},
		{name: "seconds off", at: day(16, 30, 5), wantNearest: "16:30"},
		{name: "crosses the hour", at: day(16, 53, 0), wantNearest: "17:00"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := backend.ValidateScheduleTime(tc.at)
			if tc.wantNearest == "" {
				if err != nil {
					t.Fatalf("ValidateScheduleTime() error = %v", err)
				}
				return
			}

			var backendErr *BackendError
			if !errors.As(err, &backendErr) {
				t.Fatalf("expected BackendError, got %v", err)
			}
			if !strings.Contains(backendErr.Message, "15-minute intervals") {
				t.Fatalf("message %q should state the requirement", backendErr.Message)
			}
			if !strings.Contains(backendErr.Message, tc.wantNearest) {
				t.Fatalf("message %q should suggest %s", backendErr.Message, tc.wantNearest)
			}
		})
	}
}

func TestMailchimpScheduleCampaignInvalidTimeSkipsRemoteCall(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	backend := newTestMailchimpBackend(t, api)

	err := backend.ScheduleCampaign(context.Background(), "c1", time.Date(2024, 5, 1, 16, 31, 0, 0, time.UTC))
	if !IsBackendError(err) {
		t.Fatalf("error = %v, want BackendError", err)
	}
	if api.totalCalls() != 0 {
		t.Fatalf("remote calls = %d, want 0", api.totalCalls())
	}
}

func TestMailchimpScheduleCampaign(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	api.handle("POST /campaigns/c1/actions/schedule", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		decodeBody(t, r, &body)
		if body["schedule_time"] != "2024-05-01T16:30:00Z" {
			t.Errorf("schedule_time = %q", body["schedule_time"])
		}
		w.WriteHeader(http.StatusNoContent)
	})

	berlin := time.FixedZone("CEST", 2*60*60)
	err := newTestMailchimpBackend(t, api).ScheduleCampaign(context.Background(), "c1", time.Date(2024, 5, 1, 18, 30, 0, 0, berlin))
	if err != nil {
		t.Fatalf("ScheduleCampaign() error = %v", err)
	}
}

func TestMailchimpUnscheduleRejected(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	api.handle("POST /campaigns/c1/actions/unschedule", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"title":  "Bad Request",
			"detail": "Cannot unschedule a campaign that is not scheduled.",
		})
	})

	err := newTestMailchimpBackend(t, api).UnscheduleCampaign(context.Background(), "c1")
	var backendErr *BackendError
	if !errors.As(err, &backendErr) {
		t.Fatalf("expected BackendError, got %v", err)
	}
	if !strings.Contains(backendErr.Message, "Cannot unschedule a campaign that is not scheduled.") {
		t.Fatalf("message = %q, want provider text embedded", backendErr.Message)
	}
}

func TestMailchimpSendTestEmail(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	api.handle("POST /campaigns/c1/actions/test", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			TestEmails []string `json:"test_emails"`
			SendType   string   `json:"send_type"`
		}
		decodeBody(t, r, &body)
		if len(body.TestEmails) != 1 || body.TestEmails[0] != "qa@example.com" || body.SendType != "html" {
			t.Errorf("body = %+v", body)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := newTestMailchimpBackend(t, api).SendTestEmail(context.Background(), "c1", "qa@example.com"); err != nil {
		t.Fatalf("SendTestEmail() error = %v", err)
	}
}

func TestMailchimpNonJSONErrorBodyDegradesToEmptyText(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	api.handle("POST /campaigns/c1/actions/send", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	})

	err := newTestMailchimpBackend(t, api).SendCampaign(context.Background(), "c1")
	var backendErr *BackendError
	if !errors.As(err, &backendErr) {
		t.Fatalf("expected BackendError, got %v", err)
	}
	if backendErr.Text != "" {
		t.Fatalf("Text = %q, want empty", backendErr.Text)
	}
	if backendErr.Message != "Error while sending campaign" {
		t.Fatalf("message = %q", backendErr.Message)
	}
}

func TestMailchimpValidateRecipients(t *testing.T) {
	t.Parallel()

	backend := &MailchimpBackend{}
	segment := func(s string) *string { return &s }

	if err := backend.ValidateRecipients(nil); err != nil {
		t.Fatalf("nil recipients error = %v", err)
	}
	if err := backend.ValidateRecipients(&domain.Recipients{AudienceID: "A1", SegmentID: segment("A1/12")}); err != nil {
		t.Fatalf("valid segment error = %v", err)
	}

	err := backend.ValidateRecipients(&domain.Recipients{AudienceID: "A1", SegmentID: segment("A2/12")})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("cross-audience segment error = %v, want validation error", err)
	}
	if !strings.Contains(err.Error(), "not part of the selected audience") {
		t.Fatalf("error = %q", err.Error())
	}
}
