package provider

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/kursadbilgin/newsletter-dispatch/internal/config"
)

func TestFactoryDefaultsToMailchimp(t *testing.T) {
	t.Parallel()

	factory := NewFactory(config.Backend{
		MailchimpAPIKey: testMailchimpKey,
		FromName:        "Newsletter",
		ReplyTo:         "news@example.com",
	}, ClientOptions{}, nil)

	backend, err := factory.New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if backend.Name() != "mailchimp" {
		t.Fatalf("Name() = %q, want mailchimp", backend.Name())
	}
}

func TestFactoryBuildsListmonk(t *testing.T) {
	t.Parallel()

	factory := NewFactory(config.Backend{
		Name:            "Listmonk",
		ListmonkBaseURL: "https://lists.example.com",
		ListmonkUser:    "api",
		ListmonkAPIKey:  "secret",
	}, ClientOptions{}, nil)

	backend, err := factory.New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if backend.Name() != "listmonk" {
		t.Fatalf("Name() = %q, want listmonk", backend.Name())
	}
}

func TestFactoryConfigErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		settings    config.Backend
		wantSetting string
	}{
		{name: "missing mailchimp key", settings: config.Backend{}, wantSetting: "MAILCHIMP_API_KEY"},
		{name: "malformed mailchimp key", settings: config.Backend{MailchimpAPIKey: "nope"}, wantSetting: "MAILCHIMP_API_KEY"},
		{name: "unknown backend", settings: config.Backend{Name: "sendgrid"}, wantSetting: "CAMPAIGN_BACKEND"},
		{name: "missing listmonk url", settings: config.Backend{Name: "listmonk", ListmonkUser: "u", ListmonkAPIKey: "k"}, wantSetting: "LISTMONK_BASE_URL"},
		{name: "missing listmonk user", settings: config.Backend{Name: "listmonk", ListmonkBaseURL: "http://x", ListmonkAPIKey: "k"}, wantSetting: "LISTMONK_USER"},
		{
			name: "bad listmonk headers",
			settings: config.Backend{
				Name: "listmonk", ListmonkBaseURL: "http://x", ListmonkUser: "u", ListmonkAPIKey: "k",
				ListmonkHeaders: "{not json",
			},
			wantSetting: "LISTMONK_HEADERS",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewFactory(tc.settings, ClientOptions{}, nil).New()
			var configErr *ConfigError
			if !errors.As(err, &configErr) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
			if configErr.Setting != tc.wantSetting {
				t.Fatalf("Setting = %q, want %q", configErr.Setting, tc.wantSetting)
			}
			if IsBackendError(err) {
				t.Fatal("configuration errors must not be BackendErrors")
			}
		})
	}
}

func TestParseListmonkHeaders(t *testing.T) {
	t.Parallel()

	got, err := ParseListmonkHeaders("")
	if err != nil {
		t.Fatalf("ParseListmonkHeaders(\"\") error = %v", err)
	}
	if diff := cmp.Diff(DefaultListmonkHeaders(), got); diff != "" {
		t.Fatalf("default headers mismatch (-want +got):\n%s", diff)
	}

	got, err = ParseListmonkHeaders(`[{"X-Mailer":"newsletter"}]`)
	if err != nil {
		t.Fatalf("ParseListmonkHeaders() error = %v", err)
	}
	if diff := cmp.Diff([]map[string]string{{"X-Mailer": "newsletter"}}, got); diff != "" {
		t.Fatalf("headers mismatch (-want +got):\n%s", diff)
	}
}
