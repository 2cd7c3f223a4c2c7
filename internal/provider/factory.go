package provider

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kursadbilgin/newsletter-dispatch/internal/config"
	"go.uber.org/zap"
)

const DefaultBackend = mailchimpName

// Factory builds the configured Backend. Settings are validated on every
// New call, so a missing value surfaces as a ConfigError at use time.
type Factory struct {
	settings config.Backend
	opts     ClientOptions
	logger   *zap.Logger
}

func NewFactory(settings config.Backend, opts ClientOptions, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{settings: settings, opts: opts, logger: logger}
}

func (f *Factory) New() (Backend, error) {
	name := strings.ToLower(strings.TrimSpace(f.settings.Name))
	if name == "" {
		name = DefaultBackend
	}

	switch name {
	case mailchimpName:
		return f.newMailchimp()
	case listmonkName:
		return f.newListmonk()
	default:
		return nil, &ConfigError{Setting: "CAMPAIGN_BACKEND", Reason: fmt.Sprintf("unknown backend %q", f.settings.Name)}
	}
}

func (f *Factory) newMailchimp() (Backend, error) {
	apiKey := strings.TrimSpace(f.settings.MailchimpAPIKey)
	if apiKey == "" {
		return nil, &ConfigError{Setting: "MAILCHIMP_API_KEY"}
	}

	client, err := NewMailchimpClient(apiKey, f.opts)
	if err != nil {
		return nil, err
	}
	return NewMailchimpBackend(client, f.settings.FromName, f.settings.ReplyTo, f.logger)
}

func (f *Factory) newListmonk() (Backend, error) {
	required := []struct {
		setting string
		value   string
	}{
		{"LISTMONK_BASE_URL", f.settings.ListmonkBaseURL},
		{"LISTMONK_USER", f.settings.ListmonkUser},
		{"LISTMONK_API_KEY", f.settings.ListmonkAPIKey},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return nil, &ConfigError{Setting: r.setting}
		}
	}

	headers, err := ParseListmonkHeaders(f.settings.ListmonkHeaders)
	if err != nil {
		return nil, err
	}

	client, err := NewListmonkClient(f.settings.ListmonkBaseURL, f.settings.ListmonkUser, f.settings.ListmonkAPIKey, f.opts)
	if err != nil {
		return nil, err
	}
	return NewListmonkBackend(client, f.settings.FromName, f.settings.ReplyTo, headers, f.logger)
}

// ParseListmonkHeaders decodes the LISTMONK_HEADERS JSON array. An empty
// value selects DefaultListmonkHeaders.
func ParseListmonkHeaders(raw string) ([]map[string]string, error) {
	if strings.TrimSpace(raw) == "" {
		return DefaultListmonkHeaders(), nil
	}

	var headers []map[string]string
	if err := json.Unmarshal([]byte(raw), &headers); err != nil {
		return nil, &ConfigError{Setting: "LISTMONK_HEADERS", Reason: "expected a JSON array of objects"}
	}
	return headers, nil
}
