package service

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
)

const newsletterLayout = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{ .Subject }}</title>
</head>
<body>
{{- if .Preheader }}
<div style="display:none;max-height:0;overflow:hidden;">{{ .Preheader }}</div>
{{- end }}
{{ .Body }}
</body>
</html>
`

// Renderer wraps a revision's body in the newsletter email layout.
type Renderer struct {
	layout *template.Template
}

func NewRenderer() (*Renderer, error) {
	layout, err := template.New("newsletter").Parse(newsletterLayout)
	if err != nil {
		return nil, fmt.Errorf("failed to parse newsletter layout: %w", err)
	}
	return &Renderer{layout: layout}, nil
}

// Render produces the campaign HTML. The revision body is CMS output and is
// inserted unescaped; the subject is escaped.
func (r *Renderer) Render(revision *domain.PageRevision) (string, error) {
	if revision == nil {
		return "", fmt.Errorf("%w: revision is required", domain.ErrValidation)
	}

	data := struct {
		Subject   string
		Preheader string
		Body      template.HTML
	}{
		Subject: revision.NewsletterSubject(),
		Body:    template.HTML(revision.HTML),
	}
	if revision.Subject != "" && revision.Title != "" && revision.Subject != revision.Title {
		data.Preheader = revision.Title
	}

	var buf bytes.Buffer
	if err := r.layout.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render newsletter html: %w", err)
	}
	return buf.String(), nil
}
