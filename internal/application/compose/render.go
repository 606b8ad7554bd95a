package compose

import (
	"bytes"
	"fmt"
	"html/template"

	"parishweb/internal/domain/recipient"
)

// Placeholder is shown in the recipient list while nothing is selected.
const Placeholder = `<small class="text-muted">Selected recipients will appear here...</small>`

var tmpl = template.Must(template.New("compose").Funcs(template.FuncMap{
	"badgeClass": BadgeClass,
	"badgeTitle": BadgeTitle,
}).Parse(`
{{- define "suggestion" -}}
<strong>{{.FullName}}</strong><br><small class="text-muted">{{if .HasEmail}}{{.Email}}{{else}}No email{{end}} | {{.Status}} | {{with .HouseholdName}}{{.}}{{else}}No household{{end}}</small>
{{- end -}}
{{- define "badge" -}}
{{.FullName}}{{if not .HasEmail}} (no email){{end}}<i class="bi bi-x-circle ms-1"></i>
{{- end -}}
{{- define "badges" -}}
{{range .}}<span class="badge {{badgeClass .}} recipient-badge" data-recipient-id="{{.ID}}" title="{{badgeTitle .}}">{{template "badge" .}}</span>{{end}}
{{- end -}}
`))

// BadgeClass returns the badge colour classes for a recipient.
func BadgeClass(r recipient.Recipient) string {
	if r.HasEmail() {
		return "bg-success"
	}
	return "bg-warning text-dark"
}

// BadgeTitle returns the badge tooltip.
func BadgeTitle(r recipient.Recipient) string {
	if r.HasEmail() {
		return r.Email
	}
	return "No email on file"
}

func execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// RenderSuggestion renders the inside of one autocomplete entry.
func RenderSuggestion(r recipient.Recipient) (string, error) {
	return execute("suggestion", r)
}

// RenderBadge renders the inside of one recipient badge.
func RenderBadge(r recipient.Recipient) (string, error) {
	return execute("badge", r)
}

// RenderBadges renders the recipient list, or Placeholder when empty.
func RenderBadges(selected []recipient.Recipient) (string, error) {
	if len(selected) == 0 {
		return Placeholder, nil
	}
	return execute("badges", selected)
}
