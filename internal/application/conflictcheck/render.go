package conflictcheck

import (
	"bytes"
	"fmt"
	"html/template"

	"parishweb/internal/domain/conflict"
)

var panelTmpl = template.Must(template.New("panel").Parse(
	`<div class="alert alert-warning alert-dismissible fade show" role="alert">` +
		`<strong>⚠️ Scheduling Conflict Detected!</strong><br>` +
		`Found {{.ConflictCount}} conflict(s):` +
		`<button type="button" class="btn-close" data-bs-dismiss="alert" aria-label="Close"></button>` +
		`{{with .DatabaseConflicts}}<div class="mt-2"><strong>In Local Calendar:</strong><ul class="mb-0">` +
		`{{range .}}<li><strong>{{.ParishionerName}}</strong> - {{.EventTitle}} on {{.EventDate}} {{template "when" .}}</li>{{end}}` +
		`</ul></div>{{end}}` +
		`{{with .GoogleCalendarConflicts}}<div class="mt-2"><strong>In Google Calendar:</strong><ul class="mb-0">` +
		`{{range .}}<li><strong>{{.EventTitle}}</strong> on {{.EventDate}} {{template "when" .}}</li>{{end}}` +
		`</ul></div>{{end}}` +
		`<div class="mt-2"><small>You can still create this event if needed.</small></div>` +
		`</div>` +
		`{{define "when"}}{{if .IsAllDay}}(all-day){{else}}at {{.EventTime}}{{end}}{{end}}`,
))

// RenderPanel renders the warning markup for a report with conflicts.
// Backend-supplied names and titles are HTML-escaped.
// PRE: r.HasConflicts
// POST: output is identical for identical reports
func RenderPanel(r conflict.Report) (string, error) {
	var buf bytes.Buffer
	if err := panelTmpl.Execute(&buf, r); err != nil {
		return "", fmt.Errorf("render conflict panel: %w", err)
	}
	return buf.String(), nil
}
