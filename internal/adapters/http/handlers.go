package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/csrf"

	"parishweb/internal/adapters/backend"
	"parishweb/internal/adapters/http/middleware"
	themeStore "parishweb/internal/adapters/storage/theme"
	"parishweb/internal/application/compose"
	"parishweb/internal/application/listutil"
	"parishweb/internal/application/pagination"
	"parishweb/internal/domain/conflict"
	"parishweb/internal/domain/recipient"
	themeDomain "parishweb/internal/domain/theme"
	"parishweb/internal/domain/timeslot"
	"parishweb/internal/domain/upcoming"
)

// perfWindow is the default look-back of /debug/perf.
const perfWindow = 15 * time.Minute

// internalError logs the real error and returns a generic message to the client.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json_encode_failed", "error", err)
	}
}

// renderTemplate executes a page inside the layout.
// Output is buffered; on a template error only the 500 is sent.
func (s *server) renderTemplate(w http.ResponseWriter, r *http.Request, templateName string, data any) {
	current := s.visitorTheme(r)
	funcMap := template.FuncMap{
		"csrfToken":    func() string { return csrf.Token(r) },
		"csrfField":    func() template.HTML { return csrf.TemplateField(r) },
		"currentTheme": func() string { return string(current) },
	}

	tpl, err := template.New("layout.html").Funcs(funcMap).ParseFS(templateFS, "templates/layout.html", "templates/"+templateName)
	if err != nil {
		internalError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		internalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

// visitorTheme returns the stored theme of the requesting browser, or the default.
func (s *server) visitorTheme(r *http.Request) themeDomain.Theme {
	id, ok := middleware.VisitorFromContext(r.Context())
	if !ok {
		return themeDomain.Default
	}
	pref, err := s.deps.Themes.Get(r.Context(), id)
	if err != nil {
		if !errors.Is(err, themeStore.ErrNotFound) {
			slog.Warn("theme_lookup_failed", "visitor_id", id, "error", err)
		}
		return themeDomain.Default
	}
	return pref.Theme
}

// loadRecipients returns the directory, or nil after logging when the backend
// cannot be reached. Pages still render without it.
func (s *server) loadRecipients(ctx context.Context) []recipient.Recipient {
	list, err := s.deps.Recipients.Recipients(ctx)
	if err != nil {
		slog.Error("recipients_load_failed", "error", err)
		return nil
	}
	return list
}

// backendContext carries the visitor's backend session cookies, and no others.
func (s *server) backendContext(r *http.Request) context.Context {
	return backend.WithCookies(r.Context(), backend.SessionCookies(r.Cookies(), s.deps.SessionCookies))
}

func (s *server) handleHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

type dashboardData struct {
	Events      []upcoming.Event
	Unavailable bool
	PerPage     int
	ListID      string
	ItemClass   string
	PageInfoID  string
	PrevID      string
	NextID      string
}

// handleDashboard renders the upcoming-events card. The page script
// paginates the list; a failed load renders an empty card with a notice.
func (s *server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	events, err := s.deps.Upcoming.UpcomingEvents(s.backendContext(r))
	if err != nil {
		slog.Warn("upcoming_events_failed", "error", err)
	}
	data := dashboardData{
		Events:      events,
		Unavailable: err != nil,
		PerPage:     listutil.UpcomingPerPage,
		ListID:      pagination.ListID,
		ItemClass:   pagination.ItemClass,
		PageInfoID:  pagination.PageInfoID,
		PrevID:      pagination.PrevID,
		NextID:      pagination.NextID,
	}
	s.renderTemplate(w, r, "dashboard.html", data)
}

type eventForm struct {
	Title  string
	Fields conflict.Fields
}

type parishionerViewData struct {
	SubjectID    string
	Forms        []eventForm
	TimeOptions  []timeslot.Option
	Participants []recipient.Recipient
}

// handleParishionerView renders the event scheduling page for one parishioner.
func (s *server) handleParishionerView(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		http.Error(w, "parishioner id is required", http.StatusBadRequest)
		return
	}
	data := parishionerViewData{
		SubjectID: id,
		Forms: []eventForm{
			{Title: "Sacrament", Fields: conflict.VariantSacrament.Fields()},
			{Title: "Event", Fields: conflict.VariantRegular.Fields()},
		},
		TimeOptions:  timeslot.Options(),
		Participants: s.loadRecipients(r.Context()),
	}
	s.renderTemplate(w, r, "parishioner_view.html", data)
}

// handleCheckConflicts relays a page's conflict check to the backend under
// the visitor's session and answers with the backend's report as JSON.
// A 4xx from the backend is passed on; anything else unusable gives 502.
func (s *server) handleCheckConflicts(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	snap := conflict.SnapshotFromQuery(r.URL.Query())
	if snap.IsEmpty() {
		http.Error(w, "eventDate is required", http.StatusBadRequest)
		return
	}

	report, err := s.deps.Conflicts.CheckConflicts(s.backendContext(r), id, snap)
	if err != nil {
		var se *backend.StatusError
		switch {
		case errors.Is(err, backend.ErrEmptySubject):
			http.Error(w, "parishioner id is required", http.StatusBadRequest)
		case errors.As(err, &se) && se.Code < 500:
			http.Error(w, http.StatusText(se.Code), se.Code)
		default:
			slog.Warn("conflict_check_failed", "subject_id", id, "error", err)
			http.Error(w, "conflict check unavailable", http.StatusBadGateway)
		}
		return
	}
	if report.DatabaseConflicts == nil {
		report.DatabaseConflicts = []conflict.Entry{}
	}
	if report.GoogleCalendarConflicts == nil {
		report.GoogleCalendarConflicts = []conflict.Entry{}
	}
	writeJSON(w, http.StatusOK, report)
}

type composeData struct {
	SendAction  string
	Badges      template.HTML
	SelectedIDs string
	Statuses    []string
	Search      string
	Results     string
	ResultsList string
	RecipientID string
	FormID      string
	IDsInputID  string
	GroupName   string
	BodyID      string
	PreviewID   string
}

// handleCompose renders the bulk email form, with any preselected recipients
// already shown as badges.
func (s *server) handleCompose(w http.ResponseWriter, r *http.Request) {
	list := s.loadRecipients(r.Context())
	session := compose.NewSession(list)
	session.Preselect(r.URL.Query().Get(compose.PreselectParam))

	badges, err := compose.RenderBadges(session.Selected())
	if err != nil {
		internalError(w, err)
		return
	}
	data := composeData{
		SendAction:  strings.TrimRight(s.deps.BackendBaseURL, "/") + "/gmail/send",
		Badges:      template.HTML(badges),
		SelectedIDs: recipient.JoinIDs(session.IDs()),
		Statuses:    statuses(list),
		Search:      compose.SearchID,
		Results:     compose.ResultsID,
		ResultsList: compose.ResultsListID,
		RecipientID: compose.RecipientListID,
		FormID:      compose.FormID,
		IDsInputID:  compose.IDsInputID,
		GroupName:   compose.GroupName,
		BodyID:      compose.BodyID,
		PreviewID:   compose.PreviewID,
	}
	s.renderTemplate(w, r, "compose.html", data)
}

// statuses returns the distinct non-empty statuses in sorted order.
func statuses(list []recipient.Recipient) []string {
	var out []string
	for _, rc := range list {
		if rc.Status != "" && !slices.Contains(out, rc.Status) {
			out = append(out, rc.Status)
		}
	}
	slices.Sort(out)
	return out
}

// handleRecipients serves the emailable directory to the compose page script.
func (s *server) handleRecipients(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Recipients.Recipients(r.Context())
	if err != nil {
		slog.Warn("recipients_load_failed", "error", err)
		http.Error(w, "recipient directory unavailable", http.StatusBadGateway)
		return
	}
	if list == nil {
		list = []recipient.Recipient{}
	}
	writeJSON(w, http.StatusOK, list)
}

type themeResponse struct {
	Theme themeDomain.Theme `json:"theme"`
}

// handleGetTheme returns the requesting browser's stored theme.
func (s *server) handleGetTheme(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, themeResponse{Theme: s.visitorTheme(r)})
}

// handleThemeToggle stores the theme posted as "theme", or flips the current one.
func (s *server) handleThemeToggle(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.VisitorFromContext(r.Context())
	if !ok {
		http.Error(w, "missing visitor", http.StatusBadRequest)
		return
	}
	next := s.visitorTheme(r).Toggle()
	if raw := r.FormValue("theme"); raw != "" {
		next = themeDomain.Theme(raw)
	}
	pref := themeDomain.Preference{VisitorID: id, Theme: next, UpdatedAt: s.now().UTC()}
	if err := pref.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.deps.Themes.Save(r.Context(), pref); err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, themeResponse{Theme: next})
}

func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.deps.DB.PingContext(ctx); err != nil {
		slog.Error("healthz_db_failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleDebugPerf serves aggregated timings. ?since= takes a duration, ?top= a count.
func (s *server) handleDebugPerf(w http.ResponseWriter, r *http.Request) {
	window := perfWindow
	if raw := r.URL.Query().Get("since"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			http.Error(w, "since must be a positive duration", http.StatusBadRequest)
			return
		}
		window = d
	}
	top := 20
	if raw := r.URL.Query().Get("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "top must be a positive integer", http.StatusBadRequest)
			return
		}
		top = n
	}
	writeJSON(w, http.StatusOK, s.deps.Perf.Snapshot(s.now().Add(-window), top))
}
