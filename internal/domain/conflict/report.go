package conflict

// Conflict sources.
const (
	SourceDatabase       = "database"
	SourceGoogleCalendar = "google_calendar"
)

// Entry is one existing event overlapping the proposed window.
// EventTime is empty for all-day events.
type Entry struct {
	ParishionerName string `json:"parishionerName,omitempty"`
	EventTitle      string `json:"eventTitle"`
	EventDate       string `json:"eventDate"`
	EventTime       string `json:"eventTime,omitempty"`
	Source          string `json:"source,omitempty"`
}

// IsAllDay reports whether the conflicting event has no time of day.
func (e Entry) IsAllDay() bool {
	return e.EventTime == ""
}

// Report is the backend's answer to a conflict check.
// It is read-only and re-derived per request.
type Report struct {
	HasConflicts            bool    `json:"hasConflicts"`
	ConflictCount           int     `json:"conflictCount"`
	DatabaseConflicts       []Entry `json:"databaseConflicts"`
	GoogleCalendarConflicts []Entry `json:"googleCalendarConflicts"`
}

// NewReport builds a report from the two conflict lists,
// deriving HasConflicts and ConflictCount.
// PRE: none
// POST: HasConflicts == (ConflictCount > 0)
func NewReport(database, google []Entry) Report {
	return Report{
		HasConflicts:            len(database)+len(google) > 0,
		ConflictCount:           len(database) + len(google),
		DatabaseConflicts:       database,
		GoogleCalendarConflicts: google,
	}
}

// Total returns the number of entries across both lists.
// It may differ from ConflictCount, which is the backend's own figure.
func (r Report) Total() int {
	return len(r.DatabaseConflicts) + len(r.GoogleCalendarConflicts)
}
