package upcoming

import (
	"slices"
	"strings"

	"parishweb/internal/domain/timeslot"
)

// Event types reported by the backend.
const (
	TypeNameDay            = "NAME_DAY"
	TypeBaptismDay         = "BAPTISM_DAY"
	TypeBirthday           = "BIRTHDAY"
	TypeWeddingAnniversary = "WEDDING_ANNIVERSARY"
	TypeChrismationDay     = "CHRISMATION_DAY"
	TypeDeathAnniversary   = "DEATH_ANNIVERSARY"
	TypeSacrament          = "SACRAMENT"
	TypeEvent              = "EVENT"
)

// AllDayLabel is shown instead of a time for all-day entries.
const AllDayLabel = "All day"

// Event is one entry of the dashboard's upcoming-events list.
// Date is yyyy-MM-dd; Time is HH:mm[:ss] and empty for all-day entries.
type Event struct {
	Title           string `json:"title"`
	ParishionerName string `json:"parishionerName,omitempty"`
	Date            string `json:"date"`
	Time            string `json:"time,omitempty"`
	Type            string `json:"type"`
	Description     string `json:"description,omitempty"`
	EventID         int64  `json:"eventId,omitempty"`
	ParishionerID   int64  `json:"parishionerId,omitempty"`
}

// IsAllDay reports whether the entry has no time.
func (e Event) IsAllDay() bool {
	return strings.TrimSpace(e.Time) == ""
}

// TimeLabel returns the 12-hour start time, or AllDayLabel.
// Times the picker cannot read are shown as sent.
func (e Event) TimeLabel() string {
	if e.IsAllDay() {
		return AllDayLabel
	}
	hhmm := e.Time
	if len(hhmm) > 5 {
		hhmm = hhmm[:5]
	}
	label, err := timeslot.Format12Hour(hhmm)
	if err != nil {
		return e.Time
	}
	return label
}

// Icon returns the Bootstrap icon name for the entry's type.
func (e Event) Icon() string {
	switch e.Type {
	case TypeNameDay, TypeBaptismDay, TypeChrismationDay:
		return "bi-star"
	case TypeBirthday:
		return "bi-gift"
	case TypeWeddingAnniversary:
		return "bi-heart"
	case TypeDeathAnniversary:
		return "bi-flower1"
	case TypeSacrament:
		return "bi-droplet"
	default:
		return "bi-calendar-event"
	}
}

// Compare orders by date, then all-day entries first, then by time.
func Compare(a, b Event) int {
	if c := strings.Compare(a.Date, b.Date); c != 0 {
		return c
	}
	switch {
	case a.IsAllDay() && b.IsAllDay():
		return 0
	case a.IsAllDay():
		return -1
	case b.IsAllDay():
		return 1
	}
	return strings.Compare(a.Time, b.Time)
}

// Sort orders events soonest first. Equal entries keep their order.
func Sort(events []Event) {
	slices.SortStableFunc(events, Compare)
}
