package timepicker

import (
	"log/slog"

	"parishweb/internal/adapters/dom"
	"parishweb/internal/domain/conflict"
	"parishweb/internal/domain/timeslot"
)

// Page is the part of a document the time picker touches.
type Page interface {
	ElementByID(id string) *dom.Element
}

// Initialize fills every start and end select with the half-hour options and
// makes a start-time change prefill its paired end time.
// PRE: called on the page's loop
// POST: returns the number of selects populated; absent selects are skipped
func Initialize(page Page) int {
	populated := 0
	for _, v := range conflict.Variants {
		f := v.Fields()
		for _, id := range []string{f.StartTime, f.EndTime} {
			if Populate(page.ElementByID(id)) {
				populated++
			}
		}
		AutoFill(page.ElementByID(f.StartTime), page.ElementByID(f.EndTime))
	}
	return populated
}

// Populate replaces the select's options with timeslot.Options.
// POST: returns false for a nil element
func Populate(sel *dom.Element) bool {
	if sel == nil {
		return false
	}
	slots := timeslot.Options()
	opts := make([]dom.Option, len(slots))
	for i, s := range slots {
		opts[i] = dom.Option{Value: s.Value, Label: s.Label}
	}
	sel.SetOptions(opts)
	return true
}

// AutoFill sets end to timeslot.EndAfter(start) whenever start changes to a
// non-empty value. Setting end does not fire its change listeners.
// PRE: called on the page's loop
// POST: no listener is attached when start is nil
func AutoFill(start, end *dom.Element) {
	if start == nil {
		return
	}
	start.AddEventListener("change", func(*dom.Event) {
		v := start.Value()
		if v == "" || end == nil {
			return
		}
		next, err := timeslot.EndAfter(v)
		if err != nil {
			slog.Warn("time_autofill_skipped", "start", v, "error", err)
			return
		}
		end.SetValue(next)
	})
}
