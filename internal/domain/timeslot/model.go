package timeslot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Interval is the spacing between selectable times, in minutes.
const Interval = 30

// NotSetLabel labels the empty option, which means an all-day event.
const NotSetLabel = "-- Not set (all-day) --"

// ErrInvalidTime is returned for values that are not HH:mm on a 24-hour clock.
var ErrInvalidTime = errors.New("time must be HH:mm between 00:00 and 23:59")

// Option is one entry of a time select.
type Option struct {
	Value string // HH:mm, empty for "not set"
	Label string // 12-hour display form
}

// Options returns the "not set" option followed by every half-hour slot of the day.
// PRE: none
// POST: returns 1 + 24*60/Interval options, 00:00 first and 23:30 last
func Options() []Option {
	opts := make([]Option, 0, 1+24*60/Interval)
	opts = append(opts, Option{Value: "", Label: NotSetLabel})
	for m := 0; m < 24*60; m += Interval {
		v := format24(m/60, m%60)
		opts = append(opts, Option{Value: v, Label: format12(m/60, m%60)})
	}
	return opts
}

// Format12Hour converts an HH:mm value to 12-hour form, e.g. "14:30" to "2:30 PM".
// PRE: value is HH:mm
// POST: returns the 12-hour label or ErrInvalidTime
func Format12Hour(value string) (string, error) {
	h, m, err := parse(value)
	if err != nil {
		return "", err
	}
	return format12(h, m), nil
}

// EndAfter returns the default end time for a start time: Interval minutes later,
// wrapping to the next day past midnight ("23:30" gives "00:00").
// PRE: start is HH:mm
// POST: returns an HH:mm value or ErrInvalidTime
func EndAfter(start string) (string, error) {
	h, m, err := parse(start)
	if err != nil {
		return "", err
	}
	total := (h*60 + m + Interval) % (24 * 60)
	return format24(total/60, total%60), nil
}

func parse(value string) (int, int, error) {
	hs, ms, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok {
		return 0, 0, ErrInvalidTime
	}
	h, err := strconv.Atoi(hs)
	if err != nil || h < 0 || h > 23 {
		return 0, 0, ErrInvalidTime
	}
	m, err := strconv.Atoi(ms)
	if err != nil || m < 0 || m > 59 {
		return 0, 0, ErrInvalidTime
	}
	return h, m, nil
}

func format24(h, m int) string {
	return fmt.Sprintf("%02d:%02d", h, m)
}

func format12(h, m int) string {
	ampm := "AM"
	if h >= 12 {
		ampm = "PM"
	}
	h12 := h % 12
	if h12 == 0 {
		h12 = 12
	}
	return fmt.Sprintf("%d:%02d %s", h12, m, ampm)
}
