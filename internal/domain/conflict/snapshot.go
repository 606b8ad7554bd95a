package conflict

import (
	"net/url"
	"strings"
)

// Query parameter names understood by the check-conflicts endpoint.
const (
	ParamEventDate    = "eventDate"
	ParamStartTime    = "startTime"
	ParamEndTime      = "endTime"
	ParamParticipants = "additionalParticipants"
)

// Snapshot is the form state sent with one conflict check.
// It is rebuilt on every check and never persisted.
type Snapshot struct {
	EventDate      string   // yyyy-mm-dd
	StartTime      string   // HH:mm, empty when not set
	EndTime        string   // HH:mm, empty when not set
	ParticipantIDs []string // additional participants in option order
}

// IsEmpty reports whether there is nothing to check.
// An empty event date makes a conflict check meaningless.
func (s Snapshot) IsEmpty() bool {
	return s.EventDate == ""
}

// Encode serializes the snapshot into a query string.
// Optional fields are omitted when empty. Parameter order is fixed:
// eventDate, startTime, endTime, additionalParticipants.
// PRE: none
// POST: returns an escaped query string without a leading '?'
func (s Snapshot) Encode() string {
	var b strings.Builder
	add := func(key, value string) {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(value))
	}

	add(ParamEventDate, s.EventDate)
	if s.StartTime != "" {
		add(ParamStartTime, s.StartTime)
	}
	if s.EndTime != "" {
		add(ParamEndTime, s.EndTime)
	}
	if ids := s.participants(); ids != "" {
		add(ParamParticipants, ids)
	}
	return b.String()
}

func (s Snapshot) participants() string {
	ids := make([]string, 0, len(s.ParticipantIDs))
	for _, id := range s.ParticipantIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return strings.Join(ids, ",")
}

// SnapshotFromQuery rebuilds a snapshot from check-conflicts query values.
// PRE: none
// POST: participant IDs are split on commas with blanks dropped
func SnapshotFromQuery(q url.Values) Snapshot {
	s := Snapshot{
		EventDate: strings.TrimSpace(q.Get(ParamEventDate)),
		StartTime: strings.TrimSpace(q.Get(ParamStartTime)),
		EndTime:   strings.TrimSpace(q.Get(ParamEndTime)),
	}
	for _, raw := range q[ParamParticipants] {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				s.ParticipantIDs = append(s.ParticipantIDs, id)
			}
		}
	}
	return s
}
