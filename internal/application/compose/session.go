package compose

import (
	"slices"

	"parishweb/internal/domain/recipient"
)

// Session is the recipient-selection state of one compose page.
// It is not safe for concurrent use; the page's loop owns it.
type Session struct {
	directory []recipient.Recipient
	byID      map[int64]recipient.Recipient
	selected  *recipient.Selection
	groups    map[string]struct{}
}

// NewSession starts an empty selection over directory.
// PRE: none
// POST: later duplicates of an ID in directory are ignored
func NewSession(directory []recipient.Recipient) *Session {
	s := &Session{
		byID:     make(map[int64]recipient.Recipient, len(directory)),
		selected: recipient.NewSelection(),
		groups:   make(map[string]struct{}),
	}
	for _, r := range directory {
		if _, dup := s.byID[r.ID]; dup {
			continue
		}
		s.byID[r.ID] = r
		s.directory = append(s.directory, r)
	}
	return s
}

// Directory returns every known recipient in load order.
func (s *Session) Directory() []recipient.Recipient {
	return slices.Clone(s.directory)
}

// Lookup returns the recipient with id.
func (s *Session) Lookup(id int64) (recipient.Recipient, bool) {
	r, ok := s.byID[id]
	return r, ok
}

// Search returns autocomplete matches for query.
func (s *Session) Search(query string) []recipient.Recipient {
	return recipient.Search(s.directory, query)
}

// Add selects one recipient.
// PRE: none
// POST: returns ErrUnknownRecipient or ErrAlreadySelected without changing the selection
func (s *Session) Add(id int64) (recipient.Recipient, error) {
	r, ok := s.byID[id]
	if !ok {
		return recipient.Recipient{}, recipient.ErrUnknownRecipient
	}
	if err := s.selected.Add(id); err != nil {
		return r, err
	}
	return r, nil
}

// Remove deselects one recipient.
func (s *Session) Remove(id int64) {
	s.selected.Remove(id)
}

// SetGroup selects or deselects every recipient with the status.
// Deselecting a group also removes members that were added individually.
// POST: returns how many recipients carry the status
func (s *Session) SetGroup(status string, on bool) int {
	if on {
		s.groups[status] = struct{}{}
	} else {
		delete(s.groups, status)
	}
	n := 0
	for _, r := range s.directory {
		if r.Status != status {
			continue
		}
		n++
		if on {
			s.selected.Put(r.ID)
		} else {
			s.selected.Remove(r.ID)
		}
	}
	return n
}

// Groups returns the checked statuses in sorted order.
func (s *Session) Groups() []string {
	out := make([]string, 0, len(s.groups))
	for g := range s.groups {
		out = append(out, g)
	}
	slices.Sort(out)
	return out
}

// Preselect selects the known IDs in a comma-separated list.
// Invalid and unknown IDs are skipped.
// POST: returns how many IDs parsed, whether or not they were known
func (s *Session) Preselect(raw string) int {
	ids := recipient.ParseIDList(raw)
	for _, id := range ids {
		if _, ok := s.byID[id]; ok {
			s.selected.Put(id)
		}
	}
	return len(ids)
}

// Selected returns the selected recipients in selection order.
func (s *Session) Selected() []recipient.Recipient {
	ids := s.selected.IDs()
	out := make([]recipient.Recipient, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.byID[id])
	}
	return out
}

// IDs returns the selected IDs in selection order.
func (s *Session) IDs() []int64 {
	return s.selected.IDs()
}

// Len returns how many recipients are selected.
func (s *Session) Len() int {
	return s.selected.Len()
}

// Validate checks that the email can be sent.
// POST: returns ErrNoRecipients when nothing is selected
func (s *Session) Validate() error {
	if s.selected.Len() == 0 {
		return recipient.ErrNoRecipients
	}
	return nil
}
