package recipient

import "errors"

// Domain errors
var (
	ErrUnknownRecipient = errors.New("recipient is not in the directory")
	ErrAlreadySelected  = errors.New("recipient is already selected")
	ErrNoRecipients     = errors.New("at least one recipient is required")
)

// Selection is an insertion-ordered set of selected recipient IDs.
// The zero value is not usable; call NewSelection.
type Selection struct {
	order []int64
	index map[int64]struct{}
}

// NewSelection returns an empty selection.
func NewSelection() *Selection {
	return &Selection{index: make(map[int64]struct{})}
}

// Has reports whether id is selected.
func (s *Selection) Has(id int64) bool {
	_, ok := s.index[id]
	return ok
}

// Add selects id.
// PRE: none
// POST: returns ErrAlreadySelected if id was selected, otherwise id is appended
func (s *Selection) Add(id int64) error {
	if s.Has(id) {
		return ErrAlreadySelected
	}
	s.index[id] = struct{}{}
	s.order = append(s.order, id)
	return nil
}

// Put selects id if it is not selected yet.
func (s *Selection) Put(id int64) {
	_ = s.Add(id)
}

// Remove deselects id. Removing an unselected id is a no-op.
func (s *Selection) Remove(id int64) {
	if !s.Has(id) {
		return
	}
	delete(s.index, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of selected IDs.
func (s *Selection) Len() int {
	return len(s.order)
}

// IDs returns the selected IDs in selection order.
// POST: the returned slice is a copy
func (s *Selection) IDs() []int64 {
	out := make([]int64, len(s.order))
	copy(out, s.order)
	return out
}
