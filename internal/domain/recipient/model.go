package recipient

import (
	"strconv"
	"strings"
)

// Search limits.
const (
	MinQueryLength = 2
	MaxResults     = 10
)

// Recipient is a non-departed parishioner who can be emailed.
// Email falls back to the household address on the backend side and may be empty.
type Recipient struct {
	ID            int64  `json:"parishionerId"`
	FullName      string `json:"fullName"`
	Email         string `json:"email,omitempty"`
	HouseholdName string `json:"householdName,omitempty"`
	Status        string `json:"status"`
}

// HasEmail reports whether the recipient can actually receive mail.
func (r Recipient) HasEmail() bool {
	return strings.TrimSpace(r.Email) != ""
}

// Matches reports whether the lowercased query occurs in the name, email or household.
// PRE: query is already lowercased and trimmed
func (r Recipient) Matches(query string) bool {
	return strings.Contains(strings.ToLower(r.FullName), query) ||
		(r.Email != "" && strings.Contains(strings.ToLower(r.Email), query)) ||
		(r.HouseholdName != "" && strings.Contains(strings.ToLower(r.HouseholdName), query))
}

// Search returns recipients matching the query in directory order.
// PRE: none
// POST: returns nil for queries shorter than MinQueryLength; at most MaxResults entries
func Search(directory []Recipient, query string) []Recipient {
	q := strings.ToLower(strings.TrimSpace(query))
	if len([]rune(q)) < MinQueryLength {
		return nil
	}
	var matches []Recipient
	for _, r := range directory {
		if !r.Matches(q) {
			continue
		}
		matches = append(matches, r)
		if len(matches) == MaxResults {
			break
		}
	}
	return matches
}

// ParseIDList parses a comma-separated ID list, skipping anything that is not an integer.
// PRE: none
// POST: returns IDs in input order; duplicates are kept
func ParseIDList(s string) []int64 {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// JoinIDs renders IDs as the comma-separated form the backend accepts.
func JoinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
