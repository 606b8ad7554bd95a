package theme

import (
	"errors"
	"time"
)

// Theme is a colour scheme for the interface.
type Theme string

// Supported themes.
const (
	Dark  Theme = "dark"
	Light Theme = "light"
)

// Default is applied when no preference has been stored.
const Default = Dark

// Attribute is the root-element attribute carrying the active theme.
const Attribute = "data-theme"

// StorageKey is the client storage key holding the preference.
const StorageKey = "theme"

// ErrEmptyVisitor is returned when a preference has no owner.
var ErrEmptyVisitor = errors.New("visitor ID cannot be empty")

// Parse reads a stored theme value.
// PRE: none
// POST: returns Light for "light" and Default for anything else
func Parse(s string) Theme {
	if s == string(Light) {
		return Light
	}
	return Default
}

// Toggle returns the opposite theme.
func (t Theme) Toggle() Theme {
	if t == Dark {
		return Light
	}
	return Dark
}

// Preference records the theme chosen by one browser visitor.
// INVARIANT: VisitorID is non-empty once saved.
type Preference struct {
	VisitorID string
	Theme     Theme
	UpdatedAt time.Time
}

// Validate checks the preference's invariants.
// PRE: none
// POST: returns nil if valid, error describing the first violation otherwise
func (p *Preference) Validate() error {
	if p.VisitorID == "" {
		return ErrEmptyVisitor
	}
	if p.Theme != Dark && p.Theme != Light {
		return errors.New("theme must be 'dark' or 'light'")
	}
	return nil
}
