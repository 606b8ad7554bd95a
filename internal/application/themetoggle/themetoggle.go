package themetoggle

import (
	"time"

	"parishweb/internal/adapters/dom"
	"parishweb/internal/domain/theme"
)

// ButtonID is the toggle button's element ID.
const ButtonID = "themeToggle"

// RotatingClass animates the button while the theme switches.
const RotatingClass = "rotating"

// RotationDuration is how long the button keeps RotatingClass.
const RotationDuration = 500 * time.Millisecond

// Page is the part of a document the theme toggle touches.
type Page interface {
	Root() *dom.Element
	ElementByID(id string) *dom.Element
	LocalStorage() *dom.Storage
	AfterFunc(d time.Duration, fn func()) *time.Timer
}

// Apply sets the root element's theme from storage.
// PRE: called on the page's loop
// POST: returns the applied theme; missing or unknown values give theme.Default
func Apply(page Page) theme.Theme {
	stored, _ := page.LocalStorage().GetItem(theme.StorageKey)
	t := theme.Parse(stored)
	page.Root().SetAttribute(theme.Attribute, string(t))
	return t
}

// Initialize applies the stored theme and wires the toggle button.
// PRE: called on the page's loop
// POST: returns false when the page has no toggle button; the theme is applied either way
func Initialize(page Page) bool {
	Apply(page)
	btn := page.ElementByID(ButtonID)
	if btn == nil {
		return false
	}
	btn.AddEventListener("click", func(*dom.Event) {
		Toggle(page, btn)
	})
	return true
}

// Toggle flips the theme, stores it and animates btn.
// PRE: called on the page's loop
// POST: the root attribute and storage hold the new theme
func Toggle(page Page, btn *dom.Element) theme.Theme {
	current, _ := page.Root().Attribute(theme.Attribute)
	next := theme.Parse(current).Toggle()
	page.Root().SetAttribute(theme.Attribute, string(next))
	page.LocalStorage().SetItem(theme.StorageKey, string(next))
	if btn != nil {
		btn.AddClass(RotatingClass)
		page.AfterFunc(RotationDuration, func() { btn.RemoveClass(RotatingClass) })
	}
	return next
}
