package compose

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"parishweb/internal/adapters/dom"
	"parishweb/internal/domain/recipient"
)

// Element IDs, names and parameters of the compose page.
const (
	SearchID        = "parishionerSearch"
	ResultsID       = "autocompleteResults"
	ResultsListID   = "autocompleteList"
	RecipientListID = "recipientList"
	GroupName       = "groupStatuses"
	FormID          = "emailForm"
	IDsInputID      = "individualRecipientsInput"
	BodyID          = "body"
	PreviewID       = "bodyPreview"
	PreselectParam  = "preselectedIds"

	suggestionClass = "autocomplete-item"
	badgeClass      = "recipient-badge"
	recipientIDAttr = "data-recipient-id"
)

// MsgNoRecipients is shown when the form is submitted with nothing selected.
const MsgNoRecipients = "Please select at least one recipient (individual or by group status)"

// Directory supplies the recipients a page can choose from.
type Directory interface {
	Recipients(ctx context.Context) ([]recipient.Recipient, error)
}

// Page is the part of a document the compose form touches.
type Page interface {
	ElementByID(id string) *dom.Element
	ElementsByName(name string) []*dom.Element
	AddEventListener(typ string, fn dom.Listener)
	Location() *url.URL
	Alert(msg string)
	Post(fn func())
}

// Form binds a Session to the compose page's controls.
type Form struct {
	page    Page
	session *Session

	search  *dom.Element
	results *dom.Element
	list    *dom.Element
	chosen  *dom.Element
}

// Start loads the directory off the loop and then attaches the form on it.
// A failed load is logged and the form works over an empty directory.
// PRE: the page's loop is running or will run
// POST: the returned channel yields the attached form once, then closes
func Start(ctx context.Context, page Page, dir Directory) <-chan *Form {
	ready := make(chan *Form, 1)
	go func() {
		list, err := dir.Recipients(ctx)
		if err != nil {
			slog.Error("recipients_load_failed", "error", err)
			list = nil
		}
		page.Post(func() {
			ready <- Attach(page, NewSession(list))
			close(ready)
		})
	}()
	return ready
}

// Attach wires search, group checkboxes, the body preview, submission and preselection.
// PRE: called on the page's loop
// POST: the recipient list reflects any preselected IDs
func Attach(page Page, s *Session) *Form {
	f := &Form{
		page:    page,
		session: s,
		search:  page.ElementByID(SearchID),
		results: page.ElementByID(ResultsID),
		list:    page.ElementByID(ResultsListID),
		chosen:  page.ElementByID(RecipientListID),
	}
	f.wireSearch()
	f.wireGroups()
	f.wirePreview()
	f.wireSubmit()
	f.preselect()
	slog.Info("compose_form_ready", "recipients", len(s.directory), "preselected", s.Len())
	return f
}

// Session returns the form's selection state.
func (f *Form) Session() *Session { return f.session }

func (f *Form) wireSearch() {
	if f.search == nil {
		return
	}
	f.search.AddEventListener("input", func(*dom.Event) {
		f.showSuggestions(f.search.Value())
	})
	f.page.AddEventListener("click", func(e *dom.Event) {
		if f.results == nil || f.search.Contains(e.Target) || f.results.Contains(e.Target) {
			return
		}
		f.results.SetDisplay(dom.DisplayNone)
	})
}

func (f *Form) showSuggestions(query string) {
	matches := f.session.Search(query)
	if len(matches) == 0 {
		f.hideResults()
		return
	}
	items := make([]*dom.Element, 0, len(matches))
	for _, r := range matches {
		html, err := RenderSuggestion(r)
		if err != nil {
			slog.Error("suggestion_render_failed", "recipient_id", r.ID, "error", err)
			continue
		}
		id := r.ID
		item := dom.NewElement("div", "").
			AddClass(suggestionClass).
			SetAttribute(recipientIDAttr, strconv.FormatInt(id, 10))
		item.SetInnerHTML(html)
		item.AddEventListener("click", func(*dom.Event) { f.Add(id) })
		items = append(items, item)
	}
	if f.list != nil {
		f.list.ReplaceChildren(items...)
	}
	if f.results != nil {
		f.results.SetDisplay(dom.DisplayBlock)
	}
}

func (f *Form) hideResults() {
	if f.results != nil {
		f.results.SetDisplay(dom.DisplayNone)
	}
}

// Add selects a recipient from the autocomplete.
// Already-selected recipients raise an alert and leave the search as it was.
// PRE: called on the page's loop
// POST: on success the search is cleared and the suggestions are hidden
func (f *Form) Add(id int64) {
	r, err := f.session.Add(id)
	if errors.Is(err, recipient.ErrAlreadySelected) {
		f.page.Alert(r.FullName + " is already in the recipient list")
		return
	}
	if err != nil {
		return
	}
	f.renderSelected()
	if f.search != nil {
		f.search.SetValue("")
	}
	f.hideResults()
}

// Remove deselects a recipient.
// PRE: called on the page's loop
func (f *Form) Remove(id int64) {
	f.session.Remove(id)
	f.renderSelected()
}

func (f *Form) wireGroups() {
	for _, box := range f.page.ElementsByName(GroupName) {
		box.AddEventListener("change", func(*dom.Event) {
			status := box.Value()
			n := f.session.SetGroup(status, box.Checked())
			slog.Debug("compose_group_changed", "status", status, "checked", box.Checked(), "members", n)
			f.renderSelected()
		})
	}
}

// wirePreview renders the markdown body into the preview pane as it is typed.
func (f *Form) wirePreview() {
	body := f.page.ElementByID(BodyID)
	preview := f.page.ElementByID(PreviewID)
	if body == nil || preview == nil {
		return
	}
	body.AddEventListener("input", func(*dom.Event) {
		text := body.Value()
		if strings.TrimSpace(text) == "" {
			preview.SetInnerHTML("")
			preview.SetDisplay(dom.DisplayNone)
			return
		}
		html, err := RenderPreview(text)
		if err != nil {
			slog.Error("preview_render_failed", "error", err)
			return
		}
		preview.SetInnerHTML(string(html))
		preview.SetDisplay(dom.DisplayBlock)
	})
}

func (f *Form) wireSubmit() {
	form := f.page.ElementByID(FormID)
	if form == nil {
		return
	}
	form.AddEventListener("submit", func(e *dom.Event) {
		if err := f.session.Validate(); err != nil {
			e.PreventDefault()
			f.page.Alert(MsgNoRecipients)
			return
		}
		if in := f.page.ElementByID(IDsInputID); in != nil {
			in.SetValue(recipient.JoinIDs(f.session.IDs()))
		}
	})
}

func (f *Form) preselect() {
	raw := f.page.Location().Query().Get(PreselectParam)
	if raw == "" {
		return
	}
	if f.session.Preselect(raw) > 0 {
		f.renderSelected()
	}
}

// renderSelected redraws the recipient badges.
func (f *Form) renderSelected() {
	if f.chosen == nil {
		return
	}
	selected := f.session.Selected()
	if len(selected) == 0 {
		f.chosen.ReplaceChildren()
		f.chosen.SetInnerHTML(Placeholder)
		return
	}
	badges := make([]*dom.Element, 0, len(selected))
	for _, r := range selected {
		html, err := RenderBadge(r)
		if err != nil {
			slog.Error("badge_render_failed", "recipient_id", r.ID, "error", err)
			continue
		}
		id := r.ID
		badge := dom.NewElement("span", "").
			AddClass("badge").
			AddClass(strings.Fields(BadgeClass(r))...).
			AddClass(badgeClass).
			SetAttribute(recipientIDAttr, strconv.FormatInt(id, 10)).
			SetAttribute("title", BadgeTitle(r))
		badge.SetInnerHTML(html)
		badge.AddEventListener("click", func(*dom.Event) { f.Remove(id) })
		badges = append(badges, badge)
	}
	f.chosen.SetInnerHTML("")
	f.chosen.ReplaceChildren(badges...)
}
