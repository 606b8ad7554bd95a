package conflictcheck

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"parishweb/internal/adapters/dom"
	"parishweb/internal/domain/conflict"
)

// Page is the part of a document the checker reads and writes.
// Element access happens on the page's event loop; Post may be called from any goroutine.
type Page interface {
	ElementByID(id string) *dom.Element
	FirstWithAttribute(name string) *dom.Element
	Post(fn func())
}

// Source answers conflict checks. backend.Client implements it.
type Source interface {
	CheckConflicts(ctx context.Context, subjectID string, snap conflict.Snapshot) (conflict.Report, error)
}

// Checker wires event forms to the backend's conflict check and keeps each
// form's warning panel in step with the newest answer.
type Checker struct {
	page Page
	src  Source

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup

	// latest holds the newest token issued per variant. Loop-only.
	latest map[conflict.Variant]uint64
}

// New returns a checker for page that asks src.
// PRE: page and src are non-nil
// POST: the checker is open until Close
func New(page Page, src Source) *Checker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Checker{
		page:   page,
		src:    src,
		ctx:    ctx,
		cancel: cancel,
		latest: make(map[conflict.Variant]uint64),
	}
}

// Initialize wires both form variants when the page names a subject.
// PRE: called on the page's loop
// POST: returns false and wires nothing when no element carries the subject attribute
func (c *Checker) Initialize() bool {
	el := c.page.FirstWithAttribute(conflict.SubjectAttribute)
	if el == nil {
		return false
	}
	subjectID, _ := el.Attribute(conflict.SubjectAttribute)
	for _, v := range conflict.Variants {
		c.SetupForm(subjectID, v)
	}
	slog.Debug("conflict_checker_initialized", "subject_id", subjectID)
	return true
}

// SetupForm attaches a change listener to each trigger field of the variant.
// Fields missing from the page are skipped.
// PRE: called on the page's loop
// POST: every present trigger field starts a check on change
func (c *Checker) SetupForm(subjectID string, v conflict.Variant) {
	v = conflict.ParseVariant(string(v))
	for _, id := range v.Fields().TriggerIDs() {
		el := c.page.ElementByID(id)
		if el == nil {
			continue
		}
		el.AddEventListener("change", func(*dom.Event) {
			c.CheckConflicts(subjectID, v)
		})
	}
}

// CheckConflicts reads the variant's form and asks the source about it.
// An empty date hides the panel without a request and counts as the newest
// check, so answers still in flight for an earlier date are dropped.
// Otherwise one request runs in the background and its result is applied on
// the loop, unless a newer check for the same variant was issued meanwhile.
// PRE: called on the page's loop
// POST: returns immediately; at most one request is started
func (c *Checker) CheckConflicts(subjectID string, v conflict.Variant) {
	v = conflict.ParseVariant(string(v))
	fields := v.Fields()
	snap := c.snapshot(fields)
	if snap.IsEmpty() {
		c.latest[v]++
		Hide(c.page, fields.Panel)
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	c.latest[v]++
	token := c.latest[v]

	go func() {
		defer c.wg.Done()
		report, err := c.src.CheckConflicts(c.ctx, subjectID, snap)
		c.page.Post(func() {
			c.apply(v, token, subjectID, report, err)
		})
	}()
}

// apply renders a completion on the loop if it is still the newest for v.
func (c *Checker) apply(v conflict.Variant, token uint64, subjectID string, report conflict.Report, err error) {
	if c.ctx.Err() != nil {
		return
	}
	if token != c.latest[v] {
		slog.Debug("conflict_check_stale", "subject_id", subjectID, "variant", string(v), "token", token, "latest", c.latest[v])
		return
	}
	panel := v.Fields().Panel
	if err != nil {
		slog.Error("conflict_check_failed", "subject_id", subjectID, "variant", string(v), "error", err)
		Hide(c.page, panel)
		return
	}
	Display(c.page, report, panel)
}

// Close cancels in-flight requests and refuses further checks.
// Completions that arrive afterwards are dropped.
func (c *Checker) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
}

// Wait blocks until every started request has returned and posted its completion.
func (c *Checker) Wait() {
	c.wg.Wait()
}

func (c *Checker) snapshot(f conflict.Fields) conflict.Snapshot {
	snap := conflict.Snapshot{
		EventDate: valueOf(c.page.ElementByID(f.EventDate)),
		StartTime: valueOf(c.page.ElementByID(f.StartTime)),
		EndTime:   valueOf(c.page.ElementByID(f.EndTime)),
	}
	if el := c.page.ElementByID(f.Participants); el != nil {
		if el.Tag == "select" {
			snap.ParticipantIDs = el.SelectedValues()
		} else if raw := el.Value(); raw != "" {
			snap.ParticipantIDs = strings.Split(raw, ",")
		}
	}
	return snap
}

func valueOf(el *dom.Element) string {
	if el == nil {
		return ""
	}
	return el.Value()
}

// Display shows the report in the panel, or hides the panel when there are
// no conflicts. The panel's content is replaced, never appended to.
// PRE: called on the page's loop
// POST: a missing panel is left alone
func Display(page Page, r conflict.Report, panelID string) {
	el := page.ElementByID(panelID)
	if el == nil {
		return
	}
	if !r.HasConflicts {
		Hide(page, panelID)
		return
	}
	html, err := RenderPanel(r)
	if err != nil {
		slog.Error("conflict_panel_render_failed", "panel", panelID, "error", err)
		Hide(page, panelID)
		return
	}
	el.SetInnerHTML(html)
	el.SetDisplay(dom.DisplayBlock)
}

// Hide clears the panel and hides it.
func Hide(page Page, panelID string) {
	el := page.ElementByID(panelID)
	if el == nil {
		return
	}
	el.SetInnerHTML("")
	el.SetDisplay(dom.DisplayNone)
}
