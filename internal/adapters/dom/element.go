package dom

import "slices"

// Display values used by page behaviour.
const (
	DisplayNone     = "none"
	DisplayBlock    = "block"
	DisplayListItem = "list-item"
)

// Option is one entry of a select element.
type Option struct {
	Value    string
	Label    string
	Selected bool
}

// Listener handles a dispatched event.
type Listener func(*Event)

// Event is a dispatched DOM event.
type Event struct {
	Type   string
	Target *Element

	defaultPrevented bool
}

// PreventDefault cancels the default action, e.g. form submission.
func (e *Event) PreventDefault() {
	e.defaultPrevented = true
}

// DefaultPrevented reports whether a listener cancelled the default action.
func (e *Event) DefaultPrevented() bool {
	return e.defaultPrevented
}

// Element is a node in the page tree.
// Elements are not safe for concurrent use; touch them only on the document's loop.
type Element struct {
	Tag string
	ID  string

	attrs     map[string]string
	classes   []string
	value     string
	checked   bool
	disabled  bool
	multiple  bool
	options   []Option
	innerHTML string
	text      string
	htmlSets  uint64
	textSets  uint64
	display   string
	parent    *Element
	children  []*Element
	listeners map[string][]Listener
	scrolls   int
}

// NewElement creates a detached element.
func NewElement(tag, id string) *Element {
	return &Element{
		Tag:       tag,
		ID:        id,
		attrs:     make(map[string]string),
		listeners: make(map[string][]Listener),
	}
}

// Attribute returns the named attribute and whether it is present.
func (e *Element) Attribute(name string) (string, bool) {
	v, ok := e.attrs[name]
	return v, ok
}

// SetAttribute sets the named attribute and returns e for chaining.
func (e *Element) SetAttribute(name, value string) *Element {
	e.attrs[name] = value
	return e
}

// Name returns the element's name attribute.
func (e *Element) Name() string {
	return e.attrs["name"]
}

// AddClass adds class names, ignoring duplicates, and returns e for chaining.
func (e *Element) AddClass(names ...string) *Element {
	for _, n := range names {
		if !e.HasClass(n) {
			e.classes = append(e.classes, n)
		}
	}
	return e
}

// RemoveClass removes a class name.
func (e *Element) RemoveClass(name string) {
	e.classes = slices.DeleteFunc(e.classes, func(c string) bool { return c == name })
}

// HasClass reports whether the element carries the class.
func (e *Element) HasClass(name string) bool {
	return slices.Contains(e.classes, name)
}

// Value returns the current value. For selects it is the first selected option's
// value, or "" when nothing is selected.
func (e *Element) Value() string {
	if e.options == nil {
		return e.value
	}
	for _, o := range e.options {
		if o.Selected {
			return o.Value
		}
	}
	return ""
}

// SetValue sets the value without dispatching a change event.
// For selects the matching option becomes the only selection; with no match
// nothing stays selected.
func (e *Element) SetValue(v string) {
	if e.options == nil {
		e.value = v
		return
	}
	for i := range e.options {
		e.options[i].Selected = e.options[i].Value == v
	}
}

// SetMultiple marks a select as allowing several selected options.
func (e *Element) SetMultiple(multiple bool) *Element {
	e.multiple = multiple
	return e
}

// Options returns a copy of the select's options.
func (e *Element) Options() []Option {
	return slices.Clone(e.options)
}

// SetOptions replaces the select's options.
func (e *Element) SetOptions(opts []Option) {
	e.options = slices.Clone(opts)
	if e.options == nil {
		e.options = []Option{}
	}
}

// Select marks the options with the given values as selected.
// On a single select only the last matching value stays selected.
func (e *Element) Select(values ...string) {
	for _, v := range values {
		for i := range e.options {
			if e.options[i].Value != v {
				if !e.multiple {
					e.options[i].Selected = false
				}
				continue
			}
			e.options[i].Selected = true
		}
	}
}

// SelectedValues returns the values of selected options in document order.
func (e *Element) SelectedValues() []string {
	var out []string
	for _, o := range e.options {
		if o.Selected {
			out = append(out, o.Value)
		}
	}
	return out
}

// Checked reports a checkbox's state.
func (e *Element) Checked() bool { return e.checked }

// SetChecked sets a checkbox's state without dispatching a change event.
func (e *Element) SetChecked(c bool) { e.checked = c }

// Disabled reports whether the control is disabled.
func (e *Element) Disabled() bool { return e.disabled }

// SetDisabled enables or disables the control.
func (e *Element) SetDisabled(d bool) { e.disabled = d }

// InnerHTML returns the element's markup content.
func (e *Element) InnerHTML() string { return e.innerHTML }

// SetInnerHTML replaces the element's markup content.
func (e *Element) SetInnerHTML(html string) {
	e.innerHTML = html
	e.htmlSets++
}

// TextContent returns the element's text content.
func (e *Element) TextContent() string { return e.text }

// SetTextContent replaces the element's text content.
func (e *Element) SetTextContent(s string) {
	e.text = s
	e.textSets++
}

// Display returns the inline display style; "" means the stylesheet default.
func (e *Element) Display() string { return e.display }

// SetDisplay sets the inline display style.
func (e *Element) SetDisplay(d string) { e.display = d }

// ScrollIntoView records a request to bring the element into view.
func (e *Element) ScrollIntoView() { e.scrolls++ }

// ScrollCount returns how many times ScrollIntoView was called.
func (e *Element) ScrollCount() int { return e.scrolls }

// AppendChild attaches children and returns e for chaining.
func (e *Element) AppendChild(children ...*Element) *Element {
	for _, c := range children {
		c.parent = e
		e.children = append(e.children, c)
	}
	return e
}

// ReplaceChildren detaches every current child and attaches the given ones.
func (e *Element) ReplaceChildren(children ...*Element) {
	for _, c := range e.children {
		c.parent = nil
	}
	e.children = nil
	e.AppendChild(children...)
}

// Children returns the direct children.
func (e *Element) Children() []*Element {
	return slices.Clone(e.children)
}

// Contains reports whether other is e or one of its descendants.
func (e *Element) Contains(other *Element) bool {
	for n := other; n != nil; n = n.parent {
		if n == e {
			return true
		}
	}
	return false
}

// QueryClass returns descendants carrying the class, in document order.
func (e *Element) QueryClass(class string) []*Element {
	return e.collect(func(n *Element) bool { return n.HasClass(class) })
}

// AddEventListener registers fn for events of the given type.
func (e *Element) AddEventListener(typ string, fn Listener) {
	e.listeners[typ] = append(e.listeners[typ], fn)
}

// ListenerCount returns the number of listeners registered for typ.
func (e *Element) ListenerCount(typ string) int {
	return len(e.listeners[typ])
}

// Dispatch fires an event at e and bubbles it through its ancestors.
// PRE: called on the document's loop
// POST: returns the event so callers can inspect DefaultPrevented
func (e *Element) Dispatch(typ string) *Event {
	ev := &Event{Type: typ, Target: e}
	for n := e; n != nil; n = n.parent {
		for _, fn := range n.listeners[typ] {
			fn(ev)
		}
	}
	return ev
}

func (e *Element) collect(match func(*Element) bool) []*Element {
	var out []*Element
	var walk func(n *Element)
	walk = func(n *Element) {
		for _, c := range n.children {
			if match(c) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(e)
	return out
}

func (e *Element) find(match func(*Element) bool) *Element {
	for _, c := range e.children {
		if match(c) {
			return c
		}
		if f := c.find(match); f != nil {
			return f
		}
	}
	return nil
}
