package dom

import (
	"maps"
	"net/url"
	"slices"
)

// HostNode is one element of a live page, such as a browser DOM node.
// Children returns element children only.
type HostNode interface {
	Tag() string
	ID() string
	Attributes() map[string]string // without id, class and style
	Classes() []string
	Value() string
	Checked() bool
	Disabled() bool
	Multiple() bool
	Options() []Option
	Display() string
	Text() string
	Children() []HostNode

	SetAttribute(name, value string)
	RemoveAttribute(name string)
	SetClasses(classes []string)
	SetValue(v string)
	SetChecked(c bool)
	SetDisabled(d bool)
	SetOptions(opts []Option)
	SetInnerHTML(html string)
	SetText(s string)
	SetDisplay(d string)
	ScrollIntoView()
	AppendChild(child HostNode)
	Remove()

	// Mark tags the node with the key events for it are dispatched under.
	Mark(key int)
}

// Host is a live page a Mirror keeps in step with a Document.
type Host interface {
	Root() HostNode
	CreateElement(tag string) HostNode
	Location() string
	Alert(msg string)
	StorageItems() map[string]string
	SetStorageItem(key, value string)
}

// Mirror runs page behaviour written against Document on a live page.
// The host's tree is copied into a Document once; afterwards events flow
// from the host into the Document and element changes flow back on Flush.
//
// Every method except NewMirror and Document must be called on the loop.
type Mirror struct {
	host   Host
	doc    *Document
	nodes  []*binding
	byElem map[*Element]int
	alerts int
	stored map[string]string
}

type binding struct {
	el   *Element
	node HostNode
	seen state
}

// state is what the host was last told about an element.
type state struct {
	attrs    map[string]string
	classes  []string
	value    string
	checked  bool
	disabled bool
	options  []Option
	htmlSets uint64
	textSets uint64
	display  string
	children []*Element
	scrolls  int
}

// NewMirror copies host's tree, location and storage into a new Document
// whose loop flushes changes back to host whenever it goes idle.
// PRE: the Document's loop has not started
// POST: every host element is bound to a Document element
func NewMirror(host Host) (*Mirror, error) {
	m := &Mirror{
		host:   host,
		byElem: make(map[*Element]int),
	}
	root := m.adopt(host.Root())
	body := root
	for _, c := range root.children {
		if c.Tag == "body" {
			body = c
			break
		}
	}
	doc := newDocument(root, body)

	loc, err := url.Parse(host.Location())
	if err != nil {
		return nil, err
	}
	doc.location = loc

	m.stored = maps.Clone(host.StorageItems())
	if m.stored == nil {
		m.stored = make(map[string]string)
	}
	doc.storage.items = maps.Clone(m.stored)

	doc.OnIdle(m.Flush)
	m.doc = doc
	return m, nil
}

// Document returns the mirrored page.
func (m *Mirror) Document() *Document { return m.doc }

// Dispatch reads the host's form controls and fires typ at the element
// bound to key, then flushes.
// POST: reports whether a listener prevented the default action; unknown keys report false
func (m *Mirror) Dispatch(key int, typ string) bool {
	if key < 0 || key >= len(m.nodes) || m.nodes[key] == nil {
		return false
	}
	m.pull()
	ev := m.nodes[key].el.Dispatch(typ)
	m.Flush()
	return ev.DefaultPrevented()
}

// Flush pushes every element change since the last flush to the host,
// then shows new alerts and writes changed storage items.
func (m *Mirror) Flush() {
	// Bindings created while flushing are appended and synced in the same pass.
	for i := 0; i < len(m.nodes); i++ {
		if m.nodes[i] != nil {
			m.sync(m.nodes[i])
		}
	}
	for _, msg := range m.doc.alerts[m.alerts:] {
		m.host.Alert(msg)
	}
	m.alerts = len(m.doc.alerts)

	m.doc.storage.mu.Lock()
	items := maps.Clone(m.doc.storage.items)
	m.doc.storage.mu.Unlock()
	for k, v := range items {
		if old, ok := m.stored[k]; !ok || old != v {
			m.host.SetStorageItem(k, v)
		}
	}
	m.stored = items
}

func (m *Mirror) adopt(n HostNode) *Element {
	el := NewElement(n.Tag(), n.ID())
	maps.Copy(el.attrs, n.Attributes())
	el.classes = slices.Clone(n.Classes())
	el.display = n.Display()
	el.checked = n.Checked()
	el.disabled = n.Disabled()
	switch el.Tag {
	case "select":
		el.multiple = n.Multiple()
		el.SetOptions(n.Options())
	case "input", "textarea":
		el.value = n.Value()
	default:
		kids := n.Children()
		if len(kids) == 0 {
			el.text = n.Text()
		}
		for _, k := range kids {
			el.AppendChild(m.adopt(k))
		}
	}
	m.bind(el, n, capture(el))
	return el
}

func (m *Mirror) bind(el *Element, n HostNode, seen state) {
	key := len(m.nodes)
	m.nodes = append(m.nodes, &binding{el: el, node: n, seen: seen})
	m.byElem[el] = key
	n.Mark(key)
}

// unbind forgets el and its descendants.
func (m *Mirror) unbind(el *Element) {
	if key, ok := m.byElem[el]; ok {
		m.nodes[key] = nil
		delete(m.byElem, el)
	}
	for _, c := range el.children {
		m.unbind(c)
	}
}

// nodeFor returns el's host node, creating one for elements built by page code.
// A created node starts from an empty state, so the next sync pushes everything.
func (m *Mirror) nodeFor(el *Element) HostNode {
	if key, ok := m.byElem[el]; ok {
		return m.nodes[key].node
	}
	n := m.host.CreateElement(el.Tag)
	if el.ID != "" {
		n.SetAttribute("id", el.ID)
	}
	m.bind(el, n, state{})
	return n
}

// pull copies the user-editable state of form controls from the host.
func (m *Mirror) pull() {
	for _, b := range m.nodes {
		if b == nil {
			continue
		}
		switch b.el.Tag {
		case "select":
			b.el.SetOptions(b.node.Options())
			b.seen.options = slices.Clone(b.el.options)
		case "input", "textarea":
			b.el.value = b.node.Value()
			b.el.checked = b.node.Checked()
			b.seen.value = b.el.value
			b.seen.checked = b.el.checked
		}
	}
}

func (m *Mirror) sync(b *binding) {
	el, n, prev := b.el, b.node, b.seen

	for k, v := range el.attrs {
		if old, ok := prev.attrs[k]; !ok || old != v {
			n.SetAttribute(k, v)
		}
	}
	for k := range prev.attrs {
		if _, ok := el.attrs[k]; !ok {
			n.RemoveAttribute(k)
		}
	}
	if !slices.Equal(el.classes, prev.classes) {
		n.SetClasses(el.classes)
	}
	if el.options != nil {
		if !slices.Equal(el.options, prev.options) {
			n.SetOptions(el.options)
		}
	} else if el.value != prev.value {
		n.SetValue(el.value)
	}
	if el.checked != prev.checked {
		n.SetChecked(el.checked)
	}
	if el.disabled != prev.disabled {
		n.SetDisabled(el.disabled)
	}
	if el.display != prev.display {
		n.SetDisplay(el.display)
	}

	// Markup and text replace the host's children, so mirrored children are
	// reattached after them.
	replaced := false
	if el.htmlSets != prev.htmlSets {
		n.SetInnerHTML(el.innerHTML)
		replaced = true
	}
	if el.textSets != prev.textSets {
		n.SetText(el.text)
		replaced = true
	}
	if replaced || !slices.Equal(el.children, prev.children) {
		for _, old := range prev.children {
			if old.parent != nil {
				continue
			}
			if key, ok := m.byElem[old]; ok {
				m.nodes[key].node.Remove()
				m.unbind(old)
			}
		}
		for _, c := range el.children {
			n.AppendChild(m.nodeFor(c))
		}
	}
	if el.scrolls > prev.scrolls {
		n.ScrollIntoView()
	}
	b.seen = capture(el)
}

func capture(el *Element) state {
	return state{
		attrs:    maps.Clone(el.attrs),
		classes:  slices.Clone(el.classes),
		value:    el.value,
		checked:  el.checked,
		disabled: el.disabled,
		options:  slices.Clone(el.options),
		htmlSets: el.htmlSets,
		textSets: el.textSets,
		display:  el.display,
		children: slices.Clone(el.children),
		scrolls:  el.scrolls,
	}
}
