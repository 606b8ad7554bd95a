//go:build js && wasm

// Package jsdom binds dom.Mirror to the browser's document.
package jsdom

import (
	"log/slog"
	"strings"
	"syscall/js"

	"parishweb/internal/adapters/dom"
)

// keyProp is the JS property holding a node's mirror key.
const keyProp = "__parishwebKey"

// ForwardedEvents are the event types passed from the browser to page code.
var ForwardedEvents = []string{"change", "input", "click", "submit"}

// Page is the browser document as a dom.Host.
type Page struct {
	doc    js.Value
	window js.Value
}

// Browser returns the current window's document.
func Browser() *Page {
	window := js.Global()
	return &Page{doc: window.Get("document"), window: window}
}

// Root returns the <html> element.
func (p *Page) Root() dom.HostNode { return node{p.doc.Get("documentElement")} }

// CreateElement makes a detached element.
func (p *Page) CreateElement(tag string) dom.HostNode {
	return node{p.doc.Call("createElement", tag)}
}

// Location returns the page URL.
func (p *Page) Location() string { return p.window.Get("location").Get("href").String() }

// Alert shows a blocking message.
func (p *Page) Alert(msg string) { p.window.Call("alert", msg) }

// StorageItems copies localStorage. A browser that refuses storage gives an empty map.
func (p *Page) StorageItems() map[string]string {
	items := make(map[string]string)
	ls := p.window.Get("localStorage")
	if ls.IsUndefined() || ls.IsNull() {
		return items
	}
	for i := 0; i < ls.Get("length").Int(); i++ {
		k := ls.Call("key", i).String()
		items[k] = ls.Call("getItem", k).String()
	}
	return items
}

// SetStorageItem writes to localStorage.
func (p *Page) SetStorageItem(key, value string) {
	ls := p.window.Get("localStorage")
	if ls.IsUndefined() || ls.IsNull() {
		return
	}
	ls.Call("setItem", key, value)
}

// Attach forwards ForwardedEvents to m. Each event runs on the mirror's loop
// and the listener waits for it, so a prevented submit is cancelled in the browser.
// The returned function detaches the listeners.
// PRE: the mirror's loop is running
func Attach(p *Page, m *dom.Mirror) (detach func()) {
	doc := m.Document()
	var funcs []js.Func
	for _, typ := range ForwardedEvents {
		fn := js.FuncOf(func(this js.Value, args []js.Value) any {
			ev := args[0]
			key, ok := keyOf(ev.Get("target"))
			if !ok {
				return nil
			}
			prevented := false
			if err := doc.Do(func() { prevented = m.Dispatch(key, typ) }); err != nil {
				slog.Warn("page_event_dropped", "type", typ, "error", err)
				return nil
			}
			if prevented {
				ev.Call("preventDefault")
			}
			return nil
		})
		p.doc.Call("addEventListener", typ, fn)
		funcs = append(funcs, fn)
	}
	return func() {
		for i, fn := range funcs {
			p.doc.Call("removeEventListener", ForwardedEvents[i], fn)
			fn.Release()
		}
	}
}

// keyOf finds the mirror key of target or its nearest marked ancestor.
func keyOf(target js.Value) (int, bool) {
	for n := target; !n.IsNull() && !n.IsUndefined(); n = n.Get("parentNode") {
		if k := n.Get(keyProp); k.Type() == js.TypeNumber {
			return k.Int(), true
		}
	}
	return 0, false
}

// node is a browser element.
type node struct {
	v js.Value
}

func (n node) Tag() string { return strings.ToLower(n.v.Get("tagName").String()) }
func (n node) ID() string  { return n.v.Get("id").String() }

func (n node) Attributes() map[string]string {
	out := make(map[string]string)
	attrs := n.v.Get("attributes")
	for i := 0; i < attrs.Get("length").Int(); i++ {
		a := attrs.Index(i)
		switch name := a.Get("name").String(); name {
		case "id", "class", "style":
		default:
			out[name] = a.Get("value").String()
		}
	}
	return out
}

func (n node) Classes() []string {
	c := n.v.Call("getAttribute", "class")
	if c.Type() != js.TypeString {
		return nil
	}
	return strings.Fields(c.String())
}

func (n node) Value() string   { return stringProp(n.v, "value") }
func (n node) Checked() bool   { return boolProp(n.v, "checked") }
func (n node) Disabled() bool  { return boolProp(n.v, "disabled") }
func (n node) Multiple() bool  { return boolProp(n.v, "multiple") }
func (n node) Display() string { return n.v.Get("style").Get("display").String() }
func (n node) Text() string    { return n.v.Get("textContent").String() }
func (n node) Remove()         { n.v.Call("remove") }
func (n node) Mark(key int)    { n.v.Set(keyProp, key) }

func (n node) ScrollIntoView() {
	n.v.Call("scrollIntoView", map[string]any{"behavior": "smooth", "block": "start"})
}

func (n node) Options() []dom.Option {
	opts := n.v.Get("options")
	if opts.IsUndefined() {
		return nil
	}
	out := make([]dom.Option, opts.Get("length").Int())
	for i := range out {
		o := opts.Index(i)
		out[i] = dom.Option{
			Value:    o.Get("value").String(),
			Label:    o.Get("text").String(),
			Selected: o.Get("selected").Bool(),
		}
	}
	return out
}

func (n node) Children() []dom.HostNode {
	kids := n.v.Get("children")
	out := make([]dom.HostNode, kids.Get("length").Int())
	for i := range out {
		out[i] = node{kids.Index(i)}
	}
	return out
}

func (n node) SetAttribute(name, value string) { n.v.Call("setAttribute", name, value) }
func (n node) RemoveAttribute(name string)     { n.v.Call("removeAttribute", name) }
func (n node) SetClasses(classes []string)     { n.v.Call("setAttribute", "class", strings.Join(classes, " ")) }
func (n node) SetValue(v string)               { n.v.Set("value", v) }
func (n node) SetChecked(c bool)               { n.v.Set("checked", c) }
func (n node) SetDisabled(d bool)              { n.v.Set("disabled", d) }
func (n node) SetInnerHTML(html string)        { n.v.Set("innerHTML", html) }
func (n node) SetText(s string)                { n.v.Set("textContent", s) }
func (n node) SetDisplay(d string)             { n.v.Get("style").Set("display", d) }
func (n node) AppendChild(child dom.HostNode)  { n.v.Call("appendChild", child.(node).v) }

// SetOptions rebuilds the select's options.
func (n node) SetOptions(opts []dom.Option) {
	n.v.Set("innerHTML", "")
	doc := n.v.Get("ownerDocument")
	for _, o := range opts {
		el := doc.Call("createElement", "option")
		el.Set("value", o.Value)
		el.Set("text", o.Label)
		el.Set("selected", o.Selected)
		n.v.Call("appendChild", el)
	}
}

func stringProp(v js.Value, name string) string {
	p := v.Get(name)
	if p.Type() != js.TypeString {
		return ""
	}
	return p.String()
}

func boolProp(v js.Value, name string) bool {
	p := v.Get(name)
	return p.Type() == js.TypeBoolean && p.Bool()
}
