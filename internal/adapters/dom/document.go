package dom

import (
	"context"
	"errors"
	"net/url"
	"slices"
	"sync"
	"time"
)

// ErrClosed is returned by Do once the event loop has stopped.
var ErrClosed = errors.New("dom: event loop stopped")

// Document is an in-process page: an element tree, client storage, and a
// single-threaded event loop that owns them.
//
// Everything except Post, Do, AfterFunc and Run must be called on the loop,
// i.e. from a listener or from a function passed to Post or Do.
type Document struct {
	root     *Element
	body     *Element
	location *url.URL
	alerts   []string
	storage  *Storage

	idle func()

	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped chan struct{}
	started bool
}

// NewDocument returns an empty page with an <html> root and a <body>.
func NewDocument() *Document {
	root := NewElement("html", "")
	body := NewElement("body", "")
	root.AppendChild(body)
	return newDocument(root, body)
}

func newDocument(root, body *Element) *Document {
	return &Document{
		root:     root,
		body:     body,
		location: &url.URL{Path: "/"},
		storage:  NewStorage(),
		wake:     make(chan struct{}, 1),
		stopped:  make(chan struct{}),
	}
}

// Root returns the <html> element.
func (d *Document) Root() *Element { return d.root }

// Body returns the <body> element.
func (d *Document) Body() *Element { return d.body }

// Append attaches elements to the body.
func (d *Document) Append(els ...*Element) {
	d.body.AppendChild(els...)
}

// ElementByID returns the first element with the ID, or nil.
func (d *Document) ElementByID(id string) *Element {
	if id == "" {
		return nil
	}
	return d.root.find(func(n *Element) bool { return n.ID == id })
}

// ElementsByClass returns every element carrying the class.
func (d *Document) ElementsByClass(class string) []*Element {
	return d.root.QueryClass(class)
}

// ElementsByName returns every element whose name attribute matches.
func (d *Document) ElementsByName(name string) []*Element {
	return d.root.collect(func(n *Element) bool { return n.Name() == name })
}

// FirstWithAttribute returns the first element carrying the attribute, or nil.
func (d *Document) FirstWithAttribute(name string) *Element {
	return d.root.find(func(n *Element) bool {
		_, ok := n.attrs[name]
		return ok
	})
}

// AddEventListener registers a document-level listener. Events dispatched on
// any attached element bubble up to it.
func (d *Document) AddEventListener(typ string, fn Listener) {
	d.root.AddEventListener(typ, fn)
}

// Location returns the page URL.
func (d *Document) Location() *url.URL {
	u := *d.location
	return &u
}

// SetLocation replaces the page URL.
func (d *Document) SetLocation(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	d.location = u
	return nil
}

// Alert records a blocking message shown to the user.
func (d *Document) Alert(msg string) {
	d.alerts = append(d.alerts, msg)
}

// Alerts returns the messages shown so far.
func (d *Document) Alerts() []string {
	return slices.Clone(d.alerts)
}

// LocalStorage returns the page's persistent key/value storage.
func (d *Document) LocalStorage() *Storage { return d.storage }

// UseStorage replaces the page's storage, e.g. to share it between page loads.
func (d *Document) UseStorage(s *Storage) { d.storage = s }

// OnIdle registers fn to run on the loop whenever the queue drains.
// PRE: called before Run
func (d *Document) OnIdle(fn func()) {
	d.idle = fn
}

// Post queues fn to run on the loop. It never blocks and is safe from any goroutine.
func (d *Document) Post(fn func()) {
	d.mu.Lock()
	d.queue = append(d.queue, fn)
	d.mu.Unlock()
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// AfterFunc runs fn on the loop once dur has elapsed.
func (d *Document) AfterFunc(dur time.Duration, fn func()) *time.Timer {
	return time.AfterFunc(dur, func() { d.Post(fn) })
}

// Do runs fn on the loop and waits for it to finish.
// PRE: Run has been or will be started
// POST: returns ErrClosed if the loop stopped before fn ran
func (d *Document) Do(fn func()) error {
	done := make(chan struct{})
	d.Post(func() {
		fn()
		close(done)
	})
	select {
	case <-done:
		return nil
	case <-d.stopped:
		select {
		case <-done:
			return nil
		default:
			return ErrClosed
		}
	}
}

// Run executes queued functions in order until ctx is cancelled.
// PRE: Run is called at most once
// POST: queued functions not yet started are dropped
func (d *Document) Run(ctx context.Context) error {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return errors.New("dom: event loop already running")
	}
	d.started = true
	d.mu.Unlock()
	defer close(d.stopped)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.wake:
		}
		for {
			d.mu.Lock()
			if len(d.queue) == 0 {
				d.mu.Unlock()
				break
			}
			fn := d.queue[0]
			d.queue = d.queue[1:]
			d.mu.Unlock()
			fn()
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
		if d.idle != nil {
			d.idle()
		}
	}
}

// Storage is a string key/value store with localStorage semantics.
// It is safe for concurrent use so one store can back several documents.
type Storage struct {
	mu    sync.Mutex
	items map[string]string
}

// NewStorage returns an empty store.
func NewStorage() *Storage {
	return &Storage{items: make(map[string]string)}
}

// GetItem returns the stored value and whether it exists.
func (s *Storage) GetItem(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[key]
	return v, ok
}

// SetItem stores a value.
func (s *Storage) SetItem(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
}
