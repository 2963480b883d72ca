// Package memory provides an in-memory browsing provider over goquery documents.
// Pages are plain HTML; behaviour is scripted with click handlers and delayed renders.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/mfaflow/internal/driver"
	"github.com/ternarybob/mfaflow/internal/interfaces"
	"github.com/ternarybob/mfaflow/internal/models"
)

// Event records one interaction applied to an element
type Event struct {
	Kind    string // "click", "clear" or "keys"
	Context models.ContextHandle
	Attrs   map[string]string // Attribute snapshot of the element before the event
	Value   string            // Typed text for "keys"
}

type page struct {
	handle models.ContextHandle
	url    string
	doc    *goquery.Document
}

type clickHandler struct {
	selector string
	fn       func(m *Mutator, el *goquery.Selection)
}

type element struct {
	handle models.ContextHandle
	sel    *goquery.Selection
}

func (e *element) Context() models.ContextHandle {
	return e.handle
}

// Provider implements interfaces.BrowsingProvider in memory
type Provider struct {
	mu       sync.Mutex
	pages    map[models.ContextHandle]*page
	order    []models.ContextHandle
	active   models.ContextHandle
	nextID   int
	routes   map[string]string
	handlers []clickHandler
	events   []Event
	timers   []*time.Timer
	closed   bool
}

var _ interfaces.BrowsingProvider = (*Provider)(nil)

// New creates a provider with one blank browsing context, which is active
func New() *Provider {
	p := &Provider{
		pages:  make(map[models.ContextHandle]*page),
		routes: make(map[string]string),
	}
	p.active = p.openLocked("about:blank", "")
	return p
}

// Route registers the HTML served for url by Navigate
func (p *Provider) Route(url, html string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routes[url] = html
}

// OnClick registers fn to run whenever an element matching selector is clicked
func (p *Provider) OnClick(selector string, fn func(m *Mutator, el *goquery.Selection)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = append(p.handlers, clickHandler{selector: selector, fn: fn})
}

// Load replaces the document of the active context
func (p *Provider) Load(html string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	pg, ok := p.pages[p.active]
	if !ok {
		return fmt.Errorf("%w: no active browsing context", driver.ErrStaleContext)
	}
	pg.doc = parse(html)
	return nil
}

// Open creates a new browsing context without activating it, as a target="_blank" link does
func (p *Provider) Open(url, html string) models.ContextHandle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.openLocked(url, html)
}

// Events returns a copy of every recorded interaction
func (p *Provider) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	events := make([]Event, len(p.events))
	copy(events, p.events)
	return events
}

// HTML returns the outer HTML of the document in handle, for assertions
func (p *Provider) HTML(handle models.ContextHandle) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pg, ok := p.pages[handle]
	if !ok {
		return "", fmt.Errorf("%w: %s", driver.ErrStaleContext, handle)
	}
	return goquery.OuterHtml(pg.doc.Selection)
}

// Find runs selector against the document in handle, for assertions
func (p *Provider) Find(handle models.ContextHandle, selector string) (*goquery.Selection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pg, ok := p.pages[handle]
	if !ok {
		return nil, fmt.Errorf("%w: %s", driver.ErrStaleContext, handle)
	}
	return pg.doc.Find(selector).Clone(), nil
}

// Close stops pending delayed renders
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.timers {
		t.Stop()
	}
	p.timers = nil
	p.closed = true
}

func (p *Provider) Query(ctx context.Context, loc models.Locator) ([]interfaces.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pg, err := p.activePageLocked()
	if err != nil {
		return nil, err
	}

	var elements []interfaces.Element
	pg.doc.Find(loc.Selector()).Each(func(_ int, s *goquery.Selection) {
		elements = append(elements, &element{handle: pg.handle, sel: s})
	})
	return elements, nil
}

func (p *Provider) Click(ctx context.Context, el interfaces.Element) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, pg, err := p.resolveLocked(el)
	if err != nil {
		return err
	}
	if isDisabled(e.sel) {
		return fmt.Errorf("element not interactable: %s", describe(e.sel))
	}

	p.events = append(p.events, Event{Kind: "click", Context: pg.handle, Attrs: attrs(e.sel)})

	for _, h := range p.handlers {
		if e.sel.Is(h.selector) {
			h.fn(&Mutator{p: p, page: pg}, e.sel)
		}
	}
	return nil
}

func (p *Provider) Clear(ctx context.Context, el interfaces.Element) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, pg, err := p.resolveLocked(el)
	if err != nil {
		return err
	}
	if isDisabled(e.sel) {
		return fmt.Errorf("element not interactable: %s", describe(e.sel))
	}

	p.events = append(p.events, Event{Kind: "clear", Context: pg.handle, Attrs: attrs(e.sel)})
	e.sel.SetAttr("value", "")
	return nil
}

func (p *Provider) SendKeys(ctx context.Context, el interfaces.Element, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, pg, err := p.resolveLocked(el)
	if err != nil {
		return err
	}
	if isDisabled(e.sel) {
		return fmt.Errorf("element not interactable: %s", describe(e.sel))
	}

	p.events = append(p.events, Event{Kind: "keys", Context: pg.handle, Attrs: attrs(e.sel), Value: value})
	current, _ := e.sel.Attr("value")
	e.sel.SetAttr("value", current+value)
	return nil
}

func (p *Provider) Text(ctx context.Context, el interfaces.Element) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, _, err := p.resolveLocked(el)
	if err != nil {
		return "", err
	}
	return e.sel.Text(), nil
}

func (p *Provider) Attribute(ctx context.Context, el interfaces.Element, name string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, _, err := p.resolveLocked(el)
	if err != nil {
		return "", false, err
	}
	value, ok := e.sel.Attr(name)
	return value, ok, nil
}

func (p *Provider) Enabled(ctx context.Context, el interfaces.Element) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, _, err := p.resolveLocked(el)
	if err != nil {
		return false, err
	}
	return !isDisabled(e.sel), nil
}

func (p *Provider) Contexts(ctx context.Context) ([]models.ContextHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	handles := make([]models.ContextHandle, len(p.order))
	copy(handles, p.order)
	return handles, nil
}

func (p *Provider) Active() models.ContextHandle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

func (p *Provider) SwitchTo(ctx context.Context, handle models.ContextHandle) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.pages[handle]; !ok {
		return fmt.Errorf("%w: %s is not open", driver.ErrStaleContext, handle)
	}
	p.active = handle
	return nil
}

func (p *Provider) CloseActive(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.activePageLocked(); err != nil {
		return err
	}
	p.closeLocked(p.active)
	p.active = ""
	return nil
}

func (p *Provider) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	pg, err := p.activePageLocked()
	if err != nil {
		return err
	}
	html, ok := p.routes[url]
	if !ok {
		return fmt.Errorf("no route for %s", url)
	}
	pg.url = url
	pg.doc = parse(html)
	return nil
}

func (p *Provider) openLocked(url, html string) models.ContextHandle {
	p.nextID++
	handle := models.ContextHandle(fmt.Sprintf("tab-%d", p.nextID))
	p.pages[handle] = &page{handle: handle, url: url, doc: parse(html)}
	p.order = append(p.order, handle)
	return handle
}

func (p *Provider) closeLocked(handle models.ContextHandle) {
	delete(p.pages, handle)
	for i, h := range p.order {
		if h == handle {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

func (p *Provider) activePageLocked() (*page, error) {
	if p.active == "" {
		return nil, fmt.Errorf("%w: no active browsing context", driver.ErrStaleContext)
	}
	pg, ok := p.pages[p.active]
	if !ok {
		return nil, fmt.Errorf("%w: %s is closed", driver.ErrStaleContext, p.active)
	}
	return pg, nil
}

func (p *Provider) resolveLocked(el interfaces.Element) (*element, *page, error) {
	e, ok := el.(*element)
	if !ok {
		return nil, nil, fmt.Errorf("element %T does not belong to the memory provider", el)
	}
	pg, ok := p.pages[e.handle]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s is closed", driver.ErrStaleContext, e.handle)
	}
	return e, pg, nil
}

// Mutator changes a page from inside a click handler or delayed render.
// Its methods run with the provider lock held.
type Mutator struct {
	p    *Provider
	page *page
}

// Context returns the handle of the page being mutated
func (m *Mutator) Context() models.ContextHandle {
	return m.page.handle
}

// Find queries the page being mutated
func (m *Mutator) Find(selector string) *goquery.Selection {
	return m.page.doc.Find(selector)
}

// Append adds html to every element matching selector
func (m *Mutator) Append(selector, html string) {
	m.page.doc.Find(selector).AppendHtml(html)
}

// Remove deletes every element matching selector
func (m *Mutator) Remove(selector string) {
	m.page.doc.Find(selector).Remove()
}

// SetAttr sets an attribute on every element matching selector
func (m *Mutator) SetAttr(selector, name, value string) {
	m.page.doc.Find(selector).SetAttr(name, value)
}

// Open creates a new, inactive browsing context and returns a mutator for it
func (m *Mutator) Open(url, html string) *Mutator {
	handle := m.p.openLocked(url, html)
	return &Mutator{p: m.p, page: m.p.pages[handle]}
}

// Later runs fn against the same page after delay, unless the page has been closed
func (m *Mutator) Later(delay time.Duration, fn func(m *Mutator)) {
	if m.p.closed {
		return
	}
	handle := m.page.handle
	t := time.AfterFunc(delay, func() {
		m.p.mu.Lock()
		defer m.p.mu.Unlock()
		pg, ok := m.p.pages[handle]
		if !ok || m.p.closed {
			return
		}
		fn(&Mutator{p: m.p, page: pg})
	})
	m.p.timers = append(m.p.timers, t)
}

func parse(html string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		// The html tokenizer accepts any input; a reader error cannot happen for strings.Reader
		panic(err)
	}
	return doc
}

func isDisabled(s *goquery.Selection) bool {
	_, disabled := s.Attr("disabled")
	return disabled
}

func attrs(s *goquery.Selection) map[string]string {
	out := make(map[string]string)
	if len(s.Nodes) == 0 {
		return out
	}
	for _, a := range s.Nodes[0].Attr {
		out[a.Key] = a.Val
	}
	return out
}

func describe(s *goquery.Selection) string {
	if len(s.Nodes) == 0 {
		return "<detached>"
	}
	n := s.Nodes[0]
	if id, ok := s.Attr("id"); ok {
		return n.Data + "#" + id
	}
	return n.Data
}
