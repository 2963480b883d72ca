// -----------------------------------------------------------------------
// Last Modified: Wednesday, 14th October 2026 11:03:27 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

// Package cdp implements the browsing provider on Chrome via the DevTools protocol.
// Browsing contexts are page targets; elements are DOM node ids within one target.
package cdp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mfaflow/internal/common"
	"github.com/ternarybob/mfaflow/internal/driver"
	"github.com/ternarybob/mfaflow/internal/interfaces"
	"github.com/ternarybob/mfaflow/internal/models"
)

const startupTimeout = 30 * time.Second

type tab struct {
	ctx    context.Context
	cancel context.CancelFunc
}

type element struct {
	handle models.ContextHandle
	nodeID cdp.NodeID
}

func (e *element) Context() models.ContextHandle {
	return e.handle
}

// Provider drives one Chrome instance, launched locally or reached over a DevTools URL
type Provider struct {
	mu         sync.Mutex
	browserCtx context.Context
	cancels    []context.CancelFunc
	tabs       map[models.ContextHandle]*tab
	active     models.ContextHandle
	logger     arbor.ILogger
}

var (
	_ interfaces.BrowsingProvider   = (*Provider)(nil)
	_ interfaces.ScreenshotProvider = (*Provider)(nil)
)

// New starts the browser and attaches to its first tab, which becomes the active context
func New(cfg common.BrowserConfig, logger arbor.ILogger) (*Provider, error) {
	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)

	if cfg.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), cfg.RemoteURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", cfg.Headless),
			chromedp.Flag("disable-gpu", cfg.DisableGPU),
			chromedp.Flag("no-sandbox", cfg.NoSandbox),
			chromedp.Flag("disable-dev-shm-usage", true),
			// Code pages open with target="_blank"; popups must not be swallowed
			chromedp.Flag("disable-popup-blocking", true),
			chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
		)
		if cfg.ExecPath != "" {
			opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	}

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	p := &Provider{
		browserCtx: browserCtx,
		cancels:    []context.CancelFunc{allocCancel, browserCancel},
		tabs:       make(map[models.ContextHandle]*tab),
		logger:     logger,
	}

	startCtx, cancel := context.WithTimeout(browserCtx, startupTimeout)
	defer cancel()

	start := time.Now()
	if err := chromedp.Run(startCtx, chromedp.Navigate("about:blank")); err != nil {
		p.Close()
		return nil, fmt.Errorf("browser failed startup test: %w", err)
	}

	c := chromedp.FromContext(browserCtx)
	if c == nil || c.Target == nil {
		p.Close()
		return nil, fmt.Errorf("browser started without a page target")
	}

	first := models.ContextHandle(c.Target.TargetID)
	p.tabs[first] = &tab{ctx: browserCtx}
	p.active = first

	logger.Debug().
		Str("context", first.String()).
		Bool("remote", cfg.RemoteURL != "").
		Bool("headless", cfg.Headless).
		Dur("startup_time", time.Since(start)).
		Msg("Browser started")

	return p, nil
}

// Close detaches from every tab and shuts the browser down
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for handle, t := range p.tabs {
		if t.cancel != nil {
			t.cancel()
		}
		delete(p.tabs, handle)
	}
	for i := len(p.cancels) - 1; i >= 0; i-- {
		p.cancels[i]()
	}
	p.cancels = nil
	p.active = ""
}

func (p *Provider) Query(ctx context.Context, loc models.Locator) ([]interfaces.Element, error) {
	handle := p.Active()

	var nodes []*cdp.Node
	err := p.run(ctx, handle, chromedp.Nodes(loc.Selector(), &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	if err != nil {
		return nil, err
	}

	elements := make([]interfaces.Element, 0, len(nodes))
	for _, n := range nodes {
		elements = append(elements, &element{handle: handle, nodeID: n.NodeID})
	}
	return elements, nil
}

func (p *Provider) Click(ctx context.Context, el interfaces.Element) error {
	e, err := asElement(el)
	if err != nil {
		return err
	}
	return p.run(ctx, e.handle, chromedp.Click(e.ids(), chromedp.ByNodeID))
}

func (p *Provider) Clear(ctx context.Context, el interfaces.Element) error {
	e, err := asElement(el)
	if err != nil {
		return err
	}
	return p.run(ctx, e.handle, chromedp.Clear(e.ids(), chromedp.ByNodeID))
}

func (p *Provider) SendKeys(ctx context.Context, el interfaces.Element, value string) error {
	e, err := asElement(el)
	if err != nil {
		return err
	}
	return p.run(ctx, e.handle, chromedp.SendKeys(e.ids(), value, chromedp.ByNodeID))
}

func (p *Provider) Text(ctx context.Context, el interfaces.Element) (string, error) {
	e, err := asElement(el)
	if err != nil {
		return "", err
	}
	var text string
	if err := p.run(ctx, e.handle, chromedp.TextContent(e.ids(), &text, chromedp.ByNodeID)); err != nil {
		return "", err
	}
	return text, nil
}

func (p *Provider) Attribute(ctx context.Context, el interfaces.Element, name string) (string, bool, error) {
	e, err := asElement(el)
	if err != nil {
		return "", false, err
	}
	var (
		value string
		ok    bool
	)
	if err := p.run(ctx, e.handle, chromedp.AttributeValue(e.ids(), name, &value, &ok, chromedp.ByNodeID)); err != nil {
		return "", false, err
	}
	return value, ok, nil
}

func (p *Provider) Enabled(ctx context.Context, el interfaces.Element) (bool, error) {
	e, err := asElement(el)
	if err != nil {
		return false, err
	}
	var disabled bool
	if err := p.run(ctx, e.handle, chromedp.JavascriptAttribute(e.ids(), "disabled", &disabled, chromedp.ByNodeID)); err != nil {
		return false, err
	}
	return !disabled, nil
}

// Contexts lists the page targets of the browser
func (p *Provider) Contexts(ctx context.Context) ([]models.ContextHandle, error) {
	infos, err := p.targets(ctx)
	if err != nil {
		return nil, err
	}
	handles := make([]models.ContextHandle, 0, len(infos))
	for _, info := range infos {
		handles = append(handles, models.ContextHandle(info.TargetID))
	}
	return handles, nil
}

func (p *Provider) Active() models.ContextHandle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// SwitchTo attaches to handle if needed and makes it active
func (p *Provider) SwitchTo(ctx context.Context, handle models.ContextHandle) error {
	infos, err := p.targets(ctx)
	if err != nil {
		return err
	}
	found := false
	for _, info := range infos {
		if models.ContextHandle(info.TargetID) == handle {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %s is not open", driver.ErrStaleContext, handle)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.tabs[handle]; !ok {
		tabCtx, cancel := chromedp.NewContext(p.browserCtx, chromedp.WithTargetID(target.ID(handle)))
		p.tabs[handle] = &tab{ctx: tabCtx, cancel: cancel}
	}
	p.active = handle
	return nil
}

// CloseActive closes the active tab; nothing is active afterwards
func (p *Provider) CloseActive(ctx context.Context) error {
	handle := p.Active()
	if err := p.run(ctx, handle, page.Close()); err != nil {
		return fmt.Errorf("failed to close %s: %w", handle, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.tabs[handle]; ok {
		if t.cancel != nil {
			t.cancel()
		}
		delete(p.tabs, handle)
	}
	p.active = ""
	return nil
}

func (p *Provider) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, p.Active(), chromedp.Navigate(url))
}

// Screenshot captures the viewport of the active tab as PNG
func (p *Provider) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, p.Active(), chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

// run executes actions in the tab for handle, bounded by ctx as well as the tab lifetime.
// Cancelling the derived context does not close the tab.
func (p *Provider) run(ctx context.Context, handle models.ContextHandle, actions ...chromedp.Action) error {
	tabCtx, err := p.tab(handle)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (p *Provider) tab(handle models.ContextHandle) (context.Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if handle == "" {
		return nil, fmt.Errorf("%w: no active browsing context", driver.ErrStaleContext)
	}
	t, ok := p.tabs[handle]
	if !ok {
		return nil, fmt.Errorf("%w: %s is closed", driver.ErrStaleContext, handle)
	}
	return t.ctx, nil
}

func (p *Provider) targets(ctx context.Context) ([]*target.Info, error) {
	runCtx, cancel := context.WithCancel(p.browserCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	infos, err := chromedp.Targets(runCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}

	pages := infos[:0]
	for _, info := range infos {
		if info.Type == "page" {
			pages = append(pages, info)
		}
	}
	return pages, nil
}

func asElement(el interfaces.Element) (*element, error) {
	e, ok := el.(*element)
	if !ok {
		return nil, fmt.Errorf("element %T does not belong to the cdp provider", el)
	}
	return e, nil
}

func (e *element) ids() []cdp.NodeID {
	return []cdp.NodeID{e.nodeID}
}
