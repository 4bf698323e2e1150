// Package browsertest provides resource counting fakes of the playwright browser objects.
// Only the methods used by sessions and steps are implemented; calling anything else panics.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"

	"github.com/playwright-community/playwright-go"
)

// Resource kinds counted by a Recorder.
const (
	Browser = "browser"
	Context = "context"
	Page    = "page"
)

// Operations that can be made to fail with FailOn.
const (
	OpLaunch       = "launch"
	OpNewContext   = "new context"
	OpStartTracing = "start tracing"
	OpStopTracing  = "stop tracing"
	OpNewPage      = "new page"
	OpVideoPath    = "video path"
	OpClosePage    = "close page"
	OpCloseContext = "close context"
	OpCloseBrowser = "close browser"
	OpScreenshot   = "screenshot"
)

// ErrInjected is returned by operations failed with FailOn and a nil error.
var ErrInjected = errors.New("injected failure")

// Recorder creates fakes and counts the resources they open and close.
type Recorder struct {
	// Title is returned by Page.Title of new pages.
	Title string
	// HTML is returned by Page.Content of new pages.
	HTML string

	mu       sync.Mutex
	opened   map[string]int
	closed   map[string]int
	events   []string
	failures map[string]error
	pages    []*FakePage
	elements map[string]*FakeElement
	launches []playwright.BrowserTypeLaunchOptions
	contexts []playwright.BrowserNewContextOptions
	timeouts []float64
}

func NewRecorder() *Recorder {
	return &Recorder{
		Title:    "Rocket",
		HTML:     "<html><head><title>Rocket</title></head><body></body></html>",
		opened:   make(map[string]int),
		closed:   make(map[string]int),
		failures: make(map[string]error),
		elements: make(map[string]*FakeElement),
	}
}

// Element returns the element matched by selector on every page, creating a visible one if needed.
func (r *Recorder) Element(selector string) *FakeElement {
	r.mu.Lock()
	defer r.mu.Unlock()
	el, ok := r.elements[selector]
	if !ok {
		el = &FakeElement{Visible: true}
		r.elements[selector] = el
	}
	return el
}

func (r *Recorder) lookup(selector string) (*FakeElement, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	el, ok := r.elements[selector]
	return el, ok
}

// FailOn makes op fail with err (ErrInjected if nil).
func (r *Recorder) FailOn(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		err = ErrInjected
	}
	r.failures[op] = err
}

func (r *Recorder) fail(op string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, op)
	return r.failures[op]
}

func (r *Recorder) open(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opened[kind]++
}

func (r *Recorder) close(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed[kind]++
}

// Opened returns how many resources of kind were created.
func (r *Recorder) Opened(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opened[kind]
}

// Closed returns how many resources of kind were closed successfully.
func (r *Recorder) Closed(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed[kind]
}

// Leaked returns the number of resources opened but never closed.
func (r *Recorder) Leaked() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	leaked := 0
	for kind, n := range r.opened {
		leaked += n - r.closed[kind]
	}
	return leaked
}

// Events returns all attempted operations in order.
func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// Pages returns all pages created so far.
func (r *Recorder) Pages() []*FakePage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*FakePage(nil), r.pages...)
}

// LaunchOptions returns the options of every launch.
func (r *Recorder) LaunchOptions() []playwright.BrowserTypeLaunchOptions {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]playwright.BrowserTypeLaunchOptions(nil), r.launches...)
}

// ContextOptions returns the options of every created context.
func (r *Recorder) ContextOptions() []playwright.BrowserNewContextOptions {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]playwright.BrowserNewContextOptions(nil), r.contexts...)
}

// DefaultTimeouts returns every default timeout set on a context.
func (r *Recorder) DefaultTimeouts() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.timeouts...)
}

// Launch implements the session launcher interface.
func (r *Recorder) Launch(ctx context.Context, options playwright.BrowserTypeLaunchOptions) (playwright.Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.fail(OpLaunch); err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.launches = append(r.launches, options)
	r.mu.Unlock()
	r.open(Browser)
	return &FakeBrowser{r: r}, nil
}

type FakeBrowser struct {
	playwright.Browser
	r      *Recorder
	mu     sync.Mutex
	closed bool
}

func (b *FakeBrowser) NewContext(options ...playwright.BrowserNewContextOptions) (playwright.BrowserContext, error) {
	if err := b.r.fail(OpNewContext); err != nil {
		return nil, err
	}
	var opts playwright.BrowserNewContextOptions
	if len(options) > 0 {
		opts = options[0]
	}
	b.r.mu.Lock()
	b.r.contexts = append(b.r.contexts, opts)
	b.r.mu.Unlock()
	b.r.open(Context)
	c := &FakeContext{r: b.r, options: opts}
	c.tracing = &FakeTracing{r: b.r}
	return c, nil
}

func (b *FakeBrowser) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.closed
}

func (b *FakeBrowser) Close(options ...playwright.BrowserCloseOptions) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.r.fail(OpCloseBrowser); err != nil {
		return err
	}
	if b.closed {
		return nil
	}
	b.closed = true
	b.r.close(Browser)
	return nil
}

type FakeContext struct {
	playwright.BrowserContext
	r       *Recorder
	options playwright.BrowserNewContextOptions
	tracing *FakeTracing

	mu     sync.Mutex
	closed bool
}

func (c *FakeContext) Tracing() playwright.Tracing {
	return c.tracing
}

func (c *FakeContext) SetDefaultTimeout(timeout float64) {
	c.r.mu.Lock()
	defer c.r.mu.Unlock()
	c.r.timeouts = append(c.r.timeouts, timeout)
}

func (c *FakeContext) NewPage() (playwright.Page, error) {
	if err := c.r.fail(OpNewPage); err != nil {
		return nil, err
	}
	c.r.open(Page)

	p := &FakePage{
		r:         c.r,
		title:     c.r.Title,
		html:      c.r.HTML,
		listeners: make(map[string][]any),
	}
	if c.options.RecordVideo != nil {
		p.videoPath = filepath.Join(c.options.RecordVideo.Dir, fmt.Sprintf("page-%p.webm", p))
		_ = os.WriteFile(p.videoPath, []byte("webm"), 0o644)
	}

	c.r.mu.Lock()
	c.r.pages = append(c.r.pages, p)
	c.r.mu.Unlock()
	return p, nil
}

func (c *FakeContext) Close(options ...playwright.BrowserContextCloseOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.r.fail(OpCloseContext); err != nil {
		return err
	}
	if c.closed {
		return nil
	}
	c.closed = true
	c.r.close(Context)
	return nil
}

type FakeTracing struct {
	playwright.Tracing
	r       *Recorder
	started bool
}

func (t *FakeTracing) Start(options ...playwright.TracingStartOptions) error {
	if err := t.r.fail(OpStartTracing); err != nil {
		return err
	}
	t.started = true
	return nil
}

func (t *FakeTracing) Stop(path ...string) error {
	if err := t.r.fail(OpStopTracing); err != nil {
		return err
	}
	if !t.started {
		return errors.New("tracing not started")
	}
	t.started = false
	if len(path) > 0 && path[0] != "" {
		return os.WriteFile(path[0], []byte("trace"), 0o644)
	}
	return nil
}

type FakePage struct {
	playwright.Page
	r         *Recorder
	title     string
	html      string
	videoPath string

	mu        sync.Mutex
	closed    bool
	url       string
	gotos     []string
	listeners map[string][]any
	console   []func(playwright.ConsoleMessage)
	errors    []func(error)
}

func (p *FakePage) Close(options ...playwright.PageCloseOptions) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.r.fail(OpClosePage); err != nil {
		return err
	}
	if p.closed {
		return nil
	}
	p.closed = true
	p.r.close(Page)
	return nil
}

func (p *FakePage) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *FakePage) Video() playwright.Video {
	if p.videoPath == "" {
		return nil
	}
	return &FakeVideo{r: p.r, path: p.videoPath}
}

func (p *FakePage) Goto(url string, options ...playwright.PageGotoOptions) (playwright.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, playwright.ErrTargetClosed
	}
	p.url = url
	p.gotos = append(p.gotos, url)
	return nil, nil
}

// Gotos returns all navigated URLs.
func (p *FakePage) Gotos() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.gotos...)
}

func (p *FakePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *FakePage) Title() (string, error) {
	return p.title, nil
}

func (p *FakePage) Content() (string, error) {
	return p.html, nil
}

func (p *FakePage) Screenshot(options ...playwright.PageScreenshotOptions) ([]byte, error) {
	if err := p.r.fail(OpScreenshot); err != nil {
		return nil, err
	}
	return []byte("\x89PNG"), nil
}

func (p *FakePage) OnConsole(fn func(playwright.ConsoleMessage)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.console = append(p.console, fn)
}

func (p *FakePage) OnPageError(fn func(error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errors = append(p.errors, fn)
}

// EmitConsole delivers a console message to all console listeners.
func (p *FakePage) EmitConsole(typ, text string) {
	p.mu.Lock()
	handlers := append(([]func(playwright.ConsoleMessage))(nil), p.console...)
	p.mu.Unlock()
	for _, fn := range handlers {
		fn(&FakeConsoleMessage{typ: typ, text: text})
	}
}

func (p *FakePage) On(name string, handler any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners[name] = append(p.listeners[name], handler)
}

func (p *FakePage) Once(name string, handler any) {
	p.On(name, handler)
}

func (p *FakePage) RemoveListener(name string, handler any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ptr := reflect.ValueOf(handler).Pointer()
	handlers := p.listeners[name]
	for i, h := range handlers {
		if reflect.ValueOf(h).Pointer() == ptr {
			p.listeners[name] = append(handlers[:i], handlers[i+1:]...)
			return
		}
	}
}

// ListenerCount returns the number of registered listeners for an event.
func (p *FakePage) ListenerCount(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners[name])
}

// EmitDialog delivers d to the dialog listeners once, like a one-shot subscription.
func (p *FakePage) EmitDialog(d playwright.Dialog) {
	p.mu.Lock()
	handlers := p.listeners["dialog"]
	delete(p.listeners, "dialog")
	p.mu.Unlock()
	for _, h := range handlers {
		if fn, ok := h.(func(playwright.Dialog)); ok {
			fn(d)
		}
	}
}

type FakeVideo struct {
	playwright.Video
	r    *Recorder
	path string
}

func (v *FakeVideo) Path() (string, error) {
	if err := v.r.fail(OpVideoPath); err != nil {
		return "", err
	}
	return v.path, nil
}

type FakeConsoleMessage struct {
	playwright.ConsoleMessage
	typ, text string
}

func (m *FakeConsoleMessage) Type() string { return m.typ }
func (m *FakeConsoleMessage) Text() string { return m.text }

// FakeDialog is a dialog that records how it was handled.
type FakeDialog struct {
	playwright.Dialog
	Kind string
	Msg  string

	mu        sync.Mutex
	accepted  bool
	dismissed bool
	prompt    string
}

func (d *FakeDialog) Type() string    { return d.Kind }
func (d *FakeDialog) Message() string { return d.Msg }

func (d *FakeDialog) Accept(promptText ...string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.accepted = true
	if len(promptText) > 0 {
		d.prompt = promptText[0]
	}
	return nil
}

func (d *FakeDialog) Dismiss() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dismissed = true
	return nil
}

// Handled returns whether the dialog was accepted or dismissed and the prompt text.
func (d *FakeDialog) Handled() (accepted, dismissed bool, prompt string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.accepted, d.dismissed, d.prompt
}

// FakeElement is the state behind a FakeLocator.
type FakeElement struct {
	Visible bool
	Text    string
	// OnClick runs after every click, e.g. to emit a dialog.
	OnClick func()

	mu     sync.Mutex
	clicks int
	value  string
}

// Clicks returns how often the element was clicked.
func (e *FakeElement) Clicks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clicks
}

// Value returns the last filled value.
func (e *FakeElement) Value() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value
}

func (p *FakePage) Locator(selector string, options ...playwright.PageLocatorOptions) playwright.Locator {
	return &FakeLocator{page: p, selector: selector}
}

// baseLocator names the embedded interface so it does not hide the Locator method.
type baseLocator = playwright.Locator

// FakeLocator resolves its selector against the elements registered on the Recorder.
// Unknown selectors match nothing.
type FakeLocator struct {
	baseLocator
	page     *FakePage
	selector string
}

func (l *FakeLocator) element() (*FakeElement, error) {
	if l.page.IsClosed() {
		return nil, playwright.ErrTargetClosed
	}
	el, ok := l.page.r.lookup(l.selector)
	if !ok || !el.Visible {
		return nil, fmt.Errorf("%w: waiting for %s", playwright.ErrTimeout, l.selector)
	}
	return el, nil
}

func (l *FakeLocator) First() playwright.Locator {
	return l
}

func (l *FakeLocator) IsVisible(options ...playwright.LocatorIsVisibleOptions) (bool, error) {
	if l.page.IsClosed() {
		return false, playwright.ErrTargetClosed
	}
	el, ok := l.page.r.lookup(l.selector)
	return ok && el.Visible, nil
}

func (l *FakeLocator) Click(options ...playwright.LocatorClickOptions) error {
	el, err := l.element()
	if err != nil {
		return err
	}
	el.mu.Lock()
	el.clicks++
	onClick := el.OnClick
	el.mu.Unlock()
	if onClick != nil {
		onClick()
	}
	return nil
}

func (l *FakeLocator) Fill(value string, options ...playwright.LocatorFillOptions) error {
	el, err := l.element()
	if err != nil {
		return err
	}
	el.mu.Lock()
	defer el.mu.Unlock()
	el.value = value
	return nil
}

func (l *FakeLocator) TextContent(options ...playwright.LocatorTextContentOptions) (string, error) {
	el, err := l.element()
	if err != nil {
		return "", err
	}
	return el.Text, nil
}

func (l *FakeLocator) InputValue(options ...playwright.LocatorInputValueOptions) (string, error) {
	el, err := l.element()
	if err != nil {
		return "", err
	}
	return el.Value(), nil
}
