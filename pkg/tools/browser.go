package tools

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/attache/attache/pkg/fault"
	"github.com/attache/attache/pkg/logger"
)

// searchEndpoint serves plain-HTML search results that need no JS rendering.
const searchEndpoint = "https://html.duckduckgo.com/html/"

// BrowserSession owns the single long-lived headless browser. The browser is
// launched on first use; every tool call holds the mutex for its whole
// navigate-and-extract sequence, so calls serialize.
type BrowserSession struct {
	mu       sync.Mutex
	browser  *rod.Browser
	headless bool
	timeout  time.Duration
	log      logger.Logger
}

// NewBrowserSession builds an unstarted session.
func NewBrowserSession(headless bool, log logger.Logger) *BrowserSession {
	if log == nil {
		log = logger.Global()
	}
	return &BrowserSession{headless: headless, timeout: 30 * time.Second, log: log}
}

// ensureStarted launches the browser if needed. Callers must hold the mutex.
func (s *BrowserSession) ensureStarted() error {
	if s.browser != nil {
		return nil
	}
	controlURL, err := launcher.New().Headless(s.headless).Launch()
	if err != nil {
		return fault.ToolFailed("launch browser: %v", err)
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return fault.ToolFailed("connect to browser: %v", err)
	}
	s.browser = browser
	s.log.Info("browser session started", "headless", s.headless)
	return nil
}

// Close shuts the browser down. Safe to call on an unstarted session.
func (s *BrowserSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browser == nil {
		return nil
	}
	err := s.browser.Close()
	s.browser = nil
	return err
}

// openPage navigates a fresh page and waits for load. Callers must hold the
// mutex and must close the returned page on every exit path.
func (s *BrowserSession) openPage(ctx context.Context, target string) (*rod.Page, error) {
	if err := s.ensureStarted(); err != nil {
		return nil, err
	}
	page, err := s.browser.Page(proto.TargetCreateTarget{URL: target})
	if err != nil {
		return nil, fault.ToolFailed("open page: %v", err)
	}
	page = page.Context(ctx).Timeout(s.timeout)
	if err := page.WaitLoad(); err != nil {
		_ = page.Close()
		return nil, fault.ToolFailed("load %s: %v", target, err)
	}
	return page, nil
}

// WebSearchTool runs a query against the HTML search endpoint and returns the
// top results.
type WebSearchTool struct{ session *BrowserSession }

func NewWebSearchTool(s *BrowserSession) *WebSearchTool { return &WebSearchTool{session: s} }

func (t *WebSearchTool) Name() string    { return "web_search" }
func (t *WebSearchTool) Dangerous() bool { return false }

func (t *WebSearchTool) Validate(params map[string]any) error {
	_, err := stringParam(params, "query")
	return err
}

func (t *WebSearchTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	query, err := stringParam(params, "query")
	if err != nil {
		return nil, err
	}

	t.session.mu.Lock()
	defer t.session.mu.Unlock()

	page, err := t.session.openPage(ctx, searchEndpoint+"?q="+url.QueryEscape(query))
	if err != nil {
		return nil, err
	}
	defer page.Close()

	links, err := page.Elements("a.result__a")
	if err != nil {
		return nil, fault.ToolFailed("extract search results: %v", err)
	}

	type hit struct {
		Title string `json:"title"`
		URL   string `json:"url"`
	}
	hits := make([]hit, 0, 5)
	for _, link := range links {
		if len(hits) == 5 {
			break
		}
		title, err := link.Text()
		if err != nil {
			continue
		}
		href, err := link.Attribute("href")
		if err != nil || href == nil {
			continue
		}
		hits = append(hits, hit{Title: strings.TrimSpace(title), URL: *href})
	}
	return map[string]any{"query": query, "results": hits}, nil
}

// NavigateURLTool opens a URL and reports its title and final address.
type NavigateURLTool struct{ session *BrowserSession }

func NewNavigateURLTool(s *BrowserSession) *NavigateURLTool { return &NavigateURLTool{session: s} }

func (t *NavigateURLTool) Name() string    { return "navigate_url" }
func (t *NavigateURLTool) Dangerous() bool { return false }

func (t *NavigateURLTool) Validate(params map[string]any) error {
	raw, err := stringParam(params, "url")
	if err != nil {
		return err
	}
	return validateHTTPURL(raw)
}

func (t *NavigateURLTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	target, err := stringParam(params, "url")
	if err != nil {
		return nil, err
	}

	t.session.mu.Lock()
	defer t.session.mu.Unlock()

	page, err := t.session.openPage(ctx, target)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	info, err := page.Info()
	if err != nil {
		return nil, fault.ToolFailed("read page info: %v", err)
	}
	return map[string]any{"url": info.URL, "title": info.Title}, nil
}

// ExtractWebpageTool returns the visible text of a page, truncated.
type ExtractWebpageTool struct{ session *BrowserSession }

func NewExtractWebpageTool(s *BrowserSession) *ExtractWebpageTool {
	return &ExtractWebpageTool{session: s}
}

func (t *ExtractWebpageTool) Name() string    { return "extract_webpage" }
func (t *ExtractWebpageTool) Dangerous() bool { return false }

func (t *ExtractWebpageTool) Validate(params map[string]any) error {
	raw, err := stringParam(params, "url")
	if err != nil {
		return err
	}
	return validateHTTPURL(raw)
}

func (t *ExtractWebpageTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	target, err := stringParam(params, "url")
	if err != nil {
		return nil, err
	}

	t.session.mu.Lock()
	defer t.session.mu.Unlock()

	page, err := t.session.openPage(ctx, target)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	obj, err := page.Eval(`() => document.body.innerText`)
	if err != nil {
		return nil, fault.ToolFailed("extract text from %s: %v", target, err)
	}
	text := strings.TrimSpace(obj.Value.Str())
	const maxChars = 20000
	truncated := false
	if len(text) > maxChars {
		text = text[:maxChars]
		truncated = true
	}
	return map[string]any{"url": target, "text": text, "truncated": truncated}, nil
}

func validateHTTPURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fault.BadInput("url must be absolute http(s): %q", raw)
	}
	return nil
}
