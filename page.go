package bookmarkdp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/mailru/easyjson"
)

const (
	// DefaultNavigateTimeout is the timeout of the Page.navigate command.
	DefaultNavigateTimeout = 20 * time.Second

	// DefaultFallbackNavigateTimeout is the timeout of the location
	// assignment used when Page.navigate fails.
	DefaultFallbackNavigateTimeout = 10 * time.Second
)

// Executor is the common interface for sending commands to a remote browser.
type Executor interface {
	SendCommand(ctx context.Context, method string, params easyjson.Marshaler, timeout time.Duration) (easyjson.RawMessage, error)
	Evaluate(ctx context.Context, expression string, timeout time.Duration, opts ...EvaluateOption) (easyjson.RawMessage, error)
}

// Page issues page-level effects through an Executor.
type Page struct {
	exec Executor

	navigateTimeout time.Duration
	fallbackTimeout time.Duration

	errf func(string, ...interface{})
}

// NewPage creates a page driver on top of exec.
func NewPage(exec Executor, opts ...PageOption) *Page {
	p := &Page{
		exec:            exec,
		navigateTimeout: DefaultNavigateTimeout,
		fallbackTimeout: DefaultFallbackNavigateTimeout,
		errf:            defaultLogf,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Enable enables the Page and Runtime domains.
func (p *Page) Enable(ctx context.Context) error {
	for _, method := range []string{page.CommandEnable, runtime.CommandEnable} {
		if _, err := p.exec.SendCommand(ctx, method, nil, 0); err != nil {
			return err
		}
	}
	return nil
}

// Navigate navigates the page to urlstr. When Page.navigate fails, the
// navigation is retried once by assigning window.location, and the outcome of
// that assignment is returned instead.
func (p *Page) Navigate(ctx context.Context, urlstr string) error {
	err := p.navigate(ctx, urlstr)
	if err == nil {
		return nil
	}
	p.errf("navigate to %s failed: %v; falling back to location assignment", urlstr, err)

	quoted, err := json.Marshal(urlstr)
	if err != nil {
		return err
	}
	_, err = p.exec.Evaluate(ctx, fmt.Sprintf("window.location.href = %s", quoted), p.fallbackTimeout)
	return err
}

func (p *Page) navigate(ctx context.Context, urlstr string) error {
	buf, err := p.exec.SendCommand(ctx, page.CommandNavigate, page.Navigate(urlstr), p.navigateTimeout)
	if err != nil {
		return err
	}
	var res page.NavigateReturns
	if len(buf) != 0 {
		if err := easyjson.Unmarshal(buf, &res); err != nil {
			return &InvalidResponseError{Reason: "navigate: " + err.Error()}
		}
	}
	if res.ErrorText != "" {
		return fmt.Errorf("page load error %s", res.ErrorText)
	}
	return nil
}

// Evaluate evaluates expression in the page, returning its JSON-encoded
// value.
func (p *Page) Evaluate(ctx context.Context, expression string, timeout time.Duration) (easyjson.RawMessage, error) {
	return p.exec.Evaluate(ctx, expression, timeout)
}

// PageOption is a page driver option.
type PageOption func(*Page)

// WithNavigateTimeout sets the Page.navigate timeout.
func WithNavigateTimeout(d time.Duration) PageOption {
	return func(p *Page) {
		p.navigateTimeout = d
	}
}

// WithFallbackNavigateTimeout sets the timeout of the fallback navigation.
func WithFallbackNavigateTimeout(d time.Duration) PageOption {
	return func(p *Page) {
		p.fallbackTimeout = d
	}
}

// WithPageErrorf sets the func receiving navigation failures that were
// recovered by the fallback.
func WithPageErrorf(f func(string, ...interface{})) PageOption {
	return func(p *Page) {
		p.errf = f
	}
}
