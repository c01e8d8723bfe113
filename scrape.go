package bookmarkdp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mailru/easyjson"
)

// DefaultTargetURL is the page the scraper navigates to.
const DefaultTargetURL = "https://x.com/i/bookmarks"

// Scraper defaults.
const (
	DefaultMaxScrolls      = 10
	DefaultScrollDelay     = 1 * time.Second
	DefaultScrollFactor    = 1.5
	DefaultPollInterval    = 500 * time.Millisecond
	DefaultPageLoadTimeout = 30 * time.Second
	DefaultRetryCount      = 2
)

// Stage is a step of the scrape pipeline.
type Stage int

// Stage values, in pipeline order.
const (
	StageEnable Stage = iota
	StageNavigate
	StageWaitForReady
	StagePreExpand
	StageScroll
	StagePostExpand
	StageExtract
	StageFilter
	StageDedupe
)

// String satisfies stringer.
func (s Stage) String() string {
	switch s {
	case StageEnable:
		return "enable"
	case StageNavigate:
		return "navigate"
	case StageWaitForReady:
		return "wait-for-ready"
	case StagePreExpand:
		return "pre-expand"
	case StageScroll:
		return "scroll"
	case StagePostExpand:
		return "post-expand"
	case StageExtract:
		return "extract"
	case StageFilter:
		return "filter"
	case StageDedupe:
		return "dedupe"
	}
	return "unknown"
}

// Driver is the page capability set used by a Scraper. It is satisfied by
// *Page.
type Driver interface {
	Enable(ctx context.Context) error
	Navigate(ctx context.Context, urlstr string) error
	Evaluate(ctx context.Context, expression string, timeout time.Duration) (easyjson.RawMessage, error)
}

// Scraper runs the bookmark collection pipeline against a page.
type Scraper struct {
	d Driver

	targetURL       string
	maxScrolls      int
	scrollDelay     time.Duration
	scrollFactor    float64
	pollInterval    time.Duration
	pageLoadTimeout time.Duration
	retry           RetryPolicy
	folder          string

	logf, debugf func(string, ...interface{})
}

// NewScraper creates a scraper driving d.
func NewScraper(d Driver, opts ...ScrapeOption) *Scraper {
	s := &Scraper{
		d:               d,
		targetURL:       DefaultTargetURL,
		maxScrolls:      DefaultMaxScrolls,
		scrollDelay:     DefaultScrollDelay,
		scrollFactor:    DefaultScrollFactor,
		pollInterval:    DefaultPollInterval,
		pageLoadTimeout: DefaultPageLoadTimeout,
		retry: RetryPolicy{
			Count: DefaultRetryCount,
			Delay: DefaultRetryDelay,
		},
		logf:   defaultLogf,
		debugf: defaultDebugf,
	}
	for _, o := range opts {
		o(s)
	}
	if s.retry.Logf == nil {
		s.retry.Logf = s.logf
	}
	return s
}

// Run executes the pipeline once, returning the filtered and deduplicated
// records. Any stage failure that outlives its retries is returned as is.
func (s *Scraper) Run(ctx context.Context) ([]Record, error) {
	if _, err := Retry(ctx, s.retry, StageEnable.String(), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.d.Enable(ctx)
	}); err != nil {
		return nil, err
	}

	if _, err := Retry(ctx, s.retry, StageNavigate.String(), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.d.Navigate(ctx, s.targetURL)
	}); err != nil {
		return nil, err
	}

	if err := s.waitReady(ctx); err != nil {
		return nil, err
	}

	if err := s.expand(ctx, StagePreExpand); err != nil {
		return nil, err
	}
	for i := 0; i < s.maxScrolls; i++ {
		if err := s.scroll(ctx, i); err != nil {
			return nil, err
		}
	}
	if err := s.expand(ctx, StagePostExpand); err != nil {
		return nil, err
	}

	records, err := Retry(ctx, s.retry, StageExtract.String(), s.extract)
	if err != nil {
		return nil, err
	}

	filtered := FilterByFolder(records, s.folder)
	if len(filtered) != len(records) {
		s.logf("%s: kept %d of %d records in folder %q", StageFilter, len(filtered), len(records), s.folder)
	}
	out := Dedupe(filtered)
	if len(out) != len(filtered) {
		s.logf("%s: removed %d duplicate records", StageDedupe, len(filtered)-len(out))
	}
	return out, nil
}

// waitReady polls the readiness predicate until it is true. A failed
// evaluation counts as not ready.
func (s *Scraper) waitReady(ctx context.Context) error {
	start := time.Now()
	pollCtx, cancel := context.WithTimeout(ctx, s.pageLoadTimeout)
	defer cancel()
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		v, err := s.d.Evaluate(pollCtx, readyJS, 0)
		switch {
		case err != nil:
			s.debugf("%s: predicate failed: %v", StageWaitForReady, err)
		case isTrue(v):
			s.debugf("%s: ready after %v", StageWaitForReady, time.Since(start))
			return nil
		}

		select {
		case <-pollCtx.Done():
			if err := ctx.Err(); err != nil {
				return err
			}
			return &PageLoadTimeoutError{Elapsed: time.Since(start)}
		case <-ticker.C:
		}
	}
}

// expand clicks the visible "show more" controls. The count is only logged.
func (s *Scraper) expand(ctx context.Context, stage Stage) error {
	v, err := s.d.Evaluate(ctx, expandJS, 0)
	if err != nil {
		return err
	}
	var n int
	if len(v) != 0 {
		_ = json.Unmarshal(v, &n)
	}
	s.debugf("%s: expanded %d controls", stage, n)
	return nil
}

func (s *Scraper) scroll(ctx context.Context, i int) error {
	if err := s.expand(ctx, StageScroll); err != nil {
		return err
	}
	if _, err := s.d.Evaluate(ctx, scrollExpression(s.scrollFactor), 0); err != nil {
		return err
	}
	s.debugf("%s: %d/%d", StageScroll, i+1, s.maxScrolls)
	return sleep(ctx, s.scrollDelay)
}

func (s *Scraper) extract(ctx context.Context) ([]Record, error) {
	v, err := s.d.Evaluate(ctx, extractJS, 0)
	if err != nil {
		return nil, err
	}
	records, dropped, err := decodeRecords(v)
	if err != nil {
		return nil, err
	}
	if dropped > 0 {
		s.debugf("%s: dropped %d malformed entries", StageExtract, dropped)
	}
	s.logf("%s: extracted %d records", StageExtract, len(records))
	return records, nil
}

// isTrue reports whether v is the JSON literal true.
func isTrue(v []byte) bool {
	var b bool
	return len(v) != 0 && json.Unmarshal(v, &b) == nil && b
}

// sleep waits for d, or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ScrapeOption is a scraper option.
type ScrapeOption func(*Scraper)

// WithTargetURL sets the page to scrape.
func WithTargetURL(urlstr string) ScrapeOption {
	return func(s *Scraper) {
		s.targetURL = urlstr
	}
}

// WithMaxScrolls sets the exact number of scroll iterations.
func WithMaxScrolls(n int) ScrapeOption {
	return func(s *Scraper) {
		s.maxScrolls = n
	}
}

// WithScrollDelay sets the wait after each scroll.
func WithScrollDelay(d time.Duration) ScrapeOption {
	return func(s *Scraper) {
		s.scrollDelay = d
	}
}

// WithScrollFactor sets how many viewport heights each scroll advances.
func WithScrollFactor(f float64) ScrapeOption {
	return func(s *Scraper) {
		s.scrollFactor = f
	}
}

// WithPollInterval sets the readiness polling interval.
func WithPollInterval(d time.Duration) ScrapeOption {
	return func(s *Scraper) {
		s.pollInterval = d
	}
}

// WithPageLoadTimeout sets how long the readiness predicate is polled.
func WithPageLoadTimeout(d time.Duration) ScrapeOption {
	return func(s *Scraper) {
		s.pageLoadTimeout = d
	}
}

// WithRetry sets the retry count and delay used for the enable, navigate and
// extract stages.
func WithRetry(count int, delay time.Duration) ScrapeOption {
	return func(s *Scraper) {
		s.retry.Count = count
		s.retry.Delay = delay
	}
}

// WithFolder restricts the output to records in the named folder.
func WithFolder(folder string) ScrapeOption {
	return func(s *Scraper) {
		s.folder = folder
	}
}

// WithScrapeLogf sets the func receiving progress logging.
func WithScrapeLogf(f func(string, ...interface{})) ScrapeOption {
	return func(s *Scraper) {
		s.logf = f
	}
}

// WithScrapeDebugf sets the func receiving debug logging.
func WithScrapeDebugf(f func(string, ...interface{})) ScrapeOption {
	return func(s *Scraper) {
		s.debugf = f
	}
}
