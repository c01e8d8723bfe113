package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/chromedp/bookmarkdp"
	"github.com/chromedp/bookmarkdp/cdptest"
)

var testNow = func() time.Time {
	return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
}

// timeline answers the scraper's evaluations with a rendered page holding
// entries.
func timeline(ready bool, entries []interface{}) cdptest.Handler {
	return func(req *cdproto.Message) cdptest.Response {
		expr := cdptest.Expression(req)
		switch {
		case strings.Contains(expr, "authorHandle"):
			return cdptest.EvalValue(entries)
		case strings.Contains(expr, "scrollBy"):
			return cdptest.EvalValue(800)
		case strings.Contains(expr, "primaryColumn"):
			return cdptest.EvalValue(ready)
		}
		return cdptest.EvalValue(0)
	}
}

func entry(id, handle, folder string) map[string]interface{} {
	return map[string]interface{}{
		"id":           id,
		"authorName":   strings.ToUpper(handle),
		"authorHandle": handle,
		"text":         "post " + id,
		"url":          "https://x.com/" + handle + "/status/" + id,
		"timestamp":    "2024-04-30T10:00:00.000Z",
		"likes":        3,
		"folder":       folder,
	}
}

func testConfig(t *testing.T, srv *cdptest.Server) Config {
	t.Helper()
	u, err := url.Parse(srv.WebsocketURL())
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	cfg := defaultConfig()
	cfg.Host = u.Hostname()
	cfg.Port = port
	cfg.Path = cdptest.Path
	cfg.Output = filepath.Join(t.TempDir(), "export", "bookmarks.json")
	cfg.MaxScrolls = 2
	cfg.ScrollDelay = time.Millisecond
	cfg.RetryDelay = time.Millisecond
	cfg.PageLoadTimeout = 2 * time.Second
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestRunScrape(t *testing.T) {
	t.Parallel()

	srv := cdptest.NewServer()
	defer srv.Close()
	srv.Handle("Runtime.evaluate", timeline(true, []interface{}{
		entry("1", "ada", "AI"),
		entry("2", "bob", ""),
		entry("1", "ada", "AI"),
		entry("3", "eve", "ai"),
	}))

	cfg := testConfig(t, srv)
	cfg.Folder = "ai"
	require.NoError(t, runScrape(context.Background(), cfg, zaptest.NewLogger(t).Sugar(), testNow))

	buf, err := os.ReadFile(cfg.Output)
	require.NoError(t, err)
	var doc struct {
		GeneratedAt string `json:"generatedAt"`
		Count       int    `json:"count"`
		Bookmarks   []struct {
			ID     string `json:"id"`
			Folder string `json:"folder"`
		} `json:"bookmarks"`
	}
	require.NoError(t, json.Unmarshal(buf, &doc))
	assert.Equal(t, "2024-05-01T12:00:00Z", doc.GeneratedAt)
	assert.Equal(t, 2, doc.Count)
	require.Len(t, doc.Bookmarks, 2)
	assert.Equal(t, "1", doc.Bookmarks[0].ID)
	assert.Equal(t, "3", doc.Bookmarks[1].ID)
}

func TestRunScrapeMarkdown(t *testing.T) {
	t.Parallel()

	srv := cdptest.NewServer()
	defer srv.Close()
	srv.Handle("Runtime.evaluate", timeline(true, []interface{}{entry("7", "ada", "")}))

	cfg := testConfig(t, srv)
	cfg.Format = "markdown"
	cfg.Output = filepath.Join(filepath.Dir(cfg.Output), "digest.md")
	require.NoError(t, runScrape(context.Background(), cfg, zaptest.NewLogger(t).Sugar(), testNow))

	buf, err := os.ReadFile(cfg.Output)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf, []byte("# Bookmarks\n")))
	assert.Contains(t, string(buf), "### ADA (@ada)")
}

func TestRunScrapePageLoadTimeout(t *testing.T) {
	t.Parallel()

	srv := cdptest.NewServer()
	defer srv.Close()
	srv.Handle("Runtime.evaluate", timeline(false, nil))

	cfg := testConfig(t, srv)
	cfg.PageLoadTimeout = 200 * time.Millisecond
	err := runScrape(context.Background(), cfg, zaptest.NewLogger(t).Sugar(), testNow)

	var perr *bookmarkdp.PageLoadTimeoutError
	require.True(t, errors.As(err, &perr), "want *PageLoadTimeoutError, got %v", err)
	_, statErr := os.Stat(cfg.Output)
	assert.True(t, os.IsNotExist(statErr), "want no output written")
}

func TestRunScrapeConnectionFailed(t *testing.T) {
	t.Parallel()

	srv := cdptest.NewServer()
	cfg := testConfig(t, srv)
	srv.Close()

	err := runScrape(context.Background(), cfg, zaptest.NewLogger(t).Sugar(), testNow)
	var cerr *bookmarkdp.ConnectionFailedError
	require.True(t, errors.As(err, &cerr), "want *ConnectionFailedError, got %v", err)
	_, statErr := os.Stat(cfg.Output)
	assert.True(t, os.IsNotExist(statErr), "want no output written")
}

func TestRootCmdRejectsInvalidFlags(t *testing.T) {
	t.Parallel()

	cmd := newRootCmd()
	cmd.SetArgs([]string{"scrape", "--output", filepath.Join(t.TempDir(), "x.json"), "--format", "xml"})
	cmd.SetOut(new(bytes.Buffer))
	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown format "xml"`)
}

func TestRootCmdVersion(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs([]string{"version"})
	cmd.SetOut(&out)
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Equal(t, "bookmarkdp dev\n", out.String())
}
