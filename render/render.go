// Package render turns scraped bookmark records into export documents and
// persists them.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mailru/easyjson/jwriter"

	"github.com/chromedp/bookmarkdp"
)

// Format is an output format.
type Format string

// Output formats.
const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Formats are the supported output formats.
var Formats = []Format{FormatJSON, FormatMarkdown}

// ParseFormat parses s as an output format, ignoring case. "md" is accepted
// for markdown.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatMarkdown:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("unknown format %q (want json or markdown)", s)
}

// Render renders records in format f.
func Render(f Format, records []bookmarkdp.Record, generatedAt time.Time) ([]byte, error) {
	switch f {
	case FormatJSON:
		return JSON(records, generatedAt)
	case FormatMarkdown:
		return Markdown(records, generatedAt), nil
	}
	return nil, fmt.Errorf("unknown format %q", f)
}

// JSON renders records as an indented JSON export document:
//
//	{"generatedAt": "...", "count": n, "bookmarks": [...]}
func JSON(records []bookmarkdp.Record, generatedAt time.Time) ([]byte, error) {
	w := jwriter.Writer{}
	w.RawString(`{"generatedAt":`)
	w.String(generatedAt.UTC().Format(time.RFC3339))
	w.RawString(`,"count":`)
	w.Int(len(records))
	w.RawString(`,"bookmarks":[`)
	for i, r := range records {
		if i != 0 {
			w.RawByte(',')
		}
		r.MarshalEasyJSON(&w)
	}
	w.RawString(`]}`)
	if w.Error != nil {
		return nil, w.Error
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, w.Buffer.BuildBytes(), "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// author is a per-author digest row.
type author struct {
	name, handle string
	count        int
	likes        int64
}

// authors tallies records by author handle, most bookmarked first.
func authors(records []bookmarkdp.Record) []author {
	idx := make(map[string]int)
	var out []author
	for _, r := range records {
		i, ok := idx[r.AuthorHandle]
		if !ok {
			i = len(out)
			idx[r.AuthorHandle] = i
			out = append(out, author{name: r.AuthorName, handle: r.AuthorHandle})
		}
		out[i].count++
		out[i].likes += r.Likes
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].count > out[j].count
	})
	return out
}

// Markdown renders records as a markdown digest: a per-author summary table
// followed by one section per post.
func Markdown(records []bookmarkdp.Record, generatedAt time.Time) []byte {
	var b strings.Builder
	b.WriteString("# Bookmarks\n\n")
	fmt.Fprintf(&b, "Generated %s. %d bookmarks.\n", generatedAt.UTC().Format(time.RFC3339), len(records))
	if len(records) == 0 {
		return []byte(b.String())
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Author", "Handle", "Bookmarks", "Likes"})
	for _, a := range authors(records) {
		t.AppendRow(table.Row{a.name, "@" + a.handle, a.count, a.likes})
	}
	b.WriteString("\n## Authors\n\n")
	b.WriteString(t.RenderMarkdown())
	b.WriteString("\n\n## Posts\n")

	for _, r := range records {
		fmt.Fprintf(&b, "\n### %s (@%s)\n\n", r.AuthorName, r.AuthorHandle)
		if text := strings.TrimSpace(r.Text); text != "" {
			b.WriteString("> " + strings.ReplaceAll(text, "\n", "\n> ") + "\n\n")
		}
		if r.URL != "" {
			fmt.Fprintf(&b, "- Link: <%s>\n", r.URL)
		}
		if r.Timestamp != "" {
			fmt.Fprintf(&b, "- Posted: %s\n", r.Timestamp)
		}
		fmt.Fprintf(&b, "- Replies: %d, reposts: %d, likes: %d, views: %d\n", r.Replies, r.Reposts, r.Likes, r.Views)
		if r.HasMedia {
			b.WriteString("- Has media\n")
		}
		if r.Folder != "" {
			fmt.Fprintf(&b, "- Folder: %s\n", r.Folder)
		}
	}
	return []byte(b.String())
}

// WriteError is returned when an output document cannot be persisted.
type WriteError struct {
	Path string
	Err  error
}

// Error satisfies the error interface.
func (err *WriteError) Error() string {
	return fmt.Sprintf("could not write %s: %v", err.Path, err.Err)
}

// Unwrap returns the underlying error.
func (err *WriteError) Unwrap() error {
	return err.Err
}

// Write writes data to path, creating missing parent directories.
func Write(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &WriteError{Path: path, Err: err}
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}
