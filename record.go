package bookmarkdp

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/mailru/easyjson/jwriter"
)

// Record is a single bookmarked post. Records are identified by ID.
type Record struct {
	ID           string
	AuthorName   string
	AuthorHandle string
	Text         string
	URL          string

	// Timestamp is the ISO-8601 post time, or empty.
	Timestamp string

	Replies int64
	Reposts int64
	Likes   int64
	Views   int64

	HasMedia bool

	// Folder is the bookmark folder the record was listed under, if any.
	Folder string
}

// MarshalEasyJSON satisfies easyjson.Marshaler.
func (r Record) MarshalEasyJSON(out *jwriter.Writer) {
	out.RawString(`{"id":`)
	out.String(r.ID)
	out.RawString(`,"authorName":`)
	out.String(r.AuthorName)
	out.RawString(`,"authorHandle":`)
	out.String(r.AuthorHandle)
	out.RawString(`,"text":`)
	out.String(r.Text)
	out.RawString(`,"url":`)
	out.String(r.URL)
	out.RawString(`,"timestamp":`)
	out.String(r.Timestamp)
	out.RawString(`,"replies":`)
	out.Int64(r.Replies)
	out.RawString(`,"reposts":`)
	out.Int64(r.Reposts)
	out.RawString(`,"likes":`)
	out.Int64(r.Likes)
	out.RawString(`,"views":`)
	out.Int64(r.Views)
	out.RawString(`,"hasMedia":`)
	out.Bool(r.HasMedia)
	if r.Folder != "" {
		out.RawString(`,"folder":`)
		out.String(r.Folder)
	}
	out.RawByte('}')
}

// MarshalJSON satisfies json.Marshaler.
func (r Record) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{}
	r.MarshalEasyJSON(&w)
	return w.Buffer.BuildBytes(), w.Error
}

// requiredFields are the entry keys without which an extracted entry is
// dropped.
var requiredFields = []string{"id", "authorName", "authorHandle", "text", "url", "timestamp"}

// decodeRecords decodes the value returned by the extraction script. It fails
// only when the value is not a list; malformed entries are skipped and
// counted in dropped.
func decodeRecords(buf []byte) (records []Record, dropped int, err error) {
	var entries []json.RawMessage
	if len(buf) == 0 || json.Unmarshal(buf, &entries) != nil || entries == nil {
		return nil, 0, ErrInvalidBookmarkPayload
	}

	records = make([]Record, 0, len(entries))
	for _, raw := range entries {
		r, ok := decodeRecord(raw)
		if !ok {
			dropped++
			continue
		}
		records = append(records, r)
	}
	return records, dropped, nil
}

// decodeRecord decodes a single extracted entry.
func decodeRecord(raw json.RawMessage) (Record, bool) {
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return Record{}, false
	}

	fields := make(map[string]string, len(requiredFields))
	for _, k := range requiredFields {
		s, ok := m[k].(string)
		if !ok {
			return Record{}, false
		}
		fields[k] = s
	}
	if strings.TrimSpace(fields["id"]) == "" {
		return Record{}, false
	}

	folder, _ := m["folder"].(string)
	hasMedia, _ := m["hasMedia"].(bool)
	return Record{
		ID:           fields["id"],
		AuthorName:   fields["authorName"],
		AuthorHandle: fields["authorHandle"],
		Text:         fields["text"],
		URL:          fields["url"],
		Timestamp:    fields["timestamp"],
		Replies:      counter(m["replies"]),
		Reposts:      counter(m["reposts"]),
		Likes:        counter(m["likes"]),
		Views:        counter(m["views"]),
		HasMedia:     hasMedia,
		Folder:       folder,
	}, true
}

// counter converts an engagement counter, mapping anything that is not a
// finite non-negative number to 0.
func counter(v interface{}) int64 {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold
	if f >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(f)
}

// FilterByFolder returns the records whose folder equals folder, ignoring
// case. Only folder is trimmed; record tags must match exactly. Records
// without a folder never match. An empty (or blank) folder returns records
// unchanged.
func FilterByFolder(records []Record, folder string) []Record {
	folder = strings.TrimSpace(folder)
	if folder == "" {
		return records
	}
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Folder != "" && strings.EqualFold(r.Folder, folder) {
			out = append(out, r)
		}
	}
	return out
}

// Dedupe returns records with later duplicates of an ID removed, preserving
// order.
func Dedupe(records []Record) []Record {
	seen := make(map[string]bool, len(records))
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	return out
}
