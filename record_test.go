package bookmarkdp

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"
)

func ids(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestDecodeRecords(t *testing.T) {
	t.Parallel()

	payload := `[
		{"id":"1","authorName":"Ada","authorHandle":"ada","text":"hello","url":"https://x.com/ada/status/1","timestamp":"2024-01-02T03:04:05.000Z","replies":3,"reposts":1,"likes":10,"views":1200,"hasMedia":true,"folder":"AI"},
		{"id":"2","authorName":"Bob","authorHandle":"bob","text":"","url":"https://x.com/bob/status/2","timestamp":""},
		{"id":"3","authorName":"Eve","authorHandle":"eve","text":"no url","timestamp":""},
		{"id":"","authorName":"Nil","authorHandle":"nil","text":"t","url":"u","timestamp":""},
		{"id":4,"authorName":"Num","authorHandle":"num","text":"t","url":"u","timestamp":""},
		{"id":"5","authorName":"Neg","authorHandle":"neg","text":"t","url":"u","timestamp":"","likes":-4,"views":"1.2K"},
		{"id":"6","authorName":"Big","authorHandle":"big","text":"t","url":"u","timestamp":"","likes":9223372036854775808,"views":1e30,"replies":9007199254740992,"folder":" Go "},
		"not an object",
		null
	]`

	records, dropped, err := decodeRecords([]byte(payload))
	if err != nil {
		t.Fatal(err)
	}
	if dropped != 5 {
		t.Errorf("want 5 dropped, got %d", dropped)
	}
	if got, want := ids(records), []string{"1", "2", "5", "6"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("want %v, got %v", want, got)
	}

	want := Record{
		ID:           "1",
		AuthorName:   "Ada",
		AuthorHandle: "ada",
		Text:         "hello",
		URL:          "https://x.com/ada/status/1",
		Timestamp:    "2024-01-02T03:04:05.000Z",
		Replies:      3,
		Reposts:      1,
		Likes:        10,
		Views:        1200,
		HasMedia:     true,
		Folder:       "AI",
	}
	if records[0] != want {
		t.Errorf("want %+v, got %+v", want, records[0])
	}
	if r := records[2]; r.Likes != 0 || r.Views != 0 {
		t.Errorf("want invalid counters zeroed, got likes=%d views=%d", r.Likes, r.Views)
	}
	if r := records[3]; r.Likes != math.MaxInt64 || r.Views != math.MaxInt64 || r.Replies != 9007199254740992 {
		t.Errorf("want huge counters clamped, got likes=%d views=%d replies=%d", r.Likes, r.Views, r.Replies)
	}
	if got := records[3].Folder; got != " Go " {
		t.Errorf("want folder tag kept verbatim, got %q", got)
	}
}

func TestDecodeRecordsInvalidPayload(t *testing.T) {
	t.Parallel()

	for _, payload := range []string{``, `null`, `{}`, `"x"`, `42`, `true`} {
		if _, _, err := decodeRecords([]byte(payload)); err != ErrInvalidBookmarkPayload {
			t.Errorf("%q: want %v, got %v", payload, ErrInvalidBookmarkPayload, err)
		}
	}
	records, _, err := decodeRecords([]byte(`[]`))
	if err != nil || len(records) != 0 {
		t.Errorf("empty list: want no records and no error, got %v, %v", records, err)
	}
}

func TestFilterByFolder(t *testing.T) {
	t.Parallel()

	records := []Record{
		{ID: "a", Folder: "AI"},
		{ID: "b"},
		{ID: "c", Folder: "ai"},
		{ID: "d", Folder: "Go"},
		{ID: "e", Folder: "AI research"},
		{ID: "f", Folder: " AI "},
	}
	tests := []struct {
		folder string
		want   []string
	}{
		{"", []string{"a", "b", "c", "d", "e", "f"}},
		{"   ", []string{"a", "b", "c", "d", "e", "f"}},
		{"ai", []string{"a", "c"}},
		{" Ai ", []string{"a", "c"}},
		{"go", []string{"d"}},
		{"rust", []string{}},
	}
	for _, tt := range tests {
		if got := ids(FilterByFolder(records, tt.folder)); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("folder %q: want %v, got %v", tt.folder, tt.want, got)
		}
	}
}

func TestDedupe(t *testing.T) {
	t.Parallel()

	records := []Record{
		{ID: "a", Text: "first"},
		{ID: "b"},
		{ID: "a", Text: "second"},
		{ID: "c"},
		{ID: "b"},
	}
	got := Dedupe(records)
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("want %v, got %v", want, ids(got))
	}
	if got[0].Text != "first" {
		t.Fatalf("want first occurrence kept, got %q", got[0].Text)
	}
}

func TestRecordMarshalJSON(t *testing.T) {
	t.Parallel()

	r := Record{ID: "1", AuthorName: "Ada \"A\"", AuthorHandle: "ada", URL: "u", Likes: 2, HasMedia: true}
	buf, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(buf, &m); err != nil {
		t.Fatalf("invalid json %s: %v", buf, err)
	}
	if m["authorName"] != "Ada \"A\"" || m["likes"] != float64(2) || m["hasMedia"] != true {
		t.Fatalf("unexpected encoding: %s", buf)
	}
	if _, ok := m["folder"]; ok {
		t.Fatalf("want empty folder omitted: %s", buf)
	}
}
