package results

import "testing"

func TestClassifyURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"example.com/path", "http://example.com/path", true},
		{"sub.example.org", "http://sub.example.org", true},
		{"localhost.lan:8080/x?y=1", "http://localhost.lan:8080/x?y=1", true},
		// Host and port, not a "host.lan" scheme.
		{"host.lan:8080/x", "http://host.lan:8080/x", true},
		{"printer.local:631", "http://printer.local:631", true},
		{"https://a.com", "https://a.com/", true},
		{"HTTPS://Example.COM/Path", "https://example.com/Path", true},
		{"mailto:someone@example.com", "mailto:someone@example.com", true},
		{"not a url??", "", false},
		{"HELLO", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := ClassifyURL(c.in)
		if ok != c.ok || got != c.want {
			t.Errorf("ClassifyURL(%q) = %q, %v; want %q, %v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	h := NewHistory()
	h.Add(1, "first")
	h.Add(2, "second")
	h.Add(3, "third")

	all := h.All()
	if len(all) != 3 || h.Len() != 3 {
		t.Fatalf("got %d records", len(all))
	}
	if all[0].Content != "third" || all[2].Content != "first" {
		t.Fatalf("wrong order: %+v", all)
	}

	latest := h.Latest(2)
	if len(latest) != 2 || latest[0].TimestampMillis != 3 || latest[1].TimestampMillis != 2 {
		t.Fatalf("Latest(2) = %+v", latest)
	}
	if len(h.Latest(10)) != 3 {
		t.Fatalf("Latest(10) should cap at history length")
	}
}

func TestRecordHref(t *testing.T) {
	r := Record{Content: "example.com"}
	if href, ok := r.Href(); !ok || href != "http://example.com" {
		t.Fatalf("Href = %q, %v", href, ok)
	}
}
