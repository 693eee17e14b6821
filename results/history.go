package results

import (
	"net/url"
	"regexp"
	"strings"
	"sync"
)

// Record is one decoded payload.
type Record struct {
	TimestampMillis int64  `json:"date"`
	Content         string `json:"content"`
}

// Href returns the link form of the content, if it looks like one.
func (r Record) Href() (string, bool) {
	return ClassifyURL(r.Content)
}

// History is the append-only log of decoded payloads for one session.
// Reads return the newest record first.
type History struct {
	mu      sync.RWMutex
	records []Record // oldest first
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{}
}

// Add records a payload and returns the stored record.
func (h *History) Add(timestampMillis int64, content string) Record {
	rec := Record{TimestampMillis: timestampMillis, Content: content}
	h.mu.Lock()
	h.records = append(h.records, rec)
	h.mu.Unlock()
	return rec
}

// Len returns the number of records.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}

// All returns every record, newest first.
func (h *History) All() []Record {
	return h.Latest(-1)
}

// Latest returns at most n records, newest first. n < 0 returns all of them.
func (h *History) Latest(n int) []Record {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n < 0 || n > len(h.records) {
		n = len(h.records)
	}
	out := make([]Record, 0, n)
	for i := len(h.records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, h.records[i])
	}
	return out
}

var looksLikeDomain = regexp.MustCompile(`(?i)^([\w-]+\.)+[\w-]{2,}(:\d+)?(/.*)?$`)

// ClassifyURL decides whether content should be rendered as a link.
// Absolute URLs come back normalised; bare host names with an optional port
// and path get an http:// prefix. Anything else is not a link.
func ClassifyURL(content string) (string, bool) {
	if content == "" {
		return "", false
	}

	// "host.lan:8080/x" would otherwise parse with "host.lan" as its scheme.
	if looksLikeDomain.MatchString(content) {
		return "http://" + content, true
	}

	if u, err := url.Parse(content); err == nil && u.Scheme != "" && (u.Host != "" || u.Opaque != "") {
		u.Host = strings.ToLower(u.Host)
		if u.Host != "" && u.Path == "" {
			u.Path = "/"
		}
		return u.String(), true
	}
	return "", false
}
