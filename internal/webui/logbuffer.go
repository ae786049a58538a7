package webui

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// LogEntry represents a single log entry
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Component string    `json:"component,omitempty"`
	Message   string    `json:"message"`
	Raw       string    `json:"raw"`
}

// LogBuffer is a thread-safe ring buffer for log entries
type LogBuffer struct {
	entries []LogEntry
	size    int
	head    int
	count   int
	mu      sync.RWMutex
	now     func() time.Time
}

// NewLogBuffer creates a new log buffer with the specified capacity
func NewLogBuffer(size int) *LogBuffer {
	if size < 1 {
		size = 1
	}
	return &LogBuffer{
		entries: make([]LogEntry, size),
		size:    size,
		now:     time.Now,
	}
}

// Write implements io.Writer for capturing zerolog output. Each call is
// expected to carry one JSON line.
func (lb *LogBuffer) Write(p []byte) (n int, err error) {
	entry := parseEntry(string(p), lb.now())

	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.entries[lb.head] = entry
	lb.head = (lb.head + 1) % lb.size
	if lb.count < lb.size {
		lb.count++
	}

	return len(p), nil
}

// GetEntries returns all log entries in chronological order
func (lb *LogBuffer) GetEntries() []LogEntry {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	result := make([]LogEntry, lb.count)
	if lb.count == 0 {
		return result
	}

	start := 0
	if lb.count == lb.size {
		start = lb.head
	}

	for i := 0; i < lb.count; i++ {
		idx := (start + i) % lb.size
		result[i] = lb.entries[idx]
	}

	return result
}

// GetRecentEntries returns the most recent n entries
func (lb *LogBuffer) GetRecentEntries(n int) []LogEntry {
	entries := lb.GetEntries()
	if n < 0 || len(entries) <= n {
		return entries
	}
	return entries[len(entries)-n:]
}

// Clear clears all log entries
func (lb *LogBuffer) Clear() {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.head = 0
	lb.count = 0
}

// parseEntry decodes a zerolog JSON line. Lines that are not JSON are kept
// verbatim at info level.
func parseEntry(raw string, received time.Time) LogEntry {
	entry := LogEntry{
		Timestamp: received,
		Level:     "info",
		Message:   strings.TrimSpace(raw),
		Raw:       raw,
	}

	var fields struct {
		Level     string          `json:"level"`
		Message   string          `json:"message"`
		Component string          `json:"component"`
		Time      json.RawMessage `json:"time"`
	}
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return entry
	}

	if fields.Level != "" {
		entry.Level = fields.Level
	}
	entry.Message = fields.Message
	entry.Component = fields.Component
	if ts, ok := parseTime(fields.Time); ok {
		entry.Timestamp = ts
	}
	return entry
}

// parseTime accepts both RFC 3339 strings and unix seconds.
func parseTime(raw json.RawMessage) (time.Time, bool) {
	if len(raw) == 0 {
		return time.Time{}, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		ts, err := time.Parse(time.RFC3339, s)
		return ts, err == nil
	}
	var secs int64
	if err := json.Unmarshal(raw, &secs); err == nil {
		return time.Unix(secs, 0), true
	}
	return time.Time{}, false
}
