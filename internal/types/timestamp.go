package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// timestampLayouts are the formats the backend is known to emit. Python's
// isoformat() drops the zone for naive datetimes, which are treated as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// Timestamp is a time that decodes leniently from backend JSON. Empty
// strings and null decode to the zero time.
type Timestamp struct {
	time.Time
}

// At wraps t.
func At(t time.Time) Timestamp { return Timestamp{Time: t} }

// UnmarshalJSON implements json.Unmarshaler.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		ts.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if s == "" {
		ts.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			ts.Time = t
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

// MarshalJSON writes RFC 3339 in UTC, or null for the zero time.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(ts.UTC().Format(time.RFC3339Nano))
}
