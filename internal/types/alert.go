package types

import (
	"encoding/json"
	"strings"
)

// Severity is the urgency of an alert.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// ParseSeverity normalizes a severity string. Unknown or empty values
// become SeverityMedium.
func ParseSeverity(s string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityCritical:
		return SeverityCritical
	case SeverityHigh:
		return SeverityHigh
	case SeverityLow:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// UnmarshalJSON normalizes the decoded value with ParseSeverity.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ParseSeverity(raw)
	return nil
}

// Rank orders severities for display; higher is more urgent.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Alert sources
const (
	SourceServer  = "server"
	SourceDerived = "derived"
)

// Alert is either fetched verbatim from the alert feed or derived from
// device state. It only lives for one refresh cycle.
type Alert struct {
	ID          ID        `json:"id"`
	Severity    Severity  `json:"severity"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   Timestamp `json:"createdAt"`
	DeviceID    string    `json:"deviceId,omitempty"`
	Source      string    `json:"source,omitempty"`
}

// ResourceID implements Resource.
func (a Alert) ResourceID() string { return string(a.ID) }
