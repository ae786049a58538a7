// Package alerter derives the alert list shown on the console from the
// current device collection and the server alert feed.
package alerter

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/campusattend/console/internal/types"
)

// Options control local alert derivation.
type Options struct {
	// Now is the reference time for staleness checks.
	Now time.Time
	// OfflineAfter marks a device offline when its last contact is older
	// than this. Zero disables the staleness rule; an explicit offline
	// status still raises an alert.
	OfflineAfter time.Duration
	// OfflineSeverity is used for derived offline alerts.
	OfflineSeverity types.Severity
}

// OfflineAlertID returns the id of the derived offline alert for a device.
func OfflineAlertID(deviceID string) types.ID {
	return types.ID(fmt.Sprintf("device-offline:%s", deviceID))
}

// Derive merges alerts derived from devices with the server feed and returns
// them in display order. It does not modify its arguments and returns the
// same sequence for any permutation of the same inputs.
func Derive(devices []types.Device, feed []types.Alert, opts Options) []types.Alert {
	severity := opts.OfflineSeverity
	if severity == "" {
		severity = types.SeverityHigh
	}

	alerts := make([]types.Alert, 0, len(feed)+len(devices))
	seen := make(map[types.ID]struct{}, len(feed))

	server := make([]types.Alert, len(feed))
	for i, a := range feed {
		a.Severity = types.ParseSeverity(string(a.Severity))
		if a.Source == "" {
			a.Source = types.SourceServer
		}
		server[i] = a
	}
	// Sorted first so duplicate ids resolve the same way for any feed order.
	Sort(server)

	// Server alerts win on id collision.
	for _, a := range server {
		if _, dup := seen[a.ID]; dup && a.ID != "" {
			continue
		}
		seen[a.ID] = struct{}{}
		alerts = append(alerts, a)
	}

	for _, d := range devices {
		reason, ok := offlineReason(d, opts)
		if !ok {
			continue
		}
		id := OfflineAlertID(d.ResourceID())
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		createdAt := d.LastContact()
		if createdAt.IsZero() {
			createdAt = opts.Now
		}
		alerts = append(alerts, types.Alert{
			ID:          id,
			Severity:    severity,
			Title:       "Device offline: " + displayName(d),
			Description: reason,
			CreatedAt:   types.At(createdAt),
			DeviceID:    d.ResourceID(),
			Source:      types.SourceDerived,
		})
	}

	Sort(alerts)
	return alerts
}

func offlineReason(d types.Device, opts Options) (string, bool) {
	if strings.EqualFold(d.Status, types.StatusOffline) {
		return fmt.Sprintf("%s is reporting offline", displayName(d)), true
	}
	if opts.OfflineAfter <= 0 || opts.Now.IsZero() {
		return "", false
	}
	last := d.LastContact()
	if last.IsZero() {
		return "", false
	}
	age := opts.Now.Sub(last)
	if age <= opts.OfflineAfter {
		return "", false
	}
	return fmt.Sprintf("%s has not been seen for %s", displayName(d), age.Round(time.Second)), true
}

func displayName(d types.Device) string {
	if d.Name != "" {
		return d.Name
	}
	return d.ResourceID()
}

// Sort orders alerts by severity, newest first within a severity, then by
// id, title and description so the order is total.
func Sort(alerts []types.Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		a, b := alerts[i], alerts[j]
		if ra, rb := a.Severity.Rank(), b.Severity.Rank(); ra != rb {
			return ra > rb
		}
		if !a.CreatedAt.Equal(b.CreatedAt.Time) {
			return a.CreatedAt.After(b.CreatedAt.Time)
		}
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.Description < b.Description
	})
}

// CountBySeverity tallies alerts per severity, including zero counts.
func CountBySeverity(alerts []types.Alert) map[string]int {
	counts := map[string]int{
		string(types.SeverityCritical): 0,
		string(types.SeverityHigh):     0,
		string(types.SeverityMedium):   0,
		string(types.SeverityLow):      0,
	}
	for _, a := range alerts {
		counts[string(a.Severity)]++
	}
	return counts
}
