package view

import (
	"fmt"
	"html/template"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/campusattend/console/internal/types"
	"github.com/campusattend/console/internal/webui"
)

// Renderer turns a collection and the current alerts into markup. The
// output depends on nothing but the two arguments.
type Renderer[T types.Resource] func(items []T, alerts []types.Alert) (template.HTML, error)

const timeLayout = "2006-01-02 15:04:05"

func formatTime(ts types.Timestamp) string {
	if ts.IsZero() {
		return "Never"
	}
	return ts.UTC().Format(timeLayout) + " UTC"
}

// StatusLabel is the display form of a device status.
func StatusLabel(status string) (label, class string) {
	switch strings.ToLower(status) {
	case types.StatusOnline:
		return "Online", "online"
	case types.StatusOffline:
		return "Offline", "offline"
	case "":
		return "Unknown", "unknown"
	default:
		r, size := utf8.DecodeRuneInString(status)
		return string(unicode.ToUpper(r)) + status[size:], "unknown"
	}
}

// RenderDevices renders the stats strip, alert list and device cards.
func RenderDevices(devices []types.Device, alerts []types.Alert) (template.HTML, error) {
	stats := types.CountDevices(devices)
	data := webui.DevicesData{
		Stats: webui.Stats{Total: stats.Total, Online: stats.Online, Offline: stats.Offline},
	}

	for _, d := range devices {
		label, class := StatusLabel(d.Status)
		row := webui.DeviceRow{
			ID:          d.ResourceID(),
			Name:        d.Name,
			Type:        d.Type,
			StatusLabel: label,
			StatusClass: class,
			LastSeen:    formatTime(d.LastSeen),
		}
		if row.Name == "" {
			row.Name = row.ID
		}
		if !d.LastPing.IsZero() {
			row.LastPing = formatTime(d.LastPing)
		}
		if d.LatencyMs != nil {
			row.Latency = fmt.Sprintf("%d ms", *d.LatencyMs)
		}
		data.Devices = append(data.Devices, row)
	}

	for _, a := range alerts {
		data.Alerts = append(data.Alerts, webui.AlertRow{
			ID:          string(a.ID),
			Severity:    string(a.Severity),
			Title:       a.Title,
			Description: a.Description,
			CreatedAt:   formatTime(a.CreatedAt),
			Derived:     a.Source == types.SourceDerived,
		})
	}

	return webui.Execute("devices", data)
}

// RenderUsers renders the staff table. Alerts are not shown on this view.
func RenderUsers(users []types.User, _ []types.Alert) (template.HTML, error) {
	var data webui.UsersData
	for _, u := range users {
		first, last, _ := strings.Cut(strings.TrimSpace(u.Name), " ")
		data.Users = append(data.Users, webui.UserRow{
			ID:        u.ResourceID(),
			Name:      u.Name,
			FirstName: first,
			LastName:  strings.TrimSpace(last),
			Email:     u.Email,
			Role:      u.Role,
			RoleLabel: types.RoleLabel(u.Role),
			Active:    u.IsActive,
		})
	}
	return webui.Execute("users", data)
}

// RenderPolicies renders the policy table.
func RenderPolicies(policies []types.Policy, _ []types.Alert) (template.HTML, error) {
	var data webui.PoliciesData
	for _, p := range policies {
		module := p.ModuleLabel
		if module == "" {
			module = types.UnknownModule
		}
		data.Policies = append(data.Policies, webui.PolicyRow{
			ID:            p.ResourceID(),
			ModuleID:      string(p.ModuleID),
			Module:        module,
			GracePeriod:   p.GracePeriod,
			LateThreshold: p.LateThreshold,
			Active:        p.IsActive,
		})
	}
	return webui.Execute("policies", data)
}

// UserFilter matches users by a case-insensitive substring of name or
// email, and by exact role when role is set.
func UserFilter(query, role string) func(types.User) bool {
	query = strings.ToLower(strings.TrimSpace(query))
	role = strings.TrimSpace(role)
	return func(u types.User) bool {
		if role != "" && u.Role != role {
			return false
		}
		if query == "" {
			return true
		}
		return strings.Contains(strings.ToLower(u.Name), query) ||
			strings.Contains(strings.ToLower(u.Email), query)
	}
}

var (
	_ Renderer[types.Device] = RenderDevices
	_ Renderer[types.User]   = RenderUsers
	_ Renderer[types.Policy] = RenderPolicies
)
