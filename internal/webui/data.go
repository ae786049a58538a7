package webui

import (
	"bytes"
	"fmt"
	"html/template"
)

// Region names. Each is bound to an element with id "region-<name>".
const (
	RegionDevices  = "devices"
	RegionUsers    = "users"
	RegionPolicies = "policies"
)

// Stats is the device summary strip.
type Stats struct {
	Total   int
	Online  int
	Offline int
}

// DeviceRow is one device card.
type DeviceRow struct {
	ID          string
	Name        string
	Type        string
	StatusLabel string
	StatusClass string
	LastSeen    string
	LastPing    string
	Latency     string
}

// AlertRow is one entry of the alert list.
type AlertRow struct {
	ID          string
	Severity    string
	Title       string
	Description string
	CreatedAt   string
	Derived     bool
}

// DevicesData feeds the "devices" fragment.
type DevicesData struct {
	Stats   Stats
	Devices []DeviceRow
	Alerts  []AlertRow
}

// RoleOption is an entry in a role select.
type RoleOption struct {
	Value    string
	Label    string
	Selected bool
}

// UserRow is one row of the staff table.
type UserRow struct {
	ID        string
	Name      string
	FirstName string
	LastName  string
	Email     string
	Role      string
	RoleLabel string
	Active    bool
}

// UsersData feeds the "users" fragment.
type UsersData struct {
	Users []UserRow
}

// ModuleOption is an entry in the policy module select.
type ModuleOption struct {
	ID    string
	Label string
}

// PolicyRow is one row of the policy table.
type PolicyRow struct {
	ID            string
	ModuleID      string
	Module        string
	GracePeriod   int
	LateThreshold int
	Active        bool
}

// PoliciesData feeds the "policies" fragment.
type PoliciesData struct {
	Policies []PolicyRow
}

// Toast is a transient notification.
type Toast struct {
	ID      string
	Level   string
	Message string
}

// PageData feeds the full console page.
type PageData struct {
	Operator     string
	OperatorRole string
	Version      string
	Commit       string
	DisplayMs    int64
	Devices      template.HTML
	Users        template.HTML
	Policies     template.HTML

	Query         string
	Roles         []RoleOption
	Modules       []ModuleOption
	GracePeriod   int
	LateThreshold int

	Toasts       []Toast
	Logs         []LogEntry
}

// DeniedData feeds the access denied page.
type DeniedData struct {
	Message  string
	LoginURL string
}

// Execute runs the named template and returns its output as trusted markup.
func Execute(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := Templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return template.HTML(buf.String()), nil
}
