package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Resource is a server-owned record with a stable identity.
type Resource interface {
	ResourceID() string
}

// ID is a resource identifier. The backend sends ids as strings for some
// kinds and as numbers for others; both decode to the same ID.
type ID string

// UnmarshalJSON accepts a JSON string, number or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Int returns the numeric form of the id, or 0 if it is not numeric.
func (id ID) Int() int {
	n, err := strconv.Atoi(string(id))
	if err != nil {
		return 0
	}
	return n
}

// Device status values
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Device is a piece of classroom hardware (camera, reader, sensor).
type Device struct {
	ID        ID        `json:"id"`
	DeviceID  ID        `json:"deviceId,omitempty"`
	Name      string    `json:"name"`
	Type      string    `json:"type,omitempty"`
	Status    string    `json:"status"`
	Address   string    `json:"address,omitempty"`
	LastSeen  Timestamp `json:"lastSeen"`
	LastPing  Timestamp `json:"lastPing"`
	LatencyMs *int      `json:"latencyMs,omitempty"`
}

// ResourceID implements Resource.
func (d Device) ResourceID() string {
	if d.ID != "" {
		return string(d.ID)
	}
	return string(d.DeviceID)
}

// LastContact is the most recent of LastSeen and LastPing.
func (d Device) LastContact() time.Time {
	if d.LastPing.After(d.LastSeen.Time) {
		return d.LastPing.Time
	}
	return d.LastSeen.Time
}

// DeviceStats summarizes device statuses.
type DeviceStats struct {
	Total   int `json:"total"`
	Online  int `json:"online"`
	Offline int `json:"offline"`
}

// CountDevices computes stats from a device collection.
func CountDevices(devices []Device) DeviceStats {
	stats := DeviceStats{Total: len(devices)}
	for _, d := range devices {
		switch strings.ToLower(d.Status) {
		case StatusOnline:
			stats.Online++
		case StatusOffline:
			stats.Offline++
		}
	}
	return stats
}

// DeviceUpdate is the body of a device PUT.
type DeviceUpdate struct {
	Status    string     `json:"status"`
	LastSeen  *Timestamp `json:"lastSeen,omitempty"`
	LastPing  Timestamp  `json:"lastPing"`
	LatencyMs *int       `json:"latencyMs,omitempty"`
}

// User is a staff account.
type User struct {
	ID       ID     `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	IsActive bool   `json:"isActive"`
}

// ResourceID implements Resource.
func (u User) ResourceID() string { return string(u.ID) }

// UserInput is the body of a user create or update.
type UserInput struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required,campus_email"`
	Role      string `json:"role" validate:"required,staff_role"`
	Password  string `json:"password,omitempty"`
}

// Policy is an attendance policy bound to a teaching module.
type Policy struct {
	ID            ID   `json:"id"`
	PolicyID      ID   `json:"policyId,omitempty"`
	ModuleID      ID   `json:"moduleId"`
	GracePeriod   int  `json:"gracePeriod"`
	LateThreshold int  `json:"lateThreshold"`
	IsActive      bool `json:"isActive"`

	// ModuleLabel is resolved from the module list when policies are
	// loaded. It is never sent to the backend.
	ModuleLabel string `json:"-"`
}

// ResourceID implements Resource.
func (p Policy) ResourceID() string {
	if p.ID != "" {
		return string(p.ID)
	}
	return string(p.PolicyID)
}

// PolicyInput is the body of a policy create or update.
type PolicyInput struct {
	ModuleID      int  `json:"moduleId" validate:"required,gt=0"`
	GracePeriod   int  `json:"gracePeriod" validate:"gte=0"`
	LateThreshold int  `json:"lateThreshold" validate:"gte=0"`
	IsActive      bool `json:"isActive"`
}

// Policy form defaults
const (
	DefaultGracePeriod   = 10
	DefaultLateThreshold = 15
)

// Module is a taught course unit that policies attach to.
type Module struct {
	ID   ID     `json:"id"`
	Code string `json:"module_code"`
	Name string `json:"module_name"`
}

// ResourceID implements Resource.
func (m Module) ResourceID() string { return string(m.ID) }

// Label renders the module as "CODE - Name".
func (m Module) Label() string {
	return m.Code + " - " + m.Name
}

// UnknownModule labels a policy whose module is not in the module list.
const UnknownModule = "Unknown Module"

// ModuleLabel finds the label of module id in modules.
func ModuleLabel(modules []Module, id ID) string {
	for _, m := range modules {
		if m.ID == id {
			return m.Label()
		}
	}
	return UnknownModule
}
