package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDAcceptsStringsAndNumbers(t *testing.T) {
	var out struct {
		A ID `json:"a"`
		B ID `json:"b"`
		C ID `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"d1","b":42,"c":null}`), &out))
	assert.Equal(t, ID("d1"), out.A)
	assert.Equal(t, ID("42"), out.B)
	assert.Equal(t, 42, out.B.Int())
	assert.Equal(t, ID(""), out.C)
}

func TestTimestampLayouts(t *testing.T) {
	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, raw := range []string{
		`"2024-01-01T00:00:00Z"`,
		`"2024-01-01T00:00:00"`,
		`"2024-01-01 00:00:00"`,
	} {
		var ts Timestamp
		require.NoError(t, json.Unmarshal([]byte(raw), &ts), raw)
		assert.True(t, ts.Equal(want), raw)
	}

	var empty Timestamp
	require.NoError(t, json.Unmarshal([]byte(`""`), &empty))
	assert.True(t, empty.IsZero())

	var bad Timestamp
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &bad))
}

func TestSeverityNormalizes(t *testing.T) {
	var a Alert
	require.NoError(t, json.Unmarshal([]byte(`{"id":1,"severity":"CRITICAL","title":"x"}`), &a))
	assert.Equal(t, SeverityCritical, a.Severity)
	assert.Equal(t, SeverityMedium, ParseSeverity(""))
	assert.Equal(t, SeverityMedium, ParseSeverity("urgent"))
	assert.Greater(t, SeverityHigh.Rank(), SeverityMedium.Rank())
}

func TestDeviceFallbacks(t *testing.T) {
	d := Device{DeviceID: "cam-7"}
	assert.Equal(t, "cam-7", d.ResourceID())

	seen := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d.LastSeen = At(seen)
	d.LastPing = At(seen.Add(time.Minute))
	assert.Equal(t, seen.Add(time.Minute), d.LastContact())
}

func TestRoleLabel(t *testing.T) {
	assert.Equal(t, "Lecturer", RoleLabel(RoleLecturer))
	assert.Equal(t, "janitor", RoleLabel("janitor"))
	assert.False(t, IsRole("janitor"))
}

func TestModuleLabel(t *testing.T) {
	modules := []Module{{ID: "3", Code: "CS101", Name: "Intro to Computing"}}
	assert.Equal(t, "CS101 - Intro to Computing", ModuleLabel(modules, "3"))
	assert.Equal(t, UnknownModule, ModuleLabel(modules, "9"))
	assert.Equal(t, UnknownModule, ModuleLabel(nil, "3"))
}

func TestCountDevices(t *testing.T) {
	stats := CountDevices([]Device{{Status: StatusOnline}, {Status: StatusOffline}, {Status: "maintenance"}})
	assert.Equal(t, DeviceStats{Total: 3, Online: 1, Offline: 1}, stats)

	stats = CountDevices([]Device{{Status: "ONLINE"}, {Status: "Offline"}, {Status: "online"}})
	assert.Equal(t, DeviceStats{Total: 3, Online: 2, Offline: 1}, stats)
}
