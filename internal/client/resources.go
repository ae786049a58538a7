package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/campusattend/console/internal/types"
)

// ListDevices fetches GET /api/devices.
func (c *Client) ListDevices(ctx context.Context) ([]types.Device, error) {
	var devices []types.Device
	if err := c.get(ctx, "/api/devices", "devices", &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// DeviceStats fetches GET /api/devices/stats.
func (c *Client) DeviceStats(ctx context.Context) (types.DeviceStats, error) {
	var stats types.DeviceStats
	err := c.get(ctx, "/api/devices/stats", "stats", &stats)
	return stats, err
}

// UpdateDevice sends PUT /api/devices/{id}.
func (c *Client) UpdateDevice(ctx context.Context, id string, update types.DeviceUpdate) error {
	return c.send(ctx, http.MethodPut, "/api/devices/"+url.PathEscape(id), update)
}

// ListAlerts fetches the server alert feed.
func (c *Client) ListAlerts(ctx context.Context) ([]types.Alert, error) {
	var alerts []types.Alert
	if err := c.get(ctx, "/api/alerts", "alerts", &alerts); err != nil {
		return nil, err
	}
	for i := range alerts {
		alerts[i].Source = types.SourceServer
	}
	return alerts, nil
}

// ListUsers fetches GET /api/users.
func (c *Client) ListUsers(ctx context.Context) ([]types.User, error) {
	var users []types.User
	if err := c.get(ctx, "/api/users", "users", &users); err != nil {
		return nil, err
	}
	return users, nil
}

// CreateUser sends POST /api/users.
func (c *Client) CreateUser(ctx context.Context, in types.UserInput) error {
	return c.send(ctx, http.MethodPost, "/api/users", in)
}

// UpdateUser sends PUT /api/users/{id}. The password is never sent on update.
func (c *Client) UpdateUser(ctx context.Context, id string, in types.UserInput) error {
	in.Password = ""
	return c.send(ctx, http.MethodPut, "/api/users/"+url.PathEscape(id), in)
}

// DeleteUser sends DELETE /api/users/{id}.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.send(ctx, http.MethodDelete, "/api/users/"+url.PathEscape(id), nil)
}

// ListPolicies fetches GET /api/policies.
func (c *Client) ListPolicies(ctx context.Context) ([]types.Policy, error) {
	var policies []types.Policy
	if err := c.get(ctx, "/api/policies", "policies", &policies); err != nil {
		return nil, err
	}
	return policies, nil
}

// CreatePolicy sends POST /api/policies.
func (c *Client) CreatePolicy(ctx context.Context, in types.PolicyInput) error {
	return c.send(ctx, http.MethodPost, "/api/policies", in)
}

// UpdatePolicy sends PUT /api/policies/{id}.
func (c *Client) UpdatePolicy(ctx context.Context, id string, in types.PolicyInput) error {
	return c.send(ctx, http.MethodPut, "/api/policies/"+url.PathEscape(id), in)
}

// DeletePolicy sends DELETE /api/policies/{id}.
func (c *Client) DeletePolicy(ctx context.Context, id string) error {
	return c.send(ctx, http.MethodDelete, "/api/policies/"+url.PathEscape(id), nil)
}

// ListModules fetches the teaching modules policies refer to.
func (c *Client) ListModules(ctx context.Context) ([]types.Module, error) {
	var modules []types.Module
	if err := c.get(ctx, "/api/ssa/modules", "modules", &modules); err != nil {
		return nil, err
	}
	return modules, nil
}

// Logout notifies the backend that the operator session ended.
func (c *Client) Logout(ctx context.Context) error {
	return c.send(ctx, http.MethodPost, "/api/auth/logout", nil)
}
