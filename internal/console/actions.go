package console

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/campusattend/console/internal/client"
	"github.com/campusattend/console/internal/store"
	"github.com/campusattend/console/internal/types"
	"github.com/campusattend/console/internal/validate"
	"github.com/campusattend/console/internal/view"
	"github.com/campusattend/console/internal/webui"
)

// Operator-facing messages.
const (
	msgConnection    = "Error connecting to server"
	msgInvalidServer = "Server Error: the server returned an unexpected response"
)

// describe phrases a failed call for the operator.
func describe(prefix string, err error) string {
	var cerr *client.Error
	if errors.As(err, &cerr) {
		switch cerr.Kind {
		case client.NetworkFailure:
			return msgConnection
		case client.InvalidResponse:
			return msgInvalidServer
		default:
			return prefix + ": " + cerr.Reason()
		}
	}
	return prefix + ": " + err.Error()
}

func loadFailure(message string) func(error) string {
	return func(err error) string {
		if kind, ok := client.KindOf(err); ok && kind == client.NetworkFailure {
			return msgConnection
		}
		return message
	}
}

// RefreshDevices runs a device poll tick on demand.
func (a *App) RefreshDevices(ctx context.Context) error {
	return a.pollDevices(ctx)
}

// PingDevice marks a device as just contacted. With a probe configured and
// an address known, the device is probed first and marked offline if it
// does not answer.
func (a *App) PingDevice(ctx context.Context, id string) error {
	device, known := a.Devices.Get(id)

	call := func(ctx context.Context) error {
		now := types.At(a.now().UTC())
		update := types.DeviceUpdate{
			Status:   types.StatusOnline,
			LastSeen: &now,
			LastPing: now,
		}

		if a.prober != nil && known && device.Address != "" {
			res, err := a.prober.Probe(ctx, device.Address)
			if err != nil {
				a.logger.Warn().Err(err).Str("device", id).Msg("Device did not answer probe")
				update = types.DeviceUpdate{Status: types.StatusOffline, LastPing: now}
			} else {
				latency := res.LatencyMs()
				update.LatencyMs = &latency
			}
		}
		return a.client.UpdateDevice(ctx, id, update)
	}

	err := a.DevicesView.Act(ctx, view.Action{
		ResourceID: id,
		Mutation:   store.Mutation{Op: store.OpUpdate, ID: id, Call: call},
		Success:    "Device pinged successfully",
		Failure:    func(err error) string { return describe("Failed to ping device", err) },
	})
	if err == nil {
		a.deriveAlerts()
	}
	return err
}

// SaveUser creates a user when id is empty and updates it otherwise.
// Input is validated before anything is sent.
func (a *App) SaveUser(ctx context.Context, id string, in types.UserInput) error {
	in, err := validate.User(in)
	if err != nil {
		a.Notes.Error(ViewUsers, err.Error())
		return err
	}

	action := view.Action{ResourceID: id}
	if id == "" {
		in.Password = a.cfg.Users.DefaultPassword
		action.Mutation = store.Mutation{Op: store.OpCreate, Call: func(ctx context.Context) error {
			return a.client.CreateUser(ctx, in)
		}}
		action.Success = "User added successfully with default password: " + in.Password
		action.Failure = userFailure("Failed to add user", in.Email)
	} else {
		action.Mutation = store.Mutation{Op: store.OpUpdate, ID: id, Call: func(ctx context.Context) error {
			return a.client.UpdateUser(ctx, id, in)
		}}
		action.Success = "User updated successfully"
		action.Failure = userFailure("Failed to update user", in.Email)
	}
	return a.UsersView.Act(ctx, action)
}

func userFailure(prefix, email string) func(error) string {
	return func(err error) string {
		if client.IsConflict(err) {
			return fmt.Sprintf("User Already Exists: a user with email %q already exists in the system. Please use a different email address.", email)
		}
		return describe(prefix, err)
	}
}

// DeleteUser removes a user.
func (a *App) DeleteUser(ctx context.Context, id string) error {
	return a.UsersView.Act(ctx, view.Action{
		ResourceID: id,
		Mutation: store.Mutation{Op: store.OpDelete, ID: id, Call: func(ctx context.Context) error {
			return a.client.DeleteUser(ctx, id)
		}},
		Success: "User deleted successfully",
		Failure: func(err error) string { return describe("Failed to delete user", err) },
	})
}

// SavePolicy creates a policy when id is empty and updates it otherwise.
func (a *App) SavePolicy(ctx context.Context, id string, in types.PolicyInput) error {
	if err := validate.Policy(in); err != nil {
		a.Notes.Error(ViewPolicies, err.Error())
		return err
	}

	action := view.Action{ResourceID: id}
	if id == "" {
		action.Mutation = store.Mutation{Op: store.OpCreate, Call: func(ctx context.Context) error {
			return a.client.CreatePolicy(ctx, in)
		}}
		action.Success = "Policy created successfully"
		action.Failure = func(err error) string { return describe("Failed to create policy", err) }
	} else {
		action.Mutation = store.Mutation{Op: store.OpUpdate, ID: id, Call: func(ctx context.Context) error {
			return a.client.UpdatePolicy(ctx, id, in)
		}}
		action.Success = "Policy updated successfully"
		action.Failure = func(err error) string { return describe("Failed to update policy", err) }
	}
	return a.PoliciesView.Act(ctx, action)
}

// DeletePolicy removes a policy.
func (a *App) DeletePolicy(ctx context.Context, id string) error {
	return a.PoliciesView.Act(ctx, view.Action{
		ResourceID: id,
		Mutation: store.Mutation{Op: store.OpDelete, ID: id, Call: func(ctx context.Context) error {
			return a.client.DeletePolicy(ctx, id)
		}},
		Success: "Policy deleted successfully",
		Failure: func(err error) string { return describe("Failed to delete policy", err) },
	})
}

// FilterUsers renders the staff table narrowed by search text and role for
// one browser. The shared users region is left as it is.
func (a *App) FilterUsers(query, role string) (template.HTML, error) {
	shared := a.regions[ViewUsers].HTML()
	if strings.TrimSpace(query) == "" && strings.TrimSpace(role) == "" {
		return shared, nil
	}
	if a.UsersView.State() != view.StateRendered {
		return shared, nil
	}
	match := view.UserFilter(query, role)
	var users []types.User
	for _, u := range a.Users.All() {
		if match(u) {
			users = append(users, u)
		}
	}
	return view.RenderUsers(users, nil)
}

// Page assembles the full console page from the current regions, with the
// staff table narrowed by query and role.
func (a *App) Page(query, role string) webui.PageData {
	users, err := a.FilterUsers(query, role)
	if err != nil {
		a.logger.Error().Err(err).Msg("Failed to render filtered users")
		users = a.regions[ViewUsers].HTML()
	}

	page := webui.PageData{
		DisplayMs:     a.Notes.Display().Milliseconds(),
		Devices:       a.regions[ViewDevices].HTML(),
		Users:         users,
		Policies:      a.regions[ViewPolicies].HTML(),
		Query:         query,
		GracePeriod:   types.DefaultGracePeriod,
		LateThreshold: types.DefaultLateThreshold,
	}
	for _, r := range types.Roles {
		page.Roles = append(page.Roles, webui.RoleOption{Value: r, Label: types.RoleLabel(r), Selected: r == role})
	}
	for _, m := range a.Modules.All() {
		page.Modules = append(page.Modules, webui.ModuleOption{ID: string(m.ID), Label: m.Label()})
	}
	for _, n := range a.Notes.Active() {
		page.Toasts = append(page.Toasts, webui.Toast{ID: n.ID, Level: string(n.Level), Message: n.Message})
	}
	return page
}
