// Package console wires the backend client, resource stores, device poller,
// alert derivation and bound views into one running console.
package console

import (
	"context"
	"fmt"
	"time"

	"github.com/campusattend/console/internal/alerter"
	"github.com/campusattend/console/internal/client"
	"github.com/campusattend/console/internal/config"
	"github.com/campusattend/console/internal/metrics"
	"github.com/campusattend/console/internal/notifier"
	"github.com/campusattend/console/internal/poller"
	"github.com/campusattend/console/internal/probe"
	"github.com/campusattend/console/internal/store"
	"github.com/campusattend/console/internal/types"
	"github.com/campusattend/console/internal/view"
	"github.com/campusattend/console/internal/webui"
	"github.com/rs/zerolog"
)

// View names, shared with the page regions.
const (
	ViewDevices  = webui.RegionDevices
	ViewUsers    = webui.RegionUsers
	ViewPolicies = webui.RegionPolicies
)

// Prober measures device reachability.
type Prober interface {
	Probe(ctx context.Context, address string) (probe.Result, error)
}

// Options are the collaborators of an App. Config and Client are required.
type Options struct {
	Config *config.Config
	Client *client.Client
	// ModulesClient serves the module list; defaults to Client pointed at
	// the configured modules base URL.
	ModulesClient *client.Client
	Prober        Prober
	Metrics       *metrics.Metrics
	Clock         poller.Clock
}

// App is a running console.
type App struct {
	cfg     *config.Config
	client  *client.Client
	modules *client.Client
	prober  Prober
	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time

	Notes *notifier.Center
	Board *alerter.Board

	Devices   *store.Store[types.Device]
	AlertFeed *store.Store[types.Alert]
	Users     *store.Store[types.User]
	Policies  *store.Store[types.Policy]
	Modules   *store.Store[types.Module]

	DevicesView  *view.Binder[types.Device]
	UsersView    *view.Binder[types.User]
	PoliciesView *view.Binder[types.Policy]

	Poller *poller.Scheduler

	regions map[string]*view.Region
}

// New builds an App. Nothing touches the network until Start.
func New(opts Options, logger zerolog.Logger) (*App, error) {
	if opts.Config == nil || opts.Client == nil {
		return nil, fmt.Errorf("console needs a config and a backend client")
	}
	cfg := opts.Config

	modulesClient := opts.ModulesClient
	if modulesClient == nil {
		modulesClient = opts.Client
		if cfg.Backend.ModulesBaseURL != "" {
			modulesClient = opts.Client.WithBaseURL(cfg.Backend.ModulesBaseURL)
		}
	}

	a := &App{
		cfg:     cfg,
		client:  opts.Client,
		modules: modulesClient,
		prober:  opts.Prober,
		metrics: opts.Metrics,
		logger:  logger.With().Str("component", "console").Logger(),
		now:     time.Now,
		Notes:   notifier.New(logger, cfg.Notifications.Display),
		Board:   alerter.NewBoard(),
		regions: map[string]*view.Region{
			ViewDevices:  view.NewRegion(ViewDevices),
			ViewUsers:    view.NewRegion(ViewUsers),
			ViewPolicies: view.NewRegion(ViewPolicies),
		},
	}
	a.Notes.SetMetrics(opts.Metrics)

	a.Devices = store.New("devices", a.client.ListDevices, logger)
	a.AlertFeed = store.New("alerts", a.client.ListAlerts, logger)
	a.Users = store.New("users", a.client.ListUsers, logger)
	a.Policies = store.New("policies", a.fetchPolicies, logger)
	a.Modules = store.New("modules", a.modules.ListModules, logger)
	a.Devices.SetMetrics(opts.Metrics)
	a.AlertFeed.SetMetrics(opts.Metrics)
	a.Users.SetMetrics(opts.Metrics)
	a.Policies.SetMetrics(opts.Metrics)
	a.Modules.SetMetrics(opts.Metrics)

	a.DevicesView = view.New(view.Config[types.Device]{
		Name:        ViewDevices,
		Store:       a.Devices,
		Target:      a.regions[ViewDevices],
		Render:      view.RenderDevices,
		Alerts:      a.Board,
		Notifier:    a.Notes,
		LoadFailure: loadFailure("Failed to load devices from database"),
	}, logger)
	a.UsersView = view.New(view.Config[types.User]{
		Name:        ViewUsers,
		Store:       a.Users,
		Target:      a.regions[ViewUsers],
		Render:      view.RenderUsers,
		Notifier:    a.Notes,
		LoadFailure: loadFailure("Failed to load users from database"),
	}, logger)
	a.PoliciesView = view.New(view.Config[types.Policy]{
		Name:        ViewPolicies,
		Store:       a.Policies,
		Target:      a.regions[ViewPolicies],
		Render:      view.RenderPolicies,
		Notifier:    a.Notes,
		LoadFailure: loadFailure("Failed to load policies from database"),
	}, logger)

	pollOpts := []poller.Option{
		poller.WithBackoff(cfg.Polling.BackoffMax),
		poller.WithMetrics(opts.Metrics),
	}
	if opts.Clock != nil {
		pollOpts = append(pollOpts, poller.WithClock(opts.Clock))
	}
	a.Poller = poller.New("devices", a.pollDevices, logger, pollOpts...)

	return a, nil
}

// Start loads modules, then policies and users, and starts device polling.
// Load failures are reported as notifications and never stop the console.
func (a *App) Start(ctx context.Context) {
	a.logger.Info().
		Str("backend", a.client.BaseURL()).
		Str("modules_backend", a.modules.BaseURL()).
		Dur("devices_interval", a.cfg.Polling.DevicesInterval).
		Bool("probe", a.prober != nil).
		Msg("Starting console")

	// Policies are labelled from the module list, so modules go first.
	if err := a.Modules.Refresh(ctx); err != nil {
		a.Notes.Error(ViewPolicies, loadFailure("Failed to load modules")(err))
	}
	_ = a.PoliciesView.Load(ctx)
	_ = a.UsersView.Load(ctx)

	a.Poller.Start(a.cfg.Polling.DevicesInterval)
}

// Close stops polling and detaches every view and store. Responses that
// arrive afterwards are dropped.
func (a *App) Close() {
	a.Poller.Stop()
	a.DevicesView.Close()
	a.UsersView.Close()
	a.PoliciesView.Close()
	a.Devices.Close()
	a.AlertFeed.Close()
	a.Users.Close()
	a.Policies.Close()
	a.Modules.Close()
	a.Notes.Stop()
	a.logger.Info().Msg("Console stopped")
}

// Region returns the named page region.
func (a *App) Region(name string) (*view.Region, bool) {
	r, ok := a.regions[name]
	return r, ok
}

// Regions returns every page region.
func (a *App) Regions() []*view.Region {
	return []*view.Region{a.regions[ViewDevices], a.regions[ViewUsers], a.regions[ViewPolicies]}
}

// SubscribeStates registers fn for state changes of every view.
func (a *App) SubscribeStates(fn func(view.StateChange)) func() {
	unsubs := []func(){
		a.DevicesView.Subscribe(fn),
		a.UsersView.Subscribe(fn),
		a.PoliciesView.Subscribe(fn),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Fetching lists the stores with a fetch outstanding.
func (a *App) Fetching() []string {
	stores := []struct {
		name     string
		inFlight bool
	}{
		{ViewDevices, a.Devices.InFlight()},
		{"alerts", a.AlertFeed.InFlight()},
		{ViewUsers, a.Users.InFlight()},
		{ViewPolicies, a.Policies.InFlight()},
		{"modules", a.Modules.InFlight()},
	}
	fetching := []string{}
	for _, st := range stores {
		if st.inFlight {
			fetching = append(fetching, st.name)
		}
	}
	return fetching
}

// States reports the state of each view.
func (a *App) States() map[string]string {
	return map[string]string{
		ViewDevices:  a.DevicesView.State().String(),
		ViewUsers:    a.UsersView.State().String(),
		ViewPolicies: a.PoliciesView.State().String(),
	}
}

func (a *App) fetchPolicies(ctx context.Context) ([]types.Policy, error) {
	policies, err := a.client.ListPolicies(ctx)
	if err != nil {
		return nil, err
	}
	modules := a.Modules.All()
	for i := range policies {
		policies[i].ModuleLabel = types.ModuleLabel(modules, policies[i].ModuleID)
	}
	return policies, nil
}

// pollDevices is one device poll tick: devices, then the alert feed and
// derived alerts, then backend stats. Its error drives poll backoff.
func (a *App) pollDevices(ctx context.Context) error {
	devicesErr := a.DevicesView.Load(ctx)

	if err := a.AlertFeed.Refresh(ctx); err != nil && devicesErr == nil {
		a.Notes.Error(ViewDevices, loadFailure("Failed to load alerts")(err))
	}
	a.deriveAlerts()

	if devicesErr == nil {
		a.checkStats(ctx)
	}
	return devicesErr
}

func (a *App) deriveAlerts() {
	alerts := alerter.Derive(a.Devices.All(), a.AlertFeed.All(), alerter.Options{
		Now:             a.now(),
		OfflineAfter:    a.cfg.Alerts.OfflineAfter,
		OfflineSeverity: types.ParseSeverity(a.cfg.Alerts.OfflineSeverity),
	})
	a.Board.Publish(alerts)
	a.metrics.SetAlerts(alerter.CountBySeverity(alerts))
}

// checkStats records backend stats and warns when they disagree with the
// collection that was just rendered.
func (a *App) checkStats(ctx context.Context) {
	remote, err := a.client.DeviceStats(ctx)
	if err != nil {
		a.logger.Debug().Err(err).Msg("Device stats unavailable")
		return
	}
	a.metrics.SetDeviceStats(remote.Total, remote.Online, remote.Offline)

	local := types.CountDevices(a.Devices.All())
	if local != remote {
		a.logger.Warn().
			Int("local_total", local.Total).
			Int("remote_total", remote.Total).
			Int("local_online", local.Online).
			Int("remote_online", remote.Online).
			Msg("Backend device stats disagree with device list")
	}
}
