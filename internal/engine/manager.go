package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/artpar/dcg/internal/core/domain"
	"github.com/artpar/dcg/internal/core/stats"
	"github.com/artpar/dcg/internal/shell/compose"
	"github.com/artpar/dcg/internal/shell/docker"
	"github.com/artpar/dcg/internal/shell/registry"
	"github.com/artpar/dcg/internal/shell/store"
)

// DefaultMaxParallel bounds concurrent compose and docker calls.
const DefaultMaxParallel = 4

// Config holds the dependencies of a Manager.
type Config struct {
	Registry registry.Store
	Runner   compose.Runner
	Docker   docker.Client
	// History is optional; nil disables event recording.
	History     store.HistoryStore
	Logger      *slog.Logger
	MaxParallel int
}

// Manager performs deployment operations.
type Manager struct {
	registry    registry.Store
	runner      compose.Runner
	docker      docker.Client
	history     store.HistoryStore
	logger      *slog.Logger
	maxParallel int

	// locate and load are swapped in tests.
	locate func(dir string) (string, error)
	load   func(dir string) (*compose.Project, error)
	now    func() time.Time
}

// NewManager creates a manager.
func NewManager(cfg Config) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = DefaultMaxParallel
	}
	return &Manager{
		registry:    cfg.Registry,
		runner:      cfg.Runner,
		docker:      cfg.Docker,
		history:     cfg.History,
		logger:      cfg.Logger.With("component", "engine"),
		maxParallel: cfg.MaxParallel,
		locate:      compose.Locate,
		load:        compose.Load,
		now:         time.Now,
	}
}

// =============================================================================
// Registry Operations
// =============================================================================

// Add registers a deployment and optionally starts it. The deployment is
// returned even when starting fails.
func (m *Manager) Add(ctx context.Context, name, dir string, start bool) (*domain.Deployment, error) {
	d, err := domain.NewDeployment(name, dir)
	if err != nil {
		return nil, err
	}
	if err := m.registry.Add(ctx, *d); err != nil {
		return nil, err
	}
	m.logger.Info("deployment added", "deployment", name, "file_path", d.FilePath)
	m.record(ctx, domain.NewEvent(name, domain.ActionAdd, nil))

	if start {
		return d, m.Start(ctx, name)
	}
	return d, nil
}

// Remove unregisters a deployment. With stop set the deployment is brought
// down first; a missing compose file does not prevent removal, a failed
// "compose down" does. Files and containers are never deleted.
func (m *Manager) Remove(ctx context.Context, name string, stop bool) (*domain.Deployment, error) {
	if _, err := m.registry.Get(ctx, name); err != nil {
		return nil, err
	}

	if stop {
		if err := m.Stop(ctx, name); err != nil && !errors.Is(err, domain.ErrComposeFileNotFound) {
			return nil, err
		}
	}

	removed, err := m.registry.Remove(ctx, name)
	if err != nil {
		return nil, err
	}
	m.logger.Info("deployment removed", "deployment", name)
	m.record(ctx, domain.NewEvent(name, domain.ActionRemove, nil))
	return removed, nil
}

// Get returns a registered deployment.
func (m *Manager) Get(ctx context.Context, name string) (*domain.Deployment, error) {
	return m.registry.Get(ctx, name)
}

// RawRegistry returns the registry file contents as YAML.
func (m *Manager) RawRegistry(ctx context.Context) ([]byte, error) {
	return m.registry.Raw(ctx)
}

// =============================================================================
// Lifecycle Operations
// =============================================================================

// Start runs "compose up -d" for a deployment.
func (m *Manager) Start(ctx context.Context, name string) error {
	return m.lifecycle(ctx, name, domain.ActionStart, func(file string) error {
		return m.runner.Up(ctx, file)
	})
}

// Stop runs "compose down" for a deployment.
func (m *Manager) Stop(ctx context.Context, name string) error {
	return m.lifecycle(ctx, name, domain.ActionStop, func(file string) error {
		return m.runner.Down(ctx, file)
	})
}

// Restart brings a deployment down and up again.
func (m *Manager) Restart(ctx context.Context, name string) error {
	return m.lifecycle(ctx, name, domain.ActionRestart, func(file string) error {
		if err := m.runner.Down(ctx, file); err != nil {
			return err
		}
		return m.runner.Up(ctx, file)
	})
}

// UpdateOptions selects what happens after new images are pulled.
type UpdateOptions struct {
	Start   bool
	Restart bool
}

// UpdateOutcome tells what Update did after pulling.
type UpdateOutcome string

const (
	UpdatePulled    UpdateOutcome = "pulled"
	UpdateStarted   UpdateOutcome = "started"
	UpdateRestarted UpdateOutcome = "restarted"
)

// Message describes the outcome for the named deployment.
func (o UpdateOutcome) Message(name string) string {
	switch o {
	case UpdateRestarted:
		return fmt.Sprintf("Deployment %s updated and restarted.", name)
	case UpdateStarted:
		return fmt.Sprintf("Deployment %s updated and started.", name)
	default:
		return fmt.Sprintf("Deployment %s updated without starting or restarting.", name)
	}
}

// Update pulls new images for a deployment, then restarts it, starts it or
// leaves it alone.
func (m *Manager) Update(ctx context.Context, name string, opts UpdateOptions) (UpdateOutcome, error) {
	if opts.Start && opts.Restart {
		return "", fmt.Errorf("%w: --start and --restart cannot be used together", domain.ErrConflictingFlags)
	}

	outcome := UpdatePulled
	err := m.lifecycle(ctx, name, domain.ActionUpdate, func(file string) error {
		if err := m.runner.Pull(ctx, file); err != nil {
			return err
		}
		switch {
		case opts.Restart:
			outcome = UpdateRestarted
			if err := m.runner.Down(ctx, file); err != nil {
				return err
			}
			return m.runner.Up(ctx, file)
		case opts.Start:
			outcome = UpdateStarted
			return m.runner.Up(ctx, file)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return outcome, nil
}

// lifecycle resolves the compose file of a deployment, runs fn and records
// the outcome. Unknown deployments and missing compose files are not recorded.
func (m *Manager) lifecycle(ctx context.Context, name string, action domain.Action, fn func(file string) error) error {
	d, err := m.registry.Get(ctx, name)
	if err != nil {
		return err
	}
	file, err := m.locate(d.FilePath)
	if err != nil {
		return err
	}

	logger := m.logger.With("deployment", name, "action", action)
	logger.Debug("running action", "compose_file", file)

	err = fn(file)
	m.record(ctx, domain.NewEvent(name, action, err))
	if err != nil {
		logger.Warn("action failed", "error", err)
		return err
	}
	logger.Info("action completed")
	return nil
}

// =============================================================================
// Bulk Operations
// =============================================================================

// StartAll starts every registered deployment.
func (m *Manager) StartAll(ctx context.Context) (BulkResult, error) {
	return m.bulk(ctx, "start", m.Start)
}

// StopAll stops every registered deployment.
func (m *Manager) StopAll(ctx context.Context) (BulkResult, error) {
	return m.bulk(ctx, "stop", m.Stop)
}

// bulk runs fn for every deployment with bounded concurrency. A failing
// deployment never cancels the others. The returned error is only set when
// the registry cannot be read.
func (m *Manager) bulk(ctx context.Context, action string, fn func(context.Context, string) error) (BulkResult, error) {
	deployments, err := m.registry.List(ctx)
	if err != nil {
		return BulkResult{Action: action}, err
	}
	domain.SortByName(deployments)

	result := BulkResult{Action: action, Results: make([]ActionResult, len(deployments))}

	var g errgroup.Group
	g.SetLimit(m.maxParallel)
	for i, d := range deployments {
		g.Go(func() error {
			result.Results[i] = ActionResult{Name: d.Name, Err: fn(ctx, d.Name)}
			return nil
		})
	}
	_ = g.Wait()

	m.logger.Info("bulk action completed", "action", action, "total", len(deployments), "failed", len(result.Failed()))
	return result, nil
}

// =============================================================================
// Queries
// =============================================================================

// List returns all deployments sorted by name with their current status.
// A deployment whose status cannot be determined is reported as N/A with
// the error attached.
func (m *Manager) List(ctx context.Context) ([]domain.DeploymentView, error) {
	deployments, err := m.registry.List(ctx)
	if err != nil {
		return nil, err
	}
	domain.SortByName(deployments)

	views := make([]domain.DeploymentView, len(deployments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.maxParallel)
	for i, d := range deployments {
		g.Go(func() error {
			view := domain.DeploymentView{Deployment: d}
			status, err := m.status(gctx, d)
			view.Status = status
			if err != nil {
				view.Error = err.Error()
			}
			views[i] = view
			return nil
		})
	}
	_ = g.Wait()

	return views, nil
}

// Statistics computes registry statistics.
func (m *Manager) Statistics(ctx context.Context) (stats.Stats, error) {
	deployments, err := m.registry.List(ctx)
	if err != nil {
		return nil, err
	}

	projects := make([]*stats.Project, len(deployments))
	for i, d := range deployments {
		p, err := m.load(d.FilePath)
		if err != nil {
			m.logger.Debug("compose file unavailable for statistics", "deployment", d.Name, "error", err)
			continue
		}
		if p.ParseErr != nil {
			m.logger.Debug("compose file not parsed, counting declared services", "deployment", d.Name, "error", p.ParseErr)
		}
		projects[i] = &stats.Project{Services: p.Services, Images: p.Spec.Images()}
	}
	return stats.Compute(len(deployments), projects), nil
}

// History returns recorded events, newest first. An empty name returns events
// of every deployment, including removed ones.
func (m *Manager) History(ctx context.Context, name string, limit int) ([]domain.Event, error) {
	if m.history == nil {
		return nil, ErrHistoryDisabled
	}
	return m.history.ListEvents(ctx, store.ListOptions{Deployment: name, Limit: limit})
}

// Ping checks that the Docker daemon is reachable.
func (m *Manager) Ping(ctx context.Context) error {
	return m.docker.Ping(ctx)
}

// record stores an event. History is best effort: failures are logged only.
func (m *Manager) record(ctx context.Context, event domain.Event) {
	if m.history == nil {
		return
	}
	if err := m.history.RecordEvent(ctx, event); err != nil {
		m.logger.Warn("failed to record history event",
			"deployment", event.Deployment,
			"action", event.Action,
			"error", err,
		)
	}
}

// RecordStatusChange stores an observed status transition.
func (m *Manager) RecordStatusChange(ctx context.Context, name string, from, to domain.Status) {
	m.record(ctx, domain.NewStatusChangeEvent(name, from, to))
}
