package engine

import (
	"context"
	"errors"
	"io"
	"sort"
	"time"

	"github.com/artpar/dcg/internal/core/deployment"
	"github.com/artpar/dcg/internal/core/domain"
	"github.com/artpar/dcg/internal/core/monitoring"
	"github.com/artpar/dcg/internal/shell/compose"
	"github.com/artpar/dcg/internal/shell/docker"
)

// =============================================================================
// Status
// =============================================================================

// projectOf resolves the compose file and project name of a deployment. A
// file that exists but does not load still names its project, so its
// containers can be found.
func (m *Manager) projectOf(d domain.Deployment) (*compose.Project, error) {
	p, err := m.load(d.FilePath)
	if err != nil {
		return nil, err
	}
	if p.ParseErr != nil {
		m.logger.Debug("compose file not parsed", "deployment", d.Name, "error", p.ParseErr)
	}
	return p, nil
}

// status returns the coarse status of a deployment.
func (m *Manager) status(ctx context.Context, d domain.Deployment) (domain.Status, error) {
	p, err := m.projectOf(d)
	if errors.Is(err, domain.ErrComposeFileNotFound) {
		return domain.StatusUnknown, nil
	}
	if err != nil {
		return domain.StatusUnknown, err
	}

	containers, err := m.containers(ctx, p.Name)
	if err != nil {
		return domain.StatusUnknown, err
	}
	return monitoring.DetermineStatus(true, containerStates(containers)), nil
}

// Status reports the status of one deployment. With detailed set, each
// container of the project is inspected. A deployment without a compose file
// is reported as N/A together with an error wrapping ErrComposeFileNotFound.
func (m *Manager) Status(ctx context.Context, name string, detailed bool) (*domain.StatusReport, error) {
	d, err := m.registry.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	report := &domain.StatusReport{Name: d.Name, FilePath: d.FilePath, Status: domain.StatusUnknown}

	p, err := m.projectOf(*d)
	if err != nil {
		return report, err
	}
	report.ComposeFile = p.File
	report.Project = p.Name

	containers, err := m.containers(ctx, p.Name)
	if err != nil {
		return report, err
	}
	report.Status = monitoring.DetermineStatus(true, containerStates(containers))

	if !detailed {
		return report, nil
	}

	now := m.now()
	report.Containers = make([]domain.ContainerDetail, 0, len(containers))
	for _, c := range containers {
		info, err := m.docker.InspectContainer(ctx, c.ID)
		if errors.Is(err, docker.ErrContainerNotFound) {
			// removed between list and inspect
			continue
		}
		if err != nil {
			return report, err
		}
		report.Containers = append(report.Containers, containerDetail(info, now))
	}

	var order []string
	if p.Spec != nil {
		order = deployment.ServiceNames(deployment.TopologicalSort(p.Spec.Services))
	}
	deployment.OrderContainers(report.Containers, order)
	report.Health = monitoring.AggregateHealth(report.Containers)

	return report, nil
}

// containers lists the running containers of a project, as "docker compose ps"
// does.
func (m *Manager) containers(ctx context.Context, project string) ([]docker.ContainerInfo, error) {
	return m.docker.ListContainers(ctx, docker.ListOptions{
		Labels: deployment.ProjectFilter(project),
	})
}

func containerStates(containers []docker.ContainerInfo) []domain.ContainerState {
	states := make([]domain.ContainerState, len(containers))
	for i, c := range containers {
		states[i] = domain.ContainerState{Name: c.Name, State: c.State, HealthCheck: c.Health}
	}
	return states
}

func containerDetail(info *docker.ContainerInfo, now time.Time) domain.ContainerDetail {
	detail := domain.ContainerDetail{
		Name:    info.Name,
		Service: deployment.ServiceOf(info.Labels),
		Image:   info.Image,
		State:   info.State,
		Health:  monitoring.DetermineContainerHealth(info.State, info.Health),
	}
	for _, p := range info.Ports {
		detail.Ports = appendUnique(detail.Ports, domain.FormatPort(p.ContainerPort, p.Protocol, p.HostPort))
	}
	if info.StartedAt != nil {
		started := *info.StartedAt
		detail.StartedAt = &started
		detail.Uptime = domain.FormatUptime(now.Sub(started))
	}
	return detail
}

// appendUnique skips duplicates such as the same binding on IPv4 and IPv6.
func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

// =============================================================================
// Logs
// =============================================================================

// LogOptions selects which container logs are written.
type LogOptions struct {
	Service    string // empty for every service
	Tail       string // "all" or a number
	Follow     bool
	Timestamps bool
}

// Logs writes the logs of a deployment's containers. Without Follow each
// container's output is preceded by a "==> name <==" header.
func (m *Manager) Logs(ctx context.Context, name string, opts LogOptions, stdout, stderr io.Writer) error {
	d, err := m.registry.Get(ctx, name)
	if err != nil {
		return err
	}
	p, err := m.projectOf(*d)
	if err != nil {
		return err
	}

	filter := deployment.ProjectFilter(p.Name)
	if opts.Service != "" {
		filter[deployment.LabelService] = opts.Service
	}
	containers, err := m.docker.ListContainers(ctx, docker.ListOptions{All: true, Labels: filter})
	if err != nil {
		return err
	}
	if len(containers) == 0 {
		return ErrNoContainers
	}
	if opts.Follow && len(containers) > 1 {
		return ErrFollowNeedsOneContainer
	}
	sort.Slice(containers, func(i, j int) bool { return containers[i].Name < containers[j].Name })

	for _, c := range containers {
		info, err := m.docker.InspectContainer(ctx, c.ID)
		if err != nil {
			return err
		}
		if len(containers) > 1 {
			if _, err := io.WriteString(stdout, "==> "+c.Name+" <==\n"); err != nil {
				return err
			}
		}

		logs, err := m.docker.ContainerLogs(ctx, c.ID, docker.LogOptions{
			Follow:     opts.Follow,
			Tail:       opts.Tail,
			Timestamps: opts.Timestamps,
		})
		if err != nil {
			return err
		}
		err = docker.CopyLogs(stdout, stderr, logs, info.TTY)
		logs.Close()
		if err != nil && ctx.Err() == nil {
			return err
		}
	}
	return nil
}
