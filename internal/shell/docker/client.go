package docker

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
)

// =============================================================================
// Docker Client Implementation
// =============================================================================

// DockerClient implements the Client interface using the Docker SDK.
type DockerClient struct {
	cli *client.Client
}

var _ Client = (*DockerClient)(nil)

// fallbackPingTimeout bounds the probe of the Docker Desktop socket.
const fallbackPingTimeout = 2 * time.Second

// NewDockerClient creates a new Docker client.
// If host is empty, it uses the default Docker host from environment. When
// that daemon does not answer, the Docker Desktop socket under the home
// directory is tried.
func NewDockerClient(ctx context.Context, host string) (*DockerClient, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, NewDockerError("NewDockerClient", "", "", fmt.Sprintf("failed to create client: %v", err), ErrConnectionFailed)
	}
	if host != "" || os.Getenv("DOCKER_HOST") != "" {
		return &DockerClient{cli: cli}, nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, fallbackPingTimeout)
	defer cancel()
	if _, pingErr := cli.Ping(pingCtx); pingErr == nil {
		return &DockerClient{cli: cli}, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return &DockerClient{cli: cli}, nil
	}
	desktop, err := client.NewClientWithOpts(
		client.WithHost("unix://"+homeDir+"/.docker/run/docker.sock"),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return &DockerClient{cli: cli}, nil
	}
	if _, pingErr := desktop.Ping(pingCtx); pingErr == nil {
		cli.Close()
		return &DockerClient{cli: desktop}, nil
	}
	desktop.Close()

	return &DockerClient{cli: cli}, nil
}

// Ping checks if Docker daemon is reachable.
func (d *DockerClient) Ping(ctx context.Context) error {
	if _, err := d.cli.Ping(ctx); err != nil {
		return NewDockerError("Ping", "daemon", "", fmt.Sprintf("failed to ping docker: %v", err), ErrConnectionFailed)
	}
	return nil
}

// Close closes the Docker client connection.
func (d *DockerClient) Close() error {
	return d.cli.Close()
}

// =============================================================================
// Container Queries
// =============================================================================

// InspectContainer returns detailed information about a container.
func (d *DockerClient) InspectContainer(ctx context.Context, containerID string) (*ContainerInfo, error) {
	resp, err := d.cli.ContainerInspect(ctx, containerID)
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil, NewDockerError("InspectContainer", "container", containerID, "container not found", ErrContainerNotFound)
		}
		return nil, wrapDaemonError("InspectContainer", "container", containerID, err)
	}

	info := &ContainerInfo{
		ID:   resp.ID,
		Name: strings.TrimPrefix(resp.Name, "/"),
	}
	if t, err := time.Parse(time.RFC3339Nano, resp.Created); err == nil {
		info.CreatedAt = t
	}
	if resp.Config != nil {
		info.Image = resp.Config.Image
		info.Labels = resp.Config.Labels
		info.TTY = resp.Config.Tty
	}
	if resp.State != nil {
		info.State = resp.State.Status
		if resp.State.Health != nil {
			info.Health = resp.State.Health.Status
		}
		if t, err := time.Parse(time.RFC3339Nano, resp.State.StartedAt); err == nil && !t.IsZero() && resp.State.Running {
			info.StartedAt = &t
		}
	}
	if resp.NetworkSettings != nil {
		info.Ports = convertPortMap(resp.NetworkSettings.Ports)
	}

	return info, nil
}

// ListContainers returns a list of containers matching the given options.
func (d *DockerClient) ListContainers(ctx context.Context, opts ListOptions) ([]ContainerInfo, error) {
	listOpts := container.ListOptions{All: opts.All}
	if len(opts.Labels) > 0 {
		f := filters.NewArgs()
		for k, v := range opts.Labels {
			f.Add("label", k+"="+v)
		}
		listOpts.Filters = f
	}

	containers, err := d.cli.ContainerList(ctx, listOpts)
	if err != nil {
		return nil, wrapDaemonError("ListContainers", "container", "", err)
	}

	result := make([]ContainerInfo, 0, len(containers))
	for _, c := range containers {
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}

		var ports []PortBinding
		for _, p := range c.Ports {
			if p.PublicPort == 0 {
				continue
			}
			ports = append(ports, PortBinding{
				ContainerPort: int(p.PrivatePort),
				HostPort:      int(p.PublicPort),
				Protocol:      p.Type,
				HostIP:        p.IP,
			})
		}

		sortPorts(ports)

		result = append(result, ContainerInfo{
			ID:        c.ID,
			Name:      name,
			Image:     c.Image,
			State:     c.State,
			CreatedAt: time.Unix(c.Created, 0),
			Ports:     ports,
			Labels:    c.Labels,
		})
	}

	return result, nil
}

// ContainerLogs returns logs from a container.
func (d *DockerClient) ContainerLogs(ctx context.Context, containerID string, opts LogOptions) (io.ReadCloser, error) {
	logOpts := container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     opts.Follow,
		Tail:       opts.Tail,
		Timestamps: opts.Timestamps,
	}
	if !opts.Since.IsZero() {
		logOpts.Since = opts.Since.Format(time.RFC3339)
	}

	reader, err := d.cli.ContainerLogs(ctx, containerID, logOpts)
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil, NewDockerError("ContainerLogs", "container", containerID, "container not found", ErrContainerNotFound)
		}
		return nil, wrapDaemonError("ContainerLogs", "container", containerID, err)
	}

	return reader, nil
}

// CopyLogs writes a log stream returned by ContainerLogs to stdout and stderr.
// Streams of containers without a TTY are demultiplexed.
func CopyLogs(stdout, stderr io.Writer, logs io.Reader, tty bool) error {
	if tty {
		_, err := io.Copy(stdout, logs)
		return err
	}
	_, err := stdcopy.StdCopy(stdout, stderr, logs)
	return err
}

// =============================================================================
// Helpers
// =============================================================================

// convertPortMap flattens inspect port bindings. Unpublished ports are skipped.
func convertPortMap(portMap nat.PortMap) []PortBinding {
	var ports []PortBinding
	for containerPort, bindings := range portMap {
		target := containerPort.Int()
		for _, binding := range bindings {
			hostPort, err := strconv.Atoi(binding.HostPort)
			if err != nil {
				continue
			}
			ports = append(ports, PortBinding{
				ContainerPort: target,
				HostPort:      hostPort,
				Protocol:      containerPort.Proto(),
				HostIP:        binding.HostIP,
			})
		}
	}
	sortPorts(ports)
	return ports
}

func sortPorts(ports []PortBinding) {
	sort.Slice(ports, func(i, j int) bool {
		a, b := ports[i], ports[j]
		if a.ContainerPort != b.ContainerPort {
			return a.ContainerPort < b.ContainerPort
		}
		if a.Protocol != b.Protocol {
			return a.Protocol < b.Protocol
		}
		return a.HostIP < b.HostIP
	})
}

func wrapDaemonError(op, entity, id string, err error) error {
	if client.IsErrConnectionFailed(err) {
		return NewDockerError(op, entity, id, err.Error(), ErrConnectionFailed)
	}
	return NewDockerError(op, entity, id, err.Error(), err)
}
