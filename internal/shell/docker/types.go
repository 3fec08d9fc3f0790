// Package docker reads container state from the Docker daemon.
package docker

import (
	"context"
	"io"
	"time"
)

// =============================================================================
// Container Info
// =============================================================================

// PortBinding is a published container port.
type PortBinding struct {
	ContainerPort int
	HostPort      int
	Protocol      string // "tcp" or "udp"
	HostIP        string
}

// ContainerInfo contains information about a container.
type ContainerInfo struct {
	ID        string
	Name      string
	Image     string
	State     string // "running", "exited", "created", etc.
	Health    string // "healthy", "unhealthy", "starting", ""
	CreatedAt time.Time
	StartedAt *time.Time
	Ports     []PortBinding
	Labels    map[string]string
	TTY       bool
}

// =============================================================================
// Options
// =============================================================================

// ListOptions defines options for listing containers.
type ListOptions struct {
	All    bool              // Include stopped containers
	Labels map[string]string // label=value filters, all must match
}

// LogOptions defines options for container logs.
type LogOptions struct {
	Follow     bool
	Tail       string // "all" or number
	Since      time.Time
	Timestamps bool
}

// =============================================================================
// Client Interface
// =============================================================================

// Client is the subset of the Docker API dcg reads from.
type Client interface {
	Ping(ctx context.Context) error
	ListContainers(ctx context.Context, opts ListOptions) ([]ContainerInfo, error)
	InspectContainer(ctx context.Context, containerID string) (*ContainerInfo, error)
	// ContainerLogs returns the raw log stream. Unless the container has a
	// TTY the stream is multiplexed; see CopyLogs.
	ContainerLogs(ctx context.Context, containerID string, opts LogOptions) (io.ReadCloser, error)
	Close() error
}
