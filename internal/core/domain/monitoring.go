package domain

import (
	"fmt"
	"time"
)

// =============================================================================
// Health Types
// =============================================================================

// HealthStatus represents the health of a deployment or container.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnknown   HealthStatus = "unknown"
)

// ContainerState is the minimal container information needed to derive status.
type ContainerState struct {
	Name        string
	State       string // running, exited, paused, restarting, created, dead
	HealthCheck string // healthy, unhealthy, starting, ""
}

// =============================================================================
// Container Detail
// =============================================================================

// ContainerDetail describes one container of a deployment for "status -l".
type ContainerDetail struct {
	Name      string       `json:"name"`
	Service   string       `json:"service,omitempty"`
	Image     string       `json:"image"`
	State     string       `json:"state"`
	Health    HealthStatus `json:"health"`
	Ports     []string     `json:"ports,omitempty"`
	StartedAt *time.Time   `json:"started_at,omitempty"`
	Uptime    string       `json:"uptime,omitempty"`
}

// FormatUptime renders a duration the way Python renders a timedelta,
// without the fractional seconds: "3:04:05" or "2 days, 3:04:05".
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	days := total / 86400
	rem := total % 86400
	clock := fmt.Sprintf("%d:%02d:%02d", rem/3600, (rem%3600)/60, rem%60)

	switch days {
	case 0:
		return clock
	case 1:
		return "1 day, " + clock
	default:
		return fmt.Sprintf("%d days, %s", days, clock)
	}
}

// FormatPort renders a published port as "80/tcp:8080".
func FormatPort(containerPort int, protocol string, hostPort int) string {
	if protocol == "" {
		protocol = "tcp"
	}
	return fmt.Sprintf("%d/%s:%d", containerPort, protocol, hostPort)
}
