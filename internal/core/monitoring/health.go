// Package monitoring derives deployment status and health from observed
// container state. It performs no I/O.
package monitoring

import (
	"fmt"

	"github.com/artpar/dcg/internal/core/domain"
)

// =============================================================================
// Deployment Status
// =============================================================================

// DetermineStatus reports N/A when there is no compose file, Up when at least
// one container of the project is running and Down otherwise.
func DetermineStatus(hasComposeFile bool, containers []domain.ContainerState) domain.Status {
	if !hasComposeFile {
		return domain.StatusUnknown
	}
	for _, c := range containers {
		if c.State == "running" {
			return domain.StatusUp
		}
	}
	return domain.StatusDown
}

// =============================================================================
// Health Aggregation
// =============================================================================

// DetermineContainerHealth maps a container state and its Docker health check
// result (healthy, unhealthy, starting or empty) to a health status.
func DetermineContainerHealth(state, healthCheck string) domain.HealthStatus {
	switch state {
	case "running":
	case "restarting", "paused":
		return domain.HealthStatusDegraded
	case "":
		return domain.HealthStatusUnknown
	default:
		return domain.HealthStatusUnhealthy
	}

	switch healthCheck {
	case "unhealthy":
		return domain.HealthStatusUnhealthy
	case "starting":
		return domain.HealthStatusDegraded
	default:
		return domain.HealthStatusHealthy
	}
}

// AggregateHealth folds container health into one deployment health.
// All unhealthy is unhealthy, any unhealthy, degraded or unknown is degraded.
func AggregateHealth(containers []domain.ContainerDetail) domain.HealthStatus {
	if len(containers) == 0 {
		return domain.HealthStatusUnknown
	}

	unhealthy := 0
	degraded := 0
	for _, c := range containers {
		switch c.Health {
		case domain.HealthStatusUnhealthy:
			unhealthy++
		case domain.HealthStatusDegraded, domain.HealthStatusUnknown, "":
			degraded++
		}
	}

	if unhealthy == len(containers) {
		return domain.HealthStatusUnhealthy
	}
	if unhealthy > 0 || degraded > 0 {
		return domain.HealthStatusDegraded
	}
	return domain.HealthStatusHealthy
}

// =============================================================================
// Transitions
// =============================================================================

// Changed reports whether a status moved between two observations. The first
// observation of a deployment (previous empty) is not a change.
func Changed(previous, current domain.Status) bool {
	return previous != "" && previous != current
}

// TransitionMessage describes a status change for logs and notifications.
func TransitionMessage(deployment string, from, to domain.Status) string {
	switch to {
	case domain.StatusUp:
		return fmt.Sprintf("Deployment %s is up (was %s)", deployment, from)
	case domain.StatusDown:
		return fmt.Sprintf("Deployment %s went down (was %s)", deployment, from)
	default:
		return fmt.Sprintf("Deployment %s has no compose file (was %s)", deployment, from)
	}
}
