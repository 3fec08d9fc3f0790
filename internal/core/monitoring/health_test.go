package monitoring

import (
	"testing"

	"github.com/artpar/dcg/internal/core/domain"
	"github.com/stretchr/testify/assert"
)

// =============================================================================
// DetermineStatus Tests
// =============================================================================

func TestDetermineStatus_NoComposeFile(t *testing.T) {
	containers := []domain.ContainerState{{Name: "web", State: "running"}}

	assert.Equal(t, domain.StatusUnknown, DetermineStatus(false, containers))
}

func TestDetermineStatus_NoContainers(t *testing.T) {
	assert.Equal(t, domain.StatusDown, DetermineStatus(true, nil))
}

func TestDetermineStatus_AnyRunningIsUp(t *testing.T) {
	containers := []domain.ContainerState{
		{Name: "db", State: "exited"},
		{Name: "web", State: "running"},
	}

	assert.Equal(t, domain.StatusUp, DetermineStatus(true, containers))
}

func TestDetermineStatus_NoneRunningIsDown(t *testing.T) {
	containers := []domain.ContainerState{
		{Name: "db", State: "exited"},
		{Name: "web", State: "created"},
	}

	assert.Equal(t, domain.StatusDown, DetermineStatus(true, containers))
}

// =============================================================================
// DetermineContainerHealth Tests
// =============================================================================

func TestDetermineContainerHealth(t *testing.T) {
	tests := []struct {
		state       string
		healthCheck string
		want        domain.HealthStatus
	}{
		{"running", "", domain.HealthStatusHealthy},
		{"running", "healthy", domain.HealthStatusHealthy},
		{"running", "starting", domain.HealthStatusDegraded},
		{"running", "unhealthy", domain.HealthStatusUnhealthy},
		{"restarting", "", domain.HealthStatusDegraded},
		{"paused", "healthy", domain.HealthStatusDegraded},
		{"exited", "", domain.HealthStatusUnhealthy},
		{"dead", "", domain.HealthStatusUnhealthy},
		{"created", "", domain.HealthStatusUnhealthy},
		{"", "", domain.HealthStatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.state+"/"+tt.healthCheck, func(t *testing.T) {
			assert.Equal(t, tt.want, DetermineContainerHealth(tt.state, tt.healthCheck))
		})
	}
}

// =============================================================================
// AggregateHealth Tests
// =============================================================================

func TestAggregateHealth(t *testing.T) {
	tests := []struct {
		name   string
		health []domain.HealthStatus
		want   domain.HealthStatus
	}{
		{"empty", nil, domain.HealthStatusUnknown},
		{"all healthy", []domain.HealthStatus{domain.HealthStatusHealthy, domain.HealthStatusHealthy}, domain.HealthStatusHealthy},
		{"one unhealthy", []domain.HealthStatus{domain.HealthStatusHealthy, domain.HealthStatusUnhealthy}, domain.HealthStatusDegraded},
		{"all unhealthy", []domain.HealthStatus{domain.HealthStatusUnhealthy, domain.HealthStatusUnhealthy}, domain.HealthStatusUnhealthy},
		{"one degraded", []domain.HealthStatus{domain.HealthStatusHealthy, domain.HealthStatusDegraded}, domain.HealthStatusDegraded},
		{"unknown counts as degraded", []domain.HealthStatus{domain.HealthStatusHealthy, domain.HealthStatusUnknown}, domain.HealthStatusDegraded},
		{"single healthy", []domain.HealthStatus{domain.HealthStatusHealthy}, domain.HealthStatusHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var containers []domain.ContainerDetail
			for _, h := range tt.health {
				containers = append(containers, domain.ContainerDetail{Health: h})
			}
			assert.Equal(t, tt.want, AggregateHealth(containers))
		})
	}
}

// =============================================================================
// Transition Tests
// =============================================================================

func TestChanged(t *testing.T) {
	assert.False(t, Changed("", domain.StatusUp))
	assert.False(t, Changed(domain.StatusUp, domain.StatusUp))
	assert.True(t, Changed(domain.StatusUp, domain.StatusDown))
	assert.True(t, Changed(domain.StatusDown, domain.StatusUnknown))
}

func TestTransitionMessage(t *testing.T) {
	assert.Equal(t, "Deployment plex is up (was Down)", TransitionMessage("plex", domain.StatusDown, domain.StatusUp))
	assert.Equal(t, "Deployment plex went down (was Up)", TransitionMessage("plex", domain.StatusUp, domain.StatusDown))
	assert.Equal(t, "Deployment plex has no compose file (was Up)", TransitionMessage("plex", domain.StatusUp, domain.StatusUnknown))
}
