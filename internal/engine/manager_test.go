package engine

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/dcg/internal/core/domain"
	"github.com/artpar/dcg/internal/core/stats"
	"github.com/artpar/dcg/internal/shell/docker"
	"github.com/artpar/dcg/internal/shell/store"
)

var errBoom = errors.New("boom")

// =============================================================================
// Add / Remove Tests
// =============================================================================

func TestAdd(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	dir, _ := h.project(t, "plex", webSpec)

	d, err := h.manager.Add(ctx, "plex", dir, false)
	require.NoError(t, err)
	assert.Equal(t, dir, d.FilePath)
	assert.Empty(t, h.runner.Calls())

	got, err := h.manager.Get(ctx, "plex")
	require.NoError(t, err)
	assert.Equal(t, dir, got.FilePath)

	events, err := h.manager.History(ctx, "plex", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.ActionAdd, events[0].Action)
}

func TestAdd_Duplicate(t *testing.T) {
	h := newHarness(t)
	dir, _ := h.project(t, "plex", webSpec)
	h.add(t, "plex", dir)

	_, err := h.manager.Add(context.Background(), "plex", dir, false)
	assert.ErrorIs(t, err, domain.ErrDeploymentExists)
}

func TestAdd_InvalidName(t *testing.T) {
	h := newHarness(t)

	_, err := h.manager.Add(context.Background(), "my app", h.root, false)
	assert.ErrorIs(t, err, domain.ErrInvalidName)
}

func TestAdd_WithStart(t *testing.T) {
	h := newHarness(t)
	dir, file := h.project(t, "plex", webSpec)

	_, err := h.manager.Add(context.Background(), "plex", dir, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"up:" + file}, h.runner.Calls())
}

func TestAdd_WithStartNoComposeFile(t *testing.T) {
	h := newHarness(t)
	dir := h.emptyDir(t, "plex")

	d, err := h.manager.Add(context.Background(), "plex", dir, true)
	assert.ErrorIs(t, err, domain.ErrComposeFileNotFound)
	require.NotNil(t, d)

	_, err = h.manager.Get(context.Background(), "plex")
	assert.NoError(t, err, "deployment stays registered")
}

func TestRemove(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	dir, _ := h.project(t, "plex", webSpec)
	h.add(t, "plex", dir)

	removed, err := h.manager.Remove(ctx, "plex", false)
	require.NoError(t, err)
	assert.Equal(t, "plex", removed.Name)
	assert.Empty(t, h.runner.Calls())

	_, err = h.manager.Get(ctx, "plex")
	assert.ErrorIs(t, err, domain.ErrDeploymentNotFound)

	// history outlives the registry entry
	events, err := h.manager.History(ctx, "plex", 10)
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Equal(t, domain.ActionRemove, events[0].Action)
}

func TestRemove_NotFound(t *testing.T) {
	h := newHarness(t)

	_, err := h.manager.Remove(context.Background(), "plex", true)
	assert.ErrorIs(t, err, domain.ErrDeploymentNotFound)
}

func TestRemove_WithStop(t *testing.T) {
	h := newHarness(t)
	dir, file := h.project(t, "plex", webSpec)
	h.add(t, "plex", dir)

	_, err := h.manager.Remove(context.Background(), "plex", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"down:" + file}, h.runner.Calls())
}

func TestRemove_WithStopMissingComposeFile(t *testing.T) {
	h := newHarness(t)
	h.add(t, "plex", h.emptyDir(t, "plex"))

	_, err := h.manager.Remove(context.Background(), "plex", true)
	require.NoError(t, err)
}

func TestRemove_StopFailureKeepsEntry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	dir, file := h.project(t, "plex", webSpec)
	h.add(t, "plex", dir)
	h.runner.fail["down:"+file] = errBoom

	_, err := h.manager.Remove(ctx, "plex", true)
	assert.ErrorIs(t, err, errBoom)

	_, err = h.manager.Get(ctx, "plex")
	assert.NoError(t, err)
}

// =============================================================================
// Lifecycle Tests
// =============================================================================

func TestStartStopRestart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	dir, file := h.project(t, "plex", webSpec)
	h.add(t, "plex", dir)

	require.NoError(t, h.manager.Start(ctx, "plex"))
	require.NoError(t, h.manager.Stop(ctx, "plex"))
	require.NoError(t, h.manager.Restart(ctx, "plex"))

	assert.Equal(t, []string{"up:" + file, "down:" + file, "down:" + file, "up:" + file}, h.runner.Calls())
}

func TestStart_NotFound(t *testing.T) {
	h := newHarness(t)

	err := h.manager.Start(context.Background(), "plex")
	assert.ErrorIs(t, err, domain.ErrDeploymentNotFound)
}

func TestStart_NoComposeFile(t *testing.T) {
	h := newHarness(t)
	h.add(t, "plex", h.emptyDir(t, "plex"))

	err := h.manager.Start(context.Background(), "plex")
	assert.ErrorIs(t, err, domain.ErrComposeFileNotFound)
	assert.Empty(t, h.runner.Calls())
}

func TestStart_FailureRecorded(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	dir, file := h.project(t, "plex", webSpec)
	h.add(t, "plex", dir)
	h.runner.fail["up:"+file] = errBoom

	err := h.manager.Start(ctx, "plex")
	assert.ErrorIs(t, err, errBoom)

	events, err := h.manager.History(ctx, "plex", 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.ActionStart, events[0].Action)
	assert.Equal(t, domain.OutcomeFailure, events[0].Outcome)
	assert.Equal(t, "boom", events[0].Message)
}

func TestRestart_DownFailureSkipsUp(t *testing.T) {
	h := newHarness(t)
	dir, file := h.project(t, "plex", webSpec)
	h.add(t, "plex", dir)
	h.runner.fail["down:"+file] = errBoom

	err := h.manager.Restart(context.Background(), "plex")
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, []string{"down:" + file}, h.runner.Calls())
}

func TestUpdate(t *testing.T) {
	tests := []struct {
		name    string
		opts    UpdateOptions
		outcome UpdateOutcome
		calls   []string
	}{
		{"pull only", UpdateOptions{}, UpdatePulled, []string{"pull"}},
		{"start", UpdateOptions{Start: true}, UpdateStarted, []string{"pull", "up"}},
		{"restart", UpdateOptions{Restart: true}, UpdateRestarted, []string{"pull", "down", "up"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			dir, file := h.project(t, "plex", webSpec)
			h.add(t, "plex", dir)

			outcome, err := h.manager.Update(context.Background(), "plex", tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, outcome)

			var want []string
			for _, c := range tt.calls {
				want = append(want, c+":"+file)
			}
			assert.Equal(t, want, h.runner.Calls())
		})
	}
}

func TestUpdateOutcome_Message(t *testing.T) {
	assert.Equal(t, "Deployment a updated and started.", UpdateStarted.Message("a"))
	assert.Equal(t, "Deployment a updated and restarted.", UpdateRestarted.Message("a"))
	assert.Equal(t, "Deployment a updated without starting or restarting.", UpdatePulled.Message("a"))
}

func TestUpdate_ConflictingFlags(t *testing.T) {
	h := newHarness(t)

	_, err := h.manager.Update(context.Background(), "plex", UpdateOptions{Start: true, Restart: true})
	assert.ErrorIs(t, err, domain.ErrConflictingFlags)
	assert.Empty(t, h.runner.Calls())
}

func TestUpdate_PullFailureStops(t *testing.T) {
	h := newHarness(t)
	dir, file := h.project(t, "plex", webSpec)
	h.add(t, "plex", dir)
	h.runner.fail["pull:"+file] = errBoom

	_, err := h.manager.Update(context.Background(), "plex", UpdateOptions{Restart: true})
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, []string{"pull:" + file}, h.runner.Calls())
}

// =============================================================================
// Bulk Tests
// =============================================================================

func TestStartAll_ContinuesPastFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	dirA, fileA := h.project(t, "alpha", webSpec)
	dirB, fileB := h.project(t, "bravo", webSpec)
	dirC, fileC := h.project(t, "charlie", webSpec)
	h.add(t, "charlie", dirC)
	h.add(t, "alpha", dirA)
	h.add(t, "bravo", dirB)
	h.runner.fail["up:"+fileB] = errBoom

	result, err := h.manager.StartAll(ctx)
	require.NoError(t, err)

	require.Len(t, result.Results, 3)
	assert.Equal(t, "alpha", result.Results[0].Name)
	assert.True(t, result.Results[0].Succeeded())
	assert.Equal(t, "bravo", result.Results[1].Name)
	assert.ErrorIs(t, result.Results[1].Err, errBoom)
	assert.Equal(t, "charlie", result.Results[2].Name)

	assert.ElementsMatch(t, []string{"up:" + fileA, "up:" + fileB, "up:" + fileC}, h.runner.Calls())

	bulkErr := result.Err()
	require.Error(t, bulkErr)
	assert.ErrorIs(t, bulkErr, errBoom)
	var be *BulkError
	require.True(t, errors.As(bulkErr, &be))
	assert.Equal(t, []string{"bravo"}, be.Names)
	assert.Equal(t, "start failed for 1 deployment(s): bravo", be.Error())
}

func TestStopAll_Empty(t *testing.T) {
	h := newHarness(t)

	result, err := h.manager.StopAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Results)
	assert.NoError(t, result.Err())
}

func TestStopAll_MissingComposeFileIsFailure(t *testing.T) {
	h := newHarness(t)
	h.add(t, "plex", h.emptyDir(t, "plex"))

	result, err := h.manager.StopAll(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Failed(), 1)
	assert.ErrorIs(t, result.Failed()[0].Err, domain.ErrComposeFileNotFound)
}

// =============================================================================
// Query Tests
// =============================================================================

func TestList(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	upDir, _ := h.project(t, "sonarr", webSpec)
	downDir, _ := h.project(t, "plex", webSpec)
	h.add(t, "sonarr", upDir)
	h.add(t, "plex", downDir)
	h.add(t, "radarr", h.emptyDir(t, "radarr"))

	h.docker.containers = []docker.ContainerInfo{
		container("s1", "sonarr", "web", "running"),
		container("s2", "sonarr", "db", "exited"),
		container("p1", "plex", "web", "exited"),
	}

	views, err := h.manager.List(ctx)
	require.NoError(t, err)
	require.Len(t, views, 3)

	assert.Equal(t, "plex", views[0].Name)
	assert.Equal(t, domain.StatusDown, views[0].Status)
	assert.Equal(t, "radarr", views[1].Name)
	assert.Equal(t, domain.StatusUnknown, views[1].Status)
	assert.Empty(t, views[1].Error)
	assert.Equal(t, "sonarr", views[2].Name)
	assert.Equal(t, domain.StatusUp, views[2].Status)
}

func TestList_DockerErrorAttached(t *testing.T) {
	h := newHarness(t)
	dir, _ := h.project(t, "plex", webSpec)
	h.add(t, "plex", dir)
	h.docker.listErr = docker.NewDockerError("ListContainers", "container", "", "no daemon", docker.ErrConnectionFailed)

	views, err := h.manager.List(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, domain.StatusUnknown, views[0].Status)
	assert.Contains(t, views[0].Error, "no daemon")
}

func TestStatus_Summary(t *testing.T) {
	h := newHarness(t)
	dir, file := h.project(t, "plex", webSpec)
	h.add(t, "plex", dir)
	h.docker.containers = []docker.ContainerInfo{container("p1", "plex", "web", "running")}

	report, err := h.manager.Status(context.Background(), "plex", false)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUp, report.Status)
	assert.Equal(t, file, report.ComposeFile)
	assert.Equal(t, "plex", report.Project)
	assert.Empty(t, report.Containers)
}

func TestStatus_ProjectNameFromDotEnv(t *testing.T) {
	unsetEnv(t, "COMPOSE_PROJECT_NAME")
	h := newHarness(t)
	dir, _ := h.project(t, "plex", webSpec)
	h.dotEnv(t, dir, "COMPOSE_PROJECT_NAME=media\n")
	h.add(t, "plex", dir)
	h.docker.containers = []docker.ContainerInfo{container("m1", "media", "web", "running")}

	report, err := h.manager.Status(context.Background(), "plex", false)
	require.NoError(t, err)
	assert.Equal(t, "media", report.Project)
	assert.Equal(t, domain.StatusUp, report.Status)

	views, err := h.manager.List(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, domain.StatusUp, views[0].Status)
}

func TestStatus_UnparsedFileUsesDotEnvProjectName(t *testing.T) {
	unsetEnv(t, "COMPOSE_PROJECT_NAME", "DCG_TEST_MISSING_IMAGE")
	h := newHarness(t)
	dir, _ := h.project(t, "plex", "services:\n  web:\n    image: ${DCG_TEST_MISSING_IMAGE}\n")
	h.dotEnv(t, dir, "COMPOSE_PROJECT_NAME=media\n")
	h.add(t, "plex", dir)
	h.docker.containers = []docker.ContainerInfo{container("m1", "media", "web", "running")}

	report, err := h.manager.Status(context.Background(), "plex", false)
	require.NoError(t, err)
	assert.Equal(t, "media", report.Project)
	assert.Equal(t, domain.StatusUp, report.Status)
}

func TestStatus_NoComposeFile(t *testing.T) {
	h := newHarness(t)
	h.add(t, "plex", h.emptyDir(t, "plex"))

	report, err := h.manager.Status(context.Background(), "plex", false)
	assert.ErrorIs(t, err, domain.ErrComposeFileNotFound)
	require.NotNil(t, report)
	assert.Equal(t, domain.StatusUnknown, report.Status)
}

func TestStatus_NotFound(t *testing.T) {
	h := newHarness(t)

	_, err := h.manager.Status(context.Background(), "plex", true)
	assert.ErrorIs(t, err, domain.ErrDeploymentNotFound)
}

func TestStatus_Detailed(t *testing.T) {
	h := newHarness(t)
	dir, _ := h.project(t, "plex", webSpec)
	h.add(t, "plex", dir)

	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	h.manager.now = func() time.Time { return now }
	started := now.Add(-(26*time.Hour + 3*time.Minute + 4*time.Second))

	web := container("w1", "plex", "web", "running")
	web.StartedAt = &started
	web.Health = "healthy"
	web.Ports = []docker.PortBinding{
		{ContainerPort: 80, HostPort: 8080, Protocol: "tcp", HostIP: "0.0.0.0"},
		{ContainerPort: 80, HostPort: 8080, Protocol: "tcp", HostIP: "::"},
	}
	db := container("d1", "plex", "db", "running")
	db.Health = "unhealthy"
	stale := container("o1", "plex", "web", "exited")
	h.docker.containers = []docker.ContainerInfo{web, db, stale}

	report, err := h.manager.Status(context.Background(), "plex", true)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusUp, report.Status)
	assert.Equal(t, domain.HealthStatusDegraded, report.Health)
	require.Len(t, report.Containers, 2, "stopped containers are not listed")

	// db comes first: web depends on it
	assert.Equal(t, "db", report.Containers[0].Service)
	assert.Equal(t, domain.HealthStatusUnhealthy, report.Containers[0].Health)
	assert.Empty(t, report.Containers[0].Uptime)

	w := report.Containers[1]
	assert.Equal(t, "web", w.Service)
	assert.Equal(t, "web:latest", w.Image)
	assert.Equal(t, []string{"80/tcp:8080"}, w.Ports)
	assert.Equal(t, "1 day, 2:03:04", w.Uptime)
	assert.Equal(t, domain.HealthStatusHealthy, w.Health)
}

func TestStatistics(t *testing.T) {
	h := newHarness(t)
	dirA, _ := h.project(t, "alpha", webSpec)
	dirB, _ := h.project(t, "bravo", "services:\n  app:\n    image: nginx:latest\n")
	h.add(t, "alpha", dirA)
	h.add(t, "bravo", dirB)
	h.add(t, "charlie", h.emptyDir(t, "charlie"))

	s, err := h.manager.Statistics(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, s.Map()[stats.KeyDeployments])
	assert.Equal(t, 3, s.Map()[stats.KeyImagesUsed])
	assert.Equal(t, 2, s.Map()[stats.KeyUniqueImages])
	assert.Equal(t, 1, s.Map()[stats.KeyMissingFiles])
}

func TestStatistics_ImageFromDotEnv(t *testing.T) {
	unsetEnv(t, "COMPOSE_PROJECT_NAME", "IMAGE")
	h := newHarness(t)
	dir, _ := h.project(t, "plex", "services:\n  web:\n    image: ${IMAGE}\n  db:\n    image: postgres\n")
	h.dotEnv(t, dir, "IMAGE=nginx\n")
	h.add(t, "plex", dir)

	s, err := h.manager.Statistics(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, s.Map()[stats.KeyDeployments])
	assert.Equal(t, 2, s.Map()[stats.KeyImagesUsed])
	assert.Equal(t, 2, s.Map()[stats.KeyUniqueImages])
	assert.Equal(t, 0, s.Map()[stats.KeyMissingFiles])
}

func TestStatistics_UnparsedFileCountsDeclaredServices(t *testing.T) {
	unsetEnv(t, "DCG_TEST_MISSING_IMAGE")
	h := newHarness(t)
	dir, _ := h.project(t, "plex", "services:\n  web:\n    image: ${DCG_TEST_MISSING_IMAGE}\n  db:\n    image: postgres\n")
	h.add(t, "plex", dir)

	s, err := h.manager.Statistics(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, s.Map()[stats.KeyImagesUsed])
	assert.Equal(t, 0, s.Map()[stats.KeyUniqueImages])
	assert.Equal(t, 0, s.Map()[stats.KeyMissingFiles])
}

func TestHistory_Disabled(t *testing.T) {
	h := newHarness(t)
	h.manager.history = nil

	_, err := h.manager.History(context.Background(), "", 10)
	assert.ErrorIs(t, err, ErrHistoryDisabled)

	// actions still work without history
	dir, _ := h.project(t, "plex", webSpec)
	_, err = h.manager.Add(context.Background(), "plex", dir, true)
	assert.NoError(t, err)
}

func TestHistory_ClosedStoreDoesNotFailActions(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.history.Close())

	dir, _ := h.project(t, "plex", webSpec)
	_, err := h.manager.Add(context.Background(), "plex", dir, true)
	assert.NoError(t, err)
}

func TestRecordStatusChange(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.manager.RecordStatusChange(ctx, "plex", domain.StatusUp, domain.StatusDown)

	events, err := h.history.ListEvents(ctx, store.ListOptions{Deployment: "plex"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Up -> Down", events[0].Message)
}

// =============================================================================
// Logs Tests
// =============================================================================

func TestLogs(t *testing.T) {
	h := newHarness(t)
	dir, _ := h.project(t, "plex", webSpec)
	h.add(t, "plex", dir)
	h.docker.containers = []docker.ContainerInfo{
		container("w1", "plex", "web", "running"),
		container("d1", "plex", "db", "running"),
	}
	h.docker.logs["w1"] = "GET /\n"
	h.docker.logs["d1"] = "ready\n"

	var stdout, stderr bytes.Buffer
	err := h.manager.Logs(context.Background(), "plex", LogOptions{Tail: "all"}, &stdout, &stderr)
	require.NoError(t, err)
	assert.Equal(t, "==> plex-db-d1 <==\nready\n==> plex-web-w1 <==\nGET /\n", stdout.String())

	stdout.Reset()
	err = h.manager.Logs(context.Background(), "plex", LogOptions{Service: "web", Follow: true}, &stdout, &stderr)
	require.NoError(t, err)
	assert.Equal(t, "GET /\n", stdout.String())
}

func TestLogs_FollowSeveralContainers(t *testing.T) {
	h := newHarness(t)
	dir, _ := h.project(t, "plex", webSpec)
	h.add(t, "plex", dir)
	h.docker.containers = []docker.ContainerInfo{
		container("w1", "plex", "web", "running"),
		container("d1", "plex", "db", "running"),
	}

	err := h.manager.Logs(context.Background(), "plex", LogOptions{Follow: true}, &bytes.Buffer{}, &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrFollowNeedsOneContainer)
}

func TestLogs_NoContainers(t *testing.T) {
	h := newHarness(t)
	dir, _ := h.project(t, "plex", webSpec)
	h.add(t, "plex", dir)

	err := h.manager.Logs(context.Background(), "plex", LogOptions{}, &bytes.Buffer{}, &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrNoContainers)
}
