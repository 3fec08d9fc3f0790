package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/docker/docker/pkg/stdcopy"
	"github.com/stretchr/testify/require"

	"github.com/artpar/dcg/internal/core/deployment"
	"github.com/artpar/dcg/internal/shell/docker"
	"github.com/artpar/dcg/internal/shell/registry"
	"github.com/artpar/dcg/internal/shell/store"
)

// =============================================================================
// Fake Runner
// =============================================================================

type fakeRunner struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error // "up:/path/docker-compose.yaml" -> error
}

func (r *fakeRunner) do(action, file string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := action + ":" + file
	r.calls = append(r.calls, key)
	return r.fail[key]
}

func (r *fakeRunner) Up(ctx context.Context, file string) error   { return r.do("up", file) }
func (r *fakeRunner) Down(ctx context.Context, file string) error { return r.do("down", file) }
func (r *fakeRunner) Pull(ctx context.Context, file string) error { return r.do("pull", file) }

func (r *fakeRunner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// =============================================================================
// Fake Docker
// =============================================================================

type fakeDocker struct {
	mu         sync.Mutex
	containers []docker.ContainerInfo
	logs       map[string]string // container ID -> stdout
	listErr    error
}

func (d *fakeDocker) Ping(ctx context.Context) error { return d.listErr }

func (d *fakeDocker) ListContainers(ctx context.Context, opts docker.ListOptions) ([]docker.ContainerInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listErr != nil {
		return nil, d.listErr
	}
	var result []docker.ContainerInfo
	for _, c := range d.containers {
		if !opts.All && c.State != "running" {
			continue
		}
		match := true
		for k, v := range opts.Labels {
			if c.Labels[k] != v {
				match = false
			}
		}
		if match {
			result = append(result, c)
		}
	}
	return result, nil
}

func (d *fakeDocker) InspectContainer(ctx context.Context, id string) (*docker.ContainerInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.containers {
		if c.ID == id {
			info := c
			return &info, nil
		}
	}
	return nil, docker.NewDockerError("InspectContainer", "container", id, "container not found", docker.ErrContainerNotFound)
}

func (d *fakeDocker) ContainerLogs(ctx context.Context, id string, opts docker.LogOptions) (io.ReadCloser, error) {
	var buf bytes.Buffer
	_, err := stdcopy.NewStdWriter(&buf, stdcopy.Stdout).Write([]byte(d.logs[id]))
	if err != nil {
		return nil, err
	}
	return io.NopCloser(&buf), nil
}

func (d *fakeDocker) Close() error { return nil }

func container(id, project, service, state string) docker.ContainerInfo {
	return docker.ContainerInfo{
		ID:    id,
		Name:  fmt.Sprintf("%s-%s-%s", project, service, id),
		Image: service + ":latest",
		State: state,
		Labels: map[string]string{
			deployment.LabelProject: project,
			deployment.LabelService: service,
		},
	}
}

// =============================================================================
// Harness
// =============================================================================

type harness struct {
	manager *Manager
	runner  *fakeRunner
	docker  *fakeDocker
	history *store.SQLiteStore
	root    string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	root := t.TempDir()

	history, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { history.Close() })

	h := &harness{
		runner:  &fakeRunner{fail: map[string]error{}},
		docker:  &fakeDocker{logs: map[string]string{}},
		history: history,
		root:    root,
	}
	h.manager = NewManager(Config{
		Registry:    registry.NewFileStore(filepath.Join(root, ".dcg", "settings.yaml")),
		Runner:      h.runner,
		Docker:      h.docker,
		History:     history,
		MaxParallel: 2,
	})
	return h
}

// project creates a deployment directory with a compose file and returns
// the directory and compose file paths.
func (h *harness) project(t *testing.T, name, content string) (string, string) {
	t.Helper()
	dir := filepath.Join(h.root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	file := filepath.Join(dir, "docker-compose.yaml")
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))
	return dir, file
}

// dotEnv writes a .env file next to a deployment's compose file.
func (h *harness) dotEnv(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o644))
}

// unsetEnv removes variables from the process environment for the test.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

// emptyDir creates a deployment directory without a compose file.
func (h *harness) emptyDir(t *testing.T, name string) string {
	t.Helper()
	dir := filepath.Join(h.root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	return dir
}

func (h *harness) add(t *testing.T, name, dir string) {
	t.Helper()
	_, err := h.manager.Add(context.Background(), name, dir, false)
	require.NoError(t, err)
}

const webSpec = `
services:
  web:
    image: nginx:latest
    depends_on:
      - db
  db:
    image: postgres:15
`
