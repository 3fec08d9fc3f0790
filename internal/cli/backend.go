package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/artpar/dcg/internal/config"
	"github.com/artpar/dcg/internal/core/domain"
	"github.com/artpar/dcg/internal/engine"
	"github.com/artpar/dcg/internal/shell/api"
	"github.com/artpar/dcg/internal/shell/compose"
	"github.com/artpar/dcg/internal/shell/docker"
	"github.com/artpar/dcg/internal/shell/registry"
	"github.com/artpar/dcg/internal/shell/store"
)

// Backend is what the commands operate on. The default implementation wraps
// an engine.Manager; tests substitute a fake.
type Backend interface {
	api.Service

	Get(ctx context.Context, name string) (*domain.Deployment, error)
	RawRegistry(ctx context.Context) ([]byte, error)
	Logs(ctx context.Context, name string, opts engine.LogOptions, stdout, stderr io.Writer) error
	RecordStatusChange(ctx context.Context, name string, from, to domain.Status)
	Close() error
}

// BackendFactory builds a Backend from the loaded configuration. Compose
// output is streamed to stdout and stderr.
type BackendFactory func(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer, logger *slog.Logger) (Backend, error)

type managerBackend struct {
	*engine.Manager
	closers []io.Closer
}

var _ Backend = (*managerBackend)(nil)

func (b *managerBackend) Close() error {
	var errs []error
	for _, c := range b.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewBackend wires the registry file, the compose runner, the Docker client
// and the history store into an engine.Manager. A history store that cannot
// be opened is logged and skipped; commands other than history still work.
func NewBackend(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer, logger *slog.Logger) (Backend, error) {
	dockerClient, err := docker.NewDockerClient(ctx, cfg.Docker.Host)
	if err != nil {
		return nil, err
	}
	b := &managerBackend{closers: []io.Closer{dockerClient}}

	var history store.HistoryStore
	if cfg.History.Enabled {
		sqlite, err := store.NewSQLiteStore(cfg.History.DSN)
		if err != nil {
			logger.Warn("history disabled: cannot open store", "dsn", cfg.History.DSN, "error", err)
		} else {
			history = sqlite
			b.closers = append(b.closers, sqlite)
		}
	}

	b.Manager = engine.NewManager(engine.Config{
		Registry:    registry.NewFileStore(cfg.Registry.Path),
		Runner:      compose.NewExecRunner(cfg.Docker.Binary, stdout, stderr, logger),
		Docker:      dockerClient,
		History:     history,
		Logger:      logger,
		MaxParallel: cfg.Engine.MaxParallel,
	})
	return b, nil
}
