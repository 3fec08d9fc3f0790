// Package workers contains background workers for dcg serve.
package workers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/artpar/dcg/internal/core/domain"
	"github.com/artpar/dcg/internal/core/monitoring"
)

// StatusSource lists deployments with their current status.
type StatusSource interface {
	List(ctx context.Context) ([]domain.DeploymentView, error)
}

// TransitionRecorder persists observed status changes.
type TransitionRecorder interface {
	RecordStatusChange(ctx context.Context, name string, from, to domain.Status)
}

// StatusWatcherConfig configures the status watcher worker.
type StatusWatcherConfig struct {
	// Interval is the time between cycles.
	// Default: 30 seconds.
	Interval time.Duration
}

// DefaultStatusWatcherConfig returns the default configuration.
func DefaultStatusWatcherConfig() StatusWatcherConfig {
	return StatusWatcherConfig{
		Interval: 30 * time.Second,
	}
}

// StatusWatcher periodically checks every deployment and records a
// status-change event when a deployment goes up, goes down or loses its
// compose file.
type StatusWatcher struct {
	source   StatusSource
	recorder TransitionRecorder
	config   StatusWatcherConfig
	logger   *slog.Logger

	mu   sync.Mutex
	last map[string]domain.Status

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStatusWatcher creates a new status watcher worker.
func NewStatusWatcher(source StatusSource, recorder TransitionRecorder, config StatusWatcherConfig, logger *slog.Logger) *StatusWatcher {
	if config.Interval <= 0 {
		config.Interval = DefaultStatusWatcherConfig().Interval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &StatusWatcher{
		source:   source,
		recorder: recorder,
		config:   config,
		logger:   logger.With("component", "status_watcher"),
		last:     make(map[string]domain.Status),
	}
}

// Start begins the watcher goroutine.
func (w *StatusWatcher) Start() {
	w.ctx, w.cancel = context.WithCancel(context.Background())

	w.wg.Add(1)
	go w.run()

	w.logger.Info("status watcher started", "interval", w.config.Interval)
}

// Stop cancels the watcher and waits for an in-progress cycle to finish.
func (w *StatusWatcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	w.logger.Info("status watcher stopped")
}

func (w *StatusWatcher) run() {
	defer w.wg.Done()

	w.runCycle(w.ctx)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.runCycle(w.ctx)
		}
	}
}

// runCycle observes every deployment once. Deployments whose status could
// not be determined keep their previous status.
func (w *StatusWatcher) runCycle(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, w.config.Interval)
	defer cancel()

	views, err := w.source.List(ctx)
	if err != nil {
		w.logger.Error("failed to list deployments", "error", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	seen := make(map[string]bool, len(views))
	for _, v := range views {
		seen[v.Name] = true
		if v.Error != "" {
			w.logger.Debug("status unavailable", "deployment", v.Name, "error", v.Error)
			continue
		}

		previous := w.last[v.Name]
		w.last[v.Name] = v.Status
		if !monitoring.Changed(previous, v.Status) {
			continue
		}

		w.logger.Info(monitoring.TransitionMessage(v.Name, previous, v.Status),
			"deployment", v.Name,
			"from", previous,
			"to", v.Status,
		)
		if w.recorder != nil {
			w.recorder.RecordStatusChange(ctx, v.Name, previous, v.Status)
		}
	}

	for name := range w.last {
		if !seen[name] {
			delete(w.last, name)
		}
	}

	w.logger.Debug("completed status cycle", "deployment_count", len(views))
}
