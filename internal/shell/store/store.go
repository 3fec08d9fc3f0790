package store

import (
	"context"

	"github.com/artpar/dcg/internal/core/domain"
)

// =============================================================================
// Store Interface
// =============================================================================

// HistoryStore records what dcg did to deployments and what it observed.
type HistoryStore interface {
	RecordEvent(ctx context.Context, event domain.Event) error
	// ListEvents returns events newest first.
	ListEvents(ctx context.Context, opts ListOptions) ([]domain.Event, error)
	// DeleteEvents removes every event of a deployment and returns the count.
	DeleteEvents(ctx context.Context, deployment string) (int64, error)
	Close() error
}

// =============================================================================
// Options
// =============================================================================

// DefaultListLimit applies when ListOptions.Limit is zero or negative.
const DefaultListLimit = 20

// ListOptions defines pagination and filtering options.
type ListOptions struct {
	Deployment string // empty for all deployments
	Limit      int    // capped at 1000
	Offset     int
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
