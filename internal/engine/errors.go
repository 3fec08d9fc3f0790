// Package engine orchestrates deployments: it combines the registry, the
// compose runner, the Docker client and the history store.
package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrHistoryDisabled is returned by History when no history store is configured.
	ErrHistoryDisabled = errors.New("history is disabled")

	// ErrFollowNeedsOneContainer is returned when following logs of several containers.
	ErrFollowNeedsOneContainer = errors.New("following logs requires exactly one container; choose a service")

	// ErrNoContainers is returned by Logs when the deployment has no containers.
	ErrNoContainers = errors.New("no containers found")
)

// =============================================================================
// Bulk Results
// =============================================================================

// ActionResult is the outcome of one deployment in a bulk operation.
type ActionResult struct {
	Name string `json:"name"`
	Err  error  `json:"-"`
}

// Succeeded reports whether the action completed.
func (r ActionResult) Succeeded() bool {
	return r.Err == nil
}

// BulkResult collects per-deployment results of StartAll and StopAll, in
// deployment name order.
type BulkResult struct {
	Action  string         `json:"action"`
	Results []ActionResult `json:"results"`
}

// Failed returns the results that carry an error.
func (b BulkResult) Failed() []ActionResult {
	var failed []ActionResult
	for _, r := range b.Results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}

// Err summarizes failures, or returns nil when every deployment succeeded.
func (b BulkResult) Err() error {
	failed := b.Failed()
	if len(failed) == 0 {
		return nil
	}
	names := make([]string, len(failed))
	errs := make([]error, len(failed))
	for i, r := range failed {
		names[i] = r.Name
		errs[i] = fmt.Errorf("%s: %w", r.Name, r.Err)
	}
	return &BulkError{Action: b.Action, Names: names, Err: errors.Join(errs...)}
}

// BulkError reports which deployments failed in a bulk operation.
type BulkError struct {
	Action string
	Names  []string
	Err    error
}

func (e *BulkError) Error() string {
	return fmt.Sprintf("%s failed for %d deployment(s): %s", e.Action, len(e.Names), strings.Join(e.Names, ", "))
}

func (e *BulkError) Unwrap() error {
	return e.Err
}
