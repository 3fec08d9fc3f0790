package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/artpar/dcg/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func eventAt(deployment string, action domain.Action, at time.Time) domain.Event {
	e := domain.NewEvent(deployment, action, nil)
	e.CreatedAt = at
	return e
}

// =============================================================================
// Lifecycle Tests
// =============================================================================

func TestNewSQLiteStore_FileDatabase(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "nested", "history.db")

	store, err := NewSQLiteStore(dsn)
	require.NoError(t, err)
	require.NoError(t, store.RecordEvent(context.Background(), domain.NewEvent("plex", domain.ActionAdd, nil)))
	require.NoError(t, store.Close())

	// Reopening runs migrations again without error and keeps data.
	store, err = NewSQLiteStore(dsn)
	require.NoError(t, err)
	defer store.Close()

	events, err := store.ListEvents(context.Background(), ListOptions{})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

// =============================================================================
// Event Tests
// =============================================================================

func TestRecordEvent_RoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	e := domain.NewEvent("plex", domain.ActionStart, errors.New("compose up failed"))
	require.NoError(t, store.RecordEvent(ctx, e))

	events, err := store.ListEvents(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, events, 1)

	got := events[0]
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, "plex", got.Deployment)
	assert.Equal(t, domain.ActionStart, got.Action)
	assert.Equal(t, domain.OutcomeFailure, got.Outcome)
	assert.Equal(t, "compose up failed", got.Message)
	assert.True(t, e.CreatedAt.Equal(got.CreatedAt))
}

func TestRecordEvent_DuplicateID(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	e := domain.NewEvent("plex", domain.ActionStart, nil)
	require.NoError(t, store.RecordEvent(ctx, e))

	err := store.RecordEvent(ctx, e)
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestListEvents_NewestFirstAndFiltered(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.RecordEvent(ctx, eventAt("plex", domain.ActionAdd, base)))
	require.NoError(t, store.RecordEvent(ctx, eventAt("sonarr", domain.ActionAdd, base.Add(time.Second))))
	require.NoError(t, store.RecordEvent(ctx, eventAt("plex", domain.ActionStart, base.Add(500*time.Millisecond))))
	require.NoError(t, store.RecordEvent(ctx, eventAt("plex", domain.ActionStop, base.Add(2*time.Second))))

	all, err := store.ListEvents(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, domain.ActionStop, all[0].Action)
	assert.Equal(t, "sonarr", all[1].Deployment)
	assert.Equal(t, domain.ActionStart, all[2].Action)
	assert.Equal(t, domain.ActionAdd, all[3].Action)

	plex, err := store.ListEvents(ctx, ListOptions{Deployment: "plex", Limit: 2})
	require.NoError(t, err)
	require.Len(t, plex, 2)
	assert.Equal(t, domain.ActionStop, plex[0].Action)
	assert.Equal(t, domain.ActionStart, plex[1].Action)

	page, err := store.ListEvents(ctx, ListOptions{Deployment: "plex", Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, domain.ActionAdd, page[0].Action)
}

func TestDeleteEvents(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordEvent(ctx, domain.NewEvent("plex", domain.ActionAdd, nil)))
	require.NoError(t, store.RecordEvent(ctx, domain.NewEvent("plex", domain.ActionStart, nil)))
	require.NoError(t, store.RecordEvent(ctx, domain.NewEvent("sonarr", domain.ActionAdd, nil)))

	n, err := store.DeleteEvents(ctx, "plex")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	events, err := store.ListEvents(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "sonarr", events[0].Deployment)
}

// =============================================================================
// Options Tests
// =============================================================================

func TestListOptions_Normalize(t *testing.T) {
	assert.Equal(t, ListOptions{Limit: 20}, ListOptions{}.Normalize())
	assert.Equal(t, ListOptions{Limit: 1000}, ListOptions{Limit: 5000, Offset: -1}.Normalize())
	assert.Equal(t, ListOptions{Deployment: "plex", Limit: 5, Offset: 10}, ListOptions{Deployment: "plex", Limit: 5, Offset: 10}.Normalize())
}

func TestStoreError(t *testing.T) {
	err := NewStoreError("RecordEvent", "event", "abc", "event already recorded", ErrDuplicateID)
	assert.Equal(t, "RecordEvent event abc: event already recorded", err.Error())
	assert.True(t, errors.Is(err, ErrDuplicateID))
}
