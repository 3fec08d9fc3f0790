package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	sqlite "github.com/mattn/go-sqlite3"

	"github.com/artpar/dcg/internal/core/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeFormat is fixed width so that created_at sorts as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements HistoryStore using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ HistoryStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database at dsn and runs
// migrations. dsn is a file path or ":memory:".
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, NewStoreError("NewSQLiteStore", "", "", fmt.Sprintf("failed to create directory: %v", err), ErrConnectionFailed)
		}
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	db, err := sqlx.Open("sqlite3", dsn+sep+"_busy_timeout=5000")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}
	// One connection: ":memory:" databases are per connection, and SQLite
	// serializes writers anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Event Operations
// =============================================================================

// eventRow represents an event row in the database.
type eventRow struct {
	ID         string `db:"id"`
	Deployment string `db:"deployment"`
	Action     string `db:"action"`
	Outcome    string `db:"outcome"`
	Message    string `db:"message"`
	CreatedAt  string `db:"created_at"`
}

// RecordEvent stores an event.
func (s *SQLiteStore) RecordEvent(ctx context.Context, event domain.Event) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	row := eventRow{
		ID:         event.ID,
		Deployment: event.Deployment,
		Action:     string(event.Action),
		Outcome:    string(event.Outcome),
		Message:    event.Message,
		CreatedAt:  event.CreatedAt.UTC().Format(timeFormat),
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO events (id, deployment, action, outcome, message, created_at)
		VALUES (:id, :deployment, :action, :outcome, :message, :created_at)`, row)
	if err != nil {
		var sqliteErr sqlite.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite.ErrConstraintPrimaryKey {
			return NewStoreError("RecordEvent", "event", event.ID, "event already recorded", ErrDuplicateID)
		}
		return NewStoreError("RecordEvent", "event", event.ID, err.Error(), err)
	}
	return nil
}

// ListEvents returns events newest first, optionally for one deployment.
func (s *SQLiteStore) ListEvents(ctx context.Context, opts ListOptions) ([]domain.Event, error) {
	opts = opts.Normalize()

	query := `SELECT id, deployment, action, outcome, message, created_at FROM events`
	var args []any
	if opts.Deployment != "" {
		query += ` WHERE deployment = ?`
		args = append(args, opts.Deployment)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`
	args = append(args, opts.Limit, opts.Offset)

	var rows []eventRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, NewStoreError("ListEvents", "event", "", err.Error(), err)
	}

	events := make([]domain.Event, 0, len(rows))
	for i := range rows {
		event, err := rowToEvent(&rows[i])
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

// DeleteEvents removes all events of a deployment.
func (s *SQLiteStore) DeleteEvents(ctx context.Context, deployment string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE deployment = ?`, deployment)
	if err != nil {
		return 0, NewStoreError("DeleteEvents", "event", "", err.Error(), err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, NewStoreError("DeleteEvents", "event", "", err.Error(), err)
	}
	return n, nil
}

func rowToEvent(row *eventRow) (domain.Event, error) {
	createdAt, err := time.Parse(timeFormat, row.CreatedAt)
	if err != nil {
		return domain.Event{}, NewStoreError("ListEvents", "event", row.ID, "invalid created_at", ErrInvalidData)
	}
	return domain.Event{
		ID:         row.ID,
		Deployment: row.Deployment,
		Action:     domain.Action(row.Action),
		Outcome:    domain.Outcome(row.Outcome),
		Message:    row.Message,
		CreatedAt:  createdAt,
	}, nil
}
