// Package sqlite provides a SQLite-backed ItemRepository.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/cf-error-page/editor/internal/domain"
	"github.com/cf-error-page/editor/internal/platform/storage/sqlitemigrate"
	"github.com/cf-error-page/editor/internal/repositories"
	"github.com/cf-error-page/editor/internal/repositories/sqlite/migrations"
)

// ItemRepository persists share items in a single SQLite table.
type ItemRepository struct {
	db *sql.DB
}

var _ repositories.ItemRepository = (*ItemRepository)(nil)

// Open opens (creating if needed) the database at path and applies migrations.
func Open(ctx context.Context, path string) (*ItemRepository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite: storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping db: %w", err)
	}
	if err := sqlitemigrate.Apply(ctx, db, migrations.FS, ""); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: run migrations: %w", err)
	}
	return &ItemRepository{db: db}, nil
}

// Insert writes item inside a transaction. A taken name yields a conflict error and the
// transaction is rolled back.
func (r *ItemRepository) Insert(ctx context.Context, item domain.Item) error {
	payload, err := json.Marshal(item.Params)
	if err != nil {
		return fmt.Errorf("sqlite: encode params: %w", err)
	}
	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return repositories.NewUnavailableError("sqlite.items.insert", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO items (name, params, created_at) VALUES (?, ?, ?)`,
		item.Name, string(payload), createdAt.UTC().UnixMilli(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repositories.NewConflictError("sqlite.items.insert", err)
		}
		return repositories.NewUnavailableError("sqlite.items.insert", err)
	}
	if err := tx.Commit(); err != nil {
		return repositories.NewUnavailableError("sqlite.items.commit", err)
	}
	return nil
}

// FindByName loads one item by its exact name.
func (r *ItemRepository) FindByName(ctx context.Context, name string) (domain.Item, error) {
	var (
		payload   string
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT params, created_at FROM items WHERE name = ?`, name,
	).Scan(&payload, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Item{}, repositories.NewNotFoundError("sqlite.items.find")
	}
	if err != nil {
		return domain.Item{}, repositories.NewUnavailableError("sqlite.items.find", err)
	}

	var params domain.ErrorPageParams
	if err := json.Unmarshal([]byte(payload), &params); err != nil {
		return domain.Item{}, fmt.Errorf("sqlite: decode params for %q: %w", name, err)
	}
	return domain.Item{
		Name:      name,
		Params:    params,
		CreatedAt: time.UnixMilli(createdAt).UTC(),
	}, nil
}

// Ping checks the database handle.
func (r *ItemRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return repositories.NewUnavailableError("sqlite.ping", err)
	}
	return nil
}

// Close closes the database handle.
func (r *ItemRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
