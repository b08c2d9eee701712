// Package sqlstore keeps the check list snapshot in a SQL table. The whole
// list is rewritten inside one transaction on every Save.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/idilsaglam/checklist/internal/model"
)

// Supported database/sql driver names.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// position keeps list order; item_index holds the creation-time Item.Index
// ("index" is reserved in MySQL).
const createTable = `CREATE TABLE IF NOT EXISTS check_list_items (
    position INTEGER NOT NULL PRIMARY KEY,
    id VARCHAR(64) NOT NULL,
    name TEXT NOT NULL,
    item_type TEXT NULL,
    complete BOOLEAN NOT NULL,
    item_index INTEGER NOT NULL
)`

type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to dsn with the given driver and ensures the schema.
// For sqlite the dsn is a file path.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite, DriverMySQL:
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	s := &Store{db: db, driver: driver}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	if s.driver == DriverSQLite {
		if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
			return fmt.Errorf("set busy_timeout: %w", err)
		}
	}
	if _, err := s.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context) ([]model.Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, item_type, complete, item_index
    FROM check_list_items ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	items := []model.Item{}
	for rows.Next() {
		var it model.Item
		var itemType sql.NullString
		if err := rows.Scan(&it.ID, &it.Name, &itemType, &it.Complete, &it.Index); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		if itemType.Valid {
			t := itemType.String
			it.ItemType = &t
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

func (s *Store) Save(ctx context.Context, items []model.Item) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM check_list_items`); err != nil {
		return fmt.Errorf("clear items: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO check_list_items
    (position, id, name, item_type, complete, item_index) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for pos, it := range items {
		var itemType sql.NullString
		if it.ItemType != nil {
			itemType = sql.NullString{String: *it.ItemType, Valid: true}
		}
		if _, err = stmt.ExecContext(ctx, pos, it.ID, it.Name, itemType, it.Complete, it.Index); err != nil {
			return fmt.Errorf("insert item %s: %w", it.ID, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
