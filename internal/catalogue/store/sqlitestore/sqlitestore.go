// Package sqlitestore is the persistent catalogue.Store variant: one row
// per ToolOrigin in a modernc.org/sqlite database, keyed by the
// (server_id, tool_name) pair of the catalogue's compound Key, with the
// origin stored as a JSON payload column. Rows are read and written whole;
// no JSON-path queries are used.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/fenwick-labs/toolgate/internal/catalogue"
	_ "modernc.org/sqlite"
)

// Store is a sqlite-backed catalogue.Store.
type Store struct {
	db *sql.DB
}

// Config configures a Store.
type Config struct {
	// Path to the database file. ":memory:" for an ephemeral store.
	Path string
}

// New opens (creating if necessary) a sqlite-backed Store.
func New(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		cfg.Path = ":memory:"
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open: %w", err)
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

var _ catalogue.Store = (*Store)(nil)

func (s *Store) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS tool_origins (
			server_id TEXT NOT NULL,
			tool_name TEXT NOT NULL,
			payload   TEXT NOT NULL,
			PRIMARY KEY (server_id, tool_name)
		)
	`)
	if err != nil {
		return fmt.Errorf("sqlitestore: create table: %w", err)
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, origin catalogue.ToolOrigin) error {
	return s.BatchUpsert(ctx, []catalogue.ToolOrigin{origin})
}

func (s *Store) BatchUpsert(ctx context.Context, origins []catalogue.ToolOrigin) error {
	if len(origins) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitestore: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tool_origins (server_id, tool_name, payload) VALUES (?, ?, ?)
		ON CONFLICT(server_id, tool_name) DO UPDATE SET payload = excluded.payload
	`)
	if err != nil {
		return fmt.Errorf("sqlitestore: prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, o := range origins {
		payload, err := json.Marshal(o)
		if err != nil {
			return fmt.Errorf("sqlitestore: marshal origin: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, o.Server.ID, o.Tool.Name, string(payload)); err != nil {
			return fmt.Errorf("sqlitestore: upsert %s: %w", o.Key(), err)
		}
	}

	return tx.Commit()
}

func (s *Store) Get(ctx context.Context, keys []catalogue.Key) ([]*catalogue.ToolOrigin, error) {
	out := make([]*catalogue.ToolOrigin, len(keys))
	stmt, err := s.db.PrepareContext(ctx, `
		SELECT payload FROM tool_origins WHERE server_id = ? AND tool_name = ?
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: prepare get: %w", err)
	}
	defer stmt.Close()

	for i, k := range keys {
		var payload string
		err := stmt.QueryRowContext(ctx, k.ServerID, k.ToolName).Scan(&payload)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("sqlitestore: get %s: %w", k, err)
		}
		var origin catalogue.ToolOrigin
		if err := json.Unmarshal([]byte(payload), &origin); err != nil {
			return nil, fmt.Errorf("sqlitestore: unmarshal %s: %w", k, err)
		}
		out[i] = &origin
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, keys []catalogue.Key) error {
	if len(keys) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitestore: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM tool_origins WHERE server_id = ? AND tool_name = ?`)
	if err != nil {
		return fmt.Errorf("sqlitestore: prepare delete: %w", err)
	}
	defer stmt.Close()

	for _, k := range keys {
		if _, err := stmt.ExecContext(ctx, k.ServerID, k.ToolName); err != nil {
			return fmt.Errorf("sqlitestore: delete %s: %w", k, err)
		}
	}

	return tx.Commit()
}

func (s *Store) Scan(ctx context.Context, limit int) ([]catalogue.ToolOrigin, error) {
	query := `SELECT payload FROM tool_origins`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: scan: %w", err)
	}
	defer rows.Close()

	var out []catalogue.ToolOrigin
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("sqlitestore: scan row: %w", err)
		}
		var origin catalogue.ToolOrigin
		if err := json.Unmarshal([]byte(payload), &origin); err != nil {
			return nil, fmt.Errorf("sqlitestore: unmarshal row: %w", err)
		}
		out = append(out, origin)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
