// Package storage is the entity store: a single SQLite file holding the
// normalized schema, its uniqueness guarantees and the transaction
// boundary every multi-entity mutation runs inside.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/conorfennell/ankix/internal/srs"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// DB wraps the SQL database connection.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema exists.
// Re-opening an existing store is a no-op on the schema: every statement
// is CREATE ... IF NOT EXISTS.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := conn.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.seedSettings(); err != nil {
		return nil, err
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// querier is the slice of database/sql shared by *sql.DB and *sql.Tx, so
// every operation can run standalone or inside a transaction.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Tx is an open store transaction. All mutating operations are available
// on it; WithTx commits or rolls the whole thing back.
type Tx struct {
	tx *sql.Tx
}

// WithTx runs fn inside a transaction. If fn returns an error the
// transaction is rolled back and no partial state is visible afterward.
func (db *DB) WithTx(fn func(*Tx) error) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(&Tx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed (%v) after: %w", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Settings is the singleton configuration row: whether field values pass
// through markdown formatting, and the review interval table.
type Settings struct {
	Markdown bool
	SRS      srs.Table
}

func defaultSettings() Settings {
	return Settings{Markdown: true, SRS: srs.DefaultTable()}
}

func (db *DB) seedSettings() error {
	encoded, err := json.Marshal(defaultSettings().SRS.Strings())
	if err != nil {
		return fmt.Errorf("failed to encode default srs table: %w", err)
	}
	_, err = db.conn.Exec(`
		INSERT OR IGNORE INTO settings (id, markdown, srs) VALUES (1, 1, ?)
	`, string(encoded))
	if err != nil {
		return fmt.Errorf("failed to seed settings: %w", err)
	}
	return nil
}

// Settings loads the singleton settings row.
func (db *DB) Settings() (Settings, error) {
	var markdown bool
	var encoded string
	err := db.conn.QueryRow(`SELECT markdown, srs FROM settings WHERE id = 1`).
		Scan(&markdown, &encoded)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}

	var entries []string
	if err := json.Unmarshal([]byte(encoded), &entries); err != nil {
		return Settings{}, fmt.Errorf("failed to decode srs table: %w", err)
	}
	table, err := srs.ParseTable(entries)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to parse srs table: %w", err)
	}
	return Settings{Markdown: markdown, SRS: table}, nil
}

// SaveSettings persists the singleton settings row.
func (db *DB) SaveSettings(s Settings) error {
	encoded, err := json.Marshal(s.SRS.Strings())
	if err != nil {
		return fmt.Errorf("failed to encode srs table: %w", err)
	}
	_, err = db.conn.Exec(`
		UPDATE settings SET markdown = ?, srs = ? WHERE id = 1
	`, s.Markdown, string(encoded))
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
