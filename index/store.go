package index

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/upprsk/tree-sitter-yal/lang"
)

var ErrNotFound = errors.New("not found")

const schemaVersion = 1

// FileRecord is an indexed file.
type FileRecord struct {
	Path         string
	LastModified int64
	HasError     bool
	Symbols      int
}

// Store keeps the declarations of a workspace in a sqlite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path. ":memory:" is accepted.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// An in-memory database lives as long as its connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
        PRAGMA foreign_keys = ON;
        PRAGMA journal_mode = WAL;
    `); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set PRAGMA: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}
	if version == schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	queries := []string{
		`CREATE TABLE IF NOT EXISTS files (
            path TEXT PRIMARY KEY,
            last_modified INTEGER NOT NULL,
            has_error INTEGER NOT NULL DEFAULT 0
        )`,
		`CREATE TABLE IF NOT EXISTS symbols (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            path TEXT NOT NULL,
            name TEXT NOT NULL,
            kind TEXT NOT NULL,
            container TEXT NOT NULL DEFAULT '',
            start_row INTEGER NOT NULL,
            start_col INTEGER NOT NULL,
            end_row INTEGER NOT NULL,
            end_col INTEGER NOT NULL,
            FOREIGN KEY (path) REFERENCES files(path) ON DELETE CASCADE
        )`,
		`CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name)`,
		`CREATE INDEX IF NOT EXISTS idx_symbols_path ON symbols(path)`,
	}
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query %q: %w", query, err)
		}
	}

	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}
	return tx.Commit()
}

// WithTx runs fn in a transaction, committing when fn succeeds.
func (s *Store) WithTx(fn func(*sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// ReplaceFile records path and replaces its symbols with syms.
func (s *Store) ReplaceFile(file FileRecord, syms []Symbol) error {
	return s.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
            INSERT INTO files (path, last_modified, has_error)
            VALUES (?, ?, ?)
            ON CONFLICT(path) DO UPDATE SET
                last_modified = excluded.last_modified,
                has_error = excluded.has_error
        `, file.Path, file.LastModified, file.HasError); err != nil {
			return fmt.Errorf("failed to upsert file: %w", err)
		}
		if _, err := tx.Exec("DELETE FROM symbols WHERE path = ?", file.Path); err != nil {
			return fmt.Errorf("failed to delete symbols: %w", err)
		}

		stmt, err := tx.Prepare(`
            INSERT INTO symbols (path, name, kind, container, start_row, start_col, end_row, end_col)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        `)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, sym := range Flatten(syms) {
			if _, err := stmt.Exec(file.Path, sym.Name, string(sym.Kind), sym.Container,
				sym.NameStart.Row, sym.NameStart.Column, sym.NameEnd.Row, sym.NameEnd.Column); err != nil {
				return fmt.Errorf("failed to insert symbol %s: %w", sym.Name, err)
			}
		}
		return nil
	})
}

// RemoveFile forgets path and its symbols.
func (s *Store) RemoveFile(path string) error {
	result, err := s.db.Exec("DELETE FROM files WHERE path = ?", path)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// File returns the record of path.
func (s *Store) File(path string) (*FileRecord, error) {
	var rec FileRecord
	err := s.db.QueryRow(`
        SELECT f.path, f.last_modified, f.has_error, COUNT(s.id)
        FROM files f LEFT JOIN symbols s ON s.path = f.path
        WHERE f.path = ?
        GROUP BY f.path
    `, path).Scan(&rec.Path, &rec.LastModified, &rec.HasError, &rec.Symbols)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query file: %w", err)
	}
	return &rec, nil
}

// Files lists every indexed file ordered by path.
func (s *Store) Files() ([]FileRecord, error) {
	rows, err := s.db.Query(`
        SELECT f.path, f.last_modified, f.has_error, COUNT(s.id)
        FROM files f LEFT JOIN symbols s ON s.path = f.path
        GROUP BY f.path
        ORDER BY f.path
    `)
	if err != nil {
		return nil, fmt.Errorf("failed to query files: %w", err)
	}
	defer rows.Close()

	var records []FileRecord
	for rows.Next() {
		var rec FileRecord
		if err := rows.Scan(&rec.Path, &rec.LastModified, &rec.HasError, &rec.Symbols); err != nil {
			return nil, fmt.Errorf("failed to scan file record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating file records: %w", err)
	}
	return records, nil
}

// Search returns the symbols whose name contains query, case-insensitively.
// An empty query matches everything.
func (s *Store) Search(query string, limit int) ([]Symbol, error) {
	if limit <= 0 {
		limit = -1
	}
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	rows, err := s.db.Query(`
        SELECT name, kind, container, path, start_row, start_col, end_row, end_col
        FROM symbols
        WHERE lower(name) LIKE ? ESCAPE '\'
        ORDER BY length(name), name, path, start_row
        LIMIT ?
    `, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search symbols: %w", err)
	}
	defer rows.Close()

	var out []Symbol
	for rows.Next() {
		var sym Symbol
		var kind string
		var start, end lang.Point
		if err := rows.Scan(&sym.Name, &kind, &sym.Container, &sym.Path,
			&start.Row, &start.Column, &end.Row, &end.Column); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		sym.Kind = Kind(kind)
		sym.NameStart, sym.NameEnd = start, end
		sym.Start, sym.End = start, end
		out = append(out, sym)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating symbols: %w", err)
	}
	return out, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
