package fixtures

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ryanmoran/testbed/lifecycle"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// SQLite creates file-backed SQLite databases in temporary directories.
type SQLite struct {
	lifecycle.Base
	ops  *lifecycle.Operations
	dirs tempDirs
}

// NewSQLite returns a SQLite fixture recording on m's operations.
func NewSQLite(m *lifecycle.Manager) *SQLite {
	return &SQLite{
		Base: lifecycle.Base{DisplayName: "sqlite"},
		ops:  m.Operations(),
		dirs: osTempDirs(),
	}
}

type database struct {
	db   *sql.DB
	dir  string
	dirs tempDirs
}

func (d database) remove() error {
	return errors.Join(d.db.Close(), d.dirs.remove(d.dir))
}

// Open creates the database name.db in a new temporary directory and runs
// schema against it when schema is not empty. Draining closes the database
// and deletes its directory.
func (s *SQLite) Open(ctx context.Context, name, schema string) (*sql.DB, error) {
	d, err := execute(s.ops, fmt.Sprintf("Create SQLite database %s", name), fmt.Sprintf("Delete SQLite database %s", name),
		func() (database, error) {
			d := database{dirs: s.dirs}
			dir, err := s.dirs.createWith("testbed-sqlite-", func(dir string) error {
				var err error
				d.db, err = openDatabase(ctx, filepath.Join(dir, name+".db"), schema)
				return err
			})
			if err != nil {
				return database{}, err
			}
			d.dir = dir
			return d, nil
		},
		database.remove,
	)
	if err != nil {
		return nil, err
	}
	return d.db, nil
}

func openDatabase(ctx context.Context, path, schema string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %q: %w", path, err)
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if schema != "" {
		if _, err := db.ExecContext(ctx, schema); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return db, nil
}
