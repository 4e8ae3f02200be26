// Package migration applies versioned SQL migrations from an embedded
// filesystem to a sqlite database through golang-migrate.
//
// Migration files follow VERSION_name.up.sql / VERSION_name.down.sql.
package migration

import (
	"database/sql"
	stderrors "errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Up applies all pending migrations. migrate.ErrNoChange is suppressed.
func Up(db *sql.DB, fsys fs.FS, path string) error {
	m, err := newMigrator(db, fsys, path)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !stderrors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Down rolls back all applied migrations.
func Down(db *sql.DB, fsys fs.FS, path string) error {
	m, err := newMigrator(db, fsys, path)
	if err != nil {
		return err
	}
	if err := m.Down(); err != nil && !stderrors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

// Version returns the current migration version and dirty flag. A database
// with no applied migrations reports version 0.
func Version(db *sql.DB, fsys fs.FS, path string) (uint, bool, error) {
	m, err := newMigrator(db, fsys, path)
	if err != nil {
		return 0, false, err
	}
	v, dirty, err := m.Version()
	if stderrors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// newMigrator builds a migrator over db. Callers must not call m.Close():
// the sqlite3 driver would close the shared *sql.DB.
func newMigrator(db *sql.DB, fsys fs.FS, path string) (*migrate.Migrate, error) {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return nil, fmt.Errorf("create sqlite3 driver: %w", err)
	}
	source, err := iofs.New(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("create iofs source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, nil
}
