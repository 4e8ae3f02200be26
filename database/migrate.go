package database

import (
	"embed"
	"fmt"

	"github.com/kbukum/voicememo/database/migration"
	"github.com/kbukum/voicememo/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies the embedded schema migrations.
func (d *DB) Migrate() error {
	sqlDB, err := d.GormDB.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	if err := migration.Up(sqlDB, migrationsFS, "migrations"); err != nil {
		return err
	}
	v, _, err := migration.Version(sqlDB, migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("read migration version: %w", err)
	}
	d.log.Info("Schema up to date", logger.Fields("version", v))
	return nil
}
