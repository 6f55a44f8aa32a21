package database

import (
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"
)

// RunMigrations applies pending goose migrations from path against the
// master connection.
func RunMigrations(db *dbpg.DB, path string) error {
	if db == nil || db.Master == nil {
		return fmt.Errorf("no master database connection")
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.Up(db.Master, path); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	zlog.Logger.Info().Str("path", path).Msg("database migrations applied")
	return nil
}
