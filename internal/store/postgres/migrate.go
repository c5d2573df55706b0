package postgres

import (
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose"

	// registers the schema migrations
	_ "github.com/rzbill/xwork/internal/store/postgres/migrations"
)

// Migrate brings the schema up to date.
func (s *Store) Migrate() error {
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	// Migrations are compiled in; goose still wants a directory to scan for
	// SQL files, so it gets an empty one.
	dir, err := os.MkdirTemp("", "xwork-migrations")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()
	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
