package main

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
)

func runMigrate(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	source := migrationsPath
	if source == "" {
		source = "file://resources/migrations/" + cfg.SQLDriver
	}

	dbURL, err := migrationDatabaseURL(cfg.SQLDriver, cfg.SQLDSN)
	if err != nil {
		return err
	}

	migrator, err := migrate.New(source, dbURL)
	if err != nil {
		return fmt.Errorf("unable to create migrator: %w", err)
	}
	defer migrator.Close()

	direction := "up"
	if len(args) > 0 {
		direction = args[0]
	}

	switch direction {
	case "up":
		err = migrator.Up()
	case "down":
		err = migrator.Down()
	default:
		return fmt.Errorf("unknown migration direction %q", direction)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		log.Print("info: schema already up to date")
		return nil
	}
	if err != nil {
		return err
	}

	version, dirty, err := migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return err
	}
	log.Printf("info: migrated %s, schema version %d (dirty: %t)", direction, version, dirty)

	return nil
}

// migrationDatabaseURL turns our driver and DSN into the URL golang-migrate
// expects, Postgres DSNs must already be URLs.
func migrationDatabaseURL(driver, dsn string) (string, error) {
	switch driver {
	case "sqlite3":
		return "sqlite3://" + dsn, nil
	case "postgres":
		if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
			return "", errors.New("migrations need a postgres:// URL as SQLDSN")
		}
		return dsn, nil
	default:
		return "", fmt.Errorf("unknown SQL driver %q", driver)
	}
}
