package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var migrationName = regexp.MustCompile(`^(\d+)_(.+)\.(up|down)\.sql$`)

// migration is one numbered schema step with its forward and reverse SQL
type migration struct {
	version int
	name    string
	upSQL   string
	downSQL string
}

// RunMigrations applies every embedded migration newer than the recorded
// schema version, each in its own transaction.
func RunMigrations(db *sql.DB) error {
	current, dirty, err := CurrentVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database is in a dirty migration state (version %d), manual intervention required", current)
	}

	migrations, err := loadMigrations(migrationsFS)
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if m.upSQL == "" {
			return fmt.Errorf("migration %d (%s) has no up script", m.version, m.name)
		}
		err := inTx(db, func(tx *sql.Tx) error {
			if _, err := tx.Exec(m.upSQL); err != nil {
				return fmt.Errorf("failed to execute migration %d (%s): %w", m.version, m.name, err)
			}
			_, err := tx.Exec(`INSERT OR REPLACE INTO schema_migrations (version, dirty) VALUES (?, 0)`, m.version)
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// RollbackMigrations reverts the newest count migrations (at least one) and
// returns the resulting schema version.
func RollbackMigrations(db *sql.DB, count int) (int, error) {
	if count <= 0 {
		count = 1
	}

	current, dirty, err := CurrentVersion(db)
	if err != nil {
		return 0, fmt.Errorf("failed to get migration version: %w", err)
	}
	if dirty {
		return 0, fmt.Errorf("database is in a dirty migration state (version %d), manual intervention required", current)
	}
	if current == 0 {
		return 0, fmt.Errorf("no migrations to rollback")
	}

	migrations, err := loadMigrations(migrationsFS)
	if err != nil {
		return current, fmt.Errorf("failed to load migrations: %w", err)
	}

	rolledBack := 0
	for i := len(migrations) - 1; i >= 0 && rolledBack < count; i-- {
		m := migrations[i]
		if m.version > current || m.downSQL == "" {
			continue
		}
		err := inTx(db, func(tx *sql.Tx) error {
			if _, err := tx.Exec(m.downSQL); err != nil {
				return fmt.Errorf("failed to execute rollback %d (%s): %w", m.version, m.name, err)
			}
			_, err := tx.Exec(`DELETE FROM schema_migrations WHERE version = ?`, m.version)
			return err
		})
		if err != nil {
			return current, err
		}
		current = m.version - 1
		rolledBack++
	}
	if rolledBack == 0 {
		return current, fmt.Errorf("no migrations found to rollback")
	}
	return current, nil
}

// CurrentVersion returns the newest applied migration, creating the
// bookkeeping table on first use.
func CurrentVersion(db *sql.DB) (version int, dirty bool, err error) {
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER NOT NULL PRIMARY KEY,
			dirty BOOLEAN NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return 0, false, fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	var v sql.NullInt64
	var d sql.NullBool
	err = db.QueryRow(`SELECT version, dirty FROM schema_migrations ORDER BY version DESC LIMIT 1`).Scan(&v, &d)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to query migration version: %w", err)
	}
	return int(v.Int64), d.Valid && d.Bool, nil
}

func loadMigrations(fsys fs.FS) ([]migration, error) {
	files, err := fs.Glob(fsys, "migrations/*.sql")
	if err != nil {
		return nil, err
	}

	byVersion := make(map[int]*migration)
	for _, file := range files {
		m := migrationName.FindStringSubmatch(path.Base(file))
		if m == nil {
			continue
		}
		version, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("invalid migration version in %s: %w", file, err)
		}
		body, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", file, err)
		}

		entry, ok := byVersion[version]
		if !ok {
			entry = &migration{version: version, name: m[2]}
			byVersion[version] = entry
		}
		if m[3] == "up" {
			entry.upSQL = string(body)
		} else {
			entry.downSQL = string(body)
		}
	}

	migrations := make([]migration, 0, len(byVersion))
	for _, m := range byVersion {
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].version < migrations[j].version })
	return migrations, nil
}

func inTx(db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
