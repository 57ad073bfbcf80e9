package sqlite

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Initial schema",
		SQL: `
CREATE TABLE IF NOT EXISTS delay_reports (
    id TEXT PRIMARY KEY,
    ionex_file TEXT NOT NULL,
    nav_file TEXT NOT NULL,
    lat REAL NOT NULL,
    lon REAL NOT NULL,
    elevation_deg REAL NOT NULL,
    azimuth_deg REAL NOT NULL,
    north REAL NOT NULL,
    south REAL NOT NULL,
    west REAL NOT NULL,
    east REAL NOT NULL,
    exponent INTEGER NOT NULL,
    skipped INTEGER NOT NULL,
    computed_at TEXT NOT NULL,
    UNIQUE(ionex_file, nav_file, lat, lon, elevation_deg, azimuth_deg)
);

CREATE TABLE IF NOT EXISTS delay_points (
    report_id TEXT NOT NULL REFERENCES delay_reports(id) ON DELETE CASCADE,
    epoch TEXT NOT NULL,
    tecu REAL NOT NULL,
    grid_delay_m REAL NOT NULL,
    klobuchar_delay_m REAL,
    PRIMARY KEY (report_id, epoch)
);
`,
	},
	{
		Version:     2,
		Description: "Index reports by TEC map file",
		SQL: `
CREATE INDEX IF NOT EXISTS idx_delay_reports_ionex ON delay_reports(ionex_file);
`,
	},
}

// Migrate applies all pending schema migrations.
func (s *Store) Migrate() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		log.WithField("version", m.Version).Infof("migrations: applying %s", m.Description)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("execute migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Description, time.Now().UTC().Format(time.RFC3339),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

func (s *Store) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at TEXT
		)
	`)
	return err
}

func (s *Store) getAppliedMigrations() (map[int]bool, error) {
	rows, err := s.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}
