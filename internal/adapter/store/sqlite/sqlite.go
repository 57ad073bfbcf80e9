// Package sqlite persists computed delay reports in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Registers the "sqlite" driver.

	"go.ngs.io/iono-api/internal/adapter/store"
	"go.ngs.io/iono-api/internal/domain"
)

// Store implements store.ReportStore on SQLite.
type Store struct {
	db *sql.DB
}

// New wraps an open database. Call Migrate before use.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens the database at path and applies migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// Writes are serialized by SQLite; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := New(db)
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores the report and its points, replacing any report with the
// same key. An empty report ID is assigned a new UUID.
func (s *Store) Save(ctx context.Context, report *domain.DelayReport) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	key := store.KeyOf(report)
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM delay_points WHERE report_id IN (
			SELECT id FROM delay_reports
			WHERE ionex_file = ? AND nav_file = ? AND lat = ? AND lon = ? AND elevation_deg = ? AND azimuth_deg = ?
		)
	`, keyArgs(key)...); err != nil {
		return fmt.Errorf("delete old points: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM delay_reports
		WHERE ionex_file = ? AND nav_file = ? AND lat = ? AND lon = ? AND elevation_deg = ? AND azimuth_deg = ?
	`, keyArgs(key)...); err != nil {
		return fmt.Errorf("delete old report: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO delay_reports (id, ionex_file, nav_file, lat, lon, elevation_deg, azimuth_deg, north, south, west, east, exponent, skipped, computed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, report.ID, report.IonexFile, report.NavFile,
		report.Target.Lat, report.Target.Lon, report.Target.ElevationDeg, report.Target.AzimuthDeg,
		report.Box.North, report.Box.South, report.Box.West, report.Box.East,
		report.Exponent, report.Skipped, report.ComputedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("insert report: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO delay_points (report_id, epoch, tecu, grid_delay_m, klobuchar_delay_m)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare points: %w", err)
	}
	defer stmt.Close()

	for _, rec := range report.Records {
		var klobuchar sql.NullFloat64
		if rec.HasKlobuchar {
			klobuchar = sql.NullFloat64{Float64: rec.KlobucharDelayM, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, report.ID, rec.Epoch.String(), rec.TECU, rec.GridDelayM, klobuchar); err != nil {
			return fmt.Errorf("insert point %s: %w", rec.Epoch, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// Find returns the stored report for key, or nil if there is none.
func (s *Store) Find(ctx context.Context, key store.ReportKey) (*domain.DelayReport, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, north, south, west, east, exponent, skipped, computed_at
		FROM delay_reports
		WHERE ionex_file = ? AND nav_file = ? AND lat = ? AND lon = ? AND elevation_deg = ? AND azimuth_deg = ?
	`, keyArgs(key)...)

	report := &domain.DelayReport{
		IonexFile: key.IonexFile,
		NavFile:   key.NavFile,
		Target:    key.Target,
	}
	var computedAt string
	err := row.Scan(&report.ID, &report.Box.North, &report.Box.South, &report.Box.West, &report.Box.East,
		&report.Exponent, &report.Skipped, &computedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find report: %w", err)
	}
	if report.ComputedAt, err = time.Parse(time.RFC3339Nano, computedAt); err != nil {
		return nil, fmt.Errorf("parse computed_at %q: %w", computedAt, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT epoch, tecu, grid_delay_m, klobuchar_delay_m
		FROM delay_points
		WHERE report_id = ?
		ORDER BY epoch
	`, report.ID)
	if err != nil {
		return nil, fmt.Errorf("find points: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			epoch     string
			rec       domain.DelayRecord
			klobuchar sql.NullFloat64
		)
		if err := rows.Scan(&epoch, &rec.TECU, &rec.GridDelayM, &klobuchar); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, epoch)
		if err != nil {
			return nil, fmt.Errorf("parse epoch %q: %w", epoch, err)
		}
		rec.Epoch = domain.EpochFromTime(t)
		rec.KlobucharDelayM = klobuchar.Float64
		rec.HasKlobuchar = klobuchar.Valid
		report.Records = append(report.Records, rec)
	}
	return report, rows.Err()
}

// ListReports returns the IDs and TEC map files of all stored reports,
// newest first.
func (s *Store) ListReports(ctx context.Context) ([]ReportSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.ionex_file, r.nav_file, r.lat, r.lon, r.computed_at, COUNT(p.epoch)
		FROM delay_reports r LEFT JOIN delay_points p ON p.report_id = r.id
		GROUP BY r.id
		ORDER BY r.computed_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReportSummary
	for rows.Next() {
		var rs ReportSummary
		if err := rows.Scan(&rs.ID, &rs.IonexFile, &rs.NavFile, &rs.Lat, &rs.Lon, &rs.ComputedAt, &rs.Points); err != nil {
			return nil, err
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}

// ReportSummary is a row of ListReports.
type ReportSummary struct {
	ID         string  `json:"id"`
	IonexFile  string  `json:"ionex_file"`
	NavFile    string  `json:"nav_file"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	ComputedAt string  `json:"computed_at"`
	Points     int     `json:"points"`
}

func keyArgs(k store.ReportKey) []any {
	return []any{k.IonexFile, k.NavFile, k.Target.Lat, k.Target.Lon, k.Target.ElevationDeg, k.Target.AzimuthDeg}
}
