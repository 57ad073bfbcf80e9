// Package store defines the storage interfaces used by the delay use case.
package store

import (
	"context"
	"io"

	"go.ngs.io/iono-api/internal/domain"
)

// SourceStore opens TEC map and navigation files by name.
type SourceStore interface {
	// Open returns a fresh reader over the decompressed file content.
	// Each call starts at the beginning of the file.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// List returns the names of the locally available files.
	List() ([]string, error)
}

// Evicter is implemented by source stores that cache file content.
type Evicter interface {
	Evict(name string)
}

// Fetcher retrieves a file that is not available locally.
type Fetcher interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
}

// ReportKey identifies a delay computation.
type ReportKey struct {
	IonexFile string
	NavFile   string
	Target    domain.Target
}

// ReportStore persists computed delay reports.
type ReportStore interface {
	// Save stores the report, replacing any report with the same key.
	Save(ctx context.Context, report *domain.DelayReport) error

	// Find returns the stored report for key.
	// Returns nil if no report has been stored.
	Find(ctx context.Context, key ReportKey) (*domain.DelayReport, error)

	// Close releases any resources held by the store.
	Close() error
}

// KeyOf returns the key a report is stored under.
func KeyOf(r *domain.DelayReport) ReportKey {
	return ReportKey{IonexFile: r.IonexFile, NavFile: r.NavFile, Target: r.Target}
}
