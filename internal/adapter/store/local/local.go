// Package local serves TEC map and navigation files from a directory.
package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	log "github.com/sirupsen/logrus"

	"go.ngs.io/iono-api/internal/adapter/store"
	"go.ngs.io/iono-api/internal/domain"
)

// LocalStore reads files from a directory, decompressing .gz and .zst
// files, and keeps their content in memory. Files missing on disk are
// retrieved through the optional fetcher and written to the directory.
type LocalStore struct {
	dir     string
	fetcher store.Fetcher

	cache map[string][]byte // Decompressed content by name.
	mu    sync.RWMutex      // Protect cache.
}

// NewLocalStore creates a store rooted at dir. fetcher may be nil.
func NewLocalStore(dir string, fetcher store.Fetcher) *LocalStore {
	return &LocalStore{
		dir:     dir,
		fetcher: fetcher,
		cache:   make(map[string][]byte),
	}
}

// Open returns a reader over the decompressed content of name.
func (s *LocalStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return io.NopCloser(bytes.NewReader(data)), nil
	}

	data, err := s.load(ctx, name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[name] = data
	s.mu.Unlock()

	return io.NopCloser(bytes.NewReader(data)), nil
}

var _ store.Evicter = (*LocalStore)(nil)

// Evict drops name from the in-memory cache. The next Open rereads the file.
func (s *LocalStore) Evict(name string) {
	s.mu.Lock()
	delete(s.cache, name)
	s.mu.Unlock()
}

// List returns the regular files in the store directory, sorted by name.
func (s *LocalStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", s.dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *LocalStore) load(ctx context.Context, name string) ([]byte, error) {
	path := filepath.Join(s.dir, name)

	//nolint:gosec // G304: name is validated to a bare file name.
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist) && s.fetcher != nil:
		log.WithField("file", name).Info("file not found locally, fetching")
		raw, err = s.fetcher.Fetch(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", name, err)
		}
		if err := s.persist(path, raw); err != nil {
			// The fetched content is still usable.
			log.WithError(err).WithField("file", name).Warn("failed to write fetched file")
		}
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: file %s", domain.ErrDataNotFound, name)
	default:
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}

	return decompress(name, raw)
}

func (s *LocalStore) persist(path string, data []byte) error {
	//nolint:gosec // G301: Standard data directory permissions.
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	tmp := path + ".part"
	//nolint:gosec // G306: Data files are not secret.
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func decompress(name string, raw []byte) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz":
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrMalformedInput, name, err)
		}
		defer zr.Close()
		data, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrMalformedInput, name, err)
		}
		return data, nil
	case ".zst":
		zr, err := zstd.NewReader(bytes.NewReader(raw), zstd.WithDecoderConcurrency(0))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrMalformedInput, name, err)
		}
		defer zr.Close()
		data, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrMalformedInput, name, err)
		}
		return data, nil
	default:
		return raw, nil
	}
}

func validateName(name string) error {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return fmt.Errorf("%w: invalid file name %q", domain.ErrValidation, name)
	}
	return nil
}
