// Package fetch retrieves TEC maps and navigation files from an FTP archive.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jlaffaye/ftp"
	log "github.com/sirupsen/logrus"

	"go.ngs.io/iono-api/internal/domain"
	"go.ngs.io/iono-api/internal/metrics"
)

// Config describes one FTP archive.
type Config struct {
	Host         string        // host:port
	User         string        // Defaults to anonymous.
	Password     string        // Defaults to anonymous.
	PathTemplate string        // See ResolvePath.
	Timeout      time.Duration // Per connection; defaults to 30s.
	MaxElapsed   time.Duration // Retry budget; defaults to 2m.
}

// FTPFetcher downloads files from an FTP archive, retrying transient
// failures with exponential backoff.
type FTPFetcher struct {
	cfg  Config
	dial func(ctx context.Context, addr string, timeout time.Duration) (conn, error)
}

// conn is the subset of *ftp.ServerConn used by the fetcher.
type conn interface {
	Login(user, password string) error
	Retr(path string) (*ftp.Response, error)
	Quit() error
}

// NewFTPFetcher creates a fetcher for cfg.
func NewFTPFetcher(cfg Config) *FTPFetcher {
	if cfg.User == "" {
		cfg.User = "anonymous"
	}
	if cfg.Password == "" {
		cfg.Password = "anonymous"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxElapsed == 0 {
		cfg.MaxElapsed = 2 * time.Minute
	}
	return &FTPFetcher{cfg: cfg, dial: dialFTP}
}

func dialFTP(ctx context.Context, addr string, timeout time.Duration) (conn, error) {
	return ftp.Dial(addr, ftp.DialWithTimeout(timeout), ftp.DialWithContext(ctx))
}

// Fetch downloads name. A file missing on the server is reported as
// domain.ErrDataNotFound without retrying.
func (f *FTPFetcher) Fetch(ctx context.Context, name string) ([]byte, error) {
	path, err := ResolvePath(f.cfg.PathTemplate, name)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var body []byte
	operation := func() error {
		b, err := f.retrieve(ctx, path)
		if err != nil {
			if isFileUnavailable(err) {
				return backoff.Permanent(fmt.Errorf("%w: %s on %s", domain.ErrDataNotFound, path, f.cfg.Host))
			}
			log.WithError(err).WithField("path", path).Warn("ftp retrieval failed, retrying")
			return err
		}
		body = b
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = f.cfg.MaxElapsed
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		metrics.FetchTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.FetchTotal.WithLabelValues("ok").Inc()
	metrics.FetchLatency.Observe(time.Since(start).Seconds())
	log.WithFields(log.Fields{"path": path, "bytes": len(body)}).Info("ftp retrieval complete")
	return body, nil
}

func (f *FTPFetcher) retrieve(ctx context.Context, path string) ([]byte, error) {
	c, err := f.dial(ctx, f.cfg.Host, f.cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("ftp dial: %w", err)
	}
	defer func() { _ = c.Quit() }()

	if err := c.Login(f.cfg.User, f.cfg.Password); err != nil {
		return nil, fmt.Errorf("ftp login: %w", err)
	}

	resp, err := c.Retr(path)
	if err != nil {
		return nil, fmt.Errorf("ftp retr: %w", err)
	}
	defer resp.Close()

	body, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func isFileUnavailable(err error) bool {
	var tpErr *textproto.Error
	return errors.As(err, &tpErr) && tpErr.Code == ftp.StatusFileUnavailable
}
