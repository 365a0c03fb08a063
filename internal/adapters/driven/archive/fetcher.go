package archive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ArchiveFetcher = (*HTTPFetcher)(nil)

const defaultUserAgent = "sercha-ingest"

// HTTPFetcher downloads archives over HTTP(S) into temporary files.
// The body is streamed to disk and never held in memory.
type HTTPFetcher struct {
	client    *http.Client
	maxBytes  int64
	tempDir   string
	userAgent string
	logger    *slog.Logger
}

// FetcherConfig holds configuration for HTTPFetcher.
type FetcherConfig struct {
	HTTPClient *http.Client // Optional: defaults to a client with a 5 minute timeout
	MaxBytes   int64        // Maximum archive size (default: domain.DefaultMaxArchiveBytes)
	TempDir    string       // Directory for temporary archives (default: os.TempDir())
	UserAgent  string
	Logger     *slog.Logger
}

// NewHTTPFetcher creates a new HTTPFetcher.
func NewHTTPFetcher(cfg FetcherConfig) *HTTPFetcher {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = domain.DefaultMaxArchiveBytes
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &HTTPFetcher{
		client:    client,
		maxBytes:  maxBytes,
		tempDir:   cfg.TempDir,
		userAgent: userAgent,
		logger:    logger,
	}
}

// Fetch downloads url into a temporary file named after name.
func (f *HTTPFetcher) Fetch(ctx context.Context, url, name string) (driven.FetchedArchive, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &domain.FetchError{URL: url, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &domain.FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &domain.FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	if resp.ContentLength > f.maxBytes {
		return nil, &domain.FetchError{
			URL: url,
			Err: fmt.Errorf("archive of %d bytes exceeds limit of %d", resp.ContentLength, f.maxBytes),
		}
	}

	file, err := os.CreateTemp(f.tempDir, tempPattern(name))
	if err != nil {
		return nil, &domain.FetchError{URL: url, Err: fmt.Errorf("create temporary archive: %w", err)}
	}
	archive := &tempArchive{file: file}

	n, err := io.Copy(file, io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		archive.Close()
		return nil, &domain.FetchError{URL: url, Err: fmt.Errorf("download body: %w", err)}
	}
	if n > f.maxBytes {
		archive.Close()
		return nil, &domain.FetchError{
			URL: url,
			Err: fmt.Errorf("archive exceeds limit of %d bytes", f.maxBytes),
		}
	}
	archive.size = n

	f.logger.Debug("archive downloaded", "url", url, "bytes", n, "file", file.Name())
	return archive, nil
}

// tempPattern builds an os.CreateTemp pattern like "owner-repo-*.zip".
func tempPattern(name string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, name)
	if safe == "" {
		safe = "archive"
	}
	return safe + "-*.zip"
}

// tempArchive is a downloaded archive on local disk. Close removes the file.
type tempArchive struct {
	file *os.File
	size int64

	once     sync.Once
	closeErr error
}

func (a *tempArchive) ReadAt(p []byte, off int64) (int, error) {
	return a.file.ReadAt(p, off)
}

func (a *tempArchive) Size() int64 {
	return a.size
}

// Name returns the path of the temporary file.
func (a *tempArchive) Name() string {
	return a.file.Name()
}

func (a *tempArchive) Close() error {
	a.once.Do(func() {
		closeErr := a.file.Close()
		removeErr := os.Remove(a.file.Name())
		if closeErr != nil {
			a.closeErr = closeErr
		} else if removeErr != nil && !os.IsNotExist(removeErr) {
			a.closeErr = removeErr
		}
	})
	return a.closeErr
}
