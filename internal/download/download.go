// Package download fetches remote media files to local temp storage with
// size and content-type enforcement.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Static errors for download validation failures.
var (
	ErrEmptyURL           = errors.New("download URL is empty")
	ErrTooLarge           = errors.New("remote file exceeds the size limit")
	ErrUnsupportedContent = errors.New("unsupported content type")
)

// allowedContentTypes lists the media types the pipelines accept. Servers
// that answer application/octet-stream are given the benefit of the doubt.
var allowedContentTypes = map[string]bool{
	"image/jpeg":               true,
	"image/jpg":                true,
	"image/png":                true,
	"video/mp4":                true,
	"video/quicktime":          true,
	"video/x-msvideo":          true,
	"audio/mpeg":               true,
	"application/octet-stream": true,
}

// Downloader fetches URLs into a temp directory.
type Downloader struct {
	httpClient  *http.Client
	tempDir     string
	maxBytes    int64
	concurrency int
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Downloader) {
		d.httpClient = c
	}
}

// WithMaxBytes caps the size of a single downloaded file.
func WithMaxBytes(n int64) Option {
	return func(d *Downloader) {
		d.maxBytes = n
	}
}

// WithConcurrency limits how many files DownloadAll fetches in parallel.
func WithConcurrency(n int) Option {
	return func(d *Downloader) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// New creates a Downloader writing into tempDir.
func New(tempDir string, opts ...Option) *Downloader {
	d := &Downloader{
		httpClient:  &http.Client{Timeout: 5 * time.Minute},
		tempDir:     tempDir,
		maxBytes:    100 * 1024 * 1024,
		concurrency: 5,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Fetch downloads url into the temp directory and returns the local path.
// The extension is derived from the URL path, falling back to ext when the
// URL has none.
func (d *Downloader) Fetch(ctx context.Context, url, ext string) (string, error) {
	if url == "" {
		return "", ErrEmptyURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create download request: %w", err)
	}
	// Some CDNs refuse requests without a browser-looking identity.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "*/*")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		base, _, err := mime.ParseMediaType(ct)
		if err == nil && !allowedContentTypes[base] {
			return "", fmt.Errorf("%w: %s", ErrUnsupportedContent, base)
		}
	}

	if resp.ContentLength > d.maxBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrTooLarge, resp.ContentLength)
	}

	dest := filepath.Join(d.tempDir, uuid.NewString()+extensionFor(url, ext))
	out, err := os.Create(dest) // #nosec G304 - path is built from a fresh UUID
	if err != nil {
		return "", fmt.Errorf("create download file: %w", err)
	}

	// Content-Length can lie or be absent, so the cap is enforced while
	// copying as well. LimitReader with one extra byte detects overrun.
	n, err := io.Copy(out, io.LimitReader(resp.Body, d.maxBytes+1))
	if cerr := out.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dest)
		return "", fmt.Errorf("write download file: %w", err)
	}
	if n > d.maxBytes {
		_ = os.Remove(dest)
		return "", fmt.Errorf("%w: more than %d bytes", ErrTooLarge, d.maxBytes)
	}

	return dest, nil
}

// DownloadAll fetches every URL in the map concurrently, returning local
// paths keyed by the same names. On any failure the already downloaded
// files are removed.
func (d *Downloader) DownloadAll(ctx context.Context, urls map[string]string, ext string) (map[string]string, error) {
	paths := make(map[string]string, len(urls))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	results := make(chan [2]string, len(urls))
	for name, url := range urls {
		g.Go(func() error {
			path, err := d.Fetch(ctx, url, ext)
			if err != nil {
				return fmt.Errorf("download %s: %w", name, err)
			}
			results <- [2]string{name, path}
			return nil
		})
	}

	err := g.Wait()
	close(results)
	for r := range results {
		paths[r[0]] = r[1]
	}

	if err != nil {
		for _, p := range paths {
			_ = os.Remove(p)
		}
		return nil, err
	}
	return paths, nil
}

// Cleanup removes the given files, ignoring ones already gone.
func Cleanup(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			continue
		}
	}
}

func extensionFor(url, fallback string) string {
	trimmed := url
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}
	if ext := filepath.Ext(trimmed); ext != "" && len(ext) <= 5 {
		return strings.ToLower(ext)
	}
	if fallback != "" && !strings.HasPrefix(fallback, ".") {
		return "." + fallback
	}
	return fallback
}
