// Package storage provides temporary file storage on local disk and optional
// upload of finished renders to an R2/S3-compatible object store.
package storage

import (
	"context"
	"io"
)

// Storage combines local temp-file handling with object-store upload.
// Renders are written to the temp directory first; Upload pushes the final
// artifact to the configured bucket and returns its public URL.
type Storage interface {
	// SaveTemp saves data to a temporary file and returns the file path.
	// The name parameter is used as a hint for the filename.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// LoadTemp reads a temporary file and returns a reader.
	// The caller is responsible for closing the returned ReadCloser.
	LoadTemp(ctx context.Context, path string) (io.ReadCloser, error)

	// CleanupTemp removes the specified temporary files.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// Upload pushes a local file to the object store under key and returns
	// the public URL. Returns ErrUploadNotConfigured when no bucket is set up.
	Upload(ctx context.Context, key, path string) (url string, err error)

	// UploadEnabled reports whether Upload can succeed.
	UploadEnabled() bool
}
