package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nocodecult/composer-api/internal/collage"
	"github.com/nocodecult/composer-api/internal/download"
	"github.com/nocodecult/composer-api/internal/media"
	"github.com/nocodecult/composer-api/internal/merge"
	"github.com/nocodecult/composer-api/internal/overlay"
	"github.com/nocodecult/composer-api/internal/storage"
	"github.com/nocodecult/composer-api/internal/style"
	"github.com/nocodecult/composer-api/internal/template"
	"github.com/nocodecult/composer-api/internal/unique"
)

// fakeProcessor stands in for ffmpeg, writing marker files for every stage.
type fakeProcessor struct {
	available bool
}

func (f *fakeProcessor) Probe(ctx context.Context, path string) (media.Info, error) {
	return media.Info{Width: 1080, Height: 1920, Duration: 8}, nil
}

func (f *fakeProcessor) Duration(ctx context.Context, path string) (float64, error) {
	return 8, nil
}

func (f *fakeProcessor) Trim(ctx context.Context, src, dst string, target float64, mode media.TrimMode) (media.TrimResult, error) {
	if target >= 8 {
		return media.TrimResult{Trimmed: false, Original: 8}, nil
	}
	return media.TrimResult{Trimmed: true, Original: 8}, os.WriteFile(dst, []byte("trimmed"), 0o600)
}

func (f *fakeProcessor) Scale(ctx context.Context, src, dst string, w, h int) (bool, error) {
	return true, os.WriteFile(dst, []byte("scaled"), 0o600)
}

func (f *fakeProcessor) Merge(ctx context.Context, srcs []string, dst string) error {
	return os.WriteFile(dst, []byte("merged"), 0o600)
}

func (f *fakeProcessor) AddAudioTrack(ctx context.Context, video, audio, dst string) error {
	return os.WriteFile(dst, []byte("video+audio"), 0o600)
}

func (f *fakeProcessor) Render(ctx context.Context, spec media.RenderSpec) error {
	return os.WriteFile(spec.Output, []byte("rendered"), 0o600)
}

func (f *fakeProcessor) Available(ctx context.Context) bool { return f.available }

var _ media.Processor = (*fakeProcessor)(nil)

// assetServer serves fake downloadable assets with content types by extension.
func assetServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, ".mp4"):
			w.Header().Set("Content-Type", "video/mp4")
		case strings.HasSuffix(r.URL.Path, ".png"):
			w.Header().Set("Content-Type", "image/png")
		default:
			w.Header().Set("Content-Type", "image/jpeg")
		}
		_, _ = w.Write([]byte("asset"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

type fixture struct {
	router  http.Handler
	proc    *fakeProcessor
	assets  *httptest.Server
	tempDir string
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	assets := assetServer(t)
	proc := &fakeProcessor{available: true}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tempDir := t.TempDir()
	local, err := storage.NewLocalStorage(tempDir)
	require.NoError(t, err)

	fontDir := t.TempDir()
	fonts := style.Fonts{
		Medium:   filepath.Join(fontDir, "Medium.ttf"),
		SemiBold: filepath.Join(fontDir, "SemiBold.ttf"),
	}
	require.NoError(t, os.WriteFile(fonts.Medium, []byte("font"), 0o600))
	require.NoError(t, os.WriteFile(fonts.SemiBold, []byte("font"), 0o600))

	dl := download.New(t.TempDir())
	store := template.NewStore("", fonts, logger)

	ov := overlay.NewService(proc, fonts, tempDir, logger)
	svcs := Services{
		Collage:    collage.NewService(proc, dl, fonts, nil, tempDir, logger),
		Merge:      merge.NewService(proc, dl, ov, store, tempDir, 10, logger),
		Overlay:    ov,
		Unique:     unique.NewService(proc, dl, nil, logger).WithAssets([]string{assets.URL + "/CLIP-1.mp4"}, assets.URL+"/logo.png"),
		Templates:  store,
		Downloader: dl,
		Storage:    local,
		Processor:  proc,
		Fonts:      fonts,
		TempDir:    tempDir,
	}

	h := NewHandlers(svcs, 30*time.Second, 30*time.Second, logger)
	return fixture{
		router:  NewRouter(h, logger, DefaultConfig()),
		proc:    proc,
		assets:  assets,
		tempDir: tempDir,
	}
}

func (f fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeProcess(t *testing.T, rec *httptest.ResponseRecorder) ProcessResponse {
	t.Helper()
	var resp ProcessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func (f fixture) imageURLs(n int) []string {
	urls := make([]string, n)
	for i := range urls {
		urls[i] = f.assets.URL + "/img.jpg"
	}
	return urls
}

func (f fixture) slotImages(keys ...string) map[string]string {
	m := make(map[string]string, len(keys))
	for _, k := range keys {
		m[k] = f.assets.URL + "/" + k + ".jpg"
	}
	return m
}

func TestHealth(t *testing.T) {
	t.Run("healthy when ffmpeg and fonts are present", func(t *testing.T) {
		f := newFixture(t)

		rec := f.do(t, http.MethodGet, "/health", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "healthy", resp.Status)
		assert.True(t, resp.FFmpegAvailable)
		assert.True(t, resp.FontsAvailable)
		require.NotNil(t, resp.DatabaseAvailable)
		assert.False(t, *resp.DatabaseAvailable)
		assert.Equal(t, Version, resp.Version)
	})

	t.Run("unhealthy without ffmpeg", func(t *testing.T) {
		f := newFixture(t)
		f.proc.available = false

		rec := f.do(t, http.MethodGet, "/health", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "unhealthy", resp.Status)
	})
}

func TestOutfitEndpoint(t *testing.T) {
	t.Run("renders and serves from local disk", func(t *testing.T) {
		f := newFixture(t)

		rec := f.do(t, http.MethodPost, "/outfit", map[string]any{
			"image_urls": f.imageURLs(9),
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		resp := decodeProcess(t, rec)
		assert.Equal(t, "success", resp.Status)
		assert.True(t, strings.HasPrefix(resp.Filename, "outfit_"))
		assert.True(t, strings.HasSuffix(resp.Filename, ".mp4"))
		assert.Equal(t, "/files/"+resp.Filename, resp.DownloadURL)
		assert.GreaterOrEqual(t, resp.ProcessingTime, 0.0)

		// local mode keeps the render for /files to serve
		_, err := os.Stat(filepath.Join(f.tempDir, resp.Filename))
		assert.NoError(t, err)
	})

	t.Run("rejects wrong image count", func(t *testing.T) {
		f := newFixture(t)

		rec := f.do(t, http.MethodPost, "/outfit", map[string]any{
			"image_urls": f.imageURLs(8),
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "error", decodeError(t, rec).Status)
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		f := newFixture(t)

		req := httptest.NewRequest(http.MethodPost, "/outfit", strings.NewReader("{nope"))
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid JSON body", decodeError(t, rec).Message)
	})

	t.Run("rejects out-of-range fade", func(t *testing.T) {
		f := newFixture(t)

		rec := f.do(t, http.MethodPost, "/outfit", map[string]any{
			"image_urls": f.imageURLs(9),
			"fade_in":    9.0,
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestOutfitSingleEndpoint(t *testing.T) {
	t.Run("renders the six-slot collage", func(t *testing.T) {
		f := newFixture(t)

		rec := f.do(t, http.MethodPost, "/outfit-single", map[string]any{
			"images": f.slotImages("hat", "hoodie", "extra", "meme", "pants", "shoes"),
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		resp := decodeProcess(t, rec)
		assert.True(t, strings.HasPrefix(resp.Filename, "outfit_single_"))
	})

	t.Run("reports missing slots", func(t *testing.T) {
		f := newFixture(t)

		rec := f.do(t, http.MethodPost, "/outfit-single", map[string]any{
			"images": f.slotImages("hat", "hoodie"),
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeError(t, rec).Message, "missing image slots")
	})
}

func TestPOVEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/pov", map[string]any{
		"images": f.slotImages("cap", "flag", "landscape", "shirt", "watch", "pants", "shoes", "car"),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeProcess(t, rec)
	assert.True(t, strings.HasPrefix(resp.Filename, "pov_"))
	assert.Equal(t, "POV video created successfully", resp.Message)
}

func TestFitpicEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/fitpic", map[string]any{
		"images": f.slotImages("npc_logo", "brand_logo", "hoodie", "pants", "hat", "meme", "shoes"),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeProcess(t, rec)
	assert.True(t, strings.HasPrefix(resp.Filename, "fitpic_"))
	assert.True(t, strings.HasSuffix(resp.Filename, ".jpg"))
}

func TestMergeEndpoint(t *testing.T) {
	t.Run("merges two clips", func(t *testing.T) {
		f := newFixture(t)

		rec := f.do(t, http.MethodPost, "/merge", map[string]any{
			"clips": []map[string]any{
				{"url": f.assets.URL + "/a.mp4", "text": "first"},
				{"url": f.assets.URL + "/b.mp4", "text": "second"},
			},
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		resp := decodeProcess(t, rec)
		assert.Equal(t, 2, resp.ClipsProcessed)
		assert.True(t, strings.HasPrefix(resp.Filename, "merged_"))
		assert.True(t, strings.HasSuffix(resp.Filename, ".mp4"))
	})

	t.Run("rejects a single clip", func(t *testing.T) {
		f := newFixture(t)

		rec := f.do(t, http.MethodPost, "/merge", map[string]any{
			"clips": []map[string]any{
				{"url": f.assets.URL + "/a.mp4", "text": "only"},
			},
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("honors output format", func(t *testing.T) {
		f := newFixture(t)

		rec := f.do(t, http.MethodPost, "/merge", map[string]any{
			"clips": []map[string]any{
				{"url": f.assets.URL + "/a.mp4", "text": "first"},
				{"url": f.assets.URL + "/b.mp4", "text": "second"},
			},
			"output_format": "mov",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.True(t, strings.HasSuffix(decodeProcess(t, rec).Filename, ".mov"))
	})
}

func TestOverlayEndpoint(t *testing.T) {
	t.Run("applies text to a downloaded image", func(t *testing.T) {
		f := newFixture(t)

		rec := f.do(t, http.MethodPost, "/overlay", map[string]any{
			"url":  f.assets.URL + "/photo.jpg",
			"text": "hello there",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		resp := decodeProcess(t, rec)
		assert.Equal(t, "Overlay applied successfully", resp.Message)
		assert.True(t, strings.HasSuffix(resp.Filename, ".jpg"))
	})

	t.Run("output format overrides the extension", func(t *testing.T) {
		f := newFixture(t)

		rec := f.do(t, http.MethodPost, "/overlay", map[string]any{
			"url":           f.assets.URL + "/photo.jpg",
			"text":          "hello",
			"output_format": "png",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.True(t, strings.HasSuffix(decodeProcess(t, rec).Filename, ".png"))
	})

	t.Run("rejects missing text", func(t *testing.T) {
		f := newFixture(t)

		rec := f.do(t, http.MethodPost, "/overlay", map[string]any{
			"url": f.assets.URL + "/photo.jpg",
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestUniqueEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/unique", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeProcess(t, rec)
	assert.True(t, strings.HasPrefix(resp.Filename, "unique_"))
	require.NotNil(t, resp.Parameters)
	assert.Equal(t, "CLIP-1.mp4", resp.Parameters.SourceClip)
	assert.Greater(t, resp.Parameters.FadeIn, 0.0)
}

func TestTemplateEndpoints(t *testing.T) {
	t.Run("list without database is unavailable", func(t *testing.T) {
		f := newFixture(t)

		rec := f.do(t, http.MethodGet, "/templates", nil)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "error", decodeError(t, rec).Status)
	})

	t.Run("get without database is unavailable", func(t *testing.T) {
		f := newFixture(t)

		rec := f.do(t, http.MethodGet, "/templates/default", nil)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestFileEndpoint(t *testing.T) {
	t.Run("serves a stored render", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, os.WriteFile(filepath.Join(f.tempDir, "done.mp4"), []byte("the video"), 0o600))

		rec := f.do(t, http.MethodGet, "/files/done.mp4", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "the video", rec.Body.String())
		assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	})

	t.Run("unknown file is a 404", func(t *testing.T) {
		f := newFixture(t)

		rec := f.do(t, http.MethodGet, "/files/nothing.mp4", nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("rejects traversal attempts", func(t *testing.T) {
		f := newFixture(t)

		rec := f.do(t, http.MethodGet, "/files/bad..name", nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
