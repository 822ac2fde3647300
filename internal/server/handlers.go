package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/nocodecult/composer-api/internal/collage"
	"github.com/nocodecult/composer-api/internal/download"
	"github.com/nocodecult/composer-api/internal/layout"
	"github.com/nocodecult/composer-api/internal/media"
	"github.com/nocodecult/composer-api/internal/merge"
	"github.com/nocodecult/composer-api/internal/overlay"
	"github.com/nocodecult/composer-api/internal/storage"
	"github.com/nocodecult/composer-api/internal/style"
	"github.com/nocodecult/composer-api/internal/template"
	"github.com/nocodecult/composer-api/internal/unique"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Default titles match the original template captions.
const (
	defaultOutfitTitle     = "Choose your outfit:"
	defaultOutfitSubtitle  = "shop in bio"
	defaultSingleSubtitle  = "(shop in bio)"
	defaultPOVTitle        = "POV: me and the boys after doing something that is in the title"
	defaultPOVSubtitle     = "(clothes in bio)"
	defaultCollageDuration = 6.0
	defaultFitpicQuality   = 95
	healthCheckTimeout     = 5 * time.Second
)

// Services bundles everything the handlers call into.
type Services struct {
	Collage    *collage.Service
	Merge      *merge.Service
	Overlay    *overlay.Service
	Unique     *unique.Service
	Templates  *template.Store
	Downloader *download.Downloader
	Storage    storage.Storage
	Processor  media.Processor
	Fonts      style.Fonts
	TempDir    string
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	svcs          Services
	renderTimeout time.Duration
	mergeTimeout  time.Duration
	validator     *validator.Validate
	logger        *slog.Logger
}

// NewHandlers creates a new Handlers instance. renderTimeout bounds single
// renders; mergeTimeout bounds the multi-clip pipeline.
func NewHandlers(svcs Services, renderTimeout, mergeTimeout time.Duration, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		svcs:          svcs,
		renderTimeout: renderTimeout,
		mergeTimeout:  mergeTimeout,
		validator:     validator.New(),
		logger:        logger,
	}
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	ffmpegOK := h.svcs.Processor.Available(ctx)
	fontsOK := fileExists(h.svcs.Fonts.Medium) && fileExists(h.svcs.Fonts.SemiBold)

	var dbOK *bool
	if h.svcs.Templates != nil {
		v := h.svcs.Templates.Healthy(ctx)
		dbOK = &v
	}

	status := "healthy"
	if !ffmpegOK || !fontsOK {
		status = "unhealthy"
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:            status,
		FFmpegAvailable:   ffmpegOK,
		FontsAvailable:    fontsOK,
		DatabaseAvailable: dbOK,
		Version:           Version,
	})
}

// Outfit handles POST /outfit requests.
func (h *Handlers) Outfit(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req OutfitRequest
	if !h.decode(w, r, &req) {
		return
	}

	images := make(map[string]string, len(req.ImageURLs))
	for i, u := range req.ImageURLs {
		images[fmt.Sprintf("tile%d", i+1)] = u
	}

	filename := "outfit_" + uuid.NewString() + ".mp4"
	output := filepath.Join(h.svcs.TempDir, filename)

	ctx, cancel := context.WithTimeout(r.Context(), h.renderTimeout)
	defer cancel()

	_, err := h.svcs.Collage.Outfit(ctx, collage.VideoRequest{
		Images:           images,
		Title:            stringOr(req.MainTitle, defaultOutfitTitle),
		Subtitle:         stringOr(req.Subtitle, defaultOutfitSubtitle),
		TitleFontSize:    intOr(req.TitleFontSize, 0),
		SubtitleFontSize: intOr(req.SubtitleFontSize, 0),
		FadeIn:           req.FadeIn,
		Duration:         floatOr(req.Duration, defaultCollageDuration),
	}, output)
	if err != nil {
		h.fail(w, "outfit", err, output)
		return
	}

	h.succeed(w, r, "outfits", filename, output, "Outfit video created successfully", start, nil)
}

// OutfitSingle handles POST /outfit-single requests.
func (h *Handlers) OutfitSingle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req CollageRequest
	if !h.decode(w, r, &req) {
		return
	}

	filename := "outfit_single_" + uuid.NewString() + ".mp4"
	output := filepath.Join(h.svcs.TempDir, filename)

	ctx, cancel := context.WithTimeout(r.Context(), h.renderTimeout)
	defer cancel()

	_, err := h.svcs.Collage.OutfitSingle(ctx, collage.VideoRequest{
		Images:           req.Images,
		Title:            stringOr(req.MainTitle, defaultOutfitTitle),
		Subtitle:         stringOr(req.Subtitle, defaultSingleSubtitle),
		TitleFontSize:    intOr(req.TitleFontSize, 0),
		SubtitleFontSize: intOr(req.SubtitleFontSize, 0),
		FadeIn:           req.FadeIn,
		Duration:         floatOr(req.Duration, defaultCollageDuration),
	}, output)
	if err != nil {
		h.fail(w, "outfit-single", err, output)
		return
	}

	h.succeed(w, r, "outfit-single", filename, output, "Outfit-single video created successfully", start, nil)
}

// POV handles POST /pov requests.
func (h *Handlers) POV(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req CollageRequest
	if !h.decode(w, r, &req) {
		return
	}

	filename := "pov_" + uuid.NewString() + ".mp4"
	output := filepath.Join(h.svcs.TempDir, filename)

	ctx, cancel := context.WithTimeout(r.Context(), h.renderTimeout)
	defer cancel()

	_, err := h.svcs.Collage.POV(ctx, collage.VideoRequest{
		Images:           req.Images,
		Title:            stringOr(req.MainTitle, defaultPOVTitle),
		Subtitle:         stringOr(req.Subtitle, defaultPOVSubtitle),
		TitleFontSize:    intOr(req.TitleFontSize, 0),
		SubtitleFontSize: intOr(req.SubtitleFontSize, 0),
		FadeIn:           req.FadeIn,
		Duration:         floatOr(req.Duration, defaultCollageDuration),
	}, output)
	if err != nil {
		h.fail(w, "pov", err, output)
		return
	}

	h.succeed(w, r, "pov", filename, output, "POV video created successfully", start, nil)
}

// Fitpic handles POST /fitpic requests.
func (h *Handlers) Fitpic(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req FitpicRequest
	if !h.decode(w, r, &req) {
		return
	}

	filename := "fitpic_" + uuid.NewString() + ".jpg"
	output := filepath.Join(h.svcs.TempDir, filename)

	ctx, cancel := context.WithTimeout(r.Context(), h.renderTimeout)
	defer cancel()

	_, err := h.svcs.Collage.Fitpic(ctx, collage.FitpicRequest{
		Images:  req.Images,
		Quality: intOr(req.Quality, defaultFitpicQuality),
	}, output)
	if err != nil {
		h.fail(w, "fitpic", err, output)
		return
	}

	h.succeed(w, r, "fitpics", filename, output, "Fitpic image created successfully", start, nil)
}

// Merge handles POST /merge requests.
func (h *Handlers) Merge(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req MergeRequest
	if !h.decode(w, r, &req) {
		return
	}

	clips := make([]merge.Clip, len(req.Clips))
	for i, c := range req.Clips {
		clips[i] = merge.Clip{
			URL:      c.URL,
			Text:     c.Text,
			Template: c.Template,
			Override: c.Overrides,
		}
	}

	format := req.OutputFormat
	if format == "" {
		format = "mp4"
	}
	filename := "merged_" + uuid.NewString() + "." + format
	output := filepath.Join(h.svcs.TempDir, filename)

	ctx, cancel := context.WithTimeout(r.Context(), h.mergeTimeout)
	defer cancel()

	res, err := h.svcs.Merge.Process(ctx, merge.Request{
		Clips:             clips,
		FirstClipDuration: floatOr(req.FirstClipDuration, 0),
		FirstClipTrimMode: media.TrimMode(req.FirstClipTrimMode),
	}, output)
	if err != nil {
		h.fail(w, "merge", err, output)
		return
	}

	message := fmt.Sprintf("Successfully merged %d clips", res.ClipsProcessed)
	h.succeed(w, r, "merged", filename, output, message, start, func(resp *ProcessResponse) {
		resp.ClipsProcessed = res.ClipsProcessed
	})
}

// Overlay handles POST /overlay requests.
func (h *Handlers) Overlay(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req OverlayRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.renderTimeout)
	defer cancel()

	input, err := h.svcs.Downloader.Fetch(ctx, req.URL, "")
	if err != nil {
		h.fail(w, "overlay", err, "")
		return
	}
	defer download.Cleanup(input)

	ext := filepath.Ext(input)
	if req.OutputFormat != "" && req.OutputFormat != "same" {
		ext = "." + req.OutputFormat
	}
	filename := uuid.NewString() + ext
	output := filepath.Join(h.svcs.TempDir, filename)

	base, err := h.svcs.Templates.ResolveStyle(ctx, req.Template)
	if err != nil {
		h.fail(w, "overlay", err, output)
		return
	}

	_, err = h.svcs.Overlay.Apply(ctx, overlay.Request{
		InputPath:  input,
		OutputPath: output,
		Text:       req.Text,
		Style:      base,
		Override:   req.Overrides,
	})
	if err != nil {
		h.fail(w, "overlay", err, output)
		return
	}

	h.succeed(w, r, "overlays", filename, output, "Overlay applied successfully", start, nil)
}

// Unique handles POST /unique requests. The endpoint takes no parameters;
// every transform value is drawn server-side.
func (h *Handlers) Unique(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	filename := "unique_" + uuid.NewString() + ".mp4"
	output := filepath.Join(h.svcs.TempDir, filename)

	ctx, cancel := context.WithTimeout(r.Context(), h.renderTimeout)
	defer cancel()

	params, err := h.svcs.Unique.Create(ctx, output)
	if err != nil {
		h.fail(w, "unique", err, output)
		return
	}

	h.succeed(w, r, "unique", filename, output, "Unique video created successfully", start, func(resp *ProcessResponse) {
		resp.Parameters = &params
	})
}

// Templates handles GET /templates requests.
func (h *Handlers) Templates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.svcs.Templates.List(r.Context())
	if err != nil {
		h.fail(w, "templates", err, "")
		return
	}
	writeJSON(w, http.StatusOK, TemplateListResponse{
		Status:    "success",
		Templates: templates,
		Count:     len(templates),
	})
}

// TemplateByName handles GET /templates/{name} requests.
func (h *Handlers) TemplateByName(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	t, err := h.svcs.Templates.Get(r.Context(), name)
	if err != nil {
		h.fail(w, "templates", err, "")
		return
	}
	writeJSON(w, http.StatusOK, TemplateResponse{Status: "success", Template: t})
}

// File handles GET /files/{filename} requests, serving renders kept on local
// disk when no object store is configured.
func (h *Handlers) File(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")
	if name == "" || strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}

	rc, err := h.svcs.Storage.LoadTemp(r.Context(), filepath.Join(h.svcs.TempDir, name))
	if err != nil {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	defer func() { _ = rc.Close() }()

	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("file download interrupted",
			slog.String("file", name),
			slog.String("error", err.Error()))
	}
}

// decode parses and validates a JSON request body, writing the error
// response itself when the body is unusable.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Warn("failed to decode request body", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		h.logger.Warn("request validation failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// succeed uploads the finished render and writes the uniform success body.
// With no object store the file stays on disk and is served via /files.
func (h *Handlers) succeed(w http.ResponseWriter, r *http.Request, objectDir, filename, path, message string, start time.Time, mutate func(*ProcessResponse)) {
	resp := ProcessResponse{
		Status:         "success",
		Message:        message,
		Filename:       filename,
		ProcessingTime: time.Since(start).Seconds(),
	}

	if h.svcs.Storage.UploadEnabled() {
		// The render itself may have consumed most of the request deadline.
		ctx := context.WithoutCancel(r.Context())
		url, err := h.svcs.Storage.Upload(ctx, objectDir+"/"+filename, path)
		if err != nil {
			h.logger.Warn("upload failed, serving from local disk",
				slog.String("file", filename),
				slog.String("error", err.Error()))
			resp.DownloadURL = "/files/" + filename
		} else {
			resp.DownloadURL = url
			if err := h.svcs.Storage.CleanupTemp(ctx, []string{path}); err != nil {
				h.logger.Warn("failed to remove uploaded render", slog.String("error", err.Error()))
			}
		}
	} else {
		resp.DownloadURL = "/files/" + filename
	}

	if mutate != nil {
		mutate(&resp)
	}
	writeJSON(w, http.StatusOK, resp)
}

// fail maps a service error to an HTTP status, removes the partial output and
// writes the uniform error body.
func (h *Handlers) fail(w http.ResponseWriter, op string, err error, output string) {
	if output != "" {
		download.Cleanup(output)
	}

	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			slog.String("op", op),
			slog.String("error", err.Error()))
	} else {
		h.logger.Warn("request rejected",
			slog.String("op", op),
			slog.String("error", err.Error()))
	}
	writeError(w, status, err.Error())
}

// statusForError maps domain errors onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, template.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, template.ErrDatabaseUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, layout.ErrSlotMismatch),
		errors.Is(err, collage.ErrNotAnImage),
		errors.Is(err, overlay.ErrEmptyText),
		errors.Is(err, merge.ErrTooFewClips),
		errors.Is(err, merge.ErrTooManyClips),
		errors.Is(err, merge.ErrMissingURL),
		errors.Is(err, merge.ErrMissingText),
		errors.Is(err, merge.ErrTextTooLong),
		errors.Is(err, download.ErrEmptyURL),
		errors.Is(err, download.ErrTooLarge),
		errors.Is(err, download.ErrUnsupportedContent):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func stringOr(v *string, fallback string) string {
	if v == nil {
		return fallback
	}
	return *v
}

func intOr(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}

func floatOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{
		Status:  "error",
		Message: message,
	})
}
