// Package overlay renders styled text onto images and videos.
package overlay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nocodecult/composer-api/internal/filtergraph"
	"github.com/nocodecult/composer-api/internal/media"
	"github.com/nocodecult/composer-api/internal/style"
	"github.com/nocodecult/composer-api/internal/textutil"
)

// ErrEmptyText is returned when the overlay text is empty after sanitizing.
var ErrEmptyText = errors.New("overlay text is empty")

// defaultFadeOutDuration hides the text for the final seconds of a clip.
const defaultFadeOutDuration = 2.5

// Request describes one text overlay render.
type Request struct {
	InputPath  string
	OutputPath string
	Text       string
	// Style is the resolved base style; Override is applied on top.
	Style    style.Style
	Override *style.Override
	// FadeOut hides the text during the last FadeOutDuration seconds. Only
	// meaningful for video inputs with a known duration.
	FadeOut         bool
	FadeOutDuration float64
}

// Result reports what was rendered.
type Result struct {
	OutputPath string
	IsImage    bool
	FontSize   int
	Lines      int
}

// Service renders text overlays through ffmpeg.
type Service struct {
	proc    media.Processor
	fonts   style.Fonts
	tempDir string
	logger  *slog.Logger
}

// NewService creates an overlay Service.
func NewService(proc media.Processor, fonts style.Fonts, tempDir string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{proc: proc, fonts: fonts, tempDir: tempDir, logger: logger}
}

// Apply sanitizes, wraps and draws the text over the input, writing the
// result to req.OutputPath.
func (s *Service) Apply(ctx context.Context, req Request) (Result, error) {
	text := textutil.Sanitize(req.Text)
	if text == "" {
		return Result{}, ErrEmptyText
	}

	applied := style.Apply(req.Style, req.Override, s.fonts)

	info, err := s.proc.Probe(ctx, req.InputPath)
	if err != nil {
		return Result{}, fmt.Errorf("probe input: %w", err)
	}

	// Template font sizes are authored for a 1080px-wide canvas.
	fontSize := textutil.ScaleFontSize(applied.FontSize, info.Width)

	lines := 1
	if applied.MaxTextWidthPercent > 0 && info.Width > 0 {
		maxWidth := float64(info.Width) * float64(applied.MaxTextWidthPercent) / 100.0
		text, lines = textutil.Wrap(text, fontSize, maxWidth)
	}

	// textfile= sidesteps drawtext's multiline quoting bugs.
	textFile, err := writeTextFile(s.tempDir, text)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if rmErr := os.Remove(textFile); rmErr != nil {
			s.logger.Warn("failed to remove text file", slog.String("path", textFile))
		}
	}()

	x, y := style.PositionExpr(applied, req.Override)
	opts := filtergraph.DrawTextOpts{
		FontFile:    applied.FontPath,
		TextFile:    textFile,
		FontSize:    fontSize,
		FontColor:   "white",
		BorderColor: "black",
		BorderWidth: applied.BorderWidth,
		ShadowColor: "black@0.6",
		ShadowX:     applied.ShadowX,
		ShadowY:     applied.ShadowY,
		X:           x,
		Y:           y,
	}

	isImage := media.IsImage(req.InputPath)
	if req.FadeOut && !isImage && info.Duration > 0 {
		fade := req.FadeOutDuration
		if fade <= 0 {
			fade = defaultFadeOutDuration
		}
		if cutoff := info.Duration - fade; cutoff > 0 {
			opts.Alpha = filtergraph.AlphaCutoff(cutoff)
		}
	}

	g := filtergraph.New()
	if err := g.Add(filtergraph.DrawText(opts), "vout", "0:v"); err != nil {
		return Result{}, err
	}

	spec := media.RenderSpec{
		Inputs:        []media.Input{{Path: req.InputPath}},
		FilterComplex: g.String(),
		Maps:          []string{"[vout]"},
		Output:        req.OutputPath,
	}
	if isImage {
		spec.OutputArgs = []string{"-q:v", "2", "-frames:v", "1"}
	} else {
		spec.Maps = append(spec.Maps, "0:a?")
		spec.OutputArgs = append(append([]string{}, media.H264Encode...),
			"-c:a", "aac", "-b:a", "192k", "-movflags", "+faststart")
	}

	start := time.Now()
	if err := s.proc.Render(ctx, spec); err != nil {
		return Result{}, fmt.Errorf("render overlay: %w", err)
	}
	s.logger.Info("text overlay rendered",
		slog.String("output", req.OutputPath),
		slog.Bool("image", isImage),
		slog.Int("font_size", fontSize),
		slog.Int("lines", lines),
		slog.Duration("took", time.Since(start)))

	return Result{
		OutputPath: req.OutputPath,
		IsImage:    isImage,
		FontSize:   fontSize,
		Lines:      lines,
	}, nil
}

// writeTextFile writes wrapped text to a temp file for textfile=.
func writeTextFile(dir, text string) (string, error) {
	f, err := os.CreateTemp(dir, "overlay_*.txt")
	if err != nil {
		return "", fmt.Errorf("create text file: %w", err)
	}
	name := f.Name()
	if _, err := f.WriteString(text); err != nil {
		_ = f.Close()
		_ = os.Remove(name)
		return "", fmt.Errorf("write text file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("close text file: %w", err)
	}
	return name, nil
}
