// Package collage renders multi-image compositions: animated outfit, pov and
// single-outfit videos plus the static fitpic image.
package collage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/nocodecult/composer-api/internal/download"
	"github.com/nocodecult/composer-api/internal/filtergraph"
	"github.com/nocodecult/composer-api/internal/layout"
	"github.com/nocodecult/composer-api/internal/media"
	"github.com/nocodecult/composer-api/internal/style"
	"github.com/nocodecult/composer-api/internal/template"
	"github.com/nocodecult/composer-api/internal/textutil"
)

// ErrNotAnImage is returned when a downloaded slot file is not a still image.
var ErrNotAnImage = errors.New("collage inputs must be still images")

// Duration and fade bounds shared by all animated collages.
const (
	MinDuration = 5.0
	MaxDuration = 7.0
	MinFadeIn   = 2.5
	MaxFadeIn   = 3.0

	durationJitter = 0.75
	gammaRampUntil = 0.9
	earlyGamma     = 0.75
	subtitleDelay  = 2.5

	labelFontSize = 80
)

// textGeometry positions the title and subtitle for one collage kind. The
// base Y coordinates shift when the title wraps onto extra lines.
type textGeometry struct {
	titleSize     int
	subtitleSize  int
	titleBaseY    float64
	subtitleBaseY float64
	titleUp       float64
	subtitleDown  float64
	titleWrapPx   int
	subtitleWrapPx int

	borderWidth int
	shadowX     int
	shadowY     int

	titleShadowColor    string
	subtitleColor       string
	subtitleShadowColor string
	subtitleDelayed     bool
}

var outfitGeometry = textGeometry{
	titleSize: 74, subtitleSize: 40,
	titleBaseY: 170, subtitleBaseY: 285,
	titleUp: 0.65, subtitleDown: 0.05,
	titleWrapPx: 1080 - 160, subtitleWrapPx: 1080 - 160,
	borderWidth: 6, shadowX: 3, shadowY: 3,
	titleShadowColor:    "black@0.6",
	subtitleColor:       "white",
	subtitleShadowColor: "black@0.6",
	subtitleDelayed:     true,
}

var povGeometry = textGeometry{
	titleSize: 66, subtitleSize: 38,
	titleBaseY: 120, subtitleBaseY: 370,
	titleUp: 0.55, subtitleDown: 0.1,
	titleWrapPx: 1080 - 160, subtitleWrapPx: 1080 - 420,
	titleShadowColor:    "black@0.0",
	subtitleColor:       "black",
	subtitleShadowColor: "white@0.0",
}

var outfitSingleGeometry = textGeometry{
	titleSize: 64, subtitleSize: 38,
	titleBaseY: 95, subtitleBaseY: 215,
	titleUp: 0.55, subtitleDown: 0.1,
	titleWrapPx: 1080 - 160, subtitleWrapPx: 1080 - 160,
	titleShadowColor:    "black@0.0",
	subtitleColor:       "white",
	subtitleShadowColor: "black@0.0",
	subtitleDelayed:     true,
}

// SoundSource supplies a random audio track.
type SoundSource interface {
	RandomSound(ctx context.Context) (template.Sound, error)
}

// VideoRequest carries the shared fields of the animated collage endpoints.
type VideoRequest struct {
	// Images maps slot names to URLs; outfit callers use tile1..tile9.
	Images   map[string]string
	Title    string
	Subtitle string
	// TitleFontSize and SubtitleFontSize override the per-kind defaults
	// when positive.
	TitleFontSize    int
	SubtitleFontSize int
	// FadeIn nil draws a random fade within bounds.
	FadeIn   *float64
	Duration float64
}

// FitpicRequest describes the static collage image.
type FitpicRequest struct {
	Images  map[string]string
	Quality int
}

// Result reports the rendered collage parameters.
type Result struct {
	OutputPath    string
	Duration      float64
	FadeIn        float64
	TitleLines    int
	SubtitleLines int
	// Sound is the audio track name when one was attached.
	Sound string
}

// Service renders collage compositions.
type Service struct {
	proc    media.Processor
	dl      *download.Downloader
	fonts   style.Fonts
	sounds  SoundSource
	tempDir string
	logger  *slog.Logger
}

// NewService creates a collage Service. sounds may be nil, which disables
// audio on single-outfit renders.
func NewService(proc media.Processor, dl *download.Downloader, fonts style.Fonts, sounds SoundSource, tempDir string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{proc: proc, dl: dl, fonts: fonts, sounds: sounds, tempDir: tempDir, logger: logger}
}

// Outfit renders the 3x3 labeled grid video.
func (s *Service) Outfit(ctx context.Context, req VideoRequest, output string) (Result, error) {
	return s.renderVideo(ctx, layout.Outfit, outfitGeometry, req, output, renderOpts{labels: true, scaleTitle: true})
}

// POV renders the eight-slot scene video.
func (s *Service) POV(ctx context.Context, req VideoRequest, output string) (Result, error) {
	return s.renderVideo(ctx, layout.POV, povGeometry, req, output, renderOpts{})
}

// OutfitSingle renders the six-slot video and attaches a random sound.
func (s *Service) OutfitSingle(ctx context.Context, req VideoRequest, output string) (Result, error) {
	res, err := s.renderVideo(ctx, layout.OutfitSingle, outfitSingleGeometry, req, output, renderOpts{})
	if err != nil {
		return Result{}, err
	}
	res.Sound = s.attachRandomSound(ctx, output)
	return res, nil
}

type renderOpts struct {
	// labels draws the A-F/1-3 captions above the grid tiles.
	labels bool
	// scaleTitle applies the 0.92 shrink the grid layout needs to keep long
	// titles off the tiles.
	scaleTitle bool
}

func (s *Service) renderVideo(ctx context.Context, l layout.Layout, geom textGeometry, req VideoRequest, output string, opts renderOpts) (Result, error) {
	if err := l.ValidateKeys(req.Images); err != nil {
		return Result{}, err
	}

	paths, err := s.downloadImages(ctx, req.Images)
	if err != nil {
		return Result{}, err
	}
	defer cleanupValues(paths)

	titleSize := geom.titleSize
	if req.TitleFontSize > 0 {
		titleSize = req.TitleFontSize
	}
	if opts.scaleTitle {
		titleSize = int(float64(titleSize)*0.92 + 0.5)
	}
	subtitleSize := geom.subtitleSize
	if req.SubtitleFontSize > 0 {
		subtitleSize = req.SubtitleFontSize
	}

	title, titleLines := textutil.Wrap(textutil.Sanitize(req.Title), titleSize, float64(geom.titleWrapPx))
	subtitle, subtitleLines := textutil.Wrap(textutil.Sanitize(req.Subtitle), subtitleSize, float64(geom.subtitleWrapPx))

	extraLines := titleLines - 1
	if extraLines < 0 {
		extraLines = 0
	}
	titleY := geom.titleBaseY - float64(extraLines)*float64(titleSize)*geom.titleUp
	subtitleY := geom.subtitleBaseY + float64(extraLines)*float64(titleSize)*geom.subtitleDown

	titleFile, err := writeTextFile(s.tempDir, title)
	if err != nil {
		return Result{}, err
	}
	defer os.Remove(titleFile)
	subtitleFile, err := writeTextFile(s.tempDir, subtitle)
	if err != nil {
		return Result{}, err
	}
	defer os.Remove(subtitleFile)

	fadeIn := resolveFadeIn(req.FadeIn)
	duration := jitterDuration(req.Duration)

	g := filtergraph.New()
	last, err := l.Compose(g, true)
	if err != nil {
		return Result{}, err
	}

	// The body fades in and is briefly dimmed; header text stays readable
	// from the first frame.
	if err := g.Add(filtergraph.FadeIn(fadeIn), "faded_body", last); err != nil {
		return Result{}, err
	}
	if err := g.Add(filtergraph.GammaRamp(earlyGamma, gammaRampUntil), "leveled_body", "faded_body"); err != nil {
		return Result{}, err
	}
	prev := "leveled_body"

	titleDraw := filtergraph.DrawTextOpts{
		FontFile:    s.fonts.SemiBold,
		TextFile:    titleFile,
		FontSize:    titleSize,
		FontColor:   "white",
		BorderColor: "black",
		BorderWidth: geom.borderWidth,
		ShadowColor: geom.titleShadowColor,
		ShadowX:     geom.shadowX,
		ShadowY:     geom.shadowY,
		X:           "(w-text_w)/2",
		Y:           fnum(titleY),
	}
	if err := g.Add(filtergraph.DrawText(titleDraw), "txt_main", prev); err != nil {
		return Result{}, err
	}
	prev = "txt_main"

	subtitleDraw := filtergraph.DrawTextOpts{
		FontFile:    s.fonts.SemiBold,
		TextFile:    subtitleFile,
		FontSize:    subtitleSize,
		FontColor:   geom.subtitleColor,
		BorderColor: "black",
		BorderWidth: geom.borderWidth,
		ShadowColor: geom.subtitleShadowColor,
		ShadowX:     geom.shadowX,
		ShadowY:     geom.shadowY,
		X:           "(w-text_w)/2",
		Y:           fnum(subtitleY),
	}
	if geom.subtitleDelayed {
		subtitleDraw.Enable = filtergraph.EnableAfter(subtitleDelay)
	}
	if err := g.Add(filtergraph.DrawText(subtitleDraw), "txt_sub", prev); err != nil {
		return Result{}, err
	}
	prev = "txt_sub"

	if opts.labels {
		for i, lb := range layout.OutfitLabels() {
			next := fmt.Sprintf("label%d", i)
			draw := filtergraph.DrawTextOpts{
				FontFile:    s.fonts.SemiBold,
				Text:        lb.Text,
				FontSize:    labelFontSize,
				FontColor:   "white",
				BorderColor: "black",
				BorderWidth: geom.borderWidth,
				ShadowColor: "black@0.6",
				ShadowX:     geom.shadowX,
				ShadowY:     geom.shadowY,
				X:           fmt.Sprintf("%d-text_w/2", lb.X),
				Y:           strconv.Itoa(lb.Y),
			}
			if err := g.Add(filtergraph.DrawText(draw), next, prev); err != nil {
				return Result{}, err
			}
			prev = next
		}
	}

	if err := g.Add(filtergraph.FormatYUV420P, "video_out", prev); err != nil {
		return Result{}, err
	}

	inputs := []media.Input{{
		Path:     fmt.Sprintf("color=c=white:s=%dx%d:r=30:d=%s", l.CanvasWidth, l.CanvasHeight, fnum(duration)),
		Lavfi:    true,
		Duration: duration,
	}}
	for _, name := range l.SlotNames() {
		inputs = append(inputs, media.Input{Path: paths[name], Loop: true, Duration: duration})
	}

	outputArgs := append(append([]string{}, media.H264Encode...), media.AppleMetadata(time.Now())...)
	outputArgs = append(outputArgs, "-an")

	spec := media.RenderSpec{
		Inputs:        inputs,
		FilterComplex: g.String(),
		Maps:          []string{"[video_out]"},
		Duration:      duration,
		OutputArgs:    outputArgs,
		Output:        output,
	}

	start := time.Now()
	if err := s.proc.Render(ctx, spec); err != nil {
		return Result{}, fmt.Errorf("render %s collage: %w", l.Name, err)
	}
	s.logger.Info("collage rendered",
		slog.String("kind", l.Name),
		slog.String("output", output),
		slog.Float64("duration", duration),
		slog.Float64("fade_in", fadeIn),
		slog.Duration("took", time.Since(start)))

	return Result{
		OutputPath:    output,
		Duration:      duration,
		FadeIn:        fadeIn,
		TitleLines:    titleLines,
		SubtitleLines: subtitleLines,
	}, nil
}

// Fitpic renders the static 4:5 JPEG collage.
func (s *Service) Fitpic(ctx context.Context, req FitpicRequest, output string) (Result, error) {
	l := layout.Fitpic
	if err := l.ValidateKeys(req.Images); err != nil {
		return Result{}, err
	}

	paths, err := s.downloadImages(ctx, req.Images)
	if err != nil {
		return Result{}, err
	}
	defer cleanupValues(paths)

	g := filtergraph.New()
	last, err := l.Compose(g, false)
	if err != nil {
		return Result{}, err
	}

	inputs := []media.Input{{
		Path:  fmt.Sprintf("color=c=white:s=%dx%d", l.CanvasWidth, l.CanvasHeight),
		Lavfi: true,
	}}
	for _, name := range l.SlotNames() {
		inputs = append(inputs, media.Input{Path: paths[name]})
	}

	quality := req.Quality
	if quality <= 0 {
		quality = 95
	}

	spec := media.RenderSpec{
		Inputs:        inputs,
		FilterComplex: g.String(),
		Maps:          []string{"[" + last + "]"},
		OutputArgs:    media.JPEGArgs(quality),
		Output:        output,
	}

	if err := s.proc.Render(ctx, spec); err != nil {
		return Result{}, fmt.Errorf("render fitpic: %w", err)
	}
	s.logger.Info("fitpic rendered", slog.String("output", output), slog.Int("quality", quality))
	return Result{OutputPath: output}, nil
}

// downloadImages fetches every slot URL and rejects non-image files.
func (s *Service) downloadImages(ctx context.Context, urls map[string]string) (map[string]string, error) {
	paths, err := s.dl.DownloadAll(ctx, urls, "jpg")
	if err != nil {
		return nil, err
	}
	for name, p := range paths {
		if !media.IsImage(p) {
			cleanupValues(paths)
			return nil, fmt.Errorf("%w: slot %s", ErrNotAnImage, name)
		}
	}
	return paths, nil
}

// attachRandomSound muxes a random sound onto the rendered video. Any failure
// leaves the silent video in place and returns an empty name.
func (s *Service) attachRandomSound(ctx context.Context, videoPath string) string {
	if s.sounds == nil {
		return ""
	}
	snd, err := s.sounds.RandomSound(ctx)
	if err != nil {
		s.logger.Warn("no sound available", slog.String("error", err.Error()))
		return ""
	}

	soundPath, err := s.dl.Fetch(ctx, snd.URL, "mp3")
	if err != nil {
		s.logger.Warn("sound download failed",
			slog.String("sound", snd.Name),
			slog.String("error", err.Error()))
		return ""
	}
	defer download.Cleanup(soundPath)

	silent := videoPath + ".noaudio.mp4"
	if err := os.Rename(videoPath, silent); err != nil {
		s.logger.Warn("failed to stage silent video", slog.String("error", err.Error()))
		return ""
	}

	if err := s.proc.AddAudioTrack(ctx, silent, soundPath, videoPath); err != nil {
		s.logger.Warn("audio mux failed, keeping silent video",
			slog.String("sound", snd.Name),
			slog.String("error", err.Error()))
		if renameErr := os.Rename(silent, videoPath); renameErr != nil {
			s.logger.Error("failed to restore silent video", slog.String("error", renameErr.Error()))
		}
		return ""
	}

	download.Cleanup(silent)
	s.logger.Info("audio track attached", slog.String("sound", snd.Name))
	return snd.Name
}

// resolveFadeIn clamps a requested fade or draws a random one within bounds.
func resolveFadeIn(requested *float64) float64 {
	if requested == nil {
		return MinFadeIn + rand.Float64()*(MaxFadeIn-MinFadeIn)
	}
	f := *requested
	if f < MinFadeIn {
		f = MinFadeIn
	}
	if f > MaxFadeIn {
		f = MaxFadeIn
	}
	return f
}

// jitterDuration randomizes the duration slightly while staying in bounds.
func jitterDuration(requested float64) float64 {
	d := requested + (rand.Float64()*2-1)*durationJitter
	if d < MinDuration {
		d = MinDuration
	}
	if d > MaxDuration {
		d = MaxDuration
	}
	return d
}

func fnum(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func writeTextFile(dir, text string) (string, error) {
	f, err := os.CreateTemp(dir, "collage_*.txt")
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

func cleanupValues(paths map[string]string) {
	for _, p := range paths {
		download.Cleanup(p)
	}
}
