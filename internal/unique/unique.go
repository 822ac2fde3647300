// Package unique renders videos that look identical to a source clip but
// hash differently every time: randomized fade-in from partial black, a
// subtle stretch, a slight slowdown and a wandering low-opacity watermark.
package unique

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nocodecult/composer-api/internal/download"
	"github.com/nocodecult/composer-api/internal/filtergraph"
	"github.com/nocodecult/composer-api/internal/media"
	"github.com/nocodecult/composer-api/internal/template"
)

// Canvas and randomization bounds.
const (
	CanvasWidth  = 1080
	CanvasHeight = 1920

	MinFadeIn          = 0.20
	MaxFadeIn          = 1.25
	MinBlackOpacity    = 0.69
	MaxBlackOpacity    = 0.88
	MinStretchPercent  = 0.3
	MaxStretchPercent  = 12.0
	MinSlowdownPercent = 0.0
	MaxSlowdownPercent = 20.0

	LogoWidth    = 333
	LogoOpacity  = 0.22
	LogoMargin   = 75
	moveInterval = 2.0
)

// DefaultClipURLs is the stock source clip pool.
var DefaultClipURLs = []string{
	"https://storage.nocodecult.io/stein/clips/STEIN-4433.mp4",
	"https://storage.nocodecult.io/stein/clips/STEIN-5367.mp4",
	"https://storage.nocodecult.io/stein/clips/STEIN-6767.mp4",
	"https://storage.nocodecult.io/stein/clips/STEIN-7233.mp4",
	"https://storage.nocodecult.io/stein/clips/STEIN-7333.mp4",
	"https://storage.nocodecult.io/stein/clips/STEIN-7600.mp4",
	"https://storage.nocodecult.io/stein/clips/STEIN-7767.mp4",
}

// DefaultLogoURL is the stock watermark.
const DefaultLogoURL = "https://storage.nocodecult.io/stein/logo/insidelabel_white.png"

// Params reports every randomized value of one render, for auditability.
type Params struct {
	SourceClip      string  `json:"source_clip"`
	FadeIn          float64 `json:"fade_in"`
	BlackOpacity    float64 `json:"black_opacity"`
	StretchAxis     string  `json:"stretch_axis"`
	StretchPercent  float64 `json:"stretch_percent"`
	StretchPixels   int     `json:"stretch_pixels"`
	SlowdownPercent float64 `json:"slowdown_percent"`
	LogoPositions   int     `json:"logo_positions"`
	Sound           string  `json:"sound,omitempty"`
}

// SoundSource supplies a random audio track.
type SoundSource interface {
	RandomSound(ctx context.Context) (template.Sound, error)
}

// Service renders uniqueness transforms.
type Service struct {
	proc     media.Processor
	dl       *download.Downloader
	sounds   SoundSource
	clipURLs []string
	logoURL  string
	logger   *slog.Logger
}

// NewService creates a Service over the default clip pool and logo.
func NewService(proc media.Processor, dl *download.Downloader, sounds SoundSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		proc:     proc,
		dl:       dl,
		sounds:   sounds,
		clipURLs: DefaultClipURLs,
		logoURL:  DefaultLogoURL,
		logger:   logger,
	}
}

// WithAssets overrides the clip pool and logo URL. Used for tests and for
// pointing the service at a different asset bucket.
func (s *Service) WithAssets(clipURLs []string, logoURL string) *Service {
	if len(clipURLs) > 0 {
		s.clipURLs = clipURLs
	}
	if logoURL != "" {
		s.logoURL = logoURL
	}
	return s
}

// Create renders one unique video to output and returns the drawn parameters.
func (s *Service) Create(ctx context.Context, output string) (Params, error) {
	clipURL := s.clipURLs[rand.Intn(len(s.clipURLs))]
	clipName := clipURL[strings.LastIndex(clipURL, "/")+1:]

	clipPath, err := s.dl.Fetch(ctx, clipURL, "mp4")
	if err != nil {
		return Params{}, fmt.Errorf("download source clip: %w", err)
	}
	defer download.Cleanup(clipPath)

	logoPath, err := s.dl.Fetch(ctx, s.logoURL, "png")
	if err != nil {
		return Params{}, fmt.Errorf("download logo: %w", err)
	}
	defer download.Cleanup(logoPath)

	duration, err := s.proc.Duration(ctx, clipPath)
	if err != nil {
		return Params{}, fmt.Errorf("probe clip duration: %w", err)
	}

	p := drawParams(clipName, duration)
	positions := randomPositions(p.LogoPositions)

	g := filtergraph.New()
	ptsMult := 1.0 / (1.0 - p.SlowdownPercent/100.0)
	scaleW, scaleH := CanvasWidth, CanvasHeight
	if p.StretchAxis == "horizontal" {
		scaleW += p.StretchPixels
	} else {
		scaleH += p.StretchPixels
	}
	if err := g.Add(filtergraph.StretchResample(scaleW, scaleH, CanvasWidth, CanvasHeight, ptsMult), "scaled", "0:v"); err != nil {
		return Params{}, err
	}
	if err := g.Add(filtergraph.BlackFadeSource(CanvasWidth, CanvasHeight, p.BlackOpacity, p.FadeIn), "black"); err != nil {
		return Params{}, err
	}
	if err := g.Add("overlay=shortest=1", "faded", "scaled", "black"); err != nil {
		return Params{}, err
	}
	if err := g.Add(filtergraph.WatermarkPrep(LogoWidth, LogoOpacity), "logo", "1:v"); err != nil {
		return Params{}, err
	}

	xs := make([]string, len(positions))
	ys := make([]string, len(positions))
	for i, pos := range positions {
		xs[i] = strconv.Itoa(pos[0])
		ys[i] = strconv.Itoa(pos[1])
	}
	logoOverlay := filtergraph.OverlayExpr(
		filtergraph.TimeSwitch(xs, moveInterval),
		filtergraph.TimeSwitch(ys, moveInterval),
		filtergraph.OverlayOpts{
			Enable:    filtergraph.EnableAfter(p.FadeIn),
			EOFRepeat: true,
		},
	)
	if err := g.Add(logoOverlay, "out", "faded", "logo"); err != nil {
		return Params{}, err
	}

	outputArgs := append(append([]string{}, media.H264Encode...), media.AppleMetadata(time.Now())...)
	outputArgs = append(outputArgs, "-an")

	spec := media.RenderSpec{
		Inputs: []media.Input{
			{Path: clipPath},
			{Path: logoPath},
		},
		FilterComplex: g.String(),
		Maps:          []string{"[out]"},
		OutputArgs:    outputArgs,
		Output:        output,
	}

	start := time.Now()
	if err := s.proc.Render(ctx, spec); err != nil {
		return Params{}, fmt.Errorf("render unique video: %w", err)
	}
	s.logger.Info("unique video rendered",
		slog.String("clip", clipName),
		slog.Float64("fade_in", p.FadeIn),
		slog.String("stretch", fmt.Sprintf("%s+%.1f%%", p.StretchAxis, p.StretchPercent)),
		slog.Float64("slowdown", p.SlowdownPercent),
		slog.Duration("took", time.Since(start)))

	p.Sound = s.attachRandomSound(ctx, output)
	return p, nil
}

// drawParams randomizes every transform parameter within bounds.
func drawParams(clipName string, duration float64) Params {
	axis := "horizontal"
	base := CanvasWidth
	if rand.Intn(2) == 1 {
		axis = "vertical"
		base = CanvasHeight
	}
	stretchPercent := MinStretchPercent + rand.Float64()*(MaxStretchPercent-MinStretchPercent)

	positions := int(duration/moveInterval) + 1
	if positions < 1 {
		positions = 1
	}

	return Params{
		SourceClip:      clipName,
		FadeIn:          MinFadeIn + rand.Float64()*(MaxFadeIn-MinFadeIn),
		BlackOpacity:    MinBlackOpacity + rand.Float64()*(MaxBlackOpacity-MinBlackOpacity),
		StretchAxis:     axis,
		StretchPercent:  stretchPercent,
		StretchPixels:   int(float64(base) * stretchPercent / 100),
		SlowdownPercent: MinSlowdownPercent + rand.Float64()*(MaxSlowdownPercent-MinSlowdownPercent),
		LogoPositions:   positions,
	}
}

// randomPositions picks logo anchor points inside the safe margins.
func randomPositions(count int) [][2]int {
	maxX := CanvasWidth - LogoWidth - LogoMargin
	maxY := CanvasHeight - LogoWidth - LogoMargin

	positions := make([][2]int, count)
	for i := range positions {
		positions[i] = [2]int{
			LogoMargin + rand.Intn(maxX-LogoMargin+1),
			LogoMargin + rand.Intn(maxY-LogoMargin+1),
		}
	}
	return positions
}

// attachRandomSound muxes a random sound onto the video, keeping the silent
// version when anything fails.
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
	return snd.Name
}
