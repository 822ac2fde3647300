// Package merge implements the multi-clip pipeline: download, optional first
// clip trim, scale to a common resolution, per-clip text overlay, concatenate.
package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nocodecult/composer-api/internal/download"
	"github.com/nocodecult/composer-api/internal/media"
	"github.com/nocodecult/composer-api/internal/overlay"
	"github.com/nocodecult/composer-api/internal/style"
)

// Validation errors.
var (
	ErrTooFewClips  = errors.New("at least 2 clips are required for merging")
	ErrTooManyClips = errors.New("too many clips in merge request")
	ErrMissingURL   = errors.New("clip URL is required")
	ErrMissingText  = errors.New("clip text is required")
	ErrTextTooLong  = errors.New("clip text too long")
)

const maxClipTextLen = 500

// Clip is one entry of a merge request.
type Clip struct {
	URL      string
	Text     string
	Template string
	Override *style.Override
}

// Request describes a full merge job.
type Request struct {
	Clips []Clip
	// FirstClipDuration > 0 trims the first clip to that length before
	// scaling, using FirstClipTrimMode.
	FirstClipDuration float64
	FirstClipTrimMode media.TrimMode
}

// Result reports the merged output.
type Result struct {
	OutputPath       string
	ClipsProcessed   int
	TargetWidth      int
	TargetHeight     int
	FirstClipTrimmed bool
}

// StyleResolver supplies the base overlay style for a template name.
type StyleResolver interface {
	ResolveStyle(ctx context.Context, name string) (style.Style, error)
}

// Service runs merge jobs.
type Service struct {
	proc     media.Processor
	dl       *download.Downloader
	overlays *overlay.Service
	styles   StyleResolver
	tempDir  string
	maxClips int
	logger   *slog.Logger
}

// NewService creates a merge Service. maxClips caps the clip count per job.
func NewService(proc media.Processor, dl *download.Downloader, overlays *overlay.Service, styles StyleResolver, tempDir string, maxClips int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		proc:     proc,
		dl:       dl,
		overlays: overlays,
		styles:   styles,
		tempDir:  tempDir,
		maxClips: maxClips,
		logger:   logger,
	}
}

// Validate checks the request shape without touching the network.
func (s *Service) Validate(req Request) error {
	if len(req.Clips) < 2 {
		return ErrTooFewClips
	}
	if len(req.Clips) > s.maxClips {
		return fmt.Errorf("%w: %d clips, maximum %d", ErrTooManyClips, len(req.Clips), s.maxClips)
	}
	for i, c := range req.Clips {
		if c.URL == "" {
			return fmt.Errorf("clip %d: %w", i+1, ErrMissingURL)
		}
		if c.Text == "" {
			return fmt.Errorf("clip %d: %w", i+1, ErrMissingText)
		}
		if len(c.Text) > maxClipTextLen {
			return fmt.Errorf("clip %d: %w (max %d characters)", i+1, ErrTextTooLong, maxClipTextLen)
		}
	}
	return nil
}

// Process runs the full pipeline and writes the merged video to output.
// Intermediate files are removed as soon as the next stage no longer needs
// them; on failure everything outstanding is removed.
func (s *Service) Process(ctx context.Context, req Request, output string) (Result, error) {
	if err := s.Validate(req); err != nil {
		return Result{}, err
	}

	downloaded, err := s.downloadClips(ctx, req.Clips)
	if err != nil {
		return Result{}, err
	}
	defer func() { download.Cleanup(downloaded...) }()

	trimmed := false
	if req.FirstClipDuration > 0 {
		mode := req.FirstClipTrimMode
		if mode == "" {
			mode = media.TrimBoth
		}
		dst := s.tempPath("trimmed")
		res, err := s.proc.Trim(ctx, downloaded[0], dst, req.FirstClipDuration, mode)
		if err != nil {
			download.Cleanup(dst)
			return Result{}, fmt.Errorf("trim first clip: %w", err)
		}
		if res.Trimmed {
			download.Cleanup(downloaded[0])
			downloaded[0] = dst
			trimmed = true
			s.logger.Info("first clip trimmed",
				slog.Float64("original", res.Original),
				slog.Float64("target", req.FirstClipDuration),
				slog.String("mode", string(mode)))
		} else {
			download.Cleanup(dst)
		}
	}

	// Every clip is scaled to the first clip's resolution so overlays wrap
	// against the final canvas width.
	info, err := s.proc.Probe(ctx, downloaded[0])
	if err != nil {
		return Result{}, fmt.Errorf("probe first clip: %w", err)
	}

	scaled, err := s.scaleClips(ctx, downloaded, info.Width, info.Height)
	if err != nil {
		return Result{}, err
	}
	download.Cleanup(downloaded...)
	downloaded = nil
	defer func() { download.Cleanup(scaled...) }()

	overlayed, err := s.overlayClips(ctx, req.Clips, scaled)
	if err != nil {
		return Result{}, err
	}
	download.Cleanup(scaled...)
	scaled = nil
	defer func() { download.Cleanup(overlayed...) }()

	if err := s.proc.Merge(ctx, overlayed, output); err != nil {
		return Result{}, fmt.Errorf("merge clips: %w", err)
	}
	download.Cleanup(overlayed...)
	overlayed = nil

	s.logger.Info("clips merged",
		slog.Int("clips", len(req.Clips)),
		slog.String("resolution", fmt.Sprintf("%dx%d", info.Width, info.Height)),
		slog.String("output", output))

	return Result{
		OutputPath:       output,
		ClipsProcessed:   len(req.Clips),
		TargetWidth:      info.Width,
		TargetHeight:     info.Height,
		FirstClipTrimmed: trimmed,
	}, nil
}

// downloadClips fetches every clip URL concurrently, preserving order.
func (s *Service) downloadClips(ctx context.Context, clips []Clip) ([]string, error) {
	paths := make([]string, len(clips))

	g, ctx := errgroup.WithContext(ctx)
	for i, c := range clips {
		g.Go(func() error {
			p, err := s.dl.Fetch(ctx, c.URL, "mp4")
			if err != nil {
				return fmt.Errorf("download clip %d: %w", i+1, err)
			}
			paths[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		download.Cleanup(paths...)
		return nil, err
	}
	return paths, nil
}

func (s *Service) scaleClips(ctx context.Context, srcs []string, w, h int) ([]string, error) {
	scaled := make([]string, 0, len(srcs))
	for i, src := range srcs {
		dst := s.tempPath("scaled")
		wasScaled, err := s.proc.Scale(ctx, src, dst, w, h)
		if err != nil {
			download.Cleanup(scaled...)
			return nil, fmt.Errorf("scale clip %d: %w", i+1, err)
		}
		scaled = append(scaled, dst)
		s.logger.Debug("clip prepared",
			slog.Int("clip", i+1),
			slog.Bool("rescaled", wasScaled))
	}
	return scaled, nil
}

func (s *Service) overlayClips(ctx context.Context, clips []Clip, srcs []string) ([]string, error) {
	overlayed := make([]string, 0, len(clips))
	for i, c := range clips {
		base, err := s.styles.ResolveStyle(ctx, c.Template)
		if err != nil {
			download.Cleanup(overlayed...)
			return nil, fmt.Errorf("resolve template for clip %d: %w", i+1, err)
		}

		dst := s.tempPath("overlayed")
		// Only the last clip hides its text before the end, so the merged
		// video closes on a clean frame.
		last := i == len(clips)-1
		_, err = s.overlays.Apply(ctx, overlay.Request{
			InputPath:  srcs[i],
			OutputPath: dst,
			Text:       c.Text,
			Style:      base,
			Override:   c.Override,
			FadeOut:    last,
		})
		if err != nil {
			download.Cleanup(overlayed...)
			return nil, fmt.Errorf("overlay clip %d: %w", i+1, err)
		}
		overlayed = append(overlayed, dst)
	}
	return overlayed, nil
}

func (s *Service) tempPath(stage string) string {
	return filepath.Join(s.tempDir, stage+"_"+uuid.NewString()+".mp4")
}
