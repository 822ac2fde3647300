package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nocodecult/composer-api/internal/filtergraph"
)

// Static errors for media operations.
var (
	// ErrTooFewClips is returned when fewer than two clips are given to Merge.
	ErrTooFewClips = errors.New("at least 2 clips are required for merging")
	// ErrInvalidDimensions is returned when the provided dimensions are not positive.
	ErrInvalidDimensions = errors.New("invalid dimensions: width and height must be positive")
	// ErrInvalidDuration is returned when a duration is not positive.
	ErrInvalidDuration = errors.New("invalid duration: must be positive")
	// ErrFFprobeExecution is returned when the ffprobe command fails.
	ErrFFprobeExecution = errors.New("ffprobe execution failed")
	// ErrNoVideoStream is returned when a file has no video stream to measure.
	ErrNoVideoStream = errors.New("no video stream found")
	// ErrOutputMissing is returned when ffmpeg exits cleanly but the output file is absent.
	ErrOutputMissing = errors.New("output file was not created")
)

// FFmpegProcessor implements Processor using the ffmpeg CLI.
type FFmpegProcessor struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
}

// NewFFmpegProcessor creates a new FFmpegProcessor.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpegProcessor(ffmpegPath string) *FFmpegProcessor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegProcessor{ffmpegPath: ffmpegPath}
}

var _ Processor = (*FFmpegProcessor)(nil)

// H264Encode is the shared output encoding for rendered video.
var H264Encode = []string{
	"-c:v", "libx264",
	"-preset", "slow",
	"-crf", "18",
	"-pix_fmt", "yuv420p",
}

// JPEGArgs converts a 1-100 quality to ffmpeg's inverted 1-31 -q:v scale and
// emits a single frame.
func JPEGArgs(quality int) []string {
	q := 32 - int(float64(quality)*0.31)
	if q < 1 {
		q = 1
	}
	if q > 31 {
		q = 31
	}
	return []string{"-frames:v", "1", "-q:v", strconv.Itoa(q)}
}

// AppleMetadata returns container metadata arguments that strip the source
// metadata and write tags matching an iPhone capture in New York.
func AppleMetadata(t time.Time) []string {
	creation := t.Format("2006-01-02T15:04:05-07:00")
	return []string{
		"-map_metadata", "-1",
		"-map_chapters", "-1",
		"-metadata", "major_brand=mp42",
		"-metadata", "minor_version=0",
		"-metadata", "compatible_brands=mp42isom",
		"-metadata", "com.apple.quicktime.make=Apple",
		"-metadata", "com.apple.quicktime.model=iPhone 17 Pro",
		"-metadata", "com.apple.quicktime.software=iOS 17.2.1",
		"-metadata", "creation_time=" + creation,
		"-metadata", "com.apple.quicktime.location.ISO6709=+40.7128-074.0060+000.00/",
		"-metadata", "com.apple.quicktime.location.name=New York, NY, USA",
		"-metadata", "location=+40.7128-074.0060+000.00/",
		"-metadata:s:v:0", "handler_name=Core Media Video",
		"-movflags", "+faststart+use_metadata_tags",
	}
}

// IsImage reports whether a path has a still-image extension.
func IsImage(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

// probeOutput mirrors the ffprobe -print_format json structure.
type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe returns the dimensions and duration of a media file.
func (p *FFmpegProcessor) Probe(ctx context.Context, path string) (Info, error) {
	// #nosec G204 - path comes from trusted internal code
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Info{}, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return Info{}, fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, stderr.String())
	}

	var out probeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return Info{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	info := Info{}
	if out.Format.Duration != "" {
		d, err := strconv.ParseFloat(out.Format.Duration, 64)
		if err == nil {
			info.Duration = d
		}
	}
	for _, s := range out.Streams {
		if s.CodecType == "video" && s.Width > 0 {
			info.Width = s.Width
			info.Height = s.Height
			return info, nil
		}
	}
	return info, ErrNoVideoStream
}

// Duration returns the container duration in seconds.
func (p *FFmpegProcessor) Duration(ctx context.Context, path string) (float64, error) {
	// #nosec G204 - path comes from trusted internal code
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return 0, fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, stderr.String())
	}

	var duration float64
	if _, err := fmt.Sscanf(strings.TrimSpace(stdout.String()), "%f", &duration); err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	return duration, nil
}

// TrimWindow computes the keep window for trimming a clip of original seconds
// down to target seconds.
func TrimWindow(original, target float64, mode TrimMode) (start, end float64) {
	excess := original - target
	switch mode {
	case TrimStart:
		return excess, original
	case TrimEnd:
		return 0, target
	default:
		return excess / 2, original - excess/2
	}
}

// Trim shortens a clip to target seconds. When the clip is already short
// enough it is copied through unchanged.
func (p *FFmpegProcessor) Trim(ctx context.Context, src, dst string, target float64, mode TrimMode) (TrimResult, error) {
	if target <= 0 {
		return TrimResult{}, fmt.Errorf("%w: got %.2f", ErrInvalidDuration, target)
	}

	original, err := p.Duration(ctx, src)
	if err != nil {
		return TrimResult{}, fmt.Errorf("probe before trim: %w", err)
	}

	if target >= original {
		if err := copyFile(src, dst); err != nil {
			return TrimResult{}, err
		}
		return TrimResult{Trimmed: false, Start: 0, End: original, Original: original}, nil
	}

	start, end := TrimWindow(original, target, mode)

	args := []string{
		"-y",
		"-i", src,
		// -ss after -i for frame-accurate seeking
		"-ss", formatSeconds(start),
		"-to", formatSeconds(end),
	}
	args = append(args, H264Encode...)
	args = append(args, "-an", dst)

	if err := p.runFFmpeg(ctx, args); err != nil {
		return TrimResult{}, err
	}
	return TrimResult{Trimmed: true, Start: start, End: end, Original: original}, nil
}

// Scale fits a clip inside w x h with centered black padding. Clips already
// at the target size are byte-copied instead of re-encoded.
func (p *FFmpegProcessor) Scale(ctx context.Context, src, dst string, w, h int) (bool, error) {
	if w <= 0 || h <= 0 {
		return false, fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDimensions, w, h)
	}

	info, err := p.Probe(ctx, src)
	if err != nil {
		return false, fmt.Errorf("probe before scale: %w", err)
	}
	if info.Width == w && info.Height == h {
		return false, copyFile(src, dst)
	}

	args := []string{
		"-y",
		"-i", src,
		"-vf", filtergraph.ScaleFitPad(w, h),
	}
	args = append(args, H264Encode...)
	args = append(args, "-c:a", "copy", "-movflags", "+faststart", dst)

	if err := p.runFFmpeg(ctx, args); err != nil {
		return false, err
	}
	return true, nil
}

// Merge concatenates clips back to back. Every clip is normalized to a
// common frame rate and pixel format first; mixed frame rates otherwise
// corrupt the concat timestamps.
func (p *FFmpegProcessor) Merge(ctx context.Context, srcs []string, dst string) error {
	if len(srcs) < 2 {
		return ErrTooFewClips
	}
	for _, src := range srcs {
		if _, err := os.Stat(src); err != nil {
			return fmt.Errorf("merge input missing: %w", err)
		}
	}

	g := filtergraph.New()
	normalized := make([]string, len(srcs))
	for i := range srcs {
		label := fmt.Sprintf("v%d", i)
		if err := g.Add(filtergraph.NormalizeForConcat, label, fmt.Sprintf("%d:v", i)); err != nil {
			return err
		}
		normalized[i] = label
	}
	if err := g.Add(filtergraph.Concat(len(srcs)), "v", normalized...); err != nil {
		return err
	}

	args := []string{"-y"}
	for _, src := range srcs {
		args = append(args, "-i", src)
	}
	args = append(args, "-filter_complex", g.String(), "-map", "[v]")
	args = append(args, H264Encode...)
	args = append(args, "-movflags", "+faststart", dst)

	if err := p.runFFmpeg(ctx, args); err != nil {
		return err
	}
	return requireOutput(dst)
}

// AddAudioTrack muxes an audio file onto a video. The video stream is copied
// and the output ends with the video.
func (p *FFmpegProcessor) AddAudioTrack(ctx context.Context, video, audio, dst string) error {
	args := []string{
		"-y",
		"-i", video,
		"-i", audio,
		"-map", "0:v",
		"-map", "1:a",
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "192k",
		"-shortest",
		"-movflags", "+faststart",
		dst,
	}
	if err := p.runFFmpeg(ctx, args); err != nil {
		return err
	}
	return requireOutput(dst)
}

// Render runs a filter-graph render described by spec.
func (p *FFmpegProcessor) Render(ctx context.Context, spec RenderSpec) error {
	args := []string{"-y"}
	for _, in := range spec.Inputs {
		if in.Lavfi {
			args = append(args, "-f", "lavfi")
		}
		if in.Loop {
			args = append(args, "-loop", "1")
		}
		if in.Duration > 0 {
			args = append(args, "-t", formatSeconds(in.Duration))
		}
		args = append(args, "-i", in.Path)
	}
	if spec.FilterComplex != "" {
		args = append(args, "-filter_complex", spec.FilterComplex)
	}
	for _, m := range spec.Maps {
		args = append(args, "-map", m)
	}
	if spec.Duration > 0 {
		args = append(args, "-t", formatSeconds(spec.Duration))
	}
	args = append(args, spec.OutputArgs...)
	args = append(args, spec.Output)

	if err := p.runFFmpeg(ctx, args); err != nil {
		return err
	}
	return requireOutput(spec.Output)
}

// Available reports whether the ffmpeg binary can be executed.
func (p *FFmpegProcessor) Available(ctx context.Context) bool {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffmpegPath, "-version")
	return cmd.Run() == nil
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (p *FFmpegProcessor) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("ffmpeg timed out after %s: %w", time.Since(start).Round(time.Second), ctx.Err())
		}
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

func requireOutput(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s", ErrOutputMissing, path)
	}
	return nil
}

func copyFile(src, dst string) error {
	input, err := os.ReadFile(src) // #nosec G304 - src is provided by trusted internal code
	if err != nil {
		return fmt.Errorf("read source file: %w", err)
	}
	if err := os.WriteFile(dst, input, 0600); err != nil {
		return fmt.Errorf("write destination file: %w", err)
	}
	return nil
}

// formatSeconds renders a duration for ffmpeg arguments.
func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}
