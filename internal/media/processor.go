// Package media provides video and image processing on top of the ffmpeg CLI.
package media

import "context"

// TrimMode selects where trimmed time is removed from a clip.
type TrimMode string

const (
	// TrimStart removes the excess from the beginning of the clip.
	TrimStart TrimMode = "start"
	// TrimEnd removes the excess from the end of the clip.
	TrimEnd TrimMode = "end"
	// TrimBoth splits the excess equally between both ends.
	TrimBoth TrimMode = "both"
)

// Info describes the primary video stream of a media file.
type Info struct {
	Width    int
	Height   int
	Duration float64
}

// TrimResult reports what a trim operation did.
type TrimResult struct {
	Trimmed  bool
	Start    float64
	End      float64
	Original float64
}

// Input is one ffmpeg input with its per-input flags.
type Input struct {
	// Path is a file path, or a lavfi source spec when Lavfi is true.
	Path  string
	Lavfi bool
	// Loop repeats a still image for Duration seconds.
	Loop bool
	// Duration limits the input with -t when positive.
	Duration float64
}

// RenderSpec describes a single filter-graph render.
type RenderSpec struct {
	Inputs        []Input
	FilterComplex string
	// Maps lists -map arguments, e.g. "[video_out]" or "0:a?".
	Maps []string
	// Duration limits the output with -t when positive.
	Duration float64
	// OutputArgs carry codec, quality and metadata arguments.
	OutputArgs []string
	Output     string
}

// Processor defines the ffmpeg operations the pipelines are built from.
// Implementations must honor context cancellation on every call.
type Processor interface {
	// Probe returns the dimensions and duration of a media file.
	Probe(ctx context.Context, path string) (Info, error)

	// Duration returns just the container duration in seconds.
	Duration(ctx context.Context, path string) (float64, error)

	// Trim shortens a clip to target seconds according to mode. A target at
	// or beyond the current duration copies the clip through untouched.
	Trim(ctx context.Context, src, dst string, target float64, mode TrimMode) (TrimResult, error)

	// Scale fits a clip inside w x h with centered padding. A clip already at
	// the target size is byte-copied. Returns whether re-encoding happened.
	Scale(ctx context.Context, src, dst string, w, h int) (bool, error)

	// Merge concatenates two or more clips, normalizing frame rate and pixel
	// format first.
	Merge(ctx context.Context, srcs []string, dst string) error

	// AddAudioTrack muxes an audio file onto a video, ending with the video.
	AddAudioTrack(ctx context.Context, video, audio, dst string) error

	// Render runs an arbitrary filter-graph render described by spec.
	Render(ctx context.Context, spec RenderSpec) error

	// Available reports whether the ffmpeg binary can be executed.
	Available(ctx context.Context) bool
}
