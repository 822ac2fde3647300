package media

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// skipIfNoFFmpeg skips the test if ffmpeg is not available.
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH, skipping test")
	}
}

// createTestImage creates a simple test image using ffmpeg.
func createTestImage(t *testing.T, path string, width, height int) {
	t.Helper()

	cmd := exec.Command("ffmpeg",
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=red:s=%dx%d:d=1", width, height),
		"-frames:v", "1",
		path,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to create test image: %v\noutput: %s", err, output)
	}
}

// createTestVideo creates a simple test video using ffmpeg.
func createTestVideo(t *testing.T, path string, duration float64, color string) {
	t.Helper()

	cmd := exec.Command("ffmpeg",
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=%s:s=64x64:d=%.1f", color, duration),
		"-c:v", "libx264",
		"-preset", "ultrafast",
		path,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to create test video: %v\noutput: %s", err, output)
	}
}

func TestNewFFmpegProcessor(t *testing.T) {
	t.Run("default path", func(t *testing.T) {
		p := NewFFmpegProcessor("")
		if p.ffmpegPath != "ffmpeg" {
			t.Errorf("expected default path 'ffmpeg', got %q", p.ffmpegPath)
		}
	})

	t.Run("custom path", func(t *testing.T) {
		p := NewFFmpegProcessor("/usr/local/bin/ffmpeg")
		if p.ffmpegPath != "/usr/local/bin/ffmpeg" {
			t.Errorf("expected custom path, got %q", p.ffmpegPath)
		}
	})
}

func TestRunFFmpegTimeoutMessage(t *testing.T) {
	p := NewFFmpegProcessor("")

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	err := p.runFFmpeg(ctx, []string{"-version"})
	if err == nil {
		t.Fatal("expected error from expired context")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if !strings.Contains(err.Error(), "timed out after") {
		t.Errorf("expected elapsed duration in message, got %q", err.Error())
	}
}

func TestTrimWindow(t *testing.T) {
	tests := []struct {
		name       string
		original   float64
		target     float64
		mode       TrimMode
		start, end float64
	}{
		{"start mode removes leading excess", 10, 6, TrimStart, 4, 10},
		{"end mode removes trailing excess", 10, 6, TrimEnd, 0, 6},
		{"both mode splits excess", 10, 6, TrimBoth, 2, 8},
		{"both mode with odd excess", 10, 7, TrimBoth, 1.5, 8.5},
		{"unknown mode behaves like both", 10, 6, TrimMode("sideways"), 2, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := TrimWindow(tt.original, tt.target, tt.mode)
			if math.Abs(start-tt.start) > 1e-9 || math.Abs(end-tt.end) > 1e-9 {
				t.Errorf("got window (%.2f, %.2f), want (%.2f, %.2f)", start, end, tt.start, tt.end)
			}
			if math.Abs((end-start)-tt.target) > 1e-9 {
				t.Errorf("window length %.2f does not match target %.2f", end-start, tt.target)
			}
		})
	}
}

func TestTrim(t *testing.T) {
	skipIfNoFFmpeg(t)

	tmpDir := t.TempDir()
	p := NewFFmpegProcessor("")
	ctx := context.Background()

	t.Run("trims to target duration", func(t *testing.T) {
		src := filepath.Join(tmpDir, "long.mp4")
		dst := filepath.Join(tmpDir, "short.mp4")
		createTestVideo(t, src, 3.0, "red")

		res, err := p.Trim(ctx, src, dst, 1.0, TrimBoth)
		if err != nil {
			t.Fatalf("Trim failed: %v", err)
		}
		if !res.Trimmed {
			t.Error("expected Trimmed=true")
		}
		if math.Abs(res.Original-3.0) > 0.2 {
			t.Errorf("unexpected original duration %.2f", res.Original)
		}

		got, err := p.Duration(ctx, dst)
		if err != nil {
			t.Fatalf("Duration failed: %v", err)
		}
		if math.Abs(got-1.0) > 0.2 {
			t.Errorf("expected ~1.0s output, got %.2f", got)
		}
	})

	t.Run("target beyond original copies through", func(t *testing.T) {
		src := filepath.Join(tmpDir, "short_src.mp4")
		dst := filepath.Join(tmpDir, "copied.mp4")
		createTestVideo(t, src, 1.0, "blue")

		res, err := p.Trim(ctx, src, dst, 10.0, TrimEnd)
		if err != nil {
			t.Fatalf("Trim failed: %v", err)
		}
		if res.Trimmed {
			t.Error("expected Trimmed=false for pass-through")
		}
		if _, err := os.Stat(dst); err != nil {
			t.Errorf("pass-through output missing: %v", err)
		}
	})

	t.Run("non-positive target fails", func(t *testing.T) {
		if _, err := p.Trim(ctx, "in.mp4", "out.mp4", 0, TrimBoth); err == nil {
			t.Error("expected error for zero target")
		}
	})
}

func TestScale(t *testing.T) {
	skipIfNoFFmpeg(t)

	tmpDir := t.TempDir()
	p := NewFFmpegProcessor("")
	ctx := context.Background()

	t.Run("scales to target with padding", func(t *testing.T) {
		src := filepath.Join(tmpDir, "small.mp4")
		dst := filepath.Join(tmpDir, "scaled.mp4")
		createTestVideo(t, src, 0.5, "red")

		scaled, err := p.Scale(ctx, src, dst, 128, 128)
		if err != nil {
			t.Fatalf("Scale failed: %v", err)
		}
		if !scaled {
			t.Error("expected re-encode for size change")
		}

		info, err := p.Probe(ctx, dst)
		if err != nil {
			t.Fatalf("Probe failed: %v", err)
		}
		if info.Width != 128 || info.Height != 128 {
			t.Errorf("expected 128x128, got %dx%d", info.Width, info.Height)
		}
	})

	t.Run("already at target copies through", func(t *testing.T) {
		src := filepath.Join(tmpDir, "exact.mp4")
		dst := filepath.Join(tmpDir, "exact_out.mp4")
		createTestVideo(t, src, 0.5, "green")

		scaled, err := p.Scale(ctx, src, dst, 64, 64)
		if err != nil {
			t.Fatalf("Scale failed: %v", err)
		}
		if scaled {
			t.Error("expected copy-through for matching size")
		}

		srcInfo, _ := os.Stat(src)
		dstInfo, _ := os.Stat(dst)
		if srcInfo.Size() != dstInfo.Size() {
			t.Error("copy-through should preserve bytes")
		}
	})

	t.Run("invalid dimensions", func(t *testing.T) {
		if _, err := p.Scale(ctx, "a.mp4", "b.mp4", 0, 64); err == nil {
			t.Error("expected error for zero width")
		}
		if _, err := p.Scale(ctx, "a.mp4", "b.mp4", 64, -1); err == nil {
			t.Error("expected error for negative height")
		}
	})
}

func TestMerge(t *testing.T) {
	skipIfNoFFmpeg(t)

	tmpDir := t.TempDir()
	p := NewFFmpegProcessor("")
	ctx := context.Background()

	t.Run("merges clips back to back", func(t *testing.T) {
		v1 := filepath.Join(tmpDir, "m1.mp4")
		v2 := filepath.Join(tmpDir, "m2.mp4")
		out := filepath.Join(tmpDir, "merged.mp4")
		createTestVideo(t, v1, 0.5, "red")
		createTestVideo(t, v2, 0.5, "blue")

		if err := p.Merge(ctx, []string{v1, v2}, out); err != nil {
			t.Fatalf("Merge failed: %v", err)
		}

		got, err := p.Duration(ctx, out)
		if err != nil {
			t.Fatalf("Duration failed: %v", err)
		}
		if got < 0.8 || got > 1.2 {
			t.Errorf("expected merged duration ~1.0s, got %.2f", got)
		}
	})

	t.Run("fewer than two clips fails", func(t *testing.T) {
		err := p.Merge(ctx, []string{"only.mp4"}, filepath.Join(tmpDir, "x.mp4"))
		if err != ErrTooFewClips {
			t.Errorf("expected ErrTooFewClips, got %v", err)
		}
	})

	t.Run("missing input fails before running", func(t *testing.T) {
		v1 := filepath.Join(tmpDir, "exists.mp4")
		createTestVideo(t, v1, 0.3, "red")
		err := p.Merge(ctx, []string{v1, "/nonexistent/clip.mp4"}, filepath.Join(tmpDir, "y.mp4"))
		if err == nil {
			t.Error("expected error for missing input")
		}
	})
}

func TestAddAudioTrack(t *testing.T) {
	skipIfNoFFmpeg(t)

	tmpDir := t.TempDir()
	p := NewFFmpegProcessor("")
	ctx := context.Background()

	video := filepath.Join(tmpDir, "silent.mp4")
	audio := filepath.Join(tmpDir, "tone.mp3")
	out := filepath.Join(tmpDir, "with_audio.mp4")

	createTestVideo(t, video, 1.0, "red")

	cmd := exec.Command("ffmpeg", "-y",
		"-f", "lavfi", "-i", "sine=frequency=440:duration=3",
		audio,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to create test audio: %v\noutput: %s", err, output)
	}

	if err := p.AddAudioTrack(ctx, video, audio, out); err != nil {
		t.Fatalf("AddAudioTrack failed: %v", err)
	}

	// -shortest keeps the output at the video length despite the longer audio
	got, err := p.Duration(ctx, out)
	if err != nil {
		t.Fatalf("Duration failed: %v", err)
	}
	if got > 1.5 {
		t.Errorf("expected output capped at video length, got %.2f", got)
	}
}

func TestRender(t *testing.T) {
	skipIfNoFFmpeg(t)

	tmpDir := t.TempDir()
	p := NewFFmpegProcessor("")
	ctx := context.Background()

	t.Run("renders lavfi base with looped image", func(t *testing.T) {
		img := filepath.Join(tmpDir, "tile.png")
		out := filepath.Join(tmpDir, "rendered.mp4")
		createTestImage(t, img, 64, 64)

		spec := RenderSpec{
			Inputs: []Input{
				{Path: "color=c=white:s=128x128:r=30:d=1", Lavfi: true, Duration: 1},
				{Path: img, Loop: true, Duration: 1},
			},
			FilterComplex: "[0:v]format=rgba[base];[1:v]scale=32:32[img];[base][img]overlay=10:10:shortest=1,format=yuv420p[video_out]",
			Maps:          []string{"[video_out]"},
			Duration:      1,
			OutputArgs:    H264Encode,
			Output:        out,
		}
		if err := p.Render(ctx, spec); err != nil {
			t.Fatalf("Render failed: %v", err)
		}

		info, err := p.Probe(ctx, out)
		if err != nil {
			t.Fatalf("Probe failed: %v", err)
		}
		if info.Width != 128 {
			t.Errorf("expected 128px output, got %d", info.Width)
		}
	})

	t.Run("context timeout surfaces as timeout error", func(t *testing.T) {
		img := filepath.Join(tmpDir, "slow.png")
		createTestImage(t, img, 64, 64)

		ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
		defer cancel()

		err := p.Render(ctx, RenderSpec{
			Inputs: []Input{{Path: img}},
			Maps:   []string{"0:v"},
			Output: filepath.Join(tmpDir, "never.mp4"),
		})
		if err == nil {
			t.Fatal("expected error for expired context")
		}
		if !strings.Contains(err.Error(), "timed out") {
			t.Errorf("expected timeout wording, got: %v", err)
		}
	})
}

func TestProbe(t *testing.T) {
	skipIfNoFFmpeg(t)

	tmpDir := t.TempDir()
	p := NewFFmpegProcessor("")
	ctx := context.Background()

	t.Run("reads dimensions and duration", func(t *testing.T) {
		src := filepath.Join(tmpDir, "probe.mp4")
		createTestVideo(t, src, 2.0, "red")

		info, err := p.Probe(ctx, src)
		if err != nil {
			t.Fatalf("Probe failed: %v", err)
		}
		if info.Width != 64 || info.Height != 64 {
			t.Errorf("expected 64x64, got %dx%d", info.Width, info.Height)
		}
		if math.Abs(info.Duration-2.0) > 0.2 {
			t.Errorf("expected ~2.0s, got %.2f", info.Duration)
		}
	})

	t.Run("missing file fails", func(t *testing.T) {
		if _, err := p.Probe(ctx, "/nonexistent/file.mp4"); err == nil {
			t.Error("expected error for missing file")
		}
	})
}

func TestIsImage(t *testing.T) {
	for _, path := range []string{"a.jpg", "b.JPEG", "c.png", "/x/y/z.PNG"} {
		if !IsImage(path) {
			t.Errorf("expected %q to be an image", path)
		}
	}
	for _, path := range []string{"a.mp4", "b.mov", "c.gif", "noext"} {
		if IsImage(path) {
			t.Errorf("expected %q not to be an image", path)
		}
	}
}

func TestJPEGArgs(t *testing.T) {
	tests := []struct {
		quality int
		q       string
	}{
		{100, "1"},
		{95, "3"},
		{1, "31"},
	}
	for _, tt := range tests {
		args := JPEGArgs(tt.quality)
		if args[len(args)-1] != tt.q {
			t.Errorf("quality %d: expected -q:v %s, got %s", tt.quality, tt.q, args[len(args)-1])
		}
	}
}

func TestAppleMetadata(t *testing.T) {
	ts := time.Date(2026, 3, 14, 15, 9, 26, 0, time.FixedZone("EST", -5*3600))
	args := AppleMetadata(ts)

	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-map_metadata -1") {
		t.Error("expected source metadata to be stripped")
	}
	if !strings.Contains(joined, "creation_time=2026-03-14T15:09:26-05:00") {
		t.Errorf("unexpected creation_time formatting: %s", joined)
	}
	if !strings.Contains(joined, "com.apple.quicktime.model=iPhone 17 Pro") {
		t.Error("expected device model tag")
	}
}

func TestFFmpegError(t *testing.T) {
	err := &FFmpegError{
		Args:   []string{"-i", "input.mp4", "-c", "copy", "output.mp4"},
		Stderr: "Error opening input file",
		Err:    fmt.Errorf("exit status 1"),
	}

	errStr := err.Error()
	if !strings.Contains(errStr, "exit status 1") {
		t.Error("Error() should contain underlying error")
	}
	if !strings.Contains(errStr, "Error opening input file") {
		t.Error("Error() should contain stderr")
	}

	unwrapped := err.Unwrap()
	if unwrapped == nil || unwrapped.Error() != "exit status 1" {
		t.Errorf("Unwrap() returned wrong error: %v", unwrapped)
	}
}
