// Package filtergraph builds ffmpeg filter_complex strings from typed stages.
//
// A Graph is an ordered list of stages, each consuming zero or more labeled
// streams and producing exactly one. Rendering joins the stages with ";" in
// insertion order, which is the order ffmpeg evaluates them.
package filtergraph

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrDuplicateLabel is returned when a stage reuses an output label.
var ErrDuplicateLabel = errors.New("filtergraph: duplicate output label")

// Stage is one filter chain with its input and output labels.
type Stage struct {
	Inputs []string
	Filter string
	Output string
}

// Graph accumulates stages for a single -filter_complex argument.
type Graph struct {
	stages  []Stage
	outputs map[string]struct{}
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{outputs: make(map[string]struct{})}
}

// Add appends a stage. Inputs reference earlier outputs or raw stream
// specifiers like "0:v"; source filters such as color= take no inputs.
// Reusing an output label is a bug in the caller and fails.
func (g *Graph) Add(filter, output string, inputs ...string) error {
	if _, exists := g.outputs[output]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateLabel, output)
	}
	g.outputs[output] = struct{}{}
	g.stages = append(g.stages, Stage{Inputs: inputs, Filter: filter, Output: output})
	return nil
}

// Len returns the number of stages added so far.
func (g *Graph) Len() int {
	return len(g.stages)
}

// String renders the graph for -filter_complex.
func (g *Graph) String() string {
	parts := make([]string, 0, len(g.stages))
	for _, st := range g.stages {
		var b strings.Builder
		for _, in := range st.Inputs {
			b.WriteString("[" + in + "]")
		}
		b.WriteString(st.Filter)
		b.WriteString("[" + st.Output + "]")
		parts = append(parts, b.String())
	}
	return strings.Join(parts, ";")
}

// ffnum formats a float the way the filter strings expect: plain decimal
// notation without a trailing zero tail.
func ffnum(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// ScaleCover scales to fill a w x h box, cropping overflow and resetting the
// sample aspect ratio. Used for collage tiles.
func ScaleCover(w, h int) string {
	return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,setsar=1", w, h, w, h)
}

// ScaleFitPad scales to fit inside a w x h box and pads the remainder with
// centered black bars.
func ScaleFitPad(w, h int) string {
	return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2", w, h, w, h)
}

// FormatRGBA converts the stream to a pixel format with an alpha channel.
const FormatRGBA = "format=rgba"

// FormatYUV420P converts to the widely compatible output pixel format.
const FormatYUV420P = "format=yuv420p"

// NormalizeForConcat forces a common frame rate and pixel format so clips
// from different sources concatenate without timestamp corruption.
const NormalizeForConcat = "fps=30,format=yuv420p"

// OverlayOpts controls optional overlay filter parameters.
type OverlayOpts struct {
	Shortest  bool
	Enable    string
	EOFRepeat bool
}

// Overlay composites the second input over the first at the given position
// expressions.
func Overlay(x, y string, opts OverlayOpts) string {
	var b strings.Builder
	fmt.Fprintf(&b, "overlay=%s:%s", x, y)
	if opts.Shortest {
		b.WriteString(":shortest=1")
	}
	if opts.Enable != "" {
		fmt.Fprintf(&b, ":enable='%s'", opts.Enable)
	}
	if opts.EOFRepeat {
		b.WriteString(":eof_action=repeat")
	}
	return b.String()
}

// OverlayExpr composites with quoted x/y expressions, for positions that are
// themselves ffmpeg expressions rather than plain numbers.
func OverlayExpr(x, y string, opts OverlayOpts) string {
	var b strings.Builder
	fmt.Fprintf(&b, "overlay=x='%s':y='%s'", x, y)
	if opts.Enable != "" {
		fmt.Fprintf(&b, ":enable='%s'", opts.Enable)
	}
	if opts.EOFRepeat {
		b.WriteString(":eof_action=repeat")
	}
	if opts.Shortest {
		b.WriteString(":shortest=1")
	}
	return b.String()
}

// FadeIn fades the stream in from black over d seconds.
func FadeIn(d float64) string {
	return fmt.Sprintf("fade=t=in:st=0:d=%s", ffnum(d))
}

// GammaRamp dims the stream with the given gamma during the first until
// seconds, softening the fade-in lift.
func GammaRamp(gamma, until float64) string {
	return fmt.Sprintf("eq=gamma=%s:enable='between(t,0,%s)'", ffnum(gamma), ffnum(until))
}

// HeaderBand draws a filled black band of the given height across the top.
func HeaderBand(height int) string {
	return fmt.Sprintf("drawbox=x=0:y=0:w=iw:h=%d:color=black@1:t=fill", height)
}

// StretchResample distorts to an exact w x h (ignoring aspect ratio), crops
// back to cropW x cropH and retimes frames by ptsMult.
func StretchResample(w, h, cropW, cropH int, ptsMult float64) string {
	return fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=disable,crop=%d:%d,setsar=1,setpts=%.4f*PTS",
		w, h, cropW, cropH, ptsMult,
	)
}

// BlackFadeSource generates a black overlay at the given opacity whose alpha
// fades out over d seconds, producing a fade-in from partial black when
// composited over the video.
func BlackFadeSource(w, h int, opacity, d float64) string {
	return fmt.Sprintf(
		"color=black:size=%dx%d,format=rgba,colorchannelmixer=aa=%s,fade=t=out:st=0:d=%s:alpha=1",
		w, h, ffnum(opacity), ffnum(d),
	)
}

// WatermarkPrep scales a logo to the given width (height follows aspect) and
// applies a constant alpha.
func WatermarkPrep(width int, opacity float64) string {
	return fmt.Sprintf("format=rgba,scale=%d:-1,colorchannelmixer=aa=%s", width, ffnum(opacity))
}

// Concat joins n video streams back to back.
func Concat(n int) string {
	return fmt.Sprintf("concat=n=%d:v=1:a=0", n)
}

// TimeSwitch builds a right-nested conditional that yields values[i] while
// t < (i+1)*interval and the last value afterwards. Commas are escaped for
// use inside a filter argument.
func TimeSwitch(values []string, interval float64) string {
	if len(values) == 0 {
		return ""
	}
	expr := values[len(values)-1]
	for i := len(values) - 2; i >= 0; i-- {
		threshold := float64(i+1) * interval
		expr = fmt.Sprintf("if(lt(t\\,%s)\\,%s\\,%s)", ffnum(threshold), values[i], expr)
	}
	return expr
}

// AlphaCutoff yields full opacity before cutoff seconds and zero after,
// hiding an overlay for the tail of a clip.
func AlphaCutoff(cutoff float64) string {
	return fmt.Sprintf("if(lt(t\\,%s)\\,1\\,0)", ffnum(cutoff))
}

// EnableAfter gates a filter on t >= start.
func EnableAfter(start float64) string {
	return fmt.Sprintf("gte(t,%s)", ffnum(start))
}

// DrawTextOpts describes one drawtext invocation. Exactly one of Text or
// TextFile must be set; TextFile sidesteps drawtext's multiline quoting bugs
// and is preferred for user text.
type DrawTextOpts struct {
	FontFile    string
	Text        string
	TextFile    string
	FontSize    int
	FontColor   string
	BorderColor string
	BorderWidth int
	ShadowColor string
	ShadowX     int
	ShadowY     int
	LineSpacing int
	Alpha       string
	X           string
	Y           string
	Enable      string
}

// DrawText renders the drawtext filter string. Parameter order matches the
// rendered commands the rest of the pipeline expects, so output strings stay
// byte-stable across refactors.
func DrawText(o DrawTextOpts) string {
	var b strings.Builder
	fmt.Fprintf(&b, "drawtext=fontfile='%s':", o.FontFile)
	if o.TextFile != "" {
		fmt.Fprintf(&b, "textfile='%s':", o.TextFile)
	} else {
		fmt.Fprintf(&b, "text='%s':", EscapeText(o.Text))
	}
	fmt.Fprintf(&b, "fontsize=%d:fontcolor=%s:bordercolor=%s:borderw=%d:",
		o.FontSize, o.FontColor, o.BorderColor, o.BorderWidth)
	fmt.Fprintf(&b, "shadowcolor=%s:shadowx=%d:shadowy=%d:", o.ShadowColor, o.ShadowX, o.ShadowY)
	if o.LineSpacing != 0 {
		fmt.Fprintf(&b, "line_spacing=%d:", o.LineSpacing)
	}
	if o.Alpha != "" {
		fmt.Fprintf(&b, "alpha='%s':", o.Alpha)
	}
	fmt.Fprintf(&b, "x=%s:y=%s", o.X, o.Y)
	if o.Enable != "" {
		fmt.Fprintf(&b, ":enable='%s'", o.Enable)
	}
	return b.String()
}

// EscapeText escapes inline drawtext text= values. Backslashes go first, then
// colons (the drawtext parameter separator) and single quotes.
func EscapeText(text string) string {
	text = strings.ReplaceAll(text, "\r", "")
	text = strings.ReplaceAll(text, `\`, `\\`)
	text = strings.ReplaceAll(text, ":", `\:`)
	text = strings.ReplaceAll(text, "'", `'\\\''`)
	return text
}
