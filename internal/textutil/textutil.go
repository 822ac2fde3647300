// Package textutil provides text sanitization and width-based word wrapping
// for drawtext overlays.
package textutil

import (
	"strings"
	"unicode"
)

// BaseCanvasWidth is the reference width used to scale nominal font sizes.
// Styles are authored against a 1080px-wide canvas.
const BaseCanvasWidth = 1080.0

// avgCharWidthFactor approximates the average glyph width of the brand fonts
// as a fraction of the font size. Changing it shifts line breaks in every
// rendered overlay.
const avgCharWidthFactor = 0.55

// smart punctuation that ffmpeg fonts render inconsistently
var quoteReplacer = strings.NewReplacer(
	"‘", "'", // left single quote
	"’", "'", // right single quote
	"“", `"`, // left double quote
	"”", `"`, // right double quote
)

// Sanitize normalizes user-supplied overlay text so the rendered output is
// deterministic. It normalizes newlines, converts smart quotes to their ASCII
// forms, drops invisible and control characters, and strips characters that
// break drawtext command quoting.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = quoteReplacer.Replace(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\n':
			b.WriteRune('\n')
		case '\u2028', '\u2029': // line/paragraph separator
			b.WriteRune('\n')
		case '\u00a0', '\t': // NBSP, tab
			b.WriteRune(' ')
		case '\ufeff', '\ufffd', '\ufffc': // BOM, replacement, object replacement
		case '`', '$': // break ffmpeg command quoting
		default:
			if unicode.In(r, unicode.Cf, unicode.Cc) {
				continue
			}
			b.WriteRune(r)
		}
	}

	lines := strings.Split(b.String(), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// MaxChars returns the character budget per line for the given font size and
// available pixel width.
func MaxChars(fontSizePx int, maxWidthPx float64) int {
	avg := float64(fontSizePx) * avgCharWidthFactor
	if avg < 1 {
		avg = 1
	}
	n := int(maxWidthPx / avg)
	if n < 1 {
		n = 1
	}
	return n
}

// Wrap breaks text into lines that fit maxWidthPx at the given font size,
// using a greedy word wrap over an average-glyph-width estimate. All
// whitespace, newlines included, collapses to single spaces before wrapping.
// Words longer than the budget fill the space left on the current line and
// continue in budget-sized pieces, so no output line ever exceeds the budget.
// Lengths are counted in runes. It returns the wrapped text and the line
// count; empty input yields ("", 0).
func Wrap(text string, fontSizePx int, maxWidthPx float64) (string, int) {
	words := strings.Fields(text)
	if len(words) == 0 {
		return "", 0
	}

	budget := MaxChars(fontSizePx, maxWidthPx)

	var out []string
	var line []rune
	flush := func() {
		out = append(out, string(line))
		line = line[:0]
	}

	for _, w := range words {
		word := []rune(w)
		sep := 0
		if len(line) > 0 {
			sep = 1
		}

		if len(line)+sep+len(word) <= budget {
			if sep == 1 {
				line = append(line, ' ')
			}
			line = append(line, word...)
			continue
		}

		if len(word) > budget {
			if free := budget - len(line) - sep; free > 0 {
				if sep == 1 {
					line = append(line, ' ')
				}
				line = append(line, word[:free]...)
				word = word[free:]
			}
			if len(line) > 0 {
				flush()
			}
			for len(word) > budget {
				out = append(out, string(word[:budget]))
				word = word[budget:]
			}
			line = append(line, word...)
			continue
		}

		flush()
		line = append(line, word...)
	}
	if len(line) > 0 {
		flush()
	}

	return strings.Join(out, "\n"), len(out)
}

// ScaleFontSize adapts a nominal font size, authored for BaseCanvasWidth, to
// the actual media width.
func ScaleFontSize(nominal int, mediaWidth int) int {
	if mediaWidth <= 0 {
		return nominal
	}
	scaled := int(float64(nominal) * float64(mediaWidth) / BaseCanvasWidth)
	if scaled < 1 {
		scaled = 1
	}
	return scaled
}
