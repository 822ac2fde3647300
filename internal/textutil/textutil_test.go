package textutil

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"plain text unchanged", "hello world", "hello world"},
		{"crlf to lf", "a\r\nb", "a\nb"},
		{"bare cr to lf", "a\rb", "a\nb"},
		{"line separator", "a\u2028b", "a\nb"},
		{"paragraph separator", "a\u2029b", "a\nb"},
		{"nbsp to space", "a\u00a0b", "a b"},
		{"tab to space", "a\tb", "a b"},
		{"bom dropped", "\ufeffhello", "hello"},
		{"replacement char dropped", "he\ufffdllo", "hello"},
		{"object replacement dropped", "he\ufffcllo", "hello"},
		{"zero width space dropped", "he\u200bllo", "hello"},
		{"zero width joiner dropped", "he\u200dllo", "hello"},
		{"control chars dropped", "he\x00l\x07lo", "hello"},
		{"smart single quotes", "it’s ‘fine’", "it's 'fine'"},
		{"smart double quotes", "“hello”", `"hello"`},
		{"backtick stripped", "run `this`", "run this"},
		{"dollar stripped", "costs $5", "costs 5"},
		{"trailing spaces per line", "a  \nb  ", "a\nb"},
		{"surrounding whitespace trimmed", "  hello  ", "hello"},
		{"newlines preserved", "line one\nline two", "line one\nline two"},
		{"emoji preserved", "fire 🔥 drip", "fire 🔥 drip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Sanitize(tt.input))
		})
	}
}

func TestMaxChars(t *testing.T) {
	// 864px at font 46: 864 / (46*0.55) = 34.1 -> 34 chars
	assert.Equal(t, 34, MaxChars(46, 864))

	// budget never drops below one character
	assert.Equal(t, 1, MaxChars(500, 10))

	// tiny font sizes clamp the glyph estimate to 1px
	assert.Equal(t, 100, MaxChars(0, 100))
}

func TestWrap(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		text, lines := Wrap("", 46, 864)
		assert.Equal(t, "", text)
		assert.Equal(t, 0, lines)
	})

	t.Run("whitespace only", func(t *testing.T) {
		text, lines := Wrap("   ", 46, 864)
		assert.Equal(t, "", text)
		assert.Equal(t, 0, lines)
	})

	t.Run("short text single line", func(t *testing.T) {
		text, lines := Wrap("hello world", 46, 864)
		assert.Equal(t, "hello world", text)
		assert.Equal(t, 1, lines)
	})

	t.Run("no line exceeds budget", func(t *testing.T) {
		input := "the quick brown fox jumps over the lazy dog and keeps on running far away"
		text, lines := Wrap(input, 46, 400)
		budget := MaxChars(46, 400)
		assert.Greater(t, lines, 1)
		for _, line := range strings.Split(text, "\n") {
			assert.LessOrEqual(t, utf8.RuneCountInString(line), budget, "line %q over budget", line)
		}
	})

	t.Run("words survive wrapping", func(t *testing.T) {
		input := "one two three four five six seven eight nine ten"
		text, _ := Wrap(input, 46, 300)
		assert.Equal(t, strings.Fields(input), strings.Fields(text))
	})

	t.Run("oversized word broken to budget", func(t *testing.T) {
		long := strings.Repeat("x", 60)
		text, lines := Wrap(long, 10, 66) // budget 12
		assert.Equal(t, 5, lines)
		for _, line := range strings.Split(text, "\n") {
			assert.Equal(t, strings.Repeat("x", 12), line)
		}
	})

	t.Run("oversized word fills current line first", func(t *testing.T) {
		text, lines := Wrap("ab cccccc", 10, 27.5) // budget 5
		assert.Equal(t, "ab cc\ncccc", text)
		assert.Equal(t, 2, lines)
	})

	t.Run("no hashtag line exceeds budget", func(t *testing.T) {
		input := "new drop #ultralongbrandhashtagnamethatneverends out now"
		text, _ := Wrap(input, 46, 400)
		budget := MaxChars(46, 400)
		for _, line := range strings.Split(text, "\n") {
			assert.LessOrEqual(t, utf8.RuneCountInString(line), budget, "line %q over budget", line)
		}
	})

	t.Run("length counted in runes not bytes", func(t *testing.T) {
		// 11 runes but 13 bytes; must stay on one line at budget 12
		text, lines := Wrap("héllo wörld", 10, 66)
		assert.Equal(t, "héllo wörld", text)
		assert.Equal(t, 1, lines)
	})

	t.Run("newlines collapse to spaces", func(t *testing.T) {
		text, lines := Wrap("one\ntwo", 46, 864)
		assert.Equal(t, "one two", text)
		assert.Equal(t, 1, lines)
	})

	t.Run("line count matches newlines", func(t *testing.T) {
		text, lines := Wrap("a b c d e f g h i j k l m n o p", 46, 200)
		assert.Equal(t, lines, strings.Count(text, "\n")+1)
	})
}

func TestScaleFontSize(t *testing.T) {
	// base canvas width leaves the size untouched
	assert.Equal(t, 46, ScaleFontSize(46, 1080))

	// half-width media halves the font
	assert.Equal(t, 23, ScaleFontSize(46, 540))

	// wider media scales up
	assert.Equal(t, 92, ScaleFontSize(46, 2160))

	// degenerate widths fall back to the nominal size
	assert.Equal(t, 46, ScaleFontSize(46, 0))
	assert.Equal(t, 46, ScaleFontSize(46, -10))

	// never returns zero
	assert.Equal(t, 1, ScaleFontSize(1, 10))
}
