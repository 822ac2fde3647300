// Package template loads text overlay templates and sound references from
// PostgreSQL, degrading to hardcoded defaults when the database is absent.
package template

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nocodecult/composer-api/internal/style"
)

// Static errors for template lookups.
var (
	ErrNotFound            = errors.New("template not found")
	ErrDatabaseUnavailable = errors.New("template database is not available")
)

const (
	maxConnectAttempts = 3
	baseBackoff        = time.Second
	maxBackoff         = 10 * time.Second
	maxPoolConns       = 10
)

// Template is one stored overlay style row.
type Template struct {
	Name                string  `json:"name"`
	FontPath            string  `json:"font_path"`
	FontSize            int     `json:"font_size"`
	FontWeight          int     `json:"font_weight"`
	TextColor           string  `json:"text_color"`
	BorderWidth         int     `json:"border_width"`
	BorderColor         string  `json:"border_color"`
	ShadowX             int     `json:"shadow_x"`
	ShadowY             int     `json:"shadow_y"`
	ShadowColor         string  `json:"shadow_color"`
	Position            string  `json:"position"`
	BackgroundEnabled   bool    `json:"background_enabled"`
	BackgroundColor     string  `json:"background_color"`
	BackgroundOpacity   float64 `json:"background_opacity"`
	TextOpacity         float64 `json:"text_opacity"`
	Alignment           string  `json:"alignment"`
	MaxTextWidthPercent int     `json:"max_text_width_percent"`
	LineSpacing         int     `json:"line_spacing"`
	IsDefault           bool    `json:"is_default"`
}

// Style converts the row into a merged overlay style. The stored font path is
// overridden by the local font files, selected by the stored weight.
func (t Template) Style(fonts style.Fonts) style.Style {
	fontPath := fonts.SemiBold
	if t.FontWeight > 0 && t.FontWeight < 450 {
		fontPath = fonts.Medium
	}
	return style.Style{
		FontPath:            fontPath,
		FontSize:            t.FontSize,
		TextColor:           t.TextColor,
		BorderWidth:         t.BorderWidth,
		BorderColor:         t.BorderColor,
		ShadowX:             t.ShadowX,
		ShadowY:             t.ShadowY,
		ShadowColor:         t.ShadowColor,
		Position:            t.Position,
		BackgroundEnabled:   t.BackgroundEnabled,
		BackgroundColor:     t.BackgroundColor,
		BackgroundOpacity:   t.BackgroundOpacity,
		TextOpacity:         t.TextOpacity,
		Alignment:           t.Alignment,
		MaxTextWidthPercent: t.MaxTextWidthPercent,
		LineSpacing:         t.LineSpacing,
	}
}

// Sound is a named audio file reference.
type Sound struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Store reads templates and sounds from PostgreSQL. The pool is created
// lazily on first use so a missing database degrades instead of failing
// startup.
type Store struct {
	databaseURL string
	fonts       style.Fonts
	logger      *slog.Logger

	mu   sync.Mutex
	pool *pgxpool.Pool
}

// NewStore creates a Store. An empty databaseURL disables the database
// entirely and every call serves the hardcoded fallback.
func NewStore(databaseURL string, fonts style.Fonts, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		databaseURL: databaseURL,
		fonts:       fonts,
		logger:      logger,
	}
}

// templateColumns is the shared SELECT list, kept in scan order.
const templateColumns = `name, font_path, font_size, font_weight, text_color,
	border_width, border_color, shadow_x, shadow_y, shadow_color,
	position, background_enabled, background_color, background_opacity,
	text_opacity, alignment, max_text_width_percent, line_spacing, is_default`

// connect returns the pool, dialing it on first use with bounded retries.
func (s *Store) connect(ctx context.Context) (*pgxpool.Pool, error) {
	if s.databaseURL == "" {
		return nil, ErrDatabaseUnavailable
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pool != nil {
		return s.pool, nil
	}

	poolCfg, err := pgxpool.ParseConfig(s.databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConns = maxPoolConns

	backoff := baseBackoff
	var lastErr error
	for attempt := 1; attempt <= maxConnectAttempts; attempt++ {
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			if pingErr := pool.Ping(ctx); pingErr == nil {
				s.pool = pool
				s.logger.Info("template database connected", slog.Int("attempt", attempt))
				return pool, nil
			} else {
				pool.Close()
				err = pingErr
			}
		}
		lastErr = err
		s.logger.Warn("template database connection failed",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))

		if attempt == maxConnectAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect cancelled: %w", ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrDatabaseUnavailable, lastErr)
}

func scanTemplate(row pgx.Row) (Template, error) {
	var t Template
	err := row.Scan(
		&t.Name, &t.FontPath, &t.FontSize, &t.FontWeight, &t.TextColor,
		&t.BorderWidth, &t.BorderColor, &t.ShadowX, &t.ShadowY, &t.ShadowColor,
		&t.Position, &t.BackgroundEnabled, &t.BackgroundColor, &t.BackgroundOpacity,
		&t.TextOpacity, &t.Alignment, &t.MaxTextWidthPercent, &t.LineSpacing, &t.IsDefault,
	)
	return t, err
}

// Get fetches a template by name.
func (s *Store) Get(ctx context.Context, name string) (Template, error) {
	pool, err := s.connect(ctx)
	if err != nil {
		return Template{}, err
	}

	row := pool.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM templates WHERE name = $1`, name)
	t, err := scanTemplate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Template{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return Template{}, fmt.Errorf("query template %s: %w", name, err)
	}
	return t, nil
}

// GetDefault fetches the default template, preferring the is_default flag
// and falling back to the row named "default".
func (s *Store) GetDefault(ctx context.Context) (Template, error) {
	pool, err := s.connect(ctx)
	if err != nil {
		return Template{}, err
	}

	row := pool.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM templates WHERE is_default = TRUE LIMIT 1`)
	t, err := scanTemplate(row)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Template{}, fmt.Errorf("query default template: %w", err)
	}

	row = pool.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM templates WHERE name = 'default' LIMIT 1`)
	t, err = scanTemplate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Template{}, fmt.Errorf("%w: default", ErrNotFound)
	}
	if err != nil {
		return Template{}, fmt.Errorf("query default template: %w", err)
	}
	return t, nil
}

// List returns all templates, newest first.
func (s *Store) List(ctx context.Context) ([]Template, error) {
	pool, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx,
		`SELECT `+templateColumns+` FROM templates ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()

	var templates []Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}
	return templates, nil
}

// ResolveStyle returns the style for a template name, the stored default when
// name is empty, or the hardcoded fallback when the database cannot serve.
func (s *Store) ResolveStyle(ctx context.Context, name string) (style.Style, error) {
	if name == "" {
		t, err := s.GetDefault(ctx)
		if errors.Is(err, ErrDatabaseUnavailable) || errors.Is(err, ErrNotFound) {
			s.logger.Warn("falling back to built-in default template",
				slog.String("error", err.Error()))
			return s.Fallback(), nil
		}
		if err != nil {
			return style.Style{}, err
		}
		return t.Style(s.fonts), nil
	}

	t, err := s.Get(ctx, name)
	if errors.Is(err, ErrDatabaseUnavailable) {
		s.logger.Warn("template database unavailable, using built-in default",
			slog.String("template", name))
		return s.Fallback(), nil
	}
	if err != nil {
		return style.Style{}, err
	}
	return t.Style(s.fonts), nil
}

// RandomSound picks a sound from the database, or from the static list when
// the database cannot serve.
func (s *Store) RandomSound(ctx context.Context) (Sound, error) {
	pool, err := s.connect(ctx)
	if err == nil {
		var snd Sound
		row := pool.QueryRow(ctx,
			`SELECT name, url FROM sounds ORDER BY random() LIMIT 1`)
		if scanErr := row.Scan(&snd.Name, &snd.URL); scanErr == nil {
			return snd, nil
		} else if !errors.Is(scanErr, pgx.ErrNoRows) {
			s.logger.Warn("sound query failed, using static list",
				slog.String("error", scanErr.Error()))
		}
	}
	return fallbackSounds[rand.Intn(len(fallbackSounds))], nil
}

// Healthy reports whether the database answers. A store without a database is
// simply not healthy, never an error.
func (s *Store) Healthy(ctx context.Context) bool {
	s.mu.Lock()
	pool := s.pool
	s.mu.Unlock()
	if pool == nil {
		return false
	}
	return pool.Ping(ctx) == nil
}

// Close releases the pool if one was created.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
}

// Fallback returns the built-in default overlay style, used whenever the
// database cannot provide one.
func (s *Store) Fallback() style.Style {
	return style.Style{
		FontPath:            s.fonts.SemiBold,
		FontSize:            46,
		TextColor:           "white",
		BorderWidth:         6,
		BorderColor:         "black",
		ShadowX:             3,
		ShadowY:             3,
		ShadowColor:         "black",
		Position:            "center",
		BackgroundEnabled:   false,
		BackgroundColor:     "black",
		BackgroundOpacity:   0.0,
		TextOpacity:         1.0,
		Alignment:           "center",
		MaxTextWidthPercent: 80,
		LineSpacing:         -8,
	}
}
