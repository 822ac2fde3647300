package server

import (
	"log/slog"
	"net/http"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)

	mux.HandleFunc("POST /outfit", h.Outfit)
	mux.HandleFunc("POST /outfit-single", h.OutfitSingle)
	mux.HandleFunc("POST /pov", h.POV)
	mux.HandleFunc("POST /fitpic", h.Fitpic)

	mux.HandleFunc("POST /merge", h.Merge)
	mux.HandleFunc("POST /overlay", h.Overlay)
	mux.HandleFunc("POST /unique", h.Unique)

	mux.HandleFunc("GET /templates", h.Templates)
	mux.HandleFunc("GET /templates/{name}", h.TemplateByName)
	mux.HandleFunc("GET /files/{filename}", h.File)

	chain := ChainMiddleware(
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}
