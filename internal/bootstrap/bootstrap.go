// Package bootstrap wires the composer API's dependencies together.
package bootstrap

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nocodecult/composer-api/internal/collage"
	"github.com/nocodecult/composer-api/internal/config"
	"github.com/nocodecult/composer-api/internal/download"
	"github.com/nocodecult/composer-api/internal/media"
	"github.com/nocodecult/composer-api/internal/merge"
	"github.com/nocodecult/composer-api/internal/overlay"
	"github.com/nocodecult/composer-api/internal/server"
	"github.com/nocodecult/composer-api/internal/storage"
	"github.com/nocodecult/composer-api/internal/style"
	"github.com/nocodecult/composer-api/internal/template"
	"github.com/nocodecult/composer-api/internal/unique"
)

// Dependencies holds everything the HTTP server needs, plus the handles main
// must close on shutdown.
type Dependencies struct {
	Services      server.Services
	RenderTimeout time.Duration
	MergeTimeout  time.Duration
	Templates     *template.Store
}

// NewDependencies builds the dependency graph in construction order:
// storage, processor, downloader, template store, then the domain services.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	fonts := style.Fonts{
		Medium:   cfg.FontMedium(),
		SemiBold: cfg.FontSemiBold(),
	}

	processor := media.NewFFmpegProcessor("")
	downloader := download.New(cfg.TempDir,
		download.WithMaxBytes(cfg.MaxFileSize),
		download.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.DownloadTimeoutSec) * time.Second}),
	)

	templates := template.NewStore(cfg.DatabaseURL, fonts, logger)
	if cfg.DatabaseEnabled() {
		logger.Info("template database configured")
	} else {
		logger.Info("no template database, serving fallback style")
	}

	overlays := overlay.NewService(processor, fonts, cfg.TempDir, logger)
	collages := collage.NewService(processor, downloader, fonts, templates, cfg.TempDir, logger)
	merges := merge.NewService(processor, downloader, overlays, templates, cfg.TempDir, cfg.MaxMergeClips, logger)
	uniques := unique.NewService(processor, downloader, templates, logger)

	return &Dependencies{
		Services: server.Services{
			Collage:    collages,
			Merge:      merges,
			Overlay:    overlays,
			Unique:     uniques,
			Templates:  templates,
			Downloader: downloader,
			Storage:    store,
			Processor:  processor,
			Fonts:      fonts,
			TempDir:    cfg.TempDir,
		},
		RenderTimeout: time.Duration(cfg.RenderTimeoutSec) * time.Second,
		MergeTimeout:  time.Duration(cfg.MergeTimeoutSec) * time.Second,
		Templates:     templates,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.R2Enabled {
		r2Cfg := storage.R2Config{
			AccountID:       cfg.R2AccountID,
			Bucket:          cfg.R2Bucket,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			CustomDomain:    cfg.R2CustomDomain,
		}
		r2Store, err := storage.NewR2Storage(cfg.TempDir, r2Cfg)
		if err != nil {
			return nil, fmt.Errorf("create R2 storage: %w", err)
		}
		logger.Info("R2 storage configured",
			slog.String("bucket", cfg.R2Bucket),
			slog.Bool("custom_domain", cfg.R2CustomDomain != ""),
		)
		return r2Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}
