// Package server provides the HTTP surface of the composer API: handlers,
// middleware, routes, and DTOs separated from domain types.
package server

import (
	"github.com/nocodecult/composer-api/internal/style"
	"github.com/nocodecult/composer-api/internal/template"
	"github.com/nocodecult/composer-api/internal/unique"
)

// OutfitRequest is the body of POST /outfit. The nine image URLs fill the
// grid tiles left to right, top to bottom.
type OutfitRequest struct {
	ImageURLs        []string `json:"image_urls" validate:"required,len=9,dive,required,url"`
	MainTitle        *string  `json:"main_title" validate:"omitempty,max=200"`
	Subtitle         *string  `json:"subtitle" validate:"omitempty,max=200"`
	TitleFontSize    *int     `json:"title_font_size" validate:"omitempty,gte=40,lte=120"`
	SubtitleFontSize *int     `json:"subtitle_font_size" validate:"omitempty,gte=30,lte=110"`
	Duration         *float64 `json:"duration" validate:"omitempty,gte=5,lte=7"`
	FadeIn           *float64 `json:"fade_in" validate:"omitempty,gte=2.5,lte=3"`
}

// CollageRequest is the body of POST /outfit-single and POST /pov. The image
// map keys must match the layout's slot names exactly.
type CollageRequest struct {
	Images           map[string]string `json:"images" validate:"required,dive,required,url"`
	MainTitle        *string           `json:"main_title" validate:"omitempty,max=200"`
	Subtitle         *string           `json:"subtitle" validate:"omitempty,max=200"`
	TitleFontSize    *int              `json:"title_font_size" validate:"omitempty,gte=48,lte=120"`
	SubtitleFontSize *int              `json:"subtitle_font_size" validate:"omitempty,gte=26,lte=90"`
	Duration         *float64          `json:"duration" validate:"omitempty,gte=5,lte=7"`
	FadeIn           *float64          `json:"fade_in" validate:"omitempty,gte=2.5,lte=3"`
}

// FitpicRequest is the body of POST /fitpic.
type FitpicRequest struct {
	Images  map[string]string `json:"images" validate:"required,dive,required,url"`
	Quality *int              `json:"quality" validate:"omitempty,gte=1,lte=100"`
}

// ClipRequest is one clip of a merge request.
type ClipRequest struct {
	URL       string          `json:"url" validate:"required,url"`
	Text      string          `json:"text" validate:"required,max=500"`
	Template  string          `json:"template" validate:"omitempty,max=100"`
	Overrides *style.Override `json:"overrides"`
}

// MergeRequest is the body of POST /merge.
type MergeRequest struct {
	Clips             []ClipRequest `json:"clips" validate:"required,min=2,max=10,dive"`
	OutputFormat      string        `json:"output_format" validate:"omitempty,oneof=mp4 mov"`
	FirstClipDuration *float64      `json:"first_clip_duration" validate:"omitempty,gt=0,lte=300"`
	FirstClipTrimMode string        `json:"first_clip_trim_mode" validate:"omitempty,oneof=start end both"`
}

// OverlayRequest is the body of POST /overlay.
type OverlayRequest struct {
	URL          string          `json:"url" validate:"required,url"`
	Text         string          `json:"text" validate:"required,max=500"`
	Template     string          `json:"template" validate:"omitempty,max=100"`
	Overrides    *style.Override `json:"overrides"`
	OutputFormat string          `json:"output_format" validate:"omitempty,oneof=same mp4 jpg png"`
}

// ProcessResponse is the uniform success shape of every processing endpoint.
type ProcessResponse struct {
	Status         string         `json:"status"`
	Message        string         `json:"message"`
	Filename       string         `json:"filename"`
	DownloadURL    string         `json:"download_url"`
	ClipsProcessed int            `json:"clips_processed,omitempty"`
	ProcessingTime float64        `json:"processing_time"`
	Parameters     *unique.Params `json:"parameters,omitempty"`
}

// ErrorResponse is the uniform failure shape.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HealthResponse reports component availability.
type HealthResponse struct {
	Status            string `json:"status"`
	FFmpegAvailable   bool   `json:"ffmpeg_available"`
	FontsAvailable    bool   `json:"fonts_available"`
	DatabaseAvailable *bool  `json:"database_available,omitempty"`
	Version           string `json:"version"`
}

// TemplateListResponse is the body of GET /templates.
type TemplateListResponse struct {
	Status    string              `json:"status"`
	Templates []template.Template `json:"templates"`
	Count     int                 `json:"count"`
}

// TemplateResponse is the body of GET /templates/{name}.
type TemplateResponse struct {
	Status   string            `json:"status"`
	Template template.Template `json:"template"`
}
