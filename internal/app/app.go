// Package app wires configuration into the render pipeline shared by the
// CLI and the API worker.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bobarin/narrator/internal/compose"
	"github.com/bobarin/narrator/internal/config"
	"github.com/bobarin/narrator/internal/logging"
	"github.com/bobarin/narrator/internal/pipeline"
	"github.com/bobarin/narrator/internal/services"
	"github.com/bobarin/narrator/internal/shorts"
	"github.com/bobarin/narrator/internal/timing"
	"github.com/bobarin/narrator/internal/video"
)

// Components are the configured building blocks of a render.
type Components struct {
	FFmpeg     *services.FFmpegService
	Generator  *video.Generator
	Compositor *compose.Compositor
	Shorts     *shorts.Engine
	Source     timing.Source
	Images     *services.GeminiService // nil without GEMINI_API_KEY
}

// Build constructs every component from cfg.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Components, error) {
	ffmpeg := services.NewFFmpegService(cfg.FFmpegBinary, cfg.FFprobeBinary, logging.Component(logger, "ffmpeg"))

	c := &Components{
		FFmpeg:    ffmpeg,
		Generator: video.NewGenerator(ffmpeg, video.OptionsFromConfig(cfg), logging.Component(logger, "video")),
		Compositor: compose.NewCompositor(ffmpeg, compose.Assets{
			Intro: cfg.IntroPath(),
			Outro: cfg.OutroPath(),
			Music: cfg.MusicPath(),
		}, cfg.TempDir, logging.Component(logger, "compose")),
		Shorts: shorts.NewEngine(ffmpeg, cfg.FPS, cfg.TempDir, logging.Component(logger, "shorts")),
	}

	source, err := NewSource(cfg, logger)
	if err != nil {
		return nil, err
	}
	c.Source = source

	if cfg.GeminiKey != "" {
		images, err := services.NewGeminiService(ctx, cfg.GeminiKey, cfg.GeminiImageModel, logging.Component(logger, "gemini"))
		if err != nil {
			return nil, err
		}
		c.Images = images
	}

	return c, nil
}

// NewSource returns the timing source selected by TIMING_SOURCE.
func NewSource(cfg *config.Config, logger *slog.Logger) (timing.Source, error) {
	switch cfg.TimingSource {
	case "", config.TimingSourceFile:
		return timing.FileSource{}, nil
	case config.TimingSourceWhisper:
		whisper := services.NewWhisperSource(cfg.OpenAIKey, logging.Component(logger, "whisper"))
		whisper.SaveTimings = true
		return whisper, nil
	default:
		return nil, fmt.Errorf("unknown timing source %q", cfg.TimingSource)
	}
}

// Runner builds the pipeline runner over the components.
func (c *Components) Runner(cfg *config.Config, logger *slog.Logger) *pipeline.Runner {
	deps := pipeline.Deps{
		Source:   c.Source,
		Videos:   c.Generator,
		Wrapper:  c.Compositor,
		Reflower: c.Shorts,
	}
	if c.Images != nil {
		deps.Images = c.Images
	}
	return pipeline.NewRunner(deps, cfg.Style, logging.Component(logger, "pipeline"))
}
