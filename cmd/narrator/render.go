package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bobarin/narrator/internal/app"
	"github.com/bobarin/narrator/internal/deps"
	"github.com/bobarin/narrator/internal/models"
	"github.com/bobarin/narrator/internal/pipeline"
)

type renderOptions struct {
	languages  []string
	inputDir   string
	imagesDir  string
	outputDir  string
	shortsMode string
	noWrap     bool
	secondary  string
	ass        bool
	prompts    map[string]string
	quiet      bool
}

func newRenderCommand(ctx *commandContext) *cobra.Command {
	opts := renderOptions{}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the videos of one or more languages",
		Long: `Render reads speech_{lang}.mp3 and timings_{lang}.json from the input
directory and writes video_{lang}.mp4 (plus shorts_{lang}.mp4 and
subtitles_{lang}.ass when requested) to the output directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.ensure()
			if err != nil {
				return err
			}
			job, err := opts.job()
			if err != nil {
				return err
			}
			if err := deps.Require(deps.MediaRequirements(cfg.FFmpegBinary, cfg.FFprobeBinary)); err != nil {
				return err
			}

			components, err := app.Build(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}

			var progress *frameProgress
			if !opts.quiet {
				progress = newFrameProgress(cmd.ErrOrStderr())
				job.Progress = progress.Update
			}

			start := time.Now()
			result := components.Runner(cfg, logger).Run(cmd.Context(), job)
			if progress != nil {
				progress.Finish()
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Language", "Kind", "Output", "Time"},
				resultRows(result),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
			))
			logger.Info("render finished", "languages", len(result.Languages), "elapsed", time.Since(start).Round(time.Second))
			return result.Err()
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVarP(&opts.languages, "lang", "l", nil, "Languages to render (repeatable or comma separated)")
	flags.StringVarP(&opts.inputDir, "input", "i", "", "Directory holding speech_{lang}.mp3 and timings_{lang}.json")
	flags.StringVar(&opts.imagesDir, "images", "", "Section image directory (default <input>/images)")
	flags.StringVarP(&opts.outputDir, "output", "o", "output", "Output directory")
	flags.StringVar(&opts.shortsMode, "shorts", string(models.ShortsModeOff), "Vertical cut: off, reflow or render")
	flags.BoolVar(&opts.noWrap, "no-wrap", false, "Skip the intro/outro wrap")
	flags.StringVar(&opts.secondary, "secondary", "", "Language whose text is shown under the captions")
	flags.BoolVar(&opts.ass, "ass", false, "Also write an ASS subtitle sidecar")
	flags.StringToStringVar(&opts.prompts, "section-prompt", nil, "Image prompt for a section without an image (name=prompt)")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "Hide the progress bar")
	_ = cmd.MarkFlagRequired("lang")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func (o renderOptions) job() (pipeline.Job, error) {
	mode := models.ShortsMode(strings.ToLower(strings.TrimSpace(o.shortsMode)))
	switch mode {
	case models.ShortsModeOff, models.ShortsModeReflow, models.ShortsModeRender:
	default:
		return pipeline.Job{}, fmt.Errorf("--shorts must be off, reflow or render, got %q", o.shortsMode)
	}

	var languages []string
	for _, l := range o.languages {
		if l = strings.TrimSpace(l); l != "" {
			languages = append(languages, l)
		}
	}
	if len(languages) == 0 {
		return pipeline.Job{}, fmt.Errorf("at least one --lang is required")
	}

	info, err := os.Stat(o.inputDir)
	if err != nil || !info.IsDir() {
		return pipeline.Job{}, fmt.Errorf("input directory %q not found", o.inputDir)
	}

	return pipeline.Job{
		Languages:         languages,
		InputDir:          filepath.Clean(o.inputDir),
		ImagesDir:         o.imagesDir,
		OutputDir:         filepath.Clean(o.outputDir),
		ShortsMode:        mode,
		WrapIntroOutro:    !o.noWrap,
		SecondaryLanguage: o.secondary,
		SectionPrompts:    o.prompts,
		ASSSidecar:        o.ass,
	}, nil
}

func resultRows(result pipeline.Result) [][]string {
	var rows [][]string
	for _, l := range result.Languages {
		elapsed := l.Elapsed.Round(time.Second).String()
		if l.Err != nil {
			rows = append(rows, []string{l.Language, "error", l.Err.Error(), elapsed})
			continue
		}
		for i, out := range l.Outputs {
			if i > 0 {
				elapsed = ""
			}
			rows = append(rows, []string{out.Language, out.Kind, out.Path, elapsed})
		}
	}
	return rows
}
