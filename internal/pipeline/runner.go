// Package pipeline runs a render job language by language: timing, content
// video, intro/outro wrap, vertical cut and subtitle sidecar.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/bobarin/narrator/internal/captions"
	"github.com/bobarin/narrator/internal/config"
	"github.com/bobarin/narrator/internal/lang"
	"github.com/bobarin/narrator/internal/models"
	"github.com/bobarin/narrator/internal/sections"
	"github.com/bobarin/narrator/internal/shorts"
	"github.com/bobarin/narrator/internal/timing"
	"github.com/bobarin/narrator/internal/video"
)

// Output kinds
const (
	KindVideo     = "video"
	KindContent   = "content"
	KindShorts    = "shorts"
	KindSubtitles = "subtitles"
)

// VideoMaker renders a timing track into a video file.
type VideoMaker interface {
	CreateVideo(ctx context.Context, req video.Request) error
}

// Wrapper adds the intro and outro around a content video.
type Wrapper interface {
	Wrap(ctx context.Context, contentVideo, contentAudio, output string) error
}

// Reflower derives the vertical cut from a landscape video.
type Reflower interface {
	ToShorts(ctx context.Context, req shorts.Request) error
}

// ImageFiller generates missing section images.
type ImageFiller interface {
	FillMissingSections(ctx context.Context, dir string, prompts map[string]string, have []string, aspectRatio string) ([]string, error)
}

// Job is one render request.
type Job struct {
	Languages         []string
	InputDir          string
	ImagesDir         string // defaults to InputDir/images
	OutputDir         string
	ShortsMode        models.ShortsMode
	WrapIntroOutro    bool
	SecondaryLanguage string
	SectionPrompts    map[string]string
	ASSSidecar        bool

	// Progress, when set, receives frame progress for each language.
	Progress func(language string, done, total int)
}

// JobFromModel converts a queued render job.
func JobFromModel(j *models.RenderJob) Job {
	job := Job{
		Languages:      j.Languages,
		InputDir:       j.InputDir,
		OutputDir:      j.OutputDir,
		ShortsMode:     j.ShortsMode,
		WrapIntroOutro: j.WrapIntroOutro,
		SectionPrompts: j.SectionPrompts(),
		ASSSidecar:     j.WantsASS(),
	}
	if j.ImagesDir != nil {
		job.ImagesDir = *j.ImagesDir
	}
	if j.SecondaryLanguage != nil {
		job.SecondaryLanguage = *j.SecondaryLanguage
	}
	return job
}

// Output is one file a language produced.
type Output struct {
	Language string
	Kind     string
	Format   models.Format
	Path     string
}

// LanguageResult is the outcome for one language.
type LanguageResult struct {
	Language string
	Outputs  []Output
	Err      error
	Elapsed  time.Duration
}

// Result collects every language of a job.
type Result struct {
	Languages []LanguageResult
}

// Outputs returns every output of the successful languages.
func (r Result) Outputs() []Output {
	var out []Output
	for _, l := range r.Languages {
		if l.Err == nil {
			out = append(out, l.Outputs...)
		}
	}
	return out
}

// Err joins the errors of the failed languages, or returns nil.
func (r Result) Err() error {
	var errs []error
	for _, l := range r.Languages {
		if l.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", l.Language, l.Err))
		}
	}
	return errors.Join(errs...)
}

// Deps are the collaborators of a Runner. Wrapper, Reflower and Images may
// be nil when the job never needs them.
type Deps struct {
	Source   timing.Source
	Videos   VideoMaker
	Wrapper  Wrapper
	Reflower Reflower
	Images   ImageFiller
}

type Runner struct {
	deps   Deps
	style  config.Style
	logger *slog.Logger
}

func NewRunner(deps Deps, style config.Style, logger *slog.Logger) *Runner {
	return &Runner{deps: deps, style: style, logger: logger}
}

// Run processes the job's languages one after another. A failing or
// panicking language is recorded and the next one still runs.
func (r *Runner) Run(ctx context.Context, job Job) Result {
	var result Result
	for _, language := range job.Languages {
		if err := ctx.Err(); err != nil {
			result.Languages = append(result.Languages, LanguageResult{Language: language, Err: err})
			continue
		}

		start := time.Now()
		outputs, err := r.safeRun(ctx, job, language)
		lr := LanguageResult{Language: language, Outputs: outputs, Err: err, Elapsed: time.Since(start)}
		result.Languages = append(result.Languages, lr)

		if err != nil {
			r.logger.Error("language failed", "language", language, "error", err, "elapsed", lr.Elapsed.Round(time.Second))
		} else {
			r.logger.Info("language complete", "language", language, "outputs", len(outputs), "elapsed", lr.Elapsed.Round(time.Second))
		}
	}
	return result
}

func (r *Runner) safeRun(ctx context.Context, job Job, language string) (outputs []Output, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("panic while rendering language", "language", language, "panic", rec, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return r.runLanguage(ctx, job, language)
}

func (r *Runner) runLanguage(ctx context.Context, job Job, language string) ([]Output, error) {
	logger := r.logger.With("language", language)
	in := timing.InputFor(job.InputDir, language)

	track, err := r.deps.Source.Timings(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("failed to load timings: %w", err)
	}
	if err := timing.RequireFile("audio", in.AudioPath); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(job.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	imagesDir := job.ImagesDir
	if imagesDir == "" {
		imagesDir = filepath.Join(job.InputDir, "images")
	}
	r.fillImages(ctx, logger, imagesDir, language, job.SectionPrompts)

	reference := r.loadReference(logger, job, language)

	var progress func(done, total int)
	if job.Progress != nil {
		progress = func(done, total int) { job.Progress(language, done, total) }
	}

	finalPath := outputPath(job.OutputDir, KindVideo, language, "mp4")
	contentPath := finalPath
	wrap := job.WrapIntroOutro && r.deps.Wrapper != nil
	if wrap {
		contentPath = outputPath(job.OutputDir, KindContent, language, "mp4")
	}

	err = r.deps.Videos.CreateVideo(ctx, video.Request{
		Track:      track,
		AudioPath:  in.AudioPath,
		OutputPath: contentPath,
		ImagesDir:  imagesDir,
		Language:   language,
		Format:     models.FormatStandard,
		Reference:  reference,
		Progress:   progress,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render content video: %w", err)
	}

	var outputs []Output
	if wrap {
		outputs = append(outputs, Output{Language: language, Kind: KindContent, Format: models.FormatStandard, Path: contentPath})
		if err := r.deps.Wrapper.Wrap(ctx, contentPath, in.AudioPath, finalPath); err != nil {
			return outputs, fmt.Errorf("failed to wrap intro/outro: %w", err)
		}
	}
	outputs = append(outputs, Output{Language: language, Kind: KindVideo, Format: models.FormatStandard, Path: finalPath})

	shortsPath := outputPath(job.OutputDir, KindShorts, language, "mp4")
	switch job.ShortsMode {
	case models.ShortsModeReflow:
		if r.deps.Reflower == nil {
			return outputs, fmt.Errorf("shorts reflow requested but not configured")
		}
		err := r.deps.Reflower.ToShorts(ctx, shorts.Request{Source: contentPath, Output: shortsPath, Timing: track, ContentOnly: true})
		if err != nil {
			return outputs, fmt.Errorf("failed to reflow shorts: %w", err)
		}
		outputs = append(outputs, Output{Language: language, Kind: KindShorts, Format: models.FormatShorts, Path: shortsPath})

	case models.ShortsModeRender:
		err := r.deps.Videos.CreateVideo(ctx, video.Request{
			Track:      track,
			AudioPath:  in.AudioPath,
			OutputPath: shortsPath,
			ImagesDir:  imagesDir,
			Language:   language,
			Format:     models.FormatShorts,
			Reference:  reference,
			Progress:   progress,
		})
		if err != nil {
			return outputs, fmt.Errorf("failed to render shorts: %w", err)
		}
		outputs = append(outputs, Output{Language: language, Kind: KindShorts, Format: models.FormatShorts, Path: shortsPath})
	}

	if job.ASSSidecar {
		assPath := outputPath(job.OutputDir, KindSubtitles, language, "ass")
		if err := r.writeSubtitles(track, language, assPath); err != nil {
			// The sidecar is optional; the videos are already published.
			logger.Warn("failed to write subtitle sidecar", "path", assPath, "error", err)
		} else {
			outputs = append(outputs, Output{Language: language, Kind: KindSubtitles, Format: models.FormatStandard, Path: assPath})
		}
	}

	return outputs, nil
}

func (r *Runner) fillImages(ctx context.Context, logger *slog.Logger, dir, language string, prompts map[string]string) {
	if r.deps.Images == nil || len(prompts) == 0 {
		return
	}
	cache := sections.NewImageCache(dir, language, 0, logger)
	defer cache.Close()

	written, err := r.deps.Images.FillMissingSections(ctx, dir, prompts, cache.Available(), "16:9")
	if err != nil {
		logger.Warn("section image generation stopped", "error", err)
	}
	if len(written) > 0 {
		logger.Info("generated section images", "sections", strings.Join(written, ","))
	}
}

// loadReference reads the secondary-language track from its timing file. A
// missing reference only disables the subtitle band.
func (r *Runner) loadReference(logger *slog.Logger, job Job, language string) *models.Track {
	if job.SecondaryLanguage == "" || job.SecondaryLanguage == language {
		return nil
	}
	ref, err := timing.Load(timing.InputFor(job.InputDir, job.SecondaryLanguage).TimingPath)
	if err != nil {
		logger.Warn("secondary language track unavailable", "secondary", job.SecondaryLanguage, "error", err)
		return nil
	}
	return ref
}

func (r *Runner) writeSubtitles(track *models.Track, language, path string) error {
	grouper := captions.Grouper{MaxWordsPerLine: r.style.WordsPerLine(models.FormatStandard), MaxLines: r.style.MaxLines}
	w, h := models.FormatStandard.Size()
	return captions.WriteASS(path, grouper.Group(track), captions.ASSStyle{
		PlayResX:  w,
		PlayResY:  h,
		FontName:  fontName(r.style.FontFile(lang.Base(language))),
		FontSize:  int(r.style.FontSizeFor(models.FormatStandard)),
		Outline:   r.style.OutlineThickness,
		MarginV:   r.style.SecondaryMargin,
		Text:      r.style.TextColor.RGBA,
		OutlineC:  r.style.OutlineColor.RGBA,
		Highlight: r.style.HighlightColor.RGBA,
	})
}

// fontName turns "NotoSansKR-Regular.ttf" into "NotoSansKR".
func fontName(file string) string {
	name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	if base, _, ok := strings.Cut(name, "-"); ok {
		return base
	}
	return name
}

func outputPath(dir, kind, language, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.%s", kind, language, ext))
}
