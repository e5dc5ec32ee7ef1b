// Package video renders a narration's frames to disk and encodes them into
// the final video.
package video

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/bobarin/narrator/internal/captions"
	"github.com/bobarin/narrator/internal/config"
	"github.com/bobarin/narrator/internal/encoder"
	"github.com/bobarin/narrator/internal/fileutil"
	"github.com/bobarin/narrator/internal/models"
	"github.com/bobarin/narrator/internal/render"
	"github.com/bobarin/narrator/internal/sections"
	"github.com/bobarin/narrator/internal/timing"
)

const jpegQuality = 90

// Media is the ffmpeg surface the generator needs.
type Media interface {
	GetMediaDuration(ctx context.Context, path string) (int64, error)
	encoder.SequenceEncoder
	encoder.Remuxer
}

// Options holds the render settings shared by every job.
type Options struct {
	FPS           int
	BatchSize     int
	MaxImageWidth int
	TempDir       string
	FontDir       string
	Style         config.Style
}

// OptionsFromConfig copies the render settings out of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		FPS:           cfg.FPS,
		BatchSize:     cfg.FrameBatchSize,
		MaxImageWidth: cfg.MaxImageWidth,
		TempDir:       cfg.TempDir,
		FontDir:       cfg.FontDir,
		Style:         cfg.Style,
	}
}

// Request describes one video to render.
type Request struct {
	Track      *models.Track
	AudioPath  string
	OutputPath string
	ImagesDir  string
	Language   string
	Format     models.Format
	Reference  *models.Track // optional secondary-language track

	// Progress, when set, is called after each written frame.
	Progress func(done, total int)
}

type Generator struct {
	media    Media
	opts     Options
	logger   *slog.Logger
	resolver *sections.Resolver
}

func NewGenerator(media Media, opts Options, logger *slog.Logger) *Generator {
	if opts.FPS <= 0 {
		opts.FPS = 30
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	return &Generator{
		media:    media,
		opts:     opts,
		logger:   logger,
		resolver: sections.NewResolver(logger),
	}
}

// CreateVideo renders every frame of req into a job-scoped temp directory,
// encodes them with the first encoder strategy that works and publishes the
// result to req.OutputPath. The temp directory and the image cache are
// released however the call ends.
func (g *Generator) CreateVideo(ctx context.Context, req Request) error {
	if req.Track == nil {
		return &models.MissingInputError{Kind: "timing", Path: req.AudioPath}
	}
	if err := timing.RequireFile("audio", req.AudioPath); err != nil {
		return err
	}
	if req.Format == "" {
		req.Format = models.FormatStandard
	}

	durationMs, err := g.media.GetMediaDuration(ctx, req.AudioPath)
	if err != nil {
		return fmt.Errorf("failed to measure narration: %w", err)
	}
	if durationMs <= 0 {
		return fmt.Errorf("narration %s has no duration", req.AudioPath)
	}

	track := req.Track
	if req.Format == models.FormatShorts && durationMs > models.ShortsMaxDurationMs {
		g.logger.Info("capping vertical render", "duration_ms", durationMs, "cap_ms", models.ShortsMaxDurationMs)
		track = timing.TrimToCap(track, models.ShortsMaxDurationMs)
		durationMs = models.ShortsMaxDurationMs
	}

	total := FrameCount(durationMs, g.opts.FPS)

	workDir := filepath.Join(g.opts.TempDir, "narrator-"+uuid.New().String())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return fmt.Errorf("failed to create work dir: %w", err)
	}

	cache := sections.NewImageCache(req.ImagesDir, req.Language, g.opts.MaxImageWidth, g.logger)
	defer func() {
		cache.Close()
		if err := os.RemoveAll(workDir); err != nil {
			g.logger.Warn("failed to remove work dir", "dir", workDir, "error", err)
		}
		runtime.GC()
	}()

	ranges := sections.Ordered(g.resolver.Resolve(track, cache))
	grouper := captions.Grouper{MaxWordsPerLine: g.opts.Style.WordsPerLine(req.Format), MaxLines: g.opts.Style.MaxLines}
	segments := grouper.Group(track)

	renderer, err := render.New(render.Options{
		Format:   req.Format,
		Language: req.Language,
		FontDir:  g.opts.FontDir,
		Style:    g.opts.Style,
	}, g.logger)
	if err != nil {
		return err
	}
	defer renderer.Close()

	g.logger.Info("rendering frames",
		"language", req.Language, "format", req.Format, "frames", total, "fps", g.opts.FPS,
		"segments", len(segments), "sections", len(ranges), "work_dir", workDir)

	start := time.Now()
	if err := g.writeFrames(ctx, workDir, total, req, renderer, segments, ranges); err != nil {
		return err
	}
	g.logger.Info("frames written", "frames", total, "elapsed", time.Since(start).Round(time.Millisecond))

	width, height := renderer.Size()
	output := filepath.Join(workDir, "output.mp4")
	ladder := encoder.Ladder{
		Logger: g.logger,
		Strategies: []encoder.Strategy{
			encoder.FFmpegSequence{Encoder: g.media, FrameDir: workDir, FPS: g.opts.FPS, AudioPath: req.AudioPath, Output: output},
			encoder.MJPEGStream{Remuxer: g.media, FrameDir: workDir, FrameCount: total, Width: width, Height: height, FPS: g.opts.FPS, AudioPath: req.AudioPath, Output: output},
		},
		Verify: func() error {
			if !fileutil.NonEmpty(output) {
				return fmt.Errorf("encoder produced no output")
			}
			return nil
		},
	}
	if _, attempts := ladder.Run(ctx); attempts != nil {
		return &models.EncodingFailure{Attempts: attempts}
	}

	if err := fileutil.Publish(ctx, output, req.OutputPath); err != nil {
		return fmt.Errorf("failed to publish video: %w", err)
	}
	g.logger.Info("video published", "path", req.OutputPath)
	return nil
}

func (g *Generator) writeFrames(ctx context.Context, dir string, total int, req Request, renderer *render.Renderer, segments []models.CaptionSegment, ranges []models.SectionTimeRange) error {
	secondary := map[int]string{}

	for batchStart := 0; batchStart < total; batchStart += g.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		batchEnd := min(batchStart+g.opts.BatchSize, total)

		for i := batchStart; i < batchEnd; i++ {
			t := FrameTime(i, g.opts.FPS)
			frame := render.Frame{TimeMs: t, Sections: ranges, ActiveIndex: render.NoActiveWord}

			if k := SegmentAt(segments, t); k >= 0 {
				seg := &segments[k]
				frame.Segment = seg
				frame.ActiveIndex = ActiveWord(seg, t)
				if req.Reference != nil {
					text, ok := secondary[k]
					if !ok {
						text = captions.ReferenceText(req.Reference, seg.StartMs, seg.EndMs)
						secondary[k] = text
					}
					frame.Secondary = text
				}
			}

			if err := writeJPEG(encoder.FramePath(dir, i), renderer.Render(frame)); err != nil {
				return fmt.Errorf("failed to write frame %d: %w", i, err)
			}
			if req.Progress != nil {
				req.Progress(i+1, total)
			}
		}

		g.logger.Debug("frame batch written", "from", batchStart, "to", batchEnd-1, "total", total)
		runtime.GC()
	}
	return nil
}

func writeJPEG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// FrameCount is the number of frames covering durationMs at fps, rounded up.
func FrameCount(durationMs int64, fps int) int {
	return int((durationMs*int64(fps) + 999) / 1000)
}

// FrameTime is the timestamp of frame i in milliseconds.
func FrameTime(i, fps int) int64 {
	return int64(i) * 1000 / int64(fps)
}

// SegmentAt returns the index of the segment whose [start, end) holds t, or -1.
func SegmentAt(segments []models.CaptionSegment, t int64) int {
	for k := range segments {
		if segments[k].Contains(t) {
			return k
		}
	}
	return -1
}

// ActiveWord returns the track index of the word spoken at t, or
// render.NoActiveWord during a pause.
func ActiveWord(seg *models.CaptionSegment, t int64) int {
	for k, w := range seg.Words {
		if w.Contains(t) && k < len(seg.Indexes) {
			return seg.Indexes[k]
		}
	}
	return render.NoActiveWord
}
