package shorts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/bobarin/narrator/internal/encoder"
	"github.com/bobarin/narrator/internal/fileutil"
	"github.com/bobarin/narrator/internal/models"
	"github.com/bobarin/narrator/internal/services"
	"github.com/bobarin/narrator/internal/timing"
)

const (
	// edgeGapMs is the silence at either end that triggers a trim.
	edgeGapMs int64 = 500
	// edgeMarginMs is kept around the first and last spoken word.
	edgeMarginMs int64 = 200
)

// Media is the ffmpeg surface the engine needs.
type Media interface {
	Probe(ctx context.Context, path string) (services.ProbeResult, error)
	Run(ctx context.Context, op string, args []string) error
	TrimCopy(ctx context.Context, src, dst string, startMs, durationMs int64) error
}

// Request describes one vertical cut.
type Request struct {
	Source string
	Output string
	// Timing of the narration inside Source; used for edge trimming.
	Timing *models.Track
	// ContentOnly marks a Source that is already a content-only render. No
	// edge trimming is applied to it.
	ContentOnly bool
}

type Engine struct {
	media   Media
	fps     int
	tempDir string
	logger  *slog.Logger
}

func NewEngine(media Media, fps int, tempDir string, logger *slog.Logger) *Engine {
	if fps <= 0 {
		fps = 30
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Engine{media: media, fps: fps, tempDir: tempDir, logger: logger}
}

// Window is the part of the source that goes into the cut.
type Window struct {
	StartMs    int64
	DurationMs int64
}

// TrimWindow applies edge trimming (unless contentOnly) and the duration cap.
func TrimWindow(sourceMs int64, track *models.Track, contentOnly bool) Window {
	start, end := int64(0), sourceMs

	if !contentOnly && track != nil {
		if first, last, ok := timing.Bounds(track); ok {
			if first > edgeGapMs {
				start = first - edgeMarginMs
			}
			if sourceMs-last > edgeGapMs {
				end = last + edgeMarginMs
			}
		}
	}
	if end <= start {
		start, end = 0, sourceMs
	}

	return Window{StartMs: start, DurationMs: min(end-start, models.ShortsMaxDurationMs)}
}

// ToShorts writes a vertical, capped cut of req.Source to req.Output. The
// strategies run in order; only when none leaves a non-empty file does it
// return a *models.GeometryFailure.
func (e *Engine) ToShorts(ctx context.Context, req Request) error {
	if err := timing.RequireFile("video", req.Source); err != nil {
		return err
	}

	probe, err := e.media.Probe(ctx, req.Source)
	if err != nil {
		return fmt.Errorf("failed to probe source video: %w", err)
	}
	window := TrimWindow(probe.DurationMs(), req.Timing, req.ContentOnly)

	dstW, dstH := models.FormatShorts.Size()
	tmp := filepath.Join(e.tempDir, fmt.Sprintf("narrator-shorts-%s%s", uuid.New().String(), filepath.Ext(req.Output)))
	defer os.Remove(tmp)

	var strategies []encoder.Strategy
	if srcW, srcH, ok := probe.VideoSize(); ok {
		geometry, err := Layout(srcW, srcH, dstW, dstH)
		if err == nil {
			e.logger.Info("vertical layout",
				"source", fmt.Sprintf("%dx%d", srcW, srcH), "content", fmt.Sprintf("%dx%d", geometry.Width, geometry.Height),
				"cropped", geometry.Cropped(), "start_ms", window.StartMs, "duration_ms", window.DurationMs)
			strategies = append(strategies, encoder.Func{Label: "composed-layout", Fn: func(ctx context.Context) error {
				return e.media.Run(ctx, "shorts layout", composedArgs(req.Source, tmp, geometry, window, e.fps, probe.HasAudio()))
			}})
		} else {
			e.logger.Warn("cannot compute vertical layout", "error", err)
		}
	}
	strategies = append(strategies,
		encoder.Func{Label: "scale-pad", Fn: func(ctx context.Context) error {
			return e.media.Run(ctx, "shorts scale/pad", scalePadArgs(req.Source, tmp, dstW, dstH, window))
		}},
		encoder.Func{Label: "copy-source", Fn: func(ctx context.Context) error {
			err := e.media.TrimCopy(ctx, req.Source, tmp, window.StartMs, window.DurationMs)
			if err == nil {
				return nil
			}
			e.logger.Warn("trimmed stream copy failed, copying source unchanged", "error", err)
			return fileutil.CopyFile(req.Source, tmp)
		}},
	)

	ladder := encoder.Ladder{
		Logger:     e.logger,
		Strategies: strategies,
		Verify: func() error {
			if !fileutil.NonEmpty(tmp) {
				return fmt.Errorf("no output written")
			}
			return nil
		},
	}
	if _, attempts := ladder.Run(ctx); attempts != nil {
		return &models.GeometryFailure{Attempts: attempts}
	}

	if err := fileutil.Publish(ctx, tmp, req.Output); err != nil {
		return fmt.Errorf("failed to publish shorts video: %w", err)
	}
	e.logger.Info("shorts video published", "path", req.Output)
	return nil
}

func windowArgs(w Window) []string {
	return []string{"-ss", services.FormatSeconds(w.StartMs), "-t", services.FormatSeconds(w.DurationMs)}
}

func composedArgs(src, dst string, g Geometry, w Window, fps int, hasAudio bool) []string {
	args := []string{"-y"}
	args = append(args, windowArgs(w)...)
	args = append(args,
		"-i", src,
		"-filter_complex", "[0:v]"+g.Filter()+"[v]",
		"-map", "[v]",
	)
	if hasAudio {
		args = append(args, "-map", "0:a:0", "-c:a", "aac", "-b:a", "192k")
	}
	return append(args,
		"-c:v", "libx264",
		"-preset", "medium",
		"-b:v", "5000k",
		"-profile:v", "high",
		"-pix_fmt", "yuv420p",
		"-r", strconv.Itoa(fps),
		dst,
	)
}

func scalePadArgs(src, dst string, dstW, dstH int, w Window) []string {
	vf := fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1", dstW, dstH, dstW, dstH)
	args := []string{"-y"}
	args = append(args, windowArgs(w)...)
	return append(args,
		"-i", src,
		"-vf", vf,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		dst,
	)
}
