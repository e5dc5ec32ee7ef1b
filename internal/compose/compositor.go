// Package compose wraps a rendered content video with the optional intro
// and outro clips and a background music bed.
package compose

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/bobarin/narrator/internal/fileutil"
	"github.com/bobarin/narrator/internal/services"
)

const (
	musicFadeMs   = 1000
	silenceSource = "anullsrc=r=44100:cl=stereo"
)

// Media is the ffmpeg surface the compositor needs.
type Media interface {
	Probe(ctx context.Context, path string) (services.ProbeResult, error)
	Run(ctx context.Context, op string, args []string) error
}

// Assets locates the optional wrap files. Missing files are skipped.
type Assets struct {
	Intro string
	Outro string
	Music string
}

type Compositor struct {
	media   Media
	assets  Assets
	tempDir string
	logger  *slog.Logger
}

func NewCompositor(media Media, assets Assets, tempDir string, logger *slog.Logger) *Compositor {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Compositor{media: media, assets: assets, tempDir: tempDir, logger: logger}
}

// clip is one probed wrap input.
type clip struct {
	path       string
	durationMs int64
}

// plan is everything the filter graph needs.
type plan struct {
	content    string
	narration  string // separate narration file, or "" to use the content's audio
	intro      *clip
	outro      *clip
	music      string
	width      int
	height     int
	fps        float64
	contentMs  int64
	outputPath string
}

func (p plan) totalMs() int64 {
	total := p.contentMs
	if p.intro != nil {
		total += p.intro.durationMs
	}
	if p.outro != nil {
		total += p.outro.durationMs
	}
	return total
}

// Wrap writes intro + content + outro to output. Narration is heard only
// during the content span, and the music bed only during the intro and the
// outro. With neither intro nor outro present the content is published
// unchanged. contentAudio may be empty to use the content video's own audio.
func (c *Compositor) Wrap(ctx context.Context, contentVideo, contentAudio, output string) error {
	intro, err := c.probeClip(ctx, c.assets.Intro)
	if err != nil {
		return err
	}
	outro, err := c.probeClip(ctx, c.assets.Outro)
	if err != nil {
		return err
	}

	if intro == nil && outro == nil {
		c.logger.Info("no intro or outro assets, publishing content as is")
		return fileutil.Publish(ctx, contentVideo, output)
	}

	probe, err := c.media.Probe(ctx, contentVideo)
	if err != nil {
		return fmt.Errorf("failed to probe content video: %w", err)
	}
	w, h, ok := probe.VideoSize()
	if !ok {
		return fmt.Errorf("content video %s has no video stream", contentVideo)
	}
	fps := probe.FrameRate()
	if fps <= 0 {
		fps = 30
	}

	p := plan{
		content:   contentVideo,
		narration: contentAudio,
		intro:     intro,
		outro:     outro,
		width:     w,
		height:    h,
		fps:       fps,
		contentMs: probe.DurationMs(),
	}
	if fileutil.NonEmpty(c.assets.Music) {
		p.music = c.assets.Music
	} else {
		c.logger.Info("background music not found, intro and outro will be silent", "path", c.assets.Music)
	}

	tmp := filepath.Join(c.tempDir, fmt.Sprintf("narrator-wrap-%s%s", uuid.New().String(), filepath.Ext(output)))
	p.outputPath = tmp
	defer os.Remove(tmp)

	c.logger.Info("wrapping content with intro/outro",
		"intro", intro != nil, "outro", outro != nil, "music", p.music != "", "content_ms", p.contentMs, "total_ms", p.totalMs())

	if err := c.media.Run(ctx, "intro/outro wrap", buildArgs(p)); err != nil {
		return err
	}
	if err := fileutil.Publish(ctx, tmp, output); err != nil {
		return fmt.Errorf("failed to publish wrapped video: %w", err)
	}
	return nil
}

func (c *Compositor) probeClip(ctx context.Context, path string) (*clip, error) {
	if !fileutil.NonEmpty(path) {
		return nil, nil
	}
	probe, err := c.media.Probe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to probe %s: %w", path, err)
	}
	ms := probe.DurationMs()
	if ms <= 0 {
		c.logger.Warn("wrap clip has no duration, skipping", "path", path)
		return nil, nil
	}
	return &clip{path: path, durationMs: ms}, nil
}

// buildArgs lays out the inputs and the filter graph. Input order: the
// silence bed, content, intro, outro, narration, music.
func buildArgs(p plan) []string {
	total := p.totalMs()
	args := []string{"-y", "-f", "lavfi", "-t", services.FormatSeconds(total), "-i", silenceSource}
	next := 1

	contentIdx := next
	args = append(args, "-i", p.content)
	next++

	introIdx, outroIdx := -1, -1
	if p.intro != nil {
		introIdx = next
		args = append(args, "-i", p.intro.path)
		next++
	}
	if p.outro != nil {
		outroIdx = next
		args = append(args, "-i", p.outro.path)
		next++
	}

	narrationIdx := contentIdx
	if p.narration != "" {
		narrationIdx = next
		args = append(args, "-i", p.narration)
		next++
	}

	musicIdx := -1
	if p.music != "" {
		musicIdx = next
		args = append(args, "-stream_loop", "-1", "-i", p.music)
	}

	var graph []string

	// Video: every part normalised to the content geometry, then concatenated.
	var order []int
	if introIdx >= 0 {
		order = append(order, introIdx)
	}
	order = append(order, contentIdx)
	if outroIdx >= 0 {
		order = append(order, outroIdx)
	}
	var labels strings.Builder
	for i, idx := range order {
		graph = append(graph, fmt.Sprintf(
			"[%d:v]scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1,fps=%s,format=yuv420p[v%d]",
			idx, p.width, p.height, p.width, p.height, formatRate(p.fps), i))
		fmt.Fprintf(&labels, "[v%d]", i)
	}
	graph = append(graph, fmt.Sprintf("%sconcat=n=%d:v=1:a=0[vout]", labels.String(), len(order)))

	// Audio: silence bed for the full length, narration in the content span,
	// music under the intro and the outro.
	var introMs, outroMs int64
	if p.intro != nil {
		introMs = p.intro.durationMs
	}
	if p.outro != nil {
		outroMs = p.outro.durationMs
	}

	mix := []string{"[0:a]"}
	graph = append(graph, fmt.Sprintf("[%d:a]atrim=0:%s,asetpts=PTS-STARTPTS,adelay=%d:all=1[narr]",
		narrationIdx, services.FormatSeconds(p.contentMs), introMs))
	mix = append(mix, "[narr]")

	if musicIdx >= 0 {
		bed := introMs + outroMs
		parts := 0
		if introMs > 0 {
			parts++
		}
		if outroMs > 0 {
			parts++
		}
		split := fmt.Sprintf("[%d:a]atrim=0:%s,asetpts=PTS-STARTPTS", musicIdx, services.FormatSeconds(bed))
		if parts == 2 {
			graph = append(graph, split+",asplit=2[mi][mo]")
		} else if introMs > 0 {
			graph = append(graph, split+"[mi]")
		} else {
			graph = append(graph, split+"[mo]")
		}

		if introMs > 0 {
			fadeStart := max(introMs-musicFadeMs, 0)
			graph = append(graph, fmt.Sprintf("[mi]atrim=0:%s,afade=t=out:st=%s:d=%s[mintro]",
				services.FormatSeconds(introMs), services.FormatSeconds(fadeStart), services.FormatSeconds(min(musicFadeMs, introMs))))
			mix = append(mix, "[mintro]")
		}
		if outroMs > 0 {
			graph = append(graph, fmt.Sprintf("[mo]atrim=%s:%s,asetpts=PTS-STARTPTS,adelay=%d:all=1[moutro]",
				services.FormatSeconds(introMs), services.FormatSeconds(bed), introMs+p.contentMs))
			mix = append(mix, "[moutro]")
		}
	}
	graph = append(graph, fmt.Sprintf("%samix=inputs=%d:duration=first:normalize=0[aout]", strings.Join(mix, ""), len(mix)))

	return append(args,
		"-filter_complex", strings.Join(graph, ";"),
		"-map", "[vout]",
		"-map", "[aout]",
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "192k",
		"-t", services.FormatSeconds(total),
		p.outputPath,
	)
}

func formatRate(fps float64) string {
	if fps == math.Trunc(fps) {
		return fmt.Sprintf("%d", int(fps))
	}
	return fmt.Sprintf("%.3f", fps)
}
