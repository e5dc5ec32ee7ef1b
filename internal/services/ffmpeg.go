package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Audio settings shared by every encode that carries narration.
const (
	audioCodec   = "aac"
	audioBitrate = "192k"
)

// FFmpegService wraps the ffmpeg and ffprobe binaries.
type FFmpegService struct {
	ffmpeg  string
	ffprobe string
	logger  *slog.Logger
}

func NewFFmpegService(ffmpegBinary, ffprobeBinary string, logger *slog.Logger) *FFmpegService {
	if strings.TrimSpace(ffmpegBinary) == "" {
		ffmpegBinary = "ffmpeg"
	}
	if strings.TrimSpace(ffprobeBinary) == "" {
		ffprobeBinary = "ffprobe"
	}
	return &FFmpegService{
		ffmpeg:  ffmpegBinary,
		ffprobe: ffprobeBinary,
		logger:  logger,
	}
}

// ---------------------------------------------------------------------------
// Probing
// ---------------------------------------------------------------------------

// ProbeResult is the decoded `ffprobe -show_format -show_streams` payload.
type ProbeResult struct {
	Streams []ProbeStream `json:"streams"`
	Format  ProbeFormat   `json:"format"`
}

type ProbeStream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	FrameRate  string `json:"r_frame_rate"`
	Duration   string `json:"duration"`
	SampleRate string `json:"sample_rate"`
}

type ProbeFormat struct {
	Filename   string `json:"filename"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	FormatName string `json:"format_name"`
}

// DurationMs returns the container duration in milliseconds, or 0 when unknown.
func (r ProbeResult) DurationMs() int64 {
	sec, err := strconv.ParseFloat(strings.TrimSpace(r.Format.Duration), 64)
	if err != nil || math.IsNaN(sec) || sec < 0 {
		return 0
	}
	return int64(math.Round(sec * 1000))
}

// VideoSize returns the dimensions of the first video stream.
func (r ProbeResult) VideoSize() (int, int, bool) {
	for _, s := range r.Streams {
		if strings.EqualFold(s.CodecType, "video") && s.Width > 0 && s.Height > 0 {
			return s.Width, s.Height, true
		}
	}
	return 0, 0, false
}

// FrameRate returns the first video stream's frame rate, or 0 when unknown.
func (r ProbeResult) FrameRate() float64 {
	for _, s := range r.Streams {
		if !strings.EqualFold(s.CodecType, "video") {
			continue
		}
		num, den, ok := strings.Cut(s.FrameRate, "/")
		n, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0
		}
		if !ok {
			return n
		}
		d, err := strconv.ParseFloat(den, 64)
		if err != nil || d == 0 {
			return 0
		}
		return n / d
	}
	return 0
}

// HasAudio reports whether the container carries an audio stream.
func (r ProbeResult) HasAudio() bool {
	for _, s := range r.Streams {
		if strings.EqualFold(s.CodecType, "audio") {
			return true
		}
	}
	return false
}

// Probe runs ffprobe against path and decodes its JSON output.
func (s *FFmpegService) Probe(ctx context.Context, path string) (ProbeResult, error) {
	if strings.TrimSpace(path) == "" {
		return ProbeResult{}, errors.New("ffprobe: empty path")
	}

	cmd := exec.CommandContext(ctx, s.ffprobe, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return ProbeResult{}, fmt.Errorf("ffprobe failed for %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}

	var result ProbeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return ProbeResult{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	return result, nil
}

// GetMediaDuration returns the duration of an audio or video file in milliseconds.
func (s *FFmpegService) GetMediaDuration(ctx context.Context, path string) (int64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}

	output, err := exec.CommandContext(ctx, s.ffprobe, args...).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration failed: %w", err)
	}

	var durationSec float64
	if _, err := fmt.Sscanf(strings.TrimSpace(string(output)), "%f", &durationSec); err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}

	return int64(math.Round(durationSec * 1000)), nil
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

// EncodeFrameSequence muxes a numbered JPEG sequence with the narration audio.
func (s *FFmpegService) EncodeFrameSequence(ctx context.Context, framePattern string, fps int, audioPath, outputPath string) error {
	return s.Run(ctx, "encode frame sequence", frameSequenceArgs(framePattern, fps, audioPath, outputPath))
}

func frameSequenceArgs(framePattern string, fps int, audioPath, outputPath string) []string {
	return []string{
		"-y",
		"-r", strconv.Itoa(fps),
		"-i", framePattern,
		"-i", audioPath,
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "23",
		// BT.709 tags so players do not guess the colour space
		"-color_trc", "1",
		"-colorspace", "1",
		"-color_primaries", "1",
		"-strict", "experimental",
		"-c:a", audioCodec,
		"-b:a", audioBitrate,
		"-pix_fmt", "yuv420p",
		"-shortest",
		outputPath,
	}
}

// RemuxWithAudio re-encodes a silent intermediate video and attaches audio.
func (s *FFmpegService) RemuxWithAudio(ctx context.Context, videoPath, audioPath, outputPath string) error {
	return s.Run(ctx, "remux audio", remuxArgs(videoPath, audioPath, outputPath))
}

func remuxArgs(videoPath, audioPath, outputPath string) []string {
	return []string{
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-c:a", audioCodec,
		"-b:a", audioBitrate,
		"-shortest",
		outputPath,
	}
}

// TrimCopy cuts [startMs, startMs+durationMs) out of src without re-encoding.
// A non-positive duration keeps everything after startMs.
func (s *FFmpegService) TrimCopy(ctx context.Context, src, dst string, startMs, durationMs int64) error {
	return s.Run(ctx, "trim copy", trimCopyArgs(src, dst, startMs, durationMs))
}

func trimCopyArgs(src, dst string, startMs, durationMs int64) []string {
	args := []string{"-y", "-ss", FormatSeconds(startMs), "-i", src}
	if durationMs > 0 {
		args = append(args, "-t", FormatSeconds(durationMs))
	}
	return append(args, "-c", "copy", dst)
}

// Run executes ffmpeg with args. The tail of stderr is attached to the error.
func (s *FFmpegService) Run(ctx context.Context, op string, args []string) error {
	s.logger.Debug("running ffmpeg", "op", op, "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, s.ffmpeg, append([]string{"-hide_banner", "-loglevel", "error"}, args...)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg %s failed: %w: %s", op, err, tail(stderr.String(), 600))
	}
	return nil
}

// FormatSeconds renders milliseconds as an ffmpeg seconds value.
func FormatSeconds(ms int64) string {
	return strconv.FormatFloat(float64(ms)/1000, 'f', 3, 64)
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
