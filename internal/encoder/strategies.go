package encoder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/icza/mjpeg"
)

// FramePattern is the printf pattern of rendered frame files.
const FramePattern = "frame_%06d.jpg"

// FramePath returns the file name of frame i inside dir.
func FramePath(dir string, i int) string {
	return filepath.Join(dir, fmt.Sprintf(FramePattern, i))
}

// SequenceEncoder turns a numbered image sequence plus audio into a video.
type SequenceEncoder interface {
	EncodeFrameSequence(ctx context.Context, framePattern string, fps int, audioPath, outputPath string) error
}

// Remuxer attaches audio to a silent video.
type Remuxer interface {
	RemuxWithAudio(ctx context.Context, videoPath, audioPath, outputPath string) error
}

// FFmpegSequence is the primary strategy: ffmpeg reads the frame files
// directly and encodes H.264 with AAC narration.
type FFmpegSequence struct {
	Encoder   SequenceEncoder
	FrameDir  string
	FPS       int
	AudioPath string
	Output    string
}

func (s FFmpegSequence) Name() string { return "ffmpeg-sequence" }

func (s FFmpegSequence) Attempt(ctx context.Context) error {
	return s.Encoder.EncodeFrameSequence(ctx, filepath.Join(s.FrameDir, FramePattern), s.FPS, s.AudioPath, s.Output)
}

// MJPEGStream writes the frames into a Motion JPEG AVI in Go, then remuxes
// it with the narration. The JPEG bytes are copied as is, one frame in
// memory at a time.
type MJPEGStream struct {
	Remuxer    Remuxer
	FrameDir   string
	FrameCount int
	Width      int
	Height     int
	FPS        int
	AudioPath  string
	Output     string
}

func (s MJPEGStream) Name() string { return "mjpeg-stream" }

func (s MJPEGStream) Attempt(ctx context.Context) error {
	if s.FrameCount <= 0 {
		return fmt.Errorf("no frames to encode")
	}

	avi := filepath.Join(s.FrameDir, "stream.avi")
	if err := s.writeAVI(ctx, avi); err != nil {
		_ = os.Remove(avi)
		return err
	}
	defer os.Remove(avi)

	return s.Remuxer.RemuxWithAudio(ctx, avi, s.AudioPath, s.Output)
}

func (s MJPEGStream) writeAVI(ctx context.Context, path string) error {
	writer, err := mjpeg.New(path, int32(s.Width), int32(s.Height), int32(s.FPS))
	if err != nil {
		return fmt.Errorf("failed to create mjpeg writer: %w", err)
	}

	for i := 0; i < s.FrameCount; i++ {
		if err := ctx.Err(); err != nil {
			writer.Close()
			return err
		}
		data, err := os.ReadFile(FramePath(s.FrameDir, i))
		if err != nil {
			writer.Close()
			return fmt.Errorf("failed to read frame %d: %w", i, err)
		}
		if err := writer.AddFrame(data); err != nil {
			writer.Close()
			return fmt.Errorf("failed to add frame %d: %w", i, err)
		}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize mjpeg stream: %w", err)
	}
	return nil
}
