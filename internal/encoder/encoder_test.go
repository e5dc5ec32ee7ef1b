package encoder

import (
	"context"
	"errors"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bobarin/narrator/internal/logging"
)

func step(name string, err error, calls *[]string) Strategy {
	return Func{Label: name, Fn: func(context.Context) error {
		*calls = append(*calls, name)
		return err
	}}
}

func TestLadderStopsAtFirstSuccess(t *testing.T) {
	var calls []string
	l := Ladder{Logger: logging.Discard(), Strategies: []Strategy{
		step("primary", errors.New("boom"), &calls),
		step("fallback", nil, &calls),
		step("never", nil, &calls),
	}}

	name, attempts := l.Run(context.Background())
	if name != "fallback" || attempts != nil {
		t.Fatalf("Run = %q, %v", name, attempts)
	}
	if strings.Join(calls, ",") != "primary,fallback" {
		t.Errorf("calls = %v", calls)
	}
}

func TestLadderCollectsEveryFailure(t *testing.T) {
	var calls []string
	first := errors.New("first")
	l := Ladder{Logger: logging.Discard(), Strategies: []Strategy{
		step("a", first, &calls),
		step("b", errors.New("second"), &calls),
	}}

	name, attempts := l.Run(context.Background())
	if name != "" || len(attempts) != 2 {
		t.Fatalf("Run = %q, %v", name, attempts)
	}
	if !errors.Is(attempts[0], first) || !strings.HasPrefix(attempts[1].Error(), "b: ") {
		t.Errorf("unexpected attempt errors %v", attempts)
	}
}

func TestLadderVerifyFailureFallsThrough(t *testing.T) {
	var calls []string
	verified := 0
	l := Ladder{
		Logger:     logging.Discard(),
		Strategies: []Strategy{step("empty-output", nil, &calls), step("good", nil, &calls)},
		Verify: func() error {
			verified++
			if verified == 1 {
				return errors.New("output is empty")
			}
			return nil
		},
	}

	if name, _ := l.Run(context.Background()); name != "good" {
		t.Errorf("expected verify failure to fall through, got %q", name)
	}
}

func TestLadderHonoursCancellation(t *testing.T) {
	var calls []string
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, attempts := Ladder{Logger: logging.Discard(), Strategies: []Strategy{step("a", nil, &calls)}}.Run(ctx)
	if len(calls) != 0 || len(attempts) != 1 || !errors.Is(attempts[0], context.Canceled) {
		t.Errorf("calls=%v attempts=%v", calls, attempts)
	}
}

type recordingEncoder struct {
	pattern, audio, output string
	fps                    int
	aviSize                int64
	err                    error
}

func (r *recordingEncoder) EncodeFrameSequence(_ context.Context, pattern string, fps int, audio, output string) error {
	r.pattern, r.fps, r.audio, r.output = pattern, fps, audio, output
	return r.err
}

func (r *recordingEncoder) RemuxWithAudio(_ context.Context, video, audio, output string) error {
	info, err := os.Stat(video)
	if err != nil {
		return err
	}
	r.aviSize = info.Size()
	header := make([]byte, 4)
	f, err := os.Open(video)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Read(header); err != nil {
		return err
	}
	if string(header) != "RIFF" {
		return errors.New("not an AVI container")
	}
	r.audio, r.output = audio, output
	return os.WriteFile(output, []byte("mp4"), 0644)
}

func writeFrames(t *testing.T, dir string, n int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 8))
	for i := 0; i < n; i++ {
		f, err := os.Create(FramePath(dir, i))
		if err != nil {
			t.Fatal(err)
		}
		if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 90}); err != nil {
			t.Fatal(err)
		}
		f.Close()
	}
}

func TestFFmpegSequenceUsesFramePattern(t *testing.T) {
	rec := &recordingEncoder{}
	s := FFmpegSequence{Encoder: rec, FrameDir: "/work", FPS: 30, AudioPath: "a.mp3", Output: "o.mp4"}
	if err := s.Attempt(context.Background()); err != nil {
		t.Fatal(err)
	}
	if rec.pattern != filepath.Join("/work", "frame_%06d.jpg") || rec.fps != 30 {
		t.Errorf("unexpected call %+v", rec)
	}
}

func TestMJPEGStreamWritesAVIAndRemuxes(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, 3)
	out := filepath.Join(dir, "out.mp4")

	rec := &recordingEncoder{}
	s := MJPEGStream{Remuxer: rec, FrameDir: dir, FrameCount: 3, Width: 16, Height: 8, FPS: 30, AudioPath: "a.mp3", Output: out}
	if err := s.Attempt(context.Background()); err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	if rec.aviSize == 0 || rec.output != out {
		t.Errorf("remux not called with a populated AVI: %+v", rec)
	}
	if _, err := os.Stat(filepath.Join(dir, "stream.avi")); !os.IsNotExist(err) {
		t.Error("intermediate AVI should be removed")
	}
}

func TestMJPEGStreamMissingFrame(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, 2)
	s := MJPEGStream{Remuxer: &recordingEncoder{}, FrameDir: dir, FrameCount: 3, Width: 16, Height: 8, FPS: 30}
	if err := s.Attempt(context.Background()); err == nil || !strings.Contains(err.Error(), "frame 2") {
		t.Errorf("expected missing frame error, got %v", err)
	}
}
