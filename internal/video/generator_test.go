package video

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bobarin/narrator/internal/config"
	"github.com/bobarin/narrator/internal/logging"
	"github.com/bobarin/narrator/internal/models"
	"github.com/bobarin/narrator/internal/render"
	"github.com/bobarin/narrator/internal/timing"
)

type fakeMedia struct {
	durationMs int64
	encodeErr  error
	remuxErr   error

	framesSeen int
	encoded    bool
	remuxed    bool
}

func (f *fakeMedia) GetMediaDuration(context.Context, string) (int64, error) {
	return f.durationMs, nil
}

func (f *fakeMedia) EncodeFrameSequence(_ context.Context, pattern string, _ int, _ string, output string) error {
	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(pattern), "frame_*.jpg"))
	f.framesSeen = len(matches)
	f.encoded = true
	if f.encodeErr != nil {
		return f.encodeErr
	}
	return os.WriteFile(output, []byte("h264"), 0644)
}

func (f *fakeMedia) RemuxWithAudio(_ context.Context, _, _, output string) error {
	f.remuxed = true
	if f.remuxErr != nil {
		return f.remuxErr
	}
	return os.WriteFile(output, []byte("remuxed"), 0644)
}

func setup(t *testing.T, media *fakeMedia) (*Generator, Request, string) {
	t.Helper()
	root := t.TempDir()
	audio := filepath.Join(root, "speech_en.mp3")
	if err := os.WriteFile(audio, []byte("mp3"), 0644); err != nil {
		t.Fatal(err)
	}
	work := filepath.Join(root, "tmp")

	gen := NewGenerator(media, Options{
		FPS:       10,
		BatchSize: 2,
		TempDir:   work,
		FontDir:   filepath.Join(root, "fonts"),
		Style:     config.DefaultStyle(),
	}, logging.Discard())

	track := timing.NewTrack([]models.WordTiming{
		{Word: "__MARK_intro_start__", StartMs: 0, EndMs: 0},
		{Word: "hello", StartMs: 0, EndMs: 150},
		{Word: "world", StartMs: 150, EndMs: 300},
		{Word: "__MARK_intro_end__", StartMs: 300, EndMs: 300},
	})
	req := Request{
		Track:      track,
		AudioPath:  audio,
		OutputPath: filepath.Join(root, "out", "video_en.mp4"),
		ImagesDir:  filepath.Join(root, "images"),
		Language:   "en",
	}
	return gen, req, work
}

func TestCreateVideoPublishesAndCleansUp(t *testing.T) {
	media := &fakeMedia{durationMs: 300}
	gen, req, work := setup(t, media)

	var calls, lastTotal int
	req.Progress = func(done, total int) { calls++; lastTotal = total }

	if err := gen.CreateVideo(context.Background(), req); err != nil {
		t.Fatalf("CreateVideo: %v", err)
	}
	if media.framesSeen != 3 || calls != 3 || lastTotal != 3 {
		t.Errorf("frames=%d progress calls=%d total=%d, want 3", media.framesSeen, calls, lastTotal)
	}
	if media.remuxed {
		t.Error("fallback should not run when the primary encoder succeeds")
	}
	data, err := os.ReadFile(req.OutputPath)
	if err != nil || string(data) != "h264" {
		t.Fatalf("published output = %q, %v", data, err)
	}
	leftovers, _ := filepath.Glob(filepath.Join(work, "narrator-*"))
	if len(leftovers) != 0 {
		t.Errorf("work dirs left behind: %v", leftovers)
	}
}

func TestCreateVideoFallsBackToMJPEG(t *testing.T) {
	media := &fakeMedia{durationMs: 200, encodeErr: errors.New("libx264 missing")}
	gen, req, _ := setup(t, media)

	if err := gen.CreateVideo(context.Background(), req); err != nil {
		t.Fatalf("CreateVideo: %v", err)
	}
	if !media.encoded || !media.remuxed {
		t.Errorf("expected both strategies to run: %+v", media)
	}
	if data, _ := os.ReadFile(req.OutputPath); string(data) != "remuxed" {
		t.Errorf("expected fallback output, got %q", data)
	}
}

func TestCreateVideoAllEncodersFail(t *testing.T) {
	media := &fakeMedia{durationMs: 200, encodeErr: errors.New("first"), remuxErr: errors.New("second")}
	gen, req, work := setup(t, media)

	err := gen.CreateVideo(context.Background(), req)
	var failure *models.EncodingFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected EncodingFailure, got %v", err)
	}
	if len(failure.Attempts) != 2 || !strings.Contains(err.Error(), "second") {
		t.Errorf("unexpected attempts %v", failure.Attempts)
	}
	if _, statErr := os.Stat(req.OutputPath); !os.IsNotExist(statErr) {
		t.Error("no output should be published on failure")
	}
	if leftovers, _ := filepath.Glob(filepath.Join(work, "narrator-*")); len(leftovers) != 0 {
		t.Errorf("work dirs left behind: %v", leftovers)
	}
}

func TestCreateVideoMissingAudio(t *testing.T) {
	gen, req, _ := setup(t, &fakeMedia{durationMs: 200})
	req.AudioPath = filepath.Join(t.TempDir(), "missing.mp3")
	if err := gen.CreateVideo(context.Background(), req); !models.IsMissingInput(err) {
		t.Errorf("expected MissingInputError, got %v", err)
	}
}

func TestCreateVideoCancelled(t *testing.T) {
	gen, req, _ := setup(t, &fakeMedia{durationMs: 300})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := gen.CreateVideo(ctx, req); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestFrameCountAndTime(t *testing.T) {
	tests := []struct {
		durationMs int64
		fps        int
		want       int
	}{
		{1000, 30, 30},
		{1001, 30, 31},
		{33, 30, 1},
		{60000, 30, 1800},
	}
	for _, tt := range tests {
		if got := FrameCount(tt.durationMs, tt.fps); got != tt.want {
			t.Errorf("FrameCount(%d, %d) = %d, want %d", tt.durationMs, tt.fps, got, tt.want)
		}
	}
	if FrameTime(45, 30) != 1500 {
		t.Errorf("FrameTime(45, 30) = %d", FrameTime(45, 30))
	}
}

func TestActiveLookupIsHalfOpen(t *testing.T) {
	segments := []models.CaptionSegment{
		{Words: []models.WordTiming{{Word: "a", StartMs: 0, EndMs: 100}, {Word: "b", StartMs: 200, EndMs: 300}}, Indexes: []int{1, 2}, StartMs: 0, EndMs: 400},
		{Words: []models.WordTiming{{Word: "c", StartMs: 400, EndMs: 500}}, Indexes: []int{4}, StartMs: 400, EndMs: 500},
	}

	if SegmentAt(segments, 400) != 1 || SegmentAt(segments, 399) != 0 || SegmentAt(segments, 500) != -1 {
		t.Error("segment lookup should use [start, end)")
	}
	if got := ActiveWord(&segments[0], 100); got != render.NoActiveWord {
		t.Errorf("word end is exclusive, got %d", got)
	}
	if got := ActiveWord(&segments[0], 150); got != render.NoActiveWord {
		t.Errorf("pause should have no active word, got %d", got)
	}
	if got := ActiveWord(&segments[0], 250); got != 2 {
		t.Errorf("ActiveWord = %d, want 2", got)
	}
}
