package app

import (
	"context"
	"testing"

	"github.com/bobarin/narrator/internal/config"
	"github.com/bobarin/narrator/internal/logging"
	"github.com/bobarin/narrator/internal/services"
	"github.com/bobarin/narrator/internal/timing"
)

func testConfig() *config.Config {
	return &config.Config{
		TimingSource:   config.TimingSourceFile,
		FFmpegBinary:   "ffmpeg",
		FFprobeBinary:  "ffprobe",
		AssetsDir:      "assets",
		TempDir:        "/tmp",
		FPS:            30,
		FrameBatchSize: 500,
		Style:          config.DefaultStyle(),
	}
}

func TestBuildWithoutOptionalServices(t *testing.T) {
	cfg := testConfig()
	c, err := Build(context.Background(), cfg, logging.Discard())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if c.Images != nil {
		t.Errorf("image provider built without an api key")
	}
	if _, ok := c.Source.(timing.FileSource); !ok {
		t.Errorf("source = %T, want FileSource", c.Source)
	}
	if c.Runner(cfg, logging.Discard()) == nil {
		t.Fatal("nil runner")
	}
}

func TestNewSource(t *testing.T) {
	cfg := testConfig()
	cfg.TimingSource = config.TimingSourceWhisper
	cfg.OpenAIKey = "sk-test"

	src, err := NewSource(cfg, logging.Discard())
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	w, ok := src.(*services.WhisperSource)
	if !ok || !w.SaveTimings {
		t.Errorf("source = %T", src)
	}

	cfg.TimingSource = "psychic"
	if _, err := NewSource(cfg, logging.Discard()); err == nil {
		t.Error("expected error for unknown source")
	}
}
