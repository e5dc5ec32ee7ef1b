package main

import (
	"bytes"
	"errors"
	"image"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bobarin/narrator/internal/models"
	"github.com/bobarin/narrator/internal/pipeline"
)

func TestVersionCommand(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out.String(), "narrator dev") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRenderOptionsJob(t *testing.T) {
	dir := t.TempDir()
	opts := renderOptions{
		languages:  []string{"en", " ", "ko"},
		inputDir:   dir,
		outputDir:  "out/",
		shortsMode: "Reflow",
		noWrap:     true,
		ass:        true,
	}
	job, err := opts.job()
	if err != nil {
		t.Fatalf("job: %v", err)
	}
	if strings.Join(job.Languages, ",") != "en,ko" {
		t.Errorf("languages = %v", job.Languages)
	}
	if job.ShortsMode != models.ShortsModeReflow || job.WrapIntroOutro || !job.ASSSidecar {
		t.Errorf("job = %+v", job)
	}
	if job.OutputDir != "out" {
		t.Errorf("output dir = %q", job.OutputDir)
	}

	opts.shortsMode = "diagonal"
	if _, err := opts.job(); err == nil {
		t.Error("expected error for bad shorts mode")
	}
	opts.shortsMode = "off"
	opts.inputDir = dir + string(os.PathSeparator) + "missing"
	if _, err := opts.job(); err == nil {
		t.Error("expected error for missing input dir")
	}
}

func TestDefaultShortsPath(t *testing.T) {
	cases := map[string]string{
		"/out/video_en.mp4":   "/out/shorts_en.mp4",
		"/out/content_ko.mp4": "/out/shorts_ko.mp4",
		"clip.mov":            "shorts_clip.mov",
		"/tmp/raw":            "/tmp/shorts_raw.mp4",
	}
	for in, want := range cases {
		if got := defaultShortsPath(in); got != want {
			t.Errorf("defaultShortsPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSectionRows(t *testing.T) {
	rows := sectionRows([]models.SectionTimeRange{
		{Name: "intro", StartMs: 0, EndMs: 61500, Image: image.NewRGBA(image.Rect(0, 0, 640, 360))},
		{Name: "ocean", StartMs: 61500, EndMs: 70000},
	})
	if len(rows) != 2 {
		t.Fatalf("rows = %d", len(rows))
	}
	if rows[0][2] != "1:01.500" || rows[0][4] != "640x360" {
		t.Errorf("row 0 = %v", rows[0])
	}
	if rows[1][3] != "0:08.500" || rows[1][4] != "missing" {
		t.Errorf("row 1 = %v", rows[1])
	}
}

func TestResultRows(t *testing.T) {
	rows := resultRows(pipeline.Result{Languages: []pipeline.LanguageResult{
		{Language: "en", Elapsed: 3 * time.Second, Outputs: []pipeline.Output{
			{Language: "en", Kind: pipeline.KindVideo, Path: "/o/video_en.mp4"},
			{Language: "en", Kind: pipeline.KindShorts, Path: "/o/shorts_en.mp4"},
		}},
		{Language: "ko", Err: errors.New("missing audio")},
	}})
	if len(rows) != 3 {
		t.Fatalf("rows = %v", rows)
	}
	if rows[0][3] != "3s" || rows[1][3] != "" {
		t.Errorf("elapsed column = %q, %q", rows[0][3], rows[1][3])
	}
	if rows[2][1] != "error" || rows[2][2] != "missing audio" {
		t.Errorf("error row = %v", rows[2])
	}
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"x"}}, nil)
	if !strings.Contains(out, "A") || !strings.Contains(out, "x") {
		t.Errorf("table = %q", out)
	}
	if renderTable(nil, nil, nil) != "" {
		t.Error("empty headers should render nothing")
	}
}
