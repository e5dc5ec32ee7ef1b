package deps

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheck(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	if err := os.WriteFile(present, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	results := Check([]Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  "},
	})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !results[0].Available || results[0].Path != present || results[0].Detail != "" {
		t.Errorf("unexpected status for present binary: %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Errorf("expected missing binary to be unavailable with detail: %#v", results[1])
	}
	if results[2].Detail != "command not configured" {
		t.Errorf("unexpected detail for blank command: %q", results[2].Detail)
	}
}

func TestRequire(t *testing.T) {
	err := Require([]Requirement{
		{Name: "Needed", Command: "clearly-not-present-binary"},
		{Name: "Nice", Command: "also-not-present", Optional: true},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Needed") || strings.Contains(err.Error(), "Nice") {
		t.Errorf("unexpected error %q", err)
	}

	if err := Require([]Requirement{{Name: "Nice", Command: "also-not-present", Optional: true}}); err != nil {
		t.Errorf("optional requirement should not fail: %v", err)
	}
}
