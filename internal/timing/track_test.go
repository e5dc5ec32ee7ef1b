package timing

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bobarin/narrator/internal/models"
)

func TestParseMarker(t *testing.T) {
	tests := []struct {
		word    string
		ok      bool
		kind    models.MarkerKind
		section string
	}{
		{"__MARK_ocean_start__", true, models.MarkerStart, "ocean"},
		{"__MARK_ocean_end__", true, models.MarkerEnd, "ocean"},
		{"alpha_start", true, models.MarkerStart, "alpha"},
		{"deep_sea_end", true, models.MarkerEnd, "deep_sea"},
		{"start", false, 0, ""},
		{"_start", false, 0, ""},
		{"hello", false, 0, ""},
		{"end.", false, 0, ""},
	}

	for _, tt := range tests {
		kind, section, ok := ParseMarker(tt.word)
		if ok != tt.ok {
			t.Errorf("ParseMarker(%q) ok = %v, want %v", tt.word, ok, tt.ok)
			continue
		}
		if ok && (kind != tt.kind || section != tt.section) {
			t.Errorf("ParseMarker(%q) = (%v, %q), want (%v, %q)", tt.word, kind, section, tt.kind, tt.section)
		}
	}
}

func TestMarkerTokenRoundTrip(t *testing.T) {
	kind, section, ok := ParseMarker(MarkerToken(models.MarkerEnd, "city"))
	if !ok || kind != models.MarkerEnd || section != "city" {
		t.Errorf("unexpected parse of canonical token: %v %q %v", kind, section, ok)
	}
}

func TestStripMarkers(t *testing.T) {
	got := StripMarkers("__MARK_a_start__ Hallo  Welt b_end")
	if got != "Hallo Welt" {
		t.Errorf("StripMarkers = %q", got)
	}
}

func TestNewTrackRemovesOverlap(t *testing.T) {
	track := NewTrack([]models.WordTiming{
		{Word: "two", StartMs: 300, EndMs: 700},
		{Word: "one", StartMs: 0, EndMs: 450},
		{Word: "__MARK_x_start__", StartMs: 320, EndMs: 320},
		{Word: "three", StartMs: 650, EndMs: 900},
	})

	words, _ := track.Spoken()
	if len(words) != 3 {
		t.Fatalf("expected 3 spoken words, got %d", len(words))
	}
	for i := 0; i+1 < len(words); i++ {
		if words[i].EndMs > words[i+1].StartMs {
			t.Errorf("word %q ends at %d after next start %d", words[i].Word, words[i].EndMs, words[i+1].StartMs)
		}
	}
	if words[0].EndMs != 300 {
		t.Errorf("expected first word clipped to 300, got %d", words[0].EndMs)
	}
	if len(track.Markers) != 1 || track.Markers[0].Index != 2 {
		t.Errorf("unexpected markers: %+v", track.Markers)
	}
}

func TestMarkerTimes(t *testing.T) {
	track := NewTrack([]models.WordTiming{
		{Word: "a_start", StartMs: 100, EndMs: 120},
		{Word: "a_end", StartMs: 900, EndMs: 950},
	})
	if track.Markers[0].TimeMs != 100 {
		t.Errorf("start marker should use start_time, got %d", track.Markers[0].TimeMs)
	}
	if track.Markers[1].TimeMs != 950 {
		t.Errorf("end marker should use end_time, got %d", track.Markers[1].TimeMs)
	}
}

func TestTrimToCap(t *testing.T) {
	var entries []models.WordTiming
	for start := int64(0); start < 90000; start += 1000 {
		entries = append(entries, models.WordTiming{Word: "w", StartMs: start + 500, EndMs: start + 1400})
	}
	trimmed := TrimToCap(NewTrack(entries), models.ShortsMaxDurationMs)

	last := trimmed.Entries[len(trimmed.Entries)-1]
	if last.EndMs > 60000 {
		t.Errorf("last entry ends at %d, want <= 60000", last.EndMs)
	}
	if last.StartMs != 59500 || last.EndMs != 60000 {
		t.Errorf("straddling word should be clipped, got %+v", last)
	}
	for _, w := range trimmed.Entries {
		if w.StartMs >= 60000 {
			t.Errorf("entry starting at %d should have been dropped", w.StartMs)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "timings_en.json"))
	if !models.IsMissingInput(err) {
		t.Fatalf("expected MissingInputError, got %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timings_en.json")
	in := []models.WordTiming{
		{Word: "__MARK_intro_start__", StartMs: 0, EndMs: 0},
		{Word: "Hello", StartMs: 0, EndMs: 480},
		{Word: "there", StartMs: 500, EndMs: 1000},
	}
	if err := Save(path, in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	track, err := FileSource{}.Timings(context.Background(), Input{TimingPath: path})
	if err != nil {
		t.Fatalf("Timings: %v", err)
	}
	if len(track.Entries) != 3 || len(track.Markers) != 1 {
		t.Fatalf("unexpected track: %+v", track)
	}
	first, last, ok := Bounds(track)
	if !ok || first != 0 || last != 1000 {
		t.Errorf("Bounds = %d, %d, %v", first, last, ok)
	}
}

func TestLoadFloatTimes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timings.json")
	data := `[{"word":"hi","start_time":10.4,"end_time":250.6,"duration":240.2}]`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	track, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if track.Entries[0].StartMs != 10 || track.Entries[0].EndMs != 251 {
		t.Errorf("unexpected rounding: %+v", track.Entries[0])
	}
}

func TestRequireFile(t *testing.T) {
	in := InputFor(t.TempDir(), "de")
	if filepath.Base(in.AudioPath) != "speech_de.mp3" || filepath.Base(in.TimingPath) != "timings_de.json" {
		t.Errorf("unexpected paths: %+v", in)
	}
	if err := RequireFile("audio", in.AudioPath); !models.IsMissingInput(err) {
		t.Errorf("expected MissingInputError, got %v", err)
	}
}
