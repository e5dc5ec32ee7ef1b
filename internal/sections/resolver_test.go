package sections

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/bobarin/narrator/internal/logging"
	"github.com/bobarin/narrator/internal/models"
	"github.com/bobarin/narrator/internal/timing"
)

func track(entries ...models.WordTiming) *models.Track {
	return timing.NewTrack(entries)
}

func mark(word string, at int64) models.WordTiming {
	return models.WordTiming{Word: word, StartMs: at, EndMs: at}
}

func word(w string, start, end int64) models.WordTiming {
	return models.WordTiming{Word: w, StartMs: start, EndMs: end}
}

func writePNG(t *testing.T, path string, w, h int, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestResolveInfersEndFromNextStart(t *testing.T) {
	tr := track(
		mark("alpha_start", 1000),
		word("one", 1000, 2000),
		mark("beta_start", 5000),
		word("two", 5000, 6000),
	)

	ranges := NewResolver(logging.Discard()).Resolve(tr, nil)

	alpha, ok := ranges["alpha"]
	if !ok {
		t.Fatal("alpha should resolve")
	}
	if alpha.StartMs != 1000 || alpha.EndMs != 5000 {
		t.Errorf("alpha = [%d, %d), want [1000, 5000)", alpha.StartMs, alpha.EndMs)
	}
	if _, ok := ranges["beta"]; ok {
		t.Error("beta has no end and no later marker; it must be excluded")
	}
}

func TestResolveCompletePair(t *testing.T) {
	tr := track(
		mark("__MARK_ocean_start__", 200),
		word("waves", 200, 900),
		models.WordTiming{Word: "__MARK_ocean_end__", StartMs: 900, EndMs: 950},
	)
	ranges := NewResolver(logging.Discard()).Resolve(tr, nil)
	if got := ranges["ocean"]; got.StartMs != 200 || got.EndMs != 950 {
		t.Errorf("ocean = [%d, %d)", got.StartMs, got.EndMs)
	}
}

func TestResolveInfersStartFromPreviousEnd(t *testing.T) {
	tr := track(
		mark("a_start", 0),
		word("x", 0, 1000),
		mark("a_end", 1000),
		word("y", 1100, 3000),
		mark("b_end", 3000),
		mark("c_end", 4000),
	)
	ranges := NewResolver(logging.Discard()).Resolve(tr, nil)

	b := ranges["b"]
	if b.StartMs != 1000 || b.EndMs != 3000 {
		t.Errorf("b = [%d, %d), want [1000, 3000)", b.StartMs, b.EndMs)
	}
	c := ranges["c"]
	if c.StartMs != 3000 || c.EndMs != 4000 {
		t.Errorf("c = [%d, %d), want [3000, 4000)", c.StartMs, c.EndMs)
	}
}

func TestResolveDropsOrphanEnd(t *testing.T) {
	tr := track(mark("solo_end", 500), word("w", 0, 500))
	if ranges := NewResolver(logging.Discard()).Resolve(tr, nil); len(ranges) != 0 {
		t.Errorf("expected no ranges, got %v", ranges)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	tr := track(
		mark("a_start", 0), word("x", 0, 500), mark("b_start", 800),
		word("y", 800, 1500), mark("b_end", 1500), mark("c_end", 2000),
	)
	r := NewResolver(logging.Discard())
	first := r.Resolve(tr, nil)
	second := r.Resolve(tr, nil)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("resolve not idempotent: %v vs %v", first, second)
	}
}

func TestResolveAttachesImagesWithFallback(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "city_en.png"), 40, 20, color.RGBA{200, 0, 0, 255})
	writePNG(t, filepath.Join(dir, "forest_de.png"), 40, 20, color.RGBA{0, 200, 0, 255})
	writePNG(t, filepath.Join(dir, "forest_en.png"), 40, 20, color.RGBA{0, 0, 200, 255})
	writePNG(t, filepath.Join(dir, "unmarked_en.png"), 40, 20, color.RGBA{9, 9, 9, 255})

	tr := track(
		mark("city_start", 0), word("a", 0, 900), mark("city_end", 900),
		mark("forest_start", 1000), word("b", 1000, 1900), mark("forest_end", 1900),
	)

	cache := NewImageCache(dir, "de-DE", 1600, logging.Discard())
	defer cache.Close()
	ranges := NewResolver(logging.Discard()).Resolve(tr, cache)

	if len(ranges) != 2 {
		t.Fatalf("expected 2 ranges, got %d", len(ranges))
	}
	if _, ok := ranges["unmarked"]; ok {
		t.Error("section without markers must be dropped")
	}
	city := ranges["city"].Image
	if city == nil {
		t.Fatal("city should fall back to the en image")
	}
	if r, _, _, _ := city.At(1, 1).RGBA(); r>>8 != 200 {
		t.Errorf("city image has wrong content")
	}
	forest := ranges["forest"].Image
	if _, g, _, _ := forest.At(1, 1).RGBA(); g>>8 != 200 {
		t.Errorf("forest should use the localized de image")
	}
}

func TestImageCacheDownscalesAndCloses(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "wide_en.png"), 400, 100, color.RGBA{1, 2, 3, 255})

	cache := NewImageCache(dir, "en", 100, logging.Discard())
	img, err := cache.Get("wide")
	if err != nil || img == nil {
		t.Fatalf("Get: %v %v", img, err)
	}
	if b := img.Bounds(); b.Dx() != 100 || b.Dy() != 25 {
		t.Errorf("expected 100x25 after downscale, got %dx%d", b.Dx(), b.Dy())
	}
	if cache.Len() != 1 {
		t.Errorf("expected 1 cached image, got %d", cache.Len())
	}

	cache.Close()
	if cache.Len() != 0 {
		t.Errorf("cache should be empty after Close")
	}
	if img, _ := cache.Get("wide"); img != nil {
		t.Error("Get after Close must return nil")
	}
}

func TestImageCacheMissingSection(t *testing.T) {
	cache := NewImageCache(t.TempDir(), "en", 1600, logging.Discard())
	img, err := cache.Get("nothing")
	if img != nil || err != nil {
		t.Errorf("expected (nil, nil), got (%v, %v)", img, err)
	}
}

func TestAvailable(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "deep_sea_en.png"), 2, 2, color.RGBA{})
	writePNG(t, filepath.Join(dir, "deep_sea_ko.png"), 2, 2, color.RGBA{})
	writePNG(t, filepath.Join(dir, "intro_fr.png"), 2, 2, color.RGBA{})
	if err := os.WriteFile(filepath.Join(dir, "notes_en.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	got := NewImageCache(dir, "en", 0, logging.Discard()).Available()
	if !reflect.DeepEqual(got, []string{"deep_sea", "intro"}) {
		t.Errorf("Available() = %v", got)
	}
}

func TestOrdered(t *testing.T) {
	out := Ordered(map[string]models.SectionTimeRange{
		"b": {Name: "b", StartMs: 100},
		"a": {Name: "a", StartMs: 100},
		"z": {Name: "z", StartMs: 0},
	})
	if out[0].Name != "z" || out[1].Name != "a" || out[2].Name != "b" {
		t.Errorf("unexpected order %v", out)
	}
}
