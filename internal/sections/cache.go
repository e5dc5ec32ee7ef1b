package sections

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/bobarin/narrator/internal/lang"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

// ImageCache holds the decoded section images of one video job. It is
// created by the job, read by the renderer and released with Close when the
// job ends; nothing survives into the next job.
type ImageCache struct {
	dir      string
	lang     string
	maxWidth int
	logger   *slog.Logger

	images map[string]*image.RGBA
	missed map[string]bool
	closed bool
}

// NewImageCache prepares a lazy cache over dir for the given language.
// Images wider than maxWidth are downscaled when loaded.
func NewImageCache(dir, language string, maxWidth int, logger *slog.Logger) *ImageCache {
	return &ImageCache{
		dir:      dir,
		lang:     lang.Base(language),
		maxWidth: maxWidth,
		logger:   logger,
		images:   map[string]*image.RGBA{},
		missed:   map[string]bool{},
	}
}

// Available lists the section names that have an image file for any
// language, sorted.
func (c *ImageCache) Available() []string {
	if c == nil || c.dir == "" {
		return nil
	}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("failed to list section images", "dir", c.dir, "error", err)
		}
		return nil
	}

	seen := map[string]bool{}
	for _, e := range entries {
		if e.IsDir() || !hasImageExt(e.Name()) {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		i := strings.LastIndex(stem, "_")
		if i <= 0 {
			continue
		}
		seen[stem[:i]] = true
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the section image, loading it on first use. A section without
// any file yields (nil, nil).
func (c *ImageCache) Get(section string) (image.Image, error) {
	if c == nil || c.closed {
		return nil, nil
	}
	if img, ok := c.images[section]; ok {
		return img, nil
	}
	if c.missed[section] {
		return nil, nil
	}

	path := c.locate(section)
	if path == "" {
		c.missed[section] = true
		return nil, nil
	}

	img, err := c.load(path)
	if err != nil {
		c.missed[section] = true
		return nil, fmt.Errorf("failed to load section image %s: %w", path, err)
	}
	c.images[section] = img
	c.logger.Debug("section image loaded", "section", section, "path", path,
		"width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	return img, nil
}

// Len reports how many bitmaps are held.
func (c *ImageCache) Len() int {
	if c == nil {
		return 0
	}
	return len(c.images)
}

// Close drops every bitmap. Get returns nil afterwards.
func (c *ImageCache) Close() {
	if c == nil || c.closed {
		return
	}
	for k := range c.images {
		delete(c.images, k)
	}
	c.images = nil
	c.missed = nil
	c.closed = true
}

// locate tries {section}_{lang}.* then {section}_en.*.
func (c *ImageCache) locate(section string) string {
	if c.dir == "" {
		return ""
	}
	for _, code := range lang.Candidates(c.lang) {
		for _, ext := range imageExtensions {
			path := filepath.Join(c.dir, section+"_"+code+ext)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path
			}
		}
	}
	return ""
}

func (c *ImageCache) load(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("empty image")
	}
	if c.maxWidth > 0 && w > c.maxWidth {
		h = h * c.maxWidth / w
		if h < 1 {
			h = 1
		}
		w = c.maxWidth
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	}
	return dst, nil
}

func hasImageExt(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range imageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
