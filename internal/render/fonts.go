package render

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// loadFace opens fontDir/file at the given pixel size. A missing or broken
// font file falls back to the embedded Go Regular face so a job never fails
// for lack of fonts.
func loadFace(fontDir, file string, size float64, logger *slog.Logger) (font.Face, error) {
	path := filepath.Join(fontDir, file)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("font file not found, using embedded fallback", "path", path)
		} else {
			logger.Warn("failed to read font file, using embedded fallback", "path", path, "error", err)
		}
		return parseFace(goregular.TTF, size)
	}

	face, err := parseFace(data, size)
	if err != nil {
		logger.Warn("failed to parse font file, using embedded fallback", "path", path, "error", err)
		return parseFace(goregular.TTF, size)
	}
	return face, nil
}

func parseFace(data []byte, size float64) (font.Face, error) {
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}
	return face, nil
}

// metrics caches the fixed measurements a layout needs from a face.
type metrics struct {
	ascent     int
	lineHeight int
	space      int
}

func faceMetrics(face font.Face) metrics {
	m := face.Metrics()
	return metrics{
		ascent:     m.Ascent.Ceil(),
		lineHeight: (m.Ascent + m.Descent).Ceil(),
		space:      font.MeasureString(face, " ").Ceil(),
	}
}

func measure(face font.Face, s string) int {
	return font.MeasureString(face, s).Ceil()
}
