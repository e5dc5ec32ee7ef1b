package timing

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bobarin/narrator/internal/models"
)

// Input locates the per-language inputs of a job.
type Input struct {
	Language   string
	TimingPath string
	AudioPath  string
}

// Source produces the timing track for one language. The implementation is
// chosen once from configuration.
type Source interface {
	Timings(ctx context.Context, in Input) (*models.Track, error)
}

// FileSource reads timing tracks written by the speech layer.
type FileSource struct{}

var _ Source = FileSource{}

func (FileSource) Timings(_ context.Context, in Input) (*models.Track, error) {
	return Load(in.TimingPath)
}

// InputFor builds the conventional paths inside a job input directory.
func InputFor(dir, lang string) Input {
	return Input{
		Language:   lang,
		TimingPath: filepath.Join(dir, fmt.Sprintf("timings_%s.json", lang)),
		AudioPath:  filepath.Join(dir, fmt.Sprintf("speech_%s.mp3", lang)),
	}
}

// RequireFile returns a MissingInputError when path does not exist.
func RequireFile(kind, path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &models.MissingInputError{Kind: kind, Path: path}
		}
		return fmt.Errorf("failed to stat %s input: %w", kind, err)
	}
	return nil
}
