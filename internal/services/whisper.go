package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/bobarin/narrator/internal/lang"
	"github.com/bobarin/narrator/internal/models"
	"github.com/bobarin/narrator/internal/timing"
)

// transcriber is the slice of the OpenAI client WhisperSource needs.
type transcriber interface {
	CreateTranscription(ctx context.Context, request openai.AudioRequest) (openai.AudioResponse, error)
}

// WhisperSource builds timing tracks by transcribing the narration audio with
// word-level timestamps. Transcripts carry no section markers, so videos
// rendered from them show the solid background throughout.
type WhisperSource struct {
	client transcriber
	logger *slog.Logger

	// SaveTimings writes the transcript to Input.TimingPath so later runs
	// can use the file source.
	SaveTimings bool
}

func NewWhisperSource(apiKey string, logger *slog.Logger) *WhisperSource {
	return &WhisperSource{
		client: openai.NewClient(apiKey),
		logger: logger,
	}
}

// Timings sends the audio to Whisper and converts the word timestamps.
func (s *WhisperSource) Timings(ctx context.Context, in timing.Input) (*models.Track, error) {
	if err := timing.RequireFile("audio", in.AudioPath); err != nil {
		return nil, err
	}

	resp, err := s.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: in.AudioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
		Language: lang.Base(in.Language),
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularityWord,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("whisper transcription failed: %w", err)
	}

	if len(resp.Words) == 0 {
		return nil, fmt.Errorf("whisper returned no word timestamps (text: %q)", truncateString(resp.Text, 80))
	}

	entries := make([]models.WordTiming, 0, len(resp.Words))
	for _, w := range resp.Words {
		word := strings.TrimSpace(w.Word)
		if word == "" {
			continue
		}
		entries = append(entries, models.WordTiming{
			Word:    word,
			StartMs: secondsToMs(w.Start),
			EndMs:   secondsToMs(w.End),
		})
	}

	s.logger.Info("transcribed narration",
		"language", in.Language, "words", len(entries), "duration_s", resp.Duration, "text", truncateString(resp.Text, 80))

	if s.SaveTimings && in.TimingPath != "" {
		if err := os.MkdirAll(filepath.Dir(in.TimingPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create timing directory: %w", err)
		}
		if err := timing.Save(in.TimingPath, entries); err != nil {
			return nil, err
		}
	}

	return timing.NewTrack(entries), nil
}

func secondsToMs(sec float64) int64 {
	return int64(math.Round(sec * 1000))
}

// truncateString truncates a string to maxLen and appends "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
