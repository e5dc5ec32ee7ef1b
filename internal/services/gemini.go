package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"google.golang.org/genai"

	"github.com/bobarin/narrator/internal/lang"
)

const defaultImageModel = "gemini-2.5-flash-image"

// contentGenerator is the slice of genai.Models used for image generation.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiService generates section background images for sections that were
// given a prompt but have no image on disk.
type GeminiService struct {
	models contentGenerator
	model  string
	logger *slog.Logger
}

func NewGeminiService(ctx context.Context, apiKey, model string, logger *slog.Logger) (*GeminiService, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	if model == "" {
		model = defaultImageModel
	}
	return &GeminiService{models: client.Models, model: model, logger: logger}, nil
}

// GenerateImage returns the raw bytes of one generated image.
func (s *GeminiService) GenerateImage(ctx context.Context, prompt, aspectRatio string) ([]byte, error) {
	resp, err := s.models.GenerateContent(ctx, s.model, genai.Text(composeImagePrompt(prompt, aspectRatio)), &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini generate content failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("no candidates in response")
	}

	var textParts []string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return part.InlineData.Data, nil
		}
		if part.Text != "" {
			textParts = append(textParts, part.Text)
		}
	}

	if len(textParts) > 0 {
		return nil, fmt.Errorf("gemini returned text instead of image: %s", truncateString(textParts[0], 200))
	}
	return nil, fmt.Errorf("no image data found in response (got %d parts)", len(resp.Candidates[0].Content.Parts))
}

// FillMissingSections writes {section}_en.png into dir for every prompted
// section not listed in have. A failed section is logged and skipped so the
// render falls back to the solid background. It returns the sections written.
func (s *GeminiService) FillMissingSections(ctx context.Context, dir string, prompts map[string]string, have []string, aspectRatio string) ([]string, error) {
	present := make(map[string]bool, len(have))
	for _, name := range have {
		present[name] = true
	}

	names := make([]string, 0, len(prompts))
	for name := range prompts {
		if !present[name] && strings.TrimSpace(prompts[name]) != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create images dir: %w", err)
	}

	var written []string
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		s.logger.Info("generating section image", "section", name, "model", s.model)
		data, err := s.GenerateImage(ctx, prompts[name], aspectRatio)
		if err != nil {
			s.logger.Warn("section image generation failed", "section", name, "error", err)
			continue
		}

		path := filepath.Join(dir, fmt.Sprintf("%s_%s.png", name, lang.Fallback))
		if err := os.WriteFile(path, data, 0644); err != nil {
			return written, fmt.Errorf("failed to write section image: %w", err)
		}
		written = append(written, name)
	}
	return written, nil
}

// composeImagePrompt wraps a scene description with framing instructions.
func composeImagePrompt(basePrompt, aspectRatio string) string {
	var prompt bytes.Buffer

	prompt.WriteString("Background image for a narrated video. No text, captions, logos or watermarks. ")
	prompt.WriteString("Keep the centre band calm so overlaid captions stay readable.\n\n")

	prompt.WriteString("SCENE TO DEPICT:\n")
	prompt.WriteString(strings.TrimSpace(basePrompt))

	orientLabel := "Landscape"
	switch aspectRatio {
	case "9:16":
		orientLabel = "Portrait"
	case "1:1":
		orientLabel = "Square"
	case "":
		aspectRatio = "16:9"
	}
	prompt.WriteString(fmt.Sprintf("\n\nOutput: %s %s, highest quality.", orientLabel, aspectRatio))

	return prompt.String()
}
