package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Timing sources
const (
	TimingSourceFile    = "file"
	TimingSourceWhisper = "whisper"
)

type Config struct {
	// Server
	APIPort            string
	WorkerEnabled      bool
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Supabase (optional output upload)
	SupabaseURL           string
	SupabaseServiceKey    string
	SupabaseStorageBucket string

	// OpenAI (Whisper word timestamps when TimingSource = whisper)
	OpenAIKey    string
	TimingSource string

	// Gemini (section images for sections that have a prompt but no file)
	GeminiKey        string
	GeminiImageModel string

	// Media tooling
	FFmpegBinary  string
	FFprobeBinary string
	FontDir       string
	AssetsDir     string // intro.mp4, outro.mp4, background-music.mp3
	TempDir       string

	// Rendering
	FPS              int
	FrameBatchSize   int
	MaxImageWidth    int
	StyleProfilePath string // optional TOML file overriding Style
	Style            Style

	// Logging
	LogLevel  string
	LogFormat string

	// Worker
	MaxConcurrentUploads int
}

// Load reads the configuration for the API server and worker.
func Load() (*Config, error) {
	cfg, err := LoadLocal()
	if err != nil {
		return nil, err
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	if (cfg.SupabaseURL == "") != (cfg.SupabaseServiceKey == "") {
		return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY must be set together")
	}

	return cfg, nil
}

// LoadLocal reads the configuration needed for file-to-file rendering only.
func LoadLocal() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:               getEnv("API_PORT", "8080"),
		WorkerEnabled:         getEnvBool("WORKER_ENABLED", true),
		BackendAPIKey:         getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins:    getEnv("CORS_ALLOWED_ORIGINS", ""),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		RedisURL:              getEnv("REDIS_URL", "redis://localhost:6379"),
		SupabaseURL:           getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseStorageBucket: getEnv("SUPABASE_STORAGE_BUCKET", "narrator-videos"),
		OpenAIKey:             getEnv("OPENAI_API_KEY", ""),
		TimingSource:          getEnv("TIMING_SOURCE", TimingSourceFile),
		GeminiKey:             getEnv("GEMINI_API_KEY", ""),
		GeminiImageModel:      getEnv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),
		FFmpegBinary:          getEnv("FFMPEG_BINARY", "ffmpeg"),
		FFprobeBinary:         getEnv("FFPROBE_BINARY", "ffprobe"),
		FontDir:               getEnv("FONT_DIR", filepath.Join("assets", "fonts")),
		AssetsDir:             getEnv("ASSETS_DIR", "assets"),
		TempDir:               getEnv("TEMP_DIR", os.TempDir()),
		FPS:                   getEnvInt("VIDEO_FPS", 30),
		FrameBatchSize:        getEnvInt("FRAME_BATCH_SIZE", 500),
		MaxImageWidth:         getEnvInt("MAX_IMAGE_WIDTH", 1600),
		StyleProfilePath:      getEnv("STYLE_PROFILE", ""),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "console"),
		MaxConcurrentUploads:  getEnvInt("MAX_CONCURRENT_UPLOADS", 3),
	}

	style, err := LoadStyle(cfg.StyleProfilePath)
	if err != nil {
		return nil, err
	}
	cfg.Style = style

	if cfg.FPS <= 0 {
		return nil, fmt.Errorf("VIDEO_FPS must be positive, got %d", cfg.FPS)
	}

	if cfg.FrameBatchSize <= 0 {
		return nil, fmt.Errorf("FRAME_BATCH_SIZE must be positive, got %d", cfg.FrameBatchSize)
	}

	switch cfg.TimingSource {
	case TimingSourceFile:
	case TimingSourceWhisper:
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when TIMING_SOURCE=whisper")
		}
	default:
		return nil, fmt.Errorf("TIMING_SOURCE must be %q or %q, got %q", TimingSourceFile, TimingSourceWhisper, cfg.TimingSource)
	}

	return cfg, nil
}

// IntroPath, OutroPath and MusicPath locate the optional wrap assets.
func (c *Config) IntroPath() string { return filepath.Join(c.AssetsDir, "intro.mp4") }
func (c *Config) OutroPath() string { return filepath.Join(c.AssetsDir, "outro.mp4") }
func (c *Config) MusicPath() string { return filepath.Join(c.AssetsDir, "background-music.mp3") }

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}
