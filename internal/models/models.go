package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Enums
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// ShortsMode selects how the vertical cut of a job is produced.
type ShortsMode string

const (
	ShortsModeOff    ShortsMode = "off"
	ShortsModeReflow ShortsMode = "reflow" // derive from the rendered content video
	ShortsModeRender ShortsMode = "render" // render natively at 1080x1920
)

// JSONB is a custom type for PostgreSQL JSONB columns
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// Models

// RenderJob is one queued render request covering one or more languages.
type RenderJob struct {
	ID                uuid.UUID  `json:"id"`
	Status            JobStatus  `json:"status"`
	Languages         []string   `json:"languages"`
	InputDir          string     `json:"input_dir"`  // holds speech_{lang}.mp3 and timings_{lang}.json
	ImagesDir         *string    `json:"images_dir,omitempty"`
	OutputDir         string     `json:"output_dir"`
	ShortsMode        ShortsMode `json:"shorts_mode"`
	WrapIntroOutro    bool       `json:"wrap_intro_outro"`
	SecondaryLanguage *string    `json:"secondary_language,omitempty"` // reference track drawn under the captions
	Options           JSONB      `json:"options,omitempty"`            // section_prompts, ass_sidecar
	Attempts          int        `json:"attempts"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	FinishedAt        *time.Time `json:"finished_at,omitempty"`
	ErrorMessage      *string    `json:"error_message,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// RenderOutput records one file produced by a job.
type RenderOutput struct {
	ID          uuid.UUID `json:"id"`
	JobID       uuid.UUID `json:"job_id"`
	Language    string    `json:"language"`
	Kind        string    `json:"kind"` // video, content, shorts, subtitles
	Format      Format    `json:"format"`
	LocalPath   string    `json:"local_path"`
	StoragePath *string   `json:"storage_path,omitempty"`
	ByteSize    *int64    `json:"byte_size,omitempty"`
	URL         *string   `json:"url,omitempty"` // filled by the API, not stored
	CreatedAt   time.Time `json:"created_at"`
}

// SectionPrompts returns the optional section -> image prompt map carried in Options.
func (j *RenderJob) SectionPrompts() map[string]string {
	prompts := map[string]string{}
	raw, ok := j.Options["section_prompts"].(map[string]interface{})
	if !ok {
		return prompts
	}
	for name, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			prompts[name] = s
		}
	}
	return prompts
}

// WantsASS reports whether an ASS subtitle sidecar was requested.
func (j *RenderJob) WantsASS() bool {
	v, _ := j.Options["ass_sidecar"].(bool)
	return v
}

// DTOs for API requests and responses

type CreateRenderRequest struct {
	Languages         []string          `json:"languages"`
	InputDir          string            `json:"input_dir"`
	ImagesDir         *string           `json:"images_dir,omitempty"`
	OutputDir         string            `json:"output_dir"`
	ShortsMode        *ShortsMode       `json:"shorts_mode,omitempty"`      // Default: "off"
	WrapIntroOutro    *bool             `json:"wrap_intro_outro,omitempty"` // Default: true
	SecondaryLanguage *string           `json:"secondary_language,omitempty"`
	SectionPrompts    map[string]string `json:"section_prompts,omitempty"`
	ASSSidecar        bool              `json:"ass_sidecar,omitempty"`
}

type CreateRenderResponse struct {
	JobID  uuid.UUID `json:"job_id"`
	Status JobStatus `json:"status"`
}

type RenderJobResponse struct {
	RenderJob
	Outputs []RenderOutput `json:"outputs,omitempty"`
}
