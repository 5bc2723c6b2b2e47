package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models talentline.yml.
type Config struct {
	Pipeline PipelineConfig `yaml:"pipeline"`
	Server   ServerConfig   `yaml:"server"`
}

// PipelineConfig carries the timing rules the status derivation runs on.
// An item flips to In Progress when the clock is within the start window of
// its scheduled time, and to Completed/Evaluated once the completion
// threshold has passed.
type PipelineConfig struct {
	AssessmentStartWindowMinutes int `yaml:"assessment_start_window_minutes"`
	InterviewStartWindowMinutes  int `yaml:"interview_start_window_minutes"`
	CompletionAfterMinutes       int `yaml:"completion_after_minutes"`
}

type ServerConfig struct {
	BasePath               string `yaml:"base_path"`
	JWTSecret              string `yaml:"jwt_secret"`
	AllowLegacyActorHeader bool   `yaml:"allow_legacy_actor_header"`
}

func (p PipelineConfig) AssessmentStartWindow() time.Duration {
	return time.Duration(p.AssessmentStartWindowMinutes) * time.Minute
}

func (p PipelineConfig) InterviewStartWindow() time.Duration {
	return time.Duration(p.InterviewStartWindowMinutes) * time.Minute
}

func (p PipelineConfig) CompletionAfter() time.Duration {
	return time.Duration(p.CompletionAfterMinutes) * time.Minute
}

// Default returns the stock pipeline configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.Pipeline.AssessmentStartWindowMinutes = 5
	cfg.Pipeline.InterviewStartWindowMinutes = 15
	cfg.Pipeline.CompletionAfterMinutes = 60
	cfg.Server.BasePath = "/v0"
	return cfg
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "talentline.yml")
}

// Load reads and validates config from workspace, falling back to defaults
// when no file exists.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates a config document.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ToYAML serializes the config.
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate ensures the timing rules are usable.
func (c *Config) Validate() error {
	if c.Pipeline.AssessmentStartWindowMinutes <= 0 {
		return fmt.Errorf("config.pipeline.assessment_start_window_minutes must be positive")
	}
	if c.Pipeline.InterviewStartWindowMinutes <= 0 {
		return fmt.Errorf("config.pipeline.interview_start_window_minutes must be positive")
	}
	if c.Pipeline.CompletionAfterMinutes <= 0 {
		return fmt.Errorf("config.pipeline.completion_after_minutes must be positive")
	}
	if c.Pipeline.CompletionAfterMinutes < c.Pipeline.AssessmentStartWindowMinutes ||
		c.Pipeline.CompletionAfterMinutes < c.Pipeline.InterviewStartWindowMinutes {
		return fmt.Errorf("config.pipeline.completion_after_minutes must not be shorter than the start windows")
	}
	return nil
}
