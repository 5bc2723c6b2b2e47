package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if got := cfg.Pipeline.AssessmentStartWindow(); got != 5*time.Minute {
		t.Fatalf("assessment window = %v", got)
	}
	if got := cfg.Pipeline.InterviewStartWindow(); got != 15*time.Minute {
		t.Fatalf("interview window = %v", got)
	}
	if got := cfg.Pipeline.CompletionAfter(); got != time.Hour {
		t.Fatalf("completion threshold = %v", got)
	}
}

func TestLoadFallsBackToDefault(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Pipeline.CompletionAfterMinutes != 60 {
		t.Fatalf("completion minutes = %d", cfg.Pipeline.CompletionAfterMinutes)
	}
}

func TestLoadReadsWorkspaceFile(t *testing.T) {
	dir := t.TempDir()
	doc := []byte("pipeline:\n  assessment_start_window_minutes: 10\n  interview_start_window_minutes: 20\n  completion_after_minutes: 90\n")
	if err := os.WriteFile(filepath.Join(dir, "talentline.yml"), doc, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Pipeline.AssessmentStartWindowMinutes != 10 || cfg.Pipeline.CompletionAfterMinutes != 90 {
		t.Fatalf("loaded pipeline = %+v", cfg.Pipeline)
	}
}

func TestFromYAMLRejectsUnknownFields(t *testing.T) {
	_, err := FromYAML([]byte("pipeline:\n  grace_period_minutes: 5\n"))
	if err == nil {
		t.Fatal("expected unknown field error")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero assessment window", func(c *Config) { c.Pipeline.AssessmentStartWindowMinutes = 0 }, "assessment_start_window_minutes"},
		{"negative interview window", func(c *Config) { c.Pipeline.InterviewStartWindowMinutes = -1 }, "interview_start_window_minutes"},
		{"zero completion", func(c *Config) { c.Pipeline.CompletionAfterMinutes = 0 }, "completion_after_minutes"},
		{"completion shorter than window", func(c *Config) { c.Pipeline.CompletionAfterMinutes = 10 }, "must not be shorter"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err = %v, want mention of %q", err, tc.wantErr)
			}
		})
	}
}
