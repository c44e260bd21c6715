package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func contains(s, substr string) bool {
	return strings.Contains(s, substr)
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	cfg.Capture.Path = "fixture.wav"
	cfg.VAD.Backend = "energy"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default() config should validate, got: %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	base := func() Config {
		cfg := Default()
		cfg.Capture.Path = "fixture.wav"
		cfg.VAD.Backend = "energy"
		return cfg
	}

	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid configuration",
			mutate:      func(c *Config) {},
			expectError: false,
		},
		{
			name: "capture backend missing path",
			mutate: func(c *Config) {
				c.Capture.Backend = "wav"
				c.Capture.Path = ""
			},
			expectError: true,
			errorMsg:    "path is required",
		},
		{
			name: "unknown vad backend",
			mutate: func(c *Config) {
				c.VAD.Backend = "magic"
			},
			expectError: true,
			errorMsg:    "backend must be",
		},
		{
			name: "classic backend bad frame length",
			mutate: func(c *Config) {
				c.VAD.Backend = "classic"
				c.VAD.FrameMs = 25
			},
			expectError: true,
			errorMsg:    "frame_ms must be",
		},
		{
			name: "neural backend missing model path",
			mutate: func(c *Config) {
				c.VAD.Backend = "neural"
				c.VAD.ModelPath = ""
			},
			expectError: true,
			errorMsg:    "model_path is required",
		},
		{
			name: "threshold out of range",
			mutate: func(c *Config) {
				c.VAD.Threshold = 1.5
			},
			expectError: true,
			errorMsg:    "threshold must be between 0 and 1",
		},
		{
			name: "max window not greater than end silence",
			mutate: func(c *Config) {
				c.Segmenter.MaxWindowMs = c.Segmenter.EndMs
			},
			expectError: true,
			errorMsg:    "must exceed",
		},
		{
			name: "keep tail not less than max window",
			mutate: func(c *Config) {
				c.Segmenter.KeepTailMs = c.Segmenter.MaxWindowMs
			},
			expectError: true,
			errorMsg:    "must be less than",
		},
		{
			name: "min overlap exceeds overlap chars",
			mutate: func(c *Config) {
				c.Reconciler.MinOverlap = c.Reconciler.OverlapChars + 1
			},
			expectError: true,
			errorMsg:    "min_overlap",
		},
		{
			name: "working set cap smaller than tail words",
			mutate: func(c *Config) {
				c.Reconciler.WorkingTailWords = 10
				c.Reconciler.WorkingSetCapWords = 3
			},
			expectError: true,
			errorMsg:    "cannot be less than",
		},
		{
			name: "invalid log level",
			mutate: func(c *Config) {
				c.Logging.Level = "trace"
			},
			expectError: true,
			errorMsg:    "level must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.expectError {
				if err == nil {
					t.Fatal("expected error but got none")
				}
				if tt.errorMsg != "" && !contains(err.Error(), tt.errorMsg) {
					t.Fatalf("expected error to contain %q, got %q", tt.errorMsg, err.Error())
				}
			} else if err != nil {
				t.Fatalf("expected no error but got: %v", err)
			}
		})
	}
}

func TestConfigLoad(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		name        string
		configYAML  string
		expectError bool
		errorMsg    string
	}{
		{
			name: "valid config file",
			configYAML: `
capture:
  backend: wav
  path: fixture.wav
vad:
  backend: energy
  threshold: 0.5
`,
			expectError: false,
		},
		{
			name: "invalid yaml syntax",
			configYAML: `
ring:
  capacity_samples: not_a_number
`,
			expectError: true,
			errorMsg:    "failed to parse",
		},
		{
			name: "fails validation after load",
			configYAML: `
capture:
  backend: wav
vad:
  backend: energy
`,
			expectError: true,
			errorMsg:    "path is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(tempDir, "config.yaml")
			if err := os.WriteFile(configPath, []byte(tt.configYAML), 0644); err != nil {
				t.Fatalf("failed to create test config file: %v", err)
			}

			cfg, err := Load(configPath)
			if tt.expectError {
				if err == nil {
					t.Fatal("expected error but got none")
				}
				if tt.errorMsg != "" && !contains(err.Error(), tt.errorMsg) {
					t.Fatalf("expected error to contain %q, got %q", tt.errorMsg, err.Error())
				}
			} else {
				if err != nil {
					t.Fatalf("expected no error but got: %v", err)
				}
				if cfg == nil {
					t.Fatal("expected config to be loaded but got nil")
				}
			}
		})
	}
}

func TestConfigLoadNonexistentFile(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	if err == nil {
		t.Fatal("expected error for nonexistent file but got none")
	}
	if !contains(err.Error(), "failed to read config file") {
		t.Fatalf("expected error about reading file, got: %v", err)
	}
}

func TestDurationHelpers(t *testing.T) {
	p := PipelineConfig{TranscribePollMs: 100, StopJoinTimeoutMs: 2000, ConfirmedSendTimeoutMs: 1500}
	if p.PollInterval().Milliseconds() != 100 {
		t.Errorf("expected 100ms, got %v", p.PollInterval())
	}
	if p.StopJoinTimeout().Milliseconds() != 2000 {
		t.Errorf("expected 2000ms, got %v", p.StopJoinTimeout())
	}
	if p.ConfirmedSendTimeout().Milliseconds() != 1500 {
		t.Errorf("expected 1500ms, got %v", p.ConfirmedSendTimeout())
	}

	v := VADConfig{FallbackMs: 1500}
	if v.FallbackDuration().Milliseconds() != 1500 {
		t.Errorf("expected 1500ms, got %v", v.FallbackDuration())
	}
}
