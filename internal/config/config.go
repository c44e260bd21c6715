package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete pipeline configuration.
type Config struct {
	Capture    CaptureConfig    `yaml:"capture"`
	Ring       RingConfig       `yaml:"ring"`
	VAD        VADConfig        `yaml:"vad"`
	Segmenter  SegmenterConfig  `yaml:"segmenter"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// CaptureConfig names the audio source. Path is a WAV file for the
// demo command; a live device would be selected by Backend instead.
type CaptureConfig struct {
	Backend string `yaml:"backend"` // "wav" or "mic"
	Path    string `yaml:"path"`
}

// RingConfig mirrors ring_capacity_samples and target_sample_rate
// from the configuration table.
type RingConfig struct {
	CapacitySamples  uint32 `yaml:"capacity_samples"`
	TargetSampleRate uint32 `yaml:"target_sample_rate"`
}

// VADConfig mirrors vad_backend, vad_threshold, vad_frame_ms, plus
// the neural backend's model_path and the fallback-to-energy
// supplement.
type VADConfig struct {
	Backend              string  `yaml:"backend"` // "energy", "classic", "neural"
	Threshold            float32 `yaml:"threshold"`
	FrameMs              int     `yaml:"frame_ms"`
	ModelPath            string  `yaml:"model_path"`
	FallbackMs           uint32  `yaml:"fallback_ms"`
	FallbackRMSThreshold float32 `yaml:"fallback_rms_threshold"`
}

// SegmenterConfig mirrors phrase_end_silence_ms, max_window_ms,
// keep_tail_ms and min_speech_ms.
type SegmenterConfig struct {
	EndMs       uint32 `yaml:"phrase_end_silence_ms"`
	MaxWindowMs uint32 `yaml:"max_window_ms"`
	KeepTailMs  uint32 `yaml:"keep_tail_ms"`
	MinSpeechMs uint32 `yaml:"min_speech_ms"`
}

// ReconcilerConfig mirrors reconcile_overlap_chars,
// reconcile_min_overlap, working_tail_words and prompt_token_cap,
// plus the working-set-cap supplement.
type ReconcilerConfig struct {
	OverlapChars       int `yaml:"overlap_chars"`
	MinOverlap         int `yaml:"min_overlap"`
	WorkingTailWords   int `yaml:"working_tail_words"`
	PromptTokenCap     int `yaml:"prompt_token_cap"`
	WorkingSetCapWords int `yaml:"working_set_cap_words"`
}

// PipelineConfig mirrors transcribe_poll_ms and stop_join_timeout_ms,
// plus the confirmed_text send timeout and max session duration
// supplements.
type PipelineConfig struct {
	TranscribePollMs       uint32 `yaml:"transcribe_poll_ms"`
	StopJoinTimeoutMs      uint32 `yaml:"stop_join_timeout_ms"`
	ConfirmedSendTimeoutMs uint32 `yaml:"confirmed_send_timeout_ms"`
	// MaxSessionMinutes is parsed and defaulted, but no component reads
	// it: the pipeline does not stop on session length.
	MaxSessionMinutes uint32 `yaml:"max_session_minutes"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns a Config populated with every default named in the
// configuration table.
func Default() Config {
	return Config{
		Capture: CaptureConfig{Backend: "wav"},
		Ring: RingConfig{
			CapacitySamples:  480000,
			TargetSampleRate: 16000,
		},
		VAD: VADConfig{
			Backend:              "neural",
			Threshold:            0.5,
			FrameMs:              30,
			FallbackMs:           1500,
			FallbackRMSThreshold: 0.02,
		},
		Segmenter: SegmenterConfig{
			EndMs:       700,
			MaxWindowMs: 30000,
			KeepTailMs:  500,
			MinSpeechMs: 200,
		},
		Reconciler: ReconcilerConfig{
			OverlapChars:       128,
			MinOverlap:         8,
			WorkingTailWords:   3,
			PromptTokenCap:     64,
			WorkingSetCapWords: 25,
		},
		Pipeline: PipelineConfig{
			TranscribePollMs:       100,
			StopJoinTimeoutMs:      2000,
			ConfirmedSendTimeoutMs: 2000,
			MaxSessionMinutes:      0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load reads and parses the configuration file over Default(), so any
// field absent from the file keeps its named default, then validates.
// A field the file sets explicitly to zero stays zero.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate performs comprehensive validation of the configuration.
func (c *Config) Validate() error {
	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture config: %w", err)
	}
	if err := c.Ring.Validate(); err != nil {
		return fmt.Errorf("ring config: %w", err)
	}
	if err := c.VAD.Validate(); err != nil {
		return fmt.Errorf("vad config: %w", err)
	}
	if err := c.Segmenter.Validate(); err != nil {
		return fmt.Errorf("segmenter config: %w", err)
	}
	if err := c.Reconciler.Validate(); err != nil {
		return fmt.Errorf("reconciler config: %w", err)
	}
	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

func (c *CaptureConfig) Validate() error {
	switch c.Backend {
	case "wav":
		if c.Path == "" {
			return fmt.Errorf("path is required when backend is 'wav'")
		}
	case "mic":
		// A live device needs no path; device selection is left to the
		// OS default input.
	default:
		return fmt.Errorf("backend must be 'wav' or 'mic', got %q", c.Backend)
	}
	return nil
}

func (c *RingConfig) Validate() error {
	if c.CapacitySamples == 0 {
		return fmt.Errorf("capacity_samples must be > 0")
	}
	if c.TargetSampleRate == 0 {
		return fmt.Errorf("target_sample_rate must be > 0")
	}
	return nil
}

func (v *VADConfig) Validate() error {
	switch v.Backend {
	case "energy":
	case "classic":
		if v.FrameMs != 10 && v.FrameMs != 20 && v.FrameMs != 30 {
			return fmt.Errorf("frame_ms must be 10, 20 or 30 for the classic backend, got %d", v.FrameMs)
		}
	case "neural":
		if v.ModelPath == "" {
			return fmt.Errorf("model_path is required for the neural backend")
		}
	default:
		return fmt.Errorf("backend must be 'energy', 'classic' or 'neural', got %q", v.Backend)
	}
	if v.Threshold < 0 || v.Threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1, got %f", v.Threshold)
	}
	return nil
}

func (s *SegmenterConfig) Validate() error {
	if s.EndMs == 0 {
		return fmt.Errorf("phrase_end_silence_ms must be > 0")
	}
	if s.MaxWindowMs <= s.EndMs {
		return fmt.Errorf("max_window_ms (%d) must exceed phrase_end_silence_ms (%d)", s.MaxWindowMs, s.EndMs)
	}
	if s.KeepTailMs >= s.MaxWindowMs {
		return fmt.Errorf("keep_tail_ms (%d) must be less than max_window_ms (%d)", s.KeepTailMs, s.MaxWindowMs)
	}
	return nil
}

func (r *ReconcilerConfig) Validate() error {
	if r.OverlapChars <= 0 {
		return fmt.Errorf("overlap_chars must be > 0")
	}
	if r.MinOverlap <= 0 || r.MinOverlap > r.OverlapChars {
		return fmt.Errorf("min_overlap must be > 0 and <= overlap_chars")
	}
	if r.WorkingTailWords < 0 {
		return fmt.Errorf("working_tail_words cannot be negative")
	}
	if r.WorkingSetCapWords > 0 && r.WorkingSetCapWords < r.WorkingTailWords {
		return fmt.Errorf("working_set_cap_words (%d) cannot be less than working_tail_words (%d)", r.WorkingSetCapWords, r.WorkingTailWords)
	}
	return nil
}

func (p *PipelineConfig) Validate() error {
	if p.TranscribePollMs == 0 {
		return fmt.Errorf("transcribe_poll_ms must be > 0")
	}
	if p.StopJoinTimeoutMs == 0 {
		return fmt.Errorf("stop_join_timeout_ms must be > 0")
	}
	return nil
}

func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got %q", l.Format)
	}
	return nil
}

// PollInterval returns transcribe_poll_ms as a time.Duration.
func (p *PipelineConfig) PollInterval() time.Duration {
	return time.Duration(p.TranscribePollMs) * time.Millisecond
}

// StopJoinTimeout returns stop_join_timeout_ms as a time.Duration.
func (p *PipelineConfig) StopJoinTimeout() time.Duration {
	return time.Duration(p.StopJoinTimeoutMs) * time.Millisecond
}

// ConfirmedSendTimeout returns confirmed_send_timeout_ms as a
// time.Duration.
func (p *PipelineConfig) ConfirmedSendTimeout() time.Duration {
	return time.Duration(p.ConfirmedSendTimeoutMs) * time.Millisecond
}

// FallbackDuration returns the VAD fallback window (how long the
// configured detector may error continuously before the worker
// switches to energy detection) as a time.Duration.
func (v *VADConfig) FallbackDuration() time.Duration {
	return time.Duration(v.FallbackMs) * time.Millisecond
}
