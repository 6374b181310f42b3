package config

import (
	"time"

	"github.com/davidZakaria/cath-archives-sub000/internal/quality"
)

// Config holds pageocr configuration.
// Stored at: {home}/config.yaml
type Config struct {
	Home      string   `mapstructure:"home" yaml:"home"`           // data directory, default ~/.pageocr
	LogLevel  string   `mapstructure:"log_level" yaml:"log_level"` // debug, info, warn, error
	Languages []string `mapstructure:"languages" yaml:"languages"` // default hints, e.g. [ar, en]

	Preprocess  PreprocessCfg        `mapstructure:"preprocess" yaml:"preprocess"`
	Layout      LayoutCfg            `mapstructure:"layout" yaml:"layout"`
	Orchestrate OrchestrateCfg       `mapstructure:"orchestrate" yaml:"orchestrate"`
	Scoring     quality.Weights      `mapstructure:"scoring" yaml:"scoring"`
	Engines     map[string]EngineCfg `mapstructure:"engines" yaml:"engines"`
	Ingest      IngestCfg            `mapstructure:"ingest" yaml:"ingest"`
	Batch       BatchCfg             `mapstructure:"batch" yaml:"batch"`
}

// PreprocessCfg controls image cleanup before engines see the page.
type PreprocessCfg struct {
	Enabled    bool `mapstructure:"enabled" yaml:"enabled"`
	AutoRotate bool `mapstructure:"auto_rotate" yaml:"auto_rotate"` // EXIF orientation only
	Grayscale  bool `mapstructure:"grayscale" yaml:"grayscale"`
	Contrast   bool `mapstructure:"contrast" yaml:"contrast"`
	Denoise    bool `mapstructure:"denoise" yaml:"denoise"`
}

// LayoutCfg tunes whitespace-valley column detection. Zero values fall back
// to the detector's calibrated defaults.
type LayoutCfg struct {
	SampleStrips        int     `mapstructure:"sample_strips" yaml:"sample_strips"`
	BrightnessThreshold int     `mapstructure:"brightness_threshold" yaml:"brightness_threshold"`
	MinGapWidthFrac     float64 `mapstructure:"min_gap_width_frac" yaml:"min_gap_width_frac"`
	ClusterWidthFrac    float64 `mapstructure:"cluster_width_frac" yaml:"cluster_width_frac"`
	StripSupportFrac    float64 `mapstructure:"strip_support_frac" yaml:"strip_support_frac"`
}

// OrchestrateCfg controls how engines are raced and the winner picked.
type OrchestrateCfg struct {
	RunParallel            bool    `mapstructure:"run_parallel" yaml:"run_parallel"`
	PreferEngine           string  `mapstructure:"prefer_engine" yaml:"prefer_engine"` // "best" = score-based
	ConfidenceThreshold    float64 `mapstructure:"confidence_threshold" yaml:"confidence_threshold"`
	EngineTimeoutSeconds   int     `mapstructure:"engine_timeout_seconds" yaml:"engine_timeout_seconds"`
	ColumnMergeThresholdPx int     `mapstructure:"column_merge_threshold_px" yaml:"column_merge_threshold_px"`
}

// EngineTimeout returns the per-engine timeout as a duration.
// Zero or negative means no timeout.
func (c OrchestrateCfg) EngineTimeout() time.Duration {
	if c.EngineTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.EngineTimeoutSeconds) * time.Second
}

// EngineCfg configures one OCR engine.
type EngineCfg struct {
	Type      string   `mapstructure:"type" yaml:"type"`                               // "tesseract", "gvision", "llmvision", "static"
	Model     string   `mapstructure:"model" yaml:"model,omitempty"`                   // model name (llmvision)
	APIKey    string   `mapstructure:"api_key" yaml:"api_key,omitempty"`               // supports ${ENV_VAR} syntax
	BaseURL   string   `mapstructure:"base_url" yaml:"base_url,omitempty"`             // endpoint override
	Languages []string `mapstructure:"languages" yaml:"languages,omitempty"`           // engine-native language codes
	DPI       int      `mapstructure:"dpi" yaml:"dpi,omitempty"`                       // scan density hint (tesseract)
	RateLimit float64  `mapstructure:"requests_per_second" yaml:"requests_per_second"` // 0 = unlimited
	Enabled   bool     `mapstructure:"enabled" yaml:"enabled"`
}

// IngestCfg controls PDF-to-image rendering.
type IngestCfg struct {
	RenderDPI int `mapstructure:"render_dpi" yaml:"render_dpi"`
}

// BatchCfg controls the multi-page batch runner.
type BatchCfg struct {
	Workers     int `mapstructure:"workers" yaml:"workers"`           // 0 = NumCPU
	PageRetries int `mapstructure:"page_retries" yaml:"page_retries"` // retries per failed page
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:  "info",
		Languages: []string{"ar", "en"},
		Preprocess: PreprocessCfg{
			Enabled:    true,
			AutoRotate: true,
			Grayscale:  true,
			Contrast:   true,
			Denoise:    false,
		},
		Layout: LayoutCfg{
			SampleStrips:        5,
			BrightnessThreshold: 200,
			MinGapWidthFrac:     0.015,
			ClusterWidthFrac:    0.02,
			StripSupportFrac:    0.6,
		},
		Orchestrate: OrchestrateCfg{
			RunParallel:            true,
			PreferEngine:           "best",
			ConfidenceThreshold:    0.3,
			EngineTimeoutSeconds:   90,
			ColumnMergeThresholdPx: 200,
		},
		Scoring: quality.DefaultWeights(),
		Engines: map[string]EngineCfg{
			"tesseract": {
				Type:      "tesseract",
				Languages: []string{"ara", "eng"},
				DPI:       300,
				Enabled:   true,
			},
			"gvision": {
				Type:      "gvision",
				APIKey:    "${GOOGLE_VISION_API_KEY}",
				RateLimit: 8.0,
				Enabled:   false,
			},
			"llmvision": {
				Type:      "llmvision",
				APIKey:    "${LLMVISION_API_KEY}",
				BaseURL:   "${LLMVISION_BASE_URL}",
				Model:     "gpt-4o",
				RateLimit: 1.0,
				Enabled:   false,
			},
		},
		Ingest: IngestCfg{
			RenderDPI: 300,
		},
		Batch: BatchCfg{
			Workers:     0,
			PageRetries: 2,
		},
	}
}

// GetEngine returns an engine config by name.
func (c *Config) GetEngine(name string) (EngineCfg, bool) {
	cfg, ok := c.Engines[name]
	return cfg, ok
}

// EnabledEngines returns all enabled engine configs.
func (c *Config) EnabledEngines() map[string]EngineCfg {
	result := make(map[string]EngineCfg)
	for name, cfg := range c.Engines {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}
