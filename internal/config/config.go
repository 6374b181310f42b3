package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/davidZakaria/cath-archives-sub000/internal/engines"
)

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	defaults := DefaultConfig()
	viper.SetDefault("home", defaults.Home)
	viper.SetDefault("log_level", defaults.LogLevel)
	viper.SetDefault("languages", defaults.Languages)
	viper.SetDefault("preprocess", defaults.Preprocess)
	viper.SetDefault("layout", defaults.Layout)
	viper.SetDefault("orchestrate", defaults.Orchestrate)
	viper.SetDefault("scoring", defaults.Scoring)
	viper.SetDefault("engines", defaults.Engines)
	viper.SetDefault("ingest", defaults.Ingest)
	viper.SetDefault("batch", defaults.Batch)

	// Environment variables with PAGEOCR_ prefix; nested keys use
	// underscores (PAGEOCR_ORCHESTRATE_RUN_PARALLEL).
	viper.SetEnvPrefix("PAGEOCR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.pageocr")
	}

	// Try to read config file (not required)
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// ConfigFileUsed returns the path of the loaded config file, or empty when
// running on defaults. Watching requires a real file.
func (cm *Manager) ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration.
func (cm *Manager) WatchConfig() {
	viper.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	viper.WatchConfig()
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	pattern := regexp.MustCompile(`\$\{([^}]+)\}`)
	return pattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// ToEngineRegistryConfig converts the config to a format suitable for
// engines.Registry. It resolves all ${ENV_VAR} references in API keys and
// endpoint URLs.
func (c *Config) ToEngineRegistryConfig() engines.RegistryConfig {
	cfg := engines.RegistryConfig{
		Engines: make(map[string]engines.EngineConfig),
	}

	for name, eng := range c.Engines {
		cfg.Engines[name] = engines.EngineConfig{
			Type:      eng.Type,
			Model:     eng.Model,
			APIKey:    ResolveEnvVars(eng.APIKey),
			BaseURL:   ResolveEnvVars(eng.BaseURL),
			Languages: eng.Languages,
			DPI:       eng.DPI,
			RateLimit: eng.RateLimit,
			Enabled:   eng.Enabled,
		}
	}

	return cfg
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# pageocr configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell: export GOOGLE_VISION_API_KEY=xxx LLMVISION_API_KEY=xxx

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
