package engines

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Registry holds the OCR engine adapters available to the orchestrator.
// It supports config-driven instantiation, hot-reload, and provides
// thread-safe access.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]Adapter
	logger  *slog.Logger
}

// NewRegistry creates a new empty engine registry.
func NewRegistry() *Registry {
	return &Registry{
		engines: make(map[string]Adapter),
		logger:  slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// Register registers an engine by name.
func (r *Registry) Register(name string, engine Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[name] = engine
	if r.logger != nil {
		r.logger.Info("registered OCR engine", "name", name)
	}
}

// Unregister removes an engine by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.engines, name)
	if r.logger != nil {
		r.logger.Info("unregistered OCR engine", "name", name)
	}
}

// Get returns an engine by name.
func (r *Registry) Get(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	engine, ok := r.engines[name]
	if !ok {
		return nil, fmt.Errorf("OCR engine not found: %s", name)
	}
	return engine, nil
}

// Has checks if an engine is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.engines[name]
	return ok
}

// List returns all registered engine names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Engines returns a map of all registered engines.
// Used by the orchestrator to race a page across every engine.
func (r *Registry) Engines() map[string]Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make(map[string]Adapter, len(r.engines))
	for name, engine := range r.engines {
		result[name] = engine
	}
	return result
}

// NewRegistryFromConfig creates a registry with engines based on
// configuration. Only enabled engines that can actually be constructed
// (e.g. cloud engines with an API key) are registered.
func NewRegistryFromConfig(cfg RegistryConfig) *Registry {
	r := NewRegistry()
	r.applyConfig(cfg)
	return r
}

// Reload updates the registry based on new configuration.
// Engines that are no longer configured will be unregistered.
// Engines with changed settings will be re-registered.
func (r *Registry) Reload(cfg RegistryConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := make(map[string]bool)

	for name, engCfg := range cfg.Engines {
		if !engCfg.Enabled {
			continue
		}

		existing, hasExisting := r.engines[name]
		if hasExisting && !needsUpdate(existing, engCfg) {
			want[name] = true
			continue
		}

		engine := createEngine(engCfg)
		if engine == nil {
			continue
		}
		want[name] = true
		r.engines[name] = engine
		if r.logger != nil {
			if hasExisting {
				r.logger.Info("updated OCR engine", "name", name, "type", engCfg.Type)
			} else {
				r.logger.Info("registered OCR engine", "name", name, "type", engCfg.Type)
			}
		}
	}

	// Remove engines that are no longer configured
	for name := range r.engines {
		if !want[name] {
			delete(r.engines, name)
			if r.logger != nil {
				r.logger.Info("unregistered OCR engine", "name", name)
			}
		}
	}
}

// applyConfig applies configuration without locking (used during init).
func (r *Registry) applyConfig(cfg RegistryConfig) {
	for name, engCfg := range cfg.Engines {
		if !engCfg.Enabled {
			continue
		}
		engine := createEngine(engCfg)
		if engine != nil {
			r.engines[name] = engine
		}
	}
}

// createEngine creates an engine based on its type. Types not built into
// this package are looked up in the factory table, where subpackages with
// extra build requirements register themselves.
func createEngine(cfg EngineConfig) Adapter {
	switch cfg.Type {
	case GoogleVisionType:
		if cfg.APIKey == "" {
			return nil
		}
		return NewGoogleVision(GoogleVisionConfig{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			RateLimit: cfg.RateLimit,
		})
	case LLMVisionType:
		if cfg.APIKey == "" && cfg.BaseURL == "" {
			return nil
		}
		return NewLLMVision(LLMVisionConfig{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			RateLimit: cfg.RateLimit,
		})
	case StaticType:
		return NewStatic(StaticConfig{})
	default:
		if factory := factoryFor(cfg.Type); factory != nil {
			return factory(cfg)
		}
		return nil
	}
}

// needsUpdate checks if an engine needs to be recreated after a config
// change. Factory-built engines are always recreated.
func needsUpdate(engine Adapter, cfg EngineConfig) bool {
	switch e := engine.(type) {
	case *GoogleVision:
		return e.apiKey != cfg.APIKey ||
			(cfg.BaseURL != "" && e.baseURL != cfg.BaseURL) ||
			(cfg.RateLimit != 0 && e.rateLimit != cfg.RateLimit)
	case *LLMVision:
		return e.apiKey != cfg.APIKey ||
			(cfg.BaseURL != "" && e.baseURL != cfg.BaseURL) ||
			(cfg.Model != "" && e.model != cfg.Model) ||
			(cfg.RateLimit != 0 && e.rateLimit != cfg.RateLimit)
	case *Static:
		return false
	default:
		return true
	}
}

// Summary renders a short human-readable description of the registry,
// one engine per line.
func (r *Registry) Summary() string {
	names := r.List()
	if len(names) == 0 {
		return "no engines registered"
	}
	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteByte('\n')
		}
		engine, err := r.Get(name)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "%-12s rps=%.1f retries=%d", name, engine.RequestsPerSecond(), engine.MaxRetries())
	}
	return b.String()
}
