// Package engines defines the OCR engine adapter contract and a config-driven
// registry of engine instances. Adapters wrap wildly different backends
// (local Tesseract, cloud vision APIs, multimodal LLMs) behind one interface
// so the orchestrator can race them against each other per page.
package engines

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/davidZakaria/cath-archives-sub000/internal/ocr"
)

// Adapter is implemented by every OCR engine.
//
// Run never returns a Go error: failures are reported in the result's Error
// field so a broken engine cannot abort a multi-engine race. Adapters must
// honor ctx cancellation and deadlines.
type Adapter interface {
	// Name returns the engine identifier (e.g. "tesseract", "gvision").
	Name() string

	// Run performs OCR on a single page image.
	Run(ctx context.Context, req ocr.PageRequest) ocr.EngineResult

	// Rate limiting properties
	RequestsPerSecond() float64
	MaxRetries() int
	RetryDelayBase() time.Duration
}

// EngineConfig holds the resolved settings for one engine instance.
// API keys are expected to already have ${ENV_VAR} references expanded.
type EngineConfig struct {
	Type      string   // "tesseract", "gvision", "llmvision", "static"
	Model     string   // model name (llmvision)
	APIKey    string   // resolved API key (gvision, llmvision)
	BaseURL   string   // endpoint override, mainly for tests
	Languages []string // default language hints, e.g. ["ar", "en"]
	DPI       int      // source image DPI hint (tesseract)
	RateLimit float64  // requests per second, 0 = unlimited
	Enabled   bool
}

// RegistryConfig defines the engines to instantiate from config.
type RegistryConfig struct {
	Engines map[string]EngineConfig
}

// Factory constructs an engine from resolved config. A factory may return
// nil when the config is unusable (e.g. a cloud engine with no API key);
// the registry skips nil engines.
type Factory func(EngineConfig) Adapter

var (
	factoryMu sync.RWMutex
	factories = make(map[string]Factory)
)

// RegisterType makes an engine constructor available to config-driven
// registries under the given type name. Engines with heavyweight build
// requirements live in subpackages and register themselves from init, so
// importing programs opt in the same way image decoders are opted in.
func RegisterType(typeName string, factory Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factories[typeName] = factory
}

// RegisteredTypes returns the engine type names known to this process.
func RegisteredTypes() []string {
	factoryMu.RLock()
	defer factoryMu.RUnlock()
	names := make([]string, 0, len(factories)+3)
	names = append(names, GoogleVisionType, LLMVisionType, StaticType)
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func factoryFor(typeName string) Factory {
	factoryMu.RLock()
	defer factoryMu.RUnlock()
	return factories[typeName]
}
