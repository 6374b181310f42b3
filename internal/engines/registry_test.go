package engines

import (
	"sync"
	"testing"
	"time"
)

func TestRegistry(t *testing.T) {
	t.Run("register and get", func(t *testing.T) {
		r := NewRegistry()
		engine := NewStatic(StaticConfig{})

		r.Register("static", engine)

		got, err := r.Get("static")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got != engine {
			t.Error("got different engine than registered")
		}
	})

	t.Run("get nonexistent", func(t *testing.T) {
		r := NewRegistry()

		_, err := r.Get("nonexistent")
		if err == nil {
			t.Error("expected error for nonexistent engine")
		}
	})

	t.Run("list is sorted", func(t *testing.T) {
		r := NewRegistry()
		r.Register("zeta", NewStatic(StaticConfig{Name: "zeta"}))
		r.Register("alpha", NewStatic(StaticConfig{Name: "alpha"}))

		names := r.List()
		if len(names) != 2 {
			t.Fatalf("List() returned %d items, want 2", len(names))
		}
		if names[0] != "alpha" || names[1] != "zeta" {
			t.Errorf("List() = %v, want sorted order", names)
		}
	})

	t.Run("has", func(t *testing.T) {
		r := NewRegistry()
		r.Register("my-engine", NewStatic(StaticConfig{}))

		if !r.Has("my-engine") {
			t.Error("Has() = false for registered engine")
		}
		if r.Has("other-engine") {
			t.Error("Has() = true for unregistered engine")
		}
	})

	t.Run("unregister", func(t *testing.T) {
		r := NewRegistry()
		r.Register("gone", NewStatic(StaticConfig{}))
		r.Unregister("gone")

		if r.Has("gone") {
			t.Error("engine should be removed")
		}
	})

	t.Run("concurrent access", func(t *testing.T) {
		r := NewRegistry()

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				r.Register("concurrent", NewStatic(StaticConfig{}))
			}()
			go func() {
				defer wg.Done()
				r.Get("concurrent") // May fail, that's ok
			}()
		}
		wg.Wait()
	})
}

func TestNewRegistryFromConfig(t *testing.T) {
	t.Run("registers engines from config", func(t *testing.T) {
		r := NewRegistryFromConfig(RegistryConfig{
			Engines: map[string]EngineConfig{
				"gvision": {
					Type:    GoogleVisionType,
					APIKey:  "test-vision-key",
					Enabled: true,
				},
				"llmvision": {
					Type:    LLMVisionType,
					APIKey:  "test-llm-key",
					Model:   "gpt-4o",
					Enabled: true,
				},
				"static": {
					Type:    StaticType,
					Enabled: true,
				},
			},
		})

		for _, name := range []string{"gvision", "llmvision", "static"} {
			if !r.Has(name) {
				t.Errorf("expected %s to be registered", name)
			}
		}
	})

	t.Run("skips disabled engines", func(t *testing.T) {
		r := NewRegistryFromConfig(RegistryConfig{
			Engines: map[string]EngineConfig{
				"gvision": {
					Type:    GoogleVisionType,
					APIKey:  "test-key",
					Enabled: false,
				},
			},
		})

		if r.Has("gvision") {
			t.Error("disabled engine should not be registered")
		}
	})

	t.Run("skips cloud engines without API keys", func(t *testing.T) {
		r := NewRegistryFromConfig(RegistryConfig{
			Engines: map[string]EngineConfig{
				"gvision": {
					Type:    GoogleVisionType,
					APIKey:  "",
					Enabled: true,
				},
				"llmvision": {
					Type:    LLMVisionType,
					APIKey:  "",
					Enabled: true,
				},
			},
		})

		if r.Has("gvision") {
			t.Error("gvision without API key should not be registered")
		}
		if r.Has("llmvision") {
			t.Error("llmvision without API key or base URL should not be registered")
		}
	})

	t.Run("llmvision with base URL but no key", func(t *testing.T) {
		// Local OpenAI-compatible gateways often need no key.
		r := NewRegistryFromConfig(RegistryConfig{
			Engines: map[string]EngineConfig{
				"llmvision": {
					Type:    LLMVisionType,
					BaseURL: "http://localhost:11434/v1",
					Enabled: true,
				},
			},
		})

		if !r.Has("llmvision") {
			t.Error("llmvision with base URL should be registered")
		}
	})

	t.Run("uses custom model for llmvision", func(t *testing.T) {
		r := NewRegistryFromConfig(RegistryConfig{
			Engines: map[string]EngineConfig{
				"llmvision": {
					Type:    LLMVisionType,
					APIKey:  "test-key",
					Model:   "custom-model",
					Enabled: true,
				},
			},
		})

		engine, _ := r.Get("llmvision")
		lv, ok := engine.(*LLMVision)
		if !ok {
			t.Fatal("expected LLMVision")
		}
		if lv.model != "custom-model" {
			t.Errorf("expected custom-model, got %s", lv.model)
		}
	})

	t.Run("unknown type is skipped", func(t *testing.T) {
		r := NewRegistryFromConfig(RegistryConfig{
			Engines: map[string]EngineConfig{
				"mystery": {
					Type:    "no-such-type",
					Enabled: true,
				},
			},
		})

		if r.Has("mystery") {
			t.Error("unknown engine type should not be registered")
		}
	})
}

func TestRegisterType(t *testing.T) {
	RegisterType("test-custom", func(cfg EngineConfig) Adapter {
		return NewStatic(StaticConfig{Name: "test-custom", Text: cfg.Model})
	})

	r := NewRegistryFromConfig(RegistryConfig{
		Engines: map[string]EngineConfig{
			"custom": {
				Type:    "test-custom",
				Model:   "payload",
				Enabled: true,
			},
		},
	})

	engine, err := r.Get("custom")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	st, ok := engine.(*Static)
	if !ok {
		t.Fatalf("expected Static from factory, got %T", engine)
	}
	if st.text != "payload" {
		t.Errorf("factory did not receive config: text = %q", st.text)
	}

	found := false
	for _, name := range RegisteredTypes() {
		if name == "test-custom" {
			found = true
		}
	}
	if !found {
		t.Error("RegisteredTypes() should include test-custom")
	}
}

func TestRegistry_Reload(t *testing.T) {
	t.Run("adds new engines on reload", func(t *testing.T) {
		r := NewRegistryFromConfig(RegistryConfig{})

		if r.Has("gvision") {
			t.Error("should start without gvision")
		}

		r.Reload(RegistryConfig{
			Engines: map[string]EngineConfig{
				"gvision": {
					Type:    GoogleVisionType,
					APIKey:  "new-key",
					Enabled: true,
				},
			},
		})

		if !r.Has("gvision") {
			t.Error("expected gvision after reload")
		}
	})

	t.Run("removes engines on reload", func(t *testing.T) {
		r := NewRegistryFromConfig(RegistryConfig{
			Engines: map[string]EngineConfig{
				"gvision": {
					Type:    GoogleVisionType,
					APIKey:  "key",
					Enabled: true,
				},
			},
		})

		if !r.Has("gvision") {
			t.Error("should start with gvision")
		}

		r.Reload(RegistryConfig{})

		if r.Has("gvision") {
			t.Error("gvision should be removed after reload")
		}
	})

	t.Run("updates engines with changed API keys", func(t *testing.T) {
		r := NewRegistryFromConfig(RegistryConfig{
			Engines: map[string]EngineConfig{
				"gvision": {
					Type:    GoogleVisionType,
					APIKey:  "old-key",
					Enabled: true,
				},
			},
		})

		engine, _ := r.Get("gvision")
		if engine.(*GoogleVision).apiKey != "old-key" {
			t.Error("should start with old key")
		}

		r.Reload(RegistryConfig{
			Engines: map[string]EngineConfig{
				"gvision": {
					Type:    GoogleVisionType,
					APIKey:  "new-key",
					Enabled: true,
				},
			},
		})

		engine, _ = r.Get("gvision")
		if got := engine.(*GoogleVision).apiKey; got != "new-key" {
			t.Errorf("expected new-key, got %s", got)
		}
	})

	t.Run("keeps engines with unchanged config", func(t *testing.T) {
		cfg := RegistryConfig{
			Engines: map[string]EngineConfig{
				"gvision": {
					Type:      GoogleVisionType,
					APIKey:    "same-key",
					RateLimit: 5,
					Enabled:   true,
				},
			},
		}
		r := NewRegistryFromConfig(cfg)

		engine1, _ := r.Get("gvision")
		r.Reload(cfg)
		engine2, _ := r.Get("gvision")

		if engine1 != engine2 {
			t.Error("engine should not be replaced when config unchanged")
		}
	})

	t.Run("disabling removes the engine", func(t *testing.T) {
		r := NewRegistryFromConfig(RegistryConfig{
			Engines: map[string]EngineConfig{
				"static": {Type: StaticType, Enabled: true},
			},
		})

		r.Reload(RegistryConfig{
			Engines: map[string]EngineConfig{
				"static": {Type: StaticType, Enabled: false},
			},
		})

		if r.Has("static") {
			t.Error("disabled engine should be removed on reload")
		}
	})

	t.Run("concurrent reload is safe", func(t *testing.T) {
		r := NewRegistryFromConfig(RegistryConfig{
			Engines: map[string]EngineConfig{
				"gvision": {
					Type:    GoogleVisionType,
					APIKey:  "key",
					Enabled: true,
				},
			},
		})

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(2)
			go func(n int) {
				defer wg.Done()
				r.Reload(RegistryConfig{
					Engines: map[string]EngineConfig{
						"gvision": {
							Type:    GoogleVisionType,
							APIKey:  "key-" + string(rune('a'+n)),
							Enabled: true,
						},
					},
				})
			}(i)
			go func() {
				defer wg.Done()
				r.Get("gvision") // May fail, that's ok
			}()
		}
		wg.Wait()
	})
}

func TestRegistrySummary(t *testing.T) {
	r := NewRegistry()
	if got := r.Summary(); got != "no engines registered" {
		t.Errorf("empty summary = %q", got)
	}

	r.Register("static", NewStatic(StaticConfig{}))
	summary := r.Summary()
	if summary == "" {
		t.Error("expected non-empty summary")
	}
}

func TestAdapterRateLimitProperties(t *testing.T) {
	gv := NewGoogleVision(GoogleVisionConfig{APIKey: "k"})
	if gv.RequestsPerSecond() != 10.0 {
		t.Errorf("gvision default rps = %f, want 10.0", gv.RequestsPerSecond())
	}
	if gv.MaxRetries() != 3 {
		t.Errorf("gvision MaxRetries = %d, want 3", gv.MaxRetries())
	}
	if gv.RetryDelayBase() != 2*time.Second {
		t.Errorf("gvision RetryDelayBase = %v, want 2s", gv.RetryDelayBase())
	}

	lv := NewLLMVision(LLMVisionConfig{APIKey: "k"})
	if lv.RequestsPerSecond() != 1.0 {
		t.Errorf("llmvision default rps = %f, want 1.0", lv.RequestsPerSecond())
	}
}
