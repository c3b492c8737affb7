package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"vargasjr/internal/config"
	"vargasjr/internal/domain"
)

// ErrNoProvider is returned when no usable provider is configured.
var ErrNoProvider = errors.New("no provider configured")

// ProviderConstructor is a function that creates a provider from a config entry.
type ProviderConstructor func(name string, pc config.ProviderConfig, client *http.Client, logger *slog.Logger) domain.Provider

// Factory creates and caches LLM providers from config.
type Factory struct {
	cfg          *config.Config
	logger       *slog.Logger
	client       *http.Client
	constructors map[string]ProviderConstructor
	cache        map[string]domain.Provider
	mu           sync.RWMutex
}

// NewFactory creates a provider factory. Every provider is OpenAI-compatible
// unless a constructor is registered under its name.
func NewFactory(cfg *config.Config, logger *slog.Logger) *Factory {
	return &Factory{
		cfg:          cfg,
		logger:       logger,
		client:       SharedHTTPClient(defaultHTTPTimeout),
		constructors: make(map[string]ProviderConstructor),
		cache:        make(map[string]domain.Provider),
	}
}

// RegisterConstructor adds (or replaces) a provider constructor by name.
func (f *Factory) RegisterConstructor(name string, ctor ProviderConstructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[name] = ctor
	delete(f.cache, name)
}

// Get returns the provider with the given name. Created providers are cached.
func (f *Factory) Get(name string) (domain.Provider, error) {
	if name == "" {
		return nil, ErrNoProvider
	}

	f.mu.RLock()
	if cached, ok := f.cache[name]; ok {
		f.mu.RUnlock()
		return cached, nil
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()

	if cached, ok := f.cache[name]; ok {
		return cached, nil
	}

	pc, ok := f.cfg.Providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider %s: %w", name, ErrNoProvider)
	}
	if !pc.Enabled {
		return nil, fmt.Errorf("provider %s is disabled: %w", name, ErrNoProvider)
	}
	if pc.APIKey == "" {
		pc.APIKey = os.Getenv(EnvKeyName(name))
	}

	var p domain.Provider
	if ctor, found := f.constructors[name]; found {
		p = ctor(name, pc, f.client, f.logger)
	} else {
		p = NewOpenAI(OpenAIConfig{
			Name:    name,
			APIKey:  pc.APIKey,
			APIBase: pc.APIBase,
			Model:   pc.DefaultModel,
			Client:  f.client,
			Logger:  f.logger,
		})
	}

	f.cache[name] = p
	return p, nil
}

// Classifier returns the provider the classifier should talk to: the
// configured primary, wrapped in a failover chain when fallbacks are set.
// Fallbacks that are missing or disabled are skipped with a warning.
func (f *Factory) Classifier() (domain.Provider, error) {
	primary, err := f.Get(f.cfg.Classifier.Provider)
	if err != nil {
		return nil, err
	}
	if len(f.cfg.Classifier.Fallbacks) == 0 {
		return primary, nil
	}

	chain := []domain.Provider{primary}
	for _, name := range f.cfg.Classifier.Fallbacks {
		p, err := f.Get(name)
		if err != nil {
			f.logger.Warn("skipping classifier fallback", "provider", name, "err", err)
			continue
		}
		chain = append(chain, p)
	}
	if len(chain) == 1 {
		return primary, nil
	}
	return NewFailoverProvider(chain, f.logger), nil
}

// HealthyProvider returns the first enabled provider that passes a health check, or nil.
func (f *Factory) HealthyProvider(ctx context.Context) domain.Provider {
	for name, pc := range f.cfg.Providers {
		if !pc.Enabled {
			continue
		}
		p, err := f.Get(name)
		if err != nil {
			continue
		}
		if p.Healthy(ctx) == nil {
			return p
		}
	}
	return nil
}

// EnvKeyName maps a provider name to its API key variable, e.g. "openai" to OPENAI_API_KEY.
func EnvKeyName(name string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name)) + "_API_KEY"
}
