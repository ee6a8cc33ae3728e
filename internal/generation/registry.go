package generation

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Registry maps provider names to providers. It is built once at startup and
// passed to the components that need it.
type Registry struct {
	mu          sync.RWMutex
	providers   map[string]Provider
	defaultName string
	logger      *slog.Logger
}

// NewRegistry creates an empty registry. Requests for unknown or empty model
// names resolve to defaultName.
func NewRegistry(defaultName string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		providers:   make(map[string]Provider),
		defaultName: normalize(defaultName),
		logger:      logger.With("component", "provider_registry"),
	}
}

// Register adds a provider under its Name. Names are case-insensitive.
func (r *Registry) Register(p Provider) error {
	name := normalize(p.Name())
	if name == "" {
		return fmt.Errorf("%w: provider name cannot be empty", ErrInvalidConfig)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("%w: provider %q already registered", ErrInvalidConfig, name)
	}
	r.providers[name] = p
	return nil
}

// Resolve returns the provider for model. An empty model selects the default;
// an unknown model falls back to the default with a warning.
func (r *Registry) Resolve(model string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name := normalize(model)
	if name != "" {
		if p, ok := r.providers[name]; ok {
			return p, nil
		}
		r.logger.Warn("unknown model requested, using default provider",
			"requested", model,
			"default", r.defaultName)
	}

	p, ok := r.providers[r.defaultName]
	if !ok {
		return nil, fmt.Errorf("%w: default provider %q is not registered", ErrUnknownProvider, r.defaultName)
	}
	return p, nil
}

// Names lists registered provider names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default returns the default provider name.
func (r *Registry) Default() string {
	return r.defaultName
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
