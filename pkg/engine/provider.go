package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/germanamz/tether/pkg/modeladapter"
	"github.com/germanamz/tether/pkg/providers/gemini"
)

// GatewayFactory creates a Completer from a GatewayConfig.
type GatewayFactory func(cfg GatewayConfig) (modeladapter.Completer, error)

var (
	factoryMu   sync.RWMutex
	factories   = map[string]GatewayFactory{}
	defaultsReg sync.Once
)

func ensureDefaults() {
	defaultsReg.Do(func() {
		factories["gemini"] = newGemini
	})
}

// RegisterGateway registers a gateway factory under the given kind.
// It can be called before New to extend the engine with additional gateways.
func RegisterGateway(kind string, factory GatewayFactory) {
	ensureDefaults()

	factoryMu.Lock()
	defer factoryMu.Unlock()

	factories[kind] = factory
}

// getFactory returns the factory for the given kind.
func getFactory(kind string) (GatewayFactory, bool) {
	ensureDefaults()

	factoryMu.RLock()
	defer factoryMu.RUnlock()

	f, ok := factories[kind]
	return f, ok
}

func newGemini(cfg GatewayConfig) (modeladapter.Completer, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = gemini.DefaultBaseURL
	}

	a := gemini.New(baseURL, cfg.APIKey)
	a.Temperature = cfg.Temperature
	a.MaxTokens = cfg.MaxTokens

	return a, nil
}

// buildGateway creates a Completer from a GatewayConfig using the registered
// factory for its Kind. It returns nil without error when no API key is set:
// the engine then runs with inference unavailable. If retries are configured
// the completer is wrapped with a RetryingCompleter.
func buildGateway(cfg GatewayConfig, log *slog.Logger) (modeladapter.Completer, error) {
	factory, ok := getFactory(cfg.Kind)
	if !ok {
		return nil, fmt.Errorf("engine: unknown gateway kind %q", cfg.Kind)
	}

	if cfg.APIKey == "" {
		return nil, nil
	}

	c, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("engine: gateway %q: %w", cfg.Kind, err)
	}

	rl := cfg.RateLimit
	if rl.MaxRetries > 0 || rl.BaseDelay != "" || rl.MaxDelay != "" {
		baseDelay, err := parseDuration(rl.BaseDelay)
		if err != nil {
			return nil, fmt.Errorf("engine: gateway %q: invalid base_delay %q: %w", cfg.Kind, rl.BaseDelay, err)
		}
		maxDelay, err := parseDuration(rl.MaxDelay)
		if err != nil {
			return nil, fmt.Errorf("engine: gateway %q: invalid max_delay %q: %w", cfg.Kind, rl.MaxDelay, err)
		}

		rc := modeladapter.NewRetryingCompleter(c, modeladapter.RetryOpts{
			MaxRetries: rl.MaxRetries,
			BaseDelay:  baseDelay,
			MaxDelay:   maxDelay,
		})
		rc.SetLogger(log)
		c = rc
	}

	return c, nil
}
