package engine

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/germanamz/tether/pkg/chats/turn"
	"github.com/germanamz/tether/pkg/modeladapter"
	"github.com/germanamz/tether/pkg/providers/gemini"
	"github.com/germanamz/tether/pkg/tools/toolbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.DiscardHandler)

func TestBuildGateway_MissingAPIKey(t *testing.T) {
	c, err := buildGateway(GatewayConfig{Kind: "gemini"}, discard)
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestBuildGateway_Gemini(t *testing.T) {
	c, err := buildGateway(GatewayConfig{
		Kind:        "gemini",
		APIKey:      "gm-test",
		Temperature: 0.2,
		MaxTokens:   256,
	}, discard)
	require.NoError(t, err)

	a, ok := c.(*gemini.Adapter)
	require.True(t, ok, "expected *gemini.Adapter, got %T", c)
	assert.Equal(t, gemini.DefaultBaseURL, a.BaseURL)
	assert.Equal(t, "gm-test", a.Auth.Key)
	assert.InDelta(t, 0.2, a.Temperature, 1e-9)
	assert.Equal(t, 256, a.MaxTokens)
}

func TestBuildGateway_CustomBaseURL(t *testing.T) {
	c, err := buildGateway(GatewayConfig{Kind: "gemini", APIKey: "k", BaseURL: "http://localhost:8080"}, discard)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", c.(*gemini.Adapter).BaseURL)
}

func TestBuildGateway_RateLimitWrapsWithRetries(t *testing.T) {
	c, err := buildGateway(GatewayConfig{
		Kind:      "gemini",
		APIKey:    "k",
		RateLimit: RateLimitConfig{MaxRetries: 2, BaseDelay: "10ms"},
	}, discard)
	require.NoError(t, err)

	_, ok := c.(*modeladapter.RetryingCompleter)
	assert.True(t, ok, "expected *modeladapter.RetryingCompleter, got %T", c)

	// Usage stays reachable through the wrapper.
	r, ok := c.(modeladapter.UsageReporter)
	require.True(t, ok)
	assert.NotNil(t, r.UsageTracker())
}

func TestBuildGateway_InvalidDelay(t *testing.T) {
	_, err := buildGateway(GatewayConfig{
		Kind:      "gemini",
		APIKey:    "k",
		RateLimit: RateLimitConfig{BaseDelay: "later"},
	}, discard)
	assert.ErrorContains(t, err, "invalid base_delay")
}

func TestBuildGateway_UnknownKind(t *testing.T) {
	_, err := buildGateway(GatewayConfig{Kind: "nope", APIKey: "k"}, discard)
	assert.ErrorContains(t, err, `unknown gateway kind "nope"`)
}

type stubCompleter struct{}

func (stubCompleter) Complete(context.Context, string, []turn.Turn, []toolbox.Declaration) (modeladapter.Reply, error) {
	return modeladapter.Reply{Text: "stub"}, nil
}

func TestRegisterGateway(t *testing.T) {
	RegisterGateway("stub", func(GatewayConfig) (modeladapter.Completer, error) {
		return stubCompleter{}, nil
	})

	c, err := buildGateway(GatewayConfig{Kind: "stub", APIKey: "k"}, discard)
	require.NoError(t, err)
	assert.Equal(t, stubCompleter{}, c)

	cfg := Defaults()
	cfg.Gateway.Kind = "stub"
	assert.NoError(t, cfg.Validate())
}

func TestRegisterGateway_FactoryError(t *testing.T) {
	RegisterGateway("broken", func(GatewayConfig) (modeladapter.Completer, error) {
		return nil, errors.New("no credentials")
	})

	_, err := buildGateway(GatewayConfig{Kind: "broken", APIKey: "k"}, discard)
	assert.ErrorContains(t, err, "no credentials")
}
