package engine

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/germanamz/tether/pkg/providers/gemini"
	"github.com/germanamz/tether/pkg/tools/mcpclient"
	"gopkg.in/yaml.v3"
)

// Config is the top-level engine configuration.
type Config struct {
	Gateway    GatewayConfig    `yaml:"gateway"`
	ToolServer ToolServerConfig `yaml:"tool_server"`
	ModelsFile string           `yaml:"models_file"` // YAML or TOML registry; empty uses the built-in list.
	Session    SessionConfig    `yaml:"session"`
	Attachment AttachmentConfig `yaml:"attachment"`
	Log        LogConfig        `yaml:"log"`
}

// RateLimitConfig controls retries of rate-limited completions.
type RateLimitConfig struct {
	MaxRetries int    `yaml:"max_retries"` // Retries on 429 (0 = no retry wrapper).
	BaseDelay  string `yaml:"base_delay"`  // Initial backoff delay as a duration string (e.g. "1s", "500ms").
	MaxDelay   string `yaml:"max_delay"`   // Backoff ceiling as a duration string.
}

// GatewayConfig describes the model gateway.
type GatewayConfig struct {
	Kind        string          `yaml:"kind"`
	BaseURL     string          `yaml:"base_url"`
	APIKey      string          `yaml:"api_key"`     //nolint:gosec // configuration field, not a hardcoded secret
	Model       string          `yaml:"model"`       // Initial model id; empty picks the registry's recommended model.
	Temperature float64         `yaml:"temperature"` // 0 = gateway default.
	MaxTokens   int             `yaml:"max_tokens"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
}

// ToolServerConfig describes the tool server connection.
type ToolServerConfig struct {
	Transport   string            `yaml:"transport"` // streamable, sse, websocket or command.
	Endpoint    string            `yaml:"endpoint"`
	Command     string            `yaml:"command"`
	Args        []string          `yaml:"args"`
	Headers     map[string]string `yaml:"headers"`
	MaxRetries  int               `yaml:"max_retries"`
	BaseDelay   string            `yaml:"base_delay"`
	CallTimeout string            `yaml:"call_timeout"`
}

// SessionConfig tunes each submission.
type SessionConfig struct {
	MaxToolIterations int    `yaml:"max_tool_iterations"` // 0 = default, negative = unlimited.
	Timeout           string `yaml:"timeout"`             // Whole-submission deadline; empty = none.
}

// AttachmentConfig names the tool that receives attachments and its argument
// names.
type AttachmentConfig struct {
	Tool         string `yaml:"tool"`
	TextArg      string `yaml:"text_arg"`
	DataArg      string `yaml:"data_arg"`
	MediaTypeArg string `yaml:"media_type_arg"` // Optional.
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn or error.
	Format string `yaml:"format"` // text or json.
}

// Defaults returns the configuration used when a field is left empty.
func Defaults() Config {
	return Config{
		Gateway: GatewayConfig{
			Kind:    "gemini",
			BaseURL: gemini.DefaultBaseURL,
		},
		ToolServer: ToolServerConfig{
			Transport:  string(mcpclient.TransportStreamable),
			Endpoint:   "http://localhost:3000/mcp",
			MaxRetries: mcpclient.DefaultMaxRetries,
			BaseDelay:  mcpclient.DefaultBaseDelay.String(),
		},
		Attachment: AttachmentConfig{
			Tool:         "createPost",
			TextArg:      "status",
			DataArg:      "image",
			MediaTypeArg: "mime_type",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig reads a YAML configuration file over Defaults. Environment
// variables in the form ${VAR} or $VAR are expanded before parsing.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is user-provided config
	if err != nil {
		return Config{}, fmt.Errorf("engine: load config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Defaults()
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("engine: parse config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if c.Gateway.Kind == "" {
		return fmt.Errorf("engine: config: gateway kind is required")
	}
	if _, ok := getFactory(c.Gateway.Kind); !ok {
		return fmt.Errorf("engine: config: unknown gateway kind %q", c.Gateway.Kind)
	}
	if c.Gateway.MaxTokens < 0 {
		return fmt.Errorf("engine: config: gateway max_tokens must not be negative")
	}
	if c.Gateway.RateLimit.MaxRetries < 0 {
		return fmt.Errorf("engine: config: gateway rate_limit max_retries must not be negative")
	}

	for field, v := range map[string]string{
		"gateway rate_limit base_delay": c.Gateway.RateLimit.BaseDelay,
		"gateway rate_limit max_delay":  c.Gateway.RateLimit.MaxDelay,
		"tool_server base_delay":        c.ToolServer.BaseDelay,
		"tool_server call_timeout":      c.ToolServer.CallTimeout,
		"session timeout":               c.Session.Timeout,
	} {
		if _, err := parseDuration(v); err != nil {
			return fmt.Errorf("engine: config: %s: %w", field, err)
		}
	}

	ts, err := c.ToolServer.clientConfig()
	if err != nil {
		return err
	}
	if err := ts.Validate(); err != nil {
		return fmt.Errorf("engine: config: tool_server: %w", err)
	}

	if c.Attachment.Tool != "" && (c.Attachment.TextArg == "" || c.Attachment.DataArg == "") {
		return fmt.Errorf("engine: config: attachment tool %q needs text_arg and data_arg", c.Attachment.Tool)
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("engine: config: unknown log format %q", c.Log.Format)
	}

	return nil
}

// clientConfig converts the tool server section for mcpclient.
func (t ToolServerConfig) clientConfig() (mcpclient.Config, error) {
	baseDelay, err := parseDuration(t.BaseDelay)
	if err != nil {
		return mcpclient.Config{}, fmt.Errorf("engine: config: tool_server base_delay: %w", err)
	}
	callTimeout, err := parseDuration(t.CallTimeout)
	if err != nil {
		return mcpclient.Config{}, fmt.Errorf("engine: config: tool_server call_timeout: %w", err)
	}

	return mcpclient.Config{
		Transport:   mcpclient.TransportKind(t.Transport),
		Endpoint:    t.Endpoint,
		Command:     t.Command,
		Args:        t.Args,
		Headers:     t.Headers,
		MaxRetries:  t.MaxRetries,
		BaseDelay:   baseDelay,
		CallTimeout: callTimeout,
	}, nil
}

// ParseLevel maps a level name to a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("engine: config: unknown log level %q", s)
}

// parseDuration parses an optional duration string. Empty yields zero.
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}
