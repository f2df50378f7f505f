package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidLLMProviderNames lists known LLM provider names.
// Used by [Validate] to warn about unrecognised provider names.
var ValidLLMProviderNames = []string{
	"gemini", "openai", "anthropic", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile", "mock",
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. Environment variable references (${VAR}) in the file are expanded
// before parsing, so secrets can stay out of the file itself.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}

	cfg, err := LoadFromReader(strings.NewReader(os.ExpandEnv(string(raw))))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" {
			errs = append(errs, errors.New("server.tls.cert_file is required when server.tls is set"))
		}
		if cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls.key_file is required when server.tls is set"))
		}
	}

	// Provider
	validateProviderName(cfg.Provider.Name)
	for _, fb := range cfg.Provider.Fallbacks {
		validateProviderName(fb.Name)
		if len(fb.Fallbacks) > 0 {
			errs = append(errs, fmt.Errorf("provider.fallbacks[%q].fallbacks must be empty; fallback chains do not nest", fb.Name))
		}
	}
	if cfg.Provider.Name == "" {
		slog.Warn("no LLM provider configured; session feedback will fall back to stats-based summaries")
	}

	// Session
	if cfg.Session.TTL < 0 {
		errs = append(errs, fmt.Errorf("session.ttl %s must not be negative", cfg.Session.TTL))
	}
	if cfg.Session.JanitorInterval < 0 {
		errs = append(errs, fmt.Errorf("session.janitor_interval %s must not be negative", cfg.Session.JanitorInterval))
	}
	if cfg.Session.MaxTranscriptWords < 0 {
		errs = append(errs, fmt.Errorf("session.max_transcript_words %d must not be negative", cfg.Session.MaxTranscriptWords))
	}

	// Coach
	if cfg.Coach.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("coach.request_timeout %s must not be negative", cfg.Coach.RequestTimeout))
	}
	if cfg.Coach.Temperature < 0 || cfg.Coach.Temperature > 2 {
		errs = append(errs, fmt.Errorf("coach.temperature %.2f is out of range [0, 2]", cfg.Coach.Temperature))
	}
	if cfg.Coach.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("coach.max_tokens %d must not be negative", cfg.Coach.MaxTokens))
	}

	// Storage
	if cfg.Storage.Backend != "" && !cfg.Storage.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("storage.backend %q is invalid; valid values: memory, postgres", cfg.Storage.Backend))
	}
	if cfg.Storage.Backend == StoragePostgres && cfg.Storage.PostgresDSN == "" {
		errs = append(errs, errors.New("storage.postgres_dsn is required when storage.backend is postgres"))
	}

	// Events
	if cfg.Events.Enabled {
		if len(cfg.Events.Brokers) == 0 {
			errs = append(errs, errors.New("events.brokers is required when events.enabled is true"))
		}
		if cfg.Events.Topic == "" {
			errs = append(errs, errors.New("events.topic is required when events.enabled is true"))
		}
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// [ValidLLMProviderNames].
func validateProviderName(name string) {
	if name == "" {
		return
	}
	if slices.Contains(ValidLLMProviderNames, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"name", name,
		"known", ValidLLMProviderNames,
	)
}
