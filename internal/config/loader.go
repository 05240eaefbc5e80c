package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":          {"gemini", "openai", "anthropic", "ollama", "groq", "mistral", "deepseek"},
	"shadow":       {"gemini", "openai", "anthropic", "ollama", "groq", "mistral", "deepseek"},
	"stt":          {"deepgram", "whisper", "whisper-native"},
	"stt_fallback": {"deepgram", "whisper", "whisper-native"},
	"tts":          {"elevenlabs", "coqui"},
	"tts_fallback": {"elevenlabs", "coqui"},
	"vad":          {"energy"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
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
	applyDefaults(cfg)
	return cfg, nil
}

// applyDefaults fills derived values after validation. The shadow provider
// inherits the main LLM entry when not configured separately.
func applyDefaults(cfg *Config) {
	if cfg.Providers.Shadow.Name == "" {
		cfg.Providers.Shadow = cfg.Providers.LLM
	}
	if cfg.Intelligence.DefaultLanguage == "" {
		cfg.Intelligence.DefaultLanguage = "en"
	}
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
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("shadow", cfg.Providers.Shadow.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("stt_fallback", cfg.Providers.STTFallback.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("tts_fallback", cfg.Providers.TTSFallback.Name)
	validateProviderName("vad", cfg.Providers.VAD.Name)

	// A fallback without a primary is almost certainly a misplaced block.
	if cfg.Providers.STTFallback.Name != "" && cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt_fallback is set but providers.stt is empty"))
	}
	if cfg.Providers.TTSFallback.Name != "" && cfg.Providers.TTS.Name == "" {
		errs = append(errs, errors.New("providers.tts_fallback is set but providers.tts is empty"))
	}

	// Provider availability warnings
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; interviews cannot generate responses")
	}
	if cfg.Providers.STT.Name == "" || cfg.Providers.TTS.Name == "" {
		slog.Warn("voice pipeline incomplete; sessions require both an STT and a TTS provider",
			"stt", cfg.Providers.STT.Name,
			"tts", cfg.Providers.TTS.Name,
		)
	}

	// Persistence availability
	if cfg.Database.PostgresDSN == "" {
		slog.Warn("database.postgres_dsn is empty; transcripts and results will not persist")
	}
	if cfg.Database.MaxConns < 0 {
		errs = append(errs, fmt.Errorf("database.max_conns %d must not be negative", cfg.Database.MaxConns))
	}

	// Intelligence paths are optional individually (built-in defaults back
	// each one), but a missing persona dir disables every stage persona.
	if cfg.Intelligence.PersonaDir == "" {
		slog.Warn("intelligence.persona_dir is empty; interviews will fail to compose prompts")
	}

	if cfg.Observability.Enabled && cfg.Observability.ServiceName == "" {
		slog.Warn("observability enabled without service_name; defaulting to voxhire")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
