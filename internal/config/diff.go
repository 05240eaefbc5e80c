package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// ProvidersChanged is true if any provider entry changed. Provider
	// changes apply to sessions started after the reload; live sessions
	// keep their pipeline.
	ProvidersChanged bool
	ProviderChanges  []ProviderDiff

	// IntelligenceChanged is true if any intelligence file path changed.
	// Personas, frameworks, and stages are re-read per session, so a path
	// change takes effect on the next session.
	IntelligenceChanged bool
}

// ProviderDiff describes what changed for a single provider kind.
type ProviderDiff struct {
	// Kind is llm, shadow, stt, stt_fallback, tts, tts_fallback, or vad.
	Kind string

	NameChanged  bool
	ModelChanged bool

	// EndpointChanged is true if the base URL or API key changed.
	EndpointChanged bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	// Log level
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	kinds := []struct {
		kind     string
		old, new ProviderEntry
	}{
		{"llm", old.Providers.LLM, new.Providers.LLM},
		{"shadow", old.Providers.Shadow, new.Providers.Shadow},
		{"stt", old.Providers.STT, new.Providers.STT},
		{"stt_fallback", old.Providers.STTFallback, new.Providers.STTFallback},
		{"tts", old.Providers.TTS, new.Providers.TTS},
		{"tts_fallback", old.Providers.TTSFallback, new.Providers.TTSFallback},
		{"vad", old.Providers.VAD, new.Providers.VAD},
	}
	for _, k := range kinds {
		pd := diffProvider(k.kind, k.old, k.new)
		if pd.NameChanged || pd.ModelChanged || pd.EndpointChanged {
			d.ProviderChanges = append(d.ProviderChanges, pd)
			d.ProvidersChanged = true
		}
	}

	if old.Intelligence != new.Intelligence {
		d.IntelligenceChanged = true
	}

	return d
}

// diffProvider compares two entries for the same provider kind. Options are
// opaque to the diff and not compared.
func diffProvider(kind string, old, new ProviderEntry) ProviderDiff {
	pd := ProviderDiff{Kind: kind}

	if old.Name != new.Name {
		pd.NameChanged = true
	}
	if old.Model != new.Model {
		pd.ModelChanged = true
	}
	if old.BaseURL != new.BaseURL || old.APIKey != new.APIKey {
		pd.EndpointChanged = true
	}

	return pd
}
