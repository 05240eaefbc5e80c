package config_test

import (
	"testing"

	"github.com/voxhire/voxhire/internal/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogInfo},
		Providers: config.ProvidersConfig{
			LLM:    config.ProviderEntry{Name: "gemini", Model: "gemini-2.5-flash"},
			Shadow: config.ProviderEntry{Name: "gemini", Model: "gemini-2.5-flash-lite"},
			STT:    config.ProviderEntry{Name: "deepgram", Model: "nova-2"},
		},
		Intelligence: config.IntelligenceConfig{PersonaDir: "config/personas"},
	}
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	d := config.Diff(baseConfig(), baseConfig())
	if d.LogLevelChanged || d.ProvidersChanged || d.IntelligenceChanged {
		t.Errorf("diff of identical configs = %+v", d)
	}
}

func TestDiff_LogLevel(t *testing.T) {
	t.Parallel()
	newCfg := baseConfig()
	newCfg.Server.LogLevel = config.LogDebug

	d := config.Diff(baseConfig(), newCfg)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("diff = %+v", d)
	}
}

func TestDiff_ProviderChanges(t *testing.T) {
	t.Parallel()
	newCfg := baseConfig()
	newCfg.Providers.LLM.Model = "gemini-2.5-pro"
	newCfg.Providers.STT.Name = "whisper"
	newCfg.Providers.Shadow.APIKey = "rotated"

	d := config.Diff(baseConfig(), newCfg)
	if !d.ProvidersChanged || len(d.ProviderChanges) != 3 {
		t.Fatalf("diff = %+v", d)
	}

	byKind := make(map[string]config.ProviderDiff)
	for _, pd := range d.ProviderChanges {
		byKind[pd.Kind] = pd
	}
	if !byKind["llm"].ModelChanged || byKind["llm"].NameChanged {
		t.Errorf("llm diff = %+v", byKind["llm"])
	}
	if !byKind["stt"].NameChanged {
		t.Errorf("stt diff = %+v", byKind["stt"])
	}
	if !byKind["shadow"].EndpointChanged {
		t.Errorf("shadow diff = %+v", byKind["shadow"])
	}
}

func TestDiff_IntelligencePaths(t *testing.T) {
	t.Parallel()
	newCfg := baseConfig()
	newCfg.Intelligence.PersonaDir = "personas-v2"

	d := config.Diff(baseConfig(), newCfg)
	if !d.IntelligenceChanged {
		t.Errorf("diff = %+v", d)
	}
}
