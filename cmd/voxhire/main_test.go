package main

import (
	"log/slog"
	"testing"

	"github.com/voxhire/voxhire/internal/config"
)

func TestApplyConfigChange_LogLevel(t *testing.T) {
	lv := new(slog.LevelVar)
	lv.Set(slog.LevelInfo)

	applyConfigChange(lv, config.ConfigDiff{LogLevelChanged: true, NewLogLevel: config.LogDebug})
	if lv.Level() != slog.LevelDebug {
		t.Errorf("level = %v, want debug after reload", lv.Level())
	}

	// Provider-only changes must not touch the level.
	applyConfigChange(lv, config.ConfigDiff{
		ProvidersChanged: true,
		ProviderChanges:  []config.ProviderDiff{{Kind: "stt", ModelChanged: true}},
	})
	if lv.Level() != slog.LevelDebug {
		t.Errorf("level = %v, want debug unchanged", lv.Level())
	}
}

func TestSlogLevel(t *testing.T) {
	cases := map[config.LogLevel]slog.Level{
		config.LogDebug: slog.LevelDebug,
		config.LogInfo:  slog.LevelInfo,
		config.LogWarn:  slog.LevelWarn,
		config.LogError: slog.LevelError,
		"":              slog.LevelInfo,
	}
	for in, want := range cases {
		if got := slogLevel(in); got != want {
			t.Errorf("slogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
