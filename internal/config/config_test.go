package config_test

import (
	"strings"
	"testing"

	"github.com/voxhire/voxhire/internal/config"
)

func TestLogLevel_IsValid(t *testing.T) {
	t.Parallel()
	for _, l := range []config.LogLevel{config.LogDebug, config.LogInfo, config.LogWarn, config.LogError} {
		if !l.IsValid() {
			t.Errorf("%q should be valid", l)
		}
	}
	for _, l := range []config.LogLevel{"", "trace", "INFO"} {
		if l.IsValid() {
			t.Errorf("%q should be invalid", l)
		}
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server: config.ServerConfig{
			LogLevel: "bananas",
			TLS:      &config.TLSConfig{CertFile: "server.crt"},
		},
		Database: config.DatabaseConfig{MaxConns: -1},
	}

	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{
		`server.log_level "bananas"`,
		"server.tls requires both cert_file and key_file",
		"database.max_conns -1",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q:\n%v", want, err)
		}
	}
}

func TestValidate_AcceptsMinimalConfig(t *testing.T) {
	t.Parallel()
	if err := config.Validate(&config.Config{}); err != nil {
		t.Errorf("empty config must validate (with warnings only): %v", err)
	}
}
