package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(strings.NewReader(""), "yaml")
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.HealthPort)
	assert.True(t, cfg.Transports.HTTP.Enabled)
	assert.Equal(t, 8080, cfg.Transports.HTTP.Port)
	assert.Equal(t, 50051, cfg.Transports.GRPC.Port)
	assert.False(t, cfg.TTS.Enabled)
	assert.Equal(t, "localhost:10200", cfg.TTS.Piper.Endpoint)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestParse_Overrides(t *testing.T) {
	t.Setenv("CADENCE_TEST_PIPER", "piper.internal:10200")

	doc := `
transports:
  grpc:
    enabled: false
ssml:
  words_per_second: 2.5
  brand: ACME
tts:
  enabled: true
  piper:
    endpoint: ${CADENCE_TEST_PIPER}
    voices:
      pl: pl_PL-gosia-medium
logging:
  level: debug
  format: text
`
	cfg, err := Parse(strings.NewReader(doc), "yaml")
	require.NoError(t, err)

	assert.False(t, cfg.Transports.GRPC.Enabled)
	assert.InDelta(t, 2.5, cfg.SSML.WordsPerSecond, 1e-9)
	assert.Equal(t, "piper.internal:10200", cfg.TTS.Piper.Endpoint)
	assert.Equal(t, "pl_PL-gosia-medium", cfg.TTS.Piper.Voices["pl"])
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad port":     "transports:\n  http:\n    port: 70000\n",
		"bad backend":  "tts:\n  enabled: true\n  backend: espeak\n",
		"negative wps": "ssml:\n  words_per_second: -1\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(doc), "yaml")
			assert.Error(t, err)
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cadence.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  health_port: 9090\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.HealthPort)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("CADENCE_SERVER_HEALTH_PORT", "9191")
	path := filepath.Join(t.TempDir(), "cadence.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  health_port: 9090\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.HealthPort)
}

func TestSSMLConfig_RuleSet(t *testing.T) {
	rulesPath := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(rulesPath, []byte("terms:\n  sprint: sprint\n"), 0o600))

	rules, err := SSMLConfig{
		RulesFile:          rulesPath,
		Language:           "pl",
		DefaultMaxDuration: 30,
		Brand:              "ACME",
	}.RuleSet()
	require.NoError(t, err)

	assert.Equal(t, "pl", rules.Language)
	assert.InDelta(t, 30.0, rules.DefaultMaxDuration, 1e-9)
	assert.Contains(t, rules.KeepAcronyms, "ACME")
	assert.Contains(t, rules.KeepAcronyms, "SORTO")
	assert.Equal(t, "sprint", rules.Terms["sprint"])
	assert.InDelta(t, 3.0, rules.WordsPerSecond, 1e-9)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(LoggingConfig{Level: "warn", Format: "text"}, &buf)

	log.Info("hidden")
	log.Warn("shown", "stage", "currency")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "stage=currency")
}
