package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadReadsAPIKey(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeConfig(t, `{"apiKey":"secret","baseUrl":"http://localhost:9000"}`))
	require.NoError(t, err)
	require.Equal(t, "secret", cfg.APIKey)
	require.Equal(t, "http://localhost:9000", cfg.BaseURL)
}

func TestLoadReadsOpenAISettings(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeConfig(t, `{"apiKey":"moco","openaiApiKey":"sk-1","openaiModel":"gpt-4o"}`))
	require.NoError(t, err)
	require.Equal(t, "moco", cfg.APIKey)
	require.Equal(t, "sk-1", cfg.OpenAIAPIKey)
	require.Equal(t, "gpt-4o", cfg.OpenAIModel)
	require.Empty(t, cfg.OpenAIBaseURL)
}

func TestLoadMissingAPIKeyIsNotAnError(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeConfig(t, `{"other":1}`))
	require.NoError(t, err)
	require.Empty(t, cfg.APIKey)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	require.ErrorIs(t, err, ErrConfig)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadInvalidJSON(t *testing.T) {
	t.Parallel()

	_, err := Load(writeConfig(t, `{"apiKey":`))
	require.Error(t, err)
	require.ErrorIs(t, err, ErrConfig)
	require.Contains(t, err.Error(), "parse")
}
