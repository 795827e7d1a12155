package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// DefaultPath is resolved against the process working directory.
const DefaultPath = "config.json"

var ErrConfig = errors.New("config error")

type Config struct {
	APIKey  string `json:"apiKey"`
	BaseURL string `json:"baseUrl,omitempty"`

	// OpenAI settings are only read by transcript post-processing.
	OpenAIAPIKey  string `json:"openaiApiKey,omitempty"`
	OpenAIBaseURL string `json:"openaiBaseUrl,omitempty"`
	OpenAIModel   string `json:"openaiModel,omitempty"`
}

// Load reads and parses the config document at path. It is meant to be
// called once per request; nothing is cached. Field presence is not
// validated, so a document without apiKey yields an empty APIKey.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrConfig, path, err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrConfig, path, err)
	}

	return cfg, nil
}
