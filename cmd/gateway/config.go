// In file: cmd/gateway/config.go
package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/dileep-u-k/notion-gateway/internal/intent"
	"github.com/dileep-u-k/notion-gateway/internal/notion"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Credential source selectors. The choice is made once at startup; nothing
// swaps credential sources afterwards.
const (
	credentialSourceStored = "stored"
	credentialSourceEnv    = "env"
)

// AppConfig holds all configuration for the gateway, loaded from the
// environment (secrets, addresses) and an optional config.yaml (intent
// phrase sets, tool-loop bounds).
type AppConfig struct {
	Port             string
	RedisAddr        string
	UpstreamBaseURL  string
	UpstreamAPIKey   string
	NotionBaseURL    string
	NotionTimeout    time.Duration
	CredentialSource string
	NotionToken      string
	IntentRules      []intent.Rule
	MaxToolRounds    int
}

// yamlConfig mirrors the optional config.yaml file.
type yamlConfig struct {
	IntentRules   []intent.Rule `yaml:"intent_rules"`
	MaxToolRounds int           `yaml:"max_tool_rounds"`
}

// LoadConfig loads all configuration from a .env file, environment variables,
// and config.yaml when present.
func LoadConfig() (*AppConfig, error) {
	// Only attempt to load a .env file in local development. In release
	// mode configuration is provided directly as environment variables.
	if os.Getenv("GIN_MODE") != "release" {
		if err := godotenv.Load(); err != nil {
			log.Println("WARNING: No .env file found for local development.")
		}
	}

	cfg := &AppConfig{
		Port:             getEnv("PORT", "8087"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		UpstreamBaseURL:  os.Getenv("UPSTREAM_API_BASE_URL"),
		UpstreamAPIKey:   os.Getenv("UPSTREAM_API_KEY"),
		NotionBaseURL:    getEnv("NOTION_API_BASE_URL", notion.DefaultBaseURL),
		CredentialSource: getEnv("NOTION_CREDENTIAL_SOURCE", credentialSourceStored),
		NotionToken:      os.Getenv("NOTION_TOKEN"),
		MaxToolRounds:    5,
	}

	if cfg.UpstreamBaseURL == "" {
		return nil, errors.New("UPSTREAM_API_BASE_URL environment variable is not set")
	}

	switch cfg.CredentialSource {
	case credentialSourceStored:
		if cfg.RedisAddr == "" {
			return nil, errors.New("REDIS_ADDR must be set when NOTION_CREDENTIAL_SOURCE is 'stored'")
		}
	case credentialSourceEnv:
		if cfg.NotionToken == "" {
			return nil, errors.New("NOTION_TOKEN must be set when NOTION_CREDENTIAL_SOURCE is 'env'")
		}
	default:
		return nil, fmt.Errorf("unknown NOTION_CREDENTIAL_SOURCE %q (want 'stored' or 'env')", cfg.CredentialSource)
	}

	timeoutSeconds, err := strconv.Atoi(getEnv("NOTION_TIMEOUT_SECONDS", "30"))
	if err != nil || timeoutSeconds <= 0 {
		return nil, fmt.Errorf("NOTION_TIMEOUT_SECONDS must be a positive integer")
	}
	cfg.NotionTimeout = time.Duration(timeoutSeconds) * time.Second

	// config.yaml is optional: it overrides the built-in intent phrase sets
	// and the tool-loop bound, nothing else.
	if raw, err := os.ReadFile("config.yaml"); err == nil {
		var fileCfg yamlConfig
		if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
			return nil, fmt.Errorf("failed to parse config.yaml: %w", err)
		}
		cfg.IntentRules = fileCfg.IntentRules
		if fileCfg.MaxToolRounds > 0 {
			cfg.MaxToolRounds = fileCfg.MaxToolRounds
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
