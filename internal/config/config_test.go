package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	return &Config{
		NotionToken:          "secret",
		NotionTransactionsDB: "txdb",
		NotionEntitiesDB:     "entdb",
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"MissingToken", func(c *Config) { c.NotionToken = "" }, "NOTION_TOKEN"},
		{"MissingTransactionsDB", func(c *Config) { c.NotionTransactionsDB = "" }, "NOTION_TRANSACTIONS_DB"},
		{"MissingEntitiesDB", func(c *Config) { c.NotionEntitiesDB = "" }, "NOTION_ENTITIES_DB"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("expected %s in error, got %v", tc.want, err)
			}
		})
	}
}

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("AI_MAX_RETRIES", "")
	t.Setenv("SESSION_RETENTION", "")

	cfg := FromEnv()
	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default level info, got %s", cfg.LogLevel)
	}
	if cfg.AIMaxAttempts <= 0 {
		t.Errorf("expected positive retry default, got %d", cfg.AIMaxAttempts)
	}
	if cfg.SessionRetention <= 0 {
		t.Errorf("expected positive retention default, got %v", cfg.SessionRetention)
	}
}
