package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FRIGO_API_URL", "")
	t.Setenv("FRIGO_API_KEY", "")
	t.Setenv("FRIGO_DB_PATH", "")
	t.Setenv("FRIGO_ADDR", "")
	t.Setenv("FRIGO_LOG_LEVEL", "")
	t.Setenv("FRIGO_LOG_FORMAT", "")

	cfg := Load()

	if cfg.DBPath != "frigo.db" {
		t.Errorf("db path = %q, want %q", cfg.DBPath, "frigo.db")
	}
	if cfg.Addr != ":8090" {
		t.Errorf("addr = %q, want %q", cfg.Addr, ":8090")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("log level = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.LogFormat != "text" {
		t.Errorf("log format = %q, want %q", cfg.LogFormat, "text")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("FRIGO_API_URL", "https://fridge.example.com/api")
	t.Setenv("FRIGO_API_KEY", "secret")
	t.Setenv("FRIGO_DB_PATH", "/tmp/test.db")

	cfg := Load()

	if cfg.APIURL != "https://fridge.example.com/api" {
		t.Errorf("api url = %q", cfg.APIURL)
	}
	if cfg.APIKey != "secret" {
		t.Errorf("api key = %q", cfg.APIKey)
	}
	if cfg.DBPath != "/tmp/test.db" {
		t.Errorf("db path = %q", cfg.DBPath)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		APIURL: "https://fridge.example.com",
		APIKey: "secret",
		DBPath: "frigo.db",
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidateMissingKey(t *testing.T) {
	cfg := &Config{APIURL: "https://fridge.example.com", DBPath: "frigo.db"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestValidateBadURL(t *testing.T) {
	cfg := &Config{APIURL: "not a url", APIKey: "secret", DBPath: "frigo.db"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for malformed URL")
	}
}

func TestValidateMissingURL(t *testing.T) {
	cfg := &Config{APIKey: "secret", DBPath: "frigo.db"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing URL")
	}
}
