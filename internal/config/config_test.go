package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/dvloznov/billflow/internal/domain"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"GEMINI_API_KEY", "GOOGLE_API_KEY", "BILLFLOW_GEMINI_API_KEY",
		"GOOGLE_CLOUD_PROJECT", "GCS_BUCKET", "NOTION_TOKEN",
		"BILLFLOW_KV_DRIVER", "BILLFLOW_SERVER_PORT", "BILLFLOW_STORAGE_PROVIDER",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	c, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if c.Server.Port != "8080" {
		t.Errorf("Server.Port = %q", c.Server.Port)
	}
	if c.Gemini.Model != "gemini-2.5-flash" {
		t.Errorf("Gemini.Model = %q", c.Gemini.Model)
	}
	if c.Policy.ConfidenceThreshold != 80 {
		t.Errorf("threshold = %d", c.Policy.ConfidenceThreshold)
	}
	if !reflect.DeepEqual(c.Review.CustomFields, []string{"Project Code", "Department"}) {
		t.Errorf("custom fields = %v", c.Review.CustomFields)
	}
	if c.Storage.Provider != "billflow" || c.KV.Driver != KVSQLite {
		t.Errorf("storage = %q, kv = %q", c.Storage.Provider, c.KV.Driver)
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
server:
  port: "9090"
policy:
  confidence_threshold: 70
review:
  custom_fields: ["Cost Center", "  "]
kv:
  driver: memory
`)
	t.Setenv("BILLFLOW_SERVER_PORT", "7000")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if c.Server.Port != "7000" {
		t.Errorf("env should override file: port = %q", c.Server.Port)
	}
	if c.Policy.ConfidenceThreshold != 70 {
		t.Errorf("threshold = %d", c.Policy.ConfidenceThreshold)
	}
	if !reflect.DeepEqual(c.Review.CustomFields, []string{"Cost Center"}) {
		t.Errorf("custom fields = %v", c.Review.CustomFields)
	}
	if c.KV.Driver != KVMemory {
		t.Errorf("kv driver = %q", c.KV.Driver)
	}
}

func TestLoadAPIKeyFallback(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "prefixed wins", env: map[string]string{"BILLFLOW_GEMINI_API_KEY": "a", "GEMINI_API_KEY": "b", "GOOGLE_API_KEY": "c"}, want: "a"},
		{name: "gemini", env: map[string]string{"GEMINI_API_KEY": "b", "GOOGLE_API_KEY": "c"}, want: "b"},
		{name: "google", env: map[string]string{"GOOGLE_API_KEY": "c"}, want: "c"},
		{name: "none", env: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			c, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if c.Gemini.APIKey != tt.want {
				t.Errorf("APIKey = %q, want %q", c.Gemini.APIKey, tt.want)
			}
		})
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "threshold", body: "policy:\n  confidence_threshold: 150\n"},
		{name: "kv driver", body: "kv:\n  driver: postgres\n"},
		{name: "google without bucket", body: "storage:\n  provider: google\n"},
		{name: "onedrive", body: "storage:\n  provider: onedrive\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := Load(writeConfig(t, tt.body))
			if !errors.Is(err, domain.ErrConfiguration) {
				t.Errorf("err = %v, want ConfigurationError", err)
			}
		})
	}
}

func TestLoadMalformedFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(writeConfig(t, "server: [unclosed")); err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}
