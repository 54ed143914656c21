// Package config loads runtime settings from an optional yaml file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/dvloznov/billflow/internal/domain"
	"github.com/dvloznov/billflow/internal/documents"
	"github.com/dvloznov/billflow/internal/gemini"
	"github.com/dvloznov/billflow/internal/policy"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. BILLFLOW_SERVER_PORT.
const EnvPrefix = "BILLFLOW"

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type PolicyConfig struct {
	ConfidenceThreshold int `mapstructure:"confidence_threshold"`
}

type ReviewConfig struct {
	CustomFields []string `mapstructure:"custom_fields"`
}

type StorageConfig struct {
	Provider string `mapstructure:"provider"` // billflow | google
	Bucket   string `mapstructure:"bucket"`
}

type KVConfig struct {
	Driver  string `mapstructure:"driver"`
	Path    string `mapstructure:"path"`
	LogMode bool   `mapstructure:"log_mode"`
}

type ProfileConfig struct {
	Path string `mapstructure:"path"`
}

type BigQueryConfig struct {
	Project string `mapstructure:"project"`
	Dataset string `mapstructure:"dataset"`
}

type NotionConfig struct {
	Token      string `mapstructure:"token"`
	DatabaseID string `mapstructure:"database_id"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Gemini   GeminiConfig   `mapstructure:"gemini"`
	Policy   PolicyConfig   `mapstructure:"policy"`
	Review   ReviewConfig   `mapstructure:"review"`
	Storage  StorageConfig  `mapstructure:"storage"`
	KV       KVConfig       `mapstructure:"kv"`
	Profile  ProfileConfig  `mapstructure:"profile"`
	BigQuery BigQueryConfig `mapstructure:"bigquery"`
	Notion   NotionConfig   `mapstructure:"notion"`
}

// KV drivers.
const (
	KVMemory = "memory"
	KVSQLite = "sqlite"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", gemini.DefaultModelName)
	v.SetDefault("policy.confidence_threshold", policy.DefaultThreshold)
	v.SetDefault("review.custom_fields", []string{"Project Code", "Department"})
	v.SetDefault("storage.provider", string(domain.StorageBillflow))
	v.SetDefault("storage.bucket", "")
	v.SetDefault("kv.driver", KVSQLite)
	v.SetDefault("kv.path", "data/billflow.db")
	v.SetDefault("kv.log_mode", false)
	v.SetDefault("profile.path", "data/organization.yaml")
	v.SetDefault("bigquery.project", "")
	v.SetDefault("bigquery.dataset", "billflow")
	v.SetDefault("notion.token", "")
	v.SetDefault("notion.database_id", "")
}

// Load reads configuration from path (default "config.yaml" in the working
// directory) with environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	// environment overrides, e.g. BILLFLOW_KV_DRIVER=memory
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// conventional names used by the Google and Notion tooling
	_ = v.BindEnv("gemini.api_key", EnvPrefix+"_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY")
	_ = v.BindEnv("bigquery.project", EnvPrefix+"_BIGQUERY_PROJECT", "GOOGLE_CLOUD_PROJECT")
	_ = v.BindEnv("storage.bucket", EnvPrefix+"_STORAGE_BUCKET", "GCS_BUCKET")
	_ = v.BindEnv("notion.token", EnvPrefix+"_NOTION_TOKEN", "NOTION_TOKEN")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	c.normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) normalize() {
	c.Storage.Provider = strings.ToLower(strings.TrimSpace(c.Storage.Provider))
	c.KV.Driver = strings.ToLower(strings.TrimSpace(c.KV.Driver))

	fields := make([]string, 0, len(c.Review.CustomFields))
	for _, f := range c.Review.CustomFields {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	c.Review.CustomFields = fields
}

// Validate checks settings that can be judged without contacting anything.
// Missing credentials are reported later, by the action that needs them.
func (c *Config) Validate() error {
	if t := c.Policy.ConfidenceThreshold; t < 1 || t > 100 {
		return fmt.Errorf("config: %w: policy.confidence_threshold %d is outside 1..100", domain.ErrConfiguration, t)
	}
	switch c.KV.Driver {
	case KVMemory, KVSQLite:
	default:
		return fmt.Errorf("config: %w: unknown kv driver %q", domain.ErrConfiguration, c.KV.Driver)
	}
	if c.KV.Driver == KVSQLite && c.KV.Path == "" {
		return fmt.Errorf("config: %w: kv.path is required for sqlite", domain.ErrConfiguration)
	}
	if err := documents.CheckProvider(domain.StorageProvider(c.Storage.Provider), c.Storage.Bucket); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
