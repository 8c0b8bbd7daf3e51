package config

import (
	"fmt"
	"os"
	"time"

	"hypothesis-rating/internal/models"
	"hypothesis-rating/internal/translate"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when CONFIG_PATH is unset
const DefaultPath = "configs/config.yml"

// Config holds application configuration
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"` // SQLite path or PostgreSQL URL
		Type string `yaml:"type" validate:"oneof=sqlite postgres"`
	} `yaml:"database"`

	Session struct {
		Secret     string        `yaml:"secret" validate:"required,min=16"`
		TTL        time.Duration `yaml:"ttl" validate:"gt=0"`
		CookieName string        `yaml:"cookie_name" validate:"required"`
		Secure     bool          `yaml:"secure"`
		Store      string        `yaml:"store" validate:"oneof=sql memory"`
	} `yaml:"session"`

	Admin struct {
		Username     string `yaml:"username"`
		PasswordHash string `yaml:"password_hash"` // argon2id encoded, empty disables admin routes
	} `yaml:"admin"`

	Pool struct {
		Seed uint64 `yaml:"seed"`
		// How long the server serves a cached pool before reading the
		// database again; 0 disables the cache
		CacheTTL time.Duration `yaml:"cache_ttl" validate:"gte=0"`
	} `yaml:"pool"`

	// Translation providers, tried in order
	Providers               []translate.ProviderConfig `yaml:"providers" validate:"dive"`
	MaxFailuresBeforeSwitch int                        `yaml:"max_failures_before_switch"`

	Log struct {
		Development bool `yaml:"development"`
	} `yaml:"log"`

	Topics map[string]string `yaml:"topics"`
}

// LoadConfig loads configuration from YAML file
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}
	config.Log.Development = true
	config.Pool.Seed = 42
	config.Pool.CacheTTL = 30 * time.Second

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.applyDefaults()

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// Path returns the config file location, honouring CONFIG_PATH
func Path() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return DefaultPath
}

// NewLogger builds the process logger
func (c *Config) NewLogger() (*zap.Logger, error) {
	if c.Log.Development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func (c *Config) applyDefaults() {
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Port = port
	}
	if c.Server.Port == "" {
		c.Server.Port = "5001"
	}

	if path := os.Getenv("DATABASE_PATH"); path != "" {
		c.Database.Path = path
	}
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/hypothesis_data.db"
	}
	c.Database.Path = os.ExpandEnv(c.Database.Path)

	c.Session.Secret = os.ExpandEnv(c.Session.Secret)
	if c.Session.TTL == 0 {
		c.Session.TTL = 24 * time.Hour
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "rating_session"
	}
	if c.Session.Store == "" {
		c.Session.Store = "sql"
	}

	c.Admin.PasswordHash = os.ExpandEnv(c.Admin.PasswordHash)
	if c.Admin.Username == "" {
		c.Admin.Username = "admin"
	}

	if c.MaxFailuresBeforeSwitch == 0 {
		c.MaxFailuresBeforeSwitch = 3
	}

	// Expand environment variables in provider API keys
	for i := range c.Providers {
		c.Providers[i].APIKey = os.ExpandEnv(c.Providers[i].APIKey)
	}

	topics := make(map[string]string, len(models.DefaultTopicDescriptions))
	for k, v := range models.DefaultTopicDescriptions {
		topics[k] = v
	}
	for k, v := range c.Topics {
		topics[k] = v
	}
	c.Topics = topics
}
