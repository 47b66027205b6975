package settings

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Load reads a YAML config file, fills in defaults and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Index.MaxEntries == 0 {
		c.Index.MaxEntries = 16
	}
	if c.Index.CacheSize == 0 {
		c.Index.CacheSize = 128
	}
	if c.Index.Encoding == "" {
		c.Index.Encoding = "ISO-8859-1"
	}
	if c.Logger.LogLevel == "" {
		c.Logger.LogLevel = "info"
	}
}

type Config struct {
	Index  Index  `yaml:"index"`
	Logger Logger `yaml:"logger"`
}

// Index is the configuration for one R-tree page file
type Index struct {
	Path       string  `yaml:"path" validate:"required"`
	MaxEntries int     `yaml:"max_entries" validate:"min=2"`
	CacheSize  int     `yaml:"cache_size" validate:"min=1"`
	Encoding   string  `yaml:"encoding"`
	Schema     []Field `yaml:"schema" validate:"dive"`
}

// Field is one column of the leaf record schema
type Field struct {
	Name  string `yaml:"name" validate:"required"`
	Kind  string `yaml:"kind" validate:"oneof=int16 int32 int64 float32 float64 text"`
	Width int    `yaml:"width" validate:"required_if=Kind text,gte=0"`
}

// Logger is the configuration for the logger
type Logger struct {
	LogLevel    string `yaml:"log_level" validate:"oneof=debug info warn error"`
	FileLogName string `yaml:"file_log_name"`
	MaxBackups  int    `yaml:"max_backups"`
	MaxAge      int    `yaml:"max_age"`
	MaxSize     int    `yaml:"max_size"`
	Compress    bool   `yaml:"compress"`
}
