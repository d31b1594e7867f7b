// Package config loads server settings. Values are layered: built-in
// defaults, then an optional YAML file named by IMAGE_PIPELINE_CONFIG, then
// IMAGE_PIPELINE_* environment variables, which may come from a .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ironsheep/image-pipeline-mcp/internal/operation"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "IMAGE_PIPELINE_"

// Backends that can be selected.
const (
	BackendNative = "native"
	BackendMagick = "magick"
)

type Config struct {
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"` // "text" or "json"

	// Backend is "native" or "magick".
	Backend string `yaml:"backend"`

	Magick struct {
		// SearchPath is the directory holding the ImageMagick binaries.
		// Empty means PATH.
		SearchPath string `yaml:"searchPath"`
	} `yaml:"magick"`

	Processing struct {
		// Background fills outputs without alpha when no colour is requested.
		Background   string  `yaml:"background"`
		BaseDPI      float64 `yaml:"baseDPI"`
		MaxReduction int     `yaml:"maxReduction"`
	} `yaml:"processing"`

	Overlay struct {
		// TempDir is where fetched overlay images are kept. Empty means the
		// system temp directory.
		TempDir string `yaml:"tempDir"`

		// Root confines file overlays to a directory. Empty allows any path.
		Root string `yaml:"root"`

		HTTPTimeout time.Duration `yaml:"httpTimeout"`

		S3 struct {
			Region          string `yaml:"region"`
			Endpoint        string `yaml:"endpoint"`
			AccessKeyID     string `yaml:"accessKeyID"`
			SecretAccessKey string `yaml:"secretAccessKey"`
		} `yaml:"s3"`
	} `yaml:"overlay"`

	Metrics struct {
		// Addr is the listen address for /metrics. Empty disables it.
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Backend:   BackendNative,
	}
	cfg.Processing.BaseDPI = 150
	cfg.Processing.MaxReduction = 5
	cfg.Overlay.HTTPTimeout = 30 * time.Second
	cfg.Overlay.S3.Region = "us-east-1"
	return cfg
}

// Load builds the configuration from defaults, the optional YAML file and
// the environment, and validates it.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv(EnvPrefix + "CONFIG"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path onto cfg. A missing file is not
// an error.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}
	return nil
}

// ApplyEnv overrides cfg with any IMAGE_PIPELINE_* variables that are set.
func (c *Config) ApplyEnv() {
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.Backend = getEnv("BACKEND", c.Backend)

	c.Magick.SearchPath = getEnv("MAGICK_PATH", c.Magick.SearchPath)

	c.Processing.Background = getEnv("BACKGROUND", c.Processing.Background)
	c.Processing.BaseDPI = getEnvFloat("BASE_DPI", c.Processing.BaseDPI)
	c.Processing.MaxReduction = getEnvInt("MAX_REDUCTION", c.Processing.MaxReduction)

	c.Overlay.TempDir = getEnv("OVERLAY_TEMP_DIR", c.Overlay.TempDir)
	c.Overlay.Root = getEnv("OVERLAY_ROOT", c.Overlay.Root)
	c.Overlay.HTTPTimeout = getEnvDuration("OVERLAY_HTTP_TIMEOUT", c.Overlay.HTTPTimeout)
	c.Overlay.S3.Region = getEnv("S3_REGION", c.Overlay.S3.Region)
	c.Overlay.S3.Endpoint = getEnv("S3_ENDPOINT", c.Overlay.S3.Endpoint)
	c.Overlay.S3.AccessKeyID = getEnv("S3_ACCESS_KEY_ID", c.Overlay.S3.AccessKeyID)
	c.Overlay.S3.SecretAccessKey = getEnv("S3_SECRET_ACCESS_KEY", c.Overlay.S3.SecretAccessKey)

	c.Metrics.Addr = getEnv("METRICS_ADDR", c.Metrics.Addr)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendNative, BackendMagick:
	default:
		return fmt.Errorf("backend must be either %q or %q, got: %s", BackendNative, BackendMagick, c.Backend)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("log format must be either \"text\" or \"json\", got: %s", c.LogFormat)
	}
	if c.Processing.Background != "" {
		if _, err := operation.ParseColor(c.Processing.Background); err != nil {
			return fmt.Errorf("invalid background colour %q: %w", c.Processing.Background, err)
		}
	}
	if c.Processing.BaseDPI <= 0 {
		return fmt.Errorf("base DPI must be positive, got: %v", c.Processing.BaseDPI)
	}
	if c.Processing.MaxReduction < 0 {
		return fmt.Errorf("max reduction must not be negative, got: %d", c.Processing.MaxReduction)
	}
	if c.Overlay.HTTPTimeout <= 0 {
		return fmt.Errorf("overlay HTTP timeout must be positive, got: %s", c.Overlay.HTTPTimeout)
	}
	if c.Overlay.S3.AccessKeyID != "" && c.Overlay.S3.SecretAccessKey == "" {
		return fmt.Errorf("%sS3_SECRET_ACCESS_KEY is required when an access key is set", EnvPrefix)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
