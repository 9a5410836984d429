package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	API     APIConfig
	Server  ServerConfig
	Storage StorageConfig
	Log     LogConfig
	Upload  UploadConfig
	Analyze AnalyzeConfig
}

type APIConfig struct {
	BaseURL string
	Timeout string
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

type UploadConfig struct {
	MaxSizeMB         int
	AllowedExtensions string
}

type AnalyzeConfig struct {
	RatePerMinute int
}

func defaults() Config {
	return Config{
		API: APIConfig{
			BaseURL: "http://localhost:5000/api/",
			Timeout: "30s",
		},
		Server: ServerConfig{
			Port: 4100,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
		Upload: UploadConfig{
			MaxSizeMB:         10,
			AllowedExtensions: ".pdf,.docx,.doc",
		},
		Analyze: AnalyzeConfig{
			RatePerMinute: 6,
		},
	}
}

// Load reads config.json (under $XDG_CONFIG_HOME/jobtrail, or Application
// Support on macOS), then a .env file in the working directory, then
// JOBTRAIL_* environment variables. Variables already set in the environment
// win over .env.
func Load() (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}
	return loadWith(newPlatformBackend())
}

func loadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid config api.base_url %q: set it via JOBTRAIL_API_BASE_URL or `jobtrail config set api.base_url <url>`", c.API.BaseURL)
	}
	if _, err := time.ParseDuration(c.API.Timeout); err != nil {
		return fmt.Errorf("invalid config api.timeout %q: %w", c.API.Timeout, err)
	}
	if c.Upload.MaxSizeMB <= 0 {
		return fmt.Errorf("invalid config upload.max_size_mb %d: must be positive", c.Upload.MaxSizeMB)
	}
	if c.Analyze.RatePerMinute < 0 {
		return fmt.Errorf("invalid config analyze.rate_per_minute %d: must not be negative", c.Analyze.RatePerMinute)
	}
	return nil
}

// TimeoutDuration returns api.timeout as a duration. Load has validated it.
func (c APIConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Extensions splits upload.allowed_extensions into its entries.
func (c UploadConfig) Extensions() []string {
	var out []string
	for _, e := range strings.Split(c.AllowedExtensions, ",") {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}
