package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Browser   BrowserConfig   `yaml:"browser" mapstructure:"browser"`
	Extract   ExtractConfig   `yaml:"extract" mapstructure:"extract"`
	Vision    VisionConfig    `yaml:"vision" mapstructure:"vision"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Ollama    OllamaConfig    `yaml:"ollama" mapstructure:"ollama"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// StoreConfig configures the record store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// BrowserConfig selects and tunes the DOM accessor.
type BrowserConfig struct {
	// Mode is "chrome" (headless Chrome) or "static" (plain HTTP + goquery).
	Mode            string        `yaml:"mode" mapstructure:"mode"`
	Headless        bool          `yaml:"headless" mapstructure:"headless"`
	ExecPath        string        `yaml:"exec_path" mapstructure:"exec_path"`
	UserAgent       string        `yaml:"user_agent" mapstructure:"user_agent"`
	PageLoadTimeout time.Duration `yaml:"page_load_timeout" mapstructure:"page_load_timeout"`
}

// ExtractConfig configures page readiness and element waits.
type ExtractConfig struct {
	PageLoadAttempts int           `yaml:"page_load_attempts" mapstructure:"page_load_attempts"`
	PageLoadBackoff  time.Duration `yaml:"page_load_backoff" mapstructure:"page_load_backoff"`
	ElementWait      time.Duration `yaml:"element_wait" mapstructure:"element_wait"`
}

// VisionConfig configures screenshot analysis.
type VisionConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Provider is "anthropic" or "ollama".
	Provider         string        `yaml:"provider" mapstructure:"provider"`
	Timeout          time.Duration `yaml:"timeout" mapstructure:"timeout"`
	FailureThreshold int           `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeout     time.Duration `yaml:"reset_timeout" mapstructure:"reset_timeout"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// OllamaConfig holds local Ollama settings.
type OllamaConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	RequestDelay time.Duration `yaml:"request_delay" mapstructure:"request_delay"`
	MaxURLs      int           `yaml:"max_urls" mapstructure:"max_urls"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// Load reads configuration from .env, config.yaml and the environment, in
// increasing order of precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ENGAGEMENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "engagement.db")
	v.SetDefault("browser.mode", "chrome")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.page_load_timeout", 30*time.Second)
	v.SetDefault("extract.page_load_attempts", 3)
	v.SetDefault("extract.page_load_backoff", 3*time.Second)
	v.SetDefault("extract.element_wait", 10*time.Second)
	v.SetDefault("vision.enabled", false)
	v.SetDefault("vision.provider", "anthropic")
	v.SetDefault("vision.timeout", 90*time.Second)
	v.SetDefault("vision.failure_threshold", 5)
	v.SetDefault("vision.reset_timeout", time.Minute)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("ollama.base_url", "http://localhost:11434")
	v.SetDefault("ollama.model", "llava")
	v.SetDefault("batch.request_delay", 2*time.Second)
	v.SetDefault("batch.max_urls", 500)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. Modes: "extract", "batch",
// "store" (commands that only read records) and "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	needsBrowser := false
	switch mode {
	case "extract", "batch":
		needsBrowser = true
	case "serve":
		needsBrowser = true
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be between 1 and 65535")
		}
	case "store":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			errs = append(errs, "store.path is required for sqlite")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for postgres")
		}
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}

	if needsBrowser {
		if c.Browser.Mode != "chrome" && c.Browser.Mode != "static" {
			errs = append(errs, "browser.mode must be chrome or static")
		}
		if c.Extract.PageLoadAttempts < 1 || c.Extract.PageLoadAttempts > 10 {
			errs = append(errs, "extract.page_load_attempts must be between 1 and 10")
		}
		if c.Extract.PageLoadBackoff < 0 {
			errs = append(errs, "extract.page_load_backoff must be >= 0")
		}
		if c.Extract.ElementWait <= 0 {
			errs = append(errs, "extract.element_wait must be > 0")
		}
		if c.Batch.RequestDelay < 0 {
			errs = append(errs, "batch.request_delay must be >= 0")
		}
		if c.Vision.Enabled {
			switch c.Vision.Provider {
			case "anthropic":
				if c.Anthropic.Key == "" {
					errs = append(errs, "anthropic.key is required for vision")
				}
			case "ollama":
				if c.Ollama.BaseURL == "" {
					errs = append(errs, "ollama.base_url is required for vision")
				}
			default:
				errs = append(errs, "vision.provider must be anthropic or ollama")
			}
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
