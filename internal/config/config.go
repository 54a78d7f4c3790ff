package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Prospect  ProspectConfig  `yaml:"prospect" mapstructure:"prospect"`
	Gemini    GeminiConfig    `yaml:"gemini" mapstructure:"gemini"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Journal   JournalConfig   `yaml:"journal" mapstructure:"journal"`
	Export    ExportConfig    `yaml:"export" mapstructure:"export"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ProspectConfig selects the model provider.
type ProspectConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	APIKey     string `yaml:"api_key" mapstructure:"api_key"`
	Model      string `yaml:"model" mapstructure:"model"`
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	EnableMaps bool   `yaml:"enable_maps" mapstructure:"enable_maps"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey    string `yaml:"api_key" mapstructure:"api_key"`
	Model     string `yaml:"model" mapstructure:"model"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// PipelineConfig holds the orchestrator timings.
type PipelineConfig struct {
	EnrichingAfter time.Duration `yaml:"enriching_after" mapstructure:"enriching_after"`
	ValidationHold time.Duration `yaml:"validation_hold" mapstructure:"validation_hold"`
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
}

// ServerConfig configures the HTTP shell.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// JournalConfig configures the sqlite run journal. An empty path disables it.
type JournalConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ExportConfig configures where the CLI shells write export files.
type ExportConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// Load reads configuration from prospector.yaml (optional), environment
// variables prefixed with PROSPECTOR_, and defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("prospector")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PROSPECTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Provider keys are also read from their conventional names.
	if err := v.BindEnv("gemini.api_key", "PROSPECTOR_GEMINI_API_KEY", "GEMINI_API_KEY", "API_KEY"); err != nil {
		return nil, eris.Wrap(err, "config: bind gemini key")
	}
	if err := v.BindEnv("anthropic.api_key", "PROSPECTOR_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"); err != nil {
		return nil, eris.Wrap(err, "config: bind anthropic key")
	}

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("prospect.provider", ProviderGemini)
	v.SetDefault("gemini.model", "gemini-3-flash-preview")
	v.SetDefault("gemini.base_url", "")
	v.SetDefault("gemini.enable_maps", false)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("pipeline.enriching_after", 2500*time.Millisecond)
	v.SetDefault("pipeline.validation_hold", 2*time.Second)
	v.SetDefault("pipeline.request_timeout", 3*time.Minute)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("journal.path", "")
	v.SetDefault("export.dir", ".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	cfg.Prospect.Provider = strings.ToLower(strings.TrimSpace(cfg.Prospect.Provider))

	return &cfg, nil
}

// Validate checks that the settings needed by a command are present.
// mode is one of "serve", "tui" or "run".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Prospect.Provider {
	case ProviderGemini:
		if strings.TrimSpace(c.Gemini.APIKey) == "" {
			errs = append(errs, "gemini.api_key is required (set GEMINI_API_KEY or API_KEY)")
		}
	case ProviderAnthropic:
		if strings.TrimSpace(c.Anthropic.APIKey) == "" {
			errs = append(errs, "anthropic.api_key is required (set ANTHROPIC_API_KEY)")
		}
	default:
		errs = append(errs, fmt.Sprintf("prospect.provider %q is not supported", c.Prospect.Provider))
	}

	if c.Pipeline.EnrichingAfter < 0 || c.Pipeline.ValidationHold < 0 {
		errs = append(errs, "pipeline timings must not be negative")
	}
	if c.Pipeline.RequestTimeout <= 0 {
		errs = append(errs, "pipeline.request_timeout must be positive")
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
		}
	case "tui", "run":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.New("config: " + strings.Join(errs, "; "))
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
