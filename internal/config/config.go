package config

import (
	"fmt"
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
	Site       SiteConfig       `yaml:"site" mapstructure:"site"`
	Browser    BrowserConfig    `yaml:"browser" mapstructure:"browser"`
	LLM        LLMConfig        `yaml:"llm" mapstructure:"llm"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// SiteConfig describes the College Navigator site.
type SiteConfig struct {
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	NotFoundMarker string `yaml:"not_found_marker" mapstructure:"not_found_marker"`
	ResultSelector string `yaml:"result_selector" mapstructure:"result_selector"`
}

// BrowserConfig configures the headless browser session.
type BrowserConfig struct {
	Headless        bool          `yaml:"headless" mapstructure:"headless"`
	ExecPath        string        `yaml:"exec_path" mapstructure:"exec_path"`
	WindowWidth     int           `yaml:"window_width" mapstructure:"window_width"`
	WindowHeight    int           `yaml:"window_height" mapstructure:"window_height"`
	NavigateTimeout time.Duration `yaml:"navigate_timeout" mapstructure:"navigate_timeout"`
	ResultTimeout   time.Duration `yaml:"result_timeout" mapstructure:"result_timeout"`
	TabTimeout      time.Duration `yaml:"tab_timeout" mapstructure:"tab_timeout"`
	SearchSettle    time.Duration `yaml:"search_settle" mapstructure:"search_settle"`
	RenderSettle    time.Duration `yaml:"render_settle" mapstructure:"render_settle"`
	ScrollPause     time.Duration `yaml:"scroll_pause" mapstructure:"scroll_pause"`
}

// LLMConfig configures the chat-completion backend.
type LLMConfig struct {
	Provider          string        `yaml:"provider" mapstructure:"provider"`
	Key               string        `yaml:"key" mapstructure:"key"`
	BaseURL           string        `yaml:"base_url" mapstructure:"base_url"`
	Model             string        `yaml:"model" mapstructure:"model"`
	MaxTokens         int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	CircuitThreshold  int           `yaml:"circuit_threshold" mapstructure:"circuit_threshold"`
	CircuitReset      time.Duration `yaml:"circuit_reset" mapstructure:"circuit_reset"`
}

// PipelineConfig configures extraction behavior.
type PipelineConfig struct {
	ChunkWidth    int           `yaml:"chunk_width" mapstructure:"chunk_width"`
	RetryBackoff  time.Duration `yaml:"retry_backoff" mapstructure:"retry_backoff"`
	DefaultYear   string        `yaml:"default_year" mapstructure:"default_year"`
	TasksFile     string        `yaml:"tasks_file" mapstructure:"tasks_file"`
	MinMatchScore float64       `yaml:"min_match_score" mapstructure:"min_match_score"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	Delay time.Duration `yaml:"delay" mapstructure:"delay"`
}

// StoreConfig configures the run ledger backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// MonitoringConfig configures end-of-batch alerting. An empty WebhookURL
// only logs alerts.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	CostThresholdUSD     float64 `yaml:"cost_threshold_usd" mapstructure:"cost_threshold_usd"`
}

// PricingConfig holds per-model token pricing.
type PricingConfig struct {
	Models map[string]ModelPricing `yaml:"models" mapstructure:"models"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// Load reads configuration from .env, config.yaml, and the environment.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CAMPUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("llm.key", "CAMPUS_LLM_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, eris.Wrap(err, "config: bind llm key")
	}

	// Defaults
	v.SetDefault("site.base_url", "https://nces.ed.gov/collegenavigator/")
	v.SetDefault("site.not_found_marker", "No matching institutions found")
	v.SetDefault("site.result_selector", ".resultsTable a")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)
	v.SetDefault("browser.navigate_timeout", 30*time.Second)
	v.SetDefault("browser.result_timeout", 10*time.Second)
	v.SetDefault("browser.tab_timeout", 5*time.Second)
	v.SetDefault("browser.search_settle", time.Second)
	v.SetDefault("browser.render_settle", 2*time.Second)
	v.SetDefault("browser.scroll_pause", 500*time.Millisecond)
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4.1-nano")
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.requests_per_minute", 60)
	v.SetDefault("llm.circuit_threshold", 5)
	v.SetDefault("llm.circuit_reset", 30*time.Second)
	v.SetDefault("pipeline.chunk_width", 3000)
	v.SetDefault("pipeline.retry_backoff", 2*time.Second)
	v.SetDefault("pipeline.default_year", "2024–2025")
	v.SetDefault("pipeline.min_match_score", 0.80)
	v.SetDefault("batch.delay", 2*time.Second)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "campus.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("monitoring.failure_rate_threshold", 0.5)

	// Read config file (optional)
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

// Validate checks the fields a command mode depends on and reports every
// problem at once. Modes: extract, serve, ping, runs, afford.
func (c *Config) Validate(mode string) error {
	var errs []string

	needLLM := false
	needStore := false
	switch mode {
	case "extract":
		needLLM, needStore = true, true
	case "serve":
		needLLM, needStore = true, true
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "ping":
		needLLM = true
	case "runs":
		needStore = true
	case "afford":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if needLLM {
		switch c.LLM.Provider {
		case "openai", "anthropic":
		default:
			errs = append(errs, fmt.Sprintf("llm.provider %q is not supported", c.LLM.Provider))
		}
		if c.LLM.Key == "" {
			errs = append(errs, "llm.key is required (set OPENAI_API_KEY or CAMPUS_LLM_KEY)")
		}
		if c.LLM.Model == "" {
			errs = append(errs, "llm.model is required")
		}
		if c.Pipeline.ChunkWidth < 1 {
			errs = append(errs, "pipeline.chunk_width must be > 0")
		}
		if c.Pipeline.MinMatchScore < 0 || c.Pipeline.MinMatchScore > 1 {
			errs = append(errs, "pipeline.min_match_score must be between 0 and 1")
		}
	}

	if mode == "extract" {
		if t := c.Monitoring.FailureRateThreshold; t < 0 || t > 1 {
			errs = append(errs, "monitoring.failure_rate_threshold must be between 0 and 1")
		}
		if c.Monitoring.CostThresholdUSD < 0 {
			errs = append(errs, "monitoring.cost_threshold_usd must be >= 0")
		}
	}

	if needStore {
		switch c.Store.Driver {
		case "none":
		case "sqlite", "postgres":
			if c.Store.DatabaseURL == "" {
				errs = append(errs, "store.database_url is required")
			}
		default:
			errs = append(errs, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
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
